package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sceneflow-backend/internal/models"
)

// TransportError marks a network-level failure (connection refused,
// timeout). The gateway reacts to it by falling back to the local store.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError marks a credential rejection by the remote service. It is
// deliberately distinct from TransportError: the gateway clears the
// stored credential instead of going offline.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected: status %d", e.Status)
}

const probeTimeout = 3 * time.Second

// Remote is the HTTP client for the sceneflow API.
type Remote struct {
	baseURL     string
	httpClient  *http.Client
	probeClient *http.Client

	mu    sync.Mutex
	token string
}

func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		probeClient: &http.Client{
			Timeout: probeTimeout,
		},
	}
}

// SetToken installs a fresh credential after re-authentication.
func (r *Remote) SetToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// ClearCredential drops the stored token so the caller is forced to
// re-authenticate.
func (r *Remote) ClearCredential() {
	r.SetToken("")
}

// Probe issues the lightweight reachability check. A timeout counts as
// unreachable, same as a connection failure.
func (r *Remote) Probe() bool {
	url := strings.TrimSuffix(r.baseURL, "/") + "/health"
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return false
	}

	resp, err := r.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (r *Remote) ListProjects() ([]models.ProjectSummary, error) {
	var result models.ProjectListResponse
	if err := r.do("GET", "/api/v1/projects", nil, "", &result); err != nil {
		return nil, err
	}
	return result.Projects, nil
}

func (r *Remote) GetProject(projectID string) (*models.ProjectAggregate, error) {
	var agg models.ProjectAggregate
	if err := r.do("GET", "/api/v1/projects/"+projectID, nil, "", &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}

// SaveProject uploads the full aggregate. A non-empty connectionID is
// forwarded so the server can stream save progress to an already-open
// channel.
func (r *Remote) SaveProject(agg models.ProjectAggregate, connectionID string) (string, error) {
	var result models.SaveProjectResponse
	body := models.SaveProjectRequest{Project: agg}
	if err := r.do("POST", "/api/v1/projects", body, connectionID, &result); err != nil {
		return "", err
	}
	return result.ProjectID, nil
}

func (r *Remote) DuplicateProject(projectID string, opts models.DuplicateProjectRequest) (string, error) {
	var result models.DuplicateProjectResponse
	if err := r.do("POST", "/api/v1/projects/"+projectID+"/duplicate", opts, "", &result); err != nil {
		return "", err
	}
	return result.ProjectID, nil
}

func (r *Remote) DeleteProject(projectID string) error {
	return r.do("DELETE", "/api/v1/projects/"+projectID, nil, "", nil)
}

func (r *Remote) do(method, path string, body interface{}, connectionID string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	url := strings.TrimSuffix(r.baseURL, "/") + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	r.mu.Lock()
	token := r.token
	r.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if connectionID != "" {
		req.Header.Set("X-Connection-ID", connectionID)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	// 403 is an application-level refusal (e.g. foreign owner) and is
	// surfaced as-is; only 401 means the credential itself was rejected.
	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp models.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s: status %d: %s", errResp.Error, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
