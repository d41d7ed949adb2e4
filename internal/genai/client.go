package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the external text-generation service. The service is an
// opaque collaborator: one prompt in, structured text out.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type enhanceRequest struct {
	Idea          string `json:"idea"`
	PreviousScene string `json:"previous_scene,omitempty"`
	CameraStyle   string `json:"camera_style,omitempty"`
	LightingMood  string `json:"lighting_mood,omitempty"`
	SoundAmbience string `json:"sound_ambience,omitempty"`
}

type enhanceResponse struct {
	Enhanced       string `json:"enhanced"`
	ContextSummary string `json:"context_summary"`
}

// Enhancement is the structured result of one generation call.
type Enhancement struct {
	Enhanced       string
	ContextSummary string
}

// SceneInput is what the generator needs for one scene: the raw idea,
// the continuity summary from the previous scene and the effective
// production settings.
type SceneInput struct {
	Idea          string
	PreviousScene string
	CameraStyle   string
	LightingMood  string
	SoundAmbience string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const enhanceMaxRetries = 3

// EnhanceScene turns a raw scene idea into an enhanced description plus a
// short context summary for the next scene. Transient failures are retried
// with backoff before the scene is given up on.
func (c *Client) EnhanceScene(input SceneInput) (*Enhancement, error) {
	var result *Enhancement
	err := c.RetryWithBackoff(func() error {
		enhancement, err := c.enhanceScene(input)
		if err != nil {
			return err
		}
		result = enhancement
		return nil
	}, enhanceMaxRetries)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) enhanceScene(input SceneInput) (*Enhancement, error) {
	jsonData, err := json.Marshal(enhanceRequest{
		Idea:          input.Idea,
		PreviousScene: input.PreviousScene,
		CameraStyle:   input.CameraStyle,
		LightingMood:  input.LightingMood,
		SoundAmbience: input.SoundAmbience,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/enhance"
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to enhance scene: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result enhanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Enhanced == "" {
		return nil, fmt.Errorf("enhanced text is empty in response")
	}

	return &Enhancement{
		Enhanced:       result.Enhanced,
		ContextSummary: result.ContextSummary,
	}, nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
