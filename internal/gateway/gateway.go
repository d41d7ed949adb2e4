package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sceneflow-backend/internal/client"
	"sceneflow-backend/internal/models"
)

// Remote is the surface the gateway needs from the API client.
type Remote interface {
	Probe() bool
	ListProjects() ([]models.ProjectSummary, error)
	GetProject(projectID string) (*models.ProjectAggregate, error)
	SaveProject(agg models.ProjectAggregate, connectionID string) (string, error)
	DuplicateProject(projectID string, opts models.DuplicateProjectRequest) (string, error)
	DeleteProject(projectID string) error
	ClearCredential()
}

// Local is the embedded offline backend surface.
type Local interface {
	Put(agg models.ProjectAggregate) error
	Get(id string) (*models.ProjectAggregate, error)
	GetAll() ([]models.ProjectAggregate, error)
	Delete(id string) error
}

// Gateway presents one CRUD surface regardless of which backend is
// reachable. The degraded flag lives on the instance, not in a package
// global, so gateways in tests don't interfere with each other.
type Gateway struct {
	remote Remote
	local  Local

	mu       sync.Mutex
	degraded bool
}

func New(remote Remote, local Local) *Gateway {
	return &Gateway{
		remote: remote,
		local:  local,
	}
}

// Probe re-checks remote reachability and resets the degraded flag. This
// is the only way back to remote mode once the gateway has gone offline.
func (g *Gateway) Probe() bool {
	ok := g.remote.Probe()
	g.mu.Lock()
	g.degraded = !ok
	g.mu.Unlock()
	return ok
}

// Offline reports whether the gateway is in degraded (local-only) mode.
// UI collaborators use it for the "working offline" indicator.
func (g *Gateway) Offline() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

func (g *Gateway) List() ([]models.ProjectSummary, error) {
	if !g.Offline() {
		summaries, err := g.remote.ListProjects()
		if err == nil {
			return summaries, nil
		}
		if handled, herr := g.handleRemoteError(err); handled {
			return nil, herr
		}
	}

	aggs, err := g.local.GetAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	summaries := make([]models.ProjectSummary, len(aggs))
	for i, agg := range aggs {
		summaries[i] = models.ProjectSummary{
			ID:          agg.ID,
			Title:       agg.Metadata.Title,
			Genre:       agg.Metadata.Genre,
			ContentType: agg.Metadata.ContentType,
			SceneCount:  len(agg.Scenes),
			LastUpdated: agg.Metadata.LastUpdated,
		}
	}
	return summaries, nil
}

func (g *Gateway) Get(projectID string) (*models.ProjectAggregate, error) {
	if !g.Offline() {
		agg, err := g.remote.GetProject(projectID)
		if err == nil {
			return agg, nil
		}
		if handled, herr := g.handleRemoteError(err); handled {
			return nil, herr
		}
	}

	agg, err := g.local.Get(projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return agg, nil
}

func (g *Gateway) Save(agg models.ProjectAggregate, connectionID string) (string, error) {
	if !g.Offline() {
		id, err := g.remote.SaveProject(agg, connectionID)
		if err == nil {
			return id, nil
		}
		if handled, herr := g.handleRemoteError(err); handled {
			return "", herr
		}
	}

	if err := g.local.Put(agg); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return agg.ID, nil
}

// Duplicate deep-copies the aggregate. Remote mode delegates to the
// server; degraded mode mints fresh ids locally so scene ids are never
// reused either way.
func (g *Gateway) Duplicate(projectID string, opts models.DuplicateProjectRequest) (string, error) {
	if !g.Offline() {
		id, err := g.remote.DuplicateProject(projectID, opts)
		if err == nil {
			return id, nil
		}
		if handled, herr := g.handleRemoteError(err); handled {
			return "", herr
		}
	}

	src, err := g.local.Get(projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	dup := *src
	dup.ID = uuid.New().String()
	if opts.NewTitle != "" {
		dup.Metadata.Title = opts.NewTitle
	}
	if opts.IncludeScenes {
		dup.Scenes = models.CloneScenes(src.Scenes)
		for i := range dup.Scenes {
			dup.Scenes[i].ID = uuid.New().String()
		}
	} else {
		dup.Scenes = nil
	}

	if err := g.local.Put(dup); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return dup.ID, nil
}

func (g *Gateway) Delete(projectID string) error {
	if !g.Offline() {
		err := g.remote.DeleteProject(projectID)
		if err == nil {
			return nil
		}
		if handled, herr := g.handleRemoteError(err); handled {
			return herr
		}
	}

	if err := g.local.Delete(projectID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// handleRemoteError classifies a remote failure. A transport failure
// flips degraded mode and lets the caller retry locally exactly once
// (handled=false). Anything else is final: an authentication rejection
// clears the credential and surfaces ErrAuthenticationRequired (never
// falls back to local), application errors pass through unchanged.
func (g *Gateway) handleRemoteError(err error) (handled bool, out error) {
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		g.mu.Lock()
		g.degraded = true
		g.mu.Unlock()
		return false, nil
	}

	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		g.remote.ClearCredential()
		return true, fmt.Errorf("%w: %v", models.ErrAuthenticationRequired, err)
	}

	return true, err
}
