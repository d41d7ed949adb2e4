package gateway_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneflow-backend/internal/client"
	"sceneflow-backend/internal/gateway"
	"sceneflow-backend/internal/models"
)

// fakeRemote scripts the API client's behavior per call.
type fakeRemote struct {
	reachable bool
	err       error

	cleared   bool
	saveCalls int
	listCalls int
}

func (f *fakeRemote) Probe() bool { return f.reachable }

func (f *fakeRemote) ListProjects() ([]models.ProjectSummary, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []models.ProjectSummary{{ID: "remote-1", Title: "Remote"}}, nil
}

func (f *fakeRemote) GetProject(projectID string) (*models.ProjectAggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProjectAggregate{ID: projectID}, nil
}

func (f *fakeRemote) SaveProject(agg models.ProjectAggregate, connectionID string) (string, error) {
	f.saveCalls++
	if f.err != nil {
		return "", f.err
	}
	return agg.ID, nil
}

func (f *fakeRemote) DuplicateProject(projectID string, opts models.DuplicateProjectRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "remote-dup", nil
}

func (f *fakeRemote) DeleteProject(projectID string) error { return f.err }

func (f *fakeRemote) ClearCredential() { f.cleared = true }

// memLocal is an in-memory stand-in for the sqlite store.
type memLocal struct {
	aggs map[string]models.ProjectAggregate
	err  error
}

func newMemLocal() *memLocal {
	return &memLocal{aggs: map[string]models.ProjectAggregate{}}
}

func (m *memLocal) Put(agg models.ProjectAggregate) error {
	if m.err != nil {
		return m.err
	}
	m.aggs[agg.ID] = agg
	return nil
}

func (m *memLocal) Get(id string) (*models.ProjectAggregate, error) {
	if m.err != nil {
		return nil, m.err
	}
	agg, ok := m.aggs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &agg, nil
}

func (m *memLocal) GetAll() ([]models.ProjectAggregate, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.ProjectAggregate, 0, len(m.aggs))
	for _, agg := range m.aggs {
		out = append(out, agg)
	}
	return out, nil
}

func (m *memLocal) Delete(id string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.aggs, id)
	return nil
}

func transportErr() error {
	return &client.TransportError{Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
}

func TestGateway_RemotePreferredWhenHealthy(t *testing.T) {
	remote := &fakeRemote{reachable: true}
	local := newMemLocal()
	gw := gateway.New(remote, local)

	summaries, err := gw.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "remote-1", summaries[0].ID)
	assert.False(t, gw.Offline())
}

func TestGateway_TransportFailureFallsBackOnce(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	require.NoError(t, local.Put(models.ProjectAggregate{
		ID:       "local-1",
		Metadata: models.ProjectMetadata{Title: "Offline draft", LastUpdated: time.Now()},
	}))
	gw := gateway.New(remote, local)

	summaries, err := gw.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "local-1", summaries[0].ID)
	assert.True(t, gw.Offline())

	// Once degraded, the remote is not retried per call.
	_, err = gw.List()
	require.NoError(t, err)
	assert.Equal(t, 1, remote.listCalls)
}

func TestGateway_SaveFallsBackToLocal(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	gw := gateway.New(remote, local)

	agg := models.ProjectAggregate{ID: "p1", Metadata: models.ProjectMetadata{Title: "Draft"}}
	id, err := gw.Save(agg, "")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	got, err := local.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Metadata.Title)
}

func TestGateway_AuthFailureNeverFallsBack(t *testing.T) {
	remote := &fakeRemote{err: &client.AuthError{Status: 401}}
	local := newMemLocal()
	require.NoError(t, local.Put(models.ProjectAggregate{ID: "local-1"}))
	gw := gateway.New(remote, local)

	_, err := gw.Get("local-1")
	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	assert.True(t, remote.cleared)

	// An auth rejection is not a connectivity problem.
	assert.False(t, gw.Offline())
}

func TestGateway_ApplicationErrorPassesThrough(t *testing.T) {
	remote := &fakeRemote{err: models.ErrNotOwner}
	gw := gateway.New(remote, newMemLocal())

	err := gw.Delete("p1")
	assert.ErrorIs(t, err, models.ErrNotOwner)
	assert.False(t, gw.Offline())
}

func TestGateway_ProbeRestoresRemote(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	gw := gateway.New(remote, local)

	_, err := gw.List()
	require.NoError(t, err)
	require.True(t, gw.Offline())

	remote.err = nil
	remote.reachable = true
	assert.True(t, gw.Probe())
	assert.False(t, gw.Offline())

	summaries, err := gw.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "remote-1", summaries[0].ID)
}

func TestGateway_LocalFailureIsStoreUnavailable(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	local.err = errors.New("disk full")
	gw := gateway.New(remote, local)

	_, err := gw.Save(models.ProjectAggregate{ID: "p1"}, "")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestGateway_DuplicateOfflineMintsFreshIDs(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	src := models.ProjectAggregate{
		ID:       "p1",
		Metadata: models.ProjectMetadata{Title: "Original"},
		Scenes: []models.Scene{
			{ID: "s1", SequenceNumber: 1, Status: models.SceneStatusCompleted, Idea: "opening"},
			{ID: "s2", SequenceNumber: 2, Status: models.SceneStatusPlanning, Idea: "chase"},
		},
	}
	require.NoError(t, local.Put(src))
	gw := gateway.New(remote, local)

	id, err := gw.Duplicate("p1", models.DuplicateProjectRequest{IncludeScenes: true, NewTitle: "Copy"})
	require.NoError(t, err)
	require.NotEqual(t, "p1", id)

	dup, err := local.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Copy", dup.Metadata.Title)
	require.Len(t, dup.Scenes, 2)
	for i, scene := range dup.Scenes {
		assert.NotEqual(t, src.Scenes[i].ID, scene.ID)
		assert.Equal(t, src.Scenes[i].Idea, scene.Idea)
	}

	// The source is untouched.
	orig, err := local.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Original", orig.Metadata.Title)
	assert.Equal(t, "s1", orig.Scenes[0].ID)
}

func TestGateway_DuplicateOfflineWithoutScenes(t *testing.T) {
	remote := &fakeRemote{err: transportErr()}
	local := newMemLocal()
	require.NoError(t, local.Put(models.ProjectAggregate{
		ID:     "p1",
		Scenes: []models.Scene{{ID: "s1", SequenceNumber: 1, Status: models.SceneStatusPlanning}},
	}))
	gw := gateway.New(remote, local)

	id, err := gw.Duplicate("p1", models.DuplicateProjectRequest{IncludeScenes: false})
	require.NoError(t, err)

	dup, err := local.Get(id)
	require.NoError(t, err)
	assert.Empty(t, dup.Scenes)
}
