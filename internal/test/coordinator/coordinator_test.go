package coordinator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneflow-backend/internal/coordinator"
	"sceneflow-backend/internal/models"
)

// fakePersister records saved aggregates and can be told to fail.
type fakePersister struct {
	err   error
	saved []models.ProjectAggregate
}

func (f *fakePersister) Save(agg models.ProjectAggregate, connectionID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, agg)
	return agg.ID, nil
}

func seedAggregate() models.ProjectAggregate {
	return models.ProjectAggregate{
		ID:       "p1",
		Metadata: models.ProjectMetadata{Title: "Draft", LastUpdated: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		Scenes: []models.Scene{
			{ID: "a", SequenceNumber: 1, Status: models.SceneStatusCompleted, Idea: "opening"},
			{ID: "b", SequenceNumber: 2, Status: models.SceneStatusPlanning, Idea: "chase"},
			{ID: "c", SequenceNumber: 3, Status: models.SceneStatusPlanning, Idea: "finale"},
		},
	}
}

func newCoordinator(p *fakePersister) *coordinator.Coordinator {
	return coordinator.New(p, seedAggregate())
}

func sceneIDs(agg models.ProjectAggregate) []string {
	ids := make([]string, len(agg.Scenes))
	for i, s := range agg.Scenes {
		ids[i] = s.ID
	}
	return ids
}

func TestCoordinator_MoveSceneRenumbers(t *testing.T) {
	p := &fakePersister{}
	c := newCoordinator(p)

	require.NoError(t, c.MoveScene(2, 0))

	agg := c.Aggregate()
	assert.Equal(t, []string{"c", "a", "b"}, sceneIDs(agg))
	for i, scene := range agg.Scenes {
		assert.Equal(t, i+1, scene.SequenceNumber)
	}

	require.Len(t, p.saved, 1)
	assert.Equal(t, []string{"c", "a", "b"}, sceneIDs(p.saved[0]))
}

func TestCoordinator_MoveSceneOutOfRange(t *testing.T) {
	p := &fakePersister{}
	c := newCoordinator(p)

	assert.Error(t, c.MoveScene(0, 3))
	assert.Error(t, c.MoveScene(-1, 0))
	assert.Empty(t, p.saved)
	assert.Equal(t, []string{"a", "b", "c"}, sceneIDs(c.Aggregate()))
}

func TestCoordinator_RollbackOnPersistFailure(t *testing.T) {
	p := &fakePersister{err: errors.New("save failed")}
	c := newCoordinator(p)
	before := c.Aggregate()

	err := c.MoveScene(0, 2)
	require.Error(t, err)

	after := c.Aggregate()
	assert.Equal(t, sceneIDs(before), sceneIDs(after))
	assert.Equal(t, before.Metadata.LastUpdated, after.Metadata.LastUpdated)
}

func TestCoordinator_BulkDeleteRenumbers(t *testing.T) {
	p := &fakePersister{}
	c := newCoordinator(p)

	require.NoError(t, c.BulkDelete([]string{"a", "c"}))

	agg := c.Aggregate()
	require.Len(t, agg.Scenes, 1)
	assert.Equal(t, "b", agg.Scenes[0].ID)
	assert.Equal(t, 1, agg.Scenes[0].SequenceNumber)
}

func TestCoordinator_BulkUpdateStatus(t *testing.T) {
	p := &fakePersister{}
	c := newCoordinator(p)

	require.NoError(t, c.BulkUpdateStatus([]string{"b", "c"}, models.SceneStatusGenerating))

	agg := c.Aggregate()
	assert.Equal(t, models.SceneStatusCompleted, agg.Scenes[0].Status)
	assert.Equal(t, models.SceneStatusGenerating, agg.Scenes[1].Status)
	assert.Equal(t, models.SceneStatusGenerating, agg.Scenes[2].Status)
}

func TestCoordinator_BulkUpdateStatusRejectsUnknown(t *testing.T) {
	p := &fakePersister{}
	c := newCoordinator(p)

	assert.Error(t, c.BulkUpdateStatus([]string{"a"}, "archived"))
	assert.Empty(t, p.saved)
}

func TestCoordinator_AggregateIsACopy(t *testing.T) {
	c := newCoordinator(&fakePersister{})

	agg := c.Aggregate()
	agg.Scenes[0].Idea = "tampered"

	assert.Equal(t, "opening", c.Aggregate().Scenes[0].Idea)
}

// blockingPersister holds every save until released, to observe the
// coordinator's state while persistence is in flight.
type blockingPersister struct {
	release chan struct{}
}

func (p *blockingPersister) Save(agg models.ProjectAggregate, connectionID string) (string, error) {
	<-p.release
	return agg.ID, nil
}

func TestCoordinator_OptimisticStateReadableDuringSave(t *testing.T) {
	p := &blockingPersister{release: make(chan struct{})}
	c := coordinator.New(p, seedAggregate())

	done := make(chan error, 1)
	go func() { done <- c.MoveScene(2, 0) }()

	// While the save is blocked, readers already see the new order.
	require.Eventually(t, func() bool {
		ids := sceneIDs(c.Aggregate())
		return len(ids) == 3 && ids[0] == "c"
	}, time.Second, 5*time.Millisecond)

	close(p.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"c", "a", "b"}, sceneIDs(c.Aggregate()))
}

func TestCoordinator_MutationBumpsLastUpdated(t *testing.T) {
	c := newCoordinator(&fakePersister{})
	before := c.Aggregate().Metadata.LastUpdated

	require.NoError(t, c.MoveScene(0, 1))

	assert.True(t, c.Aggregate().Metadata.LastUpdated.After(before))
}
