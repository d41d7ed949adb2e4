package coordinator

import (
	"fmt"
	"sync"
	"time"

	"sceneflow-backend/internal/models"
)

// Persister is the save surface the coordinator needs; the gateway
// satisfies it.
type Persister interface {
	Save(agg models.ProjectAggregate, connectionID string) (string, error)
}

// Coordinator makes ordering and bulk edits feel instantaneous: the
// in-memory aggregate is mutated synchronously and is readable while the
// save is in flight; on a persistence failure the pre-mutation snapshot
// is restored and the failure is reported to the caller.
//
// Two locks: mu guards only the in-memory state, so Aggregate never
// blocks on persistence; saveMu serializes whole mutations end to end,
// so overlapping saves of the same project cannot race each other and a
// rollback cannot clobber a newer mutation.
type Coordinator struct {
	persister Persister

	saveMu sync.Mutex
	mu     sync.Mutex

	aggregate models.ProjectAggregate
}

func New(persister Persister, aggregate models.ProjectAggregate) *Coordinator {
	aggregate.Scenes = models.CloneScenes(aggregate.Scenes)
	return &Coordinator{
		persister: persister,
		aggregate: aggregate,
	}
}

// Aggregate returns a value copy of the current state.
func (c *Coordinator) Aggregate() models.ProjectAggregate {
	c.mu.Lock()
	defer c.mu.Unlock()
	agg := c.aggregate
	agg.Scenes = models.CloneScenes(c.aggregate.Scenes)
	return agg
}

// MoveScene removes the scene at position from and reinserts it at
// position to (0-based), then renumbers every scene to its 1-based
// position — the same renumbering the server recomputes on save.
func (c *Coordinator) MoveScene(from, to int) error {
	return c.mutate(func(scenes []models.Scene) ([]models.Scene, error) {
		if from < 0 || from >= len(scenes) || to < 0 || to >= len(scenes) {
			return nil, fmt.Errorf("move out of range: %d -> %d with %d scenes", from, to, len(scenes))
		}
		moved := scenes[from]
		scenes = append(scenes[:from], scenes[from+1:]...)
		scenes = append(scenes[:to], append([]models.Scene{moved}, scenes[to:]...)...)
		return scenes, nil
	})
}

// BulkUpdateStatus sets the status of every listed scene.
func (c *Coordinator) BulkUpdateStatus(sceneIDs []string, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("unknown scene status %q", status)
	}
	wanted := idSet(sceneIDs)
	return c.mutate(func(scenes []models.Scene) ([]models.Scene, error) {
		for i := range scenes {
			if wanted[scenes[i].ID] {
				scenes[i].Status = status
			}
		}
		return scenes, nil
	})
}

// BulkDelete removes every listed scene and renumbers the rest.
func (c *Coordinator) BulkDelete(sceneIDs []string) error {
	wanted := idSet(sceneIDs)
	return c.mutate(func(scenes []models.Scene) ([]models.Scene, error) {
		kept := scenes[:0]
		for _, scene := range scenes {
			if !wanted[scene.ID] {
				kept = append(kept, scene)
			}
		}
		return kept, nil
	})
}

// mutate applies fn to a working copy of the scene list, installs the
// result optimistically, persists with mu released so readers see the
// new state immediately, and rolls back to the snapshot if persistence
// fails.
func (c *Coordinator) mutate(fn func([]models.Scene) ([]models.Scene, error)) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()

	// Value snapshot: the mutation below cannot alias into it.
	snapshot := c.aggregate
	snapshot.Scenes = models.CloneScenes(c.aggregate.Scenes)

	scenes, err := fn(models.CloneScenes(c.aggregate.Scenes))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	models.Resequence(scenes)

	c.aggregate.Scenes = scenes
	c.aggregate.Metadata.LastUpdated = time.Now().UTC()

	// The persister gets its own copy; the installed state stays free to
	// read while the save runs.
	saved := c.aggregate
	saved.Scenes = models.CloneScenes(scenes)
	c.mu.Unlock()

	if _, err := c.persister.Save(saved, ""); err != nil {
		c.mu.Lock()
		c.aggregate = snapshot
		c.mu.Unlock()
		return err
	}
	return nil
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
