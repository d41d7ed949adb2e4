package engine

import (
	"database/sql"
	"fmt"
	"time"

	"sceneflow-backend/internal/models"
	"sceneflow-backend/internal/progress"
	"sceneflow-backend/internal/store"
)

// DefaultBatchSize bounds one unit of scene writes. Tunable so tests can
// exercise multi-batch saves with small aggregates.
const DefaultBatchSize = 25

// Engine merges a full project aggregate into the relational store, or
// changes nothing. One transaction spans the whole operation; per-aggregate
// serialization is delegated to the database's row-level locking.
type Engine struct {
	db        *sql.DB
	registry  *progress.Registry
	batchSize int
}

func New(db *sql.DB, registry *progress.Registry, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		db:        db,
		registry:  registry,
		batchSize: batchSize,
	}
}

// Upsert makes the store reflect agg for callerID. When connectionID has
// a registered listener, batch progress and the terminal frame are
// delivered through the registry; the return value is the same either way.
func (e *Engine) Upsert(callerID string, agg models.ProjectAggregate, connectionID string) (string, error) {
	if err := validate(agg); err != nil {
		e.reportError(connectionID, err)
		return "", err
	}

	// Decide once whether to stream; a listener attaching mid-save only
	// sees the terminal frame.
	streaming := connectionID != "" && e.registry != nil && e.registry.Has(connectionID)

	id, err := e.upsert(callerID, agg, connectionID, streaming)
	if err != nil {
		e.reportError(connectionID, err)
		return "", err
	}

	if streaming {
		e.registry.SendComplete(connectionID, progress.SaveCompletedData(id))
	}
	return id, nil
}

func (e *Engine) upsert(callerID string, agg models.ProjectAggregate, connectionID string, streaming bool) (string, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := store.ClaimOwnership(tx, agg.ID, callerID); err != nil {
		return "", err
	}

	if err := upsertProject(tx, callerID, agg); err != nil {
		return "", err
	}

	if err := e.upsertScenes(tx, agg, connectionID, streaming); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return agg.ID, nil
}

// upsertScenes diffs the stored scene-id set against the payload. Missing
// ids are deleted (their scene settings too, media rows untouched);
// incoming scenes are written in place in bounded batches, resequenced to
// their 1-based payload position.
func (e *Engine) upsertScenes(tx *sql.Tx, agg models.ProjectAggregate, connectionID string, streaming bool) error {
	existing, err := existingSceneIDs(tx, agg.ID)
	if err != nil {
		return err
	}

	incoming := make(map[string]bool, len(agg.Scenes))
	for _, scene := range agg.Scenes {
		incoming[scene.ID] = true
	}

	ours := make(map[string]bool, len(existing))
	for _, id := range existing {
		ours[id] = true
	}

	// A payload id that exists under another project is a caller error,
	// not a transfer: writing it in place would mutate the other
	// project's scene.
	for _, scene := range agg.Scenes {
		if ours[scene.ID] {
			continue
		}
		var otherProject string
		err := tx.QueryRow(`SELECT project_id FROM scenes WHERE id = $1`, scene.ID).Scan(&otherProject)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check scene id: %w", err)
		}
		return fmt.Errorf("%w: scene %s belongs to another project", models.ErrInvalidAggregate, scene.ID)
	}

	for _, id := range existing {
		if incoming[id] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM scene_settings WHERE scene_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete scene settings: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM scenes WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete scene: %w", err)
		}
	}

	total := len(agg.Scenes)
	for start := 0; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}

		for i := start; i < end; i++ {
			if err := upsertScene(tx, agg.ID, agg.Scenes[i], i+1); err != nil {
				return err
			}
		}

		if streaming {
			percent := end * 100 / total
			e.registry.SendProgress(connectionID, percent,
				fmt.Sprintf("saved %d of %d scenes", end, total),
				progress.SaveBatchData(agg.ID, end, total))
		}
	}

	return nil
}

func upsertProject(tx *sql.Tx, callerID string, agg models.ProjectAggregate) error {
	lastUpdated := agg.Metadata.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	// Full field-level upsert: every metadata field in the payload
	// overwrites the stored value. owner_id is only written on insert;
	// claims on existing rows happened above.
	_, err := tx.Exec(`
		INSERT INTO projects (id, owner_id, title, genre, summary, character_notes, location_notes, content_type, cover_image_url, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			genre = excluded.genre,
			summary = excluded.summary,
			character_notes = excluded.character_notes,
			location_notes = excluded.location_notes,
			content_type = excluded.content_type,
			cover_image_url = excluded.cover_image_url,
			last_updated = excluded.last_updated
	`, agg.ID, callerID, agg.Metadata.Title, agg.Metadata.Genre, agg.Metadata.Summary,
		agg.Metadata.CharacterNotes, agg.Metadata.LocationNotes, agg.Metadata.ContentType,
		agg.Metadata.CoverImageURL, lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO project_settings (project_id, camera_style, lighting_mood, sound_ambience)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) DO UPDATE SET
			camera_style = excluded.camera_style,
			lighting_mood = excluded.lighting_mood,
			sound_ambience = excluded.sound_ambience
	`, agg.ID, agg.Settings.CameraStyle, agg.Settings.LightingMood, agg.Settings.SoundAmbience)
	if err != nil {
		return fmt.Errorf("failed to upsert project settings: %w", err)
	}

	return nil
}

// upsertScene writes one scene row in place. A retained id is updated,
// never replaced, which is what keeps media associations intact.
func upsertScene(tx *sql.Tx, projectID string, scene models.Scene, sequence int) error {
	status := scene.Status
	if status == "" {
		status = models.SceneStatusPlanning
	}

	_, err := tx.Exec(`
		INSERT INTO scenes (id, project_id, sequence_number, status, idea, enhanced, context_summary, generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sequence_number = excluded.sequence_number,
			status = excluded.status,
			idea = excluded.idea,
			enhanced = excluded.enhanced,
			context_summary = excluded.context_summary,
			generated = excluded.generated
	`, scene.ID, projectID, sequence, status, scene.Idea, scene.Enhanced, scene.ContextSummary, scene.Generated)
	if err != nil {
		return fmt.Errorf("failed to upsert scene: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO scene_settings (scene_id, camera_style, lighting_mood, sound_ambience)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scene_id) DO UPDATE SET
			camera_style = excluded.camera_style,
			lighting_mood = excluded.lighting_mood,
			sound_ambience = excluded.sound_ambience
	`, scene.ID, scene.Settings.CameraStyle, scene.Settings.LightingMood, scene.Settings.SoundAmbience)
	if err != nil {
		return fmt.Errorf("failed to upsert scene settings: %w", err)
	}

	return nil
}

func existingSceneIDs(tx *sql.Tx, projectID string) ([]string, error) {
	rows, err := tx.Query(`SELECT id FROM scenes WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan scene id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func validate(agg models.ProjectAggregate) error {
	if agg.ID == "" {
		return fmt.Errorf("%w: missing project id", models.ErrInvalidAggregate)
	}

	seen := make(map[string]bool, len(agg.Scenes))
	for _, scene := range agg.Scenes {
		if scene.ID == "" {
			return fmt.Errorf("%w: scene with missing id", models.ErrInvalidAggregate)
		}
		if seen[scene.ID] {
			return fmt.Errorf("%w: duplicate scene id %s", models.ErrInvalidAggregate, scene.ID)
		}
		seen[scene.ID] = true
		if scene.Status != "" && !models.ValidStatus(scene.Status) {
			return fmt.Errorf("%w: unknown scene status %q", models.ErrInvalidAggregate, scene.Status)
		}
	}
	return nil
}

func (e *Engine) reportError(connectionID string, err error) {
	if connectionID == "" || e.registry == nil {
		return
	}
	e.registry.SendError(connectionID, err.Error(), nil)
}
