package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"sceneflow-backend/internal/models"
)

// Store runs the server-side project queries against the relational
// database. Mutations that touch the scene set go through the upsert
// engine; everything else lives here.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// GetProject loads the full aggregate. Reading an ownerless aggregate
// claims it for callerID; reading someone else's returns ErrNotOwner.
func (s *Store) GetProject(projectID, callerID string) (*models.ProjectAggregate, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireOwnership(tx, projectID, callerID); err != nil {
		return nil, err
	}

	agg, err := LoadAggregate(tx, projectID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return agg, nil
}

// ListProjects returns summaries of the caller's projects, newest first.
// Ownerless legacy records are included; they are claimed on first read
// or write, not here.
func (s *Store) ListProjects(callerID string) ([]models.ProjectSummary, error) {
	rows, err := s.db.Query(`
		SELECT p.id, p.title, p.genre, p.content_type, p.last_updated,
		       (SELECT COUNT(*) FROM scenes sc WHERE sc.project_id = p.id)
		FROM projects p
		WHERE p.owner_id = $1 OR p.owner_id IS NULL
		ORDER BY p.last_updated DESC, p.id
	`, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var summaries []models.ProjectSummary
	for rows.Next() {
		var sum models.ProjectSummary
		err := rows.Scan(&sum.ID, &sum.Title, &sum.Genre, &sum.ContentType, &sum.LastUpdated, &sum.SceneCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteProject removes the aggregate and every scene it owns. Media rows
// referencing the deleted scenes are left alone; cleaning them up is the
// asset pipeline's job.
func (s *Store) DeleteProject(projectID, callerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireOwnership(tx, projectID, callerID); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM scene_settings WHERE scene_id IN (SELECT id FROM scenes WHERE project_id = $1)`, projectID); err != nil {
		return fmt.Errorf("failed to delete scene settings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM scenes WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete scenes: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM project_settings WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project settings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM projects WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return tx.Commit()
}

// DuplicateOptions controls the server-side deep copy.
type DuplicateOptions struct {
	IncludeScenes bool
	IncludeMedia  bool
	NewTitle      string
}

// DuplicateProject deep-copies the aggregate under freshly minted ids.
// Scene ids are never reused, so media is never shared between original
// and copy; with IncludeMedia the media rows themselves are copied under
// new ids, re-pointed at the new scenes.
func (s *Store) DuplicateProject(projectID, callerID string, opts DuplicateOptions) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireOwnership(tx, projectID, callerID); err != nil {
		return "", err
	}

	src, err := LoadAggregate(tx, projectID)
	if err != nil {
		return "", err
	}

	newID := uuid.New().String()
	title := src.Metadata.Title
	if opts.NewTitle != "" {
		title = opts.NewTitle
	}

	_, err = tx.Exec(`
		INSERT INTO projects (id, owner_id, title, genre, summary, character_notes, location_notes, content_type, cover_image_url, last_updated)
		SELECT $1, $2, $3, genre, summary, character_notes, location_notes, content_type, cover_image_url, last_updated
		FROM projects WHERE id = $4
	`, newID, callerID, title, projectID)
	if err != nil {
		return "", fmt.Errorf("failed to duplicate project: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO project_settings (project_id, camera_style, lighting_mood, sound_ambience)
		VALUES ($1, $2, $3, $4)
	`, newID, src.Settings.CameraStyle, src.Settings.LightingMood, src.Settings.SoundAmbience)
	if err != nil {
		return "", fmt.Errorf("failed to duplicate project settings: %w", err)
	}

	if opts.IncludeScenes {
		for _, scene := range src.Scenes {
			sceneID := uuid.New().String()
			_, err = tx.Exec(`
				INSERT INTO scenes (id, project_id, sequence_number, status, idea, enhanced, context_summary, generated)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, sceneID, newID, scene.SequenceNumber, scene.Status, scene.Idea, scene.Enhanced, scene.ContextSummary, scene.Generated)
			if err != nil {
				return "", fmt.Errorf("failed to duplicate scene: %w", err)
			}
			_, err = tx.Exec(`
				INSERT INTO scene_settings (scene_id, camera_style, lighting_mood, sound_ambience)
				VALUES ($1, $2, $3, $4)
			`, sceneID, scene.Settings.CameraStyle, scene.Settings.LightingMood, scene.Settings.SoundAmbience)
			if err != nil {
				return "", fmt.Errorf("failed to duplicate scene settings: %w", err)
			}
			if opts.IncludeMedia {
				if err := duplicateSceneMedia(tx, scene.ID, sceneID); err != nil {
					return "", err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	return newID, nil
}

// duplicateSceneMedia copies the media rows of srcSceneID under fresh
// ids pointing at dstSceneID. Rows are read fully before inserting so the
// transaction never interleaves an open cursor with writes.
func duplicateSceneMedia(tx *sql.Tx, srcSceneID, dstSceneID string) error {
	rows, err := tx.Query(`SELECT kind, storage_url FROM media WHERE scene_id = $1`, srcSceneID)
	if err != nil {
		return fmt.Errorf("failed to read scene media: %w", err)
	}

	type mediaRow struct {
		kind       string
		storageURL string
	}
	var media []mediaRow
	for rows.Next() {
		var m mediaRow
		if err := rows.Scan(&m.kind, &m.storageURL); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan media row: %w", err)
		}
		media = append(media, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read scene media: %w", err)
	}

	for _, m := range media {
		_, err := tx.Exec(`
			INSERT INTO media (id, scene_id, kind, storage_url)
			VALUES ($1, $2, $3, $4)
		`, uuid.New().String(), dstSceneID, m.kind, m.storageURL)
		if err != nil {
			return fmt.Errorf("failed to duplicate media row: %w", err)
		}
	}
	return nil
}

// UpdateSceneStatus is used by the generation service while a job runs.
func (s *Store) UpdateSceneStatus(sceneID, status string) error {
	_, err := s.db.Exec(`UPDATE scenes SET status = $1 WHERE id = $2`, status, sceneID)
	return err
}

// UpdateSceneGenerated stores the AI output for one scene.
func (s *Store) UpdateSceneGenerated(sceneID, enhanced, contextSummary string) error {
	_, err := s.db.Exec(`
		UPDATE scenes
		SET status = $1, enhanced = $2, context_summary = $3, generated = TRUE
		WHERE id = $4
	`, models.SceneStatusCompleted, enhanced, contextSummary, sceneID)
	return err
}
