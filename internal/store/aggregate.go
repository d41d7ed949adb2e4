package store

import (
	"database/sql"
	"fmt"

	"sceneflow-backend/internal/models"
)

// ClaimOwnership resolves the ownership invariant inside tx: an existing
// ownerless row is claimed for callerID (idempotent, the conditional
// UPDATE makes concurrent claims by the same caller a no-op), a row owned
// by someone else fails with ErrNotOwner, a missing row is fine (the
// caller is about to create it).
//
// The claim is a single conditional UPDATE checked by affected rows, not
// a read-then-write: under READ COMMITTED two concurrent first claims
// both see an ownerless row, and the loser's UPDATE matches zero rows
// once the winner commits. Zero rows means the claim did not happen, so
// the committed owner is re-read to decide between ErrNotOwner and a
// missing row.
func ClaimOwnership(tx *sql.Tx, projectID, callerID string) (exists bool, err error) {
	res, err := tx.Exec(`
		UPDATE projects SET owner_id = $1
		WHERE id = $2 AND (owner_id IS NULL OR owner_id = '' OR owner_id = $1)
	`, callerID, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to claim project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim project: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	var owner sql.NullString
	err = tx.QueryRow(`SELECT owner_id FROM projects WHERE id = $1`, projectID).Scan(&owner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read project owner: %w", err)
	}
	if owner.Valid && owner.String != "" && owner.String != callerID {
		return true, models.ErrNotOwner
	}
	return true, nil
}

// requireOwnership is ClaimOwnership for callers that require the row to
// exist.
func requireOwnership(tx *sql.Tx, projectID, callerID string) error {
	exists, err := ClaimOwnership(tx, projectID, callerID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrNotFound
	}
	return nil
}

// LoadAggregate reads the full aggregate inside tx, scenes ordered by
// sequence number.
func LoadAggregate(tx *sql.Tx, projectID string) (*models.ProjectAggregate, error) {
	agg := &models.ProjectAggregate{ID: projectID}

	err := tx.QueryRow(`
		SELECT title, genre, summary, character_notes, location_notes, content_type, cover_image_url, last_updated
		FROM projects WHERE id = $1
	`, projectID).Scan(
		&agg.Metadata.Title, &agg.Metadata.Genre, &agg.Metadata.Summary,
		&agg.Metadata.CharacterNotes, &agg.Metadata.LocationNotes,
		&agg.Metadata.ContentType, &agg.Metadata.CoverImageURL, &agg.Metadata.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	err = tx.QueryRow(`
		SELECT camera_style, lighting_mood, sound_ambience
		FROM project_settings WHERE project_id = $1
	`, projectID).Scan(&agg.Settings.CameraStyle, &agg.Settings.LightingMood, &agg.Settings.SoundAmbience)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load project settings: %w", err)
	}

	rows, err := tx.Query(`
		SELECT s.id, s.sequence_number, s.status, s.idea, s.enhanced, s.context_summary, s.generated,
		       COALESCE(ss.camera_style, ''), COALESCE(ss.lighting_mood, ''), COALESCE(ss.sound_ambience, '')
		FROM scenes s
		LEFT JOIN scene_settings ss ON ss.scene_id = s.id
		WHERE s.project_id = $1
		ORDER BY s.sequence_number
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var scene models.Scene
		err := rows.Scan(
			&scene.ID, &scene.SequenceNumber, &scene.Status, &scene.Idea,
			&scene.Enhanced, &scene.ContextSummary, &scene.Generated,
			&scene.Settings.CameraStyle, &scene.Settings.LightingMood, &scene.Settings.SoundAmbience,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		agg.Scenes = append(agg.Scenes, scene)
	}

	return agg, rows.Err()
}
