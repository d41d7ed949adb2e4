package models

import (
	"time"
)

// Scene status values. A scene starts in planning, moves to generating
// while the AI call is in flight, and lands in completed or failed.
const (
	SceneStatusPlanning   = "planning"
	SceneStatusGenerating = "generating"
	SceneStatusCompleted  = "completed"
	SceneStatusFailed     = "failed"
)

// ProjectAggregate is the unit of synchronization: metadata, production
// settings and the ordered scene list, saved and loaded as one value.
type ProjectAggregate struct {
	ID       string             `json:"id"`
	Metadata ProjectMetadata    `json:"metadata"`
	Settings ProductionSettings `json:"settings"`
	Scenes   []Scene            `json:"scenes"`
}

type ProjectMetadata struct {
	Title          string    `json:"title"`
	Genre          string    `json:"genre"`
	Summary        string    `json:"summary"`
	CharacterNotes string    `json:"character_notes"`
	LocationNotes  string    `json:"location_notes"`
	ContentType    string    `json:"content_type"`
	LastUpdated    time.Time `json:"last_updated"`
	CoverImageURL  string    `json:"cover_image_url,omitempty"`
}

// ProductionSettings is the project-level baseline applied to new scenes.
type ProductionSettings struct {
	CameraStyle   string `json:"camera_style"`
	LightingMood  string `json:"lighting_mood"`
	SoundAmbience string `json:"sound_ambience"`
}

// Scene is an ordered child of exactly one aggregate. The id is stable
// across edits; media records reference scenes by id, so a retained id
// keeps its media associations.
type Scene struct {
	ID             string             `json:"id"`
	SequenceNumber int                `json:"sequence_number"`
	Status         string             `json:"status"`
	Idea           string             `json:"idea"`
	Enhanced       string             `json:"enhanced,omitempty"`
	ContextSummary string             `json:"context_summary,omitempty"`
	Settings       ProductionSettings `json:"settings"`
	Generated      bool               `json:"generated"`
}

// ValidStatus reports whether s is one of the closed scene status set.
func ValidStatus(s string) bool {
	switch s {
	case SceneStatusPlanning, SceneStatusGenerating, SceneStatusCompleted, SceneStatusFailed:
		return true
	}
	return false
}

// Resequence renumbers every scene to its 1-based list position. This is
// the same renumbering the upsert engine recomputes server-side, so
// client and server never disagree about order after a successful save.
func Resequence(scenes []Scene) {
	for i := range scenes {
		scenes[i].SequenceNumber = i + 1
	}
}

// CloneScenes returns a deep value copy, used for optimistic snapshots.
func CloneScenes(scenes []Scene) []Scene {
	if scenes == nil {
		return nil
	}
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	return out
}
