package models

// SaveProjectRequest carries the full aggregate payload. Present fields
// overwrite stored values; absent fields default to empty (this is a
// full upsert, not a partial patch).
type SaveProjectRequest struct {
	Project ProjectAggregate `json:"project"`
}

type DuplicateProjectRequest struct {
	IncludeScenes bool   `json:"include_scenes"`
	IncludeMedia  bool   `json:"include_media"`
	NewTitle      string `json:"new_title,omitempty"`
}

// GenerateScenesRequest starts the batch scene-enhancement job for the
// given scene ids (all planning scenes when empty).
type GenerateScenesRequest struct {
	SceneIDs []string `json:"scene_ids,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
