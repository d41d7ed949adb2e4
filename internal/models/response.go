package models

import "time"

type SaveProjectResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectSummary struct {
	ID          string    `json:"project_id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	ContentType string    `json:"content_type"`
	SceneCount  int       `json:"scene_count"`
	LastUpdated time.Time `json:"last_updated"`
}

type DuplicateProjectResponse struct {
	ProjectID string `json:"project_id"`
}

type GenerateScenesResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Count     int    `json:"count"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
