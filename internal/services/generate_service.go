package services

import (
	"fmt"
	"log"

	"sceneflow-backend/internal/genai"
	"sceneflow-backend/internal/models"
	"sceneflow-backend/internal/progress"
	"sceneflow-backend/internal/store"
)

// Generator is the opaque AI collaborator: one scene in, structured
// text out.
type Generator interface {
	EnhanceScene(input genai.SceneInput) (*genai.Enhancement, error)
}

// GenerateService runs the batch scene-enhancement job. Scene rows are
// updated as the job goes, so a failure mid-run leaves completed scenes
// completed and the rest untouched or failed; the job itself is
// best-effort per scene.
type GenerateService struct {
	generator Generator
	store     *store.Store
	registry  *progress.Registry
}

func NewGenerateService(generator Generator, store *store.Store, registry *progress.Registry) *GenerateService {
	return &GenerateService{
		generator: generator,
		store:     store,
		registry:  registry,
	}
}

// GenerateScenes enhances the requested scenes (all planning scenes when
// sceneIDs is empty) in sequence order, feeding each scene's context
// summary into the next call. Progress frames go to connectionID when a
// listener is registered.
func (s *GenerateService) GenerateScenes(callerID, projectID string, sceneIDs []string, connectionID string) (int, error) {
	agg, err := s.store.GetProject(projectID, callerID)
	if err != nil {
		s.sendError(connectionID, err)
		return 0, err
	}

	targets := selectScenes(agg.Scenes, sceneIDs)
	if len(targets) == 0 {
		s.sendComplete(connectionID, projectID, 0, 0)
		return 0, nil
	}

	streaming := connectionID != "" && s.registry.Has(connectionID)

	generated := 0
	failed := 0
	previous := previousContext(agg.Scenes, targets[0])
	for i, scene := range targets {
		if err := s.store.UpdateSceneStatus(scene.ID, models.SceneStatusGenerating); err != nil {
			log.Printf("failed to mark scene %s generating: %v", scene.ID, err)
		}

		enhancement, err := s.generator.EnhanceScene(genai.SceneInput{
			Idea:          scene.Idea,
			PreviousScene: previous,
			CameraStyle:   effective(scene.Settings.CameraStyle, agg.Settings.CameraStyle),
			LightingMood:  effective(scene.Settings.LightingMood, agg.Settings.LightingMood),
			SoundAmbience: effective(scene.Settings.SoundAmbience, agg.Settings.SoundAmbience),
		})
		if err != nil {
			failed++
			if updateErr := s.store.UpdateSceneStatus(scene.ID, models.SceneStatusFailed); updateErr != nil {
				log.Printf("failed to mark scene %s failed: %v", scene.ID, updateErr)
			}
		} else {
			if err := s.store.UpdateSceneGenerated(scene.ID, enhancement.Enhanced, enhancement.ContextSummary); err != nil {
				failed++
				log.Printf("failed to store enhancement for scene %s: %v", scene.ID, err)
			} else {
				generated++
				previous = enhancement.ContextSummary
			}
		}

		if streaming {
			percent := (i + 1) * 100 / len(targets)
			s.registry.SendProgress(connectionID, percent,
				fmt.Sprintf("generated %d of %d scenes", i+1, len(targets)),
				progress.SceneGeneratedData(projectID, scene.ID, scene.SequenceNumber))
		}
	}

	if generated == 0 && failed > 0 {
		err := fmt.Errorf("all %d scenes failed to generate", failed)
		s.sendError(connectionID, err)
		return 0, err
	}

	s.sendComplete(connectionID, projectID, generated, failed)
	return generated, nil
}

// selectScenes picks the job's targets in sequence order.
func selectScenes(scenes []models.Scene, sceneIDs []string) []models.Scene {
	if len(sceneIDs) == 0 {
		var out []models.Scene
		for _, scene := range scenes {
			if scene.Status == models.SceneStatusPlanning {
				out = append(out, scene)
			}
		}
		return out
	}

	wanted := make(map[string]bool, len(sceneIDs))
	for _, id := range sceneIDs {
		wanted[id] = true
	}
	var out []models.Scene
	for _, scene := range scenes {
		if wanted[scene.ID] {
			out = append(out, scene)
		}
	}
	return out
}

// previousContext finds the continuity summary of the scene immediately
// before the first target.
func previousContext(scenes []models.Scene, first models.Scene) string {
	previous := ""
	for _, scene := range scenes {
		if scene.ID == first.ID {
			return previous
		}
		previous = scene.ContextSummary
	}
	return ""
}

func effective(override, base string) string {
	if override != "" {
		return override
	}
	return base
}

func (s *GenerateService) sendComplete(connectionID, projectID string, generated, failed int) {
	if connectionID == "" {
		return
	}
	s.registry.SendComplete(connectionID, progress.GenerationCompletedData(projectID, generated, failed))
}

func (s *GenerateService) sendError(connectionID string, err error) {
	if connectionID == "" {
		return
	}
	s.registry.SendError(connectionID, err.Error(), nil)
}
