package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sceneflow-backend/internal/models"
	"sceneflow-backend/internal/progress"
	"sceneflow-backend/internal/services"
)

type GenerateHandler struct {
	service  *services.GenerateService
	registry *progress.Registry
}

func NewGenerateHandler(service *services.GenerateService, registry *progress.Registry) *GenerateHandler {
	return &GenerateHandler{
		service:  service,
		registry: registry,
	}
}

// GenerateScenes godoc
// @Summary     Enhance scenes with AI
// @Description Runs the batch scene-enhancement job. With a registered X-Connection-ID the job runs in the background and streams per-scene progress.
// @Tags        generate
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.GenerateScenesRequest false "Scene selection (all planning scenes when omitted)"
// @Success     200 {object} models.GenerateScenesResponse
// @Success     202 {object} models.GenerateScenesResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/generate [post]
func (h *GenerateHandler) GenerateScenes(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	projectID := c.Param("project_id")

	var req models.GenerateScenesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.SceneIDs = nil
	}

	connectionID := c.GetHeader(ConnectionIDHeader)

	if connectionID != "" && h.registry.Has(connectionID) {
		go h.service.GenerateScenes(callerID, projectID, req.SceneIDs, connectionID)
		c.JSON(http.StatusAccepted, models.GenerateScenesResponse{
			ProjectID: projectID,
			Status:    "generating",
		})
		return
	}

	count, err := h.service.GenerateScenes(callerID, projectID, req.SceneIDs, "")
	if err != nil {
		writeError(c, "failed to generate scenes", err)
		return
	}

	c.JSON(http.StatusOK, models.GenerateScenesResponse{
		ProjectID: projectID,
		Status:    "completed",
		Count:     count,
	})
}
