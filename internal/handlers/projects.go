package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sceneflow-backend/internal/engine"
	"sceneflow-backend/internal/middleware"
	"sceneflow-backend/internal/models"
	"sceneflow-backend/internal/progress"
	"sceneflow-backend/internal/store"
)

// ConnectionIDHeader carries the caller's progress connection id on
// requests that may run long. The server streams frames instead of
// responding synchronously when a listener is registered under that id.
const ConnectionIDHeader = "X-Connection-ID"

type ProjectsHandler struct {
	engine   *engine.Engine
	store    *store.Store
	registry *progress.Registry
}

func NewProjectsHandler(engine *engine.Engine, store *store.Store, registry *progress.Registry) *ProjectsHandler {
	return &ProjectsHandler{
		engine:   engine,
		store:    store,
		registry: registry,
	}
}

// SaveProject godoc
// @Summary     Save a project aggregate
// @Description Upserts metadata, settings and the full ordered scene list in one transaction. With a registered X-Connection-ID the save runs in the background and the result arrives on the progress channel.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.SaveProjectRequest true "Full project aggregate"
// @Success     200 {object} models.SaveProjectResponse
// @Success     202 {object} models.SaveProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) SaveProject(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	var req models.SaveProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	connectionID := c.GetHeader(ConnectionIDHeader)

	// A caller with a live progress channel is not waiting on this
	// response; it gets the final answer through the channel.
	if connectionID != "" && h.registry.Has(connectionID) {
		agg := req.Project
		go h.engine.Upsert(callerID, agg, connectionID)
		c.JSON(http.StatusAccepted, models.SaveProjectResponse{
			ProjectID: agg.ID,
			Status:    "saving",
		})
		return
	}

	id, err := h.engine.Upsert(callerID, req.Project, "")
	if err != nil {
		writeError(c, "failed to save project", err)
		return
	}

	c.JSON(http.StatusOK, models.SaveProjectResponse{
		ProjectID: id,
		Status:    "saved",
	})
}

// ListProjects godoc
// @Summary     List the caller's projects
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	summaries, err := h.store.ListProjects(callerID)
	if err != nil {
		writeError(c, "failed to list projects", err)
		return
	}
	if summaries == nil {
		summaries = []models.ProjectSummary{}
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

// GetProject godoc
// @Summary     Get a full project aggregate
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.ProjectAggregate
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	agg, err := h.store.GetProject(c.Param("project_id"), callerID)
	if err != nil {
		writeError(c, "failed to get project", err)
		return
	}
	if agg.Scenes == nil {
		agg.Scenes = []models.Scene{}
	}

	c.JSON(http.StatusOK, agg)
}

// DuplicateProject godoc
// @Summary     Duplicate a project
// @Description Server-side deep copy under freshly minted ids. Media is never shared between original and copy.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.DuplicateProjectRequest true "Duplicate options"
// @Success     200 {object} models.DuplicateProjectResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/duplicate [post]
func (h *ProjectsHandler) DuplicateProject(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	var req models.DuplicateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// No body means a plain copy including scenes.
		req = models.DuplicateProjectRequest{IncludeScenes: true}
	}

	newID, err := h.store.DuplicateProject(c.Param("project_id"), callerID, store.DuplicateOptions{
		IncludeScenes: req.IncludeScenes,
		IncludeMedia:  req.IncludeMedia,
		NewTitle:      req.NewTitle,
	})
	if err != nil {
		writeError(c, "failed to duplicate project", err)
		return
	}

	c.JSON(http.StatusOK, models.DuplicateProjectResponse{ProjectID: newID})
}

// DeleteProject godoc
// @Summary     Delete a project and its scenes
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} map[string]string
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteProject(c.Param("project_id"), callerID); err != nil {
		writeError(c, "failed to delete project", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "project deleted successfully"})
}

func callerID(c *gin.Context) (string, bool) {
	id, exists := c.Get(middleware.CallerIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "caller id not found"})
		return "", false
	}
	return id.(string), true
}

func writeError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidAggregate):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, models.ErrorResponse{
		Error:   msg,
		Message: err.Error(),
	})
}
