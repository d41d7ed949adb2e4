package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sceneflow-backend/internal/models"
)

// HealthHandler godoc
// @Summary     Health check
// @Description Reachability probe used by clients to decide between remote and offline mode
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
