// @title           Sceneflow Backend API
// @version         1.0.0
// @description     Backend API for assembling short-form video projects: ordered AI-generated scene specifications with project metadata, transactional aggregate saves, and progress streaming for long-running operations.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"sceneflow-backend/internal/config"
	"sceneflow-backend/internal/database"
	"sceneflow-backend/internal/engine"
	"sceneflow-backend/internal/genai"
	"sceneflow-backend/internal/handlers"
	"sceneflow-backend/internal/middleware"
	"sceneflow-backend/internal/progress"
	"sceneflow-backend/internal/services"
	"sceneflow-backend/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect and migrate
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer migrator.Close()
	if err := migrator.Run(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")

	db := migrator.DB()

	// Core components
	registry := progress.NewRegistry()
	projectStore := store.NewStore(db)
	upsertEngine := engine.New(db, registry, cfg.SceneBatchSize)
	genaiClient := genai.NewClient(cfg.GenAIBaseURL, cfg.GenAIAPIKey)
	generateService := services.NewGenerateService(genaiClient, projectStore, registry)

	// Handlers
	projectsHandler := handlers.NewProjectsHandler(upsertEngine, projectStore, registry)
	generateHandler := handlers.NewGenerateHandler(generateService, registry)
	progressHandler := handlers.NewProgressHandler(registry)

	// Setup router
	router := gin.Default()

	// Health check (no auth, also serves as the client reachability probe)
	router.GET("/health", handlers.HealthHandler)

	// Progress channels (no auth; the connection id is the capability,
	// and WebSocket clients cannot set an Authorization header)
	router.GET("/api/v1/progress/:connection_id", progressHandler.Attach)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Project routes
	api.POST("/projects", projectsHandler.SaveProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)
	api.POST("/projects/:project_id/duplicate", projectsHandler.DuplicateProject)

	// Scene generation
	api.POST("/projects/:project_id/generate", generateHandler.GenerateScenes)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
