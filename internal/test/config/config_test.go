package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneflow-backend/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/sceneflow_test")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_RequiresDatabaseURLAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_SceneBatchSizeFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCENE_BATCH_SIZE", "5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.SceneBatchSize)
}

func TestLoad_SceneBatchSizeDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCENE_BATCH_SIZE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.SceneBatchSize)
}

func TestLoad_SceneBatchSizeIgnoresGarbage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCENE_BATCH_SIZE", "many")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.SceneBatchSize)
}
