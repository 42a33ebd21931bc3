package config

import (
	"os"
	"path/filepath"
	"testing"

	"go-workshop-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
ServiceURL = "http://localhost:8080"
Game = "MedievalEngineers"
DataPath = "/srv/me"
DefaultTags = ["survival", "pvp"]
ExcludeExtensions = [".psd"]
PollIntervalMs = 250
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServiceURL)
	assert.Equal(t, "MedievalEngineers", cfg.Game)
	assert.Equal(t, []string{"survival", "pvp"}, cfg.DefaultTags)
	assert.Equal(t, []string{".psd"}, cfg.ExcludeExtensions)
	assert.Equal(t, 250, cfg.PollIntervalMs)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg, profile, err := ApplyDefaults(models.Config{DataPath: "/games/se", DefaultVisibility: "bogus"})
	require.NoError(t, err)

	assert.Equal(t, "SpaceEngineers", cfg.Game)
	assert.Equal(t, "/games/se", profile.DataPath)
	assert.Equal(t, filepath.Join("/games/se", "workshop_sync_db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join("/games/se", "workshop_sync_cache"), cfg.CachePath)
	assert.Equal(t, defaultPollIntervalMs, cfg.PollIntervalMs)
	assert.Equal(t, defaultApiTimeoutSec, cfg.ApiClientTimeoutSec)
	assert.Equal(t, "Public", cfg.DefaultVisibility)
}

func TestApplyDefaults_UnknownGame(t *testing.T) {
	_, _, err := ApplyDefaults(models.Config{Game: "Minecraft"})
	assert.Error(t, err)
}
