package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go-workshop-sync/internal/models" // Import models for the Config struct

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus" // Use logrus
)

const (
	defaultConfigFile     = "config.toml"
	defaultPollIntervalMs = 500
	defaultApiTimeoutSec  = 60
)

// LoadConfig reads the configuration from the specified path (defaulting to "config.toml")
// and populates the provided models.Config struct.
// It returns the loaded config and any error encountered.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = defaultConfigFile
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		// Return the error instead of logging fatal
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if cfg.ServiceURL == "" {
		log.Warnf("Warning: ServiceURL is not set in %s, only compile testing will be available", configFilePath)
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyDefaults fills unset values and resolves the game profile. DataPath
// defaults to <user config dir>/<game>, DatabasePath and CachePath default to
// locations below DataPath.
func ApplyDefaults(cfg models.Config) (models.Config, models.GameProfile, error) {
	profile, err := models.LookupGameProfile(cfg.Game)
	if err != nil {
		return cfg, models.GameProfile{}, err
	}
	cfg.Game = profile.Name

	if cfg.DataPath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return cfg, models.GameProfile{}, fmt.Errorf("cannot determine data directory for %s: %w", profile.Name, err)
		}
		cfg.DataPath = filepath.Join(base, profile.DataDirName)
		log.Debugf("DataPath not set, defaulting to %s", cfg.DataPath)
	}
	profile.DataPath = cfg.DataPath

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataPath, "workshop_sync_db")
	}
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(cfg.DataPath, "workshop_sync_cache")
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = defaultPollIntervalMs
	}
	if cfg.ApiClientTimeoutSec <= 0 {
		cfg.ApiClientTimeoutSec = defaultApiTimeoutSec
	}
	if _, err := models.ParseVisibility(cfg.DefaultVisibility); err != nil {
		log.WithError(err).Warn("Invalid DefaultVisibility in config, using Public")
		cfg.DefaultVisibility = string(models.VisibilityPublic)
	}
	return cfg, profile, nil
}
