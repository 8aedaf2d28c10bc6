package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string
	DatabaseURL string
	TablePrefix string

	// LockLifetime is the deployment-wide checkout lock validity window
	LockLifetime time.Duration

	Pipeline PipelineConfig

	// LogDir, when set, mirrors logs to rotated files in that directory
	LogDir string

	// Debug enables debug-level logging
	Debug bool
}

type PipelineConfig struct {
	// Workers is the size of the background worker pool
	Workers int
	// QueueSize is the task channel buffer
	QueueSize int
	// ClamdAddress is the clamd TCP address; empty disables scanning
	ClamdAddress string
	// ScanInterval is the period of the scan-all-unscanned sweep
	ScanInterval time.Duration
	// PreviewWidth/PreviewHeight bound generated preview images
	PreviewWidth  int
	PreviewHeight int
}

// fileOverlay is the optional YAML config file shape
type fileOverlay struct {
	LockLifetimeSeconds int `yaml:"lock_lifetime_seconds"`
	Pipeline            struct {
		Workers             int    `yaml:"workers"`
		QueueSize           int    `yaml:"queue_size"`
		ClamdAddress        string `yaml:"clamd_address"`
		ScanIntervalSeconds int    `yaml:"scan_interval_seconds"`
		PreviewWidth        int    `yaml:"preview_width"`
		PreviewHeight       int    `yaml:"preview_height"`
	} `yaml:"pipeline"`
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Environment:  env,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		TablePrefix:  getTablePrefix(env),
		LockLifetime: time.Duration(getEnvInt("LOCK_LIFETIME_SECONDS", 3600)) * time.Second,
		Pipeline: PipelineConfig{
			Workers:       getEnvInt("PIPELINE_WORKERS", 4),
			QueueSize:     getEnvInt("PIPELINE_QUEUE_SIZE", 256),
			ClamdAddress:  getEnv("CLAMD_ADDRESS", ""),
			ScanInterval:  time.Duration(getEnvInt("SCAN_INTERVAL_SECONDS", 900)) * time.Second,
			PreviewWidth:  getEnvInt("PREVIEW_WIDTH", 640),
			PreviewHeight: getEnvInt("PREVIEW_HEIGHT", 900),
		},
		LogDir: getEnv("LOG_DIR", ""),
		Debug:  getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}

	// Optional YAML overlay for pipeline/lock tuning
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: config file %s ignored: %v\n", path, err)
		}
	}

	return cfg
}

// applyFile overlays non-zero values from a YAML file onto the config
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if overlay.LockLifetimeSeconds > 0 {
		c.LockLifetime = time.Duration(overlay.LockLifetimeSeconds) * time.Second
	}
	if overlay.Pipeline.Workers > 0 {
		c.Pipeline.Workers = overlay.Pipeline.Workers
	}
	if overlay.Pipeline.QueueSize > 0 {
		c.Pipeline.QueueSize = overlay.Pipeline.QueueSize
	}
	if overlay.Pipeline.ClamdAddress != "" {
		c.Pipeline.ClamdAddress = overlay.Pipeline.ClamdAddress
	}
	if overlay.Pipeline.ScanIntervalSeconds > 0 {
		c.Pipeline.ScanInterval = time.Duration(overlay.Pipeline.ScanIntervalSeconds) * time.Second
	}
	if overlay.Pipeline.PreviewWidth > 0 {
		c.Pipeline.PreviewWidth = overlay.Pipeline.PreviewWidth
	}
	if overlay.Pipeline.PreviewHeight > 0 {
		c.Pipeline.PreviewHeight = overlay.Pipeline.PreviewHeight
	}

	return nil
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
