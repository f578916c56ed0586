// Package config provides configuration helpers for go-detect commands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults. The backend address is the fixed local detection service.
const (
	DefaultBackendURL     = "http://localhost:5000"
	DefaultDashboardPort  = "8080"
	DefaultCameraDevice   = 0
	DefaultCameraInterval = time.Second
)

// Config holds process-level settings shared by the commands.
type Config struct {
	BackendURL     string
	DashboardPort  string
	CameraDevice   int
	CameraDir      string
	CameraInterval time.Duration
	LocalModel     string
	LogLevel       string
}

// Load reads defaults overridden by environment variables.
// Command-line flags are applied on top by each command.
func Load() Config {
	return Config{
		BackendURL:     BackendURL(),
		DashboardPort:  env("DETECT_PORT", DefaultDashboardPort),
		CameraDevice:   envInt("CAMERA_DEVICE", DefaultCameraDevice),
		CameraDir:      os.Getenv("CAMERA_DIR"),
		CameraInterval: envDuration("CAMERA_INTERVAL", DefaultCameraInterval),
		LocalModel:     os.Getenv("DETECT_LOCAL_MODEL"),
		LogLevel:       env("LOG_LEVEL", "info"),
	}
}

// BackendURL returns the detection service base URL from DETECT_BACKEND_URL.
// Falls back to DefaultBackendURL if not set.
func BackendURL() string {
	return strings.TrimSuffix(env("DETECT_BACKEND_URL", DefaultBackendURL), "/")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
