package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DETECT_BACKEND_URL", "DETECT_PORT", "CAMERA_DEVICE", "CAMERA_DIR", "CAMERA_INTERVAL", "DETECT_LOCAL_MODEL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.DashboardPort != DefaultDashboardPort {
		t.Errorf("DashboardPort = %q", cfg.DashboardPort)
	}
	if cfg.CameraDevice != 0 || cfg.CameraDir != "" {
		t.Errorf("camera = %d %q", cfg.CameraDevice, cfg.CameraDir)
	}
	if cfg.CameraInterval != time.Second {
		t.Errorf("CameraInterval = %v", cfg.CameraInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DETECT_BACKEND_URL", "http://detector:5000/")
	t.Setenv("DETECT_PORT", "9090")
	t.Setenv("CAMERA_DEVICE", "2")
	t.Setenv("CAMERA_DIR", "/tmp/frames")
	t.Setenv("CAMERA_INTERVAL", "250ms")
	t.Setenv("DETECT_LOCAL_MODEL", "models/yolov8n.onnx")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.BackendURL != "http://detector:5000" {
		t.Errorf("BackendURL = %q, want trailing slash trimmed", cfg.BackendURL)
	}
	if cfg.DashboardPort != "9090" || cfg.CameraDevice != 2 || cfg.CameraDir != "/tmp/frames" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CameraInterval != 250*time.Millisecond {
		t.Errorf("CameraInterval = %v", cfg.CameraInterval)
	}
	if cfg.LocalModel != "models/yolov8n.onnx" || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(Config) bool
	}{
		{"CAMERA_DEVICE", "front", func(c Config) bool { return c.CameraDevice == DefaultCameraDevice }},
		{"CAMERA_INTERVAL", "soon", func(c Config) bool { return c.CameraInterval == DefaultCameraInterval }},
		{"CAMERA_INTERVAL", "-1s", func(c Config) bool { return c.CameraInterval == DefaultCameraInterval }},
	}

	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if cfg := Load(); !tc.check(cfg) {
				t.Errorf("%s=%q not ignored: %+v", tc.key, tc.value, cfg)
			}
		})
	}
}
