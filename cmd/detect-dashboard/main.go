// detect-dashboard: local web dashboard for the detection backend.
//
// Pick a file or open the camera in the browser; capture, uploads and
// state all run in this process and are pushed to the page over websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-detect/internal/config"
	"github.com/teslashibe/go-detect/internal/log"
	"github.com/teslashibe/go-detect/internal/wire"
	"github.com/teslashibe/go-detect/pkg/app"
	"github.com/teslashibe/go-detect/pkg/detection"
	"github.com/teslashibe/go-detect/pkg/web"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.DashboardPort, "Dashboard HTTP port")
	backend := flag.String("backend", cfg.BackendURL, "Detection backend URL")
	camera := flag.Int("camera", cfg.CameraDevice, "Webcam device index (-1 disables)")
	cameraDir := flag.String("camera-dir", cfg.CameraDir, "Directory of images to use as a camera")
	localModel := flag.String("local-model", cfg.LocalModel, "YOLOv8 ONNX model used when the backend fails")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg.DashboardPort = *port
	cfg.BackendURL = *backend
	cfg.CameraDevice = *camera
	cfg.CameraDir = *cameraDir
	cfg.LocalModel = *localModel
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := log.Init(cfg.LogLevel)

	fmt.Println()
	fmt.Println("🔎 go-detect dashboard")
	fmt.Printf("   Backend:   %s\n", cfg.BackendURL)
	fmt.Printf("   Dashboard: http://localhost:%s\n", cfg.DashboardPort)
	fmt.Println()

	det, err := wire.Detector(cfg, logger)
	if err != nil {
		logger.Error("detector setup failed", "error", err)
		os.Exit(1)
	}

	hctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := detection.CheckHealth(hctx, det); err != nil {
		logger.Warn("backend not reachable, uploads will fail until it is up", "url", cfg.BackendURL, "error", err)
	}
	cancel()

	ctrl := app.New(det, nil,
		app.WithInterval(cfg.CameraInterval),
		app.WithCameraOpener(wire.CameraOpener(cfg, logger)),
		app.WithLogger(logger),
	)

	server := web.NewServer(ctrl, web.Config{
		Port:   cfg.DashboardPort,
		Debug:  *debug,
		Logger: logger,
	})
	server.StartAsync()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("dashboard shutdown", "error", err)
	}
	if err := ctrl.Close(); err != nil {
		logger.Warn("controller close", "error", err)
	}
}
