// detect: send an image or a few camera frames to the detection backend
// and print what was found.
//
//	detect -file pets.jpg
//	detect -camera 0 -frames 5
//	detect -camera-dir ./frames -frames 3 -interval 500ms
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
	"github.com/teslashibe/go-detect/pkg/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	file := flag.String("file", "", "Image file to upload")
	camera := flag.Int("camera", cfg.CameraDevice, "Webcam device index (-1 disables)")
	cameraDir := flag.String("camera-dir", cfg.CameraDir, "Directory of images to use as a camera")
	frames := flag.Int("frames", 5, "Camera frames to analyze")
	interval := flag.Duration("interval", cfg.CameraInterval, "Time between camera frames")
	backend := flag.String("backend", cfg.BackendURL, "Detection backend URL")
	localModel := flag.String("local-model", cfg.LocalModel, "YOLOv8 ONNX model used when the backend fails")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg.CameraDevice = *camera
	cfg.CameraDir = *cameraDir
	cfg.CameraInterval = *interval
	cfg.BackendURL = *backend
	cfg.LocalModel = *localModel
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := log.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	det, err := wire.Detector(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	hctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := detection.CheckHealth(hctx, det); err != nil {
		logger.Warn("backend not reachable", "url", cfg.BackendURL, "error", err)
	}
	cancel()

	ctrl := app.New(det, nil,
		app.WithInterval(cfg.CameraInterval),
		app.WithCameraOpener(wire.CameraOpener(cfg, logger)),
		app.WithLogger(logger),
	)
	defer ctrl.Close()

	if *file != "" {
		return processFile(ctx, ctrl, *file)
	}
	return streamCamera(ctx, ctrl, *frames)
}

func processFile(ctx context.Context, ctrl *app.Controller, path string) int {
	if _, err := ctrl.SelectPath(path); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	fmt.Printf("📤 Uploading %s...\n", path)
	if _, err := ctrl.Process(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Detection failed: %v\n", err)
		return 1
	}

	printReport(os.Stdout, ctrl.State())
	return 0
}

func streamCamera(ctx context.Context, ctrl *app.Controller, frames int) int {
	if frames <= 0 {
		frames = 1
	}

	applied := make(chan session.State, frames)
	unsubscribe := ctrl.Store().Subscribe(func(s session.State) {
		if !s.CameraActive() || s.AppliedSeq == 0 {
			return
		}
		select {
		case applied <- s:
		default:
		}
	})
	defer unsubscribe()

	if _, err := ctrl.OpenCamera(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	fmt.Printf("📷 Camera open, analyzing %d frames (Ctrl+C to stop)\n", frames)

	failed := 0
	var last uint64
	for seen := 0; seen < frames; {
		select {
		case <-ctx.Done():
			fmt.Println("\n👋 Stopping")
			ctrl.CloseCamera()
			return 0
		case s := <-applied:
			if s.AppliedSeq == last {
				continue
			}
			last = s.AppliedSeq
			seen++
			fmt.Printf("\n── frame %d ──\n", s.AppliedSeq)
			if s.LastError != nil {
				failed++
				fmt.Printf("❌ %s: %s\n", s.LastError.Reason, s.LastError.Message)
				continue
			}
			printReport(os.Stdout, s)
		}
	}

	if err := ctrl.CloseCamera(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  camera close: %v\n", err)
	}
	if failed == frames {
		return 1
	}
	return 0
}
