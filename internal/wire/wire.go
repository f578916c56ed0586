// Package wire builds the detector and camera opener both commands share.
package wire

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-detect/internal/config"
	"github.com/teslashibe/go-detect/internal/httpc"
	"github.com/teslashibe/go-detect/pkg/app"
	"github.com/teslashibe/go-detect/pkg/capture"
	"github.com/teslashibe/go-detect/pkg/capture/webcam"
	"github.com/teslashibe/go-detect/pkg/detection"
	"github.com/teslashibe/go-detect/pkg/detection/yolo"
)

// Detector returns the backend client, or a chain of the backend client
// and the local YOLO model when cfg.LocalModel is set. The remote backend
// is always tried first.
func Detector(cfg config.Config, logger *slog.Logger) (detection.Detector, error) {
	client, err := detection.NewClient(
		detection.WithBaseURL(cfg.BackendURL),
		detection.WithTransport(httpc.Transport),
		detection.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if cfg.LocalModel == "" {
		return client, nil
	}

	ycfg := yolo.DefaultConfig()
	ycfg.ModelPath = cfg.LocalModel
	local, err := yolo.New(ycfg, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	chain, err := detection.NewChain(logger, client, local)
	if err != nil {
		client.Close()
		local.Close()
		return nil, err
	}
	return chain, nil
}

// CameraOpener returns a directory rotation when cfg.CameraDir is set,
// otherwise the webcam at cfg.CameraDevice. A negative device disables the
// camera and returns nil.
func CameraOpener(cfg config.Config, logger *slog.Logger) app.CameraOpener {
	switch {
	case cfg.CameraDir != "":
		dir := cfg.CameraDir
		return func(ctx context.Context) (capture.Source, error) {
			return capture.OpenDir(dir, logger)
		}
	case cfg.CameraDevice >= 0:
		device := cfg.CameraDevice
		return func(ctx context.Context) (capture.Source, error) {
			return webcam.Open(device, logger)
		}
	default:
		return nil
	}
}
