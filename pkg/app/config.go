package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-detect/internal/httpc"
	"github.com/teslashibe/go-detect/pkg/capture"
)

// CameraOpener opens the live source used by OpenCamera.
type CameraOpener func(ctx context.Context) (capture.Source, error)

// Config holds controller tuning.
type Config struct {
	// Interval between camera captures.
	Interval time.Duration

	// UploadTimeout bounds a static-image request.
	UploadTimeout time.Duration

	// MaxInFlight caps outstanding frame requests. Ticks beyond the cap are
	// skipped. 0 means unlimited; 1 serializes frames.
	MaxInFlight int

	// CameraOpener opens the live source. Nil disables the camera.
	CameraOpener CameraOpener

	// OnFrame receives every captured frame before it is uploaded.
	OnFrame func(*capture.Frame)

	Logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Config)

// WithInterval sets the camera capture interval.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithUploadTimeout sets the static-image request timeout.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Config) { c.UploadTimeout = d }
}

// WithMaxInFlight caps outstanding frame requests.
func WithMaxInFlight(n int) Option {
	return func(c *Config) { c.MaxInFlight = n }
}

// WithCameraOpener sets how the live source is opened.
func WithCameraOpener(fn CameraOpener) Option {
	return func(c *Config) { c.CameraOpener = fn }
}

// WithFrameHook sets a callback for captured frames.
func WithFrameHook(fn func(*capture.Frame)) Option {
	return func(c *Config) { c.OnFrame = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns a one-frame-per-second camera with the 10s upload
// timeout.
func DefaultConfig() Config {
	return Config{
		Interval:      capture.DefaultInterval,
		UploadTimeout: httpc.UploadTimeout,
	}
}
