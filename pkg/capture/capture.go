// Package capture produces still images for the detector: a one-shot read
// of a user file, or frames grabbed from a live source at a fixed interval.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-detect/pkg/detection"
)

// Frame geometry and cadence for live sources.
const (
	FrameWidth      = 640
	FrameHeight     = 480
	FrameQuality    = 85
	DefaultInterval = time.Second
)

// ErrNotReady means the source has nothing to give yet. Callers skip the
// tick instead of treating it as a failure.
var ErrNotReady = errors.New("capture: source not ready")

// ErrClosed is returned by a source after Close.
var ErrClosed = errors.New("capture: source closed")

// Source produces one still image on demand.
type Source interface {
	// Capture returns the next image to analyze.
	Capture(ctx context.Context) (*Frame, error)

	// Close releases the underlying device or file.
	Close() error
}

// Frame is one encoded still image.
type Frame struct {
	Data        []byte
	Filename    string
	ContentType string
	Subject     detection.Subject
	CapturedAt  time.Time
}

// Upload converts the frame into a detector upload.
func (f *Frame) Upload() *detection.Upload {
	return &detection.Upload{
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Data:        f.Data,
		Subject:     f.Subject,
	}
}
