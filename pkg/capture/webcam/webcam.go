// Package webcam grabs camera frames through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-detect/pkg/capture"
	"github.com/teslashibe/go-detect/pkg/detection"
)

// Camera holds a video device open until Close.
type Camera struct {
	deviceID int
	logger   *slog.Logger

	mu     sync.Mutex
	webcam *gocv.VideoCapture
	frame  gocv.Mat
}

// Open acquires the device. Only one Camera should hold a device at a time.
func Open(deviceID int, logger *slog.Logger) (*Camera, error) {
	wc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("webcam: open device %d: %w", deviceID, err)
	}
	if !wc.IsOpened() {
		wc.Close()
		return nil, fmt.Errorf("webcam: device %d not available", deviceID)
	}

	wc.Set(gocv.VideoCaptureFrameWidth, capture.FrameWidth)
	wc.Set(gocv.VideoCaptureFrameHeight, capture.FrameHeight)

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "capture.webcam", "device", deviceID)
	logger.Info("camera opened")

	return &Camera{
		deviceID: deviceID,
		logger:   logger,
		webcam:   wc,
		frame:    gocv.NewMat(),
	}, nil
}

// Capture reads the current frame, scales it to 640×480 and encodes JPEG.
// The scaling happens on the Go side so every source produces identical
// frame geometry.
// A device that has not produced a frame yet gives capture.ErrNotReady.
func (c *Camera) Capture(ctx context.Context) (*capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil, capture.ErrClosed
	}

	if ok := c.webcam.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, capture.ErrNotReady
	}

	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("webcam: convert frame: %w", err)
	}

	data, err := capture.EncodeFrame(img)
	if err != nil {
		return nil, err
	}

	return &capture.Frame{
		Data:        data,
		Filename:    detection.FrameFilename,
		ContentType: "image/jpeg",
		Subject:     detection.SubjectFrame,
		CapturedAt:  time.Now(),
	}, nil
}

// Close releases the device. Safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil
	}

	err := c.webcam.Close()
	c.webcam = nil
	c.frame.Close()

	c.logger.Info("camera released")
	return err
}

var _ capture.Source = (*Camera)(nil)
