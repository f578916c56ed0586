// Package app runs a detection session: it feeds user files and camera
// frames to a Detector and records the outcome in a session.Store.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-detect/pkg/capture"
	"github.com/teslashibe/go-detect/pkg/detection"
	"github.com/teslashibe/go-detect/pkg/session"
)

var (
	// ErrBusy is returned by Process while a request is outstanding.
	ErrBusy = errors.New("app: request already in progress")

	// ErrNoFile is returned by Process when no file is selected.
	ErrNoFile = errors.New("app: no file selected")

	// ErrNoCamera is returned by OpenCamera when no opener is configured.
	ErrNoCamera = errors.New("app: no camera configured")

	// ErrCameraActive is returned by ClearImage in camera mode.
	ErrCameraActive = errors.New("app: camera is active")
)

// Controller owns the selected file and the camera loop.
type Controller struct {
	detector detection.Detector
	store    *session.Store
	config   Config
	logger   *slog.Logger

	mu      sync.Mutex
	file    *capture.Frame
	camera  *cameraRun
	onFrame func(*capture.Frame)
	closed  bool
}

// cameraRun is one open/close cycle of the camera.
type cameraRun struct {
	source   capture.Source
	epoch    uint64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	seq      atomic.Uint64
	inFlight atomic.Int32
}

// New creates a controller. store may be nil.
func New(detector detection.Detector, store *session.Store, opts ...Option) *Controller {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = capture.DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = session.NewStore(logger)
	}

	return &Controller{
		detector: detector,
		store:    store,
		config:   cfg,
		logger:   logger.With("component", "app"),
		onFrame:  cfg.OnFrame,
	}
}

// Store returns the session store.
func (c *Controller) Store() *session.Store { return c.store }

// State returns the current session state.
func (c *Controller) State() session.State { return c.store.Snapshot() }

// SetFrameHook replaces the captured-frame callback.
func (c *Controller) SetFrameHook(fn func(*capture.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// SelectFile makes data the current input. Any camera is closed first and
// all earlier results are discarded.
func (c *Controller) SelectFile(name string, data []byte) (session.State, error) {
	src, err := capture.NewFileSource(name, bytes.NewReader(data))
	if err != nil {
		return c.store.Snapshot(), err
	}
	return c.selectSource(src)
}

// SelectPath reads the file at path and selects it.
func (c *Controller) SelectPath(path string) (session.State, error) {
	src, err := capture.OpenFile(path)
	if err != nil {
		return c.store.Snapshot(), err
	}
	return c.selectSource(src)
}

func (c *Controller) selectSource(src *capture.FileSource) (session.State, error) {
	defer src.Close()

	frame, err := src.Capture(context.Background())
	if err != nil {
		return c.store.Snapshot(), fmt.Errorf("app: read %s: %w", src.Name(), err)
	}

	if !capture.IsImage(frame.Data) {
		c.logger.Debug("selected file is not an image, forwarding as-is", "name", frame.Filename, "type", frame.ContentType)
	}

	// OpenCamera holds c.mu for the whole open, so once the lock is held
	// with no camera, none can start before the file is selected.
	c.mu.Lock()
	for c.camera != nil {
		c.mu.Unlock()
		if err := c.CloseCamera(); err != nil {
			c.logger.Warn("camera close failed", "error", err)
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	c.file = frame
	s := c.store.Dispatch(session.SelectFile{
		File: session.FileRef{
			Name:        frame.Filename,
			Size:        len(frame.Data),
			ContentType: frame.ContentType,
		},
		OriginalImage: OriginalImagePath,
	})

	c.logger.Info("file selected", "name", frame.Filename, "bytes", len(frame.Data), "type", frame.ContentType)
	return s, nil
}

// OriginalImagePath is where the dashboard serves the selected file.
const OriginalImagePath = "/api/image/original"

// OriginalImage returns the selected file and its content type.
func (c *Controller) OriginalImage() ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil, "", false
	}
	return c.file.Data, c.file.ContentType, true
}

// Process uploads the selected file. It returns ErrNoFile or ErrBusy when
// the session refuses to start. A detector failure is recorded in the state
// and returned.
func (c *Controller) Process(ctx context.Context) (*detection.Result, error) {
	c.mu.Lock()
	s, ok := c.store.Try(session.BeginProcess{})
	file := c.file
	c.mu.Unlock()

	if !ok {
		if s.Input != session.InputFile || s.File == nil {
			return nil, ErrNoFile
		}
		return nil, ErrBusy
	}
	seq := s.RequestSeq

	if file == nil {
		// State and held bytes disagree. Fail the request rather than hang.
		c.store.Dispatch(session.ProcessFailed{Seq: seq, Failure: detection.NewFailure(detection.ErrEmptyImage)})
		return nil, ErrNoFile
	}

	lastPercent := -1
	up := file.Upload()
	up.Timeout = c.config.UploadTimeout
	up.OnProgress = func(p detection.Progress) {
		pct := p.Percent()
		if pct == lastPercent {
			return
		}
		lastPercent = pct
		c.store.Dispatch(session.UploadProgress{Seq: seq, Percent: pct})
	}

	start := time.Now()
	res, err := c.detector.Detect(ctx, up)
	if err != nil {
		failure := detection.NewFailure(err)
		c.store.Dispatch(session.ProcessFailed{Seq: seq, Failure: failure})
		c.logger.Warn("detection failed",
			"file", file.Filename,
			"reason", failure.Reason,
			"error", err,
		)
		return nil, err
	}

	c.store.Dispatch(session.ProcessSucceeded{Seq: seq, Result: res})
	c.logger.Info("image processed",
		"file", file.Filename,
		"boxes", res.Count(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// ClearImage drops the selected file and all results.
func (c *Controller) ClearImage() (session.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.store.Try(session.ClearImage{})
	if !ok && s.CameraActive() {
		return s, ErrCameraActive
	}
	c.file = nil
	return s, nil
}

// OpenCamera opens the live source and starts capturing at the configured
// interval. Opening an open camera is a no-op.
func (c *Controller) OpenCamera(ctx context.Context) (session.State, error) {
	if c.config.CameraOpener == nil {
		return c.store.Snapshot(), ErrNoCamera
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.store.Snapshot(), errors.New("app: controller closed")
	}
	if c.camera != nil {
		return c.store.Snapshot(), nil
	}

	source, err := c.config.CameraOpener(ctx)
	if err != nil {
		return c.store.Snapshot(), fmt.Errorf("app: open camera: %w", err)
	}

	c.file = nil
	s := c.store.Dispatch(session.OpenCamera{})

	runCtx, cancel := context.WithCancel(context.Background())
	run := &cameraRun{source: source, epoch: s.CameraEpoch, cancel: cancel}
	c.camera = run

	run.wg.Add(1)
	go func() {
		defer run.wg.Done()
		c.captureLoop(runCtx, run)
	}()

	c.logger.Info("camera opened", "epoch", run.epoch, "interval", c.config.Interval)
	return s, nil
}

// CloseCamera stops capturing, cancels outstanding frame requests and
// releases the source before resetting the session. Safe to call when the
// camera is not open.
func (c *Controller) CloseCamera() error {
	c.mu.Lock()
	run := c.camera
	c.camera = nil
	c.mu.Unlock()

	if run == nil {
		return nil
	}

	run.cancel()
	run.wg.Wait()
	err := run.source.Close()

	c.store.Dispatch(session.CloseCamera{})
	c.logger.Info("camera closed", "epoch", run.epoch, "frames", run.seq.Load())
	return err
}

// Close closes the camera and the detector.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	camErr := c.CloseCamera()
	detErr := c.detector.Close()
	return errors.Join(camErr, detErr)
}

func (c *Controller) captureLoop(ctx context.Context, run *cameraRun) {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, run)
		}
	}
}

// tick captures one frame and sends it without waiting for the response.
func (c *Controller) tick(ctx context.Context, run *cameraRun) {
	if limit := c.config.MaxInFlight; limit > 0 && int(run.inFlight.Load()) >= limit {
		c.logger.Debug("frame skipped, requests outstanding", "in_flight", run.inFlight.Load())
		return
	}

	frame, err := run.source.Capture(ctx)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrNotReady):
		c.logger.Debug("camera not ready")
		return
	case ctx.Err() != nil:
		return
	default:
		c.logger.Warn("capture failed", "error", err)
		return
	}

	c.mu.Lock()
	hook := c.onFrame
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
	}

	seq := run.seq.Add(1)
	run.inFlight.Add(1)
	run.wg.Add(1)
	go func() {
		defer run.wg.Done()
		defer run.inFlight.Add(-1)
		c.detectFrame(ctx, run, seq, frame)
	}()
}

func (c *Controller) detectFrame(ctx context.Context, run *cameraRun, seq uint64, frame *capture.Frame) {
	res, err := c.detector.Detect(ctx, frame.Upload())
	if ctx.Err() != nil {
		// Camera closed while the request was outstanding.
		return
	}
	if err != nil {
		failure := detection.NewFailure(err)
		c.store.Dispatch(session.FrameFailed{Epoch: run.epoch, Seq: seq, Failure: failure})
		c.logger.Warn("frame detection failed", "seq", seq, "reason", failure.Reason, "error", err)
		return
	}

	s := c.store.Dispatch(session.FrameDetected{Epoch: run.epoch, Seq: seq, Result: res})
	if s.AppliedSeq != seq {
		c.logger.Debug("stale frame dropped", "seq", seq, "applied", s.AppliedSeq)
	}
}
