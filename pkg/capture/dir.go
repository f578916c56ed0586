package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-detect/pkg/detection"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
}

// DirSource stands in for a camera by cycling through the images in a
// directory. Each frame is scaled to the camera frame size.
type DirSource struct {
	dir    string
	files  []string
	logger *slog.Logger

	mu     sync.Mutex
	next   int
	closed bool
}

// OpenDir lists the images in dir. An empty directory is valid; Capture
// then always reports ErrNotReady.
func OpenDir(dir string, logger *slog.Logger) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if logger == nil {
		logger = slog.Default()
	}

	return &DirSource{
		dir:    dir,
		files:  files,
		logger: logger.With("component", "capture.dir", "dir", dir),
	}, nil
}

// Len returns the number of images in the rotation.
func (s *DirSource) Len() int { return len(s.files) }

// Capture returns the next image in the rotation as a camera frame.
// Undecodable files are skipped as not ready.
func (s *DirSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if len(s.files) == 0 {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	path := s.files[s.next%len(s.files)]
	s.next++
	s.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("read frame failed", "path", path, "error", err)
		return nil, ErrNotReady
	}

	img, err := DecodeImage(raw)
	if err != nil {
		s.logger.Warn("decode frame failed", "path", path, "error", err)
		return nil, ErrNotReady
	}

	data, err := EncodeFrame(img)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Data:        data,
		Filename:    detection.FrameFilename,
		ContentType: "image/jpeg",
		Subject:     detection.SubjectFrame,
		CapturedAt:  time.Now(),
	}, nil
}

// Close stops the rotation.
func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Source = (*DirSource)(nil)
