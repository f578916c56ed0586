package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/teslashibe/go-detect/pkg/detection"
)

// FileSource yields a single user-selected file. Size and type are not
// validated; whatever was chosen is forwarded.
type FileSource struct {
	name string
	data []byte

	mu   sync.Mutex
	done bool
}

// NewFileSource reads everything from r. name becomes the upload filename.
func NewFileSource(name string, r io.Reader) (*FileSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("capture: read %s: %w", name, err)
	}
	return &FileSource{name: name, data: data}, nil
}

// OpenFile reads the file at path.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer f.Close()
	return NewFileSource(filepath.Base(path), f)
}

// Name returns the original filename.
func (s *FileSource) Name() string { return s.name }

// Size returns the file size in bytes.
func (s *FileSource) Size() int { return len(s.data) }

// Capture returns the file once. Later calls return io.EOF.
func (s *FileSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, io.EOF
	}
	s.done = true

	return &Frame{
		Data:        s.data,
		Filename:    s.name,
		ContentType: DetectContentType(s.data),
		Subject:     detection.SubjectImage,
		CapturedAt:  time.Now(),
	}, nil
}

// Close is a no-op.
func (s *FileSource) Close() error { return nil }

// DetectContentType sniffs the MIME type, without parameters.
func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return strings.Split(mimetype.Detect(data).String(), ";")[0]
}

// IsImage reports whether data sniffs as an image type.
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectContentType(data), "image/")
}

var _ Source = (*FileSource)(nil)
