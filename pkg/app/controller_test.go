package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-detect/internal/log"
	"github.com/teslashibe/go-detect/pkg/capture"
	"github.com/teslashibe/go-detect/pkg/detection"
	"github.com/teslashibe/go-detect/pkg/session"
)

// fakeSource returns a fixed frame, or ErrNotReady when notReady is set.
type fakeSource struct {
	mu       sync.Mutex
	notReady bool
	captures int
	closed   bool
}

func (s *fakeSource) Capture(ctx context.Context) (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, capture.ErrClosed
	}
	if s.notReady {
		return nil, capture.ErrNotReady
	}
	s.captures++
	return &capture.Frame{
		Data:        []byte{0xff, 0xd8, 0xff},
		Filename:    detection.FrameFilename,
		ContentType: "image/jpeg",
		Subject:     detection.SubjectFrame,
		CapturedAt:  time.Now(),
	}, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func opener(src *fakeSource) CameraOpener {
	return func(ctx context.Context) (capture.Source, error) { return src, nil }
}

func dets(classes ...string) []detection.Detection {
	out := make([]detection.Detection, len(classes))
	for i, c := range classes {
		out[i] = detection.Detection{X1: 1, Y1: 2, X2: 30, Y2: 40, Confidence: 0.9, ClassName: c}
	}
	return out
}

func newController(det detection.Detector, opts ...Option) *Controller {
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return New(det, nil, opts...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProcess_Success(t *testing.T) {
	mock := detection.NewMock(dets("cat", "dog", "cat")...)
	c := newController(mock)

	if _, err := c.SelectFile("pets.jpg", []byte("not really a jpeg")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}

	res, err := c.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Count() != 3 {
		t.Errorf("count = %d", res.Count())
	}

	s := c.State()
	if s.Summary != "This image contains: 2 cats, 1 dog" {
		t.Errorf("summary = %q", s.Summary)
	}
	if s.Phase != session.PhaseIdle || s.Progress != 100 {
		t.Errorf("phase=%v progress=%d", s.Phase, s.Progress)
	}

	calls := mock.Calls()
	if len(calls) != 1 || calls[0].Filename != "pets.jpg" || calls[0].Subject != detection.SubjectImage {
		t.Errorf("calls = %+v", calls)
	}
}

func TestProcess_NoFile(t *testing.T) {
	c := newController(detection.NewMock())
	if _, err := c.Process(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Errorf("got %v, want ErrNoFile", err)
	}
}

func TestProcess_BusyWhileOutstanding(t *testing.T) {
	release := make(chan struct{})
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			<-release
			return &detection.Result{}, nil
		},
	}
	c := newController(mock)
	c.SelectFile("a.jpg", []byte{1})

	done := make(chan error, 1)
	go func() {
		_, err := c.Process(context.Background())
		done <- err
	}()

	waitFor(t, "upload to start", func() bool { return c.State().Phase.Busy() })

	if _, err := c.Process(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Process: got %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Process: %v", err)
	}
	if n := mock.CallCount("Detect"); n != 1 {
		t.Errorf("Detect calls = %d, want 1", n)
	}
}

func TestProcess_FailureKeepsResults(t *testing.T) {
	mock := detection.NewMock(dets("cat")...)
	c := newController(mock)
	c.SelectFile("a.jpg", []byte{1})
	if _, err := c.Process(context.Background()); err != nil {
		t.Fatal(err)
	}

	mock.DetectFunc = func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
		return nil, &detection.APIError{StatusCode: 500, Message: "boom"}
	}
	_, err := c.Process(context.Background())

	var apiErr *detection.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want APIError", err)
	}

	s := c.State()
	if s.Phase != session.PhaseIdle {
		t.Errorf("phase = %v", s.Phase)
	}
	if s.Summary != "This image contains: 1 cat" {
		t.Errorf("previous results lost: %q", s.Summary)
	}
	if s.LastError == nil || s.LastError.Reason != detection.ReasonServer {
		t.Errorf("LastError = %+v", s.LastError)
	}
}

func TestProcess_ReportsProgress(t *testing.T) {
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			if up.Timeout != 10*time.Second {
				t.Errorf("upload timeout = %v", up.Timeout)
			}
			for _, sent := range []int64{25, 25, 50, 100} {
				up.OnProgress(detection.Progress{Sent: sent, Total: 100})
			}
			return &detection.Result{}, nil
		},
	}
	c := newController(mock)
	c.SelectFile("a.jpg", []byte{1})

	var mu sync.Mutex
	var seen []int
	var phases []session.Phase
	c.Store().Subscribe(func(s session.State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Progress)
		phases = append(phases, s.Phase)
	})

	if _, err := c.Process(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	// begin(0), 25, 50, 100, success(100). The repeated 25 is not dispatched.
	want := []int{0, 25, 50, 100, 100}
	if len(seen) != len(want) {
		t.Fatalf("progress = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
	if phases[3] != session.PhaseProcessing {
		t.Errorf("phase at 100%% = %v, want processing", phases[3])
	}
}

func TestSelectFile_ResetsResults(t *testing.T) {
	c := newController(detection.NewMock(dets("dog")...))
	c.SelectFile("a.jpg", []byte{1})
	c.Process(context.Background())

	s, err := c.SelectFile("b.png", []byte{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if s.HasResults() || s.Summary != "" || s.ProcessedImageURL != "" {
		t.Error("new file must clear results")
	}
	if s.File.Name != "b.png" || s.File.Size != 2 {
		t.Errorf("file = %+v", s.File)
	}

	data, _, ok := c.OriginalImage()
	if !ok || len(data) != 2 {
		t.Errorf("original image = %v %v", data, ok)
	}
}

func TestClearImage(t *testing.T) {
	c := newController(detection.NewMock(dets("dog", "dog")...))
	c.SelectFile("a.jpg", []byte{1})
	c.Process(context.Background())

	s, err := c.ClearImage()
	if err != nil {
		t.Fatal(err)
	}
	if s.Input != session.InputNone || s.HasResults() || s.OriginalImage != "" {
		t.Errorf("state after clear = %+v", s)
	}
	if _, _, ok := c.OriginalImage(); ok {
		t.Error("held bytes should be dropped")
	}
	if _, err := c.Process(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Errorf("Process after clear: %v", err)
	}
}

func TestOpenCamera_NoOpener(t *testing.T) {
	c := newController(detection.NewMock())
	if _, err := c.OpenCamera(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Errorf("got %v, want ErrNoCamera", err)
	}

	boom := errors.New("device busy")
	c = newController(detection.NewMock(), WithCameraOpener(func(ctx context.Context) (capture.Source, error) {
		return nil, boom
	}))
	if _, err := c.OpenCamera(context.Background()); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped opener error", err)
	}
	if c.State().CameraActive() {
		t.Error("failed open must not enter camera mode")
	}
}

func TestCamera_StreamsAndCloses(t *testing.T) {
	src := &fakeSource{}
	mock := detection.NewMock(dets("dog")...)

	var frames sync.WaitGroup
	frames.Add(1)
	var once sync.Once
	c := newController(mock,
		WithInterval(5*time.Millisecond),
		WithCameraOpener(opener(src)),
		WithFrameHook(func(f *capture.Frame) { once.Do(frames.Done) }),
	)

	s, err := c.OpenCamera(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !s.CameraActive() || s.Input != session.InputCameraFrame {
		t.Errorf("state after open = %+v", s)
	}

	waitFor(t, "three frames", func() bool { return c.State().AppliedSeq >= 3 })
	frames.Wait()

	if got := c.State().Summary; got != "This frame contains: 1 dog" {
		t.Errorf("summary = %q", got)
	}
	for _, call := range mock.Calls() {
		if call.Subject != detection.SubjectFrame || call.Filename != detection.FrameFilename {
			t.Errorf("call = %+v", call)
		}
	}

	// The source must be released before the session reports camera inactive.
	closedFirst := make(chan bool, 1)
	c.Store().Subscribe(func(s session.State) {
		if !s.CameraActive() {
			closedFirst <- src.isClosed()
		}
	})

	if err := c.CloseCamera(); err != nil {
		t.Fatal(err)
	}
	if !<-closedFirst {
		t.Error("session went inactive before the source was closed")
	}

	s = c.State()
	if s.Phase != session.PhaseIdle || s.HasResults() || !s.Reload {
		t.Errorf("state after close = %+v", s)
	}

	if err := c.CloseCamera(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestCamera_NotReadySkipsTick(t *testing.T) {
	src := &fakeSource{notReady: true}
	mock := detection.NewMock()
	c := newController(mock, WithInterval(2*time.Millisecond), WithCameraOpener(opener(src)))

	c.OpenCamera(context.Background())
	time.Sleep(30 * time.Millisecond)
	c.CloseCamera()

	if n := mock.CallCount("Detect"); n != 0 {
		t.Errorf("Detect calls = %d, want 0", n)
	}
	if c.State().LastError != nil {
		t.Error("not-ready ticks are not failures")
	}
}

func TestCamera_CloseCancelsInFlight(t *testing.T) {
	src := &fakeSource{}
	started := make(chan struct{}, 16)
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := newController(mock, WithInterval(5*time.Millisecond), WithCameraOpener(opener(src)))
	c.OpenCamera(context.Background())

	<-started
	done := make(chan struct{})
	go func() {
		c.CloseCamera()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CloseCamera blocked on an outstanding request")
	}

	s := c.State()
	if s.LastError != nil {
		t.Errorf("cancelled request must not surface an error: %+v", s.LastError)
	}
	if s.CameraActive() {
		t.Error("camera still active")
	}
}

func TestCamera_StaleFrameDropped(t *testing.T) {
	src := &fakeSource{}
	release := make(chan struct{})

	var mu sync.Mutex
	calls := 0
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()

			if first {
				<-release
				return &detection.Result{Batch: detection.NewBatch(dets("cat"))}, nil
			}
			return &detection.Result{Batch: detection.NewBatch(dets("dog"))}, nil
		},
	}
	c := newController(mock, WithInterval(5*time.Millisecond), WithCameraOpener(opener(src)))
	c.OpenCamera(context.Background())
	defer c.Close()

	waitFor(t, "a later frame", func() bool { return c.State().AppliedSeq >= 2 })
	close(release)
	time.Sleep(30 * time.Millisecond)

	if got := c.State().Summary; strings.Contains(got, "cat") {
		t.Errorf("frame 1 resolved last but overwrote a newer frame: %q", got)
	}
}

func TestCamera_MaxInFlight(t *testing.T) {
	src := &fakeSource{}
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := newController(mock,
		WithInterval(2*time.Millisecond),
		WithMaxInFlight(1),
		WithCameraOpener(opener(src)),
	)
	c.OpenCamera(context.Background())
	time.Sleep(40 * time.Millisecond)
	c.CloseCamera()

	if n := mock.CallCount("Detect"); n != 1 {
		t.Errorf("Detect calls = %d, want 1 with MaxInFlight=1", n)
	}
}

func TestSelectFile_ClosesCamera(t *testing.T) {
	src := &fakeSource{}
	c := newController(detection.NewMock(), WithInterval(time.Hour), WithCameraOpener(opener(src)))
	c.OpenCamera(context.Background())

	if _, err := c.ClearImage(); !errors.Is(err, ErrCameraActive) {
		t.Errorf("ClearImage in camera mode: %v", err)
	}

	s, err := c.SelectFile("a.jpg", []byte{1})
	if err != nil {
		t.Fatal(err)
	}
	if !src.isClosed() {
		t.Error("camera source should be closed")
	}
	if s.CameraActive() || s.Input != session.InputFile {
		t.Errorf("state = %+v", s)
	}
}

func TestClose(t *testing.T) {
	src := &fakeSource{}
	mock := detection.NewMock()
	c := newController(mock, WithInterval(time.Hour), WithCameraOpener(opener(src)))
	c.OpenCamera(context.Background())

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !src.isClosed() || mock.CallCount("Close") != 1 {
		t.Error("Close should release the camera and the detector")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.OpenCamera(context.Background()); err == nil {
		t.Error("OpenCamera after Close should fail")
	}
}

func TestSelectFile_NonImageForwarded(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var gotType string
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
			gotType = up.ContentType
			return &detection.Result{}, nil
		},
	}
	c := New(mock, nil, WithLogger(logger))

	if _, err := c.SelectFile("notes.txt", []byte("just some text")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Process(context.Background()); err != nil {
		t.Fatalf("non-image uploads are not validated: %v", err)
	}
	if gotType != "text/plain" {
		t.Errorf("content type = %q", gotType)
	}
	if !strings.Contains(buf.String(), "not an image") {
		t.Error("expected a debug line for a non-image file")
	}
}

func TestSelectFile_RacingOpenCamera(t *testing.T) {
	for i := 0; i < 200; i++ {
		src := &fakeSource{}
		c := newController(detection.NewMock(), WithInterval(time.Hour), WithCameraOpener(opener(src)))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.OpenCamera(context.Background())
		}()
		go func() {
			defer wg.Done()
			c.SelectFile("a.jpg", []byte{1})
		}()
		wg.Wait()

		s := c.State()
		c.mu.Lock()
		running := c.camera != nil
		c.mu.Unlock()

		if s.Input == session.InputFile && running {
			t.Fatalf("iteration %d: file selected while the camera loop still holds the device", i)
		}
		if s.CameraActive() != running {
			t.Fatalf("iteration %d: camera active=%v, loop running=%v", i, s.CameraActive(), running)
		}
		c.Close()
	}
}
