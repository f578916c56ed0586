package detection

import (
	"context"
	"sync"
	"time"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	DetectFunc func(ctx context.Context, up *Upload) (*Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method   string
	Filename string
	Subject  Subject
	Time     time.Time
}

// NewMock creates a mock that returns batch for every upload.
func NewMock(dets ...Detection) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, up *Upload) (*Result, error) {
			return &Result{Batch: NewBatch(dets), NumberOfBoxes: len(dets)}, nil
		},
	}
}

// NewErrorMock returns a mock whose Detect always fails with err.
func NewErrorMock(err error) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, up *Upload) (*Result, error) {
			return nil, err
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, up *Upload) (*Result, error) {
	call := MockCall{Method: "Detect", Time: time.Now()}
	if up != nil {
		call.Filename = up.Filename
		call.Subject = up.Subject
	}
	m.record(call)

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, up)
	}
	return nil, ErrNoDetectors
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record(MockCall{Method: "Close", Time: time.Now()})
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
