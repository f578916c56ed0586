package detection

import (
	"context"
	"io"
	"math"
	"net/http"
)

// Progress reports how much of an upload body has been written.
type Progress struct {
	Sent  int64 `json:"sent"`
	Total int64 `json:"total"`
}

// Fraction returns Sent/Total in [0,1]. A zero Total gives 0.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Sent) / float64(p.Total)
	return math.Min(math.Max(f, 0), 1)
}

// Percent returns the rounded percentage, 0 to 100.
func (p Progress) Percent() int {
	return int(math.Round(p.Fraction() * 100))
}

type progressKey struct{}

// withProgress attaches fn to ctx for progressTransport.
func withProgress(ctx context.Context, fn func(Progress)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

// progressTransport reports request body progress as the wrapped transport
// reads it. Only requests carrying a callback and a known length are
// wrapped; the length is kept so the body is never sent chunked.
type progressTransport struct {
	base http.RoundTripper
}

func (t *progressTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fn, _ := req.Context().Value(progressKey{}).(func(Progress))
	if fn == nil || req.Body == nil || req.Body == http.NoBody || req.ContentLength <= 0 {
		return t.base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Body = &progressReader{body: req.Body, total: req.ContentLength, fn: fn}
	return t.base.RoundTrip(out)
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *progressTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// progressReader reports progress on every read the transport makes.
type progressReader struct {
	body  io.ReadCloser
	total int64
	sent  int64
	fn    func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.body.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(Progress{Sent: p.sent, Total: p.total})
	}
	return n, err
}

func (p *progressReader) Close() error { return p.body.Close() }
