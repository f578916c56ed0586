package detection

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/teslashibe/go-detect/internal/config"
	"github.com/teslashibe/go-detect/internal/httpc"
)

// UploadPath is the backend endpoint for both images and frames.
const UploadPath = "/upload"

// StaticPath prefixes annotated images served by the backend.
const StaticPath = "/static/"

// Config holds client configuration.
type Config struct {
	// BaseURL of the detection backend.
	BaseURL string

	// Timeout applies to requests without an override (camera frames).
	Timeout time.Duration

	// UploadTimeout applies to SubjectImage uploads.
	UploadTimeout time.Duration

	// Transport used for requests. Nil means the shared httpc transport.
	Transport http.RoundTripper

	// Logger for request logging.
	Logger *slog.Logger

	// Now stamps the cache-busting query on processed image URLs.
	Now func() time.Time
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the backend base URL, e.g. "http://localhost:5000".
func WithBaseURL(u string) Option {
	return func(c *Config) { c.BaseURL = u }
}

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithUploadTimeout sets the static-image upload timeout.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Config) { c.UploadTimeout = d }
}

// WithTransport sets the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) { c.Transport = rt }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// DefaultConfig returns the defaults for the local backend.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       config.DefaultBackendURL,
		Timeout:       httpc.DefaultTimeout,
		UploadTimeout: httpc.UploadTimeout,
		Logger:        slog.Default(),
		Now:           time.Now,
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("detection: base URL required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("detection: base URL must be http or https")
	}
	return nil
}
