package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-detect/internal/httpc"
)

// Client is the HTTP Detector for the remote detection backend.
// Failures are returned, never retried.
type Client struct {
	baseURL string
	config  *Config
	rest    *resty.Client
	logger  *slog.Logger
}

// NewClient creates a new detection client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	transport := cfg.Transport
	if transport == nil {
		transport = httpc.Transport
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	logger := cfg.Logger.With("component", "detection.client")

	rest := resty.NewWithClient(&http.Client{Transport: &progressTransport{base: transport}}).
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetLogger(restyLogger{logger}).
		SetRetryCount(0)

	return &Client{
		baseURL: baseURL,
		config:  cfg,
		rest:    rest,
		logger:  logger,
	}, nil
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Detect posts one image to /upload and decodes the detections.
func (c *Client) Detect(ctx context.Context, up *Upload) (*Result, error) {
	if up == nil || len(up.Data) == 0 {
		return nil, ErrEmptyImage
	}
	start := time.Now()

	timeout := up.Timeout
	if timeout == 0 && up.Subject != SubjectFrame {
		timeout = c.config.UploadTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	filename := up.Filename
	if filename == "" {
		filename = defaultFilename(up.Subject)
	}

	body, contentType, err := encodeMultipart(filename, up.ContentType, up.Data)
	if err != nil {
		return nil, fmt.Errorf("detection: encode multipart: %w", err)
	}

	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID, "subject", up.Subject, "filename", filename)
	logger.Debug("uploading image", "bytes", len(up.Data))

	resp, err := c.rest.R().
		SetContext(withProgress(ctx, up.OnProgress)).
		SetHeader("Content-Type", contentType).
		SetHeader("X-Request-ID", requestID).
		SetBody(body).
		Post(UploadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !resp.IsSuccess() {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    strings.TrimSpace(string(resp.Body())),
			RequestID:  requestID,
		}
	}

	payload, err := decodeUploadResponse(resp.Body())
	if err != nil {
		return nil, err
	}

	res := &Result{
		Batch:         NewBatch(payload.Detections),
		NumberOfBoxes: payload.NumberOfBoxes,
		Image:         payload.Image,
		RequestID:     requestID,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
	if up.Subject != SubjectFrame && payload.Image != "" {
		res.ProcessedImageURL = c.ProcessedImageURL(payload.Image)
	}

	logger.Debug("detections received", "count", res.Count(), "latency_ms", res.LatencyMs)
	return res, nil
}

// ProcessedImageURL builds the display URL for an annotated image, with a
// cache-busting timestamp so a re-upload of the same name is refetched.
func (c *Client) ProcessedImageURL(image string) string {
	u := url.URL{Path: StaticPath + strings.TrimPrefix(image, "/")}
	return fmt.Sprintf("%s%s?t=%d", c.baseURL, u.EscapedPath(), c.config.Now().UnixMilli())
}

// Health checks that the backend is reachable. Any response below 500
// counts as healthy; the backend has no dedicated health route.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get("/")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode() >= 500 {
		return &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.rest.GetClient().CloseIdleConnections()
	return nil
}

func defaultFilename(s Subject) string {
	if s == SubjectFrame {
		return FrameFilename
	}
	return "upload"
}

// encodeMultipart writes the single "file" field.
func encodeMultipart(filename, contentType string, data []byte) ([]byte, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// decodeUploadResponse rejects bodies without a detections list. A
// response is accepted whole or not at all.
func decodeUploadResponse(body []byte) (*UploadResponse, error) {
	var raw struct {
		Detections    *[]Detection `json:"detections"`
		NumberOfBoxes int          `json:"number_of_boxes"`
		Image         string       `json:"image"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if raw.Detections == nil {
		return nil, fmt.Errorf("%w: missing detections", ErrMalformedResponse)
	}
	return &UploadResponse{
		Detections:    *raw.Detections,
		NumberOfBoxes: raw.NumberOfBoxes,
		Image:         raw.Image,
	}, nil
}

// restyLogger routes resty's internal logging through slog.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(fmt.Sprintf(format, v...))
}

// Verify Client implements Detector at compile time.
var _ Detector = (*Client)(nil)
