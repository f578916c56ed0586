// Package httpc provides the shared HTTP transport for talking to the
// detection backend. Use it instead of http.DefaultTransport so dial and
// idle timeouts are always set.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	// DefaultTimeout bounds requests that carry no explicit override,
	// which is the camera frame path.
	DefaultTimeout = 30 * time.Second

	// UploadTimeout bounds a single static-image upload.
	UploadTimeout = 10 * time.Second

	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport is shared by every backend client in the process.
var Transport = NewTransport()

// NewTransport returns a transport with production-ready defaults.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
