package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// Native engine availability messages.
const (
	ErrNativeMissing = "Error: native HTTP disabled or not installed"
	ErrNativeBlocked = "Error: native HTTP disabled by security settings"
)

// PlatformHTTP is the managed client strategy.
type PlatformHTTP struct {
	client    *http.Client
	userAgent string
}

func NewPlatformHTTP(timeout time.Duration, userAgent string) *PlatformHTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PlatformHTTP{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (p *PlatformHTTP) Get(ctx context.Context, url string) Result {
	return doGet(ctx, p.client, p.userAgent, url)
}

// NativeHTTP is the low-level client strategy. It owns its own HTTP/2
// capable round tripper; a nil engine means the engine is not installed.
type NativeHTTP struct {
	engine    http.RoundTripper
	blocked   bool
	timeout   time.Duration
	userAgent string
}

// NewNativeEngine builds the HTTP/2 capable transport used by NativeHTTP.
func NewNativeEngine(connectTimeout time.Duration) (http.RoundTripper, error) {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}
	return tr, nil
}

func NewNativeHTTP(engine http.RoundTripper, timeout time.Duration, userAgent string) *NativeHTTP {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &NativeHTTP{engine: engine, timeout: timeout, userAgent: userAgent}
}

// Block disables the engine without uninstalling it.
func (n *NativeHTTP) Block() *NativeHTTP {
	n2 := *n
	n2.blocked = true
	return &n2
}

// Status describes engine availability for diagnostics.
func (n *NativeHTTP) Status() string {
	switch {
	case n == nil || n.engine == nil:
		return "Disabled"
	case n.blocked:
		return "Disabled by security settings"
	default:
		return "Enabled"
	}
}

func (n *NativeHTTP) Get(ctx context.Context, url string) Result {
	if n == nil || n.engine == nil {
		return failure(ErrNativeMissing)
	}
	if n.blocked {
		return failure(ErrNativeBlocked)
	}
	return doGet(ctx, &http.Client{Transport: n.engine, Timeout: n.timeout}, n.userAgent, url)
}

func doGet(ctx context.Context, c *http.Client, userAgent, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return failure(err.Error())
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := c.Do(req)
	if err != nil {
		return failure(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return failure(statusMessage(resp))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err.Error())
	}
	return Result{Body: string(b)}
}

// statusMessage returns the reason phrase of a response, e.g. "Not Found".
func statusMessage(resp *http.Response) string {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	return msg
}
