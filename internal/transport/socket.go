package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"time"
)

const ErrSocketDisabled = "Error: Socket disabled"

// RawSocket speaks a minimal HTTP/1.0 over a plain or TLS stream.
// The response is read until the peer closes; there is no read deadline.
type RawSocket struct {
	enabled        bool
	connectTimeout time.Duration
	userAgent      string
	tlsConfig      *tls.Config
}

func NewRawSocket(enabled bool, connectTimeout time.Duration, userAgent string) *RawSocket {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &RawSocket{enabled: enabled, connectTimeout: connectTimeout, userAgent: userAgent}
}

// WithTLSConfig overrides the TLS client configuration.
func (s *RawSocket) WithTLSConfig(c *tls.Config) *RawSocket {
	s2 := *s
	s2.tlsConfig = c
	return &s2
}

// Status describes socket availability for diagnostics.
func (s *RawSocket) Status() string {
	if s == nil || !s.enabled {
		return "Disabled"
	}
	return "Enabled"
}

var headerBoundary = regexp.MustCompile(`(?s)^(.*?)\r?\n\r?\n(.*)$`)

func (s *RawSocket) Get(ctx context.Context, rawURL string) Result {
	if s == nil || !s.enabled {
		return failure(ErrSocketDisabled)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return failure("Socket error: " + err.Error())
	}
	secure := u.Scheme == "https" || u.Scheme == "ssl"
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "80"
		if secure {
			port = "443"
		}
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: s.connectTimeout}
	var conn net.Conn
	if secure {
		cfg := s.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: cfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return failure("Socket error: " + err.Error())
	}
	defer conn.Close()

	// Cancellation closes the stream so the read loop below returns.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	req := fmt.Sprintf("GET %s HTTP/1.0\r\nHost: %s\r\nAccept: */*\r\nUser-Agent: %s\r\n\r\n", path, host, s.userAgent)
	if _, err := io.WriteString(conn, req); err != nil {
		return failure("Socket error: " + err.Error())
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil && ctx.Err() != nil {
		return failure("Socket error: " + ctx.Err().Error())
	}
	out := buf.String()
	if m := headerBoundary.FindStringSubmatch(out); m != nil {
		return Result{Body: m[2]}
	}
	return Result{Body: out}
}
