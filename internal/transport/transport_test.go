package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGetter struct {
	res   Result
	calls int
}

func (s *stubGetter) Get(ctx context.Context, url string) Result {
	s.calls++
	return s.res
}

func TestDispatcherFallbackOrder(t *testing.T) {
	tests := []struct {
		name      string
		preferred Method
		platform  Result
		native    Result
		socket    Result
		want      Result
		calls     [3]int
	}{
		{
			name:      "platform succeeds",
			preferred: Platform,
			platform:  Result{Body: "p"},
			want:      Result{Body: "p"},
			calls:     [3]int{1, 0, 0},
		},
		{
			name:      "platform fails, native succeeds",
			preferred: Platform,
			platform:  Result{Err: "boom"},
			native:    Result{Body: "n"},
			want:      Result{Body: "n"},
			calls:     [3]int{1, 1, 0},
		},
		{
			name:      "all fail returns last",
			preferred: Platform,
			platform:  Result{Err: "p"},
			native:    Result{Err: "n"},
			socket:    Result{Err: "s"},
			want:      Result{Err: "s"},
			calls:     [3]int{1, 1, 1},
		},
		{
			name:      "native preferred skips platform",
			preferred: Native,
			platform:  Result{Body: "p"},
			native:    Result{Err: "n"},
			socket:    Result{Body: "s"},
			want:      Result{Body: "s"},
			calls:     [3]int{0, 1, 1},
		},
		{
			name:      "socket preferred never falls back",
			preferred: Socket,
			platform:  Result{Body: "p"},
			socket:    Result{Err: "s"},
			want:      Result{Err: "s"},
			calls:     [3]int{0, 0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, n, s := &stubGetter{res: tt.platform}, &stubGetter{res: tt.native}, &stubGetter{res: tt.socket}
			d := NewDispatcher(p, n, s)
			got := d.Get(context.Background(), "http://example.test/", tt.preferred)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.calls, [3]int{p.calls, n.calls, s.calls})
		})
	}
}

func TestDispatcherLogsFallbackAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	d := NewDispatcher(&stubGetter{res: Result{Err: "boom"}}, &stubGetter{res: Result{Body: "n"}}, &stubGetter{})
	require.True(t, d.Get(context.Background(), "http://example.test/", Platform).OK())

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "transport falling back")
	assert.Contains(t, out, "from=platform")
	assert.Contains(t, out, "to=native")

	buf.Reset()
	d = NewDispatcher(&stubGetter{}, &stubGetter{}, &stubGetter{res: Result{Err: "s"}})
	d.Get(context.Background(), "http://example.test/", Socket)
	assert.NotContains(t, buf.String(), "falling back")
}

func TestParseMethod(t *testing.T) {
	assert.Equal(t, Platform, ParseMethod(""))
	assert.Equal(t, Platform, ParseMethod("wp"))
	assert.Equal(t, Native, ParseMethod("curl"))
	assert.Equal(t, Native, ParseMethod("native"))
	assert.Equal(t, Socket, ParseMethod("Socket"))
}

func TestPlatformHTTP(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"client":"x"}`)
	}))
	defer srv.Close()

	p := NewPlatformHTTP(time.Second, "ua-test")
	res := p.Get(context.Background(), srv.URL+"/ok")
	require.True(t, res.OK(), res.Err)
	assert.Equal(t, `{"client":"x"}`, res.Body)
	assert.Equal(t, "ua-test", gotUA)

	res = p.Get(context.Background(), srv.URL+"/missing")
	assert.Equal(t, "Not Found", res.Err)
	assert.Empty(t, res.Body)
}

func TestNativeHTTPAvailability(t *testing.T) {
	var missing *NativeHTTP
	assert.Equal(t, ErrNativeMissing, missing.Get(context.Background(), "http://x").Err)
	assert.Equal(t, ErrNativeMissing, NewNativeHTTP(nil, 0, "").Get(context.Background(), "http://x").Err)

	engine, err := NewNativeEngine(time.Second)
	require.NoError(t, err)
	blocked := NewNativeHTTP(engine, time.Second, "").Block()
	assert.Equal(t, ErrNativeBlocked, blocked.Get(context.Background(), "http://x").Err)
	assert.Equal(t, "Disabled by security settings", blocked.Status())
}

func TestNativeHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "feed")
	}))
	defer srv.Close()

	engine, err := NewNativeEngine(time.Second)
	require.NoError(t, err)
	n := NewNativeHTTP(engine, time.Second, "ua")
	assert.Equal(t, Result{Body: "feed"}, n.Get(context.Background(), srv.URL))
	assert.Equal(t, "Service Unavailable", n.Get(context.Background(), srv.URL+"?fail=1").Err)
	assert.Equal(t, "Enabled", n.Status())
}

func TestRawSocketDisabled(t *testing.T) {
	s := NewRawSocket(false, time.Second, "ua")
	assert.Equal(t, ErrSocketDisabled, s.Get(context.Background(), "http://example.test/").Err)
	assert.Equal(t, "Disabled", s.Status())
}

func TestRawSocketGet(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, "hello body")
	}))
	defer srv.Close()

	s := NewRawSocket(true, time.Second, "sock-ua")
	res := s.Get(context.Background(), srv.URL+"/ping?k=1")
	require.True(t, res.OK(), res.Err)
	assert.Equal(t, "hello body", res.Body)
	assert.Equal(t, "sock-ua", gotUA)
	assert.Equal(t, "k=1", gotQuery)
}

func TestRawSocketTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secure")
	}))
	defer srv.Close()

	s := NewRawSocket(true, time.Second, "ua").WithTLSConfig(&tls.Config{InsecureSkipVerify: true})
	res := s.Get(context.Background(), srv.URL+"/")
	require.True(t, res.OK(), res.Err)
	assert.Equal(t, "secure", res.Body)
}

func TestRawSocketWithoutHeaderBoundary(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 512)
		_, _ = c.Read(buf)
		_, _ = io.WriteString(c, "no boundary here")
		_ = c.Close()
	}()

	s := NewRawSocket(true, time.Second, "ua")
	res := s.Get(context.Background(), "http://"+ln.Addr().String()+"/x")
	assert.Equal(t, Result{Body: "no boundary here"}, res)
}

func TestRawSocketConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := NewRawSocket(true, time.Second, "ua")
	res := s.Get(context.Background(), "http://"+addr+"/")
	assert.True(t, strings.HasPrefix(res.Err, "Socket error: "), res.Err)
	assert.Empty(t, res.Body)
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "Newsplugin/1.0 socket; http://site", UserAgent("1.0", Socket, "http://site"))
}
