package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"runtime"
	"strings"

	"newsplugin/internal/settings"
	"newsplugin/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultRoot is the production API endpoint.
const DefaultRoot = "https://api.newsplugin.com/"

var failures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "newsplugin",
	Subsystem: "api",
	Name:      "failures_total",
	Help:      "API calls that failed after exhausting the transport chain.",
}, []string{"path"})

// SettingsLoader resolves the account key and preferred transport.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Remote performs a GET with fallback across transports.
type Remote interface {
	Get(ctx context.Context, url string, preferred transport.Method) transport.Result
}

// Client calls the remote news API. Failures never surface as errors:
// they are logged once and reported as a nil result.
type Client struct {
	root     string
	settings SettingsLoader
	remote   Remote
	log      *DiagnosticLog
}

// New creates a client. root should end with a slash, e.g.
// "https://api.newsplugin.com/".
func New(root string, s SettingsLoader, remote Remote, log *DiagnosticLog) *Client {
	if root == "" {
		root = DefaultRoot
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &Client{root: root, settings: s, remote: remote, log: log}
}

// Root returns the API root.
func (c *Client) Root() string { return c.root }

// URL builds root+path with args encoded as the query.
func (c *Client) URL(path string, args url.Values) string {
	u := c.root + strings.TrimLeft(path, "/")
	if len(args) > 0 {
		u += "?" + args.Encode()
	}
	return u
}

// Call performs an authenticated GET of path and decodes the JSON body.
// It returns nil on transport failure or when the body is not JSON.
func (c *Client) Call(ctx context.Context, path string, args url.Values) any {
	body, ok := c.call(ctx, path, args)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// UserInfo describes the account bound to the configured key.
type UserInfo struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// UserInfo fetches the registered account details, nil when unavailable.
func (c *Client) UserInfo(ctx context.Context) *UserInfo {
	body, ok := c.call(ctx, "user_info", nil)
	if !ok {
		return nil
	}
	var ui UserInfo
	if err := json.Unmarshal(body, &ui); err != nil {
		return nil
	}
	return &ui
}

func (c *Client) call(ctx context.Context, path string, args url.Values) ([]byte, bool) {
	_, file, line, _ := runtime.Caller(2)

	q := url.Values{}
	for k, vs := range args {
		q[k] = append([]string(nil), vs...)
	}
	s, err := c.settings.Load(ctx)
	if err != nil {
		c.fail(path, err.Error(), file, line)
		return nil, false
	}
	q.Set("k", s.APIKey)

	res := c.remote.Get(ctx, c.URL(path, q), s.Method)
	if !res.OK() {
		c.fail(path, res.Err, file, line)
		return nil, false
	}
	return []byte(res.Body), true
}

func (c *Client) fail(path, errText, file string, line int) {
	endpoint := c.root + path
	failures.WithLabelValues(path).Inc()
	slog.Warn("api call failed", "endpoint", endpoint, "error", errText)
	if err := c.log.APIError(endpoint, errText, file, line); err != nil {
		slog.Error("write diagnostic log failed", "path", c.log.Path(), "error", err)
	}
}
