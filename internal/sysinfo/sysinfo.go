package sysinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"newsplugin/internal/api"
	"newsplugin/internal/settings"
	"newsplugin/internal/transport"

	"golang.org/x/sync/errgroup"
)

// Version is the schema version of Info. Stored snapshots with a lower
// version are rebuilt.
const Version = 1.0002

// OptionKey is where the snapshot is cached.
const OptionKey = "newsPlugin_system_info"

const unregistered = "error or unregistered"

// Info is a diagnostic snapshot of the installation.
type Info struct {
	InfoVersion float64   `json:"info_version" yaml:"info_version"`
	APIKey      string    `json:"api_key" yaml:"api_key"`
	Site        SiteEnv   `json:"site_env" yaml:"site_env"`
	System      SystemEnv `json:"system_env" yaml:"system_env"`
	Plugin      PluginEnv `json:"newsplugin_env" yaml:"newsplugin_env"`
}

type SiteEnv struct {
	SiteURL    string `json:"siteurl" yaml:"siteurl"`
	Version    string `json:"version" yaml:"version"`
	DateFormat string `json:"date_format" yaml:"date_format"`
}

type SystemEnv struct {
	GoVersion       string `json:"go_version" yaml:"go_version"`
	OS              string `json:"server_os" yaml:"server_os"`
	Arch            string `json:"arch" yaml:"arch"`
	Hostname        string `json:"hostname" yaml:"hostname"`
	NumCPU          int    `json:"num_cpu" yaml:"num_cpu"`
	IsNative        string `json:"is_native" yaml:"is_native"`
	NativeStatus    string `json:"native_status" yaml:"native_status"`
	NativeStatusSSL string `json:"native_status_ssl,omitempty" yaml:"native_status_ssl,omitempty"`
	IsSocket        string `json:"is_socket" yaml:"is_socket"`
	SocketStatus    string `json:"socket_status" yaml:"socket_status"`
	SocketStatusSSL string `json:"socket_status_ssl,omitempty" yaml:"socket_status_ssl,omitempty"`
}

type PluginEnv struct {
	RegisteredEmail string `json:"registered_email" yaml:"registered_email"`
	UserStatus      string `json:"user_status" yaml:"user_status"`
	PluginVersion   string `json:"plugin_version" yaml:"plugin_version"`
	NativePing      string `json:"native_ping" yaml:"native_ping"`
	SocketPing      string `json:"socket_ping" yaml:"socket_ping"`
}

// UserInfoSource fetches the account bound to the key.
type UserInfoSource interface {
	UserInfo(ctx context.Context) *api.UserInfo
}

// Checker is a transport that can describe its availability.
type Checker interface {
	transport.Getter
	Status() string
}

// Collector runs the checks that make up a snapshot.
type Collector struct {
	Settings   *settings.Provider
	Users      UserInfoSource
	Native     Checker
	Socket     Checker
	APIRoot    string
	SiteURL    string
	Version    string
	DateFormat string
}

func statusText(r transport.Result) string {
	if r.Err != "" {
		return r.Err
	}
	return "OK"
}

// Collect checks the environment and the remote service.
func (c *Collector) Collect(ctx context.Context) (*Info, error) {
	s, err := c.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	plainURL, secureURL := api.TestURLs(c.APIRoot)

	var (
		nativeTest, nativeTestSSL, socketTest, socketTestSSL transport.Result
		nativePing, socketPing                               api.PingResult
		user                                                 *api.UserInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { nativeTest = api.ConnectivityTest(gctx, c.Native, plainURL); return nil })
	g.Go(func() error { nativeTestSSL = api.ConnectivityTest(gctx, c.Native, secureURL); return nil })
	g.Go(func() error { socketTest = api.ConnectivityTest(gctx, c.Socket, plainURL); return nil })
	g.Go(func() error { socketTestSSL = api.ConnectivityTest(gctx, c.Socket, secureURL); return nil })
	g.Go(func() error { nativePing = api.PingTest(gctx, c.Native, c.APIRoot); return nil })
	g.Go(func() error { socketPing = api.PingTest(gctx, c.Socket, c.APIRoot); return nil })
	g.Go(func() error { user = c.Users.UserInfo(gctx); return nil })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	host, _ := os.Hostname()
	info := &Info{
		InfoVersion: Version,
		APIKey:      s.APIKey,
		Site: SiteEnv{
			SiteURL:    c.SiteURL,
			Version:    c.Version,
			DateFormat: c.DateFormat,
		},
		System: SystemEnv{
			GoVersion:    runtime.Version(),
			OS:           runtime.GOOS,
			Arch:         runtime.GOARCH,
			Hostname:     host,
			NumCPU:       runtime.NumCPU(),
			IsNative:     c.Native.Status(),
			NativeStatus: statusText(nativeTest),
			IsSocket:     c.Socket.Status(),
			SocketStatus: statusText(socketTest),
		},
		Plugin: PluginEnv{
			RegisteredEmail: unregistered,
			UserStatus:      unregistered,
			PluginVersion:   c.Version,
			NativePing:      nativePing.Summary(),
			SocketPing:      socketPing.Summary(),
		},
	}
	if nativeTest.Err != nativeTestSSL.Err {
		info.System.NativeStatusSSL = statusText(nativeTestSSL)
	}
	if socketTest.Err != socketTestSSL.Err {
		info.System.SocketStatusSSL = statusText(socketTestSSL)
	}
	if user != nil {
		info.Plugin.RegisteredEmail = user.Email
		info.Plugin.UserStatus = user.Status
	}
	return info, nil
}

// OptionStore is the global key-value configuration store.
type OptionStore interface {
	GetOption(ctx context.Context, key string) (string, bool, error)
	SetOption(ctx context.Context, key, value string) error
}

// Cache keeps the latest snapshot in the option store.
type Cache struct {
	options   OptionStore
	collector *Collector
}

func NewCache(options OptionStore, collector *Collector) *Cache {
	return &Cache{options: options, collector: collector}
}

// Stored returns the cached snapshot, nil if there is none.
func (c *Cache) Stored(ctx context.Context) (*Info, error) {
	raw, ok, err := c.options.GetOption(ctx, OptionKey)
	if err != nil {
		return nil, fmt.Errorf("load system info: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var info Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		slog.Warn("discarding undecodable system info", "error", err)
		return nil, nil
	}
	return &info, nil
}

// Ensure returns the cached snapshot, rebuilding it when missing, when
// its schema is older, or when the account key changed since.
func (c *Cache) Ensure(ctx context.Context) (*Info, error) {
	info, err := c.Stored(ctx)
	if err != nil {
		return nil, err
	}
	s, err := c.collector.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if info != nil && info.InfoVersion >= Version && info.APIKey == s.APIKey {
		return info, nil
	}
	return c.Refresh(ctx)
}

// Refresh rebuilds and stores the snapshot.
func (c *Cache) Refresh(ctx context.Context) (*Info, error) {
	info, err := c.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect system info: %w", err)
	}
	b, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	if err := c.options.SetOption(ctx, OptionKey, string(b)); err != nil {
		return nil, fmt.Errorf("store system info: %w", err)
	}
	slog.Info("system info refreshed", "native", info.System.NativeStatus, "socket", info.System.SocketStatus)
	return info, nil
}
