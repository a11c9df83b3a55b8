package config

import "time"

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel      string `mapstructure:"log_level"`
	SiteURL       string `mapstructure:"site_url"`
	Version       string `mapstructure:"version"`
	DateFormat    string `mapstructure:"date_format"`    // Go layout used for item dates
	DiagnosticLog string `mapstructure:"diagnostic_log"` // append-only API failure log
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIConfig points at the remote news service.
type APIConfig struct {
	Root   string `mapstructure:"root"`
	Key    string `mapstructure:"key"`    // seeds the stored account key when none is set
	Method string `mapstructure:"method"` // seeds the stored preferred transport
}

// TransportConfig controls the three outbound HTTP strategies.
type TransportConfig struct {
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	APITimeout     time.Duration `mapstructure:"api_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Native         *bool         `mapstructure:"native"`
	NativeBlocked  bool          `mapstructure:"native_blocked"` // installed but refused by policy
	Socket         *bool         `mapstructure:"socket"`
}

// NativeEnabled reports whether the native HTTP engine is installed.
func (t TransportConfig) NativeEnabled() bool { return t.Native == nil || *t.Native }

// SocketEnabled reports whether raw sockets may be used.
func (t TransportConfig) SocketEnabled() bool { return t.Socket == nil || *t.Socket }

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

// AuthConfig holds signing settings for sessions and action tokens.
type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	ActionTTL  time.Duration `mapstructure:"action_ttl"`
}

// FeedConfig controls feed caching.
type FeedConfig struct {
	CacheLifetime time.Duration `mapstructure:"cache_lifetime"`
	WarmInterval  time.Duration `mapstructure:"warm_interval"`
}

// SysInfoConfig controls the system info refresher.
type SysInfoConfig struct {
	Schedule string `mapstructure:"schedule"` // cron spec, e.g. "0 * * * *"
}

// Config is the top-level configuration structure.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Redis     RedisConfig     `mapstructure:"redis"`
	API       APIConfig       `mapstructure:"api"`
	Transport TransportConfig `mapstructure:"transport"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Feed      FeedConfig      `mapstructure:"feed"`
	SysInfo   SysInfoConfig   `mapstructure:"sysinfo"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.SiteURL == "" {
		c.App.SiteURL = "http://localhost:8080"
	}
	if c.App.Version == "" {
		c.App.Version = "1.1.0"
	}
	if c.App.DateFormat == "" {
		c.App.DateFormat = "January 2, 2006 3:04 pm"
	}
	if c.App.DiagnosticLog == "" {
		c.App.DiagnosticLog = "logs/plugin-logs.txt"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.API.Root == "" {
		c.API.Root = "https://api.newsplugin.com/"
	}
	if c.Transport.FetchTimeout == 0 {
		c.Transport.FetchTimeout = 120 * time.Second
	}
	if c.Transport.APITimeout == 0 {
		c.Transport.APITimeout = 10 * time.Second
	}
	if c.Transport.ConnectTimeout == 0 {
		c.Transport.ConnectTimeout = 10 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 30 * 24 * time.Hour
	}
	if c.Auth.ActionTTL == 0 {
		c.Auth.ActionTTL = 24 * time.Hour
	}
	if c.Feed.CacheLifetime == 0 {
		c.Feed.CacheLifetime = time.Hour
	}
	if c.Feed.WarmInterval == 0 {
		c.Feed.WarmInterval = 15 * time.Minute
	}
	if c.SysInfo.Schedule == "" {
		c.SysInfo.Schedule = "0 * * * *"
	}
}
