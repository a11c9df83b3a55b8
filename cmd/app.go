package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"newsplugin/internal/api"
	"newsplugin/internal/auth"
	"newsplugin/internal/config"
	"newsplugin/internal/curation"
	"newsplugin/internal/feed"
	"newsplugin/internal/redisclient"
	"newsplugin/internal/settings"
	"newsplugin/internal/storage"
	"newsplugin/internal/style"
	"newsplugin/internal/sysinfo"
	"newsplugin/internal/transport"
	"newsplugin/internal/widget"

	"github.com/redis/go-redis/v9"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg config.Config
	rdb *redis.Client

	store    *storage.RedisStore
	settings *settings.Provider
	native   *transport.NativeHTTP
	socket   *transport.RawSocket
	remote   *transport.Dispatcher
	feeds    *transport.Dispatcher
	api      *api.Client
	fetcher  *feed.Fetcher
	curation *curation.Store
	styles   *style.Prefs
	issuer   *auth.Issuer
	renderer *widget.Renderer
	sysinfo  *sysinfo.Cache
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	rdb := redisclient.New(cfg.Redis)
	store := storage.NewRedisStore(rdb)
	prov := settings.NewProvider(store)
	if err := prov.Seed(ctx, cfg.API.Key, cfg.API.Method); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	ua := func(m transport.Method) string {
		return transport.UserAgent(cfg.App.Version, m, cfg.App.SiteURL)
	}
	tc := cfg.Transport

	var native, nativeFeeds *transport.NativeHTTP
	if tc.NativeEnabled() {
		engine, err := transport.NewNativeEngine(tc.ConnectTimeout)
		if err != nil {
			slog.Warn("native http engine unavailable", "error", err)
		}
		native = transport.NewNativeHTTP(engine, tc.APITimeout, ua(transport.Native))
		nativeFeeds = transport.NewNativeHTTP(engine, tc.FetchTimeout, ua(transport.Native))
	} else {
		native = transport.NewNativeHTTP(nil, tc.APITimeout, ua(transport.Native))
		nativeFeeds = native
	}
	if tc.NativeBlocked {
		native = native.Block()
		nativeFeeds = nativeFeeds.Block()
	}
	socket := transport.NewRawSocket(tc.SocketEnabled(), tc.ConnectTimeout, ua(transport.Socket))

	remote := transport.NewDispatcher(
		transport.NewPlatformHTTP(tc.APITimeout, ua(transport.Platform)), native, socket)
	feeds := transport.NewDispatcher(
		transport.NewPlatformHTTP(tc.FetchTimeout, ua(transport.Platform)), nativeFeeds, socket)

	client := api.New(cfg.API.Root, prov, remote, api.NewDiagnosticLog(cfg.App.DiagnosticLog))
	fetcher := feed.NewFetcher(client, feed.NewCachingSyndicator(feeds.From(transport.Platform), store)).
		WithLifetime(cfg.Feed.CacheLifetime)
	cur := curation.NewStore(store)
	prefs := style.NewPrefs(store)
	issuer := auth.NewIssuer(auth.Config{
		Secret:     cfg.Auth.Secret,
		SessionTTL: cfg.Auth.SessionTTL,
		ActionTTL:  cfg.Auth.ActionTTL,
	})

	return &app{
		cfg:      cfg,
		rdb:      rdb,
		store:    store,
		settings: prov,
		native:   native,
		socket:   socket,
		remote:   remote,
		feeds:    feeds,
		api:      client,
		fetcher:  fetcher,
		curation: cur,
		styles:   prefs,
		issuer:   issuer,
		renderer: &widget.Renderer{
			Settings:    prov,
			Curation:    cur,
			Fetcher:     fetcher,
			Styles:      prefs,
			Tokens:      issuer,
			DateFormat:  cfg.App.DateFormat,
			SettingsURL: cfg.App.SiteURL + "/settings",
		},
		sysinfo: sysinfo.NewCache(store, &sysinfo.Collector{
			Settings:   prov,
			Users:      client,
			Native:     native,
			Socket:     socket,
			APIRoot:    client.Root(),
			SiteURL:    cfg.App.SiteURL,
			Version:    cfg.App.Version,
			DateFormat: cfg.App.DateFormat,
		}),
	}, nil
}

func (a *app) Close() error {
	return a.rdb.Close()
}
