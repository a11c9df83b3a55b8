package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"newsplugin/internal/server"
	"newsplugin/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Auth.Secret == "" {
			slog.Warn("auth.secret is empty; sessions and management links are disabled")
		}

		srv := server.New(server.Deps{
			Feeds:       a.store,
			Sessions:    a.issuer,
			Renderer:    a.renderer,
			SystemInfo:  a.sysinfo,
			Styles:      a.styles,
			Diagnostics: a.remote,
			APIRoot:     a.api.Root(),
		})
		srv.Addr = cfg.Server.Addr
		srv.ReadHeaderTimeout = cfg.Server.ReadHeaderTimeout

		ws := []worker.Worker{
			srv,
			&worker.FeedWarmer{
				Feeds:    a.store,
				Settings: a.settings,
				Curation: a.curation,
				Fetcher:  a.fetcher,
				Interval: cfg.Feed.WarmInterval,
			},
			&worker.SysInfoRefresher{
				Info:     a.sysinfo,
				Schedule: cfg.SysInfo.Schedule,
			},
		}
		slog.Info("starting workers", "addr", cfg.Server.Addr, "warm_interval", cfg.Feed.WarmInterval, "sysinfo_schedule", cfg.SysInfo.Schedule)
		mgr := worker.NewManager(ws...)

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
