package worker

import (
	"context"
	"log/slog"
	"time"

	"newsplugin/internal/feed"
	"newsplugin/internal/model"
	"newsplugin/internal/settings"
)

type FeedLister interface {
	ListFeeds(ctx context.Context) ([]model.FeedConfig, error)
}

type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type CurationReader interface {
	Get(ctx context.Context, instance string) (model.CurationState, error)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, r feed.Request) *feed.Feed
}

// FeedWarmer periodically fetches stored feeds the way a visitor would see
// them, so the syndication cache stays populated. Auto feeds with an age
// limit are skipped: their query window moves every second, so a warmed
// entry would never be requested again.
type FeedWarmer struct {
	Feeds    FeedLister
	Settings SettingsLoader
	Curation CurationReader
	Fetcher  FeedFetcher
	Interval time.Duration

	now func() time.Time
}

func (w *FeedWarmer) Name() string { return "feed-warmer" }

func (w *FeedWarmer) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 15 * time.Minute
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce returns the number of feeds fetched successfully.
func (w *FeedWarmer) runOnce(ctx context.Context) int {
	s, err := w.Settings.Load(ctx)
	if err != nil {
		slog.Error("feed warmer: load settings failed", "error", err)
		return 0
	}
	if !s.Active() {
		slog.Debug("feed warmer: no api key, skipping")
		return 0
	}
	cfgs, err := w.Feeds.ListFeeds(ctx)
	if err != nil {
		slog.Error("feed warmer: list feeds failed", "error", err)
		return 0
	}
	now := time.Now()
	if w.now != nil {
		now = w.now()
	}
	warmed, skipped := 0, 0
	for _, cfg := range cfgs {
		if ctx.Err() != nil {
			break
		}
		if !warmable(cfg) {
			skipped++
			continue
		}
		st, err := w.Curation.Get(ctx, cfg.ID)
		if err != nil {
			slog.Error("feed warmer: load curation failed", "instance", cfg.ID, "error", err)
			continue
		}
		f := w.Fetcher.Fetch(ctx, feed.Request{
			Now:         now,
			Config:      cfg,
			APIKey:      s.APIKey,
			PublishedAt: st.PublishedAt,
			Limit:       feed.DefaultLimit,
		})
		if f == nil {
			slog.Warn("feed warmer: fetch failed", "instance", cfg.ID)
			continue
		}
		warmed++
	}
	slog.Info("feed warmer: completed", "feeds", len(cfgs), "warmed", warmed, "skipped", skipped)
	return warmed
}

// warmable reports whether cfg produces a stable query URL. Manual feeds
// are pinned to their publish time.
func warmable(cfg model.FeedConfig) bool {
	return cfg.Age <= 0 || cfg.Manual()
}
