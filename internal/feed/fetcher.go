package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"newsplugin/internal/model"
)

const (
	// DefaultLimit caps how many results the search returns.
	DefaultLimit = 100
	// CacheLifetime is how long a search result is served from cache.
	CacheLifetime = 3600 * time.Second

	searchPath = "search"
)

// URLBuilder renders API URLs.
type URLBuilder interface {
	URL(path string, args url.Values) string
}

// Request describes one search for a feed instance.
type Request struct {
	Now    time.Time
	Config model.FeedConfig
	APIKey string
	// PublishedAt is the instance's last publish time, used as the upper
	// bound of manual feeds unless Live is set.
	PublishedAt int64
	// Live is set when the viewer can manage the feed and is in edit mode.
	Live  bool
	Limit int
}

// Query builds the search parameters for r.
func Query(r Request) url.Values {
	cfg := r.Config
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("k", r.APIKey)
	q.Set("q", cfg.Keywords)
	q.Set("l", strconv.Itoa(limit))
	q.Set("c", strconv.Itoa(cfg.Count))
	q.Set("t", cfg.Title)

	t := r.Now.Unix()
	if cfg.Manual() {
		if !r.Live {
			t = r.PublishedAt
		}
		q.Set("b", strconv.FormatInt(t, 10))
	}
	if cfg.Age > 0 {
		q.Set("a", strconv.FormatInt(t-3600*int64(cfg.Age), 10))
	}

	optional := []struct{ key, val string }{
		{"src", cfg.Sources},
		{"exclude", cfg.ExcludedSources},
		{"mode", cfg.SearchMode},
		{"type", cfg.SearchType},
		{"sort", cfg.SortMode},
		{"link", cfg.LinkType},
		{"link_open_mode", cfg.LinkOpenMode},
		{"link_follow", cfg.LinkFollow},
	}
	for _, o := range optional {
		if o.val != "" {
			q.Set(o.key, o.val)
		}
	}
	return q
}

// Fetcher retrieves the search feed for a feed instance.
type Fetcher struct {
	urls     URLBuilder
	syn      Syndicator
	lifetime time.Duration
}

func NewFetcher(urls URLBuilder, syn Syndicator) *Fetcher {
	return &Fetcher{urls: urls, syn: syn, lifetime: CacheLifetime}
}

// WithLifetime overrides the cache lifetime.
func (f *Fetcher) WithLifetime(d time.Duration) *Fetcher {
	f2 := *f
	f2.lifetime = d
	return &f2
}

// Fetch returns the feed for r, or nil if it could not be retrieved.
func (f *Fetcher) Fetch(ctx context.Context, r Request) *Feed {
	u := f.urls.URL(searchPath, Query(r))
	out, err := f.syn.Fetch(ctx, u, f.lifetime)
	if err != nil {
		slog.Warn("feed fetch failed", "instance", r.Config.ID, "error", err)
		return nil
	}
	return out
}
