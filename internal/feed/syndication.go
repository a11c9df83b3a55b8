package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsplugin/internal/transport"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

// Syndicator retrieves and parses a syndication feed. lifetime is how long
// a fetched body may be served from cache; zero disables caching.
type Syndicator interface {
	Fetch(ctx context.Context, url string, lifetime time.Duration) (*Feed, error)
}

// BodyCache stores raw feed bodies.
type BodyCache interface {
	GetCachedFeed(ctx context.Context, key string) ([]byte, bool, error)
	PutCachedFeed(ctx context.Context, key string, body []byte, lifetime time.Duration) error
}

// CachingSyndicator fetches feeds over a transport, caches raw bodies and
// collapses concurrent fetches of the same URL.
type CachingSyndicator struct {
	getter transport.Getter
	cache  BodyCache
	group  singleflight.Group
}

func NewCachingSyndicator(getter transport.Getter, cache BodyCache) *CachingSyndicator {
	return &CachingSyndicator{
		getter: getter,
		cache:  cache,
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (s *CachingSyndicator) Fetch(ctx context.Context, url string, lifetime time.Duration) (*Feed, error) {
	key := cacheKey(url)
	if lifetime > 0 && s.cache != nil {
		b, ok, err := s.cache.GetCachedFeed(ctx, key)
		if err != nil {
			slog.Warn("feed cache read failed", "error", err)
		} else if ok {
			if f, err := s.parse(b); err == nil {
				return f, nil
			}
		}
	}

	// The shared fetch outlives any single caller; transport timeouts bound it.
	fctx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(url, func() (any, error) {
		res := s.getter.Get(fctx, url)
		if !res.OK() {
			return nil, errors.New(res.Err)
		}
		body := []byte(res.Body)
		f, err := s.parse(body)
		if err != nil {
			return nil, err
		}
		if lifetime > 0 && s.cache != nil {
			if err := s.cache.PutCachedFeed(fctx, key, body, lifetime); err != nil {
				slog.Warn("feed cache write failed", "error", err)
			}
		}
		return f, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch feed: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("fetch feed: %w", r.Err)
		}
		return r.Val.(*Feed), nil
	}
}

func (s *CachingSyndicator) parse(body []byte) (*Feed, error) {
	// gofeed parsers keep per-parse state.
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return convert(parsed), nil
}
