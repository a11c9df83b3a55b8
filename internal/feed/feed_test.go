package feed

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newsplugin/internal/model"
	"newsplugin/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Search</title>
<item><guid>tag:a</guid><title>First</title><link>https://n.test/a</link>
<author>reuters@sources.test (Reuters)</author><description>Alpha &lt;b&gt;bold&lt;/b&gt;</description>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Second</title><link>https://n.test/b</link></item>
</channel></rss>`

func TestQuery(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	base := model.FeedConfig{ID: "w1", Title: "T", Keywords: "go lang", Count: 5}

	q := Query(Request{Now: now, Config: base, APIKey: "key"})
	assert.Equal(t, "key", q.Get("k"))
	assert.Equal(t, "go lang", q.Get("q"))
	assert.Equal(t, "100", q.Get("l"))
	assert.Equal(t, "5", q.Get("c"))
	assert.Equal(t, "T", q.Get("t"))
	for _, k := range []string{"b", "a", "src", "exclude", "mode", "type", "sort", "link", "link_open_mode", "link_follow"} {
		_, ok := q[k]
		assert.False(t, ok, k)
	}

	t.Run("manual uses publish time for visitors", func(t *testing.T) {
		cfg := base
		cfg.FeedMode = model.FeedModeManual
		cfg.Age = 2
		q := Query(Request{Now: now, Config: cfg, PublishedAt: 1_600_000_000})
		assert.Equal(t, "1600000000", q.Get("b"))
		assert.Equal(t, "1599992800", q.Get("a"))
	})

	t.Run("manual live uses request time", func(t *testing.T) {
		cfg := base
		cfg.FeedMode = model.FeedModeManual
		q := Query(Request{Now: now, Config: cfg, PublishedAt: 1_600_000_000, Live: true})
		assert.Equal(t, "1700000000", q.Get("b"))
	})

	t.Run("age without manual mode", func(t *testing.T) {
		cfg := base
		cfg.Age = 1
		q := Query(Request{Now: now, Config: cfg, Limit: 10})
		assert.Equal(t, "1699996400", q.Get("a"))
		assert.Equal(t, "10", q.Get("l"))
	})

	t.Run("optional filters", func(t *testing.T) {
		cfg := base
		cfg.Sources = "bbc.com"
		cfg.ExcludedSources = "cnn.com"
		cfg.SearchMode = "title"
		cfg.SearchType = "news"
		cfg.SortMode = "date"
		cfg.LinkType = "original"
		cfg.LinkOpenMode = "_blank"
		cfg.LinkFollow = "no"
		q := Query(Request{Now: now, Config: cfg})
		assert.Equal(t, "bbc.com", q.Get("src"))
		assert.Equal(t, "cnn.com", q.Get("exclude"))
		assert.Equal(t, "title", q.Get("mode"))
		assert.Equal(t, "news", q.Get("type"))
		assert.Equal(t, "date", q.Get("sort"))
		assert.Equal(t, "original", q.Get("link"))
		assert.Equal(t, "_blank", q.Get("link_open_mode"))
		assert.Equal(t, "no", q.Get("link_follow"))
	})
}

type urlRoot string

func (r urlRoot) URL(path string, args url.Values) string {
	return string(r) + path + "?" + args.Encode()
}

type fakeSyndicator struct {
	url      string
	lifetime time.Duration
	feed     *Feed
	err      error
}

func (f *fakeSyndicator) Fetch(ctx context.Context, u string, lifetime time.Duration) (*Feed, error) {
	f.url = u
	f.lifetime = lifetime
	return f.feed, f.err
}

func TestFetcherPassesCacheLifetime(t *testing.T) {
	syn := &fakeSyndicator{feed: &Feed{Title: "ok"}}
	f := NewFetcher(urlRoot("https://api.test/"), syn)

	got := f.Fetch(context.Background(), Request{Now: time.Unix(1, 0), Config: model.FeedConfig{Keywords: "x", Count: 1}})
	require.NotNil(t, got)
	assert.Equal(t, CacheLifetime, syn.lifetime)
	u, err := url.Parse(syn.url)
	require.NoError(t, err)
	assert.Equal(t, "/search", u.Path)
}

func TestFetcherFailureIsNil(t *testing.T) {
	syn := &fakeSyndicator{err: errors.New("upstream 500")}
	f := NewFetcher(urlRoot("https://api.test/"), syn)
	assert.Nil(t, f.Fetch(context.Background(), Request{Now: time.Now()}))
}

type countingGetter struct {
	mu    sync.Mutex
	calls int
	res   transport.Result
}

func (g *countingGetter) Get(ctx context.Context, url string) transport.Result {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.res
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memCache) GetCachedFeed(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memCache) PutCachedFeed(ctx context.Context, key string, body []byte, lifetime time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	m.ttl[key] = lifetime
	return nil
}

func TestCachingSyndicatorCachesBody(t *testing.T) {
	g := &countingGetter{res: transport.Result{Body: sampleRSS}}
	cache := newMemCache()
	s := NewCachingSyndicator(g, cache)
	ctx := context.Background()

	f, err := s.Fetch(ctx, "https://api.test/search?q=a", time.Hour)
	require.NoError(t, err)
	require.Len(t, f.Items, 2)

	_, err = s.Fetch(ctx, "https://api.test/search?q=a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, time.Hour, cache.ttl[cacheKey("https://api.test/search?q=a")])

	_, err = s.Fetch(ctx, "https://api.test/search?q=a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, g.calls)
}

func TestCachingSyndicatorErrors(t *testing.T) {
	s := NewCachingSyndicator(&countingGetter{res: transport.Result{Err: "Socket error: refused"}}, newMemCache())
	_, err := s.Fetch(context.Background(), "https://api.test/search", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Socket error: refused")

	s = NewCachingSyndicator(&countingGetter{res: transport.Result{Body: "not a feed"}}, newMemCache())
	_, err = s.Fetch(context.Background(), "https://api.test/search", time.Hour)
	assert.Error(t, err)
}

type gatedGetter struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedGetter) Get(ctx context.Context, url string) transport.Result {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	select {
	case <-g.release:
		return transport.Result{Body: sampleRSS}
	case <-ctx.Done():
		return transport.Result{Err: ctx.Err().Error()}
	}
}

func TestCachingSyndicatorSharedFetchSurvivesCallerCancel(t *testing.T) {
	g := &gatedGetter{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewCachingSyndicator(g, newMemCache())
	const u = "https://api.test/search?q=shared"

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Fetch(first, u, time.Hour)
		firstErr <- err
	}()
	<-g.entered

	type result struct {
		f   *Feed
		err error
	}
	second := make(chan result, 1)
	go func() {
		f, err := s.Fetch(context.Background(), u, time.Hour)
		second <- result{f, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(g.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Len(t, r.f.Items, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestConvertItems(t *testing.T) {
	s := NewCachingSyndicator(&countingGetter{res: transport.Result{Body: sampleRSS}}, nil)
	f, err := s.Fetch(context.Background(), "u", 0)
	require.NoError(t, err)

	first := f.Items[0]
	assert.Equal(t, "tag:a", first.NativeID)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "https://n.test/a", first.Permalink)
	assert.Equal(t, "reuters@sources.test", first.Source)
	assert.Equal(t, 2006, first.Published.Year())

	assert.Equal(t, "https://n.test/b", f.Items[1].NativeID)
	assert.Len(t, f.Take(1), 1)
	assert.Len(t, f.Take(10), 2)
}

func TestItemIDStable(t *testing.T) {
	assert.Equal(t, ItemID("tag:a"), ItemID("tag:a"))
	assert.NotEqual(t, ItemID("tag:a"), ItemID("tag:b"))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ItemID(""))
}
