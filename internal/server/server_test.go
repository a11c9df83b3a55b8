package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"newsplugin/internal/auth"
	"newsplugin/internal/curation"
	"newsplugin/internal/feed"
	"newsplugin/internal/model"
	"newsplugin/internal/settings"
	"newsplugin/internal/storage"
	"newsplugin/internal/style"
	"newsplugin/internal/sysinfo"
	"newsplugin/internal/transport"
	"newsplugin/internal/widget"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct{ feed *feed.Feed }

func (f staticFetcher) Fetch(ctx context.Context, r feed.Request) *feed.Feed { return f.feed }

type fakeSysInfo struct{ refreshed int }

func (f *fakeSysInfo) Ensure(ctx context.Context) (*sysinfo.Info, error) {
	return &sysinfo.Info{InfoVersion: sysinfo.Version, APIKey: "k"}, nil
}

func (f *fakeSysInfo) Refresh(ctx context.Context) (*sysinfo.Info, error) {
	f.refreshed++
	return f.Ensure(ctx)
}

type getters map[transport.Method]transport.Getter

func (g getters) Getter(m transport.Method) transport.Getter { return g[m] }

type constGetter transport.Result

func (g constGetter) Get(ctx context.Context, url string) transport.Result {
	return transport.Result(g)
}

type fixture struct {
	srv     *Server
	store   *storage.RedisStore
	issuer  *auth.Issuer
	sysinfo *fakeSysInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := storage.NewRedisStore(rdb)
	issuer := auth.NewIssuer(auth.Config{Secret: "test-secret", SessionTTL: time.Hour, ActionTTL: time.Hour})
	prefs := style.NewPrefs(store)
	si := &fakeSysInfo{}

	f := &feed.Feed{Title: "search", Items: []model.FeedItem{
		{NativeID: "a", Title: "Alpha", Permalink: "https://news.example/a"},
		{NativeID: "b", Title: "Beta", Permalink: "https://news.example/b"},
	}}
	renderer := &widget.Renderer{
		Settings: settings.NewProvider(store),
		Curation: curation.NewStore(store),
		Fetcher:  staticFetcher{feed: f},
		Styles:   prefs,
		Tokens:   issuer,
	}
	srv := New(Deps{
		Feeds:      store,
		Sessions:   issuer,
		Renderer:   renderer,
		SystemInfo: si,
		Styles:     prefs,
		Diagnostics: getters{
			transport.Platform: constGetter{Body: `{"client":"edge"}`},
		},
		APIRoot: "https://api.example.test/",
	})
	return &fixture{srv: srv, store: store, issuer: issuer, sysinfo: si}
}

func (fx *fixture) activate(t *testing.T) {
	require.NoError(t, fx.store.SetOption(context.Background(), settings.KeyAPIKey, "key"))
}

func (fx *fixture) editorToken(t *testing.T) string {
	tok, err := fx.issuer.IssueSession(auth.Viewer{UserID: 7, Caps: []string{auth.CapEditPages}})
	require.NoError(t, err)
	return tok
}

func (fx *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	fx.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestFeedNotFound(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(httptest.NewRequest(http.MethodGet, "/feeds/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedRendersForVisitor(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t)
	require.NoError(t, fx.store.SaveFeed(context.Background(), model.FeedConfig{ID: "w1", Title: "Top", Count: 2}))

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/feeds/w1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alpha")
	assert.Contains(t, body, "Beta")
	assert.NotContains(t, body, "Edit Newsfeed Mode")
}

func TestFeedLockedWithoutKey(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.SaveFeed(context.Background(), model.FeedConfig{ID: "w1", Count: 2}))

	req := httptest.NewRequest(http.MethodGet, "/feeds/w1", nil)
	req.Header.Set("Authorization", "Bearer "+fx.editorToken(t))
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Activation Key")
	assert.NotContains(t, rec.Body.String(), "Alpha")
}

func TestFeedEditorSeesManagementViaCookie(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t)
	require.NoError(t, fx.store.SaveFeed(context.Background(), model.FeedConfig{ID: "w1", Count: 2}))

	req := httptest.NewRequest(http.MethodGet, "/feeds/w1", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: fx.editorToken(t)})
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Edit Newsfeed Mode")
}

func TestFeedActionWithBadTokenIsForbidden(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t)
	require.NoError(t, fx.store.SaveFeed(context.Background(), model.FeedConfig{ID: "w1", Count: 2}))

	q := url.Values{}
	q.Set(widget.ParamInstance, "w1")
	q.Set(widget.ParamAction, curation.ActionExclude)
	q.Set(widget.ParamArg, feed.ItemID("a"))
	q.Set(widget.ParamToken, "forged")
	req := httptest.NewRequest(http.MethodGet, "/feeds/w1?"+q.Encode(), nil)
	req.Header.Set("Authorization", "Bearer "+fx.editorToken(t))
	rec := fx.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), widget.ForbiddenMessage)

	st, err := curation.NewStore(fx.store).Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.Empty(t, st.Excluded)
}

func TestFeedActionWithValidTokenApplies(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t)
	require.NoError(t, fx.store.SaveFeed(context.Background(), model.FeedConfig{ID: "w1", Count: 2}))
	nonce, err := fx.issuer.IssueActionToken(7)
	require.NoError(t, err)

	q := url.Values{}
	q.Set(widget.ParamInstance, "w1")
	q.Set(widget.ParamAction, curation.ActionExclude)
	q.Set(widget.ParamArg, feed.ItemID("a"))
	q.Set(widget.ParamToken, nonce)
	req := httptest.NewRequest(http.MethodGet, "/feeds/w1?"+q.Encode(), nil)
	req.Header.Set("Authorization", "Bearer "+fx.editorToken(t))
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Alpha")
	assert.Contains(t, rec.Body.String(), "Beta")
}

func TestShortcode(t *testing.T) {
	fx := newFixture(t)
	fx.activate(t)
	rec := fx.do(httptest.NewRequest(http.MethodGet, "/shortcode?title=%3Cb%3EHi%3C%2Fb%3E&count=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, ">Hi</h3>")
	assert.Contains(t, body, "Alpha")
	assert.NotContains(t, body, "Beta")
}

func TestAPIRequiresEditor(t *testing.T) {
	fx := newFixture(t)
	for _, path := range []string{"/api/system-info", "/api/diagnostics", "/api/users/7/style"} {
		rec := fx.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/system-info", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusForbidden, fx.do(req).Code)
}

func TestSystemInfo(t *testing.T) {
	fx := newFixture(t)
	tok := fx.editorToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system-info", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var info sysinfo.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, sysinfo.Version, info.InfoVersion)

	req = httptest.NewRequest(http.MethodPost, "/api/system-info/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, fx.do(req).Code)
	assert.Equal(t, 1, fx.sysinfo.refreshed)
}

func TestDiagnostics(t *testing.T) {
	fx := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil)
	req.Header.Set("Authorization", "Bearer "+fx.editorToken(t))
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "platform", reports[0]["method"])
	assert.Equal(t, "OK", reports[0]["http"])
	assert.Equal(t, "OK from edge", reports[0]["ping"])
}

func TestStyleLifecycle(t *testing.T) {
	fx := newFixture(t)
	bearer := "Bearer " + fx.editorToken(t)
	send := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/users/7/style", strings.NewReader(body))
		req.Header.Set("Authorization", bearer)
		return fx.do(req)
	}

	rec := send(http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got style.Set
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, style.Defaults(), got)

	rec = send(http.MethodPut, `{"bogus":{"color":"fff"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPut, `{"article_date":{"color":"#ff0000","size":"10","font_family":"Arial"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ff0000", got[style.ArticleDate].Color)

	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, "").Code)
	set, err := style.NewPrefs(fx.store).Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestStyleRejectsBadUser(t *testing.T) {
	fx := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/style", nil)
	req.Header.Set("Authorization", "Bearer "+fx.editorToken(t))
	assert.Equal(t, http.StatusBadRequest, fx.do(req).Code)
}
