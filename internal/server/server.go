// Package server exposes feed rendering and the management API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsplugin/internal/api"
	"newsplugin/internal/auth"
	"newsplugin/internal/model"
	"newsplugin/internal/storage"
	"newsplugin/internal/style"
	"newsplugin/internal/sysinfo"
	"newsplugin/internal/widget"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionCookie carries the viewer session when no bearer token is sent.
const SessionCookie = "newsplugin_session"

type FeedStore interface {
	GetFeed(ctx context.Context, id string) (model.FeedConfig, error)
}

type Sessions interface {
	ParseSession(token string) (auth.Viewer, error)
}

type Renderer interface {
	Render(ctx context.Context, req widget.Request) (widget.Result, error)
}

type SystemInfo interface {
	Ensure(ctx context.Context) (*sysinfo.Info, error)
	Refresh(ctx context.Context) (*sysinfo.Info, error)
}

type StylePrefs interface {
	Load(ctx context.Context, uid int64) (style.Set, error)
	Save(ctx context.Context, uid int64, s style.Set) (style.Set, error)
	Reset(ctx context.Context, uid int64) error
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Feeds       FeedStore
	Sessions    Sessions
	Renderer    Renderer
	SystemInfo  SystemInfo
	Styles      StylePrefs
	Diagnostics api.GetterSource
	APIRoot     string
}

// Server is the HTTP front of the feed service.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration

	deps   Deps
	router chi.Router
}

func New(deps Deps) *Server {
	s := &Server{deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.viewer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/feeds/{instance}", s.handleFeed)
	r.Get("/shortcode", s.handleShortcode)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireEditor)
		r.Get("/system-info", s.handleSystemInfo)
		r.Post("/system-info/refresh", s.handleSystemInfoRefresh)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/users/{uid}/style", s.handleGetStyle)
		r.Put("/users/{uid}/style", s.handlePutStyle)
		r.Delete("/users/{uid}/style", s.handleDeleteStyle)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type viewerKey struct{}

// ViewerFrom returns the identity attached to the request context.
func ViewerFrom(ctx context.Context) auth.Viewer {
	v, _ := ctx.Value(viewerKey{}).(auth.Viewer)
	return v
}

// viewer resolves the session from the bearer token or the session
// cookie. Invalid sessions are treated as anonymous visitors.
func (s *Server) viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if c, err := r.Cookie(SessionCookie); err == nil {
			token = c.Value
		}
		var v auth.Viewer
		if token != "" && s.deps.Sessions != nil {
			parsed, err := s.deps.Sessions.ParseSession(token)
			if err != nil {
				slog.Debug("ignoring invalid session", "error", err)
			} else {
				v = parsed
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

func requireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ViewerFrom(r.Context()).CanManage() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Feeds.GetFeed(r.Context(), chi.URLParam(r, "instance"))
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, "load feed", err)
		return
	}
	s.render(w, r, cfg)
}

func (s *Server) handleShortcode(w http.ResponseWriter, r *http.Request) {
	v := ViewerFrom(r.Context())
	cfg := model.ParseAttrs(r.URL.Query()).Sanitize(v.UserID)
	// Without an id the instance renders but cannot be curated.
	cfg.ID = model.StripTags(cfg.ID)
	s.render(w, r, cfg)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, cfg model.FeedConfig) {
	res, err := s.deps.Renderer.Render(r.Context(), widget.Request{
		Config: cfg,
		Viewer: ViewerFrom(r.Context()),
		Page:   r.URL,
	})
	if err != nil {
		s.serverError(w, "render feed", err)
		return
	}
	if res.Forbidden {
		http.Error(w, res.Message, http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(res.HTML))
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.SystemInfo.Ensure(r.Context())
	if err != nil {
		s.serverError(w, "system info", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSystemInfoRefresh(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.SystemInfo.Refresh(r.Context())
	if err != nil {
		s.serverError(w, "system info refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Diagnose(r.Context(), s.deps.Diagnostics, s.deps.APIRoot))
}

func styleUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil || uid <= 0 {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return 0, false
	}
	return uid, true
}

func (s *Server) handleGetStyle(w http.ResponseWriter, r *http.Request) {
	uid, ok := styleUser(w, r)
	if !ok {
		return
	}
	set, err := s.deps.Styles.Load(r.Context(), uid)
	if err != nil {
		s.serverError(w, "load style", err)
		return
	}
	if set == nil {
		set = style.Defaults()
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handlePutStyle(w http.ResponseWriter, r *http.Request) {
	uid, ok := styleUser(w, r)
	if !ok {
		return
	}
	var in style.Set
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	set, err := s.deps.Styles.Save(r.Context(), uid, in)
	if errors.Is(err, style.ErrUnknownSection) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, "save style", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteStyle(w http.ResponseWriter, r *http.Request) {
	uid, ok := styleUser(w, r)
	if !ok {
		return
	}
	if err := s.deps.Styles.Reset(r.Context(), uid); err != nil {
		s.serverError(w, "reset style", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
