package widget

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"newsplugin/internal/auth"
	"newsplugin/internal/curation"
	"newsplugin/internal/feed"
	"newsplugin/internal/model"
	"newsplugin/internal/settings"
	"newsplugin/internal/style"
)

//go:embed widget.tmpl
var widgetTpl string

var compiled = template.Must(template.New("widget").Parse(widgetTpl))

// SettingsLoader resolves the account key and preferred transport.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// CurationStore reads and mutates per-instance curation state.
type CurationStore interface {
	Get(ctx context.Context, instance string) (model.CurationState, error)
	Apply(ctx context.Context, instance, action, arg string, count int) error
}

// FeedFetcher retrieves the search feed; nil means the fetch failed.
type FeedFetcher interface {
	Fetch(ctx context.Context, r feed.Request) *feed.Feed
}

// StyleLoader returns a user's display styles, nil when unset.
type StyleLoader interface {
	Load(ctx context.Context, uid int64) (style.Set, error)
}

// Tokens issues and checks request-authenticity tokens.
type Tokens interface {
	IssueActionToken(uid int64) (string, error)
	VerifyActionToken(token string, uid int64) error
}

// Renderer produces the HTML of a feed instance for one request.
type Renderer struct {
	Settings    SettingsLoader
	Curation    CurationStore
	Fetcher     FeedFetcher
	Styles      StyleLoader
	Tokens      Tokens
	DateFormat  string
	SettingsURL string

	now func() time.Time
}

func (r *Renderer) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Request is one render of one instance.
type Request struct {
	Config model.FeedConfig
	Viewer auth.Viewer
	// Page is the URL the widget is shown on; management links point back
	// to it.
	Page *url.URL
}

// Result is the rendered widget. When Forbidden is set, HTML is empty and
// Message explains why.
type Result struct {
	State     State
	HTML      template.HTML
	Forbidden bool
	Message   string
}

type links struct {
	Reset, Publish, Leave, Edit string
}

type entryView struct {
	Separator     bool
	Title         string
	Permalink     string
	Target        string
	NoFollow      bool
	Date          string
	Source        string
	ShowAbstract  bool
	Abstract      string
	HeadlineStyle template.CSS
	DateStyle     template.CSS
	SourceStyle   template.CSS
	AbstractStyle template.CSS
	Manage        bool
	Favorite      bool
	RemoveURL     string
	StarURL       string
}

type pageView struct {
	Instance      string
	Locked        bool
	ShowPrompt    bool
	SettingsURL   string
	Title         string
	TitleStyle    template.CSS
	Failed        bool
	EditBox       bool
	EditMode      bool
	Manual        bool
	Links         links
	PublishNotice string
	Help          string
	Entries       []entryView
}

// Render applies any management action on the request and renders the
// instance. Storage failures are returned as errors; a failed upstream
// fetch is rendered as a notice.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	cfg := req.Config
	viewer := req.Viewer
	canManage := viewer.CanManage()
	var query url.Values
	if req.Page != nil {
		query = req.Page.Query()
	}

	s, err := r.Settings.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	if !s.Active() {
		return r.execute(Locked, pageView{
			Instance:    cfg.ID,
			Locked:      true,
			ShowPrompt:  canManage,
			SettingsURL: r.SettingsURL,
		})
	}

	act := ParseAction(query)
	if act.EditMode() {
		if err := r.Tokens.VerifyActionToken(act.Token, viewer.UserID); err != nil {
			slog.Warn("rejected management request", "instance", act.Instance, "action", act.Name, "user", viewer.UserID, "error", err)
			return Result{Forbidden: true, Message: ForbiddenMessage}, nil
		}
	}
	state := DetermineState(true, canManage, act.EditMode())

	if canManage && act.Targets(cfg.ID) {
		err := r.Curation.Apply(ctx, cfg.ID, act.Name, act.Arg, cfg.Count)
		if err != nil && !errors.Is(err, curation.ErrUnknownAction) {
			return Result{}, fmt.Errorf("apply %s on %s: %w", act.Name, cfg.ID, err)
		}
	}

	var st model.CurationState
	if cfg.ID != "" {
		if st, err = r.Curation.Get(ctx, cfg.ID); err != nil {
			return Result{}, err
		}
	}

	uid := cfg.OwnerUID
	if uid == 0 {
		uid = viewer.UserID
	}
	var styles style.Set
	if uid != 0 && r.Styles != nil {
		if styles, err = r.Styles.Load(ctx, uid); err != nil {
			slog.Warn("load styles failed", "user", uid, "error", err)
		}
	}

	page := pageView{
		Instance:   cfg.ID,
		Title:      cfg.Title,
		TitleStyle: template.CSS(styles.Inline(style.NewsfeedTitle)),
	}

	now := r.clock()
	f := r.Fetcher.Fetch(ctx, feed.Request{
		Now:         now,
		Config:      cfg,
		APIKey:      s.APIKey,
		PublishedAt: st.PublishedAt,
		Live:        state == Edit,
		Limit:       feed.DefaultLimit,
	})
	if f == nil {
		page.Failed = true
		return r.execute(state, page)
	}

	var lb linkBuilder
	if canManage {
		token, err := r.Tokens.IssueActionToken(viewer.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("issue action token: %w", err)
		}
		lb = newLinkBuilder(req.Page, query, cfg.ID, token)
		r.decorateManagement(&page, lb, cfg, st, state, now)
	}

	visible := Visible(cfg.Count, cfg.Manual(), state)
	for _, e := range Select(f.Items, st, cfg.Count, visible) {
		ev := entryView{
			Separator:     e.SeparatorBefore,
			Title:         e.Item.Title,
			Permalink:     e.Item.Permalink,
			Target:        cfg.LinkOpenMode,
			NoFollow:      cfg.LinkFollow == "no",
			HeadlineStyle: template.CSS(styles.Inline(style.ArticleHeadline)),
			DateStyle:     template.CSS(styles.Inline(style.ArticleDate)),
			SourceStyle:   template.CSS(styles.Inline(style.ArticleSources)),
			AbstractStyle: template.CSS(styles.Inline(style.ArticleAbstract)),
			Favorite:      e.Favorite,
		}
		if cfg.ShowDate && !e.Item.Published.IsZero() {
			ev.Date = e.Item.Published.Format(r.dateFormat())
		}
		if cfg.ShowSource {
			ev.Source = e.Item.Source
		}
		if cfg.ShowAbstract {
			ev.ShowAbstract = true
			ev.Abstract = model.StripTags(e.Item.Abstract)
		}
		if state == Edit {
			ev.Manage = true
			ev.RemoveURL = lb.link(curation.ActionExclude, e.ID)
			if e.Favorite {
				ev.StarURL = lb.link(curation.ActionUnstar, e.ID)
			} else {
				ev.StarURL = lb.link(curation.ActionStar, e.ID)
			}
		}
		page.Entries = append(page.Entries, ev)
	}
	return r.execute(state, page)
}

func (r *Renderer) decorateManagement(page *pageView, lb linkBuilder, cfg model.FeedConfig, st model.CurationState, state State, now time.Time) {
	page.EditBox = true
	page.EditMode = state == Edit
	page.Manual = cfg.Manual()
	page.Links = links{
		Reset:   lb.link(curation.ActionReset, ""),
		Publish: lb.link(curation.ActionPublish, strconv.FormatInt(now.Unix(), 10)),
		Leave:   lb.link("", ""),
		Edit:    lb.link(curation.ActionEdit, ""),
	}
	if cfg.Manual() {
		switch {
		case st.PublishedAt != 0:
			page.PublishNotice = fmt.Sprintf("Headlines last published on %s.", time.Unix(st.PublishedAt, 0).UTC().Format("02 Jan 2006 15:04"))
		case page.EditMode:
			page.PublishNotice = "No headlines published yet."
		default:
			page.PublishNotice = "No headlines published yet. Use the Edit Newsfeed Mode to edit and publish your feed."
		}
	}
	if page.EditMode {
		const starHelp = "You can ☆ Star individual headlines to move them to the top or ✕ Remove them from the feed. Click Reset to undo these changes."
		if cfg.Manual() {
			plural := "s"
			if cfg.Count == 1 {
				plural = ""
			}
			page.Help = fmt.Sprintf("Once published, only the first %d headline%s will be displayed in your feed. %s Don’t forget to Publish Headlines when you are done.", cfg.Count, plural, starHelp)
		} else {
			page.Help = starHelp
		}
	}
}

func (r *Renderer) dateFormat() string {
	if r.DateFormat != "" {
		return r.DateFormat
	}
	return "January 2, 2006 3:04 pm"
}

func (r *Renderer) execute(state State, page pageView) (Result, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, page); err != nil {
		return Result{}, fmt.Errorf("render widget: %w", err)
	}
	return Result{State: state, HTML: template.HTML(buf.String())}, nil
}
