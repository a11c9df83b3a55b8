package style

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MetaKey is the per-user preference key holding display styles.
const MetaKey = "news_style_dashbord_style"

var ErrUnknownSection = errors.New("unknown style section")

// Section names.
const (
	NewsfeedTitle   = "newsfeed_title"
	ArticleHeadline = "article_headline"
	ArticleAbstract = "article_abstract"
	ArticleDate     = "article_date"
	ArticleSources  = "article_sources"
)

// Section is the styling of one rendered element.
type Section struct {
	Color      string `json:"color" yaml:"color"`
	Size       string `json:"size" yaml:"size"`
	FontFamily string `json:"font_family" yaml:"font_family"`
}

// Set maps section names to their styling.
type Set map[string]Section

// Defaults returns the initial styles of a new user.
func Defaults() Set {
	sec := func(size string) Section {
		return Section{Color: "000000", Size: size, FontFamily: "Times New Roman"}
	}
	return Set{
		NewsfeedTitle:   sec("22"),
		ArticleHeadline: sec("18"),
		ArticleAbstract: sec("14"),
		ArticleDate:     sec("12"),
		ArticleSources:  sec("12"),
	}
}

// Inline renders the CSS declarations for a section, empty when the
// section is missing or blank.
func (s Set) Inline(section string) string {
	sec, ok := s[section]
	if !ok {
		return ""
	}
	var b strings.Builder
	if sec.Size != "" {
		fmt.Fprintf(&b, "font-size:%spx;", sec.Size)
	}
	if sec.Color != "" {
		fmt.Fprintf(&b, "color:#%s;", strings.TrimPrefix(sec.Color, "#"))
	}
	if sec.FontFamily != "" {
		fmt.Fprintf(&b, "font-family:%s;", sec.FontFamily)
	}
	return b.String()
}

// MetaStore is the per-user preference store.
type MetaStore interface {
	GetUserMeta(ctx context.Context, uid int64, key string) (string, bool, error)
	SetUserMeta(ctx context.Context, uid int64, key, value string) error
	DeleteUserMeta(ctx context.Context, uid int64, key string) error
}

// Prefs loads and saves user styles.
type Prefs struct {
	store MetaStore
}

func NewPrefs(store MetaStore) *Prefs {
	return &Prefs{store: store}
}

// Load returns the user's styles; nil when the user never saved any.
func (p *Prefs) Load(ctx context.Context, uid int64) (Set, error) {
	raw, ok, err := p.store.GetUserMeta(ctx, uid, MetaKey)
	if err != nil {
		return nil, fmt.Errorf("load style for user %d: %w", uid, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var s Set
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode style for user %d: %w", uid, err)
	}
	return s, nil
}

// Save merges s over the user's current styles, falling back to the
// defaults for sections never set.
func (p *Prefs) Save(ctx context.Context, uid int64, s Set) (Set, error) {
	cur, err := p.Load(ctx, uid)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		cur = Defaults()
	}
	for name, sec := range s {
		if _, known := Defaults()[name]; !known {
			return nil, fmt.Errorf("%w %q", ErrUnknownSection, name)
		}
		sec.Color = strings.TrimPrefix(sec.Color, "#")
		cur[name] = sec
	}
	b, err := json.Marshal(cur)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetUserMeta(ctx, uid, MetaKey, string(b)); err != nil {
		return nil, fmt.Errorf("save style for user %d: %w", uid, err)
	}
	return cur, nil
}

// Reset removes the user's styles.
func (p *Prefs) Reset(ctx context.Context, uid int64) error {
	return p.store.DeleteUserMeta(ctx, uid, MetaKey)
}
