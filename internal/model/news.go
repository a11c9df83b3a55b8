package model

import (
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Feed modes.
const (
	FeedModeDefault = ""
	FeedModeAuto    = "auto"
	FeedModeManual  = "manual"
)

// FeedItem is a single headline as returned by the remote search feed.
type FeedItem struct {
	NativeID  string    `json:"native_id"`
	Permalink string    `json:"permalink"`
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
	Abstract  string    `json:"abstract"`
}

// FeedConfig is the per-instance configuration of a newsfeed.
type FeedConfig struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Keywords        string `json:"keywords"`
	Count           int    `json:"count"`
	Age             int    `json:"age"` // hours, 0 = unlimited
	Sources         string `json:"sources"`
	ExcludedSources string `json:"excluded_sources"`
	SearchMode      string `json:"search_mode"`
	SearchType      string `json:"search_type"`
	SortMode        string `json:"sort_mode"`
	LinkOpenMode    string `json:"link_open_mode"`
	LinkFollow      string `json:"link_follow"`
	LinkType        string `json:"link_type"`
	ShowDate        bool   `json:"show_date"`
	ShowSource      bool   `json:"show_source"`
	ShowAbstract    bool   `json:"show_abstract"`
	FeedMode        string `json:"feed_mode"`
	OwnerUID        int64  `json:"owner_uid"`
}

// Manual reports whether headlines are buffered until published.
func (c FeedConfig) Manual() bool { return c.FeedMode == FeedModeManual }

var tagStripper = bluemonday.StrictPolicy()

// StripTags removes markup from a user-supplied string.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagStripper.Sanitize(s)))
}

// Sanitize normalizes a submitted configuration; uid is the acting user and
// becomes the owner when none is set.
func (c FeedConfig) Sanitize(uid int64) FeedConfig {
	out := c
	out.Title = StripTags(c.Title)
	out.Keywords = StripTags(c.Keywords)
	out.Sources = StripTags(c.Sources)
	out.ExcludedSources = StripTags(c.ExcludedSources)
	out.SearchMode = StripTags(c.SearchMode)
	out.SearchType = StripTags(c.SearchType)
	out.SortMode = StripTags(c.SortMode)
	out.LinkOpenMode = StripTags(c.LinkOpenMode)
	out.LinkFollow = StripTags(c.LinkFollow)
	out.LinkType = StripTags(c.LinkType)
	out.FeedMode = StripTags(c.FeedMode)
	out.Count = absInt(c.Count)
	if out.Count == 0 {
		out.Count = 5
	}
	out.Age = absInt(c.Age)
	if out.OwnerUID == 0 {
		out.OwnerUID = uid
	}
	return out
}

// ParseAttrs builds a configuration from shortcode-style attributes.
// Keywords default to "News"; the result is not sanitized.
func ParseAttrs(v url.Values) FeedConfig {
	keywords := v.Get("keywords")
	if _, ok := v["keywords"]; !ok {
		keywords = "News"
	}
	uid, _ := strconv.ParseInt(v.Get("wp_uid"), 10, 64)
	return FeedConfig{
		ID:              v.Get("id"),
		Title:           v.Get("title"),
		Keywords:        keywords,
		Count:           atoi(v.Get("count")),
		Age:             atoi(v.Get("age")),
		Sources:         v.Get("sources"),
		ExcludedSources: v.Get("excluded_sources"),
		SearchMode:      v.Get("search_mode"),
		SearchType:      v.Get("search_type"),
		SortMode:        v.Get("sort_mode"),
		LinkOpenMode:    v.Get("link_open_mode"),
		LinkFollow:      v.Get("link_follow"),
		LinkType:        v.Get("link_type"),
		ShowDate:        truthy(v.Get("show_date")),
		ShowSource:      truthy(v.Get("show_source")),
		ShowAbstract:    truthy(v.Get("show_abstract")),
		FeedMode:        v.Get("feed_mode"),
		OwnerUID:        uid,
	}
}

// CurationState holds per-instance curation lists, newest id first.
type CurationState struct {
	Excluded    []string `json:"excluded"`
	Favorite    []string `json:"favorite"`
	PublishedAt int64    `json:"published"` // unix seconds, 0 = never
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}
