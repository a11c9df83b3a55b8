package feed

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"newsplugin/internal/model"

	"github.com/mmcdole/gofeed"
)

// Feed is a parsed search result.
type Feed struct {
	Title string
	Items []model.FeedItem
}

// Take returns at most n items from the top of the feed.
func (f *Feed) Take(n int) []model.FeedItem {
	if n < 0 {
		n = 0
	}
	if n > len(f.Items) {
		n = len(f.Items)
	}
	return f.Items[:n]
}

// ItemID derives the curation identity of an item from its upstream id.
func ItemID(nativeID string) string {
	sum := md5.Sum([]byte(nativeID))
	return hex.EncodeToString(sum[:])
}

// nativeID picks the upstream identity: guid, else link, else title.
func nativeID(it *gofeed.Item) string {
	switch {
	case it.GUID != "":
		return it.GUID
	case it.Link != "":
		return it.Link
	default:
		return it.Title
	}
}

// source is the author address, which the search feed uses to carry the
// publishing outlet.
func source(it *gofeed.Item) string {
	p := it.Author
	if p == nil && len(it.Authors) > 0 {
		p = it.Authors[0]
	}
	if p == nil {
		return ""
	}
	if p.Email != "" {
		return p.Email
	}
	return p.Name
}

func convert(parsed *gofeed.Feed) *Feed {
	out := &Feed{Title: parsed.Title, Items: make([]model.FeedItem, 0, len(parsed.Items))}
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		var published time.Time
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			published = *it.UpdatedParsed
		}
		out.Items = append(out.Items, model.FeedItem{
			NativeID:  nativeID(it),
			Permalink: strings.TrimSpace(it.Link),
			Title:     strings.TrimSpace(it.Title),
			Published: published,
			Source:    source(it),
			Abstract:  it.Description,
		})
	}
	return out
}
