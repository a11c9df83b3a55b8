package widget

import (
	"newsplugin/internal/feed"
	"newsplugin/internal/model"
)

// State is what a viewer sees of a feed instance.
type State int

const (
	Locked State = iota // no account key
	View                // plain listing
	Manage              // curator outside edit mode
	Edit                // curator in edit mode
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case View:
		return "view"
	case Manage:
		return "manage"
	case Edit:
		return "edit"
	}
	return "unknown"
}

// DetermineState derives the display state for one request.
func DetermineState(active, canManage, editMode bool) State {
	switch {
	case !active:
		return Locked
	case canManage && editMode:
		return Edit
	case canManage:
		return Manage
	default:
		return View
	}
}

// Visible is how many items to show. Curators editing a manual feed see
// extra candidates.
func Visible(count int, manual bool, state State) int {
	if manual && state == Edit {
		return max(2*count, 5)
	}
	return count
}

// Entry is one selected headline.
type Entry struct {
	Item     model.FeedItem
	ID       string
	Favorite bool
	// SeparatorBefore marks the first item beyond what visitors see.
	SeparatorBefore bool
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Select orders items for display: favorites first, then the rest, both
// in upstream order, skipping excluded ids, up to visible entries.
func Select(items []model.FeedItem, st model.CurationState, count, visible int) []Entry {
	exclude := toSet(st.Excluded)
	favorite := toSet(st.Favorite)

	candidates := items
	if n := visible + len(exclude); n < len(candidates) {
		candidates = candidates[:n]
	}
	ids := make([]string, len(candidates))
	for i, it := range candidates {
		ids[i] = feed.ItemID(it.NativeID)
	}

	out := make([]Entry, 0, visible)
	emit := func(wantFavorite bool) {
		for i, it := range candidates {
			if len(out) >= visible {
				return
			}
			id := ids[i]
			if exclude[id] || favorite[id] != wantFavorite {
				continue
			}
			out = append(out, Entry{
				Item:            it,
				ID:              id,
				Favorite:        favorite[id],
				SeparatorBefore: len(out) == count,
			})
		}
	}
	emit(true)
	emit(false)
	return out
}
