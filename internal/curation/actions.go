package curation

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Management action names carried on requests.
const (
	ActionEdit    = "edit"
	ActionExclude = "exclude"
	ActionStar    = "star"
	ActionUnstar  = "unstar"
	ActionReset   = "reset"
	ActionPublish = "publish"
)

var ErrUnknownAction = errors.New("unknown curation action")

// ActionLimit is the list bound used by management actions.
func ActionLimit(count int) int {
	return max(DefaultLimit, 2*count)
}

// SanitizeKey lowercases s and keeps only [a-z0-9_-].
func SanitizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Apply dispatches a management action against instance. count is the
// instance's configured display count. Edit and empty actions are no-ops.
func (s *Store) Apply(ctx context.Context, instance, action, arg string, count int) error {
	action = SanitizeKey(action)
	arg = SanitizeKey(arg)
	switch action {
	case "", ActionEdit:
		return nil
	case ActionExclude:
		return s.Exclude(ctx, instance, arg, ActionLimit(count))
	case ActionStar:
		return s.Star(ctx, instance, arg, ActionLimit(count))
	case ActionUnstar:
		return s.Unstar(ctx, instance, arg)
	case ActionReset:
		return s.Reset(ctx, instance)
	case ActionPublish:
		t, _ := strconv.ParseInt(arg, 10, 64)
		if t < 0 {
			t = -t
		}
		return s.SetPublished(ctx, instance, t)
	default:
		return ErrUnknownAction
	}
}
