// Package transport performs single HTTP GETs over one of three mechanisms
// and falls back between them in a fixed order.
package transport

import (
	"context"
	"fmt"
	"strings"
)

// Result is the outcome of one GET. Err is empty on success.
type Result struct {
	Body string
	Err  string
}

// OK reports whether the attempt succeeded.
func (r Result) OK() bool { return r.Err == "" }

func failure(msg string) Result { return Result{Err: msg} }

// Getter performs a single GET.
type Getter interface {
	Get(ctx context.Context, url string) Result
}

// Method names a transport strategy.
type Method string

const (
	Platform Method = "platform"
	Native   Method = "native"
	Socket   Method = "socket"
)

// Chain is the fixed fallback order.
var Chain = []Method{Platform, Native, Socket}

// ParseMethod maps a stored method name to a Method. Legacy names are
// accepted; anything unknown selects Platform.
func ParseMethod(s string) Method {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", "curl":
		return Native
	case "socket":
		return Socket
	default:
		return Platform
	}
}

// UserAgent builds the agent string sent by every strategy.
func UserAgent(version string, m Method, siteURL string) string {
	return fmt.Sprintf("Newsplugin/%s %s; %s", version, m, siteURL)
}
