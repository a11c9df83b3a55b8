package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"

	"newsplugin/internal/transport"
)

const pingPath = "ping"

// TestURLs returns the plain and TLS connectivity test endpoints for root.
func TestURLs(root string) (plain, secure string) {
	host := "api.newsplugin.com"
	if u, err := url.Parse(root); err == nil && u.Host != "" {
		host = u.Host
	}
	return "http://" + host + "/" + pingPath, "https://" + host + "/" + pingPath
}

// ConnectivityTest fetches url with g and checks that the service answers
// like the ping endpoint.
func ConnectivityTest(ctx context.Context, g transport.Getter, url string) transport.Result {
	return EvaluateTest(g.Get(ctx, url))
}

// EvaluateTest accepts a body that is a JSON object with a client field or
// with server set to "online". Anything else becomes an error that quotes
// the start of the body.
func EvaluateTest(res transport.Result) transport.Result {
	var obj map[string]any
	_ = json.Unmarshal([]byte(res.Body), &obj)
	_, hasClient := obj["client"]
	if res.Err != "" || (!hasClient && obj["server"] != "online") {
		res.Err = "Error: unexpected content; Starts with " + quoteStart(res.Body)
	}
	return res
}

// PingResult is a ping attempt with the decoded responder name.
type PingResult struct {
	transport.Result
	Client string
}

// Summary renders the result the way system info reports it.
func (p PingResult) Summary() string {
	if p.Err != "" {
		return p.Err
	}
	return "OK from " + p.Client
}

// PingTest calls the ping endpoint under root with g, bypassing
// authentication and the diagnostic log.
func PingTest(ctx context.Context, g transport.Getter, root string) PingResult {
	return EvaluatePing(g.Get(ctx, root+pingPath))
}

// EvaluatePing requires a JSON object body. A decode failure is reported
// with its reason and the start of the body.
func EvaluatePing(res transport.Result) PingResult {
	out := PingResult{Result: res}
	if res.Err != "" {
		return out
	}
	var v any
	err := json.Unmarshal([]byte(res.Body), &v)
	obj, isObject := v.(map[string]any)
	if err != nil || !isObject {
		msg := "Error: not json"
		if err != nil {
			msg += ":" + decodeReason(err)
		}
		out.Err = msg + "; Starts with " + quoteStart(res.Body)
		return out
	}
	if c, ok := obj["client"]; ok && c != nil {
		out.Client = fmt.Sprint(c)
	}
	return out
}

func decodeReason(err error) string {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return "Syntax error"
	}
	return err.Error()
}

func quoteStart(body string) string {
	if len(body) > 30 {
		body = body[:30]
	}
	return html.EscapeString(body)
}

// GetterSource hands out the getter registered for a strategy.
type GetterSource interface {
	Getter(m transport.Method) transport.Getter
}

// StrategyReport is the diagnostics outcome of one strategy.
type StrategyReport struct {
	Method transport.Method `json:"method" yaml:"method"`
	Plain  string           `json:"http" yaml:"http"`
	Secure string           `json:"https" yaml:"https"`
	Ping   string           `json:"ping" yaml:"ping"`
}

// Diagnose runs the connectivity tests and the ping against every
// strategy in chain order. Strategies that are not configured are skipped.
func Diagnose(ctx context.Context, src GetterSource, root string) []StrategyReport {
	plain, secure := TestURLs(root)
	var out []StrategyReport
	for _, m := range transport.Chain {
		g := src.Getter(m)
		if g == nil {
			continue
		}
		out = append(out, StrategyReport{
			Method: m,
			Plain:  okText(ConnectivityTest(ctx, g, plain)),
			Secure: okText(ConnectivityTest(ctx, g, secure)),
			Ping:   PingTest(ctx, g, root).Summary(),
		})
	}
	return out
}

func okText(r transport.Result) string {
	if r.Err != "" {
		return r.Err
	}
	return "OK"
}
