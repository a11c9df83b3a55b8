package transport

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "newsplugin",
	Subsystem: "transport",
	Name:      "attempts_total",
	Help:      "Outbound GET attempts by strategy and outcome.",
}, []string{"method", "outcome"})

// Dispatcher tries strategies along Chain starting at the preferred one.
type Dispatcher struct {
	getters map[Method]Getter
}

func NewDispatcher(platform, native, socket Getter) *Dispatcher {
	return &Dispatcher{getters: map[Method]Getter{
		Platform: platform,
		Native:   native,
		Socket:   socket,
	}}
}

// Getter returns the strategy registered for m.
func (d *Dispatcher) Getter(m Method) Getter {
	return d.getters[m]
}

// Get attempts preferred first and then the rest of the fixed chain after
// it, returning the first success or the last attempt's result.
func (d *Dispatcher) Get(ctx context.Context, url string, preferred Method) Result {
	start := 0
	for i, m := range Chain {
		if m == preferred {
			start = i
		}
	}
	chain := Chain[start:]
	var res Result
	for i, m := range chain {
		g := d.getters[m]
		if g == nil {
			res = failure("Error: " + string(m) + " transport not configured")
		} else {
			res = g.Get(ctx, url)
		}
		if res.OK() {
			attempts.WithLabelValues(string(m), "ok").Inc()
			slog.Debug("transport get ok", "method", m, "url", url)
			return res
		}
		attempts.WithLabelValues(string(m), "error").Inc()
		slog.Debug("transport get failed", "method", m, "url", url, "error", res.Err)
		if i+1 < len(chain) {
			slog.Info("transport falling back", "from", m, "to", chain[i+1], "url", url, "error", res.Err)
		}
	}
	return res
}

type chainGetter struct {
	d    *Dispatcher
	from Method
}

func (g chainGetter) Get(ctx context.Context, url string) Result {
	return g.d.Get(ctx, url, g.from)
}

// From returns a Getter that walks the chain starting at m.
func (d *Dispatcher) From(m Method) Getter {
	return chainGetter{d: d, from: m}
}
