package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsplugin/internal/sysinfo"

	"github.com/robfig/cron/v3"
)

type SystemInfoRefresher interface {
	Refresh(ctx context.Context) (*sysinfo.Info, error)
}

// SysInfoRefresher rebuilds the system info snapshot on a cron schedule.
type SysInfoRefresher struct {
	Info     SystemInfoRefresher
	Schedule string
	Timeout  time.Duration
}

func (w *SysInfoRefresher) Name() string { return "sysinfo-refresher" }

func (w *SysInfoRefresher) Start(ctx context.Context) error {
	if w.Schedule == "" {
		w.Schedule = "0 * * * *"
	}
	c := cron.New()
	if _, err := c.AddFunc(w.Schedule, func() { w.runOnce(ctx) }); err != nil {
		return fmt.Errorf("sysinfo schedule %q: %w", w.Schedule, err)
	}
	c.Start()
	slog.Info("sysinfo refresher scheduled", "schedule", w.Schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *SysInfoRefresher) runOnce(ctx context.Context) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := w.Info.Refresh(ctx); err != nil {
		slog.Error("sysinfo refresh failed", "error", err)
	}
}
