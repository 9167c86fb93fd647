package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opsdesk/opsdesk/internal/gateway"
)

const probeTimeout = 10 * time.Second

// ProbeTarget is a backend that can report reachability.
type ProbeTarget interface {
	Probe(ctx context.Context) error
}

// Prober refreshes the backend availability snapshot on a cron schedule.
// Handlers read the snapshot instead of probing inline, so one slow backend
// never stalls a chat turn.
type Prober struct {
	tracker  ProbeTarget
	wiki     ProbeTarget
	logger   *slog.Logger
	spec     string
	onStart  bool
	snapshot atomic.Pointer[gateway.Capabilities]
}

func NewProber(tracker, wiki ProbeTarget, spec string, onStart bool, logger *slog.Logger) *Prober {
	if spec == "" {
		spec = "@every 30s"
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		tracker: tracker,
		wiki:    wiki,
		logger:  logger,
		spec:    spec,
		onStart: onStart,
	}
	p.snapshot.Store(&gateway.Capabilities{})
	return p
}

// Snapshot returns the latest availability view. Before the first probe both
// backends read as unavailable.
func (p *Prober) Snapshot() gateway.Capabilities {
	return *p.snapshot.Load()
}

func (p *Prober) Start(ctx context.Context) error {
	if p.onStart {
		p.ProbeAll(ctx)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(p.spec, func() { p.ProbeAll(ctx) }); err != nil {
		return err
	}
	scheduler.Start()
	p.logger.Info("capability prober started", "schedule", p.spec)

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	p.logger.Info("capability prober stopped")
	return nil
}

// ProbeAll checks both backends and swaps in a fresh snapshot.
func (p *Prober) ProbeAll(ctx context.Context) {
	caps := gateway.Capabilities{
		TrackerAvailable: p.probeOne(ctx, "tracker", p.tracker),
		WikiAvailable:    p.probeOne(ctx, "wiki", p.wiki),
	}

	previous := *p.snapshot.Load()
	p.snapshot.Store(&caps)
	if caps != previous {
		p.logger.Info("capabilities changed",
			"tracker_available", caps.TrackerAvailable,
			"wiki_available", caps.WikiAvailable)
	}
}

func (p *Prober) probeOne(ctx context.Context, name string, target ProbeTarget) bool {
	if target == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := target.Probe(probeCtx); err != nil {
		p.logger.Debug("backend probe failed", "backend", name, "error", err)
		return false
	}
	return true
}
