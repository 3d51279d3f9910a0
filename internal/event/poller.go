package event

import (
	"context"
	"log/slog"
	"time"
)

// Poller keeps the cache warm: it refreshes on a fixed interval and whenever
// Refresh is called. The terminal additionally refreshes the cache
// synchronously when it matters (mode entry, after a rejected submission);
// the poller only shortens how long a stale event survives while idle.
type Poller struct {
	cache    *Cache
	interval time.Duration
	refresh  chan struct{}
	logger   *slog.Logger
}

func NewPoller(cache *Cache, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		cache:    cache,
		interval: interval,
		refresh:  make(chan struct{}, 1),
		logger:   logger,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-p.refresh:
		}
		_ = p.cache.Refresh(ctx)
	}
}

// Refresh nudges the poller to refresh now. It never blocks; a refresh that
// is already pending covers the request.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}
