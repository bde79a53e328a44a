package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/dialer"
	"campaign-dialer/pkg/utils"
)

const (
	defaultPollInterval = 15 * time.Second
	defaultPollBatch    = 100
	pollLockKey         = "locks:status-poller"
)

// Locker serializes poll sweeps across instances. Optional; without one
// the poller only guards against overlap within its own process.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// RedisLock is a best-effort distributed lock for the poll sweep. The
// TTL bounds how long a crashed holder can block others.
type RedisLock struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisLock(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLock{rdb: rdb, ttl: ttl, log: log}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, pollLockKey, 1, l.ttl)
}

func (l *RedisLock) Release(ctx context.Context) {
	if err := utils.ReleaseConcurrencyCap(ctx, l.rdb, pollLockKey); err != nil {
		l.log.Warn("poller lock release failed", "err", err)
	}
}

// Poller reconciles calls whose webhooks went missing. Every interval it
// asks the provider for the current state of each non-terminal call and
// feeds the answers through the same reconciler path the webhook uses,
// so a poll result and a late webhook cannot disagree about effects.
type Poller struct {
	store    campaigns.Store
	provider dialer.Provider
	applier  Applier
	locker   Locker
	log      *slog.Logger

	interval time.Duration
	batch    int
	running  atomic.Bool
}

func NewPoller(store campaigns.Store, provider dialer.Provider, applier Applier, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		store:    store,
		provider: provider,
		applier:  applier,
		log:      log,
		interval: defaultPollInterval,
		batch:    defaultPollBatch,
	}
}

// SetLocker installs a cross-instance sweep lock.
func (p *Poller) SetLocker(l Locker) { p.locker = l }

// SetInterval overrides the sweep cadence. Zero or negative keeps the
// default.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Run sweeps until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Info("status poller started", "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			p.log.Info("status poller stopped")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep polls every active call once. A sweep that is still running when
// the next tick fires is not joined by a second one; the tick is skipped.
func (p *Poller) Sweep(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("poll sweep still running, skipping tick")
		return
	}
	defer p.running.Store(false)

	if p.locker != nil {
		ok, err := p.locker.Acquire(ctx)
		if err != nil {
			p.log.Warn("poller lock acquire failed", "err", err)
			return
		}
		if !ok {
			return
		}
		defer p.locker.Release(ctx)
	}

	active, err := p.store.ListActiveCalls(ctx, p.batch)
	if err != nil {
		p.log.Error("list active calls failed", "err", err)
		return
	}
	for _, c := range active {
		if ctx.Err() != nil {
			return
		}
		if c.ExternalID == "" {
			continue
		}
		ev, err := p.provider.GetStatus(ctx, c.ExternalID)
		if err != nil {
			if errors.Is(err, dialer.ErrUnknownDial) {
				p.log.Warn("provider does not know dial",
					"call_id", c.CallID, "external_id", c.ExternalID)
				continue
			}
			// One bad call must not starve the rest of the sweep.
			p.log.Warn("status poll failed",
				"call_id", c.CallID, "external_id", c.ExternalID, "err", err)
			continue
		}
		if err := p.applier.Apply(ctx, ev); err != nil {
			p.log.Error("poll apply failed",
				"call_id", c.CallID, "external_id", c.ExternalID, "err", err)
		}
	}
}
