// Package cachegc runs a periodic sweep of a cachestore.Store on a cron
// expression, generalizing src/schedule/standalone.go's StandaloneSchedule,
// which drives jobs off a cron-expression field on a time wheel. Here there
// is exactly one "job" — sweep the cache — so the time wheel's slot/circle
// machinery is unneeded; a single timer re-armed from cronexpr.Next after
// every tick, the same start/stop-channel shape as timeWheel, is enough.
package cachegc

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/traitorjs/modrun/cachestore"
	"github.com/traitorjs/modrun/internal/logger"
)

// Sweeper decides, for a cache key, whether the entry should be evicted —
// the Scheduler calls this instead of unconditionally wiping the cache, so
// callers can key eviction on module mtimes, generation counters, etc.
type Sweeper func(key string) bool

// Scheduler periodically sweeps a cachestore.Store, removing keys Sweeper
// reports as stale.
type Scheduler struct {
	store   cachestore.Store
	expr    *cronexpr.Expression
	sweeper Sweeper

	stop    chan struct{}
	running bool
}

// New parses cron (gorhill/cronexpr syntax, e.g. config.Config.CacheGCCron)
// and returns a Scheduler ready to Start.
func New(store cachestore.Store, cron string, sweeper Sweeper) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, err
	}
	return &Scheduler{store: store, expr: expr, sweeper: sweeper, stop: make(chan struct{})}, nil
}

// Start begins the sweep loop in a background goroutine, mirroring
// timeWheel.start's running-flag guard against double-starting.
func (s *Scheduler) Start(ctx context.Context) {
	if s.running {
		return
	}
	s.running = true
	go s.loop(ctx)
}

// Stop ends the sweep loop, mirroring timeWheel.stop's stop-channel send.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.stop <- struct{}{}
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.sweep(ctx)
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// SweepOnce runs a single sweep pass immediately, independent of the cron
// schedule — useful for tests and for an explicit "gc now" debug-server
// endpoint.
func (s *Scheduler) SweepOnce(ctx context.Context) { s.sweep(ctx) }

func (s *Scheduler) sweep(ctx context.Context) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		logger.Error("cachegc: listing keys:", err)
		return
	}
	for _, key := range keys {
		if !s.sweeper(key) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			logger.Error("cachegc: deleting", key, ":", err)
		}
	}
}
