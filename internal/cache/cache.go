// Package cache owns the enriched pool snapshot: when to refetch, how to
// rebuild, and what to serve while the upstream feed is down.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/yieldscout/internal/feed"
	"github.com/yourorg/yieldscout/internal/guard"
	"github.com/yourorg/yieldscout/internal/model"
	"github.com/yourorg/yieldscout/internal/normalize"
	"github.com/yourorg/yieldscout/internal/score"
)

// ErrNoSnapshot is returned when the feed fails before any snapshot has
// ever been built. With a warm cache the orchestrator degrades to stale
// data instead.
var ErrNoSnapshot = errors.New("no pool snapshot available: upstream feed unreachable")

// Orchestrator serves the current enriched snapshot, refreshing it from
// the feed when it ages past the TTL. Concurrent reads against an expired
// snapshot collapse into a single upstream fetch.
type Orchestrator struct {
	fetcher feed.Fetcher
	guard   *guard.Guard
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	snapshot *model.Snapshot
}

// NewOrchestrator creates an orchestrator over the given fetcher. The
// sanity guard is optional; pass nil to accept every payload.
func NewOrchestrator(fetcher feed.Fetcher, g *guard.Guard, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		guard:   g,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Tests use this to age the snapshot
// without sleeping.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Snapshot returns the current enriched snapshot, refreshing first if it
// is missing or older than the TTL. When a refresh fails over a warm
// cache the stale snapshot is served and the failure only logged; a cold
// cache failure is returned to the caller.
func (o *Orchestrator) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if snap := o.current(); snap != nil && o.now().Sub(snap.LastUpdated) < o.ttl {
		return snap, nil
	}

	fresh, err, _ := o.group.Do("refresh", func() (interface{}, error) {
		// Another waiter may have refreshed while this one queued.
		if snap := o.current(); snap != nil && o.now().Sub(snap.LastUpdated) < o.ttl {
			return snap, nil
		}
		return o.refresh(ctx)
	})
	if err != nil {
		if stale := o.current(); stale != nil {
			logrus.WithError(err).WithField(
				"age", o.now().Sub(stale.LastUpdated).String(),
			).Warn("Feed refresh failed, serving stale snapshot")
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	return fresh.(*model.Snapshot), nil
}

// ForceRefresh bypasses the TTL and refetches immediately. Unlike
// Snapshot it surfaces the refresh error even over a warm cache, so the
// caller learns the refresh did not happen. The previous snapshot stays
// in place for other readers either way.
func (o *Orchestrator) ForceRefresh(ctx context.Context) (*model.Snapshot, error) {
	fresh, err, _ := o.group.Do("refresh", func() (interface{}, error) {
		return o.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return fresh.(*model.Snapshot), nil
}

// Current returns whatever snapshot exists without triggering a refresh.
// Nil before the first successful fetch.
func (o *Orchestrator) Current() *model.Snapshot {
	return o.current()
}

// Age reports how old the current snapshot is. Zero when no snapshot
// exists yet.
func (o *Orchestrator) Age() time.Duration {
	snap := o.current()
	if snap == nil {
		return 0
	}
	return o.now().Sub(snap.LastUpdated)
}

func (o *Orchestrator) current() *model.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// refresh performs one full fetch-and-rebuild cycle.
func (o *Orchestrator) refresh(ctx context.Context) (*model.Snapshot, error) {
	start := o.now()

	raws, err := o.fetcher.FetchPools(ctx)
	if err != nil {
		return nil, err
	}

	pools := normalize.NormalizeAll(raws)
	scored := score.ComputeAll(pools)

	if o.guard != nil {
		if err := o.guard.Check(len(scored), totalTVL(scored)); err != nil {
			return nil, fmt.Errorf("payload rejected: %w", err)
		}
	}

	snap := buildSnapshot(scored, o.now())

	o.mu.Lock()
	o.snapshot = snap
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"raw_pools":   len(raws),
		"pools":       len(scored),
		"chains":      len(snap.Chains),
		"duration_ms": o.now().Sub(start).Milliseconds(),
	}).Info("Pool snapshot refreshed")

	return snap, nil
}

// buildSnapshot assembles the cache value: scored pools plus the summary
// stats and per-chain distribution the status endpoints serve.
func buildSnapshot(scored []model.PoolWithScore, at time.Time) *model.Snapshot {
	byChain := make(map[string]*model.ChainTVL)
	var apySum float64
	for _, p := range scored {
		apySum += p.APY
		row, ok := byChain[p.Chain]
		if !ok {
			row = &model.ChainTVL{Chain: p.Chain}
			byChain[p.Chain] = row
		}
		row.TVL += p.TVLUsd
		row.Count++
	}

	distribution := make([]model.ChainTVL, 0, len(byChain))
	for _, row := range byChain {
		distribution = append(distribution, *row)
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].TVL != distribution[j].TVL {
			return distribution[i].TVL > distribution[j].TVL
		}
		return distribution[i].Chain < distribution[j].Chain
	})

	chains := make([]string, 0, len(distribution))
	for _, row := range distribution {
		chains = append(chains, row.Chain)
	}

	stats := model.Stats{TotalPools: len(scored)}
	if len(scored) > 0 {
		stats.AvgAPY = apySum / float64(len(scored))
	}
	if len(distribution) > 0 {
		stats.TopChain = distribution[0].Chain
		stats.TopChainTVL = distribution[0].TVL
	}

	return &model.Snapshot{
		Pools:             scored,
		Stats:             stats,
		Chains:            chains,
		ChainDistribution: distribution,
		LastUpdated:       at,
	}
}

func totalTVL(scored []model.PoolWithScore) float64 {
	var sum float64
	for _, p := range scored {
		sum += p.TVLUsd
	}
	return sum
}
