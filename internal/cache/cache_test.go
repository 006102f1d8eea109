package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/yieldscout/internal/guard"
	"github.com/yourorg/yieldscout/internal/model"
)

// fakeFetcher returns a canned payload or error and counts calls.
type fakeFetcher struct {
	pools []model.RawPool
	err   error
	calls int
}

func (f *fakeFetcher) FetchPools(ctx context.Context) ([]model.RawPool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

// fakeClock is an adjustable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func rawPool(id, chain string, tvl, apy float64) model.RawPool {
	return model.RawPool{
		Pool:    id,
		Chain:   chain,
		Project: "curve-dex",
		Symbol:  "USDC-DAI",
		TVLUsd:  tvl,
		APY:     model.Float64(apy),
	}
}

func testPayload() []model.RawPool {
	return []model.RawPool{
		rawPool("p1", "Ethereum", 20_000_000, 10),
		rawPool("p2", "Ethereum", 5_000_000, 6),
		rawPool("p3", "Polygon", 8_000_000, 14),
	}
}

func newTestOrchestrator(f *fakeFetcher, clock *fakeClock) *Orchestrator {
	return NewOrchestrator(f, nil, 2*time.Minute).WithClock(clock.now)
}

func TestSnapshot_ColdFetchBuildsSummaries(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	snap, err := o.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Pools, 3)

	assert.Equal(t, 3, snap.Stats.TotalPools)
	assert.InDelta(t, 10.0, snap.Stats.AvgAPY, 1e-9)
	assert.Equal(t, "Ethereum", snap.Stats.TopChain, "Chain with the most TVL leads")
	assert.Equal(t, 25_000_000.0, snap.Stats.TopChainTVL)

	require.Len(t, snap.ChainDistribution, 2)
	assert.Equal(t, []string{"Ethereum", "Polygon"}, snap.Chains, "Chains are ordered by TVL")
	assert.Equal(t, 2, snap.ChainDistribution[0].Count)
	assert.Equal(t, clock.t, snap.LastUpdated)
}

func TestSnapshot_FreshSnapshotSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	_, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	clock.advance(90 * time.Second) // still inside the 2 minute TTL
	_, err = o.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls, "Fresh snapshot must not trigger a refetch")
}

func TestSnapshot_ExpiredSnapshotRefetches(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	_, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	clock.advance(3 * time.Minute)
	snap, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, clock.t, snap.LastUpdated, "Refetch stamps the new time")
}

func TestSnapshot_StaleServeOnUpstreamFailure(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	warm, err := o.Snapshot(context.Background())
	require.NoError(t, err)
	warmTime := warm.LastUpdated

	// Feed goes down, TTL elapses
	fetcher.err = errors.New("connection refused")
	clock.advance(5 * time.Minute)

	snap, err := o.Snapshot(context.Background())
	require.NoError(t, err, "Warm cache must absorb upstream failures")
	assert.Equal(t, warmTime, snap.LastUpdated, "Stale snapshot keeps its original timestamp")
	assert.Len(t, snap.Pools, 3, "Stale pools are served unchanged")
}

func TestSnapshot_ColdFailurePropagates(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	_, err := o.Snapshot(context.Background())
	require.Error(t, err, "Cold cache has nothing to serve")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestForceRefresh_BypassesTTL(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	_, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	clock.advance(10 * time.Second) // far inside the TTL
	snap, err := o.ForceRefresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls, "Force refresh always hits the feed")
	assert.Equal(t, clock.t, snap.LastUpdated)
}

func TestForceRefresh_SurfacesErrorOverWarmCache(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	warm, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	fetcher.err = errors.New("feed down")
	_, err = o.ForceRefresh(context.Background())
	assert.Error(t, err, "Force refresh reports failure instead of silently serving stale")

	assert.Equal(t, warm.LastUpdated, o.Current().LastUpdated, "Previous snapshot stays in place")
}

func TestRefresh_GuardRejectionKeepsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	g := guard.New(guard.Thresholds{
		MaxPoolCountDrop: 0.5,
		MaxTVLChange:     10,
		MinPoolCount:     1,
	})
	o := NewOrchestrator(fetcher, g, 2*time.Minute).WithClock(clock.now)

	warm, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	// Feed suddenly returns a single pool, a >50% collapse
	fetcher.pools = []model.RawPool{rawPool("p1", "Ethereum", 20_000_000, 10)}
	clock.advance(3 * time.Minute)

	snap, err := o.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, warm.LastUpdated, snap.LastUpdated, "Rejected payload falls back to the held snapshot")
	assert.Len(t, snap.Pools, 3)
}

func TestSnapshot_RejectedRecordsNeverAppear(t *testing.T) {
	payload := testPayload()
	payload = append(payload,
		model.RawPool{Pool: "bad1", Chain: "Ethereum", TVLUsd: 0, APY: model.Float64(5)},
		model.RawPool{Pool: "bad2", Chain: "Ethereum", TVLUsd: 1_000_000, APY: nil},
	)
	fetcher := &fakeFetcher{pools: payload}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	snap, err := o.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Pools, 3)
	for _, p := range snap.Pools {
		assert.NotContains(t, []string{"bad1", "bad2"}, p.PoolID)
	}
}

func TestAge(t *testing.T) {
	fetcher := &fakeFetcher{pools: testPayload()}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := newTestOrchestrator(fetcher, clock)

	assert.Equal(t, time.Duration(0), o.Age(), "No snapshot yet")

	_, err := o.Snapshot(context.Background())
	require.NoError(t, err)

	clock.advance(45 * time.Second)
	assert.Equal(t, 45*time.Second, o.Age())
}
