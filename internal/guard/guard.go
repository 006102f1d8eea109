// Package guard protects the pool cache against implausible upstream
// payloads. A feed that suddenly returns a fraction of its usual pool
// universe, or an aggregate TVL that swings wildly between refreshes, is
// more likely degraded than truthful; the guard keeps the last accepted
// snapshot serving until the feed looks sane again.
package guard

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the snapshot guard.
type State int

const (
	StateClosed   State = iota // Normal operation, payloads accepted
	StateOpen                  // Tripped, payloads rejected until cooldown
	StateHalfOpen              // Cooldown elapsed, testing recovery
)

// String returns the lower-case state name used in logs and the status
// endpoint.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Thresholds defines the limits that trip the guard.
type Thresholds struct {
	// Maximum fractional drop in pool count between consecutive accepted
	// payloads (0.9 means losing more than 90% of pools trips).
	MaxPoolCountDrop float64 `json:"max_pool_count_drop"`

	// Maximum fractional change in aggregate TVL between consecutive
	// accepted payloads.
	MaxTVLChange float64 `json:"max_tvl_change"`

	// Minimum pool count for any acceptable payload.
	MinPoolCount int `json:"min_pool_count"`
}

// Guard implements the sanity check with open/half-open recovery.
type Guard struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time

	// Duration before a tripped guard allows a recovery attempt.
	resetDelay time.Duration

	// Consecutive accepted payloads needed to leave half-open.
	successThreshold int
	successCount     int

	// Clock, swappable in tests.
	now func() time.Time

	// Last accepted payload summary, used for comparison.
	lastPoolCount int
	lastTotalTVL  float64
	hasBaseline   bool

	mu sync.Mutex
}

// New creates a Guard with the provided thresholds.
func New(t Thresholds) *Guard {
	return &Guard{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 2,
		now:              time.Now,
	}
}

// WithResetDelay sets a custom cooldown before recovery attempts.
func (g *Guard) WithResetDelay(delay time.Duration) *Guard {
	g.resetDelay = delay
	return g
}

// WithClock replaces the time source. Tests use it to step through the
// cooldown without sleeping.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check evaluates a candidate payload summary against the thresholds.
// A nil return means the payload may replace the current snapshot. A
// non-nil return means the caller must keep serving its previous
// snapshot; the payload is discarded, not an error condition for the
// request path.
func (g *Guard) Check(poolCount int, totalTVL float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateOpen {
		if g.now().Sub(g.lastTrip) > g.resetDelay {
			g.state = StateHalfOpen
			g.successCount = 0
			logrus.Info("Snapshot guard half-open: testing feed recovery")
		} else {
			return errors.New("snapshot guard open: holding last accepted snapshot")
		}
	}

	if poolCount < g.thresholds.MinPoolCount {
		reason := fmt.Sprintf("pool count below floor: got %d, need %d",
			poolCount, g.thresholds.MinPoolCount)
		g.trip(reason)
		return errors.New(reason)
	}

	if g.hasBaseline {
		if g.lastPoolCount > 0 {
			drop := float64(g.lastPoolCount-poolCount) / float64(g.lastPoolCount)
			if drop > g.thresholds.MaxPoolCountDrop {
				reason := fmt.Sprintf("pool count collapsed: %.1f%% drop (threshold: %.1f%%)",
					drop*100, g.thresholds.MaxPoolCountDrop*100)
				g.trip(reason)
				return errors.New(reason)
			}
		}

		// Skip the TVL comparison for tiny baselines to avoid
		// division blowups.
		if g.lastTotalTVL > 1.0 {
			changeRatio := math.Abs(totalTVL-g.lastTotalTVL) / g.lastTotalTVL
			if changeRatio > g.thresholds.MaxTVLChange {
				reason := fmt.Sprintf("aggregate TVL change too drastic: %.2f%% (threshold: %.2f%%)",
					changeRatio*100, g.thresholds.MaxTVLChange*100)
				g.trip(reason)
				return errors.New(reason)
			}
		}
	}

	g.lastPoolCount = poolCount
	g.lastTotalTVL = totalTVL
	g.hasBaseline = true

	if g.state == StateHalfOpen {
		g.successCount++
		if g.successCount >= g.successThreshold {
			g.state = StateClosed
			g.successCount = 0
			logrus.Info("Snapshot guard closed: feed has recovered")
		}
	}

	return nil
}

// GetState returns the current state of the guard.
func (g *Guard) GetState() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset forcibly closes the guard. Wired to the admin refresh endpoint so
// an operator can clear a stuck trip after an upstream incident.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateClosed
	g.successCount = 0
	logrus.Info("Snapshot guard manually reset to closed state")
}

// trip opens the guard. Caller holds the lock.
func (g *Guard) trip(reason string) {
	g.state = StateOpen
	g.lastTrip = g.now()
	logrus.Warnf("Snapshot guard tripped: %s", reason)
}
