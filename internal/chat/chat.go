// Package chat renders the top-ranked pools into a plain-text context
// block for an external advisor consumer. Read-only projection over the
// enriched snapshot; no write path back into the core.
package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/yieldscout/internal/model"
)

// TopN is how many ranked pools the context block covers.
const TopN = 20

// BuildContext summarizes the top pools by risk-adjusted score, in rank
// order, plus the snapshot-level stats. Pure function; safe to call
// concurrently against a published snapshot.
func BuildContext(snap *model.Snapshot) string {
	ranked := make([]model.PoolWithScore, len(snap.Pools))
	copy(ranked, snap.Pools)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RiskAdjustedScore > ranked[j].RiskAdjustedScore
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Yield market snapshot as of %s\n", snap.LastUpdated.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Tracked pools: %d, average APY %.2f%%, largest chain %s ($%s TVL)\n\n",
		snap.Stats.TotalPools, snap.Stats.AvgAPY, snap.Stats.TopChain, formatUSD(snap.Stats.TopChainTVL))
	fmt.Fprintf(&b, "Top %d pools by risk-adjusted score:\n", len(ranked))

	for i, p := range ranked {
		fmt.Fprintf(&b, "%d. %s %s on %s: APY %.2f%%, TVL $%s, IL risk %s, score %.2f",
			i+1, p.Project, p.Symbol, p.Chain, p.APY, formatUSD(p.TVLUsd), p.ILRiskTier, p.RiskAdjustedScore)
		if flags := flagNotes(p); flags != "" {
			b.WriteString(" [" + flags + "]")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// flagNotes joins the derived signals that matter to an advisor into a
// short annotation. Empty when nothing is flagged.
func flagNotes(p model.PoolWithScore) string {
	var notes []string
	if p.IsHot {
		notes = append(notes, "hot")
	}
	if p.APYDeclining {
		notes = append(notes, "apy declining")
	}
	if p.LowLiquidityRewards {
		notes = append(notes, "illiquid rewards")
	}
	if p.IsBeefy {
		notes = append(notes, "beefy vault")
	} else if p.AutoCompound {
		notes = append(notes, "auto-compound")
	} else if p.BeefyAvailable {
		notes = append(notes, "beefy eligible")
	}
	return strings.Join(notes, ", ")
}

// formatUSD renders a dollar amount with a compact suffix.
func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
