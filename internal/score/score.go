// Package score computes the composite risk-adjusted ranking value and the
// derived trend flags for enriched pools.
package score

import (
	"strings"

	"github.com/yourorg/yieldscout/internal/model"
	"github.com/yourorg/yieldscout/internal/risk"
)

// Scoring constants. These are heuristic values carried over unchanged
// from the production ranking; treat them as part of the contract.
const (
	// tvlSaturationUsd is where the TVL credit ramp tops out. Pools above
	// this get no further credit for size.
	tvlSaturationUsd = 10_000_000

	// hotVolumeUsd and hotAPYChangePts qualify a pool as "hot" when either
	// is exceeded.
	hotVolumeUsd    = 1_000_000
	hotAPYChangePts = 5.0

	// decliningAPYChangePts marks a pool as declining when its 7-day APY
	// change drops below this.
	decliningAPYChangePts = -20.0
)

// ilPenalty discounts the effective yield per IL tier.
var ilPenalty = map[model.ILRisk]float64{
	model.ILRiskNone:   0,
	model.ILRiskLow:    0.1,
	model.ILRiskMedium: 0.25,
	model.ILRiskHigh:   0.5,
}

// liquidRewardTokens are reward tokens considered readily sellable. A pool
// whose reward tokens all miss this set gets the low-liquidity-rewards
// warning. Coarse by design; the set holds upper-cased symbols.
var liquidRewardTokens = map[string]bool{
	"WETH": true, "ETH": true, "WBTC": true, "BTC": true,
	"USDC": true, "USDT": true, "DAI": true, "FRAX": true,
	"WBNB": true, "BNB": true, "WMATIC": true, "MATIC": true,
	"WAVAX": true, "AVAX": true, "OP": true, "ARB": true,
	"CRV": true, "BAL": true, "AAVE": true, "COMP": true,
	"UNI": true, "SUSHI": true, "LINK": true, "LDO": true,
}

// Compute enriches a normalized pool with its IL tier, auto-compound
// signals, ranking score and trend flags.
//
// The score is apy * tvlFactor * ilFactor where tvlFactor ramps linearly
// to 1 at the saturation TVL (inclusive) and ilFactor discounts by tier.
// It is monotonic increasing in APY and in TVL up to saturation, and
// monotonic decreasing across IL tiers.
func Compute(pool model.Pool) model.PoolWithScore {
	tier := risk.ClassifyIL(pool)
	ac := risk.ClassifyAutoCompound(pool)

	tvlFactor := pool.TVLUsd / tvlSaturationUsd
	if tvlFactor > 1 {
		tvlFactor = 1
	}
	ilFactor := 1 - ilPenalty[tier]

	return model.PoolWithScore{
		Pool:                pool,
		RiskAdjustedScore:   pool.APY * tvlFactor * ilFactor,
		ILRiskTier:          tier,
		IsHot:               isHot(pool),
		APYDeclining:        pool.APYPct7D != nil && *pool.APYPct7D < decliningAPYChangePts,
		LowLiquidityRewards: lowLiquidityRewards(pool),
		ILPctActual:         pool.IL7D,
		AutoCompound:        ac.AutoCompound,
		AutoCompoundProject: ac.Project,
		IsBeefy:             ac.IsBeefy,
		BeefyAvailable:      ac.BeefyAvailable,
	}
}

// ComputeAll scores a full normalized set.
func ComputeAll(pools []model.Pool) []model.PoolWithScore {
	scored := make([]model.PoolWithScore, 0, len(pools))
	for _, pool := range pools {
		scored = append(scored, Compute(pool))
	}
	return scored
}

// isHot fires on high trading activity or a sharply rising yield. Either
// signal alone qualifies; an absent signal never does.
func isHot(pool model.Pool) bool {
	if pool.VolumeUsd7D != nil && *pool.VolumeUsd7D > hotVolumeUsd {
		return true
	}
	return pool.APYPct7D != nil && *pool.APYPct7D > hotAPYChangePts
}

// lowLiquidityRewards warns when a pool pays rewards but none of the
// reward tokens match the liquid set. A coarse signal, not a liquidity
// oracle.
func lowLiquidityRewards(pool model.Pool) bool {
	if len(pool.RewardTokens) == 0 {
		return false
	}
	for _, token := range pool.RewardTokens {
		if liquidRewardTokens[strings.ToUpper(token)] {
			return false
		}
	}
	return true
}
