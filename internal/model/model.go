// Package model defines the core data structures for yieldscout.
package model

import "time"

// ILRisk is the impermanent-loss risk tier derived for a pool.
type ILRisk string

// IL risk tiers, ordered from safest to riskiest.
const (
	ILRiskNone   ILRisk = "none"
	ILRiskLow    ILRisk = "low"
	ILRiskMedium ILRisk = "medium"
	ILRiskHigh   ILRisk = "high"
)

// Exposure describes whether a pool's risk is tied to a single asset
// (lending markets) or to multiple assets (LP pairs).
type Exposure string

const (
	ExposureSingle Exposure = "single"
	ExposureMulti  Exposure = "multi"
)

// RawPool mirrors one record of the upstream yields feed. The feed is
// loosely typed: any numeric field may be null and string fields are
// free-form. Pointer fields preserve the present/absent distinction that
// the normalizer depends on.
type RawPool struct {
	Pool             string   `json:"pool"`
	Chain            string   `json:"chain"`
	Project          string   `json:"project"`
	Symbol           string   `json:"symbol"`
	TVLUsd           float64  `json:"tvlUsd"`
	APYBase          *float64 `json:"apyBase"`
	APYReward        *float64 `json:"apyReward"`
	APY              *float64 `json:"apy"`
	RewardTokens     []string `json:"rewardTokens"`
	UnderlyingTokens []string `json:"underlyingTokens"`
	IL7D             *float64 `json:"il7d"`
	ILRisk           string   `json:"ilRisk"`
	Exposure         string   `json:"exposure"`
	Stablecoin       bool     `json:"stablecoin"`
	VolumeUsd7D      *float64 `json:"volumeUsd7d"`
	APYPct1D         *float64 `json:"apyPct1D"`
	APYPct7D         *float64 `json:"apyPct7D"`
	APYPct30D        *float64 `json:"apyPct30D"`
	PoolMeta         *string  `json:"poolMeta"`
	URL              *string  `json:"url"`
}

// Pool is a normalized upstream record, immutable once created for a given
// fetch cycle. Pools that reach this type always have TVLUsd > 0 and
// APY >= 0.
type Pool struct {
	PoolID           string   `json:"poolId"`
	Chain            string   `json:"chain"`
	Project          string   `json:"project"`
	Symbol           string   `json:"symbol"`
	TVLUsd           float64  `json:"tvlUsd"`
	APYBase          *float64 `json:"apyBase"`
	APYReward        *float64 `json:"apyReward"`
	APY              float64  `json:"apy"`
	RewardTokens     []string `json:"rewardTokens"`
	UnderlyingTokens []string `json:"underlyingTokens"`
	IL7D             *float64 `json:"il7d"`
	NoILFlag         bool     `json:"-"`
	Exposure         Exposure `json:"exposure"`
	Stablecoin       bool     `json:"stablecoin"`
	VolumeUsd7D      *float64 `json:"volumeUsd7d"`
	APYPct1D         *float64 `json:"apyPct1D"`
	APYPct7D         *float64 `json:"apyPct7D"`
	APYPct30D        *float64 `json:"apyPct30D"`
	PoolMeta         *string  `json:"poolMeta"`
	URL              *string  `json:"url"`
}

// AutoCompound carries the auto-compounding capability signals for a pool.
// The signals are independent: a pool can be actively compounded by the
// Beefy optimizer, compounded by some other aggregator, or merely eligible
// for a Beefy vault that does not exist yet.
type AutoCompound struct {
	AutoCompound   bool    `json:"autoCompound"`
	Project        *string `json:"autoCompoundProject"`
	IsBeefy        bool    `json:"isBeefy"`
	BeefyAvailable bool    `json:"beefyAvailable"`
}

// PoolWithScore is a Pool plus every derived field. Recomputed on each
// fetch cycle and never mutated afterward.
type PoolWithScore struct {
	Pool

	RiskAdjustedScore   float64  `json:"riskAdjustedScore"`
	ILRiskTier          ILRisk   `json:"ilRisk"`
	IsHot               bool     `json:"isHot"`
	APYDeclining        bool     `json:"apyDeclining"`
	LowLiquidityRewards bool     `json:"lowLiquidityRewards"`
	ILPctActual         *float64 `json:"ilPctActual"`

	AutoCompound        bool    `json:"autoCompound"`
	AutoCompoundProject *string `json:"autoCompoundProject"`
	IsBeefy             bool    `json:"isBeefy"`
	BeefyAvailable      bool    `json:"beefyAvailable"`
}

// Stats summarizes an enriched pool set.
type Stats struct {
	TotalPools  int     `json:"totalPools"`
	AvgAPY      float64 `json:"avgApy"`
	TopChain    string  `json:"topChain"`
	TopChainTVL float64 `json:"topChainTvl"`
}

// ChainTVL is one row of the per-chain distribution.
type ChainTVL struct {
	Chain string  `json:"chain"`
	TVL   float64 `json:"tvl"`
	Count int     `json:"count"`
}

// Snapshot is the process-wide cache value: the full enriched pool universe
// plus precomputed summaries. A snapshot is built once per successful fetch
// and replaced atomically; readers never observe partial state.
type Snapshot struct {
	Pools             []PoolWithScore `json:"pools"`
	Stats             Stats           `json:"stats"`
	Chains            []string        `json:"chains"`
	ChainDistribution []ChainTVL      `json:"chainDistribution"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

// Float64 returns a pointer to v. Convenience for normalized records and
// test fixtures.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
