// Package risk derives the impermanent-loss tier and the auto-compound
// capability signals for normalized pools.
package risk

import (
	"math"
	"strings"

	"github.com/yourorg/yieldscout/internal/model"
)

// IL band boundaries over |il7d|, in percentage points.
const (
	ilLowBand  = 0.1
	ilHighBand = 1.0
)

// beefyProject is the project slug the upstream feed uses for pools that
// are already wrapped in a Beefy vault.
const beefyProject = "beefy"

// beefyChainSlugs maps feed chain names to Beefy's own chain slugs. A chain
// present here means Beefy operates vaults on it, so a multi-asset pool on
// that chain is at least eligible for one.
var beefyChainSlugs = map[string]string{
	"Ethereum":   "ethereum",
	"BSC":        "bsc",
	"Polygon":    "polygon",
	"Fantom":     "fantom",
	"Avalanche":  "avax",
	"Arbitrum":   "arbitrum",
	"Optimism":   "optimism",
	"Base":       "base",
	"zkSync Era": "zksync",
	"Moonbeam":   "moonbeam",
	"Cronos":     "cronos",
}

// autoCompoundProjects is the registry of known auto-compounding vault
// operators, keyed by the project slug the feed reports.
var autoCompoundProjects = map[string]string{
	"beefy":              "Beefy",
	"yearn-finance":      "Yearn",
	"autofarm":           "Autofarm",
	"reaper-farm":        "Reaper",
	"harvest-finance":    "Harvest",
	"badger-dao":         "Badger",
	"idle-finance":       "Idle",
	"pickle":             "Pickle",
	"beefy-cowcentrated": "Beefy",
}

// ClassifyIL resolves the IL risk tier for a pool. First matching rule
// wins: single-asset exposure or an explicit upstream no-IL flag means no
// IL risk; otherwise a known 7-day realized IL is banded; otherwise
// stablecoin pairs are low and everything else defaults to medium.
func ClassifyIL(pool model.Pool) model.ILRisk {
	if pool.Exposure == model.ExposureSingle || pool.NoILFlag {
		return model.ILRiskNone
	}

	if pool.IL7D != nil {
		switch il := math.Abs(*pool.IL7D); {
		case il < ilLowBand:
			return model.ILRiskLow
		case il < ilHighBand:
			return model.ILRiskMedium
		default:
			return model.ILRiskHigh
		}
	}

	if pool.Stablecoin {
		return model.ILRiskLow
	}

	return model.ILRiskMedium
}

// ClassifyAutoCompound matches a pool against the vault-operator
// registries. Unknown projects fail every lookup and fall through to the
// zero value; this is never an error. IsBeefy implies AutoCompound;
// BeefyAvailable is only set when neither active signal holds.
func ClassifyAutoCompound(pool model.Pool) model.AutoCompound {
	var ac model.AutoCompound

	project := strings.ToLower(pool.Project)

	if name, ok := autoCompoundProjects[project]; ok {
		ac.AutoCompound = true
		ac.Project = model.String(name)
		if strings.HasPrefix(project, beefyProject) {
			ac.IsBeefy = true
		}
		return ac
	}

	if _, ok := beefyChainSlugs[pool.Chain]; ok && pool.Exposure == model.ExposureMulti {
		ac.BeefyAvailable = true
	}

	return ac
}

// BeefyChainSlug returns Beefy's slug for a feed chain name, with a found
// flag. Used for building outbound vault links.
func BeefyChainSlug(chain string) (string, bool) {
	slug, ok := beefyChainSlugs[chain]
	return slug, ok
}
