// Package normalize maps raw upstream feed records into the internal Pool
// shape, rejecting records that fail the inclusion criteria.
package normalize

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/yieldscout/internal/model"
)

// Normalize converts one raw feed record into a Pool. The second return
// value is false when the record must be excluded from the result set:
// missing or non-positive TVL, or an absent or negative APY. Rejection is
// a filter, not an error.
func Normalize(raw model.RawPool) (model.Pool, bool) {
	if raw.TVLUsd <= 0 {
		return model.Pool{}, false
	}
	if raw.APY == nil || *raw.APY < 0 {
		return model.Pool{}, false
	}

	exposure := model.ExposureMulti
	if strings.EqualFold(raw.Exposure, string(model.ExposureSingle)) {
		exposure = model.ExposureSingle
	}

	return model.Pool{
		PoolID:           raw.Pool,
		Chain:            raw.Chain,
		Project:          raw.Project,
		Symbol:           raw.Symbol,
		TVLUsd:           raw.TVLUsd,
		APYBase:          raw.APYBase,
		APYReward:        raw.APYReward,
		APY:              *raw.APY,
		RewardTokens:     raw.RewardTokens,
		UnderlyingTokens: raw.UnderlyingTokens,
		IL7D:             raw.IL7D,
		NoILFlag:         strings.EqualFold(raw.ILRisk, "no"),
		Exposure:         exposure,
		Stablecoin:       raw.Stablecoin,
		VolumeUsd7D:      raw.VolumeUsd7D,
		APYPct1D:         raw.APYPct1D,
		APYPct7D:         raw.APYPct7D,
		APYPct30D:        raw.APYPct30D,
		PoolMeta:         raw.PoolMeta,
		URL:              raw.URL,
	}, true
}

// NormalizeAll maps a full feed payload, silently dropping rejected
// records. The drop count is reported at debug level only; a malformed
// record never aborts the fetch.
func NormalizeAll(raws []model.RawPool) []model.Pool {
	pools := make([]model.Pool, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		pool, ok := Normalize(raw)
		if !ok {
			dropped++
			continue
		}
		pools = append(pools, pool)
	}

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"received": len(raws),
			"dropped":  dropped,
		}).Debug("Dropped records during normalization")
	}

	return pools
}
