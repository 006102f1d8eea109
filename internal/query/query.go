// Package query filters, sorts, and truncates a cached pool snapshot into
// a response page. Pure functions over in-memory data; no locking needed
// because snapshots are immutable once published.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/yourorg/yieldscout/internal/model"
)

// MaxResults is the hard cap on pools returned by a single query. There
// is no mechanism to page past it.
const MaxResults = 200

// SortField selects the numeric field a result page is ordered by.
type SortField string

const (
	SortByScore    SortField = "riskAdjustedScore"
	SortByTVL      SortField = "tvlUsd"
	SortByAPY      SortField = "apy"
	SortByAPYPct7D SortField = "apyPct7D"
)

// SortDirection is asc or desc. Desc means largest first.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ProjectType is a coarse pool category used for filtering.
type ProjectType string

const (
	TypeLP       ProjectType = "lp"
	TypeLending  ProjectType = "lending"
	TypeStable   ProjectType = "stable"
	TypeVolatile ProjectType = "volatile"
)

// lendingKeywords identify lending markets by project-name substring.
var lendingKeywords = []string{
	"aave", "compound", "morpho", "venus", "radiant",
	"spark", "euler", "benqi", "justlend", "maker", "lending",
}

// ValidationError reports a malformed enum value in a query. It maps to a
// client error, never a retry.
type ValidationError struct {
	Param string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for parameter %q", e.Value, e.Param)
}

// Filters is the parsed filter specification. All fields combine with AND
// semantics; empty Chains and ProjectTypes mean no restriction.
type Filters struct {
	MinTVL       float64
	MinAPY       float64
	Chains       map[string]bool
	ProjectTypes map[ProjectType]bool
	LowILOnly    bool
	SearchQuery  string
}

// Sort is the parsed sort specification.
type Sort struct {
	Field     SortField
	Direction SortDirection
}

// Defaults carries the fallback values applied when a query omits or
// mangles a numeric filter. Malformed numbers fall back rather than
// erroring; malformed enums are rejected.
type Defaults struct {
	MinTVL float64
	MinAPY float64
}

// ParseFilters builds Filters from query parameters. Unknown projectTypes
// members yield a ValidationError; unparseable numerics silently take the
// defaults.
func ParseFilters(values url.Values, defaults Defaults) (Filters, error) {
	f := Filters{
		MinTVL:      parseFloat(values.Get("minTvl"), defaults.MinTVL),
		MinAPY:      parseFloat(values.Get("minApy"), defaults.MinAPY),
		LowILOnly:   parseBool(values.Get("lowIlOnly")),
		SearchQuery: strings.TrimSpace(values.Get("searchQuery")),
	}

	if chains := multiValued(values, "chains"); len(chains) > 0 {
		f.Chains = make(map[string]bool, len(chains))
		for _, chain := range chains {
			for _, c := range strings.Split(chain, ",") {
				if c = strings.TrimSpace(c); c != "" {
					f.Chains[c] = true
				}
			}
		}
	}

	if types := multiValued(values, "projectTypes"); len(types) > 0 {
		f.ProjectTypes = make(map[ProjectType]bool, len(types))
		for _, raw := range types {
			for _, t := range strings.Split(raw, ",") {
				t = strings.TrimSpace(t)
				if t == "" {
					continue
				}
				pt := ProjectType(strings.ToLower(t))
				switch pt {
				case TypeLP, TypeLending, TypeStable, TypeVolatile:
					f.ProjectTypes[pt] = true
				default:
					return Filters{}, &ValidationError{Param: "projectTypes", Value: t}
				}
			}
		}
	}

	return f, nil
}

// ParseSort builds a Sort from query parameters. Absent values default to
// score descending; unknown values are rejected.
func ParseSort(values url.Values) (Sort, error) {
	s := Sort{Field: SortByScore, Direction: SortDesc}

	if raw := values.Get("sortField"); raw != "" {
		switch SortField(raw) {
		case SortByScore, SortByTVL, SortByAPY, SortByAPYPct7D:
			s.Field = SortField(raw)
		default:
			return Sort{}, &ValidationError{Param: "sortField", Value: raw}
		}
	}

	if raw := values.Get("sortDirection"); raw != "" {
		switch SortDirection(strings.ToLower(raw)) {
		case SortAsc, SortDesc:
			s.Direction = SortDirection(strings.ToLower(raw))
		default:
			return Sort{}, &ValidationError{Param: "sortDirection", Value: raw}
		}
	}

	return s, nil
}

// Apply filters, sorts, and truncates the pool set. The input slice is
// never mutated; ties keep their input order.
func Apply(pools []model.PoolWithScore, f Filters, s Sort) []model.PoolWithScore {
	matched := make([]model.PoolWithScore, 0, len(pools))
	for _, pool := range pools {
		if Matches(pool, f) {
			matched = append(matched, pool)
		}
	}

	sortPools(matched, s)

	if len(matched) > MaxResults {
		matched = matched[:MaxResults]
	}
	return matched
}

// Matches reports whether a pool passes every active filter. Checks
// short-circuit on the first failure; their order does not affect
// correctness.
func Matches(pool model.PoolWithScore, f Filters) bool {
	if pool.TVLUsd < f.MinTVL {
		return false
	}
	if len(f.Chains) > 0 && !f.Chains[pool.Chain] {
		return false
	}
	if len(f.ProjectTypes) > 0 && !matchesAnyType(pool, f.ProjectTypes) {
		return false
	}
	if pool.APY < f.MinAPY {
		return false
	}
	if f.LowILOnly && pool.ILRiskTier != model.ILRiskNone && pool.ILRiskTier != model.ILRiskLow {
		return false
	}
	if f.SearchQuery != "" {
		// Plain concatenation: a query may span the project/symbol or
		// symbol/chain boundary.
		haystack := strings.ToLower(pool.Project + pool.Symbol + pool.Chain)
		if !strings.Contains(haystack, strings.ToLower(f.SearchQuery)) {
			return false
		}
	}
	return true
}

// matchesAnyType implements the OR semantics within the projectTypes
// filter: the pool passes when it matches at least one requested type.
// Note stable and volatile are complements, so requesting both disables
// the axis; lp and lending can overlap.
func matchesAnyType(pool model.PoolWithScore, types map[ProjectType]bool) bool {
	if types[TypeStable] && pool.Stablecoin {
		return true
	}
	if types[TypeVolatile] && !pool.Stablecoin {
		return true
	}
	if types[TypeLP] && pool.Exposure == model.ExposureMulti {
		return true
	}
	if types[TypeLending] && isLendingProject(pool.Project) {
		return true
	}
	return false
}

func isLendingProject(project string) bool {
	name := strings.ToLower(project)
	for _, kw := range lendingKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// sortPools orders the matched set by the selected field. Stable so that
// equal keys preserve input order. Absent apyPct7D values compare as 0
// without mutating the pool.
func sortPools(pools []model.PoolWithScore, s Sort) {
	key := func(p model.PoolWithScore) float64 {
		switch s.Field {
		case SortByTVL:
			return p.TVLUsd
		case SortByAPY:
			return p.APY
		case SortByAPYPct7D:
			if p.APYPct7D == nil {
				return 0
			}
			return *p.APYPct7D
		default:
			return p.RiskAdjustedScore
		}
	}

	sort.SliceStable(pools, func(i, j int) bool {
		if s.Direction == SortAsc {
			return key(pools[i]) < key(pools[j])
		}
		return key(pools[i]) > key(pools[j])
	})
}

// multiValued collects a repeatable parameter under both its plain and
// bracketed spellings (chains= and chains[]=).
func multiValued(values url.Values, key string) []string {
	return append(append([]string(nil), values[key]...), values[key+"[]"]...)
}

func parseFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
