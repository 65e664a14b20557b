// Package scoring implements the fixed DNFBP client risk ruleset.
//
// A Ruleset is an immutable value: new versions are new constructor
// functions registered under a new id, never edits to an existing one.
package scoring

import (
	"errors"
	"sort"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultRulesetID is the ruleset used when none is configured
const DefaultRulesetID = "dnfbp-2025.11"

// ErrUnknownRuleset is returned by Lookup for an unregistered id
var ErrUnknownRuleset = errors.New("unknown ruleset")

// Points awarded by each rule
type Points struct {
	PEP               int
	Sanctions         int
	StaleKYC          int
	OnlineChannel     int
	RemittanceService int
	PropertyService   int
	HighRiskResidency int
	Structuring       int
	HighRiskCorridor  int
	LargeDomestic     int
}

// StructuringRule flags clusters of near-threshold cash deposits
type StructuringRule struct {
	Currency  string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	MinCount  int // transactions in one cluster
	SpanDays  int // maximum calendar days between first and last
}

// CorridorRule flags repeated outbound transfers to high-risk countries
type CorridorRule struct {
	Currency   string
	MinCount   int
	LargeFloor decimal.Decimal // at least one transfer must reach this
}

// LargeDomesticRule flags single very large domestic transfers
type LargeDomesticRule struct {
	Currency string
	Floor    decimal.Decimal
}

// Ruleset is a versioned, fixed rule catalogue
type Ruleset struct {
	ID                string
	DomesticCountry   string
	HighRiskCountries []string // sorted, upper case
	KYCMaxAgeDays     int
	Banding           domain.BandThresholds
	Points            Points
	Structuring       StructuringRule
	Corridor          CorridorRule
	LargeDomestic     LargeDomesticRule
}

// DNFBP202511 returns the dnfbp-2025.11 ruleset
func DNFBP202511() Ruleset {
	return Ruleset{
		ID:                "dnfbp-2025.11",
		DomesticCountry:   "AU",
		HighRiskCountries: []string{"AE", "CN", "HK", "IN", "IR", "RU"},
		KYCMaxAgeDays:     365,
		Banding:           domain.BandThresholds{High: 30, Medium: 15},
		Points: Points{
			PEP:               20,
			Sanctions:         25,
			StaleKYC:          5,
			OnlineChannel:     3,
			RemittanceService: 6,
			PropertyService:   4,
			HighRiskResidency: 8,
			Structuring:       12,
			HighRiskCorridor:  10,
			LargeDomestic:     8,
		},
		Structuring: StructuringRule{
			Currency:  "AUD",
			MinAmount: decimal.NewFromInt(9600),
			MaxAmount: decimal.NewFromInt(9999),
			MinCount:  4,
			SpanDays:  7,
		},
		Corridor: CorridorRule{
			Currency:   "AUD",
			MinCount:   2,
			LargeFloor: decimal.NewFromInt(20000),
		},
		LargeDomestic: LargeDomesticRule{
			Currency: "AUD",
			Floor:    decimal.NewFromInt(100000),
		},
	}
}

var registry = map[string]func() Ruleset{
	DefaultRulesetID: DNFBP202511,
}

// Lookup returns a fresh copy of the ruleset registered under id
func Lookup(id string) (Ruleset, error) {
	build, ok := registry[id]
	if !ok {
		return Ruleset{}, ErrUnknownRuleset
	}
	return build(), nil
}

// IDs lists the registered ruleset ids
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Metadata describes a scoring run under this ruleset
func (r Ruleset) Metadata(lookback domain.LookbackWindow) domain.RulesetMetadata {
	corridor := make([]string, len(r.HighRiskCountries))
	copy(corridor, r.HighRiskCountries)
	sort.Strings(corridor)
	return domain.RulesetMetadata{
		RulesetID:         r.ID,
		Lookback:          lookback,
		CorridorCountries: corridor,
		Banding:           r.Banding,
	}
}

func (r Ruleset) isHighRisk(country string) bool {
	for _, c := range r.HighRiskCountries {
		if equalCode(c, country) {
			return true
		}
	}
	return false
}
