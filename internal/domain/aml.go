package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction is the flow of funds relative to the client
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// UnmarshalJSON folds case and surrounding space so "OUT" decodes as out.
// Unknown values are kept as-is and rejected by request validation.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("direction must be a string: %w", err)
	}
	*d = Direction(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// TransactionRecord is a normalized transaction row. Immutable.
type TransactionRecord struct {
	ClientID            string          `json:"client_id"`
	Date                Date            `json:"date"`
	Direction           Direction       `json:"direction"`
	Method              string          `json:"method"` // cash, other, ...
	Currency            string          `json:"currency"`
	Amount              decimal.Decimal `json:"amount"`
	CounterpartyCountry string          `json:"counterparty_country,omitempty"`
}

// ReasonFamily groups reasons into static profile signals and transaction behaviour
type ReasonFamily string

const (
	ReasonFamilyProfile   ReasonFamily = "profile"
	ReasonFamilyBehaviour ReasonFamily = "behaviour"
)

// RiskReason is one justification contributing to a client's score
type RiskReason struct {
	Family ReasonFamily `json:"family"`
	Text   string       `json:"text"`
	Points int          `json:"points"`
}

// Band is the coarse risk category derived from a score
type Band string

const (
	BandLow    Band = "Low"
	BandMedium Band = "Medium"
	BandHigh   Band = "High"
)

// BandThresholds are the minimum scores for the Medium and High bands
type BandThresholds struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// BandFor returns the band for score
func (t BandThresholds) BandFor(score int) Band {
	switch {
	case score >= t.High:
		return BandHigh
	case score >= t.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// RiskScoreResult is the scored outcome for one client.
// Score always equals the sum of Reasons[].Points.
type RiskScoreResult struct {
	ClientID string       `json:"client_id"`
	Score    int          `json:"score"`
	Band     Band         `json:"band"`
	Reasons  []RiskReason `json:"reasons"`
}

// RulesetMetadata versions a scoring run. It is embedded verbatim in the
// evidence bundle and must not be regenerated at verification time.
type RulesetMetadata struct {
	RulesetID         string         `json:"ruleset_id"`
	Lookback          LookbackWindow `json:"lookback"`
	CorridorCountries []string       `json:"corridor_countries"`
	Banding           BandThresholds `json:"banding"`
}

// ScoringOutput is the result of one scoring run
type ScoringOutput struct {
	Scores []RiskScoreResult `json:"scores"`
	Meta   RulesetMetadata   `json:"meta"`
}

// BandCounts tallies results per band
func (o ScoringOutput) BandCounts() map[Band]int {
	counts := map[Band]int{BandLow: 0, BandMedium: 0, BandHigh: 0}
	for _, s := range o.Scores {
		counts[s.Band]++
	}
	return counts
}
