package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banking/dnfbp-risk/internal/domain"
)

// Score evaluates every client against the ruleset. Results follow the input
// client order; reason order follows the rule catalogue. Score is pure and
// safe for concurrent use.
func (r Ruleset) Score(clients []domain.ClientProfile, transactions []domain.TransactionRecord, lookback domain.LookbackWindow) domain.ScoringOutput {
	byClient := make(map[string][]domain.TransactionRecord)
	for _, tx := range transactions {
		if !lookback.Covers(tx.Date) {
			continue
		}
		byClient[tx.ClientID] = append(byClient[tx.ClientID], tx)
	}

	scores := make([]domain.RiskScoreResult, 0, len(clients))
	for _, c := range clients {
		reasons := r.profileReasons(c, lookback)
		reasons = append(reasons, r.behaviourReasons(byClient[c.ClientID])...)

		total := 0
		for _, reason := range reasons {
			total += reason.Points
		}
		scores = append(scores, domain.RiskScoreResult{
			ClientID: c.ClientID,
			Score:    total,
			Band:     r.Banding.BandFor(total),
			Reasons:  reasons,
		})
	}

	return domain.ScoringOutput{
		Scores: scores,
		Meta:   r.Metadata(lookback),
	}
}

func (r Ruleset) profileReasons(c domain.ClientProfile, lookback domain.LookbackWindow) []domain.RiskReason {
	reasons := []domain.RiskReason{}
	add := func(points int, text string) {
		reasons = append(reasons, domain.RiskReason{Family: domain.ReasonFamilyProfile, Text: text, Points: points})
	}

	if c.PEP {
		add(r.Points.PEP, "Politically exposed person")
	}
	if c.Sanctions {
		add(r.Points.Sanctions, "Sanctions screening match")
	}
	if reviewed, ok := c.KYCReviewDate(); ok {
		if reviewed.Before(lookback.End.AddDays(-r.KYCMaxAgeDays).Time) {
			add(r.Points.StaleKYC, fmt.Sprintf("KYC last reviewed %s, more than %d days before %s", reviewed, r.KYCMaxAgeDays, lookback.End))
		}
	}
	if containsFold(c.DeliveryChannel, "online") {
		add(r.Points.OnlineChannel, "Non face-to-face (online) delivery channel")
	}
	if containsFold(c.Services, "remittance") {
		add(r.Points.RemittanceService, "Remittance services")
	}
	if containsFold(c.Services, "property") {
		add(r.Points.PropertyService, "Property services")
	}
	if c.ResidencyCountry != "" && r.isHighRisk(c.ResidencyCountry) {
		add(r.Points.HighRiskResidency, fmt.Sprintf("Residency in high-risk jurisdiction %s", strings.ToUpper(strings.TrimSpace(c.ResidencyCountry))))
	}
	return reasons
}

// behaviourReasons expects only transactions inside the lookback window
func (r Ruleset) behaviourReasons(txs []domain.TransactionRecord) []domain.RiskReason {
	var reasons []domain.RiskReason
	add := func(points int, text string) {
		reasons = append(reasons, domain.RiskReason{Family: domain.ReasonFamilyBehaviour, Text: text, Points: points})
	}

	if r.hasStructuring(txs) {
		add(r.Points.Structuring, fmt.Sprintf("Possible structuring: %d or more cash deposits between %s and %s %s within %d days",
			r.Structuring.MinCount, r.Structuring.MinAmount, r.Structuring.MaxAmount, r.Structuring.Currency, r.Structuring.SpanDays))
	}
	if r.hasHighRiskCorridor(txs) {
		add(r.Points.HighRiskCorridor, fmt.Sprintf("Repeated outbound transfers to high-risk corridors, at least one of %s %s or more",
			r.Corridor.Currency, r.Corridor.LargeFloor))
	}
	if r.hasLargeDomestic(txs) {
		add(r.Points.LargeDomestic, fmt.Sprintf("Domestic transfer of %s %s or more", r.LargeDomestic.Currency, r.LargeDomestic.Floor))
	}
	return reasons
}

// hasStructuring reports whether some MinCount qualifying deposits, taken in
// date order, fall within SpanDays of each other. Input order is irrelevant.
func (r Ruleset) hasStructuring(txs []domain.TransactionRecord) bool {
	rule := r.Structuring
	var dates []domain.Date
	for _, tx := range txs {
		if tx.Direction != domain.DirectionIn || !strings.EqualFold(strings.TrimSpace(tx.Method), "cash") {
			continue
		}
		if !equalCode(tx.Currency, rule.Currency) {
			continue
		}
		if tx.Amount.LessThan(rule.MinAmount) || tx.Amount.GreaterThan(rule.MaxAmount) {
			continue
		}
		dates = append(dates, tx.Date)
	}
	if rule.MinCount <= 0 || len(dates) < rule.MinCount {
		return false
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	for i := 0; i+rule.MinCount-1 < len(dates); i++ {
		if dates[i+rule.MinCount-1].DaysSince(dates[i]) <= rule.SpanDays {
			return true
		}
	}
	return false
}

func (r Ruleset) hasHighRiskCorridor(txs []domain.TransactionRecord) bool {
	rule := r.Corridor
	count := 0
	large := false
	for _, tx := range txs {
		if tx.Direction != domain.DirectionOut || !equalCode(tx.Currency, rule.Currency) {
			continue
		}
		if tx.CounterpartyCountry == "" || !r.isHighRisk(tx.CounterpartyCountry) {
			continue
		}
		count++
		if tx.Amount.GreaterThanOrEqual(rule.LargeFloor) {
			large = true
		}
	}
	return count >= rule.MinCount && large
}

func (r Ruleset) hasLargeDomestic(txs []domain.TransactionRecord) bool {
	rule := r.LargeDomestic
	for _, tx := range txs {
		if !equalCode(tx.Currency, rule.Currency) || tx.Amount.LessThan(rule.Floor) {
			continue
		}
		if strings.TrimSpace(tx.CounterpartyCountry) == "" || equalCode(tx.CounterpartyCountry, r.DomesticCountry) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func equalCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

