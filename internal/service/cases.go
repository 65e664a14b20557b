package service

import (
	"fmt"
	"sort"

	"github.com/banking/dnfbp-risk/internal/domain"
)

// DeriveCases opens a case for every Medium or High result, highest score
// first. Case numbers are assigned in that order.
func DeriveCases(results []domain.RiskScoreResult) []domain.RiskCase {
	flagged := make([]domain.RiskScoreResult, 0, len(results))
	for _, r := range results {
		if r.Band == domain.BandHigh || r.Band == domain.BandMedium {
			flagged = append(flagged, r)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		if flagged[i].Score != flagged[j].Score {
			return flagged[i].Score > flagged[j].Score
		}
		return flagged[i].ClientID < flagged[j].ClientID
	})

	cases := make([]domain.RiskCase, 0, len(flagged))
	for i, r := range flagged {
		reasons := make([]string, 0, len(r.Reasons))
		for _, reason := range r.Reasons {
			reasons = append(reasons, reason.Text)
		}
		cases = append(cases, domain.RiskCase{
			CaseNumber: fmt.Sprintf("CASE-%04d", i+1),
			ClientID:   r.ClientID,
			Band:       r.Band,
			Score:      r.Score,
			Reasons:    reasons,
			Status:     domain.CaseStatusOpen,
		})
	}
	return cases
}
