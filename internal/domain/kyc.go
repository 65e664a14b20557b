package domain

import (
	"strings"
	"time"
)

// kycDateLayouts are the review date formats accepted from upstream normalization
var kycDateLayouts = []string{
	DateLayout,
	"02/01/2006", // AU day-first
	time.RFC3339,
}

// ClientProfile is a normalized client record. Immutable once produced.
type ClientProfile struct {
	ClientID          string `json:"client_id"`
	PEP               bool   `json:"pep_flag"`
	Sanctions         bool   `json:"sanctions_flag"`
	KYCLastReviewedAt string `json:"kyc_last_reviewed_at,omitempty"`
	DeliveryChannel   string `json:"delivery_channel,omitempty"`
	Services          string `json:"services,omitempty"`
	ResidencyCountry  string `json:"residency_country,omitempty"`
}

// KYCReviewDate parses the last KYC review date. The second return value is
// false when the field is empty or unparsable.
func (c ClientProfile) KYCReviewDate() (Date, bool) {
	raw := strings.TrimSpace(c.KYCLastReviewedAt)
	if raw == "" {
		return Date{}, false
	}
	for _, layout := range kycDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			// Calendar date as written, not shifted to UTC
			y, m, d := t.Date()
			return NewDate(y, m, d), true
		}
	}
	return Date{}, false
}
