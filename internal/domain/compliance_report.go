package domain

// CaseStatus is the review status of a risk case
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "OPEN"
	CaseStatusClosed CaseStatus = "CLOSED"
)

// RiskCase is one entry of the case list shipped in the evidence bundle
type RiskCase struct {
	CaseNumber string     `json:"case_number"`
	ClientID   string     `json:"client_id"`
	Band       Band       `json:"band"`
	Score      int        `json:"score"`
	Reasons    []string   `json:"reasons"`
	Status     CaseStatus `json:"status"`
}

// ScoreRequest carries normalized records into a scoring run
type ScoreRequest struct {
	RequestID    string              `json:"request_id,omitempty"`
	Clients      []ClientProfile     `json:"clients"`
	Transactions []TransactionRecord `json:"transactions"`
	Lookback     LookbackWindow      `json:"lookback"`
	Cases        []RiskCase          `json:"cases,omitempty"` // optional, derived when absent
}
