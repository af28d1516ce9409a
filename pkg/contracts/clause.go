package contracts

import "time"

// RiskLevel grades a finding's severity as assessed upstream.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Clause is the unit of review. OriginalText is the baseline set once at
// ingestion; CurrentText is the legacy materialized text kept for older
// consumers and superseded by the projection. LastModifiedAt is bumped on
// every decision append and is what the conflict detector compares against.
type Clause struct {
	ID             string    `json:"id"`
	ContractID     string    `json:"contract_id"`
	Heading        string    `json:"heading,omitempty"`
	OriginalText   string    `json:"original_text"`
	CurrentText    string    `json:"current_text,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

// Finding is one detected deviation within a clause. Findings are never
// deleted while decisions reference them.
type Finding struct {
	ID           string    `json:"id"`
	ClauseID     string    `json:"clause_id"`
	RiskLevel    RiskLevel `json:"risk_level"`
	FallbackText string    `json:"fallback_text,omitempty"`
	Excerpt      string    `json:"excerpt,omitempty"`
}
