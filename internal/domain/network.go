package domain

// NetworkSignalType identifies a fund-flow network finding.
type NetworkSignalType string

const (
	SignalCircularFlow NetworkSignalType = "circular_flow"
	SignalHubAccount   NetworkSignalType = "hub_account"
	SignalFlaggedLinks NetworkSignalType = "flagged_links"
)

// NetworkSignal is one finding from fund-flow graph analysis.
type NetworkSignal struct {
	Type        NetworkSignalType `json:"type"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description"`
	Evidence    map[string]any    `json:"evidence,omitempty"`
}

// NetworkAnalysis is the aggregate result for one account. An account with
// two or more independent signals is treated as probable money laundering.
type NetworkAnalysis struct {
	AccountID    string          `json:"account_id"`
	Signals      []NetworkSignal `json:"signals"`
	IsProbableML bool            `json:"is_probable_ml"`
}

// FlowEdge describes one transaction edge touching a flagged counterparty.
type FlowEdge struct {
	TransactionID string  `json:"transaction_id"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Amount        float64 `json:"amount"`
}
