package domain

// PatternType identifies a known laundering behavior pattern.
type PatternType string

const (
	PatternSmurfing       PatternType = "smurfing"
	PatternLayering       PatternType = "layering"
	PatternStructuring    PatternType = "structuring"
	PatternIncomeMismatch PatternType = "income_mismatch"
)

// PatternDetection is a confirmed pattern match for an account. Evidence
// carries the pattern-specific measurements (unique sender counts, matched
// cycles, effective thresholds) that make the alert explainable.
type PatternDetection struct {
	Type           PatternType    `json:"type"`
	Severity       Severity       `json:"severity"`
	Description    string         `json:"description"`
	TransactionIDs []string       `json:"transaction_ids,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}
