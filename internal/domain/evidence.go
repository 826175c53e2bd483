package domain

import "time"

// RiskLevel is the discretization of an account score into bands.
type RiskLevel string

const (
	RiskNormal     RiskLevel = "NORMAL"
	RiskSuspicious RiskLevel = "SUSPICIOUS"
	RiskHighRisk   RiskLevel = "HIGH_RISK"
	RiskProbableML RiskLevel = "PROBABLE_ML"
)

// Rank orders risk levels for comparisons (highest-risk selection).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskSuspicious:
		return 1
	case RiskHighRisk:
		return 2
	case RiskProbableML:
		return 3
	default:
		return 0
	}
}

// Bands holds the score thresholds separating risk levels.
type Bands struct {
	Suspicious int // Normal below this
	HighRisk   int
	ProbableML int
}

// DefaultBands are the standard 30/60/80 thresholds.
var DefaultBands = Bands{Suspicious: 30, HighRisk: 60, ProbableML: 80}

// Level maps a score in [0,100] onto its risk band.
func (b Bands) Level(score int) RiskLevel {
	switch {
	case score >= b.ProbableML:
		return RiskProbableML
	case score >= b.HighRisk:
		return RiskHighRisk
	case score >= b.Suspicious:
		return RiskSuspicious
	default:
		return RiskNormal
	}
}

// SuspiciousTxType classifies a single suspicious transaction finding.
type SuspiciousTxType string

const (
	SuspiciousBaselineDeviation SuspiciousTxType = "baseline_deviation"
	SuspiciousFrequencySpike    SuspiciousTxType = "frequency_spike"
	SuspiciousSenderCountSpike  SuspiciousTxType = "sender_count_spike"
	SuspiciousSimilarValue      SuspiciousTxType = "similar_value_repeat"
	SuspiciousUnusualTiming     SuspiciousTxType = "unusual_timing"
)

// SuspiciousTransaction is one flagged transaction with the reason it was
// flagged. The same transaction may appear under several types; each entry
// contributes to the score independently.
type SuspiciousTransaction struct {
	TransactionID string           `json:"transaction_id"`
	Type          SuspiciousTxType `json:"type"`
	Description   string           `json:"description"`
	Transaction   Transaction      `json:"transaction"`
}

// AccountEvidence is the persisted per-account summary record. It is
// overwritten in place on every re-evaluation.
type AccountEvidence struct {
	AccountID              string    `json:"account_id" db:"account_id"`
	Score                  int       `json:"score" db:"score"`
	RiskLevel              RiskLevel `json:"risk_level" db:"risk_level"`
	SuspiciousTransactions int       `json:"suspicious_transactions" db:"suspicious_transactions"`
	ConfirmedPatterns      int       `json:"confirmed_patterns" db:"confirmed_patterns"`
	NetworkSignals         int       `json:"network_signals" db:"network_signals"`
	IsProbableML           bool      `json:"is_probable_ml" db:"is_probable_ml"`
	LastUpdated            time.Time `json:"last_updated" db:"last_updated"`
}

// Evaluation is the full result of evaluating one account: the transient
// baseline, all findings, and the resulting score and band.
type Evaluation struct {
	AccountID     string                  `json:"account_id"`
	Baseline      Baseline                `json:"baseline"`
	SuspiciousTxs []SuspiciousTransaction `json:"suspicious_transactions"`
	Patterns      []PatternDetection      `json:"patterns"`
	Network       NetworkAnalysis         `json:"network"`
	Score         int                     `json:"score"`
	RiskLevel     RiskLevel               `json:"risk_level"`
	EvaluatedAt   time.Time               `json:"evaluated_at"`
}

// Evidence summarizes an evaluation into the persisted record form.
func (e *Evaluation) Evidence() AccountEvidence {
	return AccountEvidence{
		AccountID:              e.AccountID,
		Score:                  e.Score,
		RiskLevel:              e.RiskLevel,
		SuspiciousTransactions: len(e.SuspiciousTxs),
		ConfirmedPatterns:      len(e.Patterns),
		NetworkSignals:         len(e.Network.Signals),
		IsProbableML:           e.Network.IsProbableML,
		LastUpdated:            e.EvaluatedAt,
	}
}
