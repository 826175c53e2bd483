package domain

import (
	"fmt"
	"time"
)

// Severity grades findings and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForRisk maps a risk band onto the alert severity scale.
func SeverityForRisk(level RiskLevel) Severity {
	switch level {
	case RiskProbableML:
		return SeverityCritical
	case RiskHighRisk:
		return SeverityHigh
	case RiskSuspicious:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertStatus tracks the analyst workflow state of an alert.
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusClosed   AlertStatus = "closed"
	AlertStatusSARFiled AlertStatus = "sar_filed"
)

// TimelineEvent is one entry in an alert's chronological narrative.
type TimelineEvent struct {
	Type          string    `json:"type"` // suspicious_transaction, pattern_detected
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

// EvidenceBreakdown carries the counts behind an alert's score.
type EvidenceBreakdown struct {
	SuspiciousTransactions int  `json:"suspicious_transactions"`
	ConfirmedPatterns      int  `json:"confirmed_patterns"`
	NetworkSignals         int  `json:"network_signals"`
	IsProbableML           bool `json:"is_probable_ml"`
}

// Alert is the persisted, append-only output of the engine: an explainable
// account-level finding handed to the compliance workflow.
type Alert struct {
	ID                   string             `json:"id" db:"id"`
	AccountID            string             `json:"account_id" db:"account_id"`
	Severity             Severity           `json:"severity" db:"severity"`
	RiskLevel            RiskLevel          `json:"risk_level" db:"risk_level"`
	Score                int                `json:"score" db:"score"`
	Timestamp            time.Time          `json:"timestamp" db:"timestamp"`
	Status               AlertStatus        `json:"status" db:"status"`
	Summary              string             `json:"summary" db:"summary"`
	BehaviorSummary      string             `json:"behavior_summary" db:"behavior_summary"`
	DetectedPatterns     []PatternDetection `json:"detected_patterns" db:"detected_patterns"`
	Timeline             []TimelineEvent    `json:"timeline" db:"timeline"`
	NetworkRelationships []NetworkSignal    `json:"network_relationships" db:"network_relationships"`
	EvidenceBreakdown    EvidenceBreakdown  `json:"evidence_breakdown" db:"evidence_breakdown"`
	Recommendations      []string           `json:"recommendations" db:"recommendations"`
	AnalystComments      string             `json:"analyst_comments,omitempty" db:"analyst_comments"`
	Signature            string             `json:"signature,omitempty" db:"signature"`
}

// NewAlertID generates an alert identifier following the ALERT-<epoch-ms>
// convention.
func NewAlertID(now time.Time) string {
	return fmt.Sprintf("ALERT-%d", now.UnixMilli())
}

// AlertPatch is a partial update applied by the analyst workflow. Nil
// fields are left untouched.
type AlertPatch struct {
	Status          *AlertStatus
	AnalystComments *string
}

// AlertPage is one page of alert search results.
type AlertPage struct {
	Alerts     []*Alert `json:"alerts"`
	TotalCount int64    `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	HasMore    bool     `json:"has_more"`
}
