// Package alert turns account evaluations into explainable, deduplicated,
// signed alerts and drives their analyst workflow.
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/crypto"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/evidence"
	"github.com/banking/aml-engine/internal/store"
	"go.uber.org/zap"
)

// Indexer receives created alerts for full-text search. Indexing is best
// effort; a failure never blocks alert persistence.
type Indexer interface {
	IndexAlert(ctx context.Context, alert *domain.Alert) error
}

// Archiver exports alerts to long-term regulator-facing storage.
type Archiver interface {
	ArchiveAlert(ctx context.Context, alert *domain.Alert) error
}

// Service generates and persists alerts.
type Service struct {
	store    store.Store
	evidence *evidence.Engine
	signer   *crypto.AlertSigner
	indexer  Indexer
	archiver Archiver
	cfg      config.DetectionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an alert service. The indexer and archiver are
// optional; pass nil to disable search indexing or archival.
func NewService(st store.Store, ev *evidence.Engine, signer *crypto.AlertSigner, indexer Indexer, archiver Archiver, cfg config.DetectionConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		evidence: ev,
		signer:   signer,
		indexer:  indexer,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service clock, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate builds an alert from an evaluation, or returns nil when the
// score is below the alerting threshold. Generation performs no I/O.
func (s *Service) Generate(eval *domain.Evaluation) *domain.Alert {
	if eval.Score < s.cfg.SuspiciousScore {
		return nil
	}

	now := s.now()
	a := &domain.Alert{
		ID:                   domain.NewAlertID(now),
		AccountID:            eval.AccountID,
		Severity:             domain.SeverityForRisk(eval.RiskLevel),
		RiskLevel:            eval.RiskLevel,
		Score:                eval.Score,
		Timestamp:            now,
		Status:               domain.AlertStatusOpen,
		Summary:              summarize(eval),
		BehaviorSummary:      behaviorSummary(eval.Baseline),
		DetectedPatterns:     eval.Patterns,
		Timeline:             buildTimeline(eval, now),
		NetworkRelationships: eval.Network.Signals,
		EvidenceBreakdown: domain.EvidenceBreakdown{
			SuspiciousTransactions: len(eval.SuspiciousTxs),
			ConfirmedPatterns:      len(eval.Patterns),
			NetworkSignals:         len(eval.Network.Signals),
			IsProbableML:           eval.Network.IsProbableML,
		},
		Recommendations: recommendations(eval.RiskLevel),
	}
	if s.signer != nil {
		a.Signature = s.signer.SignAlert(a)
	}
	return a
}

// CreateAndSave evaluates the account, generates an alert, and persists
// it unless another alert for the account exists within the dedup window.
// Returns nil without error when no alert is warranted or one was
// suppressed as a duplicate.
func (s *Service) CreateAndSave(ctx context.Context, accountID string) (*domain.Alert, error) {
	eval, err := s.evidence.Evaluate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("evaluating account %s: %w", accountID, err)
	}

	a := s.Generate(eval)
	if a == nil {
		return nil, nil
	}

	existing, err := s.store.ListAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	cutoff := s.now().Add(-s.cfg.DedupWindow)
	for _, prev := range existing {
		if prev.AccountID == accountID && prev.Timestamp.After(cutoff) {
			s.logger.Debug("duplicate alert suppressed",
				zap.String("account_id", accountID),
				zap.String("existing_alert", prev.ID),
			)
			return nil, nil
		}
	}

	if err := s.store.AppendAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("persisting alert: %w", err)
	}

	entry := domain.NewAuditEntry("system", "alert_created",
		fmt.Sprintf("%s alert for account %s: %s", strings.ToUpper(string(a.Severity)), accountID, a.Summary),
		s.now())
	if err := s.store.LogAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("writing audit entry: %w", err)
	}

	s.asyncIndex(a)
	s.logger.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("account_id", accountID),
		zap.String("severity", string(a.Severity)),
		zap.Int("score", a.Score),
	)
	return a, nil
}

// Close transitions an alert to closed with optional analyst comments.
func (s *Service) Close(ctx context.Context, id, user, comments string) (*domain.Alert, error) {
	status := domain.AlertStatusClosed
	patch := domain.AlertPatch{Status: &status}
	if comments != "" {
		patch.AnalystComments = &comments
	}
	a, err := s.store.UpdateAlert(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("closing alert %s: %w", id, err)
	}
	entry := domain.NewAuditEntry(user, "alert_closed", fmt.Sprintf("alert %s closed", id), s.now())
	if err := s.store.LogAudit(ctx, entry); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkSARFiled records that a SAR was filed for the alert and archives
// the alert document for the regulator.
func (s *Service) MarkSARFiled(ctx context.Context, id, user string) (*domain.Alert, error) {
	status := domain.AlertStatusSARFiled
	a, err := s.store.UpdateAlert(ctx, id, domain.AlertPatch{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("marking SAR filed on alert %s: %w", id, err)
	}
	entry := domain.NewAuditEntry(user, "sar_filed", fmt.Sprintf("SAR filed for alert %s (account %s)", id, a.AccountID), s.now())
	if err := s.store.LogAudit(ctx, entry); err != nil {
		return nil, err
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveAlert(ctx, a); err != nil {
			s.logger.Error("failed to archive alert",
				zap.String("alert_id", id),
				zap.Error(err),
			)
		}
	}
	return a, nil
}

// asyncIndex pushes the alert into the search index in the background
// with panic protection, mirroring the best-effort indexing contract.
func (s *Service) asyncIndex(a *domain.Alert) {
	if s.indexer == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async alert indexing", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.indexer.IndexAlert(ctx, a); err != nil {
			s.logger.Error("failed to index alert",
				zap.String("alert_id", a.ID),
				zap.Error(err),
			)
		}
	}()
}

func summarize(eval *domain.Evaluation) string {
	parts := []string{
		fmt.Sprintf("%d suspicious transactions", len(eval.SuspiciousTxs)),
	}
	if len(eval.Patterns) > 0 {
		names := make([]string, 0, len(eval.Patterns))
		for _, p := range eval.Patterns {
			names = append(names, string(p.Type))
		}
		parts = append(parts, fmt.Sprintf("%d patterns (%s)", len(eval.Patterns), strings.Join(names, ", ")))
	} else {
		parts = append(parts, "0 patterns")
	}
	parts = append(parts, fmt.Sprintf("%d network signals", len(eval.Network.Signals)))
	if eval.Network.IsProbableML {
		parts = append(parts, "probable money laundering")
	}
	return fmt.Sprintf("%s: %s", eval.AccountID, strings.Join(parts, ", "))
}

func behaviorSummary(b domain.Baseline) string {
	lines := []string{
		fmt.Sprintf("Account %s, age %d days, %d transactions on record", b.AccountID, b.AccountAgeDays, b.TotalTransactions),
		fmt.Sprintf("Average daily inflow %.2f, outflow %.2f", b.AvgDailyInflow, b.AvgDailyOutflow),
		fmt.Sprintf("Average %.2f transactions per day", b.AvgTxFrequency),
		fmt.Sprintf("Typical amount range %.2f to %.2f", b.TypicalAmountRange.P10, b.TypicalAmountRange.P90),
		fmt.Sprintf("Average unique senders %.2f, receivers %.2f per day", b.AvgUniqueSenders, b.AvgUniqueReceivers),
	}
	return strings.Join(lines, "\n")
}

func buildTimeline(eval *domain.Evaluation, now time.Time) []domain.TimelineEvent {
	events := make([]domain.TimelineEvent, 0, len(eval.SuspiciousTxs)+len(eval.Patterns))
	for _, sus := range eval.SuspiciousTxs {
		events = append(events, domain.TimelineEvent{
			Type:          "suspicious_transaction",
			Description:   fmt.Sprintf("%s: %s", sus.Type, sus.Description),
			Timestamp:     sus.Transaction.Timestamp,
			TransactionID: sus.TransactionID,
		})
	}
	for _, p := range eval.Patterns {
		events = append(events, domain.TimelineEvent{
			Type:        "pattern_detected",
			Description: fmt.Sprintf("%s: %s", p.Type, p.Description),
			Timestamp:   now,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func recommendations(level domain.RiskLevel) []string {
	switch level {
	case domain.RiskProbableML:
		return []string{
			"File a Suspicious Activity Report with the regulator",
			"Escalate to the senior compliance analyst",
			"Consider freezing the account pending investigation",
		}
	case domain.RiskHighRisk:
		return []string{
			"Perform enhanced due diligence on the account",
			"Schedule a compliance review",
			"Place the account under close monitoring",
		}
	default:
		return []string{
			"Continue monitoring account activity",
			"Document the findings in the case file",
			"Escalate if further evidence accumulates",
		}
	}
}
