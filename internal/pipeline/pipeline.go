// Package pipeline orchestrates the detection subsystems: it validates
// and persists each incoming transaction, re-evaluates the touched
// accounts, and raises alerts where warranted.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banking/aml-engine/internal/alert"
	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/evidence"
	"github.com/banking/aml-engine/internal/store"
	"go.uber.org/zap"
)

// AccountResult is the per-account outcome of processing one transaction.
type AccountResult struct {
	AccountID      string           `json:"account_id"`
	Score          int              `json:"score"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	AlertGenerated bool             `json:"alert_generated"`
}

// ProcessResult is returned by Process for one ingested transaction.
type ProcessResult struct {
	TransactionID string          `json:"transaction_id"`
	Accounts      []AccountResult `json:"accounts"`
	HighestRisk   string          `json:"highest_risk_account"`
}

// AnalysisReport summarizes a full batch re-analysis.
type AnalysisReport struct {
	AccountsEvaluated int                      `json:"accounts_evaluated"`
	RiskBandCounts    map[domain.RiskLevel]int `json:"risk_band_counts"`
	AlertsCreated     int                      `json:"alerts_created"`
}

// Pipeline wires the store, evidence engine and alert service together.
// All public operations run to completion before the next begins; the
// store serializes the underlying writes.
type Pipeline struct {
	store    store.Store
	evidence *evidence.Engine
	alerts   *alert.Service
	cfg      config.DetectionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a pipeline over the given collaborators.
func New(st store.Store, ev *evidence.Engine, alerts *alert.Service, cfg config.DetectionConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:    st,
		evidence: ev,
		alerts:   alerts,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the pipeline clock, for deterministic tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Process ingests one transaction and re-evaluates both touched accounts.
// Invalid transactions are rejected before anything is written. The
// transaction is observable in the store before any evidence or alert
// write that refers to it.
func (p *Pipeline) Process(ctx context.Context, tx *domain.Transaction) (*ProcessResult, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = domain.NewTransactionID(p.now())
	}

	if err := p.store.AddTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("persisting transaction: %w", err)
	}
	entry := domain.NewAuditEntry("system", "transaction_ingested",
		fmt.Sprintf("transaction %s: %s -> %s amount %s", tx.ID, tx.Sender, tx.Receiver, tx.Amount.String()),
		p.now())
	if err := p.store.LogAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("writing audit entry: %w", err)
	}

	result := &ProcessResult{TransactionID: tx.ID}
	for _, accountID := range []string{tx.Sender, tx.Receiver} {
		ar, err := p.evaluateAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		result.Accounts = append(result.Accounts, ar)
	}

	highest := result.Accounts[0]
	for _, ar := range result.Accounts[1:] {
		if ar.Score > highest.Score {
			highest = ar
		}
	}
	result.HighestRisk = highest.AccountID

	p.logger.Debug("transaction processed",
		zap.String("transaction_id", tx.ID),
		zap.String("highest_risk_account", result.HighestRisk),
	)
	return result, nil
}

func (p *Pipeline) evaluateAccount(ctx context.Context, accountID string) (AccountResult, error) {
	eval, err := p.evidence.Evaluate(ctx, accountID)
	if err != nil {
		return AccountResult{}, fmt.Errorf("evaluating %s: %w", accountID, err)
	}
	if err := p.evidence.UpdateEvidence(ctx, eval); err != nil {
		return AccountResult{}, err
	}

	ar := AccountResult{
		AccountID: accountID,
		Score:     eval.Score,
		RiskLevel: eval.RiskLevel,
	}
	if eval.Score >= p.cfg.SuspiciousScore {
		created, err := p.alerts.CreateAndSave(ctx, accountID)
		if err != nil {
			return AccountResult{}, err
		}
		ar.AlertGenerated = created != nil
	}
	return ar, nil
}

// FullAnalysis re-evaluates every account seen in the transaction history
// and raises alerts for all accounts at or above the alerting threshold.
func (p *Pipeline) FullAnalysis(ctx context.Context) (*AnalysisReport, error) {
	evals, err := p.evidence.EvaluateAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluating all accounts: %w", err)
	}

	report := &AnalysisReport{
		AccountsEvaluated: len(evals),
		RiskBandCounts:    make(map[domain.RiskLevel]int),
	}
	for _, eval := range evals {
		report.RiskBandCounts[eval.RiskLevel]++
		if eval.Score < p.cfg.SuspiciousScore {
			continue
		}
		created, err := p.alerts.CreateAndSave(ctx, eval.AccountID)
		if err != nil {
			return nil, err
		}
		if created != nil {
			report.AlertsCreated++
		}
	}

	p.logger.Info("full analysis complete",
		zap.Int("accounts", report.AccountsEvaluated),
		zap.Int("alerts_created", report.AlertsCreated),
	)
	return report, nil
}
