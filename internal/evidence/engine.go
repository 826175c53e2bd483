// Package evidence evaluates accounts: it gathers baseline deviations,
// pattern detections and network signals, reduces them to a capped score,
// and persists the per-account evidence record.
package evidence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/banking/aml-engine/internal/baseline"
	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/network"
	"github.com/banking/aml-engine/internal/pattern"
	"github.com/banking/aml-engine/internal/store"
	"go.uber.org/zap"
)

// Engine coordinates one account evaluation end to end. It keeps no
// mutable state between calls; evaluation is a pure function of the store
// contents and the clock.
type Engine struct {
	store    store.Store
	patterns *pattern.Detector
	network  *network.Analyzer
	cfg      config.DetectionConfig
	bands    domain.Bands
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an evidence engine over the given store.
func NewEngine(st store.Store, cfg config.DetectionConfig, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		patterns: pattern.NewDetector(cfg),
		network:  network.NewAnalyzer(cfg),
		cfg:      cfg,
		bands: domain.Bands{
			Suspicious: cfg.SuspiciousScore,
			HighRisk:   cfg.HighRiskScore,
			ProbableML: cfg.ProbableMLScore,
		},
		loc:    cfg.Location(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the engine clock. Evaluation is deterministic under
// a fixed clock; tests rely on this.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Bands returns the score thresholds in effect.
func (e *Engine) Bands() domain.Bands { return e.bands }

// Evaluate computes the full evaluation for one account from the current
// store contents. It performs no writes; pair with UpdateEvidence to
// persist the result.
func (e *Engine) Evaluate(ctx context.Context, accountID string) (*domain.Evaluation, error) {
	txs, err := e.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	flagged, err := e.store.ListEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}

	now := e.now()
	b := baseline.Compute(accountID, txs, now)
	suspicious := e.FindSuspicious(accountID, txs, b)
	patterns := e.patterns.DetectAll(accountID, txs, b, now)
	net := e.network.Analyze(accountID, txs, flagged)

	score := e.cfg.SuspiciousTxWeight*len(suspicious) +
		e.cfg.PatternWeight*len(patterns) +
		e.cfg.NetworkSignalWeight*len(net.Signals)
	if net.IsProbableML {
		score += e.cfg.ProbableMLBonus
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return &domain.Evaluation{
		AccountID:     accountID,
		Baseline:      b,
		SuspiciousTxs: suspicious,
		Patterns:      patterns,
		Network:       net,
		Score:         score,
		RiskLevel:     e.bands.Level(score),
		EvaluatedAt:   now,
	}, nil
}

// FindSuspicious flags individual transactions touching the account. A
// single transaction may yield entries of several types; each entry
// contributes to the score independently.
func (e *Engine) FindSuspicious(accountID string, txs []domain.Transaction, b domain.Baseline) []domain.SuspiciousTransaction {
	touching := domain.TouchingTransactions(accountID, txs)
	if len(touching) == 0 {
		return nil
	}

	// Per-civil-date activity, for the spike tests.
	countByDay := make(map[string]int)
	sendersByDay := make(map[string]map[string]struct{})
	daytimeCount := 0
	for _, tx := range touching {
		local := tx.Timestamp.In(e.loc)
		day := local.Format("2006-01-02")
		countByDay[day]++
		if tx.Receiver == accountID {
			if sendersByDay[day] == nil {
				sendersByDay[day] = make(map[string]struct{})
			}
			sendersByDay[day][tx.Sender] = struct{}{}
		}
		if hr := local.Hour(); hr >= e.cfg.UnusualHourEnd {
			daytimeCount++
		}
	}
	daytimeShare := float64(daytimeCount) / float64(len(touching))

	var out []domain.SuspiciousTransaction
	add := func(tx domain.Transaction, kind domain.SuspiciousTxType, desc string) {
		out = append(out, domain.SuspiciousTransaction{
			TransactionID: tx.ID,
			Type:          kind,
			Description:   desc,
			Transaction:   tx,
		})
	}

	for _, tx := range touching {
		local := tx.Timestamp.In(e.loc)
		day := local.Format("2006-01-02")

		if tx.Sender == accountID {
			if res := baseline.CheckDeviation(tx, b); res.HasDeviation {
				for _, dev := range res.Deviations {
					add(tx, domain.SuspiciousBaselineDeviation,
						fmt.Sprintf("%s: %s", dev.Type, dev.Description))
				}
			}
		}

		if b.AvgTxFrequency > 0 && float64(countByDay[day]) > 3*b.AvgTxFrequency {
			add(tx, domain.SuspiciousFrequencySpike,
				fmt.Sprintf("%d transactions on %s against a daily average of %.2f", countByDay[day], day, b.AvgTxFrequency))
		}

		if tx.Receiver == accountID && b.AvgUniqueSenders > 0 {
			if n := len(sendersByDay[day]); float64(n) > 2*b.AvgUniqueSenders {
				add(tx, domain.SuspiciousSenderCountSpike,
					fmt.Sprintf("%d distinct senders on %s against a daily average of %.2f", n, day, b.AvgUniqueSenders))
			}
		}

		amt := tx.AmountFloat()
		similar := 0
		for _, other := range touching {
			if other.Timestamp.After(tx.Timestamp) || other.Timestamp.Before(tx.Timestamp.Add(-24*time.Hour)) {
				continue
			}
			if abs(other.AmountFloat()-amt)/amt < 0.05 {
				similar++
			}
		}
		if similar >= 3 {
			add(tx, domain.SuspiciousSimilarValue,
				fmt.Sprintf("%d transactions of near-identical value within 24 hours", similar))
		}

		hr := local.Hour()
		if hr >= e.cfg.UnusualHourStart && hr < e.cfg.UnusualHourEnd && daytimeShare > 0.8 {
			add(tx, domain.SuspiciousUnusualTiming,
				fmt.Sprintf("activity at %02d:00 on an account that transacts in daytime hours", hr))
		}
	}

	return out
}

// UpdateEvidence overwrites the persisted record for the evaluated
// account. Risk level transitions are written to the audit log.
func (e *Engine) UpdateEvidence(ctx context.Context, eval *domain.Evaluation) error {
	prev, err := e.store.GetEvidence(ctx, eval.AccountID)
	if err != nil {
		return fmt.Errorf("reading previous evidence: %w", err)
	}

	ev := eval.Evidence()
	if err := e.store.PutEvidence(ctx, &ev); err != nil {
		return fmt.Errorf("persisting evidence: %w", err)
	}

	if prev == nil || prev.RiskLevel != ev.RiskLevel {
		from := domain.RiskNormal
		if prev != nil {
			from = prev.RiskLevel
		}
		entry := domain.NewAuditEntry("system", "risk_level_changed",
			fmt.Sprintf("account %s moved from %s to %s (score %d)", ev.AccountID, from, ev.RiskLevel, ev.Score),
			e.now())
		if err := e.store.LogAudit(ctx, entry); err != nil {
			return fmt.Errorf("writing audit entry: %w", err)
		}
		e.logger.Info("risk level changed",
			zap.String("account_id", ev.AccountID),
			zap.String("risk_level", string(ev.RiskLevel)),
			zap.Int("score", ev.Score),
		)
	}
	return nil
}

// EvaluateAll derives the account set from the transaction history, then
// evaluates and persists each account in deterministic order.
func (e *Engine) EvaluateAll(ctx context.Context) ([]domain.Evaluation, error) {
	txs, err := e.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	seen := make(map[string]struct{})
	var accounts []string
	for _, tx := range txs {
		for _, id := range []string{tx.Sender, tx.Receiver} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				accounts = append(accounts, id)
			}
		}
	}
	sort.Strings(accounts)

	results := make([]domain.Evaluation, 0, len(accounts))
	for _, accountID := range accounts {
		eval, err := e.Evaluate(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", accountID, err)
		}
		if err := e.UpdateEvidence(ctx, eval); err != nil {
			return nil, err
		}
		results = append(results, *eval)
	}
	return results, nil
}

// HighRiskAccounts returns the persisted evidence records at HighRisk or
// above, highest score first.
func (e *Engine) HighRiskAccounts(ctx context.Context) ([]domain.AccountEvidence, error) {
	all, err := e.store.ListEvidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing evidence: %w", err)
	}
	var out []domain.AccountEvidence
	for _, ev := range all {
		if ev.RiskLevel == domain.RiskHighRisk || ev.RiskLevel == domain.RiskProbableML {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
