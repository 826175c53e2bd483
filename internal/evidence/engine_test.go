package evidence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/banking/aml-engine/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func tx(id, sender, receiver string, amount float64, ts time.Time) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    decimal.NewFromFloat(amount),
		Timestamp: ts,
	}
}

func newEngine(st *memory.Store) *Engine {
	e := NewEngine(st, config.DefaultDetection(), zap.NewNop())
	return e.WithClock(func() time.Time { return testNow })
}

func countByType(sus []domain.SuspiciousTransaction, kind domain.SuspiciousTxType) int {
	n := 0
	for _, s := range sus {
		if s.Type == kind {
			n++
		}
	}
	return n
}

func TestFindSuspiciousFrequencySpike(t *testing.T) {
	e := newEngine(memory.New())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	txs := []domain.Transaction{
		tx("t1", "A", "ACC-1", 100, day),
		tx("t2", "B", "ACC-1", 200, day.Add(time.Hour)),
		tx("t3", "C", "ACC-1", 400, day.Add(2*time.Hour)),
		tx("t4", "D", "ACC-1", 800, day.Add(3*time.Hour)),
	}
	b := domain.Baseline{AccountID: "ACC-1", AvgTxFrequency: 1}

	sus := e.FindSuspicious("ACC-1", txs, b)
	assert.Equal(t, 4, countByType(sus, domain.SuspiciousFrequencySpike))
}

func TestFindSuspiciousSenderCountSpike(t *testing.T) {
	e := newEngine(memory.New())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	txs := []domain.Transaction{
		tx("t1", "A", "ACC-1", 100, day),
		tx("t2", "B", "ACC-1", 250, day.Add(time.Hour)),
		tx("t3", "C", "ACC-1", 700, day.Add(2*time.Hour)),
	}
	b := domain.Baseline{AccountID: "ACC-1", AvgUniqueSenders: 1}

	sus := e.FindSuspicious("ACC-1", txs, b)
	assert.Equal(t, 3, countByType(sus, domain.SuspiciousSenderCountSpike))
}

func TestFindSuspiciousSimilarValue(t *testing.T) {
	e := newEngine(memory.New())
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	txs := []domain.Transaction{
		tx("t1", "A", "ACC-1", 1000, day),
		tx("t2", "B", "ACC-1", 1010, day.Add(time.Hour)),
		tx("t3", "C", "ACC-1", 995, day.Add(2*time.Hour)),
	}

	// The window looks back 24 hours from each transaction, so only the
	// last of the cluster sees all three near-identical amounts.
	sus := e.FindSuspicious("ACC-1", txs, domain.DefaultBaseline("ACC-1"))
	require.Equal(t, 1, countByType(sus, domain.SuspiciousSimilarValue))
	assert.Equal(t, "t3", sus[0].TransactionID)
}

func TestFindSuspiciousUnusualTiming(t *testing.T) {
	e := newEngine(memory.New())
	day := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// Nine daytime transactions establish the habit; one 03:00 transaction
	// breaks it.
	var txs []domain.Transaction
	for i := 0; i < 9; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("t%d", i), "A", "ACC-1", 100*float64(i+1)*1.3,
			day.Add(time.Duration(i)*24*time.Hour)))
	}
	night := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	txs = append(txs, tx("night", "B", "ACC-1", 7777, night))

	sus := e.FindSuspicious("ACC-1", txs, domain.DefaultBaseline("ACC-1"))
	require.Equal(t, 1, countByType(sus, domain.SuspiciousUnusualTiming))
	for _, s := range sus {
		if s.Type == domain.SuspiciousUnusualTiming {
			assert.Equal(t, "night", s.TransactionID)
		}
	}
}

func TestEvaluateSmurfingAccount(t *testing.T) {
	st := memory.New()
	e := newEngine(st)
	ctx := context.Background()

	// Six distinct senders deposit the same amount within a few hours.
	for i := 0; i < 6; i++ {
		tr := tx(fmt.Sprintf("in%d", i), fmt.Sprintf("SENDER-%d", i), "MULE", 1000,
			testNow.Add(-time.Duration(i+1)*time.Hour))
		require.NoError(t, st.AddTransaction(ctx, &tr))
	}

	eval, err := e.Evaluate(ctx, "MULE")
	require.NoError(t, err)

	// The last four inflows each see at least three near-identical amounts
	// in their lookback window; with the smurfing pattern the score is
	// 4*10 + 1*20 = 60.
	assert.Equal(t, 4, countByType(eval.SuspiciousTxs, domain.SuspiciousSimilarValue))
	require.Len(t, eval.Patterns, 1)
	assert.Equal(t, domain.PatternSmurfing, eval.Patterns[0].Type)
	assert.Empty(t, eval.Network.Signals)
	assert.Equal(t, 60, eval.Score)
	assert.Equal(t, domain.RiskHighRisk, eval.RiskLevel)
}

func TestEvaluateCleanAccount(t *testing.T) {
	st := memory.New()
	e := newEngine(st)
	ctx := context.Background()

	// One steady daily payment of a constant amount.
	start := testNow.Add(-10 * 24 * time.Hour)
	for i := 0; i < 10; i++ {
		tr := tx(fmt.Sprintf("t%d", i), "ACC-1", "LANDLORD", 100,
			start.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, st.AddTransaction(ctx, &tr))
	}

	eval, err := e.Evaluate(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Equal(t, 0, eval.Score)
	assert.Equal(t, domain.RiskNormal, eval.RiskLevel)
	assert.Empty(t, eval.SuspiciousTxs)
	assert.Empty(t, eval.Patterns)
}

func TestEvaluateDeterministic(t *testing.T) {
	st := memory.New()
	e := newEngine(st)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		tr := tx(fmt.Sprintf("in%d", i), fmt.Sprintf("SENDER-%d", i), "MULE", 1000,
			testNow.Add(-time.Duration(i+1)*time.Hour))
		require.NoError(t, st.AddTransaction(ctx, &tr))
	}

	first, err := e.Evaluate(ctx, "MULE")
	require.NoError(t, err)
	second, err := e.Evaluate(ctx, "MULE")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUpdateEvidenceAuditsRiskTransitions(t *testing.T) {
	st := memory.New()
	e := newEngine(st)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		tr := tx(fmt.Sprintf("in%d", i), fmt.Sprintf("SENDER-%d", i), "MULE", 1000,
			testNow.Add(-time.Duration(i+1)*time.Hour))
		require.NoError(t, st.AddTransaction(ctx, &tr))
	}

	eval, err := e.Evaluate(ctx, "MULE")
	require.NoError(t, err)
	require.NoError(t, e.UpdateEvidence(ctx, eval))

	log := st.AuditLog()
	require.Len(t, log, 1)
	assert.Equal(t, "risk_level_changed", log[0].Action)

	// Re-evaluating to the same level writes no second entry.
	eval, err = e.Evaluate(ctx, "MULE")
	require.NoError(t, err)
	require.NoError(t, e.UpdateEvidence(ctx, eval))
	assert.Len(t, st.AuditLog(), 1)
}

func TestHighRiskAccountsOrdering(t *testing.T) {
	st := memory.New()
	e := newEngine(st)
	ctx := context.Background()

	records := []domain.AccountEvidence{
		{AccountID: "A", Score: 65, RiskLevel: domain.RiskHighRisk},
		{AccountID: "B", Score: 90, RiskLevel: domain.RiskProbableML},
		{AccountID: "C", Score: 40, RiskLevel: domain.RiskSuspicious},
		{AccountID: "D", Score: 65, RiskLevel: domain.RiskHighRisk},
	}
	for i := range records {
		require.NoError(t, st.PutEvidence(ctx, &records[i]))
	}

	out, err := e.HighRiskAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "B", out[0].AccountID)
	assert.Equal(t, "A", out[1].AccountID)
	assert.Equal(t, "D", out[2].AccountID)
}

func TestBandsLevel(t *testing.T) {
	b := domain.DefaultBands
	assert.Equal(t, domain.RiskNormal, b.Level(29))
	assert.Equal(t, domain.RiskSuspicious, b.Level(30))
	assert.Equal(t, domain.RiskHighRisk, b.Level(60))
	assert.Equal(t, domain.RiskProbableML, b.Level(80))
	assert.Equal(t, domain.RiskProbableML, b.Level(100))
}
