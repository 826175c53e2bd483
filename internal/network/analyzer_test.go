package network

import (
	"fmt"
	"testing"
	"time"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newAnalyzer() *Analyzer {
	return NewAnalyzer(config.DefaultDetection())
}

func TestDetectCircularFlow(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-6 * time.Hour)

	// A -> B -> C -> A, three hops.
	txs := []domain.Transaction{
		tx("t1", "A", "B", 1000, t0),
		tx("t2", "B", "C", 950, t0.Add(time.Hour)),
		tx("t3", "C", "A", 900, t0.Add(2*time.Hour)),
	}

	sig := a.detectCircularFlow("A", txs)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalCircularFlow, sig.Type)
	assert.Equal(t, domain.SeverityCritical, sig.Severity)
	assert.Equal(t, 3, sig.Evidence["path_length"])
	assert.Equal(t, []string{"A", "B", "C", "A"}, sig.Evidence["path"])
}

func TestDetectCircularFlowTooShort(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-2 * time.Hour)

	// A -> B -> A is only two hops, below the minimum cycle length.
	txs := []domain.Transaction{
		tx("t1", "A", "B", 1000, t0),
		tx("t2", "B", "A", 950, t0.Add(time.Hour)),
	}

	assert.Nil(t, a.detectCircularFlow("A", txs))
}

func TestDetectCircularFlowDepthBound(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-12 * time.Hour)

	// A six-hop cycle exceeds the default depth of five and is not found.
	chain := []string{"A", "B", "C", "D", "E", "F", "A"}
	var txs []domain.Transaction
	for i := 0; i < len(chain)-1; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("t%d", i), chain[i], chain[i+1], 1000,
			t0.Add(time.Duration(i)*time.Hour)))
	}

	assert.Nil(t, a.detectCircularFlow("A", txs))
}

func TestDetectCircularFlowPrefersLongestCycle(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-12 * time.Hour)

	// Both A->B->C->A and A->B->C->D->A exist; the longer one is reported.
	txs := []domain.Transaction{
		tx("t1", "A", "B", 1000, t0),
		tx("t2", "B", "C", 950, t0.Add(time.Hour)),
		tx("t3", "C", "A", 900, t0.Add(2*time.Hour)),
		tx("t4", "C", "D", 900, t0.Add(2*time.Hour)),
		tx("t5", "D", "A", 850, t0.Add(3*time.Hour)),
	}

	sig := a.detectCircularFlow("A", txs)
	require.NotNil(t, sig)
	assert.Equal(t, 4, sig.Evidence["path_length"])
}

func hubTransactions(t0 time.Time) []domain.Transaction {
	var txs []domain.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("in%d", i),
			fmt.Sprintf("SRC-%d", i),
			"HUB", 1000, t0.Add(time.Duration(i)*time.Hour)))
	}
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(
			fmt.Sprintf("out%d", i),
			"HUB",
			fmt.Sprintf("DST-%d", i),
			950, t0.Add(time.Duration(i+6)*time.Hour)))
	}
	return txs
}

func TestDetectHub(t *testing.T) {
	a := newAnalyzer()
	txs := hubTransactions(testNow.Add(-20 * time.Hour))

	sig := a.detectHub("HUB", txs)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalHubAccount, sig.Type)
	assert.Equal(t, 5, sig.Evidence["unique_senders"])
	assert.Equal(t, 5, sig.Evidence["unique_receivers"])
	assert.Equal(t, 5, sig.Evidence["rapid_redistributions"])
}

func TestDetectHubTooFewCounterparties(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-20 * time.Hour)

	var txs []domain.Transaction
	for i := 0; i < 4; i++ {
		txs = append(txs, tx(fmt.Sprintf("in%d", i), fmt.Sprintf("SRC-%d", i), "HUB", 1000, t0))
		txs = append(txs, tx(fmt.Sprintf("out%d", i), "HUB", fmt.Sprintf("DST-%d", i), 950, t0.Add(time.Hour)))
	}

	assert.Nil(t, a.detectHub("HUB", txs))
}

func TestDetectHubSlowRedistribution(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-30 * 24 * time.Hour)

	// Outflows leave days after the inflows; nothing is rapid.
	var txs []domain.Transaction
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(fmt.Sprintf("in%d", i), fmt.Sprintf("SRC-%d", i), "HUB", 1000, t0))
		txs = append(txs, tx(fmt.Sprintf("out%d", i), "HUB", fmt.Sprintf("DST-%d", i), 950,
			t0.Add(time.Duration(i+3)*24*time.Hour)))
	}

	assert.Nil(t, a.detectHub("HUB", txs))
}

func TestDetectFlaggedLinks(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-2 * time.Hour)

	txs := []domain.Transaction{
		tx("t1", "ACC-1", "BAD", 1000, t0),
		tx("t2", "CLEAN", "ACC-1", 500, t0.Add(time.Hour)),
	}
	evidence := []domain.AccountEvidence{
		{AccountID: "BAD", RiskLevel: domain.RiskProbableML},
		{AccountID: "CLEAN", RiskLevel: domain.RiskNormal},
	}

	sig := a.detectFlaggedLinks("ACC-1", txs, evidence)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalFlaggedLinks, sig.Type)
	assert.Equal(t, domain.SeverityHigh, sig.Severity)
	assert.Equal(t, []string{"BAD"}, sig.Evidence["flagged_counterparties"])
}

func TestDetectFlaggedLinksIgnoresOwnRecord(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-2 * time.Hour)

	txs := []domain.Transaction{
		tx("t1", "ACC-1", "B", 1000, t0),
	}
	evidence := []domain.AccountEvidence{
		{AccountID: "ACC-1", RiskLevel: domain.RiskHighRisk},
	}

	assert.Nil(t, a.detectFlaggedLinks("ACC-1", txs, evidence))
}

func TestAnalyzeProbableML(t *testing.T) {
	a := newAnalyzer()
	t0 := testNow.Add(-20 * time.Hour)

	// Hub shape plus a flagged counterparty: two signals mark the account.
	txs := hubTransactions(t0)
	evidence := []domain.AccountEvidence{
		{AccountID: "SRC-0", RiskLevel: domain.RiskHighRisk},
	}

	analysis := a.Analyze("HUB", txs, evidence)
	assert.Len(t, analysis.Signals, 2)
	assert.True(t, analysis.IsProbableML)

	// A single signal is not enough.
	analysis = a.Analyze("HUB", txs, nil)
	assert.Len(t, analysis.Signals, 1)
	assert.False(t, analysis.IsProbableML)
}
