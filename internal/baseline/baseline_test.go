package baseline

import (
	"testing"
	"time"

	"github.com/banking/aml-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
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

func TestComputeEmptyHistory(t *testing.T) {
	b := Compute("ACC-1", nil, testNow)

	assert.Equal(t, "ACC-1", b.AccountID)
	assert.Equal(t, 0, b.AccountAgeDays)
	assert.Equal(t, 0, b.TotalTransactions)
	assert.Zero(t, b.AvgDailyOutflow)
}

func TestComputeAverages(t *testing.T) {
	start := testNow.Add(-10 * 24 * time.Hour)
	txs := []domain.Transaction{
		tx("t1", "ACC-1", "B", 100, start),
		tx("t2", "C", "ACC-1", 200, start.Add(24*time.Hour)),
		tx("t3", "D", "ACC-1", 300, start.Add(48*time.Hour)),
		tx("t4", "ACC-1", "E", 400, start.Add(72*time.Hour)),
		tx("t5", "ACC-1", "F", 500, start.Add(96*time.Hour)),
		tx("x1", "C", "D", 9999, start), // does not touch ACC-1
	}

	b := Compute("ACC-1", txs, testNow)

	assert.Equal(t, 10, b.AccountAgeDays)
	assert.Equal(t, 5, b.TotalTransactions)
	assert.InDelta(t, 50, b.AvgDailyInflow, 1e-9)   // 500 over 10 days
	assert.InDelta(t, 100, b.AvgDailyOutflow, 1e-9) // 1000 over 10 days
	assert.InDelta(t, 0.5, b.AvgTxFrequency, 1e-9)
	assert.InDelta(t, 0.2, b.AvgUniqueSenders, 1e-9)   // C, D
	assert.InDelta(t, 0.3, b.AvgUniqueReceivers, 1e-9) // B, E, F
	assert.InDelta(t, 100, b.TypicalAmountRange.P10, 1e-9)
	assert.InDelta(t, 500, b.TypicalAmountRange.P90, 1e-9)
}

func TestComputeAgeFloorsAtOneDay(t *testing.T) {
	txs := []domain.Transaction{
		tx("t1", "ACC-1", "B", 100, testNow.Add(-time.Hour)),
	}

	b := Compute("ACC-1", txs, testNow)
	assert.Equal(t, 1, b.AccountAgeDays)
}

func TestCheckDeviationAmountRatio(t *testing.T) {
	b := domain.Baseline{
		AccountID:          "ACC-1",
		AvgDailyOutflow:    100,
		TypicalAmountRange: domain.AmountRange{P10: 50, P90: 1000},
	}

	// 4x the daily outflow average: medium amount deviation.
	res := CheckDeviation(tx("t1", "ACC-1", "B", 400, testNow), b)
	assert.True(t, res.HasDeviation)
	assert.Len(t, res.Deviations, 1)
	assert.Equal(t, domain.DeviationAmount, res.Deviations[0].Type)
	assert.Equal(t, domain.SeverityMedium, res.Deviations[0].Severity)
	assert.InDelta(t, 4, res.Deviations[0].Ratio, 1e-9)

	// 6x: high severity.
	res = CheckDeviation(tx("t2", "ACC-1", "B", 600, testNow), b)
	assert.Equal(t, domain.SeverityHigh, res.Deviations[0].Severity)

	// 2x: no deviation.
	res = CheckDeviation(tx("t3", "ACC-1", "B", 200, testNow), b)
	assert.False(t, res.HasDeviation)
}

func TestCheckDeviationFirstOutflow(t *testing.T) {
	b := domain.Baseline{AccountID: "ACC-1"}

	res := CheckDeviation(tx("t1", "ACC-1", "B", 250, testNow), b)
	assert.True(t, res.HasDeviation)
	assert.Equal(t, domain.DeviationFirstTransaction, res.Deviations[0].Type)

	// Inflows never trigger the first-outflow deviation.
	res = CheckDeviation(tx("t2", "B", "ACC-1", 250, testNow), b)
	assert.False(t, res.HasDeviation)
}

func TestCheckDeviationRange(t *testing.T) {
	b := domain.Baseline{
		AccountID:          "ACC-1",
		AvgDailyOutflow:    1000,
		TypicalAmountRange: domain.AmountRange{P10: 100, P90: 500},
	}

	// Above 1.5x P90 but only 0.8x the daily outflow: range only.
	res := CheckDeviation(tx("t1", "ACC-1", "B", 800, testNow), b)
	assert.True(t, res.HasDeviation)
	assert.Len(t, res.Deviations, 1)
	assert.Equal(t, domain.DeviationRange, res.Deviations[0].Type)

	// A large outflow can trigger both deviations at once.
	res = CheckDeviation(tx("t2", "ACC-1", "B", 4000, testNow), b)
	assert.Len(t, res.Deviations, 2)
}

func TestRecentActivity(t *testing.T) {
	txs := []domain.Transaction{
		tx("old", "ACC-1", "B", 100, testNow.Add(-72*time.Hour)),
		tx("new", "B", "ACC-1", 100, testNow.Add(-12*time.Hour)),
		tx("other", "B", "C", 100, testNow.Add(-1*time.Hour)),
	}

	recent := RecentActivity("ACC-1", txs, 48, testNow)
	assert.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}
