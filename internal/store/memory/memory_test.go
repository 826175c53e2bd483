package memory

import (
	"context"
	"testing"
	"time"

	"github.com/banking/aml-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		tx := domain.Transaction{
			ID: id, Sender: "A", Receiver: "B",
			Amount:    decimal.NewFromInt(100),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.AddTransaction(ctx, &tx))
	}

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "t3", txs[0].ID)
	assert.Equal(t, "t1", txs[2].ID)
}

func TestEvidenceRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	got, err := s.GetEvidence(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	ev := domain.AccountEvidence{AccountID: "ACC-1", Score: 40, RiskLevel: domain.RiskSuspicious}
	require.NoError(t, s.PutEvidence(ctx, &ev))

	got, err = s.GetEvidence(ctx, "ACC-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 40, got.Score)

	// Overwrite in place.
	ev.Score = 70
	ev.RiskLevel = domain.RiskHighRisk
	require.NoError(t, s.PutEvidence(ctx, &ev))

	all, err := s.ListEvidence(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 70, all[0].Score)
}

func TestUpdateAlert(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := domain.Alert{ID: "ALERT-1", AccountID: "ACC-1", Status: domain.AlertStatusOpen}
	require.NoError(t, s.AppendAlert(ctx, &a))

	status := domain.AlertStatusClosed
	comments := "reviewed"
	updated, err := s.UpdateAlert(ctx, "ALERT-1", domain.AlertPatch{
		Status:          &status,
		AnalystComments: &comments,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusClosed, updated.Status)
	assert.Equal(t, "reviewed", updated.AnalystComments)

	// Nil patch fields leave values untouched.
	updated, err = s.UpdateAlert(ctx, "ALERT-1", domain.AlertPatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusClosed, updated.Status)
	assert.Equal(t, "reviewed", updated.AnalystComments)

	_, err = s.UpdateAlert(ctx, "ALERT-404", domain.AlertPatch{})
	assert.Error(t, err)
}

func TestWatchlist(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AddWatchlistEntry(ctx, "ACC-1"))
	require.NoError(t, s.AddWatchlistEntry(ctx, "ACC-2"))

	entries, err := s.ListWatchlist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC-1", "ACC-2"}, entries)
}
