// Package store defines the persistence contract consumed by the detection
// engine. The core reads and writes exclusively through it; implementations
// must serialize writes so that back-to-back pipeline calls never interleave.
package store

import (
	"context"

	"github.com/banking/aml-engine/internal/domain"
)

// Store is the engine's only shared mutable resource.
//
// Ordering contract: ListTransactions and ListAlerts return newest-first
// (prepend semantics). Evidence is keyed by account and overwritten on
// re-evaluation. Alerts and audit entries are append-only.
type Store interface {
	AddTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error

	// GetEvidence returns nil (and no error) when the account has never
	// been evaluated.
	GetEvidence(ctx context.Context, accountID string) (*domain.AccountEvidence, error)
	PutEvidence(ctx context.Context, ev *domain.AccountEvidence) error
	ListEvidence(ctx context.Context) ([]domain.AccountEvidence, error)

	ListAlerts(ctx context.Context) ([]domain.Alert, error)
	AppendAlert(ctx context.Context, alert *domain.Alert) error
	UpdateAlert(ctx context.Context, id string, patch domain.AlertPatch) (*domain.Alert, error)

	LogAudit(ctx context.Context, entry *domain.AuditEntry) error

	// Watchlist entries are round-tripped for the external workflow; the
	// core itself never consumes them.
	ListWatchlist(ctx context.Context) ([]string, error)
	AddWatchlistEntry(ctx context.Context, accountID string) error
}
