// Package memory provides an in-memory Store for tests and embedded use.
// All operations are serialized through a single mutex.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/banking/aml-engine/internal/domain"
)

// Store keeps the whole persistence layout in process: newest-first
// transaction and alert lists, an evidence map keyed by account, an
// append-only audit log, and the watchlist.
type Store struct {
	mu           sync.Mutex
	transactions []domain.Transaction
	evidence     map[string]domain.AccountEvidence
	alerts       []domain.Alert
	auditLog     []domain.AuditEntry
	watchlist    []string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		evidence: make(map[string]domain.AccountEvidence),
	}
}

// AddTransaction prepends the transaction to the list.
func (s *Store) AddTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]domain.Transaction{*tx}, s.transactions...)
	return nil
}

// ListTransactions returns all transactions newest-first.
func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out, nil
}

// UpdateTransaction overwrites a transaction by id.
func (s *Store) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == tx.ID {
			s.transactions[i] = *tx
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", tx.ID)
}

// GetEvidence returns the persisted evidence record, or nil if the account
// has never been evaluated.
func (s *Store) GetEvidence(_ context.Context, accountID string) (*domain.AccountEvidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.evidence[accountID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// PutEvidence overwrites the evidence record for the account.
func (s *Store) PutEvidence(_ context.Context, ev *domain.AccountEvidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[ev.AccountID] = *ev
	return nil
}

// ListEvidence returns all persisted evidence records in unspecified order.
func (s *Store) ListEvidence(_ context.Context) ([]domain.AccountEvidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AccountEvidence, 0, len(s.evidence))
	for _, ev := range s.evidence {
		out = append(out, ev)
	}
	return out, nil
}

// ListAlerts returns all alerts newest-first.
func (s *Store) ListAlerts(_ context.Context) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

// AppendAlert prepends the alert to the list.
func (s *Store) AppendAlert(_ context.Context, alert *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append([]domain.Alert{*alert}, s.alerts...)
	return nil
}

// UpdateAlert applies a partial update by id and returns the updated alert.
func (s *Store) UpdateAlert(_ context.Context, id string, patch domain.AlertPatch) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if patch.Status != nil {
			s.alerts[i].Status = *patch.Status
		}
		if patch.AnalystComments != nil {
			s.alerts[i].AnalystComments = *patch.AnalystComments
		}
		updated := s.alerts[i]
		return &updated, nil
	}
	return nil, fmt.Errorf("alert %s not found", id)
}

// LogAudit appends an audit entry.
func (s *Store) LogAudit(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append([]domain.AuditEntry{*entry}, s.auditLog...)
	return nil
}

// AuditLog returns the audit entries newest-first. Test helper; the
// production store exposes audit records only to external tooling.
func (s *Store) AuditLog() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.auditLog))
	copy(out, s.auditLog)
	return out
}

// ListWatchlist returns the watchlist entries.
func (s *Store) ListWatchlist(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.watchlist))
	copy(out, s.watchlist)
	return out, nil
}

// AddWatchlistEntry appends an account to the watchlist.
func (s *Store) AddWatchlistEntry(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchlist = append(s.watchlist, accountID)
	return nil
}
