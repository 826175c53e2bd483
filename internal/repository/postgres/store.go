// Package postgres implements the engine Store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the engine state in PostgreSQL. Observed ordering
// (newest-first transactions and alerts) comes from the insertion
// sequence column, which preserves the prepend semantics the engine
// expects. Structured alert fields are stored as JSONB.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL-backed store.
func New(cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// AddTransaction appends a transaction. Ingestion order is recorded by
// the seq column; listings read it back newest-first.
func (s *Store) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (id, sender, receiver, amount, timestamp, bank_account, currency, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.Sender, tx.Receiver, tx.Amount, tx.Timestamp,
		tx.BankAccount, tx.Currency, tx.Country,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns all transactions newest-first.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	const query = `
		SELECT id, sender, receiver, amount, timestamp, bank_account, currency, country
		FROM transactions
		ORDER BY seq DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.Sender, &t.Receiver, &t.Amount, &t.Timestamp,
			&t.BankAccount, &t.Currency, &t.Country); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// UpdateTransaction overwrites a transaction by id.
func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		UPDATE transactions
		SET sender = $2, receiver = $3, amount = $4, timestamp = $5,
		    bank_account = $6, currency = $7, country = $8
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		tx.ID, tx.Sender, tx.Receiver, tx.Amount, tx.Timestamp,
		tx.BankAccount, tx.Currency, tx.Country,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s not found", tx.ID)
	}
	return nil
}

// GetEvidence returns the persisted evidence record, or nil when the
// account has never been evaluated.
func (s *Store) GetEvidence(ctx context.Context, accountID string) (*domain.AccountEvidence, error) {
	const query = `
		SELECT account_id, score, risk_level, suspicious_transactions,
		       confirmed_patterns, network_signals, is_probable_ml, last_updated
		FROM account_evidence
		WHERE account_id = $1
	`
	var ev domain.AccountEvidence
	err := s.pool.QueryRow(ctx, query, accountID).Scan(
		&ev.AccountID, &ev.Score, &ev.RiskLevel, &ev.SuspiciousTransactions,
		&ev.ConfirmedPatterns, &ev.NetworkSignals, &ev.IsProbableML, &ev.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	return &ev, nil
}

// PutEvidence upserts the evidence record for the account.
func (s *Store) PutEvidence(ctx context.Context, ev *domain.AccountEvidence) error {
	const query = `
		INSERT INTO account_evidence (
			account_id, score, risk_level, suspicious_transactions,
			confirmed_patterns, network_signals, is_probable_ml, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			score = EXCLUDED.score,
			risk_level = EXCLUDED.risk_level,
			suspicious_transactions = EXCLUDED.suspicious_transactions,
			confirmed_patterns = EXCLUDED.confirmed_patterns,
			network_signals = EXCLUDED.network_signals,
			is_probable_ml = EXCLUDED.is_probable_ml,
			last_updated = EXCLUDED.last_updated
	`
	_, err := s.pool.Exec(ctx, query,
		ev.AccountID, ev.Score, ev.RiskLevel, ev.SuspiciousTransactions,
		ev.ConfirmedPatterns, ev.NetworkSignals, ev.IsProbableML, ev.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert evidence: %w", err)
	}
	return nil
}

// ListEvidence returns all persisted evidence records.
func (s *Store) ListEvidence(ctx context.Context) ([]domain.AccountEvidence, error) {
	const query = `
		SELECT account_id, score, risk_level, suspicious_transactions,
		       confirmed_patterns, network_signals, is_probable_ml, last_updated
		FROM account_evidence
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountEvidence
	for rows.Next() {
		var ev domain.AccountEvidence
		if err := rows.Scan(&ev.AccountID, &ev.Score, &ev.RiskLevel, &ev.SuspiciousTransactions,
			&ev.ConfirmedPatterns, &ev.NetworkSignals, &ev.IsProbableML, &ev.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListAlerts returns all alerts newest-first.
func (s *Store) ListAlerts(ctx context.Context) ([]domain.Alert, error) {
	const query = `
		SELECT id, account_id, severity, risk_level, score, timestamp, status,
		       summary, behavior_summary, detected_patterns, timeline,
		       network_relationships, evidence_breakdown, recommendations,
		       analyst_comments, signature
		FROM alerts
		ORDER BY seq DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// AppendAlert inserts an alert. Alerts are append-only; status changes go
// through UpdateAlert.
func (s *Store) AppendAlert(ctx context.Context, a *domain.Alert) error {
	patterns, err := json.Marshal(a.DetectedPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}
	timeline, err := json.Marshal(a.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}
	relationships, err := json.Marshal(a.NetworkRelationships)
	if err != nil {
		return fmt.Errorf("failed to marshal network relationships: %w", err)
	}
	breakdown, err := json.Marshal(a.EvidenceBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence breakdown: %w", err)
	}

	const query = `
		INSERT INTO alerts (
			id, account_id, severity, risk_level, score, timestamp, status,
			summary, behavior_summary, detected_patterns, timeline,
			network_relationships, evidence_breakdown, recommendations,
			analyst_comments, signature
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16
		)
	`
	_, err = s.pool.Exec(ctx, query,
		a.ID, a.AccountID, a.Severity, a.RiskLevel, a.Score, a.Timestamp, a.Status,
		a.Summary, a.BehaviorSummary, patterns, timeline,
		relationships, breakdown, a.Recommendations,
		a.AnalystComments, a.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// UpdateAlert applies a partial update by id and returns the updated alert.
func (s *Store) UpdateAlert(ctx context.Context, id string, patch domain.AlertPatch) (*domain.Alert, error) {
	const query = `
		UPDATE alerts
		SET status = COALESCE($2, status),
		    analyst_comments = COALESCE($3, analyst_comments)
		WHERE id = $1
		RETURNING id, account_id, severity, risk_level, score, timestamp, status,
		          summary, behavior_summary, detected_patterns, timeline,
		          network_relationships, evidence_breakdown, recommendations,
		          analyst_comments, signature
	`
	row := s.pool.QueryRow(ctx, query, id, patch.Status, patch.AnalystComments)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s not found", id)
		}
		return nil, err
	}
	return a, nil
}

// LogAudit appends an audit record. This is an APPEND-ONLY operation; no
// updates or deletes are ever performed on this table.
func (s *Store) LogAudit(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
		INSERT INTO audit_logs (id, username, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.User, entry.Action, entry.Details, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListWatchlist returns the watchlist account ids.
func (s *Store) ListWatchlist(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT account_id FROM watchlist ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddWatchlistEntry adds an account to the watchlist.
func (s *Store) AddWatchlistEntry(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchlist (account_id) VALUES ($1) ON CONFLICT DO NOTHING`, accountID)
	if err != nil {
		return fmt.Errorf("failed to insert watchlist entry: %w", err)
	}
	return nil
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var patterns, timeline, relationships, breakdown []byte
	err := row.Scan(
		&a.ID, &a.AccountID, &a.Severity, &a.RiskLevel, &a.Score, &a.Timestamp, &a.Status,
		&a.Summary, &a.BehaviorSummary, &patterns, &timeline,
		&relationships, &breakdown, &a.Recommendations,
		&a.AnalystComments, &a.Signature,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patterns, &a.DetectedPatterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patterns: %w", err)
	}
	if err := json.Unmarshal(timeline, &a.Timeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}
	if err := json.Unmarshal(relationships, &a.NetworkRelationships); err != nil {
		return nil, fmt.Errorf("failed to unmarshal network relationships: %w", err)
	}
	if err := json.Unmarshal(breakdown, &a.EvidenceBreakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence breakdown: %w", err)
	}
	return &a, nil
}
