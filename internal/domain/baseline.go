package domain

import "time"

// AmountRange is the typical amount band observed for an account,
// bounded by the 10th and 90th percentile of all touching amounts.
type AmountRange struct {
	P10 float64 `json:"p10"`
	P90 float64 `json:"p90"`
}

// Baseline is a derived per-account statistical profile. It is never
// persisted; it is recomputed from the transaction history on demand.
type Baseline struct {
	AccountID          string      `json:"account_id"`
	AvgDailyInflow     float64     `json:"avg_daily_inflow"`
	AvgDailyOutflow    float64     `json:"avg_daily_outflow"`
	AvgTxFrequency     float64     `json:"avg_tx_frequency"`
	AvgUniqueSenders   float64     `json:"avg_unique_senders"`
	AvgUniqueReceivers float64     `json:"avg_unique_receivers"`
	TypicalAmountRange AmountRange `json:"typical_amount_range"`
	AccountAgeDays     int         `json:"account_age_days"`
	TotalTransactions  int         `json:"total_transactions"`
}

// DefaultBaseline is the profile of an account with no transaction
// history: all zeros, age zero.
func DefaultBaseline(accountID string) Baseline {
	return Baseline{AccountID: accountID}
}

// DeviationType classifies a single-transaction deviation from baseline.
type DeviationType string

const (
	DeviationAmount           DeviationType = "amount_deviation"
	DeviationFirstTransaction DeviationType = "first_transaction"
	DeviationRange            DeviationType = "range_deviation"
)

// Deviation is one way a transaction departs from the account baseline.
type Deviation struct {
	Type        DeviationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Ratio       float64       `json:"ratio,omitempty"`
}

// DeviationResult aggregates all deviations a single transaction triggers.
type DeviationResult struct {
	HasDeviation bool        `json:"has_deviation"`
	Deviations   []Deviation `json:"deviations,omitempty"`
}

// TouchingTransactions filters a transaction list down to those involving
// the account, preserving input order.
func TouchingTransactions(accountID string, txs []Transaction) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if tx.Touches(accountID) {
			out = append(out, tx)
		}
	}
	return out
}

// FirstTimestamp returns the earliest timestamp in the slice, or the zero
// time for an empty slice.
func FirstTimestamp(txs []Transaction) time.Time {
	var first time.Time
	for _, tx := range txs {
		if first.IsZero() || tx.Timestamp.Before(first) {
			first = tx.Timestamp
		}
	}
	return first
}
