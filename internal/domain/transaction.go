package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransaction is returned when a transaction fails validation
// at the pipeline boundary. Nothing is written to the store in that case.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction represents a single fund movement between two accounts.
// Transactions are immutable once ingested.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	Sender      string          `json:"sender" db:"sender"`
	Receiver    string          `json:"receiver" db:"receiver"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	BankAccount string          `json:"bank_account,omitempty" db:"bank_account"`
	Currency    string          `json:"currency,omitempty" db:"currency"`
	Country     string          `json:"country,omitempty" db:"country"`
}

// NewTransactionID generates a transaction identifier following the
// TX-<epoch-ms> convention. Externally supplied IDs are accepted as-is.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("TX-%d", now.UnixMilli())
}

// Validate checks the structural invariants of a transaction:
// sender != receiver, amount > 0, timestamp set.
func (t *Transaction) Validate() error {
	switch {
	case t.Sender == "":
		return fmt.Errorf("%w: missing sender", ErrInvalidTransaction)
	case t.Receiver == "":
		return fmt.Errorf("%w: missing receiver", ErrInvalidTransaction)
	case t.Sender == t.Receiver:
		return fmt.Errorf("%w: sender and receiver are the same account", ErrInvalidTransaction)
	case t.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidTransaction)
	}
	return nil
}

// Touches reports whether the account appears on either side of the transaction.
func (t *Transaction) Touches(accountID string) bool {
	return t.Sender == accountID || t.Receiver == accountID
}

// AmountFloat converts the exact decimal amount to a float64 for the
// ratio and tolerance arithmetic used by the detection engine.
func (t *Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}
