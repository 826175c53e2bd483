// Package baseline derives per-account statistical profiles from raw
// transaction history and tests individual transactions against them.
// All functions are pure: given the same transactions and clock they
// return the same result.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banking/aml-engine/internal/domain"
)

const secondsPerDay = 86400

// Compute builds the baseline for an account from the full transaction
// list. An account with no touching transactions gets the default
// all-zero baseline with age 0.
func Compute(accountID string, txs []domain.Transaction, now time.Time) domain.Baseline {
	touching := domain.TouchingTransactions(accountID, txs)
	if len(touching) == 0 {
		return domain.DefaultBaseline(accountID)
	}

	first := domain.FirstTimestamp(touching)
	ageDays := int(now.Sub(first).Seconds()) / secondsPerDay
	if ageDays < 1 {
		ageDays = 1
	}

	var inflow, outflow float64
	senders := make(map[string]struct{})
	receivers := make(map[string]struct{})
	amounts := make([]float64, 0, len(touching))

	for _, tx := range touching {
		amt := tx.AmountFloat()
		amounts = append(amounts, amt)
		if tx.Receiver == accountID {
			inflow += amt
			senders[tx.Sender] = struct{}{}
		}
		if tx.Sender == accountID {
			outflow += amt
			receivers[tx.Receiver] = struct{}{}
		}
	}

	sort.Float64s(amounts)
	n := len(amounts)
	days := float64(ageDays)

	return domain.Baseline{
		AccountID:          accountID,
		AvgDailyInflow:     inflow / days,
		AvgDailyOutflow:    outflow / days,
		AvgTxFrequency:     float64(n) / days,
		AvgUniqueSenders:   float64(len(senders)) / days,
		AvgUniqueReceivers: float64(len(receivers)) / days,
		TypicalAmountRange: domain.AmountRange{
			P10: amounts[int(math.Floor(0.1*float64(n)))],
			P90: amounts[int(math.Floor(0.9*float64(n)))],
		},
		AccountAgeDays:    ageDays,
		TotalTransactions: n,
	}
}

// CheckDeviation tests a single transaction against the account baseline.
// A zero outflow baseline means the amount ratio is undefined; that case
// surfaces as a first_transaction deviation instead.
func CheckDeviation(tx domain.Transaction, b domain.Baseline) domain.DeviationResult {
	var deviations []domain.Deviation
	amt := tx.AmountFloat()

	if tx.Sender == b.AccountID {
		switch {
		case b.AvgDailyOutflow > 0:
			ratio := amt / b.AvgDailyOutflow
			if ratio > 3 {
				severity := domain.SeverityMedium
				if ratio > 5 {
					severity = domain.SeverityHigh
				}
				deviations = append(deviations, domain.Deviation{
					Type:        domain.DeviationAmount,
					Severity:    severity,
					Description: fmt.Sprintf("outflow of %.2f is %.1fx the average daily outflow of %.2f", amt, ratio, b.AvgDailyOutflow),
					Ratio:       ratio,
				})
			}
		case amt > 0:
			deviations = append(deviations, domain.Deviation{
				Type:        domain.DeviationFirstTransaction,
				Severity:    domain.SeverityMedium,
				Description: fmt.Sprintf("first recorded outflow of %.2f from an account with no outflow history", amt),
			})
		}
	}

	if p90 := b.TypicalAmountRange.P90; p90 > 0 && amt > 1.5*p90 {
		deviations = append(deviations, domain.Deviation{
			Type:        domain.DeviationRange,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("amount %.2f exceeds 1.5x the typical upper bound of %.2f", amt, p90),
			Ratio:       amt / p90,
		})
	}

	return domain.DeviationResult{
		HasDeviation: len(deviations) > 0,
		Deviations:   deviations,
	}
}

// RecentActivity returns the transactions touching the account whose
// timestamp falls within the last hoursBack hours.
func RecentActivity(accountID string, txs []domain.Transaction, hoursBack int, now time.Time) []domain.Transaction {
	cutoff := now.Add(-time.Duration(hoursBack) * time.Hour)
	var out []domain.Transaction
	for _, tx := range txs {
		if tx.Touches(accountID) && tx.Timestamp.After(cutoff) {
			out = append(out, tx)
		}
	}
	return out
}
