// Package pattern implements the time-windowed behavioral pattern
// matchers: smurfing, layering, structuring, and income mismatch.
package pattern

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
)

// Detector evaluates an account's transaction history against the known
// laundering patterns. Detectors hold no state between calls.
type Detector struct {
	cfg config.DetectionConfig
	loc *time.Location
}

// NewDetector creates a detector with the given tunables. The configured
// time zone determines civil-date boundaries for structuring.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{cfg: cfg, loc: cfg.Location()}
}

// DetectAll runs every matcher and returns the confirmed detections in a
// fixed order, so repeated evaluation of the same history is identical.
func (d *Detector) DetectAll(accountID string, txs []domain.Transaction, b domain.Baseline, now time.Time) []domain.PatternDetection {
	var out []domain.PatternDetection
	if det := d.DetectSmurfing(accountID, txs, now); det != nil {
		out = append(out, *det)
	}
	if det := d.DetectLayering(accountID, txs); det != nil {
		out = append(out, *det)
	}
	if det := d.DetectStructuring(accountID, txs, b); det != nil {
		out = append(out, *det)
	}
	if det := d.DetectIncomeMismatch(accountID, txs, b, now); det != nil {
		out = append(out, *det)
	}
	return out
}

// DetectSmurfing flags many-to-one consolidation: a minimum number of
// distinct senders funding the account within the detection window. The
// clustered flag marks inflows concentrated around the mean amount, the
// signature of a deliberately split sum.
func (d *Detector) DetectSmurfing(accountID string, txs []domain.Transaction, now time.Time) *domain.PatternDetection {
	cutoff := now.Add(-d.cfg.SmurfingWindow)

	var inflows []domain.Transaction
	senders := make(map[string]struct{})
	var total float64
	for _, tx := range txs {
		if tx.Receiver != accountID || !tx.Timestamp.After(cutoff) {
			continue
		}
		inflows = append(inflows, tx)
		senders[tx.Sender] = struct{}{}
		total += tx.AmountFloat()
	}
	if len(senders) < d.cfg.SmurfingMinSenders {
		return nil
	}

	mean := total / float64(len(inflows))
	clusteredCount := 0
	ids := make([]string, 0, len(inflows))
	for _, tx := range inflows {
		ids = append(ids, tx.ID)
		if math.Abs(tx.AmountFloat()-mean) <= 0.2*mean {
			clusteredCount++
		}
	}
	clustered := float64(clusteredCount)/float64(len(inflows)) >= 0.6

	return &domain.PatternDetection{
		Type:     domain.PatternSmurfing,
		Severity: domain.SeverityHigh,
		Description: fmt.Sprintf("%d distinct senders transferred a total of %.2f within %s",
			len(senders), total, d.cfg.SmurfingWindow),
		TransactionIDs: ids,
		Evidence: map[string]any{
			"unique_senders": len(senders),
			"inflow_count":   len(inflows),
			"total_amount":   total,
			"mean_amount":    mean,
			"clustered":      clustered,
		},
	}
}

// DetectLayering flags rapid in-out cycles: an inflow followed within the
// layering window by an outflow of near-equal amount. Matching is greedy
// in inflow time order and an outflow may satisfy more than one inflow;
// the resulting overcount is documented behavior.
func (d *Detector) DetectLayering(accountID string, txs []domain.Transaction) *domain.PatternDetection {
	var inflows, outflows []domain.Transaction
	for _, tx := range txs {
		if tx.Receiver == accountID {
			inflows = append(inflows, tx)
		}
		if tx.Sender == accountID {
			outflows = append(outflows, tx)
		}
	}
	sort.Slice(inflows, func(i, j int) bool { return inflows[i].Timestamp.Before(inflows[j].Timestamp) })
	sort.Slice(outflows, func(i, j int) bool { return outflows[i].Timestamp.Before(outflows[j].Timestamp) })

	var ids []string
	cycles := 0
	for _, in := range inflows {
		inAmt := in.AmountFloat()
		for _, out := range outflows {
			if !out.Timestamp.After(in.Timestamp) {
				continue
			}
			if out.Timestamp.Sub(in.Timestamp) >= d.cfg.LayeringWindow {
				continue
			}
			if math.Abs(out.AmountFloat()-inAmt)/inAmt >= d.cfg.LayeringAmountTolerance {
				continue
			}
			cycles++
			ids = append(ids, in.ID, out.ID)
			break
		}
	}
	if cycles < d.cfg.LayeringMinCycles {
		return nil
	}

	return &domain.PatternDetection{
		Type:     domain.PatternLayering,
		Severity: domain.SeverityHigh,
		Description: fmt.Sprintf("%d rapid in-out cycles of near-equal amounts within %s of receipt",
			cycles, d.cfg.LayeringWindow),
		TransactionIDs: ids,
		Evidence: map[string]any{
			"matched_cycles": cycles,
		},
	}
}

// DetectStructuring flags outflows held just below the reporting threshold.
// The effective threshold adapts to the account's own typical range so
// habitual large movers are not measured against the statutory floor alone.
func (d *Detector) DetectStructuring(accountID string, txs []domain.Transaction, b domain.Baseline) *domain.PatternDetection {
	threshold := math.Max(1.1*b.TypicalAmountRange.P90, d.cfg.StructuringThreshold)
	low, high := 0.85*threshold, 0.99*threshold

	var matched []domain.Transaction
	days := make(map[string]struct{})
	var total float64
	for _, tx := range txs {
		if tx.Sender != accountID {
			continue
		}
		amt := tx.AmountFloat()
		if amt < low || amt > high {
			continue
		}
		matched = append(matched, tx)
		days[tx.Timestamp.In(d.loc).Format("2006-01-02")] = struct{}{}
		total += amt
	}
	if len(matched) < d.cfg.StructuringMinCount || len(days) < d.cfg.StructuringMinDays {
		return nil
	}

	ids := make([]string, 0, len(matched))
	for _, tx := range matched {
		ids = append(ids, tx.ID)
	}

	return &domain.PatternDetection{
		Type:     domain.PatternStructuring,
		Severity: domain.SeverityHigh,
		Description: fmt.Sprintf("%d outflows just below the %.2f reporting threshold across %d days",
			len(matched), threshold, len(days)),
		TransactionIDs: ids,
		Evidence: map[string]any{
			"effective_threshold": threshold,
			"outflow_count":       len(matched),
			"distinct_days":       len(days),
			"average_amount":      total / float64(len(matched)),
		},
	}
}

// DetectIncomeMismatch flags accounts whose recent daily inflow outgrows
// their established baseline. Accounts younger than a week have no
// meaningful baseline and are skipped, as are accounts with zero baseline
// inflow (the ratio is undefined there).
func (d *Detector) DetectIncomeMismatch(accountID string, txs []domain.Transaction, b domain.Baseline, now time.Time) *domain.PatternDetection {
	if b.AccountAgeDays < 7 || b.AvgDailyInflow == 0 {
		return nil
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	var recent float64
	var ids []string
	for _, tx := range txs {
		if tx.Receiver == accountID && tx.Timestamp.After(cutoff) {
			recent += tx.AmountFloat()
			ids = append(ids, tx.ID)
		}
	}
	recentDaily := recent / 7
	ratio := recentDaily / b.AvgDailyInflow
	if ratio <= 3 {
		return nil
	}

	severity := domain.SeverityMedium
	if ratio > 5 {
		severity = domain.SeverityHigh
	}

	return &domain.PatternDetection{
		Type:     domain.PatternIncomeMismatch,
		Severity: severity,
		Description: fmt.Sprintf("recent daily inflow of %.2f is %.1fx the baseline of %.2f",
			recentDaily, ratio, b.AvgDailyInflow),
		TransactionIDs: ids,
		Evidence: map[string]any{
			"recent_daily_avg":   recentDaily,
			"baseline_daily_avg": b.AvgDailyInflow,
			"ratio":              ratio,
		},
	}
}
