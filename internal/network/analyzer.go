// Package network analyzes the directed multigraph implied by the
// transaction history: nodes are accounts, edges are transactions.
package network

import (
	"fmt"
	"sort"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
)

// Analyzer runs the fund-flow graph detectors. It holds no state between
// calls; the flagged-evidence snapshot is passed in by the caller so the
// analysis stays a pure function of its inputs.
type Analyzer struct {
	cfg config.DetectionConfig
}

// NewAnalyzer creates an analyzer with the given tunables.
func NewAnalyzer(cfg config.DetectionConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze runs all graph detectors for the account. Two or more
// independent signals mark the account as probable money laundering.
func (a *Analyzer) Analyze(accountID string, txs []domain.Transaction, evidence []domain.AccountEvidence) domain.NetworkAnalysis {
	var signals []domain.NetworkSignal
	if sig := a.detectCircularFlow(accountID, txs); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := a.detectHub(accountID, txs); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := a.detectFlaggedLinks(accountID, txs, evidence); sig != nil {
		signals = append(signals, *sig)
	}
	return domain.NetworkAnalysis{
		AccountID:    accountID,
		Signals:      signals,
		IsProbableML: len(signals) >= 2,
	}
}

// circularWalker performs the depth-bounded DFS. The path is a single
// reusable vector with push/pop, and each edge is traversable once per
// path via the visited set keyed by transaction id. Keying by edge, not
// node, permits legitimate revisits of an account while still bounding
// the walk.
type circularWalker struct {
	adj      map[string][]domain.Transaction
	visited  map[string]bool
	path     []domain.Transaction
	longest  []domain.Transaction
	origin   string
	maxDepth int
}

func (w *circularWalker) walk(node string) {
	if len(w.path) >= w.maxDepth {
		return
	}
	for _, edge := range w.adj[node] {
		if w.visited[edge.ID] {
			continue
		}
		w.visited[edge.ID] = true
		w.path = append(w.path, edge)

		if edge.Receiver == w.origin {
			if len(w.path) >= 3 && len(w.path) > len(w.longest) {
				w.longest = append([]domain.Transaction(nil), w.path...)
			}
		} else {
			w.walk(edge.Receiver)
		}

		w.path = w.path[:len(w.path)-1]
		delete(w.visited, edge.ID)
	}
}

func (a *Analyzer) detectCircularFlow(accountID string, txs []domain.Transaction) *domain.NetworkSignal {
	adj := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		adj[tx.Sender] = append(adj[tx.Sender], tx)
	}
	// Deterministic traversal order regardless of store ordering.
	for sender := range adj {
		edges := adj[sender]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Timestamp.Equal(edges[j].Timestamp) {
				return edges[i].ID < edges[j].ID
			}
			return edges[i].Timestamp.Before(edges[j].Timestamp)
		})
	}

	w := &circularWalker{
		adj:      adj,
		visited:  make(map[string]bool),
		origin:   accountID,
		maxDepth: a.cfg.MaxPathDepth,
	}
	w.walk(accountID)
	if w.longest == nil {
		return nil
	}

	hops := make([]string, 0, len(w.longest)+1)
	ids := make([]string, 0, len(w.longest))
	hops = append(hops, accountID)
	for _, edge := range w.longest {
		hops = append(hops, edge.Receiver)
		ids = append(ids, edge.ID)
	}

	return &domain.NetworkSignal{
		Type:     domain.SignalCircularFlow,
		Severity: domain.SeverityCritical,
		Description: fmt.Sprintf("funds return to %s through a %d-hop cycle",
			accountID, len(w.longest)),
		Evidence: map[string]any{
			"path":            hops,
			"path_length":     len(w.longest),
			"transaction_ids": ids,
		},
	}
}

func (a *Analyzer) detectHub(accountID string, txs []domain.Transaction) *domain.NetworkSignal {
	var inflows, outflows []domain.Transaction
	senders := make(map[string]struct{})
	receivers := make(map[string]struct{})
	for _, tx := range txs {
		if tx.Receiver == accountID {
			inflows = append(inflows, tx)
			senders[tx.Sender] = struct{}{}
		}
		if tx.Sender == accountID {
			outflows = append(outflows, tx)
			receivers[tx.Receiver] = struct{}{}
		}
	}
	if len(senders) < a.cfg.HubMinCounterparties || len(receivers) < a.cfg.HubMinCounterparties {
		return nil
	}

	sort.Slice(outflows, func(i, j int) bool { return outflows[i].Timestamp.Before(outflows[j].Timestamp) })

	// An inflow counts as redistributed when any later outflow leaves
	// within the window. First match wins; outflows are not consumed, so
	// one outflow may be credited to several inflows (documented).
	redistributions := 0
	for _, in := range inflows {
		for _, out := range outflows {
			gap := out.Timestamp.Sub(in.Timestamp)
			if gap > 0 && gap < a.cfg.RapidRedistributionWindow {
				redistributions++
				break
			}
		}
	}
	if redistributions < a.cfg.HubMinRedistributions {
		return nil
	}

	return &domain.NetworkSignal{
		Type:     domain.SignalHubAccount,
		Severity: domain.SeverityCritical,
		Description: fmt.Sprintf("%s passes funds between %d senders and %d receivers with %d rapid redistributions",
			accountID, len(senders), len(receivers), redistributions),
		Evidence: map[string]any{
			"unique_senders":        len(senders),
			"unique_receivers":      len(receivers),
			"rapid_redistributions": redistributions,
			"window":                a.cfg.RapidRedistributionWindow.String(),
		},
	}
}

func (a *Analyzer) detectFlaggedLinks(accountID string, txs []domain.Transaction, evidence []domain.AccountEvidence) *domain.NetworkSignal {
	flagged := make(map[string]domain.RiskLevel)
	for _, ev := range evidence {
		if ev.AccountID == accountID {
			continue
		}
		if ev.RiskLevel == domain.RiskHighRisk || ev.RiskLevel == domain.RiskProbableML {
			flagged[ev.AccountID] = ev.RiskLevel
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	var edges []domain.FlowEdge
	counterparties := make(map[string]struct{})
	for _, tx := range txs {
		var other string
		switch {
		case tx.Sender == accountID:
			other = tx.Receiver
		case tx.Receiver == accountID:
			other = tx.Sender
		default:
			continue
		}
		if _, ok := flagged[other]; !ok {
			continue
		}
		counterparties[other] = struct{}{}
		edges = append(edges, domain.FlowEdge{
			TransactionID: tx.ID,
			From:          tx.Sender,
			To:            tx.Receiver,
			Amount:        tx.AmountFloat(),
		})
	}
	if len(edges) == 0 {
		return nil
	}

	names := make([]string, 0, len(counterparties))
	for name := range counterparties {
		names = append(names, name)
	}
	sort.Strings(names)

	return &domain.NetworkSignal{
		Type:     domain.SignalFlaggedLinks,
		Severity: domain.SeverityHigh,
		Description: fmt.Sprintf("%s has %d transactions with %d already-flagged accounts",
			accountID, len(edges), len(names)),
		Evidence: map[string]any{
			"flagged_counterparties": names,
			"edges":                  edges,
		},
	}
}
