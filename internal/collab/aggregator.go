package collab

import (
	"github.com/helixir/collab-graph-service/internal/domain"
)

// Aggregator counts collaboration pairs across a run. It remembers the order
// in which each distinct pair was first seen so Finalize is deterministic.
// It is not safe for concurrent use.
type Aggregator struct {
	counts map[domain.CollaborationPair]int
	order  []domain.CollaborationPair
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts: make(map[domain.CollaborationPair]int),
	}
}

// Accumulate adds one observation per pair. Pairs are canonicalized first, so
// (a, b) and (b, a) count toward the same edge.
func (a *Aggregator) Accumulate(pairs ...domain.CollaborationPair) {
	for _, p := range pairs {
		p = p.Canonical()
		if _, ok := a.counts[p]; !ok {
			a.order = append(a.order, p)
		}
		a.counts[p]++
	}
}

// Count returns the number of observations of pair so far.
func (a *Aggregator) Count(pair domain.CollaborationPair) int {
	return a.counts[pair.Canonical()]
}

// Len returns the number of distinct pairs.
func (a *Aggregator) Len() int {
	return len(a.order)
}

// Finalize returns one edge per distinct pair in first-seen order.
// The Aggregator is left untouched and may keep accumulating.
func (a *Aggregator) Finalize() []domain.Edge {
	edges := make([]domain.Edge, 0, len(a.order))
	for _, p := range a.order {
		edges = append(edges, domain.Edge{
			InstitutionA: p.A,
			InstitutionB: p.B,
			CollabCount:  a.counts[p],
		})
	}
	return edges
}
