// Package collab builds the institution co-authorship graph.
//
// A run walks the roster in order. For each institution the Fetcher pages
// through its works, Extract turns each work into canonical pairs anchored at
// the home institution, and the Aggregator counts every pair. Finalize turns
// the counts into edges in first-seen order.
//
// Everything in this package runs on the caller's goroutine. The only
// scheduling concern is the pause between consecutive pages of one institution.
package collab
