package domain

import (
	"time"

	"github.com/google/uuid"
)

// FetchStatus is the outcome of processing one roster institution.
// These values must match the database enum fetch_status.
type FetchStatus string

const (
	FetchStatusOK      FetchStatus = "ok"
	FetchStatusFailed  FetchStatus = "failed"
	FetchStatusSkipped FetchStatus = "skipped"
)

// FailurePolicy decides what a fetch failure for one institution does to the run.
type FailurePolicy string

const (
	// FailurePolicyAbort stops the whole run on the first fetch failure.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyIsolate records the failure on the institution and moves on.
	FailurePolicyIsolate FailurePolicy = "isolate"
)

// IsValid reports whether p is a known failure policy.
func (p FailurePolicy) IsValid() bool {
	return p == FailurePolicyAbort || p == FailurePolicyIsolate
}

// CountPolicy decides how repeated observations of the same pair are counted.
type CountPolicy string

const (
	// CountPolicyPerPass counts a pair once per qualifying work per home pass.
	// A work shared by two roster institutions contributes twice.
	CountPolicyPerPass CountPolicy = "per_pass"
	// CountPolicyPerWork counts a pair at most once per work across all passes.
	CountPolicyPerWork CountPolicy = "per_work"
)

// IsValid reports whether p is a known count policy.
func (p CountPolicy) IsValid() bool {
	return p == CountPolicyPerPass || p == CountPolicyPerWork
}

// InstitutionStatus records how one roster institution was processed.
type InstitutionStatus struct {
	InstitutionID string      `json:"institution_id"`
	Name          string      `json:"name"`
	Status        FetchStatus `json:"status"`
	PagesFetched  int         `json:"pages_fetched"`
	WorksFetched  int         `json:"works_fetched"`
	PairsEmitted  int         `json:"pairs_emitted"`
	Error         string      `json:"error,omitempty"`
}

// RunReport is the outcome of one pipeline run.
type RunReport struct {
	RunID         uuid.UUID           `json:"run_id"`
	StartedAt     time.Time           `json:"started_at"`
	CompletedAt   time.Time           `json:"completed_at"`
	FromYear      int                 `json:"from_year"`
	FailurePolicy FailurePolicy       `json:"failure_policy"`
	CountPolicy   CountPolicy         `json:"count_policy"`
	Institutions  []InstitutionStatus `json:"institutions"`
	Edges         []Edge              `json:"edges"`
}

// NewRunReport creates an empty report with a fresh run ID.
func NewRunReport(fromYear int, failure FailurePolicy, count CountPolicy) *RunReport {
	return &RunReport{
		RunID:         uuid.New(),
		StartedAt:     time.Now().UTC(),
		FromYear:      fromYear,
		FailurePolicy: failure,
		CountPolicy:   count,
	}
}

// Failed returns the institutions whose fetch failed.
func (r *RunReport) Failed() []InstitutionStatus {
	var out []InstitutionStatus
	for _, s := range r.Institutions {
		if s.Status == FetchStatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// TotalWorks returns the number of works fetched across all institutions.
func (r *RunReport) TotalWorks() int {
	total := 0
	for _, s := range r.Institutions {
		total += s.WorksFetched
	}
	return total
}
