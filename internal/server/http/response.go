package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/helixir/collab-graph-service/internal/domain"
)

type collaborationsResponse struct {
	Edges []domain.Edge `json:"edges"`
	Count int           `json:"count"`
}

type institutionStatusResponse struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name,omitempty"`
	Status        string `json:"status"`
	WorksFetched  int    `json:"works_fetched"`
	PagesFetched  int    `json:"pages_fetched"`
	PairsEmitted  int    `json:"pairs_emitted"`
	Error         string `json:"error,omitempty"`
}

type runResponse struct {
	RunID         string                      `json:"run_id"`
	StartedAt     time.Time                   `json:"started_at"`
	CompletedAt   time.Time                   `json:"completed_at"`
	Duration      string                      `json:"duration,omitempty"`
	FromYear      int                         `json:"from_year"`
	FailurePolicy string                      `json:"failure_policy"`
	CountPolicy   string                      `json:"count_policy"`
	EdgeCount     int                         `json:"edge_count"`
	WorksFetched  int                         `json:"works_fetched"`
	FailedCount   int                         `json:"failed_count"`
	Institutions  []institutionStatusResponse `json:"institutions"`
}

func newCollaborationsResponse(edges []domain.Edge) collaborationsResponse {
	if edges == nil {
		edges = []domain.Edge{}
	}
	return collaborationsResponse{Edges: edges, Count: len(edges)}
}

func newRunResponse(r *domain.RunReport) runResponse {
	statuses := make([]institutionStatusResponse, len(r.Institutions))
	for i, st := range r.Institutions {
		statuses[i] = institutionStatusResponse{
			InstitutionID: st.InstitutionID,
			Name:          st.Name,
			Status:        string(st.Status),
			WorksFetched:  st.WorksFetched,
			PagesFetched:  st.PagesFetched,
			PairsEmitted:  st.PairsEmitted,
			Error:         st.Error,
		}
	}
	resp := runResponse{
		RunID:         r.RunID.String(),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		FromYear:      r.FromYear,
		FailurePolicy: string(r.FailurePolicy),
		CountPolicy:   string(r.CountPolicy),
		EdgeCount:     len(r.Edges),
		WorksFetched:  r.TotalWorks(),
		FailedCount:   len(r.Failed()),
		Institutions:  statuses,
	}
	if d := r.CompletedAt.Sub(r.StartedAt); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
