package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/repository"
)

// maxInstitutionParamLength bounds the institution query parameter.
const maxInstitutionParamLength = 256

// listCollaborations handles GET /api/v1/collaborations.
// It serves the edges of the most recent file output.
func (s *Server) listCollaborations(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseEdgeFilter(w, r)
	if !ok {
		return
	}

	edges, err := s.edges.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load collaborations")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newCollaborationsResponse(
		domain.FilterEdges(edges, filter.MinCount, filter.InstitutionID),
	))
}

// getLatestRun handles GET /api/v1/runs/latest.
func (s *Server) getLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	report, err := s.runs.LatestRun(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load latest run")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRunResponse(report))
}

// getRun handles GET /api/v1/runs/{runID}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}

	report, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to load run")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newRunResponse(report))
}

// listRunCollaborations handles GET /api/v1/runs/{runID}/collaborations.
func (s *Server) listRunCollaborations(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	runID, ok := parseUUID(w, chi.URLParam(r, "runID"), "run_id")
	if !ok {
		return
	}
	filter, ok := parseEdgeFilter(w, r)
	if !ok {
		return
	}

	edges, err := s.runs.ListEdges(r.Context(), runID, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to list run edges")
		writeDomainError(w, err)
		return
	}

	// An empty result is ambiguous between a missing run and a strict filter.
	if len(edges) == 0 {
		if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, newCollaborationsResponse(edges))
}

// parseEdgeFilter reads min_count and institution from the query string,
// writing a 400 response when either is malformed.
func parseEdgeFilter(w http.ResponseWriter, r *http.Request) (repository.EdgeFilter, bool) {
	var filter repository.EdgeFilter
	q := r.URL.Query()

	if raw := q.Get("min_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "min_count must be a non-negative integer")
			return filter, false
		}
		filter.MinCount = n
	}

	if raw := strings.TrimSpace(q.Get("institution")); raw != "" {
		if len(raw) > maxInstitutionParamLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("institution must be at most %d characters", maxInstitutionParamLength))
			return filter, false
		}
		filter.InstitutionID = domain.NormalizeInstitutionID(raw)
	}

	return filter, true
}

// writeDomainError maps domain errors to HTTP status codes. Internal error
// details are never written to the response.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing the input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
