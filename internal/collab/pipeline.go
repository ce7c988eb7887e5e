package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
)

// DefaultFromYear is the publication year lower bound when none is configured.
const DefaultFromYear = 2020

// PipelineConfig controls a graph build run.
type PipelineConfig struct {
	// FromYear is the inclusive lower bound of publication year.
	FromYear int

	// FailurePolicy decides whether one failed institution aborts the run.
	FailurePolicy domain.FailurePolicy

	// CountPolicy decides how a work seen from several home passes is counted.
	CountPolicy domain.CountPolicy
}

// DefaultPipelineConfig returns the configuration used when nothing is set.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FromYear:      DefaultFromYear,
		FailurePolicy: domain.FailurePolicyAbort,
		CountPolicy:   domain.CountPolicyPerPass,
	}
}

// Pipeline runs fetch, extract and aggregate for a whole roster.
type Pipeline struct {
	fetcher *Fetcher
	config  PipelineConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewPipeline creates a Pipeline. Unset policies fall back to the defaults.
func NewPipeline(fetcher *Fetcher, cfg PipelineConfig, logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.FromYear == 0 {
		cfg.FromYear = DefaultFromYear
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = domain.FailurePolicyAbort
	}
	if cfg.CountPolicy == "" {
		cfg.CountPolicy = domain.CountPolicyPerPass
	}
	return &Pipeline{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		metrics: metrics,
	}
}

// workPairKey identifies one pair observed on one work.
type workPairKey struct {
	workID string
	pair   domain.CollaborationPair
}

// Run processes the roster sequentially in order and returns the report with
// the finalized edges. Institutions without a catalog ID are skipped.
//
// Under FailurePolicyAbort the first failed fetch ends the run with an error
// and no report. Under FailurePolicyIsolate the failure is recorded on that
// institution and the run continues. Context cancellation always ends the run.
func (p *Pipeline) Run(ctx context.Context, roster []domain.Institution) (*domain.RunReport, error) {
	if !p.config.FailurePolicy.IsValid() {
		return nil, domain.NewValidationError("failure_policy", fmt.Sprintf("unknown policy %q", p.config.FailurePolicy))
	}
	if !p.config.CountPolicy.IsValid() {
		return nil, domain.NewValidationError("count_policy", fmt.Sprintf("unknown policy %q", p.config.CountPolicy))
	}

	start := time.Now()
	report := domain.NewRunReport(p.config.FromYear, p.config.FailurePolicy, p.config.CountPolicy)
	logger := observability.WithRunContext(p.logger, report.RunID.String())
	ctx = observability.WithRunID(ctx, report.RunID.String())

	logger.Info().
		Int("institutions", len(roster)).
		Int("from_year", p.config.FromYear).
		Str("failure_policy", string(p.config.FailurePolicy)).
		Str("count_policy", string(p.config.CountPolicy)).
		Msg("starting graph build")

	agg := NewAggregator()
	seen := make(map[workPairKey]struct{})

	for _, inst := range roster {
		if err := ctx.Err(); err != nil {
			p.recordRunFailed(start)
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}

		homeID := strings.TrimSpace(inst.ID)
		status := domain.InstitutionStatus{InstitutionID: homeID, Name: inst.Name}
		instLogger := observability.WithInstitutionContext(logger, homeID, inst.Name)

		if domain.NormalizeInstitutionID(homeID) == "" {
			instLogger.Warn().Msg("institution has no catalog id, skipping")
			status.Status = domain.FetchStatusSkipped
			p.recordInstitution(status)
			report.Institutions = append(report.Institutions, status)
			continue
		}

		instLogger.Info().Msg("processing institution")

		result, err := p.fetcher.Fetch(ctx, homeID, p.config.FromYear)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordFetchFailure()
			}
			if ctx.Err() != nil || p.config.FailurePolicy == domain.FailurePolicyAbort {
				instLogger.Error().Err(err).Msg("fetch failed, aborting run")
				p.recordRunFailed(start)
				if ctx.Err() != nil && !errors.Is(err, domain.ErrCancelled) {
					err = fmt.Errorf("%w: %w", domain.ErrCancelled, err)
				}
				return nil, fmt.Errorf("processing %s (%s): %w", inst.Name, homeID, err)
			}

			instLogger.Warn().Err(err).Msg("fetch failed, continuing")
			status.Status = domain.FetchStatusFailed
			status.Error = err.Error()
			p.recordInstitution(status)
			report.Institutions = append(report.Institutions, status)
			continue
		}

		emitted := 0
		for _, w := range result.Works {
			for _, pair := range ExtractWork(w, homeID) {
				if p.config.CountPolicy == domain.CountPolicyPerWork && w.ID != "" {
					key := workPairKey{workID: w.ID, pair: pair}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
				}
				agg.Accumulate(pair)
				emitted++
			}
		}

		status.Status = domain.FetchStatusOK
		status.PagesFetched = result.Pages
		status.WorksFetched = len(result.Works)
		status.PairsEmitted = emitted
		p.recordInstitution(status)
		if p.metrics != nil {
			p.metrics.RecordPairs(emitted)
		}
		report.Institutions = append(report.Institutions, status)

		instLogger.Info().
			Int("works", status.WorksFetched).
			Int("pairs", emitted).
			Msg("institution processed")
	}

	report.Edges = agg.Finalize()
	report.CompletedAt = time.Now().UTC()

	if p.metrics != nil {
		p.metrics.RecordRunCompleted(time.Since(start).Seconds(), len(report.Edges))
	}

	logger.Info().
		Int("edges", len(report.Edges)).
		Int("works", report.TotalWorks()).
		Int("failed", len(report.Failed())).
		Dur("duration", time.Since(start)).
		Msg("graph build completed")

	return report, nil
}

func (p *Pipeline) recordInstitution(status domain.InstitutionStatus) {
	if p.metrics != nil {
		p.metrics.RecordInstitution(string(status.Status))
	}
}

func (p *Pipeline) recordRunFailed(start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordRunFailed(time.Since(start).Seconds())
	}
}
