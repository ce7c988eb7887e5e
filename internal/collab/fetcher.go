package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/catalog"
	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
)

const (
	// DefaultPageSize is the number of works requested per page.
	DefaultPageSize = 50

	// DefaultMaxPages caps the pages fetched per institution.
	DefaultMaxPages = 3

	// DefaultPageDelay is the pause between consecutive pages of one institution.
	DefaultPageDelay = time.Second
)

// FetcherConfig controls pagination.
type FetcherConfig struct {
	// PageSize is the per-page parameter sent to the catalog.
	PageSize int

	// MaxPages stops pagination after this many non-empty pages.
	// Zero or negative means no cap; only an empty page ends the walk.
	MaxPages int

	// PageDelay is the pause before every page after the first.
	PageDelay time.Duration
}

// DefaultFetcherConfig returns the configuration used when nothing is set.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		PageSize:  DefaultPageSize,
		MaxPages:  DefaultMaxPages,
		PageDelay: DefaultPageDelay,
	}
}

// FetchResult is every work retrieved for one institution, in server order.
type FetchResult struct {
	Works []domain.Work

	// Pages is the number of non-empty pages retrieved.
	Pages int
}

// Fetcher retrieves the works of one institution page by page.
type Fetcher struct {
	pager   catalog.WorkPager
	config  FetcherConfig
	pause   catalog.Pauser
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher. A nil pause uses catalog.Sleep.
func NewFetcher(pager catalog.WorkPager, cfg FetcherConfig, pause catalog.Pauser, logger zerolog.Logger, metrics *observability.Metrics) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if pause == nil {
		pause = catalog.Sleep
	}
	return &Fetcher{
		pager:   pager,
		config:  cfg,
		pause:   pause,
		logger:  logger.With().Str("component", "fetcher").Logger(),
		metrics: metrics,
	}
}

// Fetch returns the works affiliated with institutionID published on or after
// January 1st of fromYear. It requests page 1, 2, 3 and so on, and stops at the
// first empty page or once MaxPages pages have been retrieved. Any failed page
// aborts the whole fetch with a *domain.FetchError; partial results are dropped.
func (f *Fetcher) Fetch(ctx context.Context, institutionID string, fromYear int) (*FetchResult, error) {
	if institutionID == "" {
		return nil, domain.NewValidationError("institution_id", "must not be empty")
	}

	fromDate := fmt.Sprintf("%04d-01-01", fromYear)
	result := &FetchResult{}

	logger := f.logger
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		logger = observability.WithRunContext(logger, runID)
	}

	for page := 1; ; page++ {
		if page > 1 {
			if err := f.pause(ctx, f.config.PageDelay); err != nil {
				return nil, &domain.FetchError{InstitutionID: institutionID, Page: page, Err: err}
			}
		}

		logger.Debug().
			Str("institution_id", institutionID).
			Int("page", page).
			Msg("fetching page")

		resp, err := f.pager.FetchWorksPage(ctx, catalog.WorksQuery{
			InstitutionID: institutionID,
			FromDate:      fromDate,
			Page:          page,
			PerPage:       f.config.PageSize,
		})
		if err != nil {
			return nil, &domain.FetchError{InstitutionID: institutionID, Page: page, Err: err}
		}

		if len(resp.Works) == 0 {
			break
		}

		result.Works = append(result.Works, resp.Works...)
		result.Pages++
		if f.metrics != nil {
			f.metrics.RecordPage(len(resp.Works))
		}

		if f.config.MaxPages > 0 && page >= f.config.MaxPages {
			break
		}
	}

	logger.Info().
		Str("institution_id", institutionID).
		Int("pages", result.Pages).
		Int("works", len(result.Works)).
		Msg("fetched works")

	return result, nil
}
