package roster

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/catalog"
	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
)

const (
	// DefaultResultLimit is the per-page value sent with every search.
	DefaultResultLimit = 5
	// DefaultDelay is the pause after every search.
	DefaultDelay = time.Second
)

// Resolution outcomes, used as metric labels.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
	OutcomeCached  = "cached"
)

// MatchCache remembers catalog matches by roster name.
type MatchCache interface {
	// Get returns the cached match and whether one was found.
	Get(ctx context.Context, name string) (catalog.InstitutionMatch, bool, error)
	// Set stores a match for name.
	Set(ctx context.Context, name string, match catalog.InstitutionMatch) error
}

// ResolverConfig controls name resolution.
type ResolverConfig struct {
	ResultLimit int
	Delay       time.Duration
}

// Resolver maps roster names to catalog institution IDs.
type Resolver struct {
	searcher catalog.InstitutionSearcher
	cache    MatchCache
	pause    catalog.Pauser
	config   ResolverConfig
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver. A nil pause uses catalog.Sleep.
func NewResolver(searcher catalog.InstitutionSearcher, cfg ResolverConfig, pause catalog.Pauser, logger zerolog.Logger, metrics *observability.Metrics) *Resolver {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultResultLimit
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if pause == nil {
		pause = catalog.Sleep
	}
	return &Resolver{
		searcher: searcher,
		pause:    pause,
		config:   cfg,
		logger:   logger.With().Str("component", "resolver").Logger(),
		metrics:  metrics,
	}
}

// WithCache attaches a match cache and returns the resolver.
func (r *Resolver) WithCache(c MatchCache) *Resolver {
	r.cache = c
	return r
}

// Resolve searches the catalog for every row by name and takes the first
// result. Rows come back in input order with ID and DisplayName set, or
// cleared when nothing matched. Search errors are logged and treated as no
// match. Cancellation stops the loop; rows not yet searched are returned
// unchanged apart from a cleared match.
func (r *Resolver) Resolve(ctx context.Context, rows []domain.Institution) []domain.Institution {
	out := make([]domain.Institution, len(rows))
	copy(out, rows)

	for i := range out {
		clearMatch(&out[i])
		if ctx.Err() != nil {
			continue
		}

		match, found, searched := r.lookup(ctx, out[i].Name)
		if found {
			out[i].ID = match.ID
			out[i].DisplayName = match.DisplayName
			out[i].CountryCode = match.CountryCode
			out[i].Type = match.Type
		}

		if searched {
			if err := r.pause(ctx, r.config.Delay); err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("pause interrupted")
			}
		}
	}

	if ctx.Err() != nil {
		r.logger.Warn().Err(ctx.Err()).Msg("resolution interrupted")
	}
	return out
}

// lookup returns the match for name, whether one was found, and whether the
// catalog was queried.
func (r *Resolver) lookup(ctx context.Context, name string) (catalog.InstitutionMatch, bool, bool) {
	logger := r.logger.With().Str("institution_name", name).Logger()

	if r.cache != nil {
		match, ok, err := r.cache.Get(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Msg("cache lookup failed")
		} else if ok {
			logger.Debug().Str("institution_id", match.ID).Msg("resolved from cache")
			r.record(OutcomeCached)
			return match, true, false
		}
	}

	logger.Info().Msg("searching catalog")
	matches, err := r.searcher.SearchInstitutions(ctx, name, r.config.ResultLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("search failed, treating as no match")
		r.record(OutcomeError)
		return catalog.InstitutionMatch{}, false, true
	}
	if len(matches) == 0 || matches[0].ID == "" {
		logger.Info().Msg("no match found")
		r.record(OutcomeNoMatch)
		return catalog.InstitutionMatch{}, false, true
	}

	top := matches[0]
	logger.Info().
		Str("institution_id", top.ID).
		Str("display_name", top.DisplayName).
		Msg("matched")
	r.record(OutcomeMatched)

	if r.cache != nil {
		if err := r.cache.Set(ctx, name, top); err != nil {
			logger.Warn().Err(err).Msg("cache store failed")
		}
	}
	return top, true, true
}

func (r *Resolver) record(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordResolution(outcome)
	}
}

func clearMatch(inst *domain.Institution) {
	inst.ID = ""
	inst.DisplayName = ""
	inst.CountryCode = ""
	inst.Type = ""
}
