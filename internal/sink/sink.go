// Package sink persists the result of a graph build.
//
// The file sink is always present and produces the collaborations file.
// Database, graph and event sinks are optional and are chained with Multi.
package sink

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
)

// EdgeSink writes a finished run somewhere.
type EdgeSink interface {
	Write(ctx context.Context, report *domain.RunReport) error
	Name() string
}

// Multi writes to each sink in order and stops at the first error.
type Multi struct {
	sinks   []EdgeSink
	logger  zerolog.Logger
	metrics *observability.Metrics
}

var _ EdgeSink = (*Multi)(nil)

// NewMulti chains sinks. Nil entries are ignored.
func NewMulti(logger zerolog.Logger, metrics *observability.Metrics, sinks ...EdgeSink) *Multi {
	kept := make([]EdgeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{
		sinks:   kept,
		logger:  logger.With().Str("component", "sink").Logger(),
		metrics: metrics,
	}
}

// Name returns "multi".
func (m *Multi) Name() string { return "multi" }

// Names lists the chained sinks in write order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Write runs every sink in order.
func (m *Multi) Write(ctx context.Context, report *domain.RunReport) error {
	for _, s := range m.sinks {
		logger := observability.WithSinkContext(m.logger, s.Name())

		if err := s.Write(ctx, report); err != nil {
			if m.metrics != nil {
				m.metrics.RecordSinkFailure(s.Name())
			}
			logger.Error().Err(err).Msg("sink write failed")
			return fmt.Errorf("sink %s: %w", s.Name(), err)
		}

		if m.metrics != nil {
			m.metrics.RecordEdgesWritten(s.Name(), len(report.Edges))
		}
		logger.Info().Int("edges", len(report.Edges)).Msg("sink written")
	}
	return nil
}
