package sink

import (
	"context"

	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/repository"
)

// PostgresSink stores the run through the collaboration repository.
type PostgresSink struct {
	repo repository.CollaborationRepository
}

// NewPostgresSink creates a PostgresSink.
func NewPostgresSink(repo repository.CollaborationRepository) *PostgresSink {
	return &PostgresSink{repo: repo}
}

// Name returns "postgres".
func (s *PostgresSink) Name() string { return "postgres" }

// Write saves the run, its statuses and its edges.
func (s *PostgresSink) Write(ctx context.Context, report *domain.RunReport) error {
	return s.repo.SaveRun(ctx, report)
}

// RunWriter is implemented by graphstore.Store.
type RunWriter interface {
	WriteRun(ctx context.Context, report *domain.RunReport) error
}

// GraphSink mirrors the run into a graph database.
type GraphSink struct {
	store RunWriter
}

// NewGraphSink creates a GraphSink.
func NewGraphSink(store RunWriter) *GraphSink {
	return &GraphSink{store: store}
}

// Name returns "neo4j".
func (s *GraphSink) Name() string { return "neo4j" }

// Write merges the run's nodes and relationships.
func (s *GraphSink) Write(ctx context.Context, report *domain.RunReport) error {
	return s.store.WriteRun(ctx, report)
}

// RunPublisher is implemented by events.Publisher.
type RunPublisher interface {
	PublishRun(ctx context.Context, report *domain.RunReport) error
}

// EventSink publishes the run to a message broker.
type EventSink struct {
	publisher RunPublisher
}

// NewEventSink creates an EventSink.
func NewEventSink(publisher RunPublisher) *EventSink {
	return &EventSink{publisher: publisher}
}

// Name returns "kafka".
func (s *EventSink) Name() string { return "kafka" }

// Write publishes one message per edge and a run summary.
func (s *EventSink) Write(ctx context.Context, report *domain.RunReport) error {
	return s.publisher.PublishRun(ctx, report)
}
