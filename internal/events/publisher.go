// Package events publishes collaboration run results to Kafka.
//
// Every message value is a JSON Envelope. Edge messages are keyed by the
// canonical pair "A|B" so all updates for one pair land on one partition;
// the run summary is keyed by the run ID.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// Event types.
const (
	EventTypeEdge         = "collaboration.edge"
	EventTypeRunCompleted = "run.completed"
)

// DefaultSource identifies this service in envelopes.
const DefaultSource = "collab-graph-service"

// publishChunk bounds the number of messages handed to one WriteMessages call.
const publishChunk = 500

// Envelope wraps every published payload.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// EdgePayload is the payload of a collaboration.edge event.
type EdgePayload struct {
	domain.Edge
	Position int `json:"position"`
}

// RunCompletedPayload is the payload of a run.completed event.
type RunCompletedPayload struct {
	FromYear      int                  `json:"from_year"`
	FailurePolicy domain.FailurePolicy `json:"failure_policy"`
	CountPolicy   domain.CountPolicy   `json:"count_policy"`
	Institutions  int                  `json:"institutions"`
	Failed        int                  `json:"failed"`
	Works         int                  `json:"works"`
	Edges         int                  `json:"edges"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at"`
}

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka producer settings.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
}

// Publisher sends run results to a topic.
type Publisher struct {
	writer MessageWriter
	source string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewPublisher(writer, DefaultSource, logger), nil
}

// NewPublisher wraps an existing writer.
func NewPublisher(writer MessageWriter, source string, logger zerolog.Logger) *Publisher {
	if source == "" {
		source = DefaultSource
	}
	return &Publisher{
		writer: writer,
		source: source,
		logger: logger.With().Str("component", "publisher").Logger(),
	}
}

// PublishRun sends one message per edge in order, followed by the run summary.
func (p *Publisher) PublishRun(ctx context.Context, report *domain.RunReport) error {
	msgs, err := p.buildMessages(report, time.Now().UTC())
	if err != nil {
		return err
	}

	for start := 0; start < len(msgs); start += publishChunk {
		end := min(start+publishChunk, len(msgs))
		if err := p.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publishing messages %d-%d: %w", start, end-1, err)
		}
	}

	p.logger.Debug().
		Str("run_id", report.RunID.String()).
		Int("messages", len(msgs)).
		Msg("run published")
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) buildMessages(report *domain.RunReport, now time.Time) ([]kafka.Message, error) {
	runID := report.RunID.String()
	msgs := make([]kafka.Message, 0, len(report.Edges)+1)

	for i, e := range report.Edges {
		value, err := p.envelope(EventTypeEdge, runID, now, EdgePayload{Edge: e, Position: i})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Pair().String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(EventTypeEdge)},
			},
		})
	}

	summary := RunCompletedPayload{
		FromYear:      report.FromYear,
		FailurePolicy: report.FailurePolicy,
		CountPolicy:   report.CountPolicy,
		Institutions:  len(report.Institutions),
		Failed:        len(report.Failed()),
		Works:         report.TotalWorks(),
		Edges:         len(report.Edges),
		StartedAt:     report.StartedAt,
		CompletedAt:   report.CompletedAt,
	}
	value, err := p.envelope(EventTypeRunCompleted, runID, now, summary)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, kafka.Message{
		Key:   []byte(runID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeRunCompleted)},
		},
	})
	return msgs, nil
}

func (p *Publisher) envelope(eventType, runID string, now time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		RunID:      runID,
		Source:     p.source,
		OccurredAt: now,
		Payload:    raw,
	})
}
