package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/collab-graph-service/internal/domain"
)

type recordingWriter struct {
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) all() []kafka.Message {
	var out []kafka.Message
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func sampleReport() *domain.RunReport {
	report := domain.NewRunReport(2020, domain.FailurePolicyIsolate, domain.CountPolicyPerPass)
	report.Institutions = []domain.InstitutionStatus{
		{InstitutionID: "I1", Status: domain.FetchStatusOK, WorksFetched: 10},
		{InstitutionID: "I2", Status: domain.FetchStatusFailed},
	}
	report.Edges = []domain.Edge{
		{InstitutionA: "I1", InstitutionB: "I9", CollabCount: 3},
		{InstitutionA: "I1", InstitutionB: "I2", CollabCount: 1},
	}
	return report
}

func TestPublisher_PublishRun(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, "", zerolog.Nop())
	report := sampleReport()

	require.NoError(t, p.PublishRun(context.Background(), report))

	msgs := w.all()
	require.Len(t, msgs, 3)

	assert.Equal(t, "I1|I9", string(msgs[0].Key))
	assert.Equal(t, "I1|I2", string(msgs[1].Key))
	assert.Equal(t, report.RunID.String(), string(msgs[2].Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, EventTypeEdge, env.EventType)
	assert.Equal(t, DefaultSource, env.Source)
	assert.Equal(t, report.RunID.String(), env.RunID)
	assert.NotEmpty(t, env.EventID)

	var edge EdgePayload
	require.NoError(t, json.Unmarshal(env.Payload, &edge))
	assert.Equal(t, "I1", edge.InstitutionA)
	assert.Equal(t, "I9", edge.InstitutionB)
	assert.Equal(t, 3, edge.CollabCount)
	assert.Equal(t, 0, edge.Position)

	require.NoError(t, json.Unmarshal(msgs[2].Value, &env))
	assert.Equal(t, EventTypeRunCompleted, env.EventType)
	var summary RunCompletedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &summary))
	assert.Equal(t, 2, summary.Edges)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 10, summary.Works)
	assert.Equal(t, domain.FailurePolicyIsolate, summary.FailurePolicy)

	assert.Equal(t, "event_type", msgs[2].Headers[0].Key)
	assert.Equal(t, EventTypeRunCompleted, string(msgs[2].Headers[0].Value))
}

func TestPublisher_Chunks(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, "test", zerolog.Nop())

	report := domain.NewRunReport(2020, domain.FailurePolicyAbort, domain.CountPolicyPerPass)
	for i := 0; i < publishChunk+10; i++ {
		report.Edges = append(report.Edges, domain.Edge{
			InstitutionA: "I0",
			InstitutionB: fmt.Sprintf("I%04d", i+1),
			CollabCount:  1,
		})
	}

	require.NoError(t, p.PublishRun(context.Background(), report))
	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], publishChunk)
	assert.Len(t, w.batches[1], 11)
}

func TestPublisher_EmptyRunSendsSummary(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, "test", zerolog.Nop())

	require.NoError(t, p.PublishRun(context.Background(), domain.NewRunReport(2020, domain.FailurePolicyAbort, domain.CountPolicyPerPass)))
	require.Len(t, w.all(), 1)
}

func TestPublisher_WriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unavailable")}
	p := NewPublisher(w, "test", zerolog.Nop())

	err := p.PublishRun(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(Config{Topic: "t"}, zerolog.Nop())
	assert.ErrorContains(t, err, "brokers")

	_, err = NewKafkaPublisher(Config{Brokers: []string{"localhost:9092"}}, zerolog.Nop())
	assert.ErrorContains(t, err, "topic")

	p, err := NewKafkaPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "collabgraph.edges"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
