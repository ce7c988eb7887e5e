package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
	"github.com/helixir/collab-graph-service/internal/repository"
)

func sampleReport() *domain.RunReport {
	report := domain.NewRunReport(2020, domain.FailurePolicyAbort, domain.CountPolicyPerPass)
	report.Edges = []domain.Edge{
		{InstitutionA: "I1", InstitutionB: "I9", CollabCount: 3},
		{InstitutionA: "I1", InstitutionB: "I2", CollabCount: 1},
	}
	return report
}

type recordingSink struct {
	name  string
	err   error
	order *[]string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, _ *domain.RunReport) error {
	*s.order = append(*s.order, s.name)
	return s.err
}

func TestFileSink_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "collaborations.json")
	s, err := NewFileSink(path, "")
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sampleReport()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	expected := `[
  {
    "institution_a": "I1",
    "institution_b": "I9",
    "collab_count": 3
  },
  {
    "institution_a": "I1",
    "institution_b": "I2",
    "collab_count": 1
  }
]
`
	assert.Equal(t, expected, string(raw))

	edges, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleReport().Edges, edges)
}

func TestFileSink_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collaborations.yaml")
	s, err := NewFileSink(path, "YAML")
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sampleReport()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "- institution_a: I1\n  institution_b: I9\n  collab_count: 3\n"))

	edges, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleReport().Edges, edges)
}

func TestFileSink_EmptyWritesEmptyList(t *testing.T) {
	dir := t.TempDir()

	jsonSink, err := NewFileSink(filepath.Join(dir, "empty.json"), FormatJSON)
	require.NoError(t, err)
	require.NoError(t, jsonSink.Write(context.Background(), domain.NewRunReport(2020, "", "")))
	raw, err := os.ReadFile(jsonSink.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	yamlSink, err := NewFileSink(filepath.Join(dir, "empty.yaml"), FormatYAML)
	require.NoError(t, err)
	require.NoError(t, yamlSink.Write(context.Background(), domain.NewRunReport(2020, "", "")))
	raw, err = os.ReadFile(yamlSink.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))

	edges, err := jsonSink.Load()
	require.NoError(t, err)
	assert.NotNil(t, edges)
	assert.Empty(t, edges)
}

func TestFileSink_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collaborations.json")
	s, err := NewFileSink(path, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sampleReport()))
	require.NoError(t, s.Write(context.Background(), domain.NewRunReport(2020, "", "")))

	edges, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, edges)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSink_WorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "collaborations.json")
	s, err := NewFileSink(path, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), sampleReport()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileSink_Validation(t *testing.T) {
	_, err := NewFileSink("", FormatJSON)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = NewFileSink("out.xml", "xml")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestFileSink_LoadMissing(t *testing.T) {
	s, err := NewFileSink(filepath.Join(t.TempDir(), "missing.json"), FormatJSON)
	require.NoError(t, err)

	_, err = s.Load()
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMulti_Order(t *testing.T) {
	var order []string
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, "test_sink")

	m := NewMulti(zerolog.Nop(), metrics,
		&recordingSink{name: "file", order: &order},
		nil,
		&recordingSink{name: "postgres", order: &order},
	)
	assert.Equal(t, []string{"file", "postgres"}, m.Names())

	require.NoError(t, m.Write(context.Background(), sampleReport()))
	assert.Equal(t, []string{"file", "postgres"}, order)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EdgesWritten.WithLabelValues("postgres")))
}

func TestMulti_StopsAtFirstError(t *testing.T) {
	var order []string
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, "test_sink_err")

	m := NewMulti(zerolog.Nop(), metrics,
		&recordingSink{name: "file", order: &order},
		&recordingSink{name: "neo4j", order: &order, err: errors.New("unavailable")},
		&recordingSink{name: "kafka", order: &order},
	)

	err := m.Write(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink neo4j")
	assert.Equal(t, []string{"file", "neo4j"}, order)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SinkFailures.WithLabelValues("neo4j")))
}

type fakeRunWriter struct{ reports []*domain.RunReport }

func (f *fakeRunWriter) WriteRun(_ context.Context, r *domain.RunReport) error {
	f.reports = append(f.reports, r)
	return nil
}

type fakePublisher struct{ reports []*domain.RunReport }

func (f *fakePublisher) PublishRun(_ context.Context, r *domain.RunReport) error {
	f.reports = append(f.reports, r)
	return nil
}

func TestBackendSinks(t *testing.T) {
	report := sampleReport()

	graph := &fakeRunWriter{}
	gs := NewGraphSink(graph)
	require.NoError(t, gs.Write(context.Background(), report))
	assert.Equal(t, "neo4j", gs.Name())
	assert.Same(t, report, graph.reports[0])

	pub := &fakePublisher{}
	es := NewEventSink(pub)
	require.NoError(t, es.Write(context.Background(), report))
	assert.Equal(t, "kafka", es.Name())
	assert.Len(t, pub.reports, 1)
}

func TestPostgresSink(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO collaboration_runs`).
		WithArgs(report.RunID, pgxmock.AnyArg(), pgxmock.AnyArg(), 2020, "abort", "per_pass", 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO collaboration_edges`).
		WithArgs(
			report.RunID, 0, "I1", "I9", 3,
			report.RunID, 1, "I1", "I2", 1,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	s := NewPostgresSink(repository.NewPgCollaborationRepository(mock))
	assert.Equal(t, "postgres", s.Name())
	require.NoError(t, s.Write(context.Background(), report))
	assert.NoError(t, mock.ExpectationsWereMet())
}
