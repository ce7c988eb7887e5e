package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// File formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const outputFileMode os.FileMode = 0o644

// FileSink writes the edge list to a single file, replacing it atomically.
type FileSink struct {
	path   string
	format string
}

var _ EdgeSink = (*FileSink)(nil)

// NewFileSink creates a sink writing to path. An empty format means JSON.
func NewFileSink(path, format string) (*FileSink, error) {
	if path == "" {
		return nil, domain.NewValidationError("path", "output path is required")
	}
	format = strings.ToLower(format)
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return nil, domain.NewValidationError("format", fmt.Sprintf("unsupported format %q", format))
	}
	return &FileSink{path: path, format: format}, nil
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Path returns the output file path.
func (s *FileSink) Path() string { return s.path }

// Write encodes report.Edges and replaces the output file. A run with no
// edges writes an empty list.
func (s *FileSink) Write(_ context.Context, report *domain.RunReport) error {
	edges := report.Edges
	if edges == nil {
		edges = []domain.Edge{}
	}

	var buf bytes.Buffer
	if err := EncodeEdges(&buf, edges, s.format); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	// CreateTemp opens with 0600.
	if err := tmp.Chmod(outputFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode on %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Load reads the edges last written by the sink. A missing file is
// domain.ErrNotFound.
func (s *FileSink) Load() ([]domain.Edge, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNotFoundError("collaborations file", s.path)
		}
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()
	return DecodeEdges(f, s.format)
}

// EncodeEdges writes edges as indented JSON or YAML.
func EncodeEdges(w io.Writer, edges []domain.Edge, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(edges); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(edges); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}

// DecodeEdges reads edges written by EncodeEdges.
func DecodeEdges(r io.Reader, format string) ([]domain.Edge, error) {
	edges := []domain.Edge{}
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&edges); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&edges); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	}
	if edges == nil {
		edges = []domain.Edge{}
	}
	return edges, nil
}
