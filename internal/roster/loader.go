// Package roster reads, resolves and writes the institution roster.
//
// A roster is a CSV file with a header row. The name column is always
// required; callers may require more. openalex_id, state, short_label and
// openalex_display_name are otherwise optional. Headers match
// case-insensitively.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// Column names used by both the input and the resolved output.
const (
	ColumnName        = "name"
	ColumnState       = "state"
	ColumnShortLabel  = "short_label"
	ColumnOpenAlexID  = "openalex_id"
	ColumnDisplayName = "openalex_display_name"
)

// Columns is the column order of the resolved roster CSV.
var Columns = []string{ColumnName, ColumnState, ColumnShortLabel, ColumnOpenAlexID, ColumnDisplayName}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile opens path and loads the roster from it. required names header
// columns that must be present in addition to name.
func LoadFile(path string, required ...string) ([]domain.Institution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	rows, err := Load(f, required...)
	if err != nil {
		return nil, fmt.Errorf("loading roster %s: %w", path, err)
	}
	return rows, nil
}

// Load reads a roster CSV. Rows keep file order and duplicates are kept.
// Catalog IDs are kept as written. The name column and every column in
// required must appear in the header.
func Load(r io.Reader, required ...string) ([]domain.Institution, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("header", "roster is empty")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, col := range append([]string{ColumnName}, required...) {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, domain.NewValidationError("header", fmt.Sprintf("missing required column %q", col))
		}
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []domain.Institution
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		inst := domain.Institution{
			Name:        field(record, ColumnName),
			State:       field(record, ColumnState),
			ShortLabel:  field(record, ColumnShortLabel),
			ID:          field(record, ColumnOpenAlexID),
			DisplayName: field(record, ColumnDisplayName),
		}
		if err := validate.Struct(inst); err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("row %d", line), describe(err))
		}
		rows = append(rows, inst)
	}

	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// describe turns validator errors into a short field list.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
