package roster

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// resolvedRow fixes the JSON key order of a resolved roster entry.
type resolvedRow struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	ShortLabel  string `json:"short_label"`
	OpenAlexID  string `json:"openalex_id"`
	DisplayName string `json:"openalex_display_name"`
}

// WriteJSON writes rows as an indented JSON array with the resolved roster columns.
func WriteJSON(w io.Writer, rows []domain.Institution) error {
	out := make([]resolvedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, resolvedRow{
			Name:        r.Name,
			State:       r.State,
			ShortLabel:  r.ShortLabel,
			OpenAlexID:  r.ID,
			DisplayName: r.DisplayName,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding roster json: %w", err)
	}
	return nil
}

// WriteCSV writes rows with a header in Columns order.
func WriteCSV(w io.Writer, rows []domain.Institution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing roster header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Name, r.State, r.ShortLabel, r.ID, r.DisplayName}); err != nil {
			return fmt.Errorf("writing roster row %q: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes the resolved roster to jsonPath and csvPath, creating
// parent directories as needed. An empty path skips that output.
func WriteFiles(rows []domain.Institution, jsonPath, csvPath string) error {
	if jsonPath != "" {
		if err := writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(w, rows) }); err != nil {
			return err
		}
	}
	if csvPath != "" {
		if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, rows) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
