// Package export writes tabular results to CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/dbsmedya/gofanout/internal/types"
)

// CombinedFileName is the file written by the single-file save policy.
const CombinedFileName = "resultado_unico.csv"

// Write stages reported by WriteError.
const (
	StageCreate = "create"
	StageHeader = "header"
	StageRow    = "row"
	StageFlush  = "flush"
)

// WriteError describes a failed export.
type WriteError struct {
	Path  string
	Stage string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Entry is one database's contribution to a combined export.
type Entry struct {
	Database string
	Result   *types.TabularResult
}

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_", "\x00", "_")

// FileNameFor returns the per-database CSV file name. Path separators are
// replaced so the file stays inside the chosen folder.
func FileNameFor(database string) string {
	name := fileNameReplacer.Replace(database)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name + ".csv"
}

// WriteSingle writes a header row followed by the data rows.
func WriteSingle(path string, result *types.TabularResult) error {
	if result == nil {
		result = types.EmptyResult()
	}
	return writeFile(path, result.Headers, func(w *csv.Writer) error {
		for _, row := range result.Rows {
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCombined writes every entry into one file. The header is "db"
// followed by the headers of the first entry that has any; each row is
// prefixed with its database name. Rows are written positionally even when
// entries have different columns.
func WriteCombined(path string, entries []Entry) error {
	header := []string{"db"}
	for _, e := range entries {
		if e.Result != nil && len(e.Result.Headers) > 0 {
			header = append(header, e.Result.Headers...)
			break
		}
	}

	return writeFile(path, header, func(w *csv.Writer) error {
		for _, e := range entries {
			if e.Result == nil {
				continue
			}
			for _, row := range e.Result.Rows {
				record := make([]string, 0, len(row)+1)
				record = append(record, e.Database)
				record = append(record, row...)
				if err := w.Write(record); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeFile creates path, writes header and body, then flushes and closes.
func writeFile(path string, header []string, body func(*csv.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Stage: StageCreate, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Stage: StageFlush, Err: cerr}
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return &WriteError{Path: path, Stage: StageHeader, Err: err}
	}
	if err := body(w); err != nil {
		return &WriteError{Path: path, Stage: StageRow, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &WriteError{Path: path, Stage: StageFlush, Err: err}
	}
	return nil
}
