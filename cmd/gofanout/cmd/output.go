package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"github.com/dbsmedya/gofanout/internal/orchestrator"
	"github.com/dbsmedya/gofanout/internal/types"
)

const (
	maxCellWidth  = 40
	maxQueryWidth = 60
)

// truncate shortens s to at most width terminal columns and folds
// newlines so a cell stays on one line.
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

func statusText(status types.ExecutionStatus) string {
	switch status {
	case types.StatusSuccess:
		return color.Green.Sprint(string(status))
	case types.StatusError:
		return color.Red.Sprint(string(status))
	default:
		return color.Yellow.Sprint(string(status))
	}
}

// reportCollector keeps the latest report per database in target order.
type reportCollector struct {
	mu      sync.Mutex
	reports *orderedmap.OrderedMap[string, types.DatabaseReport]
}

func newReportCollector(databases []string) *reportCollector {
	m := orderedmap.NewOrderedMap[string, types.DatabaseReport]()
	for _, db := range databases {
		m.Set(db, types.DatabaseReport{Name: db, Status: types.StatusWaiting})
	}
	return &reportCollector{reports: m}
}

func (c *reportCollector) Emit(event string, report types.DatabaseReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports.Set(report.Name, report)
	return nil
}

// Reports returns the collected reports in target order.
func (c *reportCollector) Reports() []types.DatabaseReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DatabaseReport, 0, c.reports.Len())
	for el := c.reports.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// consoleEmitter prints each report as it arrives.
type consoleEmitter struct {
	mu      sync.Mutex
	out     io.Writer
	maxRows int
}

func newConsoleEmitter(out io.Writer, maxRows int) *consoleEmitter {
	return &consoleEmitter{out: out, maxRows: maxRows}
}

func (e *consoleEmitter) Emit(event string, report types.DatabaseReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fmt.Fprintf(e.out, "%s [%s] %s\n", color.Bold.Sprint(report.Name), statusText(report.Status), report.LogLine())
	for i, o := range report.Results {
		switch o.Kind {
		case types.OutcomeSelect:
			fmt.Fprintf(e.out, "  %d. %s rows\n", i+1, humanize.Comma(int64(len(o.Result.Rows))))
		case types.OutcomeMutation:
			fmt.Fprintf(e.out, "  %d. %s rows affected\n", i+1, humanize.Comma(o.AffectedRows))
		case types.OutcomeError:
			fmt.Fprintf(e.out, "  %d. %s\n", i+1, color.Red.Sprint(o.Message))
		}
	}

	if result := report.LastTabular(); result != nil && e.maxRows > 0 {
		renderResult(e.out, result, e.maxRows)
	}
	fmt.Fprintln(e.out)
	return nil
}

// renderResult prints up to maxRows rows of a result as a table.
func renderResult(out io.Writer, result *types.TabularResult, maxRows int) {
	if len(result.Headers) == 0 {
		fmt.Fprintln(out, "  (no rows)")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(result.Headers)

	rows := result.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = truncate(v, maxCellWidth)
		}
		table.Append(cells)
	}
	table.Render()

	if hidden := len(result.Rows) - len(rows); hidden > 0 {
		fmt.Fprintf(out, "  … %s more rows\n", humanize.Comma(int64(hidden)))
	}
}

// jsonEmitter writes one JSON object per event.
type jsonEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type jsonEvent struct {
	Event   string               `json:"event"`
	Payload types.DatabaseReport `json:"payload"`
}

func newJSONEmitter(out io.Writer) *jsonEmitter {
	return &jsonEmitter{enc: json.NewEncoder(out)}
}

func (e *jsonEmitter) Emit(event string, report types.DatabaseReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(jsonEvent{Event: event, Payload: report})
}

// printSummary renders the final per-database table and totals.
func printSummary(out io.Writer, reports []types.DatabaseReport, summary orchestrator.Summary) {
	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Database", "Status", "Statements", "Log"})
	for _, r := range reports {
		table.Append([]string{
			r.Name,
			statusText(r.Status),
			fmt.Sprint(len(r.Results)),
			truncate(r.LogLine(), maxQueryWidth),
		})
	}
	table.Render()

	fmt.Fprintf(out, "\n%d database(s): %d succeeded, %d failed (%s)\n",
		summary.Processed, summary.Succeeded, summary.Failed, summary.Duration().Round(time.Millisecond))
	switch {
	case summary.CombinedFile != "":
		fmt.Fprintf(out, "Combined results saved to %s\n", summary.CombinedFile)
	case summary.FilesWritten > 0:
		fmt.Fprintf(out, "Results saved to %s (%d file(s))\n", summary.Folder, summary.FilesWritten)
	case summary.ExportErr != nil:
		fmt.Fprintf(out, "Combined results were not saved: %v\n", summary.ExportErr)
	case summary.Folder != "":
		fmt.Fprintf(out, "No tabular results, nothing saved to %s\n", summary.Folder)
	}
}
