package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"logq/internal/query"
	"logq/internal/results"
)

const maxCellWidth = 60

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// outputFormat is the -o flag, except that table output falls back to JSON
// when stdout is not a terminal and the flag was not given.
func outputFormat(cmd *cobra.Command, w io.Writer) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	if cmd.Root().PersistentFlags().Changed("output") {
		return v
	}
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return "json"
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders headers and rows as a bordered grid.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// resultJSON is the machine-readable form of a query result: one object per
// row keyed by column name.
type resultJSON struct {
	Columns   []query.Column   `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

func printResult(w io.Writer, format string, res *query.Result) error {
	if format == "json" {
		out := resultJSON{Columns: res.Columns, Rows: make([]map[string]any, 0, len(res.Rows)), Truncated: res.Truncated()}
		for _, row := range res.Rows {
			obj := make(map[string]any, len(res.Columns))
			for i, c := range res.Columns {
				if i < len(row) {
					obj[c.Name] = row[i]
				}
			}
			out.Rows = append(out.Rows, obj)
		}
		return printJSON(w, out)
	}

	if len(res.Columns) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	headers := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		headers[i] = c.Name
	}
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i := range res.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			cells[i] = clip(results.CellString(v), maxCellWidth)
		}
		rows = append(rows, cells)
	}
	if err := printTable(w, headers, rows); err != nil {
		return err
	}
	suffix := ""
	if res.Truncated() {
		suffix = " (row limit reached)"
	}
	_, err := fmt.Fprintf(w, "%d rows%s\n", len(res.Rows), suffix)
	return err
}

func clip(s string, n int) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
