package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"logq/internal/query"
	"logq/internal/results"
)

type Format string

const (
	Markdown Format = "md"
	CSV      Format = "csv"
)

// Meta describes the query that produced an exported view.
type Meta struct {
	Query      string
	Workspaces []string
	Timespan   string
	Exported   time.Time
}

// View is a result as currently displayed: grouping and per-group order
// already applied.
type View struct {
	Columns []query.Column
	Groups  []results.Group
}

type Exporter struct {
	dir string
	cwd string
	now func() time.Time
}

func New(dir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{dir: strings.TrimSpace(dir), cwd: cwd, now: time.Now}, nil
}

// Export writes view in format and returns the file path.
func (e *Exporter) Export(view View, meta Meta, format Format) (string, error) {
	if meta.Exported.IsZero() {
		meta.Exported = e.now()
	}
	path := e.outputPath(meta.Exported, format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	switch format {
	case CSV:
		err = WriteCSV(f, view)
	case Markdown:
		_, err = io.WriteString(f, BuildMarkdown(view, meta))
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

func (e *Exporter) outputPath(at time.Time, format Format) string {
	dir := e.dir
	if dir == "" {
		dir = e.cwd
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	name := "logq-" + at.UTC().Format("20060102-150405") + "." + string(format)
	return filepath.Join(dir, name)
}

// BuildMarkdown renders one table per group. Collapsed groups are exported in
// full; collapse only affects the screen.
func BuildMarkdown(view View, meta Meta) string {
	var b strings.Builder
	b.WriteString("# Log Analytics results\n\n")
	b.WriteString("Exported: " + meta.Exported.UTC().Format(time.RFC3339) + "\n\n")
	b.WriteString("```kusto\n")
	b.WriteString(strings.TrimSpace(meta.Query) + "\n")
	b.WriteString("```\n\n")
	b.WriteString("- Workspaces: " + safeValue(strings.Join(meta.Workspaces, ", ")) + "\n")
	b.WriteString("- Time range: " + safeValue(query.TimespanLabel(meta.Timespan)) + "\n")
	b.WriteString(fmt.Sprintf("- Rows: %d\n\n", rowCount(view)))

	if len(view.Columns) == 0 {
		b.WriteString("_No results._\n")
		return b.String()
	}

	for _, g := range view.Groups {
		if g.Grouped {
			b.WriteString("## Tenant: " + safeValue(g.Key) + "\n\n")
		}
		writeTable(&b, view.Columns, g.Rows)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeTable(b *strings.Builder, cols []query.Column, rows []results.DisplayRow) {
	b.WriteString("|")
	for _, c := range cols {
		b.WriteString(" " + escapeCell(c.Name) + " |")
	}
	b.WriteString("\n|")
	for range cols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("|")
		for i := range cols {
			b.WriteString(" " + escapeCell(cell(r.Cells, i)) + " |")
		}
		b.WriteString("\n")
	}
}

// WriteCSV writes a header row and then every row in display order.
func WriteCSV(w io.Writer, view View) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(view.Columns))
	for i, c := range view.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, g := range view.Groups {
		for _, r := range g.Rows {
			rec := make([]string, len(view.Columns))
			for i := range view.Columns {
				rec[i] = cell(r.Cells, i)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(row query.Row, i int) string {
	if i >= len(row) {
		return ""
	}
	return results.CellString(row[i])
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func escapeCell(s string) string {
	return cellReplacer.Replace(s)
}

func rowCount(view View) int {
	n := 0
	for _, g := range view.Groups {
		n += len(g.Rows)
	}
	return n
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
