package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logq/internal/query"
	"logq/internal/results"
)

func groupedView() View {
	e := results.New()
	e.Load(&query.Result{
		Columns: []query.Column{
			{Name: "TimeGenerated", Type: "datetime"},
			{Name: "TenantId", Type: "string"},
			{Name: "Message", Type: "string"},
		},
		Rows: []query.Row{
			{"2024-01-01T00:00:00Z", "A", "first|pipe"},
			{"2024-01-01T01:00:00Z", "B", "multi\nline"},
			{"2024-01-01T02:00:00Z", "A", json.Number("42")},
		},
	})
	e.SetGroupByTenant(true)
	e.ToggleGroup("B")
	return View{Columns: e.Columns(), Groups: e.Groups()}
}

func TestBuildMarkdownGroupsAndEscapes(t *testing.T) {
	meta := Meta{
		Query:      "AppTraces | take 3",
		Workspaces: []string{"prod", "dev"},
		Timespan:   "PT1H",
		Exported:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out := BuildMarkdown(groupedView(), meta)

	for _, want := range []string{
		"Exported: 2024-01-02T03:04:05Z",
		"```kusto\nAppTraces | take 3\n```",
		"- Workspaces: prod, dev",
		"- Time range: Last hour",
		"- Rows: 3",
		"## Tenant: A",
		"## Tenant: B",
		`first\|pipe`,
		"multi<br>line",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markdown:\n%s", want, out)
		}
	}
	// Descending by time inside group A: row 2 precedes row 0.
	if strings.Index(out, "| 42 |") > strings.Index(out, `first\|pipe`) {
		t.Fatalf("group order not preserved:\n%s", out)
	}
}

func TestBuildMarkdownEmpty(t *testing.T) {
	out := BuildMarkdown(View{}, Meta{Query: "x"})
	if !strings.Contains(out, "_No results._") || !strings.Contains(out, "- Workspaces: n/a") {
		t.Fatalf("unexpected empty export:\n%s", out)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, groupedView()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "TimeGenerated,TenantId,Message\n" +
		"2024-01-01T02:00:00Z,A,42\n" +
		"2024-01-01T00:00:00Z,A,first|pipe\n" +
		"2024-01-01T01:00:00Z,B,\"multi\nline\"\n"
	if buf.String() != want {
		t.Fatalf("csv mismatch:\n got=%q\nwant=%q", buf.String(), want)
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{dir: dir, cwd: "/unused", now: func() time.Time {
		return time.Date(2024, 6, 1, 10, 20, 30, 0, time.UTC)
	}}

	path, err := e.Export(groupedView(), Meta{Query: "q"}, CSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if want := filepath.Join(dir, "logq-20240601-102030.csv"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "TimeGenerated,TenantId,Message\n") {
		t.Fatalf("unexpected csv contents %q", data)
	}

	if _, err := e.Export(groupedView(), Meta{}, Format("xml")); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestOutputPathRelativeDir(t *testing.T) {
	e := &Exporter{dir: "out", cwd: "/work"}
	got := e.outputPath(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Markdown)
	if got != filepath.Join("/work", "out", "logq-20240101-000000.md") {
		t.Fatalf("unexpected path %q", got)
	}
}
