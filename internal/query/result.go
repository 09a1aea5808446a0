package query

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row holds one cell per column, positionally aligned. Numbers decode as
// json.Number.
type Row []any

type Result struct {
	Columns []Column
	Rows    []Row
	Elapsed time.Duration
}

// Truncated reports whether the server hit the row cap.
func (r *Result) Truncated() bool {
	return r != nil && len(r.Rows) >= MaxRows
}

// ColumnIndex returns the position of name, or -1.
func (r *Result) ColumnIndex(name string) int {
	if r == nil {
		return -1
	}
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

type responseBody struct {
	Tables []struct {
		Name    string   `json:"name"`
		Columns []Column `json:"columns"`
		Rows    []Row    `json:"rows"`
	} `json:"tables"`
}

// decodeResult reads a success body and keeps the first table.
func decodeResult(r io.Reader) (*Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body responseBody
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if len(body.Tables) == 0 {
		return &Result{}, nil
	}
	t := body.Tables[0]
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("decode query response: row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return &Result{Columns: t.Columns, Rows: t.Rows}, nil
}
