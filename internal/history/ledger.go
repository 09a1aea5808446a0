package history

import (
	"time"

	"logq/internal/workspace"
)

// Entry is one executed query with the parameters it last ran with.
type Entry struct {
	RanAt      time.Time
	Query      string
	Workspaces []workspace.Workspace
	Timespan   string
}

// Clock renders the run time the way the sidebar shows it (en-GB locale time).
func (e Entry) Clock() string {
	if e.RanAt.IsZero() {
		return "--:--:--"
	}
	return e.RanAt.Local().Format("15:04:05")
}

// Ledger is the most-recent-first log of executed queries, unique by query
// text. It is owned by one goroutine.
type Ledger struct {
	entries []Entry
	limit   int
}

// NewLedger creates a ledger holding at most limit entries; limit <= 0 means
// unbounded. Seed entries are expected most-recent-first.
func NewLedger(limit int, seed ...Entry) *Ledger {
	l := &Ledger{limit: limit}
	for i := len(seed) - 1; i >= 0; i-- {
		l.Record(seed[i])
	}
	return l
}

// Record moves e to the front, replacing any entry with the same query text,
// and returns entries evicted by the capacity bound.
func (l *Ledger) Record(e Entry) []Entry {
	e.Workspaces = append([]workspace.Workspace(nil), e.Workspaces...)

	out := make([]Entry, 0, len(l.entries)+1)
	out = append(out, e)
	for _, cur := range l.entries {
		if cur.Query == e.Query {
			continue
		}
		out = append(out, cur)
	}

	var evicted []Entry
	if l.limit > 0 && len(out) > l.limit {
		evicted = append(evicted, out[l.limit:]...)
		out = out[:l.limit]
	}
	l.entries = out
	return evicted
}

// Entries returns a copy, most recent first.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Clear() {
	l.entries = nil
}
