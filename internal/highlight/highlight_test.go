package highlight

import (
	"reflect"
	"strings"
	"testing"
)

func brackets(s string) string { return "[" + s + "]" }

func TestMarkCaseInsensitive(t *testing.T) {
	res := Mark("Heartbeat ok\nnothing\nheartBEAT twice heartbeat", "heartbeat", brackets)

	if res.Count != 3 {
		t.Fatalf("expected 3 matches, got %d", res.Count)
	}
	if !reflect.DeepEqual(res.Lines, []int{0, 2}) {
		t.Fatalf("unexpected match lines %v", res.Lines)
	}
	if !strings.Contains(res.Text, "[Heartbeat] ok") || !strings.Contains(res.Text, "[heartBEAT] twice [heartbeat]") {
		t.Fatalf("wrapper not applied: %q", res.Text)
	}
}

func TestMarkKeepsStyling(t *testing.T) {
	in := "│ \x1b[1mTenantId\x1b[0m │ contoso │"
	res := Mark(in, "tenant", brackets)
	if res.Count != 1 {
		t.Fatalf("expected 1 match, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "\x1b[1m[Tenant]Id\x1b[0m") {
		t.Fatalf("styled segment damaged: %q", res.Text)
	}
}

func TestMarkNeverSpansEscapes(t *testing.T) {
	res := Mark("err\x1b[31mor\x1b[0m", "error", brackets)
	if res.Count != 0 {
		t.Fatalf("expected no match across escape sequences, got %d", res.Count)
	}
}

func TestMarkQuotesTerm(t *testing.T) {
	res := Mark("a.b axb", "a.b", brackets)
	if res.Count != 1 || !strings.HasPrefix(res.Text, "[a.b]") {
		t.Fatalf("term treated as pattern: %+v", res)
	}
}

func TestMarkBlankTerm(t *testing.T) {
	res := Mark("text", "  ", brackets)
	if res.Text != "text" || res.Count != 0 {
		t.Fatalf("blank term should be a no-op: %+v", res)
	}
}

func TestNextPrevWrap(t *testing.T) {
	r := Result{Lines: []int{2, 5, 9}}
	cases := []struct {
		name string
		fn   func(int) (int, bool)
		from int
		want int
	}{
		{"next forward", r.Next, 2, 5},
		{"next wraps", r.Next, 9, 2},
		{"next from top", r.Next, -1, 2},
		{"prev backward", r.Prev, 5, 2},
		{"prev wraps", r.Prev, 2, 9},
	}
	for _, tc := range cases {
		got, ok := tc.fn(tc.from)
		if !ok || got != tc.want {
			t.Fatalf("%s: got %d (%v), want %d", tc.name, got, ok, tc.want)
		}
	}
	if _, ok := (Result{}).Next(0); ok {
		t.Fatalf("empty result should report no match")
	}
}
