package workspace

import (
	"sort"
	"strings"
)

// Workspace is a queryable Log Analytics workspace. The JSON shape is the
// persisted selection format.
type Workspace struct {
	Name       string `json:"name" yaml:"name"`
	CustomerID string `json:"customerId" yaml:"customerId"`
}

func (w Workspace) String() string {
	if w.Name != "" {
		return w.Name
	}
	return w.CustomerID
}

// Names returns the workspace names in selection order.
func Names(ws []Workspace) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Name)
	}
	return out
}

// Contains reports whether ws holds a workspace with the given customer id.
func Contains(ws []Workspace, customerID string) bool {
	return indexOf(ws, customerID) >= 0
}

func indexOf(ws []Workspace, customerID string) int {
	for i, w := range ws {
		if w.CustomerID == customerID {
			return i
		}
	}
	return -1
}

// Reconcile restores a saved selection against freshly discovered workspaces.
// Entries that are no longer available are dropped and names are refreshed
// from the discovered record. An empty result selects everything.
func Reconcile(saved, available []Workspace) []Workspace {
	out := make([]Workspace, 0, len(saved))
	for _, s := range saved {
		idx := indexOf(available, s.CustomerID)
		if idx < 0 || Contains(out, s.CustomerID) {
			continue
		}
		out = append(out, available[idx])
	}
	if len(out) == 0 {
		return append([]Workspace(nil), available...)
	}
	return out
}

// Toggle adds w to the selection, or removes it when already selected.
// Newly selected workspaces are appended so the routing target stays stable.
func Toggle(selected []Workspace, w Workspace) []Workspace {
	if idx := indexOf(selected, w.CustomerID); idx >= 0 {
		out := make([]Workspace, 0, len(selected)-1)
		out = append(out, selected[:idx]...)
		return append(out, selected[idx+1:]...)
	}
	out := make([]Workspace, 0, len(selected)+1)
	out = append(out, selected...)
	return append(out, w)
}

// SelectAllOrClear clears a non-empty selection and selects every available
// workspace otherwise.
func SelectAllOrClear(selected, available []Workspace) []Workspace {
	if len(selected) > 0 {
		return nil
	}
	return append([]Workspace(nil), available...)
}

// Normalize sorts by name (case-insensitive) and drops duplicate customer ids.
func Normalize(ws []Workspace) []Workspace {
	out := make([]Workspace, 0, len(ws))
	seen := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		w.Name = strings.TrimSpace(w.Name)
		w.CustomerID = strings.TrimSpace(w.CustomerID)
		if w.CustomerID == "" {
			continue
		}
		if _, ok := seen[w.CustomerID]; ok {
			continue
		}
		seen[w.CustomerID] = struct{}{}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
