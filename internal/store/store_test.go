package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logq/internal/auth"
	"logq/internal/history"
	"logq/internal/workspace"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "state.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(q string, at time.Time, ws ...workspace.Workspace) history.Entry {
	return history.Entry{Query: q, RanAt: at, Workspaces: ws, Timespan: "PT1H"}
}

func TestHistoryUpsertOrdersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ws := workspace.Workspace{Name: "prod", CustomerID: "c-1"}

	require.NoError(t, s.SaveHistory(ctx, entry("a", base, ws), 0))
	require.NoError(t, s.SaveHistory(ctx, entry("b", base.Add(time.Minute)), 0))
	require.NoError(t, s.SaveHistory(ctx, entry("a", base.Add(2*time.Minute), ws), 0))

	got, err := s.LoadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Query)
	assert.Equal(t, "b", got[1].Query)
	assert.True(t, got[0].RanAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, []workspace.Workspace{ws}, got[0].Workspaces)
	assert.Empty(t, got[1].Workspaces)
	assert.Equal(t, "PT1H", got[1].Timespan)
}

func TestHistoryPrunesToLimit(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, q := range []string{"one", "two", "three", "four"} {
		require.NoError(t, s.SaveHistory(ctx, entry(q, base.Add(time.Duration(i)*time.Second)), 2))
	}

	got, err := s.LoadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "four", got[0].Query)
	assert.Equal(t, "three", got[1].Query)

	limited, err := s.LoadHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	require.NoError(t, s.SaveHistory(ctx, entry("a", time.Now()), 0))
	require.NoError(t, s.SaveHistory(ctx, entry("b", time.Now()), 0))

	n, err := s.ClearHistory(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := s.LoadHistory(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectedWorkspaces(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, ok, err := s.SelectedWorkspaces(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing saved yet")

	want := []workspace.Workspace{{Name: "a", CustomerID: "1"}, {Name: "b", CustomerID: "2"}}
	require.NoError(t, s.SaveSelectedWorkspaces(ctx, want))
	got, ok, err := s.SelectedWorkspaces(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, s.SaveSelectedWorkspaces(ctx, nil))
	got, ok, err = s.SelectedWorkspaces(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "an explicit empty selection is still a saved value")
	assert.Empty(t, got)
}

func TestTokenCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, ok, err := s.Token(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	exp := time.Unix(1_900_000_000, 0)
	require.NoError(t, s.PutToken(ctx, "scope", auth.CachedToken{AccessToken: "at", Expiry: exp, Account: "me@contoso"}))
	require.NoError(t, s.PutToken(ctx, "session", auth.CachedToken{RefreshToken: "rt"}))

	tok, ok, err := s.Token(ctx, "scope")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at", tok.AccessToken)
	assert.True(t, tok.Expiry.Equal(exp))
	assert.Equal(t, "me@contoso", tok.Account)

	sess, ok, err := s.Token(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rt", sess.RefreshToken)
	assert.True(t, sess.Expiry.IsZero())

	require.NoError(t, s.PutToken(ctx, "scope", auth.CachedToken{AccessToken: "at2"}))
	tok, _, err = s.Token(ctx, "scope")
	require.NoError(t, err)
	assert.Equal(t, "at2", tok.AccessToken)

	n, err := s.DeleteTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	_, ok, err = s.Token(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sqlite")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveHistory(ctx, entry("kept", time.Now()), 0))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Query)
}
