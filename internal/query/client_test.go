package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"logq/internal/auth"
	"logq/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenProvider struct {
	token string
	err   error
}

func (p tokenProvider) AcquireSilent(context.Context, []string) (auth.Credential, error) {
	if p.err != nil {
		return auth.Credential{}, p.err
	}
	return auth.Credential{Token: p.token}, nil
}

func (p tokenProvider) AcquireInteractive(context.Context, []string) (auth.Credential, error) {
	return auth.Credential{}, auth.ErrRedirected
}

var testWorkspaces = []workspace.Workspace{
	{Name: "prod-logs", CustomerID: "11111111-aaaa"},
	{Name: "stage-logs", CustomerID: "22222222-bbbb"},
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{Endpoint: srv.URL}, tokenProvider{token: "test-token"})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const okBody = `{"tables":[{"name":"PrimaryResult","columns":[{"name":"TimeGenerated","type":"datetime"},{"name":"TenantId","type":"string"},{"name":"Count","type":"long"}],"rows":[["2024-01-01T00:00:00Z","A",12345678901234567],["2024-01-01T01:00:00Z","B",2]]}]}`

func TestExecuteRoutesByFirstWorkspaceAndSendsNames(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotReq  string
		gotBody map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReq = r.Header.Get("x-ms-client-request-id")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, okBody)
	})

	res, err := c.Execute(context.Background(), "Heartbeat | take 2", testWorkspaces, "PT1H")
	require.NoError(t, err)

	assert.Equal(t, "/v1/workspaces/11111111-aaaa/query", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.NotEmpty(t, gotReq)
	assert.Equal(t, "Heartbeat | take 2", gotBody["query"])
	assert.Equal(t, []any{"prod-logs", "stage-logs"}, gotBody["workspaces"])
	assert.Equal(t, float64(1001), gotBody["maxRows"])
	assert.Equal(t, "PT1H", gotBody["timespan"])

	require.Len(t, res.Columns, 3)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "TimeGenerated", res.Columns[0].Name)
	assert.Equal(t, json.Number("12345678901234567"), res.Rows[0][2])
	assert.Equal(t, 1, res.ColumnIndex("TenantId"))
}

func TestExecuteOmitsEmptyTimespan(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, http.StatusOK, okBody)
	})

	_, err := c.Execute(context.Background(), "Heartbeat", testWorkspaces[:1], "")
	require.NoError(t, err)
	_, present := raw["timespan"]
	assert.False(t, present, "timespan must be omitted, not sent empty")
}

func TestExecuteForwardsEmptyQueryText(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, okBody)
	})
	_, err := c.Execute(context.Background(), "", testWorkspaces[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "", body["query"])
}

func TestExecuteRequiresWorkspace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	_, err := c.Execute(context.Background(), "Heartbeat", nil, "")
	require.ErrorIs(t, err, ErrNoWorkspaces)
}

func TestExecuteStructuredRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":{"code":"BadArgumentError","message":"bad query"}}`)
	})

	_, err := c.Execute(context.Background(), "bad", testWorkspaces, "")
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, http.StatusBadRequest, qe.Status)
	assert.True(t, IsRejected(err))

	f := Describe(err)
	assert.Equal(t, "BadArgumentError", f.Code)
	assert.Equal(t, "bad query", f.Message)
	assert.Nil(t, f.Cause)
}

func TestExecuteUnparsableRejectionFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `<html>gateway says no`)
	})

	_, err := c.Execute(context.Background(), "bad", testWorkspaces, "")
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	f := Describe(err)
	assert.Equal(t, GenericFailure, f.Message)
	assert.Empty(t, f.Code)
}

func TestExecuteOtherStatusIsGeneric(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"error":{"code":"InsufficientAccessError","message":"nope"}}`)
	})

	_, err := c.Execute(context.Background(), "x", testWorkspaces, "")
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, http.StatusForbidden, qe.Status)
	assert.Contains(t, string(qe.Body), "InsufficientAccessError")
	assert.Equal(t, GenericFailure, Describe(err).Message)
}

func TestExecuteTransportFailureIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{Endpoint: url}, tokenProvider{token: "t"})
	_, err := c.Execute(context.Background(), "x", testWorkspaces, "")
	require.Error(t, err)
	assert.Equal(t, GenericFailure, Describe(err).Message)
}

func TestExecuteCredentialFailurePropagates(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://127.0.0.1:1"}, tokenProvider{err: auth.ErrRedirected})
	_, err := c.Execute(context.Background(), "x", testWorkspaces, "")
	require.ErrorIs(t, err, auth.ErrRedirected)
}

func TestExecuteMisalignedRowIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"tables":[{"columns":[{"name":"a"},{"name":"b"}],"rows":[["1"]]}]}`)
	})
	_, err := c.Execute(context.Background(), "x", testWorkspaces, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 1 cells")
}

func TestExecuteNoTablesIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"tables":[]}`)
	})
	res, err := c.Execute(context.Background(), "x", testWorkspaces, "")
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	assert.False(t, res.Truncated())
}
