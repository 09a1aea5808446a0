package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logq/internal/workspace"
)

func testDefaults() AppConfig {
	return AppConfig{
		Tenant:             DefaultTenant,
		ClientID:           DefaultClientID,
		Authority:          "https://login.example",
		Endpoint:           "https://api.example",
		ManagementEndpoint: "https://arm.example",
		Discover:           true,
		DBPath:             "/tmp/state.sqlite",
		HistoryLimit:       DefaultHistoryLimit,
		LogLevel:           "info",
		Timeout:            DefaultTimeout,
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolvePrecedence(t *testing.T) {
	cfg := testDefaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--tenant", "from-flag"}))

	limit := 5
	discover := false
	p := Profile{
		Tenant:       "from-profile",
		Endpoint:     "https://profile.example",
		Timespan:     "P1D",
		HistoryLimit: &limit,
		Discover:     &discover,
		Timeout:      "30s",
		Workspaces:   []workspace.Workspace{{Name: "prof", CustomerID: "p-1"}},
	}
	env := envMap(map[string]string{
		"LOGQ_TENANT":   "from-env",
		"LOGQ_ENDPOINT": "https://env.example",
	})

	require.NoError(t, cfg.Resolve(fs, p, env))
	assert.Equal(t, "from-flag", cfg.Tenant, "flag wins")
	assert.Equal(t, "https://env.example", cfg.Endpoint, "env beats profile")
	assert.Equal(t, "P1D", cfg.Timespan, "profile beats default")
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.False(t, cfg.Discover)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []workspace.Workspace{{Name: "prof", CustomerID: "p-1"}}, cfg.Workspaces)
	assert.Equal(t, DefaultClientID, cfg.ClientID, "default kept")
}

func TestResolveWorkspacesFromFlagAndEnv(t *testing.T) {
	cfg := testDefaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--workspaces", "prod=1111,dev=2222"}))
	require.NoError(t, cfg.Resolve(fs, Profile{}, envMap(map[string]string{"LOGQ_WORKSPACES": "ignored=3"})))
	assert.Equal(t, []workspace.Workspace{{Name: "prod", CustomerID: "1111"}, {Name: "dev", CustomerID: "2222"}}, cfg.Workspaces)

	cfg = testDefaults()
	require.NoError(t, cfg.Resolve(nil, Profile{}, envMap(map[string]string{"LOGQ_WORKSPACES": "solo"})))
	assert.Equal(t, []workspace.Workspace{{Name: "solo", CustomerID: "solo"}}, cfg.Workspaces)
}

func TestResolveReportsBadEnv(t *testing.T) {
	cfg := testDefaults()
	err := cfg.Resolve(nil, Profile{}, envMap(map[string]string{
		"LOGQ_HISTORY_LIMIT": "lots",
		"LOGQ_DISCOVER":      "maybe",
		"LOGQ_TIMEOUT":       "soon",
	}))
	require.Error(t, err)
	for _, want := range []string{"LOGQ_HISTORY_LIMIT", "LOGQ_DISCOVER", "timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "LOGQ_DB_PATH", envName("db-path"))
	assert.Equal(t, "LOGQ_CLIENT_ID", envName("client-id"))
}

func TestParseWorkspaces(t *testing.T) {
	ws, err := ParseWorkspaces([]string{" a = 1 ", "", "b=2"})
	require.NoError(t, err)
	assert.Equal(t, []workspace.Workspace{{Name: "a", CustomerID: "1"}, {Name: "b", CustomerID: "2"}}, ws)

	_, err = ParseWorkspaces([]string{"broken="})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, testDefaults().Validate())

	bad := testDefaults()
	bad.Endpoint = "not a url"
	bad.Timespan = "yesterday"
	bad.HistoryLimit = -1
	bad.Timeout = 0
	bad.LogLevel = "loud"
	bad.DBPath = ""
	bad.Workspaces = []workspace.Workspace{{Name: "x"}}

	err := bad.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"endpoint", "timespan", "history-limit", "timeout", "log level", "db-path", `workspace "x"`} {
		assert.Contains(t, msg, want)
	}
	assert.Equal(t, 7, strings.Count(msg, "config:"))
}

func TestValidateTokenWithoutClientID(t *testing.T) {
	cfg := testDefaults()
	cfg.ClientID = ""
	assert.Error(t, cfg.Validate())
	cfg.Token = "tok"
	assert.NoError(t, cfg.Validate())
}

func TestUserConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	missing, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Profile{}, missing.ActiveProfile(""))

	limit := 10
	in := &UserConfig{
		CurrentProfile: "work",
		Profiles: map[string]Profile{
			"work": {Tenant: "contoso", HistoryLimit: &limit, Workspaces: []workspace.Workspace{{Name: "prod", CustomerID: "c1"}}},
			"home": {Tenant: "fabrikam"},
		},
	}
	require.NoError(t, SaveUserConfig(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "customerId: c1")

	out, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "contoso", out.ActiveProfile("").Tenant)
	assert.Equal(t, "fabrikam", out.ActiveProfile("home").Tenant)
	assert.Equal(t, 10, *out.ActiveProfile("").HistoryLimit)
}

func TestLoadUserConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [nope"), 0o600))
	_, err := LoadUserConfig(path)
	assert.Error(t, err)
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOGQ_TEST_A=file\nLOGQ_TEST_B=file\n"), 0o600))
	t.Setenv("LOGQ_TEST_A", "real")
	t.Setenv("LOGQ_TEST_B", "")
	os.Unsetenv("LOGQ_TEST_B")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "real", os.Getenv("LOGQ_TEST_A"))
	assert.Equal(t, "file", os.Getenv("LOGQ_TEST_B"))
}
