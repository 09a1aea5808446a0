package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"logq/internal/auth"
	"logq/internal/query"
	"logq/internal/workspace"
)

const (
	DefaultGlamourStyle = "dark"
	// DefaultClientID is the well-known public client of the Azure CLI, which
	// is pre-authorized for the Log Analytics and ARM scopes.
	DefaultClientID     = "04b07795-8ddb-461a-bbee-02f9e1bf7b46"
	DefaultTenant       = "organizations"
	DefaultHistoryLimit = 100
	DefaultTimeout      = 2 * time.Minute

	envPrefix = "LOGQ_"
)

type AppConfig struct {
	Profile            string
	Tenant             string
	ClientID           string
	Authority          string
	Endpoint           string
	ManagementEndpoint string
	Token              string
	Workspaces         []workspace.Workspace
	Discover           bool
	Timespan           string
	DBPath             string
	ExportDir          string
	HistoryLimit       int
	LogFile            string
	LogLevel           string
	Timeout            time.Duration
	GlamourStyle       string
}

// Defaults returns the built-in configuration, with state under
// ~/.local/share/logq.
func Defaults() (AppConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppConfig{}, fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "share", "logq")
	return AppConfig{
		Tenant:             DefaultTenant,
		ClientID:           DefaultClientID,
		Authority:          auth.DefaultAuthority,
		Endpoint:           query.DefaultEndpoint,
		ManagementEndpoint: workspace.DefaultManagementEndpoint,
		Discover:           true,
		DBPath:             filepath.Join(dataDir, "state.sqlite"),
		HistoryLimit:       DefaultHistoryLimit,
		LogFile:            filepath.Join(dataDir, "logq.log"),
		LogLevel:           "info",
		Timeout:            DefaultTimeout,
		GlamourStyle:       DefaultGlamourStyle,
	}, nil
}

// RegisterFlags binds every setting to fs with the current values as
// defaults.
func (c *AppConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Profile, "profile", "p", c.Profile, "config profile to use")
	fs.StringVar(&c.Tenant, "tenant", c.Tenant, "Entra tenant id or domain")
	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "public client application id")
	fs.StringVar(&c.Authority, "authority", c.Authority, "identity platform authority URL")
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "Log Analytics query API endpoint")
	fs.StringVar(&c.ManagementEndpoint, "management-endpoint", c.ManagementEndpoint, "Azure Resource Manager endpoint")
	fs.StringVar(&c.Token, "token", c.Token, "pre-issued bearer token (skips sign-in)")
	fs.StringSlice("workspaces", nil, "static workspaces as name=customerId")
	fs.BoolVar(&c.Discover, "discover", c.Discover, "discover workspaces through Resource Manager")
	fs.StringVar(&c.Timespan, "timespan", c.Timespan, "default ISO-8601 time range (empty defers to the query)")
	fs.StringVar(&c.DBPath, "db-path", c.DBPath, "path to the SQLite state file")
	fs.StringVar(&c.ExportDir, "export-dir", c.ExportDir, "export output directory")
	fs.IntVar(&c.HistoryLimit, "history-limit", c.HistoryLimit, "maximum history entries (0 = unbounded)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "log file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "query request timeout")
	fs.StringVar(&c.GlamourStyle, "glamour-style", c.GlamourStyle, "glamour style for rendered panes")
}

// LoadDotEnv loads .env files without overriding the real environment. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Resolve applies precedence flag > env > profile > default. Values set on
// fs are kept; everything else is filled from getenv and then p.
func (c *AppConfig) Resolve(fs *pflag.FlagSet, p Profile, getenv func(string) string) error {
	changed := func(name string) bool {
		return fs != nil && fs.Changed(name)
	}
	var errs []error
	str := func(flag string, dst *string, fromProfile string) {
		if changed(flag) {
			return
		}
		if v := getenv(envName(flag)); v != "" {
			*dst = v
		} else if fromProfile != "" {
			*dst = fromProfile
		}
	}

	str("tenant", &c.Tenant, p.Tenant)
	str("client-id", &c.ClientID, p.ClientID)
	str("authority", &c.Authority, p.Authority)
	str("endpoint", &c.Endpoint, p.Endpoint)
	str("management-endpoint", &c.ManagementEndpoint, p.ManagementEndpoint)
	str("token", &c.Token, p.Token)
	str("timespan", &c.Timespan, p.Timespan)
	str("db-path", &c.DBPath, p.DBPath)
	str("export-dir", &c.ExportDir, p.ExportDir)
	str("log-file", &c.LogFile, p.LogFile)
	str("log-level", &c.LogLevel, p.LogLevel)
	str("glamour-style", &c.GlamourStyle, p.GlamourStyle)

	if changed("workspaces") {
		raw, _ := fs.GetStringSlice("workspaces")
		ws, err := ParseWorkspaces(raw)
		errs = append(errs, err)
		c.Workspaces = ws
	} else if v := getenv(envName("workspaces")); v != "" {
		ws, err := ParseWorkspaces(strings.Split(v, ","))
		errs = append(errs, err)
		c.Workspaces = ws
	} else if len(p.Workspaces) > 0 {
		c.Workspaces = append([]workspace.Workspace(nil), p.Workspaces...)
	}

	if !changed("discover") {
		if v := getenv(envName("discover")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", envName("discover"), err))
			}
			c.Discover = b
		} else if p.Discover != nil {
			c.Discover = *p.Discover
		}
	}

	if !changed("history-limit") {
		if v := getenv(envName("history-limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", envName("history-limit"), err))
			}
			c.HistoryLimit = n
		} else if p.HistoryLimit != nil {
			c.HistoryLimit = *p.HistoryLimit
		}
	}

	if !changed("timeout") {
		raw := getenv(envName("timeout"))
		if raw == "" {
			raw = p.Timeout
		}
		if raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("timeout: %w", err))
			}
			c.Timeout = d
		}
	}

	if c.DBPath != "" {
		c.DBPath = expandHome(c.DBPath)
	}
	c.LogFile = expandHome(c.LogFile)
	c.ExportDir = expandHome(c.ExportDir)
	return errors.Join(errs...)
}

// envName maps a flag name to its environment variable, e.g. db-path to
// LOGQ_DB_PATH.
func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// ParseWorkspaces reads name=customerId pairs. A bare value is used as both.
func ParseWorkspaces(raw []string) ([]workspace.Workspace, error) {
	var (
		out  []workspace.Workspace
		errs []error
	)
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, id, ok := strings.Cut(item, "=")
		if !ok {
			id = name
		}
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if id == "" {
			errs = append(errs, fmt.Errorf("workspace %q: missing customer id", item))
			continue
		}
		out = append(out, workspace.Workspace{Name: name, CustomerID: id})
	}
	return out, errors.Join(errs...)
}

// Validate reports every problem found, joined.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Token == "" && c.ClientID == "" {
		errs = append(errs, errors.New("config: client-id is required unless a token is given"))
	}
	for _, ep := range []struct{ name, raw string }{
		{"endpoint", c.Endpoint},
		{"management-endpoint", c.ManagementEndpoint},
		{"authority", c.Authority},
	} {
		u, err := url.Parse(ep.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: %s %q is not an absolute URL", ep.name, ep.raw))
		}
	}
	if !query.ValidTimespan(c.Timespan) {
		errs = append(errs, fmt.Errorf("config: timespan %q is not an ISO-8601 duration or interval", c.Timespan))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("config: db-path is required"))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("config: history-limit must not be negative"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("config: timeout must be positive"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.LogLevel))
	}
	for _, w := range c.Workspaces {
		if strings.TrimSpace(w.CustomerID) == "" {
			errs = append(errs, fmt.Errorf("config: workspace %q has no customer id", w.Name))
		}
	}
	return errors.Join(errs...)
}
