// Package cli wires configuration, storage and credentials into the logq
// commands. The bare command launches the interactive shell.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"logq/internal/auth"
	"logq/internal/config"
	"logq/internal/export"
	"logq/internal/logging"
	"logq/internal/query"
	"logq/internal/store"
	"logq/internal/ui"
	"logq/internal/workspace"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{
				"error": err.Error(),
			}
			var qe *query.QueryError
			if errors.As(err, &qe) {
				errObj["http_status"] = qe.Status
				if api, ok := qe.APIError(); ok {
					errObj["code"] = api.Code
				}
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// app carries the resolved configuration and lazily opened resources for one
// invocation.
type app struct {
	cfg     config.AppConfig
	output  string
	getenv  func(string) string
	logger  *slog.Logger
	st      *store.Store
	closers []io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{getenv: os.Getenv}
	if d, err := config.Defaults(); err == nil {
		a.cfg = d
	}

	rootCmd := &cobra.Command{
		Use:           "logq",
		Short:         "Interactive Log Analytics query shell",
		Long:          "Run KQL against one or more Log Analytics workspaces, browse results grouped by tenant and keep a history of past queries.",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd.Context())
		},
	}

	a.cfg.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newLogoutCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newWorkspacesCmd(a))
	return rootCmd
}

// setup resolves configuration: flag > env > profile > default.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}
	uc, err := config.LoadUserConfig(path)
	if err != nil {
		return err
	}
	profile := a.cfg.Profile
	if !cmd.Flags().Changed("profile") {
		if v := a.getenv("LOGQ_PROFILE"); v != "" {
			profile = v
		}
	}
	if err := a.cfg.Resolve(cmd.Flags(), uc.ActiveProfile(profile), a.getenv); err != nil {
		return err
	}
	if err := validateOutputFormat(a.output); err != nil {
		return err
	}
	return a.cfg.Validate()
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openLogger sends logs to the configured file, or to stderr when toStderr
// is set and no file is configured.
func (a *app) openLogger(toStderr bool) error {
	if a.logger != nil {
		return nil
	}
	if a.cfg.LogFile == "" && toStderr {
		logger, err := logging.New(os.Stderr, a.cfg.LogLevel, false)
		if err != nil {
			return err
		}
		a.logger = logger
		return nil
	}
	logger, closer, err := logging.OpenFile(a.cfg.LogFile, a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return nil
}

func (a *app) openStore() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	st, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.st = st
	a.closers = append(a.closers, st)
	return st, nil
}

// provider returns the static token provider when a token is configured and
// the cached Entra session otherwise.
func (a *app) provider(st *store.Store) auth.Provider {
	if a.cfg.Token != "" {
		return auth.NewStaticProvider(a.cfg.Token)
	}
	return a.entra(st)
}

func (a *app) entra(st *store.Store) *auth.EntraProvider {
	return auth.NewEntraProvider(auth.EntraConfig{
		Authority: a.cfg.Authority,
		Tenant:    a.cfg.Tenant,
		ClientID:  a.cfg.ClientID,
	}, st, a.logger)
}

func (a *app) queryClient(creds auth.Provider) *query.Client {
	return query.NewClient(query.Config{
		Endpoint: a.cfg.Endpoint,
		Timeout:  a.cfg.Timeout,
		Logger:   a.logger,
	}, creds)
}

// source is nil when discovery is off, so only the static list is offered.
func (a *app) source(creds auth.Provider) workspace.Source {
	if !a.cfg.Discover {
		return nil
	}
	return workspace.NewDiscoverer(workspace.DiscoverConfig{
		Endpoint: a.cfg.ManagementEndpoint,
		Logger:   a.logger,
	}, creds)
}

func (a *app) runShell(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.openLogger(false); err != nil {
		return err
	}
	st, err := a.openStore()
	if err != nil {
		return err
	}
	entries, err := st.LoadHistory(ctx, a.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	selection, _, err := st.SelectedWorkspaces(ctx)
	if err != nil {
		return err
	}
	exp, err := export.New(a.cfg.ExportDir)
	if err != nil {
		return err
	}

	creds := a.provider(st)
	var login ui.LoginFunc
	if a.cfg.Token == "" {
		entra := a.entra(st)
		login = func(ctx context.Context, w io.Writer) error {
			_, err := entra.Login(ctx, []string{auth.LogAnalyticsScope}, devicePrompt(w))
			return err
		}
	}

	m := ui.NewModel(ui.Options{
		Config:    a.cfg,
		Runner:    a.queryClient(creds),
		Source:    a.source(creds),
		Store:     st,
		Exporter:  exp,
		Login:     login,
		Logger:    a.logger,
		History:   entries,
		Selection: selection,
	})
	a.logger.Info("shell started", "db", st.Path(), "history", len(entries))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run shell: %w", err)
	}
	return nil
}

func devicePrompt(w io.Writer) func(auth.DeviceCode) error {
	return func(dc auth.DeviceCode) error {
		_, err := fmt.Fprintln(w, dc.Message())
		return err
	}
}
