package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"logq/internal/auth"
	"logq/internal/history"
	"logq/internal/query"
	"logq/internal/workspace"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with a device code and cache the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Token != "" {
				return fmt.Errorf("a static token is configured; sign-in is not needed")
			}
			if err := a.openLogger(true); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			cred, err := a.entra(st).Login(cmd.Context(), []string{auth.LogAnalyticsScope}, devicePrompt(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			who := cred.Account
			if who == "" {
				who = "unknown account"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", who)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove cached sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			n, err := st.DeleteTokens(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached tokens\n", n)
			return nil
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "query [KQL]",
		Short: "Run one query and print the result",
		Example: `  logq query 'Heartbeat | take 10' --workspace prod --timespan PT1H
  echo 'AzureActivity | count' | logq query -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := queryText(args, os.Stdin)
			if err != nil {
				return err
			}
			if err := a.openLogger(true); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			creds := a.provider(st)

			available, fallback, err := workspace.Available(ctx, a.source(creds), a.cfg.Workspaces, a.logger)
			if err != nil {
				return signInHint(err)
			}
			var targets []workspace.Workspace
			if len(names) > 0 {
				targets = pickWorkspaces(names, available)
			} else {
				saved, _, err := st.SelectedWorkspaces(ctx)
				if err != nil {
					return err
				}
				if fallback && len(saved) > 0 {
					targets = saved
				} else {
					targets = workspace.Reconcile(saved, available)
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("no workspaces to query: pass --workspace or configure --workspaces")
			}

			res, err := a.queryClient(creds).Execute(ctx, text, targets, a.cfg.Timespan)
			if err != nil {
				a.logger.Warn("query failed", "error", err)
				return describeFailure(err)
			}
			entry := history.Entry{RanAt: time.Now(), Query: text, Workspaces: targets, Timespan: a.cfg.Timespan}
			if err := st.SaveHistory(ctx, entry, a.cfg.HistoryLimit); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), outputFormat(cmd, cmd.OutOrStdout()), res)
		},
	}
	cmd.Flags().StringSliceVarP(&names, "workspace", "w", nil, "workspace name or customer id (repeatable; defaults to the saved selection)")
	return cmd
}

// queryText joins the arguments, or reads a piped stdin when there are none.
func queryText(args []string, stdin *os.File) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && stdin != nil {
		if stat, err := stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return "", fmt.Errorf("read stdin: %w", err)
			}
			text = strings.TrimSpace(string(data))
		}
	}
	if text == "" {
		return "", fmt.Errorf("provide a query as an argument or on stdin")
	}
	return text, nil
}

// pickWorkspaces resolves names or customer ids against the available list.
// Unknown values are sent as raw customer ids.
func pickWorkspaces(names []string, available []workspace.Workspace) []workspace.Workspace {
	var out []workspace.Workspace
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		found := workspace.Workspace{Name: n, CustomerID: n}
		for _, w := range available {
			if strings.EqualFold(w.Name, n) || w.CustomerID == n {
				found = w
				break
			}
		}
		if !workspace.Contains(out, found.CustomerID) {
			out = append(out, found)
		}
	}
	return out
}

// cliError keeps the underlying error reachable for the JSON error output.
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }

func (e *cliError) Unwrap() error { return e.err }

// describeFailure renders what the shell shows for a failed query: code,
// message and each inner cause, or the generic message.
func describeFailure(err error) error {
	if auth.IsRedirect(err) {
		return signInHint(err)
	}
	var b strings.Builder
	depth := 0
	for cur := query.Describe(err); cur != nil; cur = cur.Cause {
		if depth > 0 {
			b.WriteString("\n" + strings.Repeat("  ", depth) + "Caused by: ")
		}
		if cur.Code != "" {
			b.WriteString(cur.Code + ": ")
		}
		b.WriteString(cur.Message)
		depth++
	}
	return &cliError{msg: b.String(), err: err}
}

func signInHint(err error) error {
	if auth.IsRedirect(err) {
		return &cliError{msg: "sign-in required: run `logq login`", err: err}
	}
	return err
}

type historyJSON struct {
	RanAt      time.Time `json:"ranAt"`
	Query      string    `json:"query"`
	Workspaces []string  `json:"workspaces"`
	Timespan   string    `json:"timespan,omitempty"`
}

func newHistoryCmd(a *app) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past queries, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if clearAll {
				n, err := st.ClearHistory(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d history entries\n", n)
				return nil
			}

			entries, err := st.LoadHistory(ctx, a.cfg.HistoryLimit)
			if err != nil {
				return err
			}
			if outputFormat(cmd, out) == "json" {
				items := make([]historyJSON, 0, len(entries))
				for _, e := range entries {
					items = append(items, historyJSON{RanAt: e.RanAt, Query: e.Query, Workspaces: workspace.Names(e.Workspaces), Timespan: e.Timespan})
				}
				return printJSON(out, items)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No queries yet.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.RanAt.Local().Format(time.DateTime),
					clip(e.Query, maxCellWidth),
					strings.Join(workspace.Names(e.Workspaces), ", "),
					query.TimespanLabel(e.Timespan),
				})
			}
			return printTable(out, []string{"Ran at", "Query", "Workspaces", "Time range"}, rows)
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every history entry")
	return cmd
}

func newWorkspacesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List the workspaces available to query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.openLogger(true); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			available, _, err := workspace.Available(ctx, a.source(a.provider(st)), a.cfg.Workspaces, a.logger)
			if err != nil {
				return signInHint(err)
			}
			saved, _, err := st.SelectedWorkspaces(ctx)
			if err != nil {
				return err
			}
			selected := workspace.Reconcile(saved, available)

			out := cmd.OutOrStdout()
			if outputFormat(cmd, out) == "json" {
				return printJSON(out, available)
			}
			if len(available) == 0 {
				fmt.Fprintln(out, "No workspaces available.")
				return nil
			}
			rows := make([][]string, 0, len(available))
			for _, w := range available {
				mark := ""
				if workspace.Contains(selected, w.CustomerID) {
					mark = "*"
				}
				rows = append(rows, []string{mark, w.Name, w.CustomerID})
			}
			return printTable(out, []string{"", "Name", "Customer ID"}, rows)
		},
	}
}
