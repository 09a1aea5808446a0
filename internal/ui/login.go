package ui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// LoginFunc runs an interactive sign-in, writing instructions to w.
type LoginFunc func(ctx context.Context, w io.Writer) error

type loginDoneMsg struct{ err error }

// loginExec suspends the program while the device-code sign-in owns the
// terminal.
type loginExec struct {
	login  LoginFunc
	stdout io.Writer
}

func (e *loginExec) SetStdin(io.Reader) {}

func (e *loginExec) SetStdout(w io.Writer) { e.stdout = w }

func (e *loginExec) SetStderr(io.Writer) {}

func (e *loginExec) Run() error {
	w := e.stdout
	if w == nil {
		w = io.Discard
	}
	fmt.Fprintln(w, "Sign-in required.")
	if err := e.login(context.Background(), w); err != nil {
		return err
	}
	fmt.Fprintln(w, "Signed in, returning to logq...")
	return nil
}

// startLogin hands the terminal to the sign-in flow. The interrupted query is
// not resumed.
func (m *Model) startLogin() tea.Cmd {
	if m.login == nil {
		m.status = "Sign-in required: run `logq login`"
		return nil
	}
	if m.loggingIn {
		return nil
	}
	m.loggingIn = true
	m.status = "Sign-in required"
	return tea.Exec(&loginExec{login: m.login}, func(err error) tea.Msg {
		return loginDoneMsg{err: err}
	})
}
