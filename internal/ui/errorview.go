package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"logq/internal/query"
)

// failureMarkdown nests each cause one blockquote deeper under "Caused by:".
func failureMarkdown(f *query.Failure) string {
	var b strings.Builder
	depth := 0
	for cur := f; cur != nil; cur = cur.Cause {
		prefix := strings.Repeat("> ", depth)
		if depth > 0 {
			b.WriteString(prefix + "\n")
			b.WriteString(prefix + "_Caused by:_\n")
			b.WriteString(prefix + "\n")
		}
		title := "**Error**"
		if cur.Code != "" {
			title = "**Error: " + escapeMarkdown(cur.Code) + "**"
		}
		b.WriteString(prefix + title + "\n")
		if msg := strings.TrimSpace(cur.Message); msg != "" {
			b.WriteString(prefix + "\n")
			for _, line := range strings.Split(msg, "\n") {
				b.WriteString(prefix + escapeMarkdown(line) + "\n")
			}
		}
		depth++
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "<", `\<`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

type failureRenderMsg struct {
	nonce    int
	rendered string
}

// renderFailureCmd renders off the update loop; a newer nonce supersedes it.
func renderFailureCmd(f *query.Failure, style string, wrap, nonce int) tea.Cmd {
	md := failureMarkdown(f)
	return func() tea.Msg {
		if wrap < 20 {
			wrap = 20
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return failureRenderMsg{nonce: nonce, rendered: md}
		}
		out, err := r.Render(md)
		if err != nil {
			return failureRenderMsg{nonce: nonce, rendered: md}
		}
		return failureRenderMsg{nonce: nonce, rendered: out}
	}
}
