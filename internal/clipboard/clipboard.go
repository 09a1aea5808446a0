package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

// SelectCommand picks the clipboard writer for goos. On Linux, wl-copy is
// preferred when a Wayland session is present.
func SelectCommand(goos string, wayland bool, lookPath func(string) (string, error)) (Command, error) {
	switch goos {
	case "darwin":
		if path, err := lookPath("pbcopy"); err == nil {
			return Command{Path: path}, nil
		}
	case "linux":
		candidates := []Command{
			{Path: "xclip", Args: []string{"-selection", "clipboard"}},
			{Path: "xsel", Args: []string{"--clipboard", "--input"}},
		}
		if wayland {
			candidates = append([]Command{{Path: "wl-copy"}}, candidates...)
		}
		for _, c := range candidates {
			if path, err := lookPath(c.Path); err == nil {
				c.Path = path
				return c, nil
			}
		}
	}
	return Command{}, ErrToolNotFound
}

// FormatFields renders a row as "name: value" lines, the form copied by the
// results view.
func FormatFields(names, values []string) string {
	var b strings.Builder
	for i, name := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}

// Copy writes text to the system clipboard.
func Copy(ctx context.Context, text string) error {
	cmdDef, err := SelectCommand(runtime.GOOS, waylandSession(), exec.LookPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}

func waylandSession() bool {
	return os.Getenv("WAYLAND_DISPLAY") != ""
}
