// Command logq is an interactive Log Analytics query shell.
package main

import (
	"os"

	"logq/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
