// Command dolist is the device-side to-do list app: CLI and local HTTP API.
package main

import (
	"os"

	"github.com/and161185/dolist/internal/cli"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := cli.Execute(version, buildDate); err != nil {
		os.Exit(1)
	}
}
