// Command testsmith generates, validates and self-heals unit tests for
// TypeScript and JavaScript source files.
package main

import (
	"os"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
