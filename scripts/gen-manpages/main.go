// Command gen-manpages renders man pages for testsmith and every
// subcommand with cobra's doc package. With --markdown it writes Markdown
// reference pages instead.
//
// Usage:
//
//	go run ./scripts/gen-manpages [--out dir] [--markdown]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"
	"github.com/spf13/pflag"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/cli"
)

func main() {
	fs := pflag.NewFlagSet("gen-manpages", pflag.ExitOnError)
	outDir := fs.StringP("out", "o", "man/man1", "Output directory")
	markdown := fs.Bool("markdown", false, "Write Markdown pages instead of man pages")
	_ = fs.Parse(os.Args[1:])

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir %q: %v\n", *outDir, err)
		os.Exit(1)
	}

	root := cli.NewRootCmd()
	root.DisableAutoGenTag = true

	var err error
	if *markdown {
		err = doc.GenMarkdownTree(root, *outDir)
	} else {
		err = doc.GenManTree(root, &doc.GenManHeader{
			Title:   "TESTSMITH",
			Section: "1",
			Source:  "testsmith",
			Manual:  "testsmith Manual",
		}, *outDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating docs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Docs generated in %s/\n", *outDir)
}
