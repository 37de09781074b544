// Command gen-completions writes shell completion scripts for testsmith
// into an output directory, one file per supported shell. Release builds
// run it before packaging so the archives carry ready-made completions.
//
// Usage:
//
//	go run ./scripts/gen-completions [--out dir] [--shell name]...
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/cli"
)

type target struct {
	shell    string
	filename string
	generate func(root *cobra.Command, w io.Writer) error
}

var targets = []target{
	{"bash", "testsmith.bash", func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) }},
	{"zsh", "_testsmith", func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) }},
	{"fish", "testsmith.fish", func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) }},
	{"powershell", "testsmith.ps1", func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) }},
}

func main() {
	fs := pflag.NewFlagSet("gen-completions", pflag.ExitOnError)
	outDir := fs.StringP("out", "o", "completions", "Output directory")
	shells := fs.StringSlice("shell", nil, "Only generate for these shells (default: all)")
	_ = fs.Parse(os.Args[1:])

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir %q: %v\n", *outDir, err)
		os.Exit(1)
	}

	root := cli.NewRootCmd()
	for _, t := range targets {
		if len(*shells) > 0 && !slices.Contains(*shells, t.shell) {
			continue
		}
		path := filepath.Join(*outDir, t.filename)
		if err := writeCompletion(path, root, t); err != nil {
			fmt.Fprintf(os.Stderr, "error generating %s completion: %v\n", t.shell, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", path)
	}
}

func writeCompletion(path string, root *cobra.Command, t target) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.generate(root, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
