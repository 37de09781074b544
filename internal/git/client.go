// Package git lists the files a working tree changed relative to a ref, so
// scans can be limited to what a branch touched.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Client runs the git binary in one repository. All methods shell out to
// git with os/exec.
type Client struct {
	// Root is the repository's top-level directory.
	Root string
	// GitBin is the git binary. Defaults to "git".
	GitBin string
}

// NewClient returns a Client for the repository containing dir. It fails
// when git is missing or dir is not inside a work tree.
func NewClient(ctx context.Context, dir string) (*Client, error) {
	c := &Client{GitBin: "git"}
	out, err := c.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("git: not a git repository or git not installed: %w", err)
	}
	c.Root = strings.TrimSpace(out)
	return c, nil
}

// ChangedFiles returns the absolute paths of files that differ from ref:
// files changed in commits since the merge base of ref and HEAD, uncommitted
// changes, and untracked files that are not ignored. Deleted files are
// left out. The result is sorted and has no duplicates.
func (c *Client) ChangedFiles(ctx context.Context, ref string) ([]string, error) {
	if ref == "" {
		return nil, errors.New("git: changed files: empty ref")
	}
	queries := [][]string{
		{"diff", "--name-only", "--diff-filter=d", ref + "...HEAD"},
		{"diff", "--name-only", "--diff-filter=d", "HEAD"},
		{"ls-files", "--others", "--exclude-standard"},
	}

	seen := make(map[string]bool)
	var files []string
	for _, args := range queries {
		out, err := c.run(ctx, c.Root, args...)
		if err != nil {
			return nil, fmt.Errorf("git: %s: %w", strings.Join(args[:2], " "), err)
		}
		for _, rel := range parseNameOnly(out) {
			abs := filepath.Join(c.Root, filepath.FromSlash(rel))
			if !seen[abs] {
				seen[abs] = true
				files = append(files, abs)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// parseNameOnly splits `git diff --name-only` style output into paths.
func parseNameOnly(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// run executes git in dir and returns stdout. stderr is included in the
// error when the command fails.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := c.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return stdout.String(), nil
}
