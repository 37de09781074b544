//go:build windows

package provider

import (
	"os/exec"
	"time"
)

// setProcGroup only sets a drain delay on Windows; exec.CommandContext
// already kills the process on cancellation.
func setProcGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 3 * time.Second
}
