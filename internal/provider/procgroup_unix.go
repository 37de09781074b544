//go:build !windows

package provider

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup puts cmd in its own process group and kills the whole group
// when the context is cancelled, so helper processes the CLI spawned die
// with it.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	cmd.WaitDelay = 3 * time.Second
}
