//go:build linux

package chromium

import (
	"os/exec"
	"syscall"
)

// killAfterParent makes the kernel kill the browser when we die.
func killAfterParent(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
