//go:build unix

package tools

import (
	"os/exec"
	"syscall"
)

// killProcessGroupOnCancel puts the child in its own process group and makes
// context cancellation SIGKILL the whole group, so helpers spawned by nmap or
// by a raw shell line die with it.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
