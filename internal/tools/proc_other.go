//go:build !unix

package tools

import "os/exec"

// Default exec.CommandContext cancellation already kills the child process.
func killProcessGroupOnCancel(cmd *exec.Cmd) {}
