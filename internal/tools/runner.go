package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Output is the captured result of one finished process.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandRunner abstracts process execution for the gateway.
//
// Run passes args straight to process creation. RunShell hands commandLine to
// a shell. A process that ran to completion yields a nil error whatever its
// exit code. The error is reserved for spawn or transport failures and for
// ctx expiry, in which case the process has already been killed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
	RunShell(ctx context.Context, commandLine string) (Output, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	Shell string
	// WaitDelay bounds how long Wait blocks on inherited pipes after a kill.
	WaitDelay time.Duration
}

var _ CommandRunner = ExecRunner{}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	return r.run(ctx, exec.CommandContext(ctx, name, args...))
}

func (r ExecRunner) RunShell(ctx context.Context, commandLine string) (Output, error) {
	shell := strings.TrimSpace(r.Shell)
	if shell == "" {
		shell = DefaultShell
	}
	return r.run(ctx, exec.CommandContext(ctx, shell, "-c", commandLine))
}

func (r ExecRunner) run(ctx context.Context, cmd *exec.Cmd) (Output, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	killProcessGroupOnCancel(cmd)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		out.ExitCode = -1
		return out, ctxErr
	}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	out.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		out.ExitCode = 127
	}
	return out, err
}
