// Package rawcmd is the unconstrained escape hatch: it runs an
// operator-supplied command line through a shell, verbatim.
//
// Nothing here quotes, validates or allow-lists the line. Argument-vector
// safety does not apply on this path; expose it only to callers trusted
// with a shell on the scan host.
package rawcmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/reconctl/internal/observability"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// NoOutput is returned when the command succeeded and printed nothing.
const NoOutput = "Command executed successfully with no output."

// ShellExecutor runs a shell-interpreted command line. *tools.Executor
// satisfies it.
type ShellExecutor interface {
	RunShell(ctx context.Context, commandLine string, timeout time.Duration) (tools.RawResult, error)
}

// Path is the raw command entry point.
type Path struct {
	exec    ShellExecutor
	timeout time.Duration
}

func New(exec ShellExecutor, timeout time.Duration) *Path {
	if timeout <= 0 {
		timeout = tools.DefaultRawTimeout
	}
	return &Path{exec: exec, timeout: timeout}
}

func (p *Path) Timeout() time.Duration {
	return p.timeout
}

// Run executes commandLine and returns the formatted result text. On timeout
// or execution failure the text describes the failure and err carries the
// classified cause. A non-zero exit status is reported in the text only.
func (p *Path) Run(ctx context.Context, commandLine string) (string, error) {
	log.Warn().Str("command", commandLine).Msg("raw shell command requested")

	res, err := p.exec.RunShell(ctx, commandLine, p.timeout)
	if err != nil {
		outcome := "execution_error"
		if errors.Is(err, tools.ErrTimedOut) {
			outcome = "timed_out"
		}
		observability.RecordRawCommand(outcome)
		log.Error().Err(err).Str("command", commandLine).Msg("raw shell command failed")
		return FormatError(err, p.timeout), err
	}

	outcome := "ok"
	if res.ExitCode != 0 {
		outcome = "nonzero_exit"
	}
	observability.RecordRawCommand(outcome)
	return Format(res), nil
}

// Format renders stdout, then stderr, then a return code line when it is
// non-zero. An empty successful run yields NoOutput.
func Format(res tools.RawResult) string {
	var b strings.Builder
	if res.Stdout != "" {
		fmt.Fprintf(&b, "STDOUT:\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "STDERR:\n%s\n", res.Stderr)
	}
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "Return Code: %d\n", res.ExitCode)
	}
	if b.Len() == 0 {
		return NoOutput
	}
	return b.String()
}

func FormatError(err error, timeout time.Duration) string {
	if errors.Is(err, tools.ErrTimedOut) {
		return fmt.Sprintf("Error: Command timed out after %s", timeout)
	}
	return fmt.Sprintf("Error executing command: %v", err)
}
