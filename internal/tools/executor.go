package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBinary     = "nmap"
	DefaultShell      = "/bin/sh"
	DefaultTimeout    = 60 * time.Second
	DefaultRawTimeout = 120 * time.Second
	DefaultKillGrace  = 5 * time.Second
)

var (
	ErrTimedOut  = errors.New("timed out")
	ErrExecution = errors.New("execution failed")
)

// Request is one resolved catalog execution. Args are handed to process
// creation element by element.
type Request struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

// RawResult is the richer result of a shell-interpreted command line.
type RawResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor applies the deadline and error classification around a
// CommandRunner. It holds no per-call state and is safe for concurrent use.
type Executor struct {
	Runner CommandRunner
	// KillGrace bounds how long a timed-out call waits for the runner to
	// report the killed process before returning anyway.
	KillGrace time.Duration
}

// NewExecutor returns an executor over runner, defaulting to local exec.
func NewExecutor(runner CommandRunner) *Executor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Executor{Runner: runner, KillGrace: DefaultKillGrace}
}

// Run executes req and returns stdout. A non-zero exit status is not an
// error here; stdout is returned regardless. On timeout no output is
// returned.
func (e *Executor) Run(ctx context.Context, req Request) (string, error) {
	binary := strings.TrimSpace(req.Binary)
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log.Debug().Str("binary", binary).Strs("args", req.Args).Dur("timeout", timeout).Msg("exec")
	out, err := e.run(ctx, timeout, func(runCtx context.Context) (Output, error) {
		return e.runner().Run(runCtx, binary, req.Args...)
	})
	if err != nil {
		return "", err
	}
	return string(out.Stdout), nil
}

// RunShell executes commandLine through shell interpretation. Nothing about
// the line is validated or quoted.
func (e *Executor) RunShell(ctx context.Context, commandLine string, timeout time.Duration) (RawResult, error) {
	if timeout <= 0 {
		timeout = DefaultRawTimeout
	}

	log.Debug().Str("command", commandLine).Dur("timeout", timeout).Msg("exec shell")
	out, err := e.run(ctx, timeout, func(runCtx context.Context) (Output, error) {
		return e.runner().RunShell(runCtx, commandLine)
	})
	if err != nil {
		return RawResult{}, err
	}
	return RawResult{
		Stdout:   string(out.Stdout),
		Stderr:   string(out.Stderr),
		ExitCode: out.ExitCode,
	}, nil
}

type runResult struct {
	out Output
	err error
}

func (e *Executor) run(ctx context.Context, timeout time.Duration, fn func(context.Context) (Output, error)) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		out, err := fn(runCtx)
		done <- runResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.out, nil
		}
		return Output{}, classify(runCtx, res.err, timeout)
	case <-runCtx.Done():
		select {
		case res := <-done:
			if res.err == nil {
				return res.out, nil
			}
		case <-time.After(e.killGrace()):
			log.Warn().Dur("grace", e.killGrace()).Msg("runner did not return after cancellation")
		}
		return Output{}, classify(runCtx, runCtx.Err(), timeout)
	}
}

func classify(runCtx context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}
	return fmt.Errorf("%w: %v", ErrExecution, err)
}

func (e *Executor) runner() CommandRunner {
	if e.Runner == nil {
		return ExecRunner{}
	}
	return e.Runner
}

func (e *Executor) killGrace() time.Duration {
	if e.KillGrace <= 0 {
		return DefaultKillGrace
	}
	return e.KillGrace
}
