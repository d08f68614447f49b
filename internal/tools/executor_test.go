package tools

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/reconctl/internal/testutil/testlog"
)

// blockingRunner emits partial output and then waits for cancellation,
// recording whether it was told to kill the process.
type blockingRunner struct {
	mu     sync.Mutex
	killed bool
}

func (r *blockingRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	<-ctx.Done()
	r.mu.Lock()
	r.killed = true
	r.mu.Unlock()
	return Output{Stdout: []byte("Starting Nmap 7.94 (partial)"), ExitCode: -1}, ctx.Err()
}

func (r *blockingRunner) RunShell(ctx context.Context, commandLine string) (Output, error) {
	return r.Run(ctx, DefaultShell, "-c", commandLine)
}

func (r *blockingRunner) wasKilled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.killed
}

// stuckRunner ignores cancellation entirely.
type stuckRunner struct {
	release chan struct{}
}

func (r stuckRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	<-r.release
	return Output{Stdout: []byte("late output")}, nil
}

func (r stuckRunner) RunShell(ctx context.Context, commandLine string) (Output, error) {
	return r.Run(ctx, DefaultShell)
}

type scriptedRunner struct {
	out   Output
	err   error
	name  string
	args  []string
	lines []string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	r.name = name
	r.args = args
	return r.out, r.err
}

func (r *scriptedRunner) RunShell(ctx context.Context, commandLine string) (Output, error) {
	r.lines = append(r.lines, commandLine)
	return r.out, r.err
}

func TestRunTimeoutKillsAndDropsOutput(t *testing.T) {
	testlog.Start(t)
	runner := &blockingRunner{}
	e := NewExecutor(runner)

	start := time.Now()
	stdout, err := e.Run(context.Background(), Request{Args: []string{"-sn", "10.0.0.1"}, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if stdout != "" {
		t.Fatalf("timed-out call leaked stdout: %q", stdout)
	}
	if strings.Contains(err.Error(), "partial") {
		t.Fatalf("timed-out error leaked stdout: %v", err)
	}
	if !runner.wasKilled() {
		t.Fatalf("expected runner to observe cancellation")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not return promptly: %v", elapsed)
	}
}

func TestRunReturnsWhenRunnerIgnoresCancellation(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	defer close(release)
	e := &Executor{Runner: stuckRunner{release: release}, KillGrace: 20 * time.Millisecond}

	stdout, err := e.Run(context.Background(), Request{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, ErrTimedOut) || stdout != "" {
		t.Fatalf("expected bare timeout, got stdout=%q err=%v", stdout, err)
	}
}

func TestRunPassesArgvUntouched(t *testing.T) {
	testlog.Start(t)
	runner := &scriptedRunner{out: Output{Stdout: []byte("Host is up."), ExitCode: 0}}
	e := NewExecutor(runner)

	args := []string{"-p", "80,443", "-T4", "127.0.0.1; rm -rf /"}
	stdout, err := e.Run(context.Background(), Request{Args: args})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "Host is up." {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	if runner.name != DefaultBinary {
		t.Fatalf("expected default binary, got %q", runner.name)
	}
	if !reflect.DeepEqual(runner.args, args) {
		t.Fatalf("argv changed: got=%q want=%q", runner.args, args)
	}
}

func TestRunNonZeroExitStillReturnsStdout(t *testing.T) {
	testlog.Start(t)
	runner := &scriptedRunner{out: Output{Stdout: []byte("QUITTING!"), Stderr: []byte("requires root"), ExitCode: 1}}
	stdout, err := NewExecutor(runner).Run(context.Background(), Request{Binary: "nmap", Args: []string{"-sS", "x"}})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if stdout != "QUITTING!" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestRunSpawnFailureIsExecutionError(t *testing.T) {
	testlog.Start(t)
	runner := &scriptedRunner{err: errors.New(`exec: "nmap": executable file not found in $PATH`)}
	_, err := NewExecutor(runner).Run(context.Background(), Request{})
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "executable file not found") {
		t.Fatalf("expected underlying message, got %v", err)
	}
}

func TestRunShellReturnsRichResult(t *testing.T) {
	testlog.Start(t)
	runner := &scriptedRunner{out: Output{Stdout: []byte("a"), Stderr: []byte("b"), ExitCode: 3}}
	res, err := NewExecutor(runner).RunShell(context.Background(), "nmap -h | head", 0)
	if err != nil {
		t.Fatalf("run shell: %v", err)
	}
	if res != (RawResult{Stdout: "a", Stderr: "b", ExitCode: 3}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(runner.lines) != 1 || runner.lines[0] != "nmap -h | head" {
		t.Fatalf("expected line passed verbatim, got %q", runner.lines)
	}
}

func TestRunShellTimeout(t *testing.T) {
	testlog.Start(t)
	runner := &blockingRunner{}
	_, err := NewExecutor(runner).RunShell(context.Background(), "sleep 60", 30*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if !runner.wasKilled() {
		t.Fatalf("expected runner to observe cancellation")
	}
}

func TestRunParentCancelIsExecutionError(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExecutor(&blockingRunner{}).Run(ctx, Request{Timeout: time.Second})
	if !errors.Is(err, ErrExecution) || errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrExecution for cancelled parent, got %v", err)
	}
}
