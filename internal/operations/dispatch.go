package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/reconctl/internal/observability"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
)

// FailureKind classifies a failed dispatch for the host protocol.
type FailureKind string

const (
	KindNone             FailureKind = ""
	KindUnknownOperation FailureKind = "unknown_operation"
	KindInvalidParameter FailureKind = "invalid_parameter"
	KindTimedOut         FailureKind = "timed_out"
	KindExecutionError   FailureKind = "execution_error"
)

// Result is the outcome of one dispatch. Exactly one of Stdout and Err is
// meaningful.
type Result struct {
	Operation string
	// Args is the argument vector handed to the executor; nil when the call
	// failed before execution.
	Args   []string
	Stdout string
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) Kind() FailureKind {
	switch {
	case r.Err == nil:
		return KindNone
	case errors.Is(r.Err, ErrUnknownOperation):
		return KindUnknownOperation
	case errors.Is(r.Err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(r.Err, tools.ErrTimedOut):
		return KindTimedOut
	default:
		return KindExecutionError
	}
}

// Text renders the single text blob returned to the host protocol. Failures
// always name their kind, once.
func (r Result) Text() string {
	if r.Err == nil {
		return r.Stdout
	}
	return fmt.Sprintf("Error (%s): %s", r.Kind(), r.message())
}

// message is the error text with the kind sentinel's own prefix removed.
func (r Result) message() string {
	msg := r.Err.Error()
	for _, sentinel := range []error{ErrUnknownOperation, ErrInvalidParameter, tools.ErrExecution} {
		if errors.Is(r.Err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}

func (r Result) outcome() string {
	if r.Err == nil {
		return "ok"
	}
	return string(r.Kind())
}

// Executor runs a resolved catalog request. *tools.Executor satisfies it.
type Executor interface {
	Run(ctx context.Context, req tools.Request) (string, error)
}

type DispatcherConfig struct {
	Binary  string
	Timeout time.Duration
	// MaxConcurrent bounds how many dispatches run their process at once;
	// zero leaves dispatch unbounded.
	MaxConcurrent int
}

// Dispatcher is the single entry point the host protocol calls into for
// catalog operations. It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	exec     Executor
	binary   string
	timeout  time.Duration
	pool     *ants.Pool
}

func NewDispatcher(registry *Registry, exec Executor, cfg DispatcherConfig) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("operations: registry is required")
	}
	if exec == nil {
		return nil, errors.New("operations: executor is required")
	}
	d := &Dispatcher{
		registry: registry,
		exec:     exec,
		binary:   strings.TrimSpace(cfg.Binary),
		timeout:  cfg.Timeout,
	}
	if d.binary == "" {
		d.binary = tools.DefaultBinary
	}
	if d.timeout <= 0 {
		d.timeout = tools.DefaultTimeout
	}
	if cfg.MaxConcurrent > 0 {
		pool, err := ants.NewPool(cfg.MaxConcurrent)
		if err != nil {
			return nil, fmt.Errorf("operations: worker pool: %w", err)
		}
		d.pool = pool
	}
	return d, nil
}

// Close releases the worker pool.
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.Release()
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch validates args for the named operation, builds its argument
// vector and executes it. It never returns a Go error; every failure is
// carried in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	start := time.Now()
	res := d.dispatch(ctx, name, args)

	event := log.Info()
	if res.Err != nil {
		event = log.Warn().Err(res.Err)
	}
	event.
		Str("operation", name).
		Str("outcome", res.outcome()).
		Dur("duration", time.Since(start)).
		Msg("dispatch")
	label := name
	if res.Kind() == KindUnknownOperation {
		// caller-controlled; keep it out of metric labels
		label = "unknown"
	}
	observability.RecordDispatch(label, res.outcome(), time.Since(start))
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, args map[string]any) Result {
	plan, err := d.registry.Plan(name, args)
	if err != nil {
		return Result{Operation: name, Err: err}
	}

	req := tools.Request{Binary: d.binary, Args: plan.Args, Timeout: d.timeout}
	stdout, err := d.execute(ctx, req)
	if err != nil {
		return Result{Operation: name, Args: plan.Args, Err: err}
	}
	return Result{Operation: name, Args: plan.Args, Stdout: plan.PostProcess(stdout)}
}

type execResult struct {
	stdout string
	err    error
}

func (d *Dispatcher) execute(ctx context.Context, req tools.Request) (string, error) {
	if d.pool == nil {
		return d.exec.Run(ctx, req)
	}

	done := make(chan execResult, 1)
	err := d.pool.Submit(func() {
		stdout, err := d.exec.Run(ctx, req)
		done <- execResult{stdout: stdout, err: err}
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", tools.ErrExecution, err)
	}
	res := <-done
	return res.stdout, res.err
}
