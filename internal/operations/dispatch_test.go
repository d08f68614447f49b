package operations

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/reconctl/internal/testutil/testlog"
	"github.com/danmuck/reconctl/internal/tools"
)

// fakeExecutor stands in for the process executor and records every request
// it would have spawned.
type fakeExecutor struct {
	mu       sync.Mutex
	requests []tools.Request
	stdout   string
	err      error
	delay    time.Duration
	running  atomic.Int32
	peak     atomic.Int32
}

func (f *fakeExecutor) Run(ctx context.Context, req tools.Request) (string, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.stdout, f.err
}

func (f *fakeExecutor) spawned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestDispatcher(t *testing.T, exec Executor, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(MustCatalog(), exec, cfg)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestDispatchPortScanVector(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{stdout: "80/tcp open http\n443/tcp open https"}
	d := newTestDispatcher(t, exec, DispatcherConfig{})

	res := d.Dispatch(context.Background(), "port_scan", map[string]any{"target": "127.0.0.1", "ports": "80,443"})
	if !res.OK() {
		t.Fatalf("dispatch failed: %v", res.Err)
	}
	want := []string{"-p", "80,443", "-T4", "127.0.0.1"}
	if exec.spawned() != 1 || !reflect.DeepEqual(exec.requests[0].Args, want) {
		t.Fatalf("unexpected argv: %q", exec.requests)
	}
	if exec.requests[0].Binary != tools.DefaultBinary || exec.requests[0].Timeout != tools.DefaultTimeout {
		t.Fatalf("unexpected request defaults: %+v", exec.requests[0])
	}
	if res.Text() != exec.stdout {
		t.Fatalf("stdout must be returned unchanged, got %q", res.Text())
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{}
	d := newTestDispatcher(t, exec, DispatcherConfig{})

	res := d.Dispatch(context.Background(), "nonexistent-op", map[string]any{})
	if !errors.Is(res.Err, ErrUnknownOperation) || res.Kind() != KindUnknownOperation {
		t.Fatalf("expected unknown operation, got %v", res.Err)
	}
	if !strings.Contains(res.Text(), "unknown_operation") {
		t.Fatalf("failure text must name its kind: %q", res.Text())
	}
	if exec.spawned() != 0 {
		t.Fatalf("unknown operation reached the executor")
	}
}

func TestDispatchInvalidParametersNeverSpawn(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{}
	d := newTestDispatcher(t, exec, DispatcherConfig{})

	cases := []struct {
		name string
		args map[string]any
	}{
		{"port_scan", map[string]any{"target": "127.0.0.1"}},
		{"port_scan", map[string]any{"ports": "80"}},
		{"simple_scan", nil},
		{"simple_scan", map[string]any{"target": 127}},
		{"vulscan_basic", map[string]any{"target": "127.0.0.1", "database": "nvd.csv"}},
		{"vulscan_output_limit", map[string]any{"target": "127.0.0.1", "limit": -1}},
		{"vulscan_custom_output", map[string]any{"target": "127.0.0.1", "custom_template": "{id}',vulscandb=x"}},
		{"scan_top_ports", map[string]any{"target": "127.0.0.1", "num_ports": "ten"}},
		{"nmap_help", map[string]any{"target": "127.0.0.1"}},
	}
	for _, tc := range cases {
		res := d.Dispatch(context.Background(), tc.name, tc.args)
		if res.Kind() != KindInvalidParameter {
			t.Fatalf("%s %v: expected invalid parameter, got %v", tc.name, tc.args, res.Err)
		}
		if res.Args != nil {
			t.Fatalf("%s: failed dispatch should carry no argv", tc.name)
		}
	}
	if exec.spawned() != 0 {
		t.Fatalf("invalid parameters reached the executor %d times", exec.spawned())
	}
}

func TestDispatchClassifiesExecutorFailures(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		kind FailureKind
	}{
		{fmt.Errorf("%w after 1m0s", tools.ErrTimedOut), KindTimedOut},
		{fmt.Errorf("%w: exec: \"nmap\": executable file not found in $PATH", tools.ErrExecution), KindExecutionError},
	}
	for _, tc := range cases {
		d := newTestDispatcher(t, &fakeExecutor{stdout: "ignored", err: tc.err}, DispatcherConfig{})
		res := d.Dispatch(context.Background(), "ping_scan", map[string]any{"target": "10.0.0.0/24"})
		if res.Kind() != tc.kind {
			t.Fatalf("expected %s, got %s (%v)", tc.kind, res.Kind(), res.Err)
		}
		if res.Stdout != "" || strings.Contains(res.Text(), "ignored") {
			t.Fatalf("failure leaked stdout: %q", res.Text())
		}
		if !strings.Contains(res.Text(), string(tc.kind)) {
			t.Fatalf("failure text must name its kind: %q", res.Text())
		}
	}
}

func TestFailureTextNamesKindOnce(t *testing.T) {
	testlog.Start(t)
	d := newTestDispatcher(t, &fakeExecutor{err: fmt.Errorf("%w: fork/exec nmap: permission denied", tools.ErrExecution)}, DispatcherConfig{})

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nonexistent-op", nil, `Error (unknown_operation): no operation named "nonexistent-op"`},
		{"ping_scan", nil, `Error (invalid_parameter): missing required parameter "target"`},
		{"ping_scan", map[string]any{"target": "10.0.0.1"}, "Error (execution_error): fork/exec nmap: permission denied"},
	}
	for _, tc := range cases {
		res := d.Dispatch(context.Background(), tc.name, tc.args)
		if got := res.Text(); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestDispatchIsDeterministic(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{stdout: "Nmap done: 1 IP address (1 host up)"}
	d := newTestDispatcher(t, exec, DispatcherConfig{})
	args := map[string]any{"target": "scanme.nmap.org", "database": "exploitdb.csv", "limit": 3}

	first := d.Dispatch(context.Background(), "vulscan_output_limit", args)
	for i := 0; i < 5; i++ {
		again := d.Dispatch(context.Background(), "vulscan_output_limit", args)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("dispatch %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestDispatchOutputLimitKeepsFirstLines(t *testing.T) {
	testlog.Start(t)
	lines := []string{
		"CVE-2021-0001 - first",
		"CVE-2021-0002 - second",
		"CVE-2021-0003 - third",
		"CVE-2021-0004 - fourth",
		"CVE-2021-0005 - fifth",
	}
	exec := &fakeExecutor{stdout: strings.Join(lines, "\n") + "\n"}
	d := newTestDispatcher(t, exec, DispatcherConfig{})

	for n := 0; n <= len(lines)+1; n++ {
		res := d.Dispatch(context.Background(), "vulscan_output_limit", map[string]any{"target": "127.0.0.1", "limit": n})
		if !res.OK() {
			t.Fatalf("limit=%d: %v", n, res.Err)
		}
		keep := min(n, len(lines))
		if want := strings.Join(lines[:keep], "\n"); res.Text() != want {
			t.Fatalf("limit=%d: got %q want %q", n, res.Text(), want)
		}
	}

	res := d.Dispatch(context.Background(), "vulscan_output_limit", map[string]any{"target": "127.0.0.1"})
	if strings.Count(res.Text(), "\n") != len(lines)-1 {
		t.Fatalf("default limit should keep all five lines: %q", res.Text())
	}
}

func TestDispatchHonorsBinaryAndTimeout(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{}
	d := newTestDispatcher(t, exec, DispatcherConfig{Binary: "/usr/local/bin/nmap", Timeout: 5 * time.Second})
	d.Dispatch(context.Background(), "nmap_help", nil)
	if got := exec.requests[0]; got.Binary != "/usr/local/bin/nmap" || got.Timeout != 5*time.Second {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	testlog.Start(t)
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	d := newTestDispatcher(t, exec, DispatcherConfig{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := d.Dispatch(context.Background(), "ping_scan", map[string]any{"target": fmt.Sprintf("10.0.0.%d", i)})
			if !res.OK() {
				t.Errorf("dispatch %d: %v", i, res.Err)
			}
		}(i)
	}
	wg.Wait()

	if exec.spawned() != 8 {
		t.Fatalf("expected 8 executions, got %d", exec.spawned())
	}
	if peak := exec.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent executions, saw %d", peak)
	}
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	testlog.Start(t)
	if _, err := NewDispatcher(nil, &fakeExecutor{}, DispatcherConfig{}); err == nil {
		t.Fatalf("expected registry error")
	}
	if _, err := NewDispatcher(MustCatalog(), nil, DispatcherConfig{}); err == nil {
		t.Fatalf("expected executor error")
	}
}
