package mcpserver

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/testutil/testlog"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type recordingExecutor struct {
	mu     sync.Mutex
	argv   [][]string
	stdout string
	err    error
}

func (e *recordingExecutor) Run(ctx context.Context, req tools.Request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.argv = append(e.argv, req.Args)
	if e.err != nil {
		return "", e.err
	}
	return e.stdout, nil
}

type recordingRaw struct {
	lines []string
	err   error
}

func (r *recordingRaw) Run(ctx context.Context, commandLine string) (string, error) {
	r.lines = append(r.lines, commandLine)
	if r.err != nil {
		return "Error: Command timed out after 2m0s", r.err
	}
	return "STDOUT:\nok\n", nil
}

func newDispatcher(t *testing.T, exec operations.Executor) *operations.Dispatcher {
	t.Helper()
	d, err := operations.NewDispatcher(operations.MustCatalog(), exec, operations.DispatcherConfig{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func findTool(t *testing.T, set []server.ServerTool, name string) server.ServerTool {
	t.Helper()
	for _, st := range set {
		if st.Tool.Name == name {
			return st
		}
	}
	t.Fatalf("tool %q not registered", name)
	return server.ServerTool{}
}

func call(t *testing.T, st server.ServerTool, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = st.Tool.Name
	req.Params.Arguments = args
	res, err := st.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler %s: %v", st.Tool.Name, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestToolsCoverCatalogAndRawToggle(t *testing.T) {
	testlog.Start(t)
	d := newDispatcher(t, &recordingExecutor{})
	n := d.Registry().Len()

	withRaw := Tools(d, &recordingRaw{})
	if len(withRaw) != n+1 {
		t.Fatalf("expected %d tools, got %d", n+1, len(withRaw))
	}
	if withRaw[len(withRaw)-1].Tool.Name != RawToolName {
		t.Fatalf("raw tool should be last, got %q", withRaw[len(withRaw)-1].Tool.Name)
	}

	withoutRaw := Tools(d, nil)
	if len(withoutRaw) != n {
		t.Fatalf("expected %d tools without raw, got %d", n, len(withoutRaw))
	}
	for _, st := range withoutRaw {
		if st.Tool.Name == RawToolName {
			t.Fatalf("raw tool registered while disabled")
		}
	}
}

func TestToolSchemaMirrorsParameters(t *testing.T) {
	testlog.Start(t)
	set := Tools(newDispatcher(t, &recordingExecutor{}), nil)

	portScan := findTool(t, set, "port_scan").Tool
	required := slices.Clone(portScan.InputSchema.Required)
	slices.Sort(required)
	if !reflect.DeepEqual(required, []string{"ports", "target"}) {
		t.Fatalf("port_scan required: %v", required)
	}

	top := findTool(t, set, "scan_top_ports").Tool
	if slices.Contains(top.InputSchema.Required, "num_ports") {
		t.Fatalf("num_ports has a default and must be optional")
	}
	numPorts, ok := top.InputSchema.Properties["num_ports"].(map[string]any)
	if !ok {
		t.Fatalf("num_ports schema missing")
	}
	if numPorts["type"] != "number" || numPorts["default"] != float64(10) || numPorts["minimum"] != float64(1) {
		t.Fatalf("num_ports schema: %#v", numPorts)
	}

	vulscan := findTool(t, set, "vulscan_basic").Tool
	db, ok := vulscan.InputSchema.Properties["database"].(map[string]any)
	if !ok {
		t.Fatalf("database schema missing")
	}
	if !reflect.DeepEqual(db["enum"], operations.VulscanDatabases) || db["default"] != "cve.csv" {
		t.Fatalf("database schema: %#v", db)
	}
}

func TestCatalogHandlerDispatches(t *testing.T) {
	testlog.Start(t)
	exec := &recordingExecutor{stdout: "PORT   STATE SERVICE\n22/tcp open  ssh\n"}
	set := Tools(newDispatcher(t, exec), nil)

	text, isError := call(t, findTool(t, set, "port_scan"), map[string]any{"target": "10.0.0.5", "ports": "22"})
	if text != exec.stdout || isError {
		t.Fatalf("unexpected result: %q isError=%t", text, isError)
	}
	want := [][]string{{"-p", "22", "-T4", "10.0.0.5"}}
	if !reflect.DeepEqual(exec.argv, want) {
		t.Fatalf("argv: got %v want %v", exec.argv, want)
	}
}

func TestCatalogHandlerReportsInvalidParameters(t *testing.T) {
	testlog.Start(t)
	exec := &recordingExecutor{}
	set := Tools(newDispatcher(t, exec), nil)

	text, isError := call(t, findTool(t, set, "port_scan"), map[string]any{"target": "10.0.0.5"})
	if !strings.HasPrefix(text, "Error (invalid_parameter)") {
		t.Fatalf("expected invalid parameter text, got %q", text)
	}
	if !isError {
		t.Fatalf("invalid parameters must be flagged as a tool error")
	}
	if len(exec.argv) != 0 {
		t.Fatalf("executor must not run on invalid input")
	}
}

func TestRawHandlerPassesLineVerbatim(t *testing.T) {
	testlog.Start(t)
	raw := &recordingRaw{}
	set := Tools(newDispatcher(t, &recordingExecutor{}), raw)
	st := findTool(t, set, RawToolName)

	line := "nmap -sV 10.0.0.5 | grep open"
	if text, isError := call(t, st, map[string]any{"command": line}); text != "STDOUT:\nok\n" || isError {
		t.Fatalf("unexpected result: %q isError=%t", text, isError)
	}
	if !reflect.DeepEqual(raw.lines, []string{line}) {
		t.Fatalf("raw lines: %v", raw.lines)
	}

	if text, isError := call(t, st, map[string]any{"command": "  "}); !strings.Contains(text, "command is required") || !isError {
		t.Fatalf("expected missing command tool error, got %q isError=%t", text, isError)
	}
	if len(raw.lines) != 1 {
		t.Fatalf("blank command must not run")
	}
}

func TestFailuresAreFlaggedAsToolErrors(t *testing.T) {
	testlog.Start(t)
	exec := &recordingExecutor{err: fmt.Errorf("%w after 60s", tools.ErrTimedOut)}
	raw := &recordingRaw{err: fmt.Errorf("%w after 2m0s", tools.ErrTimedOut)}
	set := Tools(newDispatcher(t, exec), raw)

	cases := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"timed out dispatch", "ping_scan", map[string]any{"target": "10.0.0.5"}, "Error (timed_out)"},
		{"missing parameter", "ping_scan", map[string]any{}, "Error (invalid_parameter)"},
		{"raw timeout", RawToolName, map[string]any{"command": "nmap -A 10.0.0.5"}, "timed out"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, isError := call(t, findTool(t, set, tc.tool), tc.args)
			if !isError {
				t.Fatalf("expected isError, got text %q", text)
			}
			if !strings.Contains(text, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, text)
			}
		})
	}
}

func TestNewRegistersTools(t *testing.T) {
	testlog.Start(t)
	if s := New(newDispatcher(t, &recordingExecutor{}), nil, "test"); s == nil {
		t.Fatalf("expected server")
	}
}
