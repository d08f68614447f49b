// Package mcpserver exposes the operation catalog and the raw command path
// as tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/rawcmd"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

const (
	ServerName  = "reconctl"
	RawToolName = "execute_custom_nmap_command"
)

const rawToolDescription = "Run an arbitrary command line through the scan host's shell. " +
	"The line is shell-interpreted verbatim with no quoting or validation; " +
	"use the catalog tools unless a scan cannot be expressed any other way."

// Dispatcher is the catalog entry point. *operations.Dispatcher satisfies it.
type Dispatcher interface {
	Registry() *operations.Registry
	Dispatch(ctx context.Context, name string, args map[string]any) operations.Result
}

// RawRunner runs an unconstrained shell line. *rawcmd.Path satisfies it.
type RawRunner interface {
	Run(ctx context.Context, commandLine string) (string, error)
}

// New builds a server with one tool per catalog operation, plus the raw
// command tool when raw is non-nil.
func New(d Dispatcher, raw RawRunner, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(Tools(d, raw)...)
	return s
}

// Serve blocks serving s over stdin/stdout.
func Serve(s *server.MCPServer) error {
	log.Info().Msg("serving tools over stdio")
	return server.ServeStdio(s)
}

// Tools returns the tool set in catalog order; the raw tool, when present,
// comes last.
func Tools(d Dispatcher, raw RawRunner) []server.ServerTool {
	ops := d.Registry().List()
	out := make([]server.ServerTool, 0, len(ops)+1)
	for _, op := range ops {
		out = append(out, server.ServerTool{
			Tool:    toolFor(op),
			Handler: catalogHandler(d, op.Name),
		})
	}
	if raw != nil {
		out = append(out, server.ServerTool{
			Tool:    rawTool(),
			Handler: rawHandler(raw),
		})
	}
	return out
}

func toolFor(op operations.Operation) mcp.Tool {
	opts := make([]mcp.ToolOption, 0, len(op.Params)+1)
	opts = append(opts, mcp.WithDescription(op.Description))
	for _, p := range op.Params {
		opts = append(opts, paramOption(p))
	}
	return mcp.NewTool(op.Name, opts...)
}

func paramOption(p operations.Parameter) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(p.Description)}
	if p.Required() {
		props = append(props, mcp.Required())
	}

	if p.Type == operations.TypeInteger {
		if n, ok := p.Default.(int); ok {
			props = append(props, mcp.DefaultNumber(float64(n)))
		}
		if p.Min != nil {
			props = append(props, mcp.Min(float64(*p.Min)))
		}
		return mcp.WithNumber(p.Name, props...)
	}

	if p.Type == operations.TypeEnum {
		props = append(props, mcp.Enum(p.Choices...))
	}
	if s, ok := p.Default.(string); ok {
		props = append(props, mcp.DefaultString(s))
	}
	return mcp.WithString(p.Name, props...)
}

func catalogHandler(d Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := d.Dispatch(ctx, name, req.GetArguments())
		if !res.OK() {
			return mcp.NewToolResultError(res.Text()), nil
		}
		return mcp.NewToolResultText(res.Text()), nil
	}
}

func rawTool() mcp.Tool {
	return mcp.NewTool(RawToolName,
		mcp.WithDescription(rawToolDescription),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Full command line, for example: nmap -sV -p 22 10.0.0.5"),
		),
	)
}

func rawHandler(raw RawRunner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		line, _ := req.GetArguments()["command"].(string)
		if strings.TrimSpace(line) == "" {
			return mcp.NewToolResultError(fmt.Sprintf("Error (%s): command is required", operations.KindInvalidParameter)), nil
		}
		text, err := raw.Run(ctx, line)
		if err != nil {
			return mcp.NewToolResultError(text), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

var (
	_ Dispatcher = (*operations.Dispatcher)(nil)
	_ RawRunner  = (*rawcmd.Path)(nil)
)
