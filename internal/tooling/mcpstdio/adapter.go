// Package mcpstdio implements the RPC-stdio (MCP-style) tool adapter: it
// launches the configured command once per adapter and speaks the
// Model Context Protocol over stdio, the same transport the teacher's own
// tool server exposes (just from the client side here).
package mcpstdio

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/tooling"
)

// Config describes the child process to launch for one adapter instance.
type Config struct {
	ToolName    string // name this adapter's tools are registered under
	Description string
	Command     string
	Args        []string
	Env         []string
}

// Adapter speaks MCP over stdio to a single long-lived child process,
// serializing calls with a mutex since the channel is a single ordered
// stdio stream (spec.md §5).
type Adapter struct {
	cfg Config
	mu  sync.Mutex
	cl  *client.Client
}

// NewAdapter launches the child process and completes the MCP handshake.
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	a := &Adapter{cfg: cfg}
	if err := a.connect(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) connect(ctx context.Context) error {
	cl, err := client.NewStdioMCPClient(a.cfg.Command, a.cfg.Env, a.cfg.Args...)
	if err != nil {
		return errs.Wrap(errs.KindToolExecutionError, "launching MCP server", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "codesession", Version: "1.0.0"}
	if _, err := cl.Initialize(ctx, initReq); err != nil {
		_ = cl.Close()
		return errs.Wrap(errs.KindToolExecutionError, "initializing MCP session", err)
	}
	a.cl = cl
	return nil
}

// reconnect restarts the child process after it dies, per the adapter's
// responsibility in spec.md §4.B.
func (a *Adapter) reconnect(ctx context.Context) error {
	if a.cl != nil {
		_ = a.cl.Close()
	}
	return a.connect(ctx)
}

func (a *Adapter) ListTools(ctx context.Context) ([]tooling.Tool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		if rerr := a.reconnect(ctx); rerr == nil {
			res, err = a.cl.ListTools(ctx, mcp.ListToolsRequest{})
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindToolExecutionError, "listing MCP tools", err)
		}
	}

	t := tooling.Tool{Name: a.cfg.ToolName, Description: a.cfg.Description}
	for _, mt := range res.Tools {
		t.Callables = append(t.Callables, tooling.Callable{
			Name:        mt.Name,
			Description: mt.Description,
			Binding:     mt.Name,
		})
	}
	if len(t.Callables) == 0 {
		t.Callables = append(t.Callables, tooling.Callable{Name: "", Description: "no MCP tools advertised"})
	}
	return []tooling.Tool{t}, nil
}

func (a *Adapter) Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	correlationID := uuid.NewString()
	req := mcp.CallToolRequest{}
	req.Params.Name = recipeName
	req.Params.Arguments = args

	logger.Get().Sugar().Debugw("mcpstdio.call", "tool", toolName, "recipe", recipeName, "correlation_id", correlationID)

	res, err := a.cl.CallTool(ctx, req)
	if err != nil {
		if rerr := a.reconnect(ctx); rerr != nil {
			return nil, errs.Wrap(errs.KindTransportError, "MCP child process unavailable", rerr)
		}
		res, err = a.cl.CallTool(ctx, req)
		if err != nil {
			return nil, errs.Wrap(errs.KindToolExecutionError, "MCP call failed", err)
		}
	}
	if res.IsError {
		return nil, errs.New(errs.KindToolExecutionError, extractText(res))
	}
	return extractText(res), nil
}

func extractText(res *mcp.CallToolResult) string {
	var out string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cl == nil {
		return nil
	}
	return a.cl.Close()
}

var _ tooling.Adapter = (*Adapter)(nil)
