package namespace

import (
	"context"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/tooling"
)

// ToolsRoot implements the `tools` namespace: attribute access dispatch
// (tools.X / tools.X.Y for the escape hatch and recipe forms) plus the
// two fixed methods list/search (spec.md §4.D).
type ToolsRoot struct {
	Registry *tooling.Registry

	interp *evalengine.Interp
}

func (r *ToolsRoot) bindInterp(ip *evalengine.Interp) { r.interp = ip }

func (r *ToolsRoot) Dispatch(ctx context.Context, path []string, args []any, kwargs map[string]any) (any, error) {
	if len(path) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "tools must be used as tools.<name> or tools.list()/tools.search(...)")
	}
	switch path[0] {
	case "list":
		return toDSLValue(r.Registry.List())
	case "search":
		q, err := argString(args, kwargs, 0, "query", true)
		if err != nil {
			return nil, err
		}
		return toDSLValue(r.Registry.Search(q))
	}

	async := false
	if n := len(path); n > 0 && path[n-1] == "call_async" {
		async = true
		path = path[:n-1]
	} else if n := len(path); n > 0 && path[n-1] == "call_sync" {
		path = path[:n-1]
	}
	if len(path) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "call_sync/call_async must target a specific tool")
	}

	toolName := path[0]
	recipeName := ""
	if len(path) > 1 {
		recipeName = path[1]
	}
	if len(args) > 0 {
		return nil, errs.New(errs.KindInvalidRequest, "tool calls use keyword arguments only")
	}
	if async {
		return r.callAsync(ctx, toolName, recipeName, kwargs), nil
	}
	return r.Registry.Call(ctx, toolName, recipeName, kwargs)
}

// callAsync launches the tool call on its own goroutine and returns
// immediately with an evalengine.Future the DSL resolves via
// await(handle) (spec.md §9 sync/async duality; §4.F "must be awaited
// before execute returns" — enforced by the interpreter awaiting any
// future it tracks here that the program itself never collects).
func (r *ToolsRoot) callAsync(ctx context.Context, toolName, recipeName string, kwargs map[string]any) *evalengine.Future {
	fut := evalengine.NewFuture()
	if r.interp != nil {
		r.interp.TrackFuture(fut)
	}
	go func() {
		val, err := r.Registry.Call(ctx, toolName, recipeName, kwargs)
		fut.Resolve(val, err)
	}()
	return fut
}
