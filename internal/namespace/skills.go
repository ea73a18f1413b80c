package namespace

import (
	"context"
	"fmt"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/skill"
)

// SkillsRoot implements the `skills` namespace. It holds a back
// reference to the owning Interp so skill invocation can run with the
// same shared namespace roots as top-level agent code (spec.md §4.D:
// "skills execute with the same namespace dict"). The reference is set
// by Dict.NewInterp (via bindInterp) once the Interp exists, breaking the otherwise circular
// construction order (Interp needs Roots; Roots need the Interp).
type SkillsRoot struct {
	Library *skill.Library
	interp  *evalengine.Interp
}

func (r *SkillsRoot) bindInterp(ip *evalengine.Interp) { r.interp = ip }

func (r *SkillsRoot) Dispatch(ctx context.Context, path []string, args []any, kwargs map[string]any) (any, error) {
	if len(path) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "skills must be used as skills.<name>(...) or a fixed method")
	}

	switch path[0] {
	case "list":
		res, err := r.Library.List(ctx)
		if err != nil {
			return nil, err
		}
		return toDSLValue(res)
	case "get":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		rec, err := r.Library.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		return toDSLValue(rec)
	case "search":
		q, err := argString(args, kwargs, 0, "query", true)
		if err != nil {
			return nil, err
		}
		limit, err := argInt(args, kwargs, 1, "limit", 5)
		if err != nil {
			return nil, err
		}
		res, err := r.Library.Search(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		return toDSLValue(res)
	case "create":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		source, err := argString(args, kwargs, 1, "source", true)
		if err != nil {
			return nil, err
		}
		description, err := argString(args, kwargs, 2, "description", false)
		if err != nil {
			return nil, err
		}
		overwriteV, _ := arg(args, kwargs, 3, "overwrite")
		overwrite, _ := overwriteV.(bool)
		if err := r.Library.Create(ctx, name, source, description, overwrite); err != nil {
			return nil, err
		}
		return true, nil
	case "delete":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		ok, err := r.Library.Delete(ctx, name)
		return ok, err
	case "invoke":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		rest := kwargsWithout(kwargs, "name")
		var restArgs []any
		if len(args) > 1 {
			restArgs = args[1:]
		}
		return r.Library.Invoke(ctx, r.interp, name, restArgs, rest)
	case "call_sync", "call_async":
		return nil, errs.New(errs.KindInvalidRequest, "call_sync/call_async must target a specific skill")
	default:
		async := false
		if n := len(path); path[n-1] == "call_async" {
			async = true
			path = path[:n-1]
		} else if n := len(path); path[n-1] == "call_sync" {
			path = path[:n-1]
		}
		if len(path) != 1 {
			return nil, errs.New(errs.KindInvalidRequest, fmt.Sprintf("unknown skills method: %v", path))
		}
		if async {
			return r.invokeAsync(ctx, path[0], args, kwargs), nil
		}
		return r.Library.Invoke(ctx, r.interp, path[0], args, kwargs)
	}
}

// invokeAsync launches a skill invocation on its own goroutine and
// returns immediately with an evalengine.Future, mirroring
// ToolsRoot.callAsync (spec.md §9 sync/async duality).
func (r *SkillsRoot) invokeAsync(ctx context.Context, name string, args []any, kwargs map[string]any) *evalengine.Future {
	fut := evalengine.NewFuture()
	if r.interp != nil {
		r.interp.TrackFuture(fut)
	}
	go func() {
		val, err := r.Library.Invoke(ctx, r.interp, name, args, kwargs)
		fut.Resolve(val, err)
	}()
	return fut
}

func kwargsWithout(kwargs map[string]any, key string) map[string]any {
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		if k != key {
			out[k] = v
		}
	}
	return out
}
