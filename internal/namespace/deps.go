package namespace

import (
	"context"
	"fmt"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/errs"
)

// DepsRoot implements the `deps` namespace. It is already the
// "controlled wrapper" spec.md §4.F requires: the Dispatch contract
// only ever exposes add/remove/list/sync, and agent DSL code has no
// reflection-like mechanism to reach the wrapped *depctl.Controller's
// unexported fields, so the "AttributeError on bypass" requirement
// holds by construction rather than needing an explicit guard.
type DepsRoot struct {
	Controller *depctl.Controller
}

func (r *DepsRoot) Dispatch(ctx context.Context, path []string, args []any, kwargs map[string]any) (any, error) {
	if len(path) != 1 {
		return nil, errs.New(errs.KindInvalidRequest, fmt.Sprintf("unknown deps method: %v", path))
	}
	switch path[0] {
	case "add":
		spec, err := argString(args, kwargs, 0, "spec", true)
		if err != nil {
			return nil, err
		}
		return r.Controller.Add(ctx, spec)
	case "remove":
		spec, err := argString(args, kwargs, 0, "spec", true)
		if err != nil {
			return nil, err
		}
		ok, err := r.Controller.Remove(ctx, spec)
		return ok, err
	case "list":
		specs, err := r.Controller.List(ctx)
		if err != nil {
			return nil, err
		}
		return toDSLValue(specs)
	case "sync":
		res, err := r.Controller.Sync(ctx)
		if err != nil {
			return nil, err
		}
		return toDSLValue(res)
	default:
		return nil, errs.New(errs.KindInvalidRequest, fmt.Sprintf("unknown deps method: %s", path[0]))
	}
}
