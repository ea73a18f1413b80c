package namespace

import (
	"context"
	"fmt"

	"github.com/kagent-dev/codesession/internal/artifact"
	"github.com/kagent-dev/codesession/internal/errs"
)

// ArtifactsRoot implements the `artifacts` namespace: save/load/list/delete.
type ArtifactsRoot struct {
	Store *artifact.Store
}

func (r *ArtifactsRoot) Dispatch(ctx context.Context, path []string, args []any, kwargs map[string]any) (any, error) {
	if len(path) != 1 {
		return nil, errs.New(errs.KindInvalidRequest, fmt.Sprintf("unknown artifacts method: %v", path))
	}
	switch path[0] {
	case "save":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		data, err := argBytes(args, kwargs, 1, "data")
		if err != nil {
			return nil, err
		}
		description, err := argString(args, kwargs, 2, "description", false)
		if err != nil {
			return nil, err
		}
		metadata := argMap(args, kwargs, 3, "metadata")
		if err := r.Store.Save(ctx, name, data, description, metadata); err != nil {
			return nil, err
		}
		return true, nil
	case "load":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		rec, err := r.Store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		return toDSLValue(rec)
	case "list":
		res, err := r.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		return toDSLValue(res)
	case "delete":
		name, err := argString(args, kwargs, 0, "name", true)
		if err != nil {
			return nil, err
		}
		ok, err := r.Store.Delete(ctx, name)
		return ok, err
	default:
		return nil, errs.New(errs.KindInvalidRequest, fmt.Sprintf("unknown artifacts method: %s", path[0]))
	}
}
