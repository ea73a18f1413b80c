// Package namespace builds the four agent-visible namespace roots
// (tools, skills, artifacts, deps) as evalengine.NamespaceRoot
// implementations, and assembles/bootstraps them into a Dict (spec.md
// §4.D, §4.H).
package namespace

import (
	"fmt"

	"github.com/kagent-dev/codesession/internal/errs"
)

// arg resolves the i'th positional-or-named parameter: positional
// args[i] wins if present, else kwargs[name], else ok=false. This
// mirrors the DSL's own permissive calling convention (spec.md §9:
// "tools.curl.get(url=...)" uses kwargs; internal facade methods like
// "skills.create(name, source, description)" read positionally).
func arg(args []any, kwargs map[string]any, i int, name string) (any, bool) {
	if i < len(args) {
		return args[i], true
	}
	if v, ok := kwargs[name]; ok {
		return v, true
	}
	return nil, false
}

func argString(args []any, kwargs map[string]any, i int, name string, required bool) (string, error) {
	v, ok := arg(args, kwargs, i, name)
	if !ok {
		if required {
			return "", errs.New(errs.KindMissingArgument, fmt.Sprintf("missing argument: %s", name))
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.New(errs.KindArgumentTypeError, fmt.Sprintf("%s must be a string", name))
	}
	return s, nil
}

func argInt(args []any, kwargs map[string]any, i int, name string, def int) (int, error) {
	v, ok := arg(args, kwargs, i, name)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errs.New(errs.KindArgumentTypeError, fmt.Sprintf("%s must be an integer", name))
	}
}

func argBytes(args []any, kwargs map[string]any, i int, name string) ([]byte, error) {
	v, ok := arg(args, kwargs, i, name)
	if !ok {
		return nil, errs.New(errs.KindMissingArgument, fmt.Sprintf("missing argument: %s", name))
	}
	switch d := v.(type) {
	case string:
		return []byte(d), nil
	case []byte:
		return d, nil
	default:
		return nil, errs.New(errs.KindArgumentTypeError, fmt.Sprintf("%s must be string or bytes", name))
	}
}

func argMap(args []any, kwargs map[string]any, i int, name string) map[string]any {
	v, ok := arg(args, kwargs, i, name)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}
