package evalengine

import (
	"context"
	"fmt"

	"github.com/kagent-dev/codesession/internal/errs"
)

// flattenSelector walks a chain of SelectorExprs down to its root Ident,
// returning the dotted path (root-to-leaf order, excluding the root
// itself) and the root identifier's name. ok is false if the base of
// the chain is not a bare identifier.
func flattenSelector(e Expr) (path []string, root string, ok bool) {
	switch v := e.(type) {
	case SelectorExpr:
		p, r, ok := flattenSelector(v.X)
		if !ok {
			return nil, "", false
		}
		return append(p, v.Sel), r, true
	case Ident:
		return nil, v.Name, true
	default:
		return nil, "", false
	}
}

func (ip *Interp) evalArgs(ctx context.Context, env *Env, args []Arg) ([]any, map[string]any, error) {
	var positional []any
	kwargs := map[string]any{}
	for _, a := range args {
		val, err := ip.eval(ctx, env, a.X)
		if err != nil {
			return nil, nil, err
		}
		if a.Name == "" {
			positional = append(positional, val)
		} else {
			kwargs[a.Name] = val
		}
	}
	return positional, kwargs, nil
}

func (ip *Interp) evalCall(ctx context.Context, env *Env, c CallExpr) (any, error) {
	if path, root, ok := flattenSelector(c.Fun); ok {
		if r, isRoot := ip.Roots[root]; isRoot {
			args, kwargs, err := ip.evalArgs(ctx, env, c.Args)
			if err != nil {
				return nil, err
			}
			return r.Dispatch(ctx, path, args, kwargs)
		}
	}

	id, ok := c.Fun.(Ident)
	if !ok {
		return nil, fmt.Errorf("expression is not callable")
	}

	if fn, ok := ip.Funcs[id.Name]; ok {
		return ip.callUserFunc(ctx, env, fn, c.Args)
	}
	if bi, ok := builtins[id.Name]; ok {
		args, _, err := ip.evalArgs(ctx, env, c.Args)
		if err != nil {
			return nil, err
		}
		return bi(ctx, ip, args)
	}
	return nil, fmt.Errorf("undefined function: %s", id.Name)
}

func (ip *Interp) callUserFunc(ctx context.Context, callerEnv *Env, fn FuncDecl, callArgs []Arg) (any, error) {
	args, kwargs, err := ip.evalArgs(ctx, callerEnv, callArgs)
	if err != nil {
		return nil, err
	}
	return ip.CallDecl(ctx, fn, args, kwargs)
}

// CallDecl invokes a parsed function declaration directly, binding
// positional args then kwargs against its Params (missing required
// parameter -> MissingArgument, unexpected key -> UnknownArgument),
// inside a fresh top-level scope. This is the entry point skill
// invocation uses: a skill's single `fn run(...)` declaration is bound
// against agent-supplied kwargs and run with the shared namespace
// roots (ip.Roots) still in effect, per a fresh `params` binding per
// call.
func (ip *Interp) CallDecl(ctx context.Context, fn FuncDecl, args []any, kwargs map[string]any) (any, error) {
	fnEnv := NewEnv(nil)
	used := map[string]bool{}
	for i, p := range fn.Params {
		if i < len(args) {
			fnEnv.Set(p.Name, args[i])
			used[p.Name] = true
			continue
		}
		if v, ok := kwargs[p.Name]; ok {
			fnEnv.Set(p.Name, v)
			used[p.Name] = true
			continue
		}
		if p.Default != nil {
			val, err := ip.eval(ctx, fnEnv, p.Default)
			if err != nil {
				return nil, err
			}
			fnEnv.Set(p.Name, val)
			used[p.Name] = true
			continue
		}
		return nil, errs.New(errs.KindMissingArgument, fmt.Sprintf("missing argument: %s", p.Name))
	}
	for k := range kwargs {
		if !used[k] {
			return nil, errs.New(errs.KindUnknownArgument, fmt.Sprintf("unknown argument: %s", k))
		}
	}

	val, _, err := ip.execStmts(ctx, fnEnv, fn.Body)
	return val, err
}
