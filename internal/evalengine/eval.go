package evalengine

import (
	"context"
	"fmt"
)

func (ip *Interp) eval(ctx context.Context, env *Env, e Expr) (any, error) {
	switch v := e.(type) {
	case IntLit:
		return v.Value, nil
	case FloatLit:
		return v.Value, nil
	case StringLit:
		return v.Value, nil
	case BoolLit:
		return v.Value, nil
	case NullLit:
		return nil, nil
	case Ident:
		if val, ok := env.Get(v.Name); ok {
			return val, nil
		}
		if _, isRoot := ip.Roots[v.Name]; isRoot {
			return rootRef{name: v.Name}, nil
		}
		return nil, fmt.Errorf("undefined variable: %s", v.Name)
	case ListLit:
		items := make([]any, len(v.Items))
		for i, it := range v.Items {
			val, err := ip.eval(ctx, env, it)
			if err != nil {
				return nil, err
			}
			items[i] = val
		}
		return items, nil
	case MapLit:
		m := make(map[string]any, len(v.Keys))
		for i, k := range v.Keys {
			val, err := ip.eval(ctx, env, v.Values[i])
			if err != nil {
				return nil, err
			}
			m[k] = val
		}
		return m, nil
	case UnaryExpr:
		return ip.evalUnary(ctx, env, v)
	case BinaryExpr:
		return ip.evalBinary(ctx, env, v)
	case IndexExpr:
		return ip.evalIndex(ctx, env, v)
	case SelectorExpr:
		return ip.evalSelector(ctx, env, v)
	case CallExpr:
		return ip.evalCall(ctx, env, v)
	default:
		return nil, fmt.Errorf("unhandled expression type %T", e)
	}
}

// rootRef is the value produced by evaluating a bare namespace-root
// identifier such as `tools` on its own (outside of a call chain) —
// e.g. when it is only ever used as the base of a selector/call, which
// is the only supported usage. It is opaque to user code.
type rootRef struct {
	name string
	path []string
}

func (ip *Interp) evalUnary(ctx context.Context, env *Env, v UnaryExpr) (any, error) {
	x, err := ip.eval(ctx, env, v.X)
	if err != nil {
		return nil, err
	}
	switch v.Op {
	case "!":
		return !truthy(x), nil
	case "-":
		switch n := x.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, fmt.Errorf("unary - on non-numeric value")
		}
	default:
		return nil, fmt.Errorf("unknown unary operator %q", v.Op)
	}
}

func (ip *Interp) evalBinary(ctx context.Context, env *Env, v BinaryExpr) (any, error) {
	// short-circuit logical operators
	if v.Op == "&&" {
		x, err := ip.eval(ctx, env, v.X)
		if err != nil {
			return nil, err
		}
		if !truthy(x) {
			return false, nil
		}
		y, err := ip.eval(ctx, env, v.Y)
		if err != nil {
			return nil, err
		}
		return truthy(y), nil
	}
	if v.Op == "||" {
		x, err := ip.eval(ctx, env, v.X)
		if err != nil {
			return nil, err
		}
		if truthy(x) {
			return true, nil
		}
		y, err := ip.eval(ctx, env, v.Y)
		if err != nil {
			return nil, err
		}
		return truthy(y), nil
	}

	x, err := ip.eval(ctx, env, v.X)
	if err != nil {
		return nil, err
	}
	y, err := ip.eval(ctx, env, v.Y)
	if err != nil {
		return nil, err
	}

	switch v.Op {
	case "==":
		return equalValues(x, y), nil
	case "!=":
		return !equalValues(x, y), nil
	}

	if v.Op == "+" {
		if xs, ok := x.(string); ok {
			ys, ok := y.(string)
			if !ok {
				return nil, fmt.Errorf("cannot add string and non-string")
			}
			return xs + ys, nil
		}
	}

	xf, xIsFloat, xok := asNumber(x)
	yf, yIsFloat, yok := asNumber(y)
	if !xok || !yok {
		return nil, fmt.Errorf("operator %q requires numeric operands", v.Op)
	}
	isFloat := xIsFloat || yIsFloat

	switch v.Op {
	case "+", "-", "*", "/", "%":
		return arith(v.Op, xf, yf, isFloat)
	case "<", "<=", ">", ">=":
		return compare(v.Op, xf, yf), nil
	default:
		return nil, fmt.Errorf("unknown binary operator %q", v.Op)
	}
}

func arith(op string, x, y float64, isFloat bool) (any, error) {
	var r float64
	switch op {
	case "+":
		r = x + y
	case "-":
		r = x - y
	case "*":
		r = x * y
	case "/":
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		r = x / y
		isFloat = true
	case "%":
		if int64(y) == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return int64(x) % int64(y), nil
	}
	if isFloat {
		return r, nil
	}
	return int64(r), nil
}

func compare(op string, x, y float64) bool {
	switch op {
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	case ">=":
		return x >= y
	}
	return false
}

func asNumber(v any) (f float64, isFloat bool, ok bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), false, true
	case float64:
		return n, true, true
	default:
		return 0, false, false
	}
}

func equalValues(x, y any) bool {
	xf, xIsFloat, xok := asNumber(x)
	yf, yIsFloat, yok := asNumber(y)
	if xok && yok {
		_ = xIsFloat
		_ = yIsFloat
		return xf == yf
	}
	return x == y
}

func (ip *Interp) evalIndex(ctx context.Context, env *Env, v IndexExpr) (any, error) {
	x, err := ip.eval(ctx, env, v.X)
	if err != nil {
		return nil, err
	}
	idx, err := ip.eval(ctx, env, v.Index)
	if err != nil {
		return nil, err
	}
	switch container := x.(type) {
	case []any:
		i, _, ok := asNumber(idx)
		if !ok {
			return nil, fmt.Errorf("list index must be numeric")
		}
		ii := int(i)
		if ii < 0 || ii >= len(container) {
			return nil, fmt.Errorf("list index out of range: %d", ii)
		}
		return container[ii], nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("map index must be a string")
		}
		val, ok := container[key]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", key)
		}
		return val, nil
	case string:
		i, _, ok := asNumber(idx)
		if !ok {
			return nil, fmt.Errorf("string index must be numeric")
		}
		runes := []rune(container)
		ii := int(i)
		if ii < 0 || ii >= len(runes) {
			return nil, fmt.Errorf("string index out of range: %d", ii)
		}
		return string(runes[ii]), nil
	default:
		return nil, fmt.Errorf("value is not indexable")
	}
}

// evalSelector handles plain (non-call) selector access: map field
// access (m.key equivalent to m["key"]) or, when X resolves to a
// rootRef, builds a deeper rootRef chain so a later CallExpr can
// flatten it back into a dispatch path.
func (ip *Interp) evalSelector(ctx context.Context, env *Env, v SelectorExpr) (any, error) {
	if path, root, ok := flattenSelector(v); ok {
		if _, isRoot := ip.Roots[root]; isRoot {
			return rootRef{name: root, path: path}, nil
		}
	}
	x, err := ip.eval(ctx, env, v.X)
	if err != nil {
		return nil, err
	}
	if m, ok := x.(map[string]any); ok {
		val, ok := m[v.Sel]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", v.Sel)
		}
		return val, nil
	}
	return nil, fmt.Errorf("cannot select %q on non-map value", v.Sel)
}
