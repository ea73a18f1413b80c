package evalengine

import (
	"context"
	"fmt"
	"strconv"
)

type builtinFunc func(ctx context.Context, ip *Interp, args []any) (any, error)

var builtins = map[string]builtinFunc{
	"print": biPrint,
	"len":   biLen,
	"str":   biStr,
	"int":   biInt,
	"float": biFloat,
	"bool":  biBool,
	"await": biAwait,
}

// biAwait resolves a call_async handle, blocking until the underlying
// goroutine finishes or ctx is done. Awaiting a plain (already
// synchronous) value is a no-op that returns it unchanged, so agent
// code can await uniformly without checking which mode a call used.
func biAwait(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("await expects exactly one argument")
	}
	fut, ok := args[0].(*Future)
	if !ok {
		return args[0], nil
	}
	return fut.Await(ctx)
}

func biPrint(ctx context.Context, ip *Interp, args []any) (any, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = stringify(a)
	}
	line := ""
	for i, p := range parts {
		if i > 0 {
			line += " "
		}
		line += p
	}
	line += "\n"
	if ip.Print != nil {
		ip.Print(line)
	}
	return nil, nil
}

func biLen(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len expects exactly one argument")
	}
	switch v := args[0].(type) {
	case string:
		return int64(len([]rune(v))), nil
	case []any:
		return int64(len(v)), nil
	case map[string]any:
		return int64(len(v)), nil
	default:
		return nil, fmt.Errorf("len: unsupported value type")
	}
}

func biStr(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str expects exactly one argument")
	}
	return stringify(args[0]), nil
}

func biInt(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("int expects exactly one argument")
	}
	switch v := args[0].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int", v)
		}
		return n, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("int: unsupported value type")
	}
}

func biFloat(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("float expects exactly one argument")
	}
	switch v := args[0].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("float: unsupported value type")
	}
}

func biBool(ctx context.Context, ip *Interp, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bool expects exactly one argument")
	}
	return truthy(args[0]), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		s := "["
		for i, it := range t {
			if i > 0 {
				s += ", "
			}
			s += stringify(it)
		}
		return s + "]"
	case map[string]any:
		s := "{"
		first := true
		for k, val := range t {
			if !first {
				s += ", "
			}
			first = false
			s += k + ": " + stringify(val)
		}
		return s + "}"
	case *Future:
		return "<future>"
	default:
		return fmt.Sprintf("%v", t)
	}
}
