package cli

import (
	"fmt"
	"strconv"

	"github.com/kagent-dev/codesession/internal/errs"
)

// Build produces the argv for invoking recipe on def with the given
// user-supplied args, or for the escape-hatch invocation when recipeName
// is empty. It implements spec.md §4.C steps 1-3 and 5.
func Build(def ToolDefinition, recipeName string, args map[string]any) ([]string, error) {
	if recipeName == "" {
		return buildEscapeHatch(def, args)
	}
	recipe, ok := def.Recipes[recipeName]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "unknown recipe: "+recipeName)
	}
	merged := map[string]any{}
	for k, v := range recipe.Preset {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}

	allowed := map[string]bool{}
	for name, spec := range recipe.Params {
		allowed[name] = true
		if _, present := merged[name]; !present && spec.HasDefault {
			merged[name] = spec.Default
		}
	}
	// A recipe's params define the parameter list exposed to the agent;
	// preset keys come from the schema and are not themselves re-validated
	// against params (they're already validated as known schema keys).
	for k := range args {
		if !allowed[k] {
			return nil, errs.New(errs.KindUnknownArgument, "unknown argument: "+k)
		}
	}

	return buildArgv(def, merged)
}

func buildEscapeHatch(def ToolDefinition, args map[string]any) ([]string, error) {
	known := knownKeys(def.Schema)
	for k := range args {
		if !known[k] {
			return nil, errs.New(errs.KindUnknownArgument, "unknown argument: "+k)
		}
	}
	return buildArgv(def, args)
}

// buildArgv validates merged against the schema and emits argv in the
// fixed order: executable, options in schema declaration order, then
// positionals in their declared order (spec.md §4.C.3).
func buildArgv(def ToolDefinition, merged map[string]any) ([]string, error) {
	argv := []string{def.Command}

	for _, opt := range def.Schema.Options {
		val, present := merged[opt.Name]
		if !present {
			continue
		}
		flag := "--" + opt.Name
		if opt.Short != "" && len(opt.Name) > 1 {
			flag = "-" + opt.Short
		}
		switch opt.Type {
		case TypeBoolean:
			b, ok := val.(bool)
			if !ok {
				return nil, errs.New(errs.KindArgumentTypeError, "option "+opt.Name+" must be boolean")
			}
			if b {
				argv = append(argv, flag)
			}
		case TypeString:
			s, err := asString(opt.Name, val)
			if err != nil {
				return nil, err
			}
			argv = append(argv, flag, s)
		case TypeInteger:
			s, err := asInteger(opt.Name, val)
			if err != nil {
				return nil, err
			}
			argv = append(argv, flag, s)
		case TypeArray:
			items, err := asStringArray(opt.Name, val)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				argv = append(argv, flag, item)
			}
		default:
			return nil, errs.New(errs.KindSchemaError, "unknown option type on "+opt.Name)
		}
	}

	for _, pos := range def.Schema.Positional {
		val, present := merged[pos.Name]
		if !present {
			if pos.Required {
				return nil, errs.New(errs.KindMissingArgument, "missing required positional: "+pos.Name)
			}
			continue
		}
		switch pos.Type {
		case TypeInteger:
			s, err := asInteger(pos.Name, val)
			if err != nil {
				return nil, err
			}
			argv = append(argv, s)
		default:
			s, err := asString(pos.Name, val)
			if err != nil {
				return nil, err
			}
			argv = append(argv, s)
		}
	}

	return argv, nil
}

func asString(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errs.New(errs.KindArgumentTypeError, name+" must be a string")
	}
	return s, nil
}

func asInteger(name string, v any) (string, error) {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return "", errs.New(errs.KindArgumentTypeError, name+" must be an integer")
	case string:
		if _, err := strconv.Atoi(t); err != nil {
			return "", errs.New(errs.KindArgumentTypeError, name+" must be an integer")
		}
		return t, nil
	default:
		return "", errs.New(errs.KindArgumentTypeError, fmt.Sprintf("%s must be an integer, got %T", name, v))
	}
}

func asStringArray(name string, v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, errs.New(errs.KindArgumentTypeError, name+" must be an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errs.New(errs.KindArgumentTypeError, name+" must be an array of strings")
	}
}
