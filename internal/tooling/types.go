// Package tooling defines the Tool/ToolCallable data model and the adapter
// interface implemented by the CLI, RPC-stdio, and HTTP adapters, plus a
// registry that routes calls across adapters.
package tooling

import "context"

// ParamType is the semantic type of a ToolParameter.
type ParamType string

const (
	ParamString      ParamType = "string"
	ParamBoolean     ParamType = "boolean"
	ParamInteger     ParamType = "integer"
	ParamArrayString ParamType = "array"
)

// Parameter describes one argument to a ToolCallable.
type Parameter struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any
}

// Callable is a named, invocable recipe or escape-hatch operation on a
// Tool. Binding is adapter-specific invocation state opaque to callers.
type Callable struct {
	Name        string
	Description string
	Params      []Parameter
	Binding     any
}

// Tool is an immutable descriptor of an external capability.
type Tool struct {
	Name        string
	Description string
	Tags        []string
	Callables   []Callable
}

// Summary is the reduced view returned by list/search (no invocation state).
type Summary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Recipes     []string `json:"recipes"`
}

func (t Tool) Summary() Summary {
	s := Summary{Name: t.Name, Description: t.Description, Tags: t.Tags}
	for _, c := range t.Callables {
		s.Recipes = append(s.Recipes, c.Name)
	}
	return s
}

// Adapter is implemented by each tool-capability backend (cli, rpc-stdio,
// http). ListTools is called once at registration; Call is invoked per
// agent call.
type Adapter interface {
	ListTools(ctx context.Context) ([]Tool, error)
	Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error)
	Close() error
}
