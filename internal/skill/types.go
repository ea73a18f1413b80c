// Package skill implements the skill library: storage-backed CRUD over
// agent-authored code recipes, compile-time parameter derivation, kwargs
// binding at invocation time, and semantic search over descriptions.
package skill

import (
	"time"

	"github.com/kagent-dev/codesession/internal/evalengine"
)

// Parameter mirrors a declared fn-run parameter: a name and whether it
// carries a default expression.
type Parameter struct {
	Name       string `json:"name"`
	HasDefault bool   `json:"has_default"`
}

// Summary is the listing view of a skill: everything except source.
type Summary struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	CreatedAt   time.Time   `json:"created_at"`
	Error       string      `json:"error,omitempty"`
}

// Record is the full skill view, including source, returned by Get.
type Record struct {
	Summary
	Source string `json:"source"`
}

// compiled holds the parsed program and decl for a loaded, valid skill.
type compiled struct {
	program *evalengine.Program
	decl    *evalengine.FuncDecl
}

func paramsFromDecl(decl *evalengine.FuncDecl) []Parameter {
	out := make([]Parameter, len(decl.Params))
	for i, p := range decl.Params {
		out[i] = Parameter{Name: p.Name, HasDefault: p.Default != nil}
	}
	return out
}
