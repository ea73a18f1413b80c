package evalengine

import "fmt"

// Program is a parsed, ready-to-run source unit.
type Program struct {
	Stmts []Stmt
}

// Compile lexes and parses src. It does not execute anything, matching
// the "compile(source) succeeds" half of the skill-source invariant.
func Compile(src string) (*Program, error) {
	stmts, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{Stmts: stmts}, nil
}

// RunDecl returns the single top-level `fn run(...)` declaration a
// skill source must define, per the skill-source contract: exactly one
// such declaration, whose parameter list is read directly off the
// syntax (no reflection needed).
func (p *Program) RunDecl() (*FuncDecl, error) {
	var found *FuncDecl
	for i := range p.Stmts {
		fd, ok := p.Stmts[i].(FuncDecl)
		if !ok || fd.Name != "run" {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("skill source defines more than one top-level fn run")
		}
		f := fd
		found = &f
	}
	if found == nil {
		return nil, fmt.Errorf("skill source must define exactly one top-level fn run(...)")
	}
	return found, nil
}
