package evalengine

import (
	"fmt"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
}

// Parse parses a full program into its top-level statement list. A skill
// file is expected to parse to exactly one FuncDecl named "run"; agent
// code is any statement list.
func Parse(src string) ([]Stmt, error) {
	toks, err := newLexer(src).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmts, err := p.parseStmts(true)
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, fmt.Errorf("unexpected trailing input at line %d", p.cur().line)
	}
	return stmts, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expectPunct(text string) error {
	if p.cur().kind == tokPunct && p.cur().text == text {
		p.next()
		return nil
	}
	return fmt.Errorf("expected %q, got %q at line %d", text, p.cur().text, p.cur().line)
}

func (p *parser) isPunct(text string) bool {
	return p.cur().kind == tokPunct && p.cur().text == text
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur().kind == tokKeyword && p.cur().text == kw
}

// parseStmts parses statements until "}" or EOF (topLevel).
func (p *parser) parseStmts(topLevel bool) ([]Stmt, error) {
	var stmts []Stmt
	for {
		for p.isPunct(";") {
			p.next()
		}
		if p.atEOF() || (!topLevel && p.isPunct("}")) {
			return stmts, nil
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
}

func (p *parser) parseBlock() ([]Stmt, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	stmts, err := p.parseStmts(false)
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) parseStmt() (Stmt, error) {
	switch {
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("fn"):
		return p.parseFuncDecl()
	case p.isKeyword("return"):
		p.next()
		if p.isPunct(";") || p.isPunct("}") || p.atEOF() {
			return ReturnStmt{}, nil
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ReturnStmt{X: x}, nil
	}

	// assignment: IDENT "=" expr   (lookahead)
	if p.cur().kind == tokIdent {
		save := p.pos
		name := p.next().text
		if p.isPunct("=") {
			p.next()
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return AssignStmt{Name: name, RHS: rhs}, nil
		}
		p.pos = save
	}

	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ExprStmt{X: x}, nil
}

func (p *parser) parseIf() (Stmt, error) {
	p.next() // "if"
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := IfStmt{Cond: cond, Then: then}
	if p.isKeyword("else") {
		p.next()
		if p.isKeyword("if") {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = []Stmt{elseIf}
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBlock
		}
	}
	return stmt, nil
}

func (p *parser) parseFor() (Stmt, error) {
	p.next() // "for"
	if p.isPunct("{") {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return ForStmt{Body: body}, nil
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ForStmt{Cond: cond, Body: body}, nil
}

func (p *parser) parseFuncDecl() (Stmt, error) {
	p.next() // "fn"
	if p.cur().kind != tokIdent {
		return nil, fmt.Errorf("expected function name at line %d", p.cur().line)
	}
	name := p.next().text
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []Param
	for !p.isPunct(")") {
		if p.cur().kind != tokIdent {
			return nil, fmt.Errorf("expected parameter name at line %d", p.cur().line)
		}
		pname := p.next().text
		param := Param{Name: pname}
		if p.isPunct(":") {
			p.next()
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return FuncDecl{Name: name, Params: params, Body: body}, nil
}

// --- expressions, precedence climbing ---

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isPunct("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "||", X: left, Y: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isPunct("&&") {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "&&", X: left, Y: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && comparisonOps[p.cur().text] {
		op := p.next().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isPunct("!") || p.isPunct("-") {
		op := p.next().text
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: op, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			p.next()
			if p.cur().kind != tokIdent {
				return nil, fmt.Errorf("expected identifier after '.' at line %d", p.cur().line)
			}
			sel := p.next().text
			x = SelectorExpr{X: x, Sel: sel}
		case p.isPunct("("):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = CallExpr{Fun: x, Args: args}
		case p.isPunct("["):
			p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			x = IndexExpr{X: x, Index: idx}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseArgs() ([]Arg, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []Arg
	for !p.isPunct(")") {
		if p.cur().kind == tokIdent && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == ":" {
			name := p.next().text
			p.next() // ":"
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{Name: name, X: x})
		} else {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{X: x})
		}
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokInt:
		p.next()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %q", t.text)
		}
		return IntLit{Value: v}, nil
	case t.kind == tokFloat:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal %q", t.text)
		}
		return FloatLit{Value: v}, nil
	case t.kind == tokString:
		p.next()
		return StringLit{Value: t.text}, nil
	case t.kind == tokKeyword && t.text == "true":
		p.next()
		return BoolLit{Value: true}, nil
	case t.kind == tokKeyword && t.text == "false":
		p.next()
		return BoolLit{Value: false}, nil
	case t.kind == tokKeyword && t.text == "null":
		p.next()
		return NullLit{}, nil
	case t.kind == tokIdent:
		p.next()
		return Ident{Name: t.text}, nil
	case p.isPunct("("):
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return x, nil
	case p.isPunct("["):
		return p.parseListLit()
	case p.isPunct("{"):
		return p.parseMapLit()
	default:
		return nil, fmt.Errorf("unexpected token %q at line %d", t.text, t.line)
	}
}

func (p *parser) parseListLit() (Expr, error) {
	p.next() // "["
	var items []Expr
	for !p.isPunct("]") {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, x)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return ListLit{Items: items}, nil
}

func (p *parser) parseMapLit() (Expr, error) {
	p.next() // "{"
	var keys []string
	var vals []Expr
	for !p.isPunct("}") {
		var key string
		switch {
		case p.cur().kind == tokIdent:
			key = p.next().text
		case p.cur().kind == tokString:
			key = p.next().text
		default:
			return nil, fmt.Errorf("expected map key at line %d", p.cur().line)
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return MapLit{Keys: keys, Values: vals}, nil
}
