package syntax

import (
	"fmt"
	"strconv"
	"strings"
)

// Error is a syntax error at a 1-based source line.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type logicalLine struct {
	text   string
	line   int
	indent int
}

// Parse parses a whole script. Column-zero lines declare imports and nodes,
// indented lines declare attributes; a line indented deeper than the
// attribute before it continues that attribute's expression.
func Parse(source string) (*Script, error) {
	lines := splitLines(source)

	script := &Script{Decls: make([]Decl, 0, len(lines))}
	parser := NewParser()
	lexer := NewLexer()

	for _, ll := range lines {
		tokens, err := lexer.Tokenize(ll.text)
		if err != nil {
			return nil, &Error{Line: ll.line, Msg: err.Error()}
		}

		var decl Decl
		if ll.indent == 0 {
			decl, err = parser.parseTopLevel(tokens, ll.line)
		} else {
			decl, err = parser.parseAttribute(tokens, ll.line)
		}
		if err != nil {
			return nil, &Error{Line: ll.line, Msg: err.Error()}
		}
		script.Decls = append(script.Decls, decl)
	}

	return script, nil
}

// ParseExpr parses a single expression, e.g. for a REPL.
func ParseExpr(source string) (Expr, error) {
	tokens, err := NewLexer().Tokenize(source)
	if err != nil {
		return nil, err
	}
	p := NewParser()
	p.reset(tokens)
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, fmt.Errorf("unexpected %s after expression", p.current())
	}
	return expr, nil
}

func splitLines(source string) []logicalLine {
	var out []logicalLine
	attrIndent := -1

	for i, raw := range strings.Split(source, "\n") {
		raw = strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		if attrIndent >= 0 && indent > attrIndent && len(out) > 0 {
			out[len(out)-1].text += " " + trimmed
			continue
		}

		if indent == 0 {
			attrIndent = -1
		} else {
			attrIndent = indent
		}
		out = append(out, logicalLine{text: trimmed, line: i + 1, indent: indent})
	}

	return out
}

type Parser struct {
	tokens []Token
	pos    int
}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) reset(tokens []Token) {
	p.tokens = tokens
	p.pos = 0
}

func (p *Parser) parseTopLevel(tokens []Token, line int) (Decl, error) {
	p.reset(tokens)

	if p.match("import") {
		return p.parseImport(line)
	}

	name := p.current()
	if name.Type != TokenIdent {
		return nil, fmt.Errorf("expected node name, got %s", name)
	}
	p.advance()

	if p.check("=") || p.check("=?") {
		return nil, fmt.Errorf("attribute %q must be indented under a node", name.Value)
	}
	if !p.consume(":") {
		return nil, fmt.Errorf("expected ':' after node name %q", name.Value)
	}

	decl := &NodeDecl{Name: name.Value, Line: line}
	if p.isAtEnd() {
		return decl, nil
	}

	parent := p.current()
	if parent.Type != TokenIdent {
		return nil, fmt.Errorf("expected parent node name, got %s", parent)
	}
	p.advance()
	if p.consume("::") {
		scoped := p.current()
		if scoped.Type != TokenIdent {
			return nil, fmt.Errorf("expected node name after '::', got %s", scoped)
		}
		p.advance()
		decl.ParentScope = parent.Value
		decl.Parent = scoped.Value
	} else {
		decl.Parent = parent.Value
	}

	if !p.isAtEnd() {
		return nil, fmt.Errorf("unexpected %s after node declaration", p.current())
	}
	return decl, nil
}

func (p *Parser) parseImport(line int) (Decl, error) {
	unit := p.current()
	if unit.Type != TokenIdent {
		return nil, fmt.Errorf("expected unit name after 'import', got %s", unit)
	}
	p.advance()

	decl := &ImportDecl{Unit: unit.Value, Line: line}
	if !p.isAtEnd() {
		version := p.current()
		if version.Type != TokenIdent && version.Type != TokenNumber && version.Type != TokenString {
			return nil, fmt.Errorf("expected version after unit name, got %s", version)
		}
		decl.Version = version.Value
		p.advance()
	}

	if !p.isAtEnd() {
		return nil, fmt.Errorf("unexpected %s after import", p.current())
	}
	return decl, nil
}

func (p *Parser) parseAttribute(tokens []Token, line int) (Decl, error) {
	p.reset(tokens)

	name := p.current()
	if name.Type != TokenIdent {
		return nil, fmt.Errorf("expected attribute name, got %s", name)
	}
	p.advance()

	decl := &AttrDecl{Name: name.Value, Line: line}

	switch {
	case p.consume("=?"):
		decl.Param = true
		if p.isAtEnd() {
			return decl, nil
		}
		def, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.Default = def
	case p.consume("="):
		formula, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.Formula = formula
	default:
		return nil, fmt.Errorf("expected '=' or '=?' after attribute %q", name.Value)
	}

	if !p.isAtEnd() {
		return nil, fmt.Errorf("unexpected %s after expression", p.current())
	}
	return decl, nil
}

func (p *Parser) parseExpression() (Expr, error) {
	if p.match("if") {
		return p.parseIf()
	}
	return p.parseOr()
}

func (p *Parser) parseIf() (Expr, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.match("then") {
		return nil, fmt.Errorf("expected 'then' after if condition")
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.match("else") {
		return nil, fmt.Errorf("expected 'else' after then branch")
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &If{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.match("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.match("not") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">", "in"} {
		if p.check(op) {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check("+") || p.check("-") {
		op := p.current().Value
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check("*") || p.check("/") || p.check("%") {
		op := p.current().Value
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.consume("-") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.consume("."):
			name := p.current()
			if name.Type != TokenIdent {
				return nil, fmt.Errorf("expected name after '.', got %s", name)
			}
			p.advance()
			expr = &Member{X: expr, Name: name.Value}
		case p.consume("("):
			call, err := p.parseCallArgs(expr)
			if err != nil {
				return nil, err
			}
			expr = call
		case p.consume("["):
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if !p.consume("]") {
				return nil, fmt.Errorf("expected ']' after index")
			}
			expr = &Index{X: expr, Index: index}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallArgs(fn Expr) (*Call, error) {
	call := &Call{Fn: fn}
	if p.consume(")") {
		return call, nil
	}

	for {
		if p.current().Type == TokenIdent && p.peek().Type == TokenOperator && p.peek().Value == ":" {
			if len(call.Args) > 0 {
				return nil, fmt.Errorf("cannot mix positional and named arguments")
			}
			name := p.current().Value
			p.advance()
			p.advance()
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Named = append(call.Named, NamedArg{Name: name, Value: value})
		} else {
			if len(call.Named) > 0 {
				return nil, fmt.Errorf("cannot mix positional and named arguments")
			}
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}

		if p.consume(")") {
			return call, nil
		}
		if !p.consume(",") {
			return nil, fmt.Errorf("expected ',' or ')' in argument list")
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		if strings.Contains(tok.Value, ".") {
			f, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number: %s", tok.Value)
			}
			return &Literal{Value: f}, nil
		}
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", tok.Value)
		}
		return &Literal{Value: n}, nil

	case TokenString:
		p.advance()
		return &Literal{Value: tok.Value}, nil

	case TokenKeyword:
		switch tok.Value {
		case "true":
			p.advance()
			return &Literal{Value: true}, nil
		case "false":
			p.advance()
			return &Literal{Value: false}, nil
		case "nil":
			p.advance()
			return &Literal{Value: nil}, nil
		}

	case TokenIdent:
		p.advance()
		if p.consume("::") {
			name := p.current()
			if name.Type != TokenIdent {
				return nil, fmt.Errorf("expected node name after '::', got %s", name)
			}
			p.advance()
			return &ScopedIdent{Scope: tok.Value, Name: name.Value}, nil
		}
		return &Ident{Name: tok.Value}, nil

	case TokenOperator:
		switch tok.Value {
		case "(":
			p.advance()
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if !p.consume(")") {
				return nil, fmt.Errorf("expected ')'")
			}
			return expr, nil
		case "[":
			p.advance()
			return p.parseList()
		case "{":
			p.advance()
			return p.parseHash()
		}
	}

	return nil, fmt.Errorf("unexpected %s", tok)
}

func (p *Parser) parseList() (Expr, error) {
	if p.consume("]") {
		return &List{}, nil
	}

	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.match("for") {
		return p.parseComprehension(first)
	}

	list := &List{Elems: []Expr{first}}
	for p.consume(",") {
		elem, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, elem)
	}
	if !p.consume("]") {
		return nil, fmt.Errorf("expected ']' after list")
	}
	return list, nil
}

func (p *Parser) parseComprehension(body Expr) (Expr, error) {
	v := p.current()
	if v.Type != TokenIdent {
		return nil, fmt.Errorf("expected variable after 'for', got %s", v)
	}
	p.advance()
	if !p.match("in") {
		return nil, fmt.Errorf("expected 'in' after comprehension variable")
	}
	seq, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	comp := &Comprehension{Body: body, Var: v.Value, Seq: seq}
	if p.match("if") {
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		comp.Cond = cond
	}
	if !p.consume("]") {
		return nil, fmt.Errorf("expected ']' after comprehension")
	}
	return comp, nil
}

func (p *Parser) parseHash() (Expr, error) {
	hash := &Hash{}
	if p.consume("}") {
		return hash, nil
	}

	for {
		key, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(":") {
			return nil, fmt.Errorf("expected ':' after hash key")
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		hash.Entries = append(hash.Entries, HashEntry{Key: key, Value: value})

		if p.consume("}") {
			return hash, nil
		}
		if !p.consume(",") {
			return nil, fmt.Errorf("expected ',' or '}' in hash")
		}
	}
}

// Helper methods

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) isAtEnd() bool {
	return p.current().Type == TokenEOF
}

// check reports whether the current token is the operator or keyword value.
func (p *Parser) check(value string) bool {
	tok := p.current()
	return (tok.Type == TokenOperator || tok.Type == TokenKeyword) && tok.Value == value
}

// match consumes the current token if it is the keyword value.
func (p *Parser) match(keyword string) bool {
	tok := p.current()
	if tok.Type == TokenKeyword && tok.Value == keyword {
		p.advance()
		return true
	}
	return false
}

// consume consumes the current token if it is the operator value.
func (p *Parser) consume(op string) bool {
	tok := p.current()
	if tok.Type == TokenOperator && tok.Value == op {
		p.advance()
		return true
	}
	return false
}
