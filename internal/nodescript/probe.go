package nodescript

import (
	"fmt"
	"strings"

	"github.com/dueldanov/nodescript/internal/types"
)

// probeToken names an attribute resolved in the context of a node, which
// may be a descendant of the node declaring it.
type probeToken struct {
	node *Node
	attr string
}

func (t probeToken) String() string {
	return t.node.Name + "." + t.attr
}

// probePath is the ordered set of tokens being resolved.
type probePath struct {
	tokens []probeToken
	index  map[probeToken]int
}

func newProbePath() *probePath {
	return &probePath{index: make(map[probeToken]int)}
}

func (p *probePath) push(t probeToken) {
	p.index[t] = len(p.tokens)
	p.tokens = append(p.tokens, t)
}

func (p *probePath) pop() {
	last := p.tokens[len(p.tokens)-1]
	delete(p.index, last)
	p.tokens = p.tokens[:len(p.tokens)-1]
}

func (p *probePath) cycle(t probeToken) string {
	start := p.index[t]
	names := make([]string, 0, len(p.tokens)-start+1)
	for _, tok := range p.tokens[start:] {
		names = append(names, tok.String())
	}
	names = append(names, t.String())
	return strings.Join(names, " -> ")
}

// probe evaluates formulas in check mode: it resolves every reference and
// computes static types without running anything.
type probe struct {
	eng  *Engine
	ctx  *Node
	path *probePath
}

func (p *probe) in(ctx *Node) *probe {
	return &probe{eng: p.eng, ctx: ctx, path: p.path}
}

// resolve checks name in the context node's parent chain.
func (p *probe) resolve(ctx *Node, name string) (*types.Type, error) {
	attr := ctx.Lookup(name)
	if attr == nil {
		return nil, compileErrorf(CodeUndefined, "attribute %s is not defined on %s", name, ctx.Name)
	}
	return p.resolveAttr(ctx, attr)
}

func (p *probe) resolveAttr(ctx *Node, attr *Attribute) (*types.Type, error) {
	tok := probeToken{node: ctx, attr: attr.Name}
	if _, ok := p.path.index[tok]; ok {
		return nil, compileErrorf(CodeRecursion, "recursive definition %s", p.path.cycle(tok))
	}
	if t, ok := p.eng.probed[tok]; ok {
		return t, nil
	}

	p.path.push(tok)
	defer p.path.pop()

	sub := p.in(ctx)
	var (
		t   *types.Type
		err error
	)
	switch {
	case !attr.Param:
		t, err = attr.formula.check(sub)
	case attr.def != nil:
		t, err = attr.def.check(sub)
	default:
		t = types.Base
	}
	if err != nil {
		return nil, err
	}

	p.eng.probed[tok] = t
	return t, nil
}

// invalidate drops cached probe results for node, whose effective attribute
// set just changed.
func (e *Engine) invalidate(node *Node) {
	for tok := range e.probed {
		if tok.node == node {
			delete(e.probed, tok)
		}
	}
}

func compileErrorf(code Code, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
