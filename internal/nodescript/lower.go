package nodescript

import (
	"github.com/dueldanov/nodescript/internal/syntax"
)

// lowerer turns parsed expressions into evaluator trees, resolving which
// names denote comprehension locals, nodes, functions and attributes.
type lowerer struct {
	eng    *Engine
	locals []string
}

func (l *lowerer) isLocal(name string) bool {
	for i := len(l.locals) - 1; i >= 0; i-- {
		if l.locals[i] == name {
			return true
		}
	}
	return false
}

func (l *lowerer) node(name string) (*Node, bool) {
	if l.isLocal(name) {
		return nil, false
	}
	return l.eng.unit.Node(name)
}

func (l *lowerer) scopedNode(id *syntax.ScopedIdent) (*Node, error) {
	imported, ok := l.eng.unit.Import(id.Scope)
	if !ok {
		return nil, compileErrorf(CodeUndefined, "unit %s is not imported", id.Scope)
	}
	node, ok := imported.Node(id.Name)
	if !ok {
		return nil, compileErrorf(CodeUndefined, "node %s is not defined in %s", id.Name, id.Scope)
	}
	return node, nil
}

func (l *lowerer) lowerAll(exprs []syntax.Expr) ([]evaluator, error) {
	evs := make([]evaluator, len(exprs))
	for i, expr := range exprs {
		ev, err := l.lower(expr)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
	}
	return evs, nil
}

func (l *lowerer) lower(expr syntax.Expr) (evaluator, error) {
	switch e := expr.(type) {
	case *syntax.Literal:
		return &literalEval{value: e.Value}, nil

	case *syntax.Ident:
		if l.isLocal(e.Name) {
			return &localEval{name: e.Name}, nil
		}
		if node, ok := l.node(e.Name); ok {
			return &nodeEval{node: node}, nil
		}
		return &attrRefEval{name: e.Name}, nil

	case *syntax.ScopedIdent:
		node, err := l.scopedNode(e)
		if err != nil {
			return nil, err
		}
		return &nodeEval{node: node}, nil

	case *syntax.Member:
		return l.lowerMember(e)

	case *syntax.Call:
		return l.lowerCall(e)

	case *syntax.Index:
		x, err := l.lower(e.X)
		if err != nil {
			return nil, err
		}
		i, err := l.lower(e.Index)
		if err != nil {
			return nil, err
		}
		return &indexEval{x: x, i: i}, nil

	case *syntax.Unary:
		x, err := l.lower(e.X)
		if err != nil {
			return nil, err
		}
		return &unaryEval{op: e.Op, x: x}, nil

	case *syntax.Binary:
		left, err := l.lower(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.lower(e.Right)
		if err != nil {
			return nil, err
		}
		return &binaryEval{op: e.Op, left: left, right: right}, nil

	case *syntax.If:
		evs, err := l.lowerAll([]syntax.Expr{e.Cond, e.Then, e.Else})
		if err != nil {
			return nil, err
		}
		return &ifEval{cond: evs[0], then: evs[1], els: evs[2]}, nil

	case *syntax.List:
		elems, err := l.lowerAll(e.Elems)
		if err != nil {
			return nil, err
		}
		return &listEval{elems: elems}, nil

	case *syntax.Hash:
		h := &hashEval{}
		for _, entry := range e.Entries {
			k, err := l.lower(entry.Key)
			if err != nil {
				return nil, err
			}
			v, err := l.lower(entry.Value)
			if err != nil {
				return nil, err
			}
			h.keys = append(h.keys, k)
			h.values = append(h.values, v)
		}
		return h, nil

	case *syntax.Comprehension:
		return l.lowerComprehension(e)
	}

	return nil, compileErrorf(CodeSyntax, "unsupported expression %T", expr)
}

func (l *lowerer) lowerComprehension(e *syntax.Comprehension) (evaluator, error) {
	seq, err := l.lower(e.Seq)
	if err != nil {
		return nil, err
	}

	l.locals = append(l.locals, e.Var)
	defer func() { l.locals = l.locals[:len(l.locals)-1] }()

	c := &comprehensionEval{name: e.Var, seq: seq}
	if e.Cond != nil {
		if c.cond, err = l.lower(e.Cond); err != nil {
			return nil, err
		}
	}
	if c.body, err = l.lower(e.Body); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *lowerer) lowerMember(e *syntax.Member) (evaluator, error) {
	switch x := e.X.(type) {
	case *syntax.Ident:
		if node, ok := l.node(x.Name); ok {
			return &qualifiedEval{node: node, attr: e.Name}, nil
		}
	case *syntax.ScopedIdent:
		node, err := l.scopedNode(x)
		if err != nil {
			return nil, err
		}
		return &qualifiedEval{node: node, attr: e.Name}, nil
	case *syntax.Call:
		ev, err := l.lowerCall(x)
		if err != nil {
			return nil, err
		}
		if inst, ok := ev.(*instanceEval); ok {
			return &instanceAttrEval{inst: inst, attr: e.Name}, nil
		}
		return &memberEval{x: ev, name: e.Name}, nil
	}

	x, err := l.lower(e.X)
	if err != nil {
		return nil, err
	}
	return &memberEval{x: x, name: e.Name}, nil
}

func (l *lowerer) lowerCall(e *syntax.Call) (evaluator, error) {
	switch fn := e.Fn.(type) {
	case *syntax.Ident:
		if l.isLocal(fn.Name) {
			break
		}
		if builtin, ok := l.eng.builtins[fn.Name]; ok {
			if len(e.Named) > 0 {
				return nil, compileErrorf(CodeBadCall, "%s does not take named arguments", fn.Name)
			}
			args, err := l.lowerAll(e.Args)
			if err != nil {
				return nil, err
			}
			return &builtinEval{fn: builtin, args: args}, nil
		}
		if node, ok := l.node(fn.Name); ok {
			return l.lowerInstance(node, e)
		}
		return nil, compileErrorf(CodeUndefinedFunction, "function %s is not defined", fn.Name)

	case *syntax.ScopedIdent:
		node, err := l.scopedNode(fn)
		if err != nil {
			return nil, err
		}
		return l.lowerInstance(node, e)

	case *syntax.Member:
		if len(e.Named) > 0 {
			return nil, compileErrorf(CodeBadCall, "%s does not take named arguments", fn.Name)
		}
		args, err := l.lowerAll(e.Args)
		if err != nil {
			return nil, err
		}

		if id, ok := fn.X.(*syntax.Ident); ok && !l.isLocal(id.Name) {
			if _, isNode := l.node(id.Name); !isNode {
				if ev, ok, err := l.lowerModelCall(id.Name, fn.Name, args); ok || err != nil {
					return ev, err
				}
			}
		}

		recv, err := l.lower(fn.X)
		if err != nil {
			return nil, err
		}
		return &methodCallEval{recv: recv, method: fn.Name, args: args}, nil
	}

	return nil, compileErrorf(CodeBadCall, "expression is not callable")
}

func (l *lowerer) lowerModelCall(modelName, fnName string, args []evaluator) (evaluator, bool, error) {
	if l.eng.config.Models == nil {
		return nil, false, nil
	}
	m, ok := l.eng.config.Models.Resolve(modelName)
	if !ok {
		return nil, false, nil
	}
	fn, ok := m.Function(fnName)
	if !ok {
		return nil, true, compileErrorf(CodeUndefinedFunction, "%s has no function %s", modelName, fnName)
	}
	if fn.Call == nil {
		return nil, true, compileErrorf(CodeBadCall, "%s.%s has no implementation", modelName, fnName)
	}
	return &modelCallEval{model: m, fn: fn, args: args}, true, nil
}

func (l *lowerer) lowerInstance(node *Node, e *syntax.Call) (evaluator, error) {
	if len(e.Args) > 0 {
		return nil, compileErrorf(CodeBadCall, "%s must be instantiated with named arguments", node.Name)
	}

	inst := &instanceEval{node: node}
	seen := make(map[string]bool, len(e.Named))
	for _, arg := range e.Named {
		if seen[arg.Name] {
			return nil, compileErrorf(CodeBadCall, "%s bound twice in %s instantiation", arg.Name, node.Name)
		}
		seen[arg.Name] = true

		v, err := l.lower(arg.Value)
		if err != nil {
			return nil, err
		}
		inst.names = append(inst.names, arg.Name)
		inst.values = append(inst.values, v)
	}
	return inst, nil
}
