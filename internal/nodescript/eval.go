package nodescript

import (
	"github.com/pkg/errors"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/model"
	"github.com/dueldanov/nodescript/internal/types"
)

// evaluator is one node of a compiled formula. check runs during the
// compile-time probe; eval runs against an instance at evaluation time.
type evaluator interface {
	check(p *probe) (*types.Type, error)
	eval(f *frame) (Value, error)
}

type locals struct {
	name  string
	value Value
	next  *locals
}

// frame is the evaluation context of one formula.
type frame struct {
	eng    *Engine
	memo   memoTable
	inst   *Instance
	locals *locals
}

func (f *frame) with(name string, v Value) *frame {
	return &frame{eng: f.eng, memo: f.memo, inst: f.inst, locals: &locals{name: name, value: v, next: f.locals}}
}

func (f *frame) local(name string) (Value, bool) {
	for l := f.locals; l != nil; l = l.next {
		if l.name == name {
			return l.value, true
		}
	}
	return nil, false
}

func checkAll(p *probe, evs []evaluator) ([]*types.Type, error) {
	ts := make([]*types.Type, len(evs))
	for i, ev := range evs {
		t, err := ev.check(p)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

func evalAll(f *frame, evs []evaluator) ([]Value, error) {
	vs := make([]Value, len(evs))
	for i, ev := range evs {
		v, err := ev.eval(f)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

// matchError maps a signature matcher failure onto a compile error.
func matchError(err error) error {
	if errors.Is(err, types.ErrUnknownFunction) {
		return compileErrorf(CodeUndefinedFunction, "%s", err)
	}
	return compileErrorf(CodeBadCall, "%s", err)
}

type literalEval struct {
	value Value
}

func (e *literalEval) check(*probe) (*types.Type, error) {
	switch e.value.(type) {
	case int64:
		return types.Integer, nil
	case float64:
		return types.Decimal, nil
	case string:
		return types.String, nil
	case bool:
		return types.Boolean, nil
	}
	return types.Base, nil
}

func (e *literalEval) eval(*frame) (Value, error) {
	return e.value, nil
}

type localEval struct {
	name string
}

func (e *localEval) check(*probe) (*types.Type, error) {
	return types.Base, nil
}

func (e *localEval) eval(f *frame) (Value, error) {
	v, _ := f.local(e.name)
	return v, nil
}

// attrRefEval is a bare attribute name, resolved late against the
// evaluating instance.
type attrRefEval struct {
	name string
}

func (e *attrRefEval) check(p *probe) (*types.Type, error) {
	return p.resolve(p.ctx, e.name)
}

func (e *attrRefEval) eval(f *frame) (Value, error) {
	return f.eng.get(f.memo, f.inst, e.name)
}

// nodeEval is a node name used as a value.
type nodeEval struct {
	node *Node
}

func (e *nodeEval) check(*probe) (*types.Type, error) {
	return types.Base, nil
}

func (e *nodeEval) eval(f *frame) (Value, error) {
	return newInstance(e.node, nil, f.inst.env), nil
}

// qualifiedEval is Node.attr, resolved against Node regardless of the
// evaluating instance.
type qualifiedEval struct {
	node *Node
	attr string
}

func (e *qualifiedEval) check(p *probe) (*types.Type, error) {
	return p.resolve(e.node, e.attr)
}

func (e *qualifiedEval) eval(f *frame) (Value, error) {
	return f.eng.get(f.memo, newInstance(e.node, nil, f.inst.env), e.attr)
}

// instanceEval is Node(a: x, ...): an override set on Node.
type instanceEval struct {
	node   *Node
	names  []string
	values []evaluator
}

func (e *instanceEval) check(p *probe) (*types.Type, error) {
	for _, name := range e.names {
		if e.node.Lookup(name) == nil {
			return nil, compileErrorf(CodeUndefined, "attribute %s is not defined on %s", name, e.node.Name)
		}
	}
	if _, err := checkAll(p, e.values); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *instanceEval) eval(f *frame) (Value, error) {
	vs, err := evalAll(f, e.values)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]Value, len(e.names))
	env := make(Params, len(f.inst.env)+len(e.names))
	for k, v := range f.inst.env {
		env[k] = v
	}
	for i, name := range e.names {
		overrides[name] = vs[i]
		env[name] = vs[i]
	}
	return newInstance(e.node, overrides, env), nil
}

// instanceAttrEval is Node(a: x).attr. The check pass does not descend into
// attr: the bindings are runtime values, so recursive instantiation is
// allowed.
type instanceAttrEval struct {
	inst *instanceEval
	attr string
}

func (e *instanceAttrEval) check(p *probe) (*types.Type, error) {
	if _, err := e.inst.check(p); err != nil {
		return nil, err
	}
	if e.inst.node.Lookup(e.attr) == nil {
		return nil, compileErrorf(CodeUndefined, "attribute %s is not defined on %s", e.attr, e.inst.node.Name)
	}
	if t, ok := p.eng.probed[probeToken{node: e.inst.node, attr: e.attr}]; ok {
		return t, nil
	}
	return types.Base, nil
}

func (e *instanceAttrEval) eval(f *frame) (Value, error) {
	v, err := e.inst.eval(f)
	if err != nil {
		return nil, err
	}
	return f.eng.get(f.memo, v.(*Instance), e.attr)
}

type builtinEval struct {
	fn   *BuiltinFunction
	args []evaluator
}

func (e *builtinEval) check(p *probe) (*types.Type, error) {
	ts, err := checkAll(p, e.args)
	if err != nil {
		return nil, err
	}
	t, err := p.eng.matcher.Match(e.fn.Name, ts)
	if err != nil {
		return nil, matchError(err)
	}
	return t, nil
}

func (e *builtinEval) eval(f *frame) (Value, error) {
	args, err := evalAll(f, e.args)
	if err != nil {
		return nil, err
	}
	return e.fn.Handler(args)
}

// modelCallEval is Model.fn(args) on a host model type.
type modelCallEval struct {
	model *model.Model
	fn    *model.Function
	args  []evaluator
}

func (e *modelCallEval) check(p *probe) (*types.Type, error) {
	ts, err := checkAll(p, e.args)
	if err != nil {
		return nil, err
	}
	t, err := e.fn.ResultType(ts)
	if err != nil {
		return nil, compileErrorf(CodeBadCall, "%s.%s: %s", e.model.Name(), e.fn.Name, err)
	}
	return t, nil
}

func (e *modelCallEval) eval(f *frame) (Value, error) {
	args, err := evalAll(f, e.args)
	if err != nil {
		return nil, err
	}

	adapter := f.eng.config.Cache
	if !e.fn.Cached || adapter == nil {
		return e.call(args)
	}

	class := e.model.Name()
	key := cache.Key(e.fn.Name, args...)
	if v, ok := adapter.Get(class, key); ok {
		f.eng.config.Metrics.cacheHit()
		return v, nil
	}
	f.eng.config.Metrics.cacheMiss()

	v, err := e.call(args)
	if err != nil {
		return nil, err
	}
	adapter.Put(class, key, v)
	return v, nil
}

func (e *modelCallEval) call(args []Value) (Value, error) {
	v, err := e.fn.Call(args)
	if err != nil {
		return nil, hostError(err)
	}
	return v, nil
}

// methodCallEval is x.method(args) on a host value, authorized by the
// whitelist at run time.
type methodCallEval struct {
	recv   evaluator
	method string
	args   []evaluator
}

func (e *methodCallEval) check(p *probe) (*types.Type, error) {
	if _, err := e.recv.check(p); err != nil {
		return nil, err
	}
	if _, err := checkAll(p, e.args); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *methodCallEval) eval(f *frame) (Value, error) {
	recv, err := e.recv.eval(f)
	if err != nil {
		return nil, err
	}
	args, err := evalAll(f, e.args)
	if err != nil {
		return nil, err
	}
	return f.eng.callMethod(e.method, recv, args, CodeNotAllowed)
}

// memberEval is x.name on a computed value.
type memberEval struct {
	x    evaluator
	name string
}

func (e *memberEval) check(p *probe) (*types.Type, error) {
	if _, err := e.x.check(p); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *memberEval) eval(f *frame) (Value, error) {
	x, err := e.x.eval(f)
	if err != nil {
		return nil, err
	}

	switch v := x.(type) {
	case *Instance:
		if _, ok := v.overrides[e.name]; !ok && v.Node.Lookup(e.name) == nil {
			return nil, newRuntimeError(CodeInvalidGetAttribute, "%s has no attribute %s", v.Node.Name, e.name)
		}
		return f.eng.get(f.memo, v, e.name)
	case map[Value]Value:
		return v[e.name], nil
	case nil:
		return nil, newRuntimeError(CodeInvalidGetAttribute, "cannot read %s of nil", e.name)
	}
	return f.eng.callMethod(e.name, x, nil, CodeInvalidGetAttribute)
}

type indexEval struct {
	x evaluator
	i evaluator
}

func (e *indexEval) check(p *probe) (*types.Type, error) {
	if _, err := e.x.check(p); err != nil {
		return nil, err
	}
	if _, err := e.i.check(p); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *indexEval) eval(f *frame) (Value, error) {
	x, err := e.x.eval(f)
	if err != nil {
		return nil, err
	}
	i, err := e.i.eval(f)
	if err != nil {
		return nil, err
	}
	return index(x, i)
}

type binaryEval struct {
	op    string
	left  evaluator
	right evaluator
}

func (e *binaryEval) check(p *probe) (*types.Type, error) {
	lt, err := e.left.check(p)
	if err != nil {
		return nil, err
	}
	rt, err := e.right.check(p)
	if err != nil {
		return nil, err
	}
	t, err := p.eng.matcher.Match(e.op, []*types.Type{lt, rt})
	if err != nil {
		return nil, matchError(err)
	}
	return t, nil
}

func (e *binaryEval) eval(f *frame) (Value, error) {
	if e.op == "and" || e.op == "or" {
		return e.logical(f)
	}

	l, err := e.left.eval(f)
	if err != nil {
		return nil, err
	}
	r, err := e.right.eval(f)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case "+", "-", "*", "/", "%":
		return arith(e.op, l, r)
	case "<", "<=", ">", ">=":
		return compare(e.op, l, r)
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "in":
		return contains(l, r)
	}
	return nil, typeMismatch(e.op, l, r)
}

func (e *binaryEval) logical(f *frame) (Value, error) {
	l, err := e.left.eval(f)
	if err != nil {
		return nil, err
	}
	if e.op == "and" && !truthy(l) {
		return false, nil
	}
	if e.op == "or" && truthy(l) {
		return true, nil
	}
	r, err := e.right.eval(f)
	if err != nil {
		return nil, err
	}
	return truthy(r), nil
}

type unaryEval struct {
	op string
	x  evaluator
}

func (e *unaryEval) check(p *probe) (*types.Type, error) {
	t, err := e.x.check(p)
	if err != nil {
		return nil, err
	}
	rt, err := p.eng.matcher.Match(e.op, []*types.Type{t})
	if err != nil {
		return nil, matchError(err)
	}
	return rt, nil
}

func (e *unaryEval) eval(f *frame) (Value, error) {
	v, err := e.x.eval(f)
	if err != nil {
		return nil, err
	}
	if e.op == "not" {
		return !truthy(v), nil
	}
	return negate(v)
}

type ifEval struct {
	cond evaluator
	then evaluator
	els  evaluator
}

func (e *ifEval) check(p *probe) (*types.Type, error) {
	if _, err := e.cond.check(p); err != nil {
		return nil, err
	}
	tt, err := e.then.check(p)
	if err != nil {
		return nil, err
	}
	et, err := e.els.check(p)
	if err != nil {
		return nil, err
	}
	return types.LUB(tt, et), nil
}

func (e *ifEval) eval(f *frame) (Value, error) {
	c, err := e.cond.eval(f)
	if err != nil {
		return nil, err
	}
	if truthy(c) {
		return e.then.eval(f)
	}
	return e.els.eval(f)
}

type listEval struct {
	elems []evaluator
}

func (e *listEval) check(p *probe) (*types.Type, error) {
	if _, err := checkAll(p, e.elems); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *listEval) eval(f *frame) (Value, error) {
	vs, err := evalAll(f, e.elems)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

type hashEval struct {
	keys   []evaluator
	values []evaluator
}

func (e *hashEval) check(p *probe) (*types.Type, error) {
	if _, err := checkAll(p, e.keys); err != nil {
		return nil, err
	}
	if _, err := checkAll(p, e.values); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *hashEval) eval(f *frame) (Value, error) {
	keys, err := evalAll(f, e.keys)
	if err != nil {
		return nil, err
	}
	values, err := evalAll(f, e.values)
	if err != nil {
		return nil, err
	}

	h := make(map[Value]Value, len(keys))
	for i, k := range keys {
		if !hashable(k) {
			return nil, newRuntimeError(CodeTypeMismatch, "%s cannot be used as a hash key", typeName(k))
		}
		h[k] = values[i]
	}
	return h, nil
}

// comprehensionEval is [body for name in seq if cond].
type comprehensionEval struct {
	body evaluator
	name string
	seq  evaluator
	cond evaluator
}

func (e *comprehensionEval) check(p *probe) (*types.Type, error) {
	if _, err := e.seq.check(p); err != nil {
		return nil, err
	}
	if e.cond != nil {
		if _, err := e.cond.check(p); err != nil {
			return nil, err
		}
	}
	if _, err := e.body.check(p); err != nil {
		return nil, err
	}
	return types.Base, nil
}

func (e *comprehensionEval) eval(f *frame) (Value, error) {
	seq, err := e.seq.eval(f)
	if err != nil {
		return nil, err
	}
	elems, ok := seq.([]Value)
	if !ok {
		return nil, newRuntimeError(CodeTypeMismatch, "cannot iterate over %s", typeName(seq))
	}

	out := make([]Value, 0, len(elems))
	for _, elem := range elems {
		inner := f.with(e.name, elem)
		if e.cond != nil {
			c, err := e.cond.eval(inner)
			if err != nil {
				return nil, err
			}
			if !truthy(c) {
				continue
			}
		}
		v, err := e.body.eval(inner)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
