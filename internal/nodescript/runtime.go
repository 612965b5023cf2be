package nodescript

import (
	"github.com/dueldanov/nodescript/internal/cache"
)

// Evaluate computes one attribute of node under params.
func (e *Engine) Evaluate(node, attr string, params Params) (Value, error) {
	values, err := e.EvaluateMany(node, []string{attr}, params)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// EvaluateMany computes attrs of node under params, in order. params bind
// parameters only; formula attributes cannot be overridden from outside.
func (e *Engine) EvaluateMany(node string, attrs []string, params Params) ([]Value, error) {
	if e.unit == nil {
		return nil, ErrNotCompiled
	}
	return e.EvaluateIn(e.unit, node, attrs, params)
}

// EvaluateIn evaluates attributes of a node of unit using e's whitelist,
// cache and metrics. unit may be any compiled unit, imported ones included.
func (e *Engine) EvaluateIn(unit *Unit, node string, attrs []string, params Params) ([]Value, error) {
	n, ok := unit.nodes[node]
	if !ok {
		return nil, newRuntimeError(CodeUndefinedNode, "node %s is not defined in %s", node, unit.Name)
	}

	e.config.Metrics.evaluation()

	env := make(Params, len(params))
	for k, v := range params {
		env[k] = v
	}
	inst := newInstance(n, nil, env)
	memo := make(memoTable)

	values := make([]Value, len(attrs))
	for i, attr := range attrs {
		if n.Lookup(attr) == nil {
			return nil, newRuntimeError(CodeInvalidGetAttribute, "%s has no attribute %s", node, attr)
		}
		v, err := e.get(memo, inst, attr)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// get resolves one attribute on an instance: overrides first, then the
// environment for parameters, then the memo table of the current request,
// the result cache and finally the attribute's evaluator.
func (e *Engine) get(memo memoTable, inst *Instance, name string) (Value, error) {
	if v, ok := inst.overrides[name]; ok {
		return v, nil
	}

	attr := inst.Node.Lookup(name)
	if attr == nil {
		return nil, newRuntimeError(CodeInvalidGetAttribute, "%s has no attribute %s", inst.Node.Name, name)
	}
	at := Frame{Unit: attr.Node.unit.Name, Line: attr.Line, Attribute: attr.Qualified()}

	ev := attr.formula
	if attr.Param {
		if v, ok := inst.env[name]; ok {
			return v, nil
		}
		if attr.def == nil {
			return nil, withFrame(newRuntimeError(CodeUndefinedParam, "parameter %s is required by %s", name, inst.Node.Name), at)
		}
		ev = attr.def
	}

	key := memoKey{instance: inst.fingerprint, attr: name}
	if v, ok := memo[key]; ok {
		e.config.Metrics.memoHit()
		return v, nil
	}

	var class, cacheKey string
	cached := e.config.Cache != nil && e.cachedNodes[inst.Node.Name]
	if cached {
		class = inst.Node.CacheClass()
		cacheKey = cache.Key(name, map[string]interface{}(inst.overrides), map[string]interface{}(inst.env))
		if v, ok := e.config.Cache.Get(class, cacheKey); ok {
			e.config.Metrics.cacheHit()
			memo[key] = v
			return v, nil
		}
		e.config.Metrics.cacheMiss()
	}

	v, err := ev.eval(&frame{eng: e, memo: memo, inst: inst})
	if err != nil {
		return nil, withFrame(err, at)
	}

	memo[key] = v
	if cached {
		e.config.Cache.Put(class, cacheKey, v)
	}
	return v, nil
}

// callMethod invokes a whitelisted host method. denied is the code raised
// when no rule allows the call.
func (e *Engine) callMethod(method string, recv Value, args []Value, denied Code) (Value, error) {
	if e.config.Whitelist == nil {
		return nil, newRuntimeError(denied, "%s does not expose %s", typeName(recv), method)
	}

	rule, err := e.config.Whitelist.Authorize(method, recv, args)
	if err != nil {
		return nil, newRuntimeError(denied, "%s does not expose %s: %s", typeName(recv), method, err)
	}

	v, err := rule.Call(recv, args)
	if err != nil {
		return nil, hostError(err)
	}
	return v, nil
}
