package nodescript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/logger"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/types"
)

func newTestEngine(config Config) *Engine {
	return NewEngine(logger.NewNopLogger(), config)
}

func mustCompile(t *testing.T, source string, config Config) *Engine {
	t.Helper()

	e := newTestEngine(config)
	_, err := e.Compile(source)
	require.NoError(t, err)
	return e
}

const factorialSource = `
A:
    n =?
    fact = if n <= 1 then 1 else n * A(n: n-1).fact
`

func TestFactorial(t *testing.T) {
	e := mustCompile(t, factorialSource, Config{})

	v, err := e.Evaluate("A", "fact", Params{"n": int64(10)})
	require.NoError(t, err)
	require.Equal(t, int64(3628800), v)

	v, err = e.Evaluate("A", "fact", Params{"n": int64(1)})
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestInheritanceOverride(t *testing.T) {
	e := mustCompile(t, `
A:
  b = 5
  twice = b * 2
B: A
  b = 2
  both = [A.b, B.b]
`, Config{})

	tests := []struct {
		node string
		attr string
		want Value
	}{
		{"A", "b", int64(5)},
		{"B", "b", int64(2)},
		{"A", "twice", int64(10)},
		{"B", "twice", int64(4)},
		{"B", "both", []Value{int64(5), int64(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.node+"."+tt.attr, func(t *testing.T) {
			v, err := e.Evaluate(tt.node, tt.attr, nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestParameterPrecedence(t *testing.T) {
	e := mustCompile(t, `
A:
  p =? 1
  c = p*123
B: A
  p =? 2
C: B
`, Config{})

	tests := []struct {
		name   string
		node   string
		params Params
		want   int64
	}{
		{"default", "A", nil, 123},
		{"supplied", "A", Params{"p": int64(5)}, 615},
		{"descendant default", "B", nil, 246},
		{"inherited descendant default", "C", nil, 246},
		{"supplied beats descendant default", "C", Params{"p": int64(5)}, 615},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.Evaluate(tt.node, "c", tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestParametersFlowThroughInstantiation(t *testing.T) {
	e := mustCompile(t, `
Rate:
  base =?
  factor =? 2
  value = base * factor
Quote:
  base =?
  doubled = Rate.value
  tripled = Rate(factor: 3).value
`, Config{})

	v, err := e.EvaluateMany("Quote", []string{"doubled", "tripled"}, Params{"base": int64(7)})
	require.NoError(t, err)
	require.Equal(t, []Value{int64(14), int64(21)}, v)
}

func TestTopLevelParamsDoNotOverrideFormulas(t *testing.T) {
	e := mustCompile(t, "A:\n  a = 1\n  b = a + 1\n", Config{})

	v, err := e.Evaluate("A", "b", Params{"a": int64(10)})
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestInstantiationOverridesFormula(t *testing.T) {
	e := mustCompile(t, "A:\n  a = 1\n  b = a + 1\nB:\n  c = A(a: 10).b\n", Config{})

	v, err := e.Evaluate("B", "c", nil)
	require.NoError(t, err)
	require.Equal(t, int64(11), v)
}

func TestQualifiedReadsAncestorOriginal(t *testing.T) {
	e := mustCompile(t, `
A:
  a = 1
  b = a
B: A
  a = A.b + 10
`, Config{})

	v, err := e.Evaluate("B", "a", nil)
	require.NoError(t, err)
	require.Equal(t, int64(11), v)

	v, err = e.Evaluate("B", "b", nil)
	require.NoError(t, err)
	require.Equal(t, int64(11), v)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   Code
		line   int
	}{
		{"syntax", "A:\n  a = (1\n", CodeSyntax, 2},
		{"attribute outside node", "  a = 1\n", CodeSyntax, 1},
		{"redefined node", "A:\n  a = 1\nA:\n", CodeRedefined, 3},
		{"redefined attribute", "A:\n  a = 1\n  a = 2\n", CodeRedefined, 3},
		{"undefined parent", "B: A\n", CodeUndefined, 1},
		{"undefined scope", "B: m::A\n", CodeUndefined, 1},
		{"forward reference", "A:\n  a = b\n  b = 1\n", CodeUndefined, 2},
		{"undefined qualified", "A:\n  a = 1\nB:\n  b = A.c\n", CodeUndefined, 4},
		{"self reference", "A:\n  a = a + 1\n", CodeRecursion, 2},
		{"parameter default cycle", "A:\n  p =? p\n", CodeRecursion, 2},
		{"cycle through ancestor", "A:\n  a = 1\n  b = a + 1\nB: A\n  a = b\n", CodeRecursion, 5},
		{"unknown function", "A:\n  a = FOO(1)\n", CodeUndefinedFunction, 2},
		{"operator mismatch", "A:\n  a = 'x' % 2\n", CodeBadCall, 2},
		{"builtin arity", "A:\n  a = ABS(1, 2)\n", CodeBadCall, 2},
		{"positional instantiation", "A:\n  n =?\n  a = A(1).n\n", CodeBadCall, 3},
		{"unknown binding", "A:\n  a = A(z: 1).a\n", CodeUndefined, 2},
		{"unknown instance attribute", "A:\n  n =?\n  a = A(n: 1).z\n", CodeUndefined, 3},
		{"import without resolver", "import Rates\n", CodeUndefined, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(Config{Name: "calc"})
			unit, err := e.Compile(tt.source)
			require.Nil(t, unit)
			require.True(t, Is(err, tt.code), "got %v", err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			require.Equal(t, "calc", compileErr.Unit)
			require.Equal(t, tt.line, compileErr.Line)
			require.Nil(t, e.Unit())
		})
	}
}

func TestRecursionMessageNamesCycle(t *testing.T) {
	_, err := newTestEngine(Config{}).Compile("A:\n  a = 1\n  b = a + 1\nB: A\n  a = b\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "B.a -> B.b -> B.a")
}

func TestCompileOnce(t *testing.T) {
	e := mustCompile(t, "A:\n  a = 1\n", Config{})

	_, err := e.Compile("B:\n  b = 1\n")
	require.ErrorIs(t, err, ErrAlreadyCompiled)

	e.Reset()
	_, err = e.Evaluate("A", "a", nil)
	require.ErrorIs(t, err, ErrNotCompiled)

	_, err = e.Compile("B:\n  b = 2\n")
	require.NoError(t, err)
	v, err := e.Evaluate("B", "b", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestSourceTooLarge(t *testing.T) {
	_, err := newTestEngine(Config{MaxSourceSize: 4}).Compile("A:\n  a = 1\n")
	require.ErrorIs(t, err, ErrSourceTooLarge)
}

func TestAttributeTypes(t *testing.T) {
	e := mustCompile(t, `
A:
  i = 1 + 2
  d = 1 + 2.5
  s = 'a' + 'b'
  b = 1 < 2
  p =? 3
  mixed = if b then i else d
  unknown = if b then i else s
`, Config{})

	node, ok := e.Unit().Node("A")
	require.True(t, ok)

	tests := map[string]*types.Type{
		"i":       types.Integer,
		"d":       types.Decimal,
		"s":       types.String,
		"b":       types.Boolean,
		"p":       types.Integer,
		"mixed":   types.Decimal,
		"unknown": types.Base,
	}
	for name, want := range tests {
		attr, ok := node.Own(name)
		require.True(t, ok)
		require.Equal(t, want, attr.Type, name)
	}
}

func TestExpressions(t *testing.T) {
	e := mustCompile(t, `
A:
  xs = [1, 2, 3, 4]
  h = {'a': 1, 'b': xs}
  evens = [x * 10 for x in xs if x % 2 == 0]
  first = xs[0]
  last = xs[-1]
  missing = xs[10]
  key = h['a']
  dotted = h.b[1]
  absent = h['zz']
  member = 3 in xs
  sub = 'ell' in 'hello'
  neg = -xs[1]
  lazy = false and ERR('never')
  either = nil or 'fallback'
  big = MAX(1, 7, 3)
  small = MIN(2, 0.5)
  abs = ABS(-4)
  rounded = ROUND(2.567, 2)
  whole = ROUND(2.5)
  str = STRING(xs)
  len = LENGTH('héllo') + LENGTH(xs) + LENGTH(h)
  div = 7 / 2
  fdiv = 7 / 2.0
  cat = xs + [5]
  cmp = 'abc' < 'abd'
  eq = 1 == 1.0
`, Config{})

	tests := []struct {
		attr string
		want Value
	}{
		{"evens", []Value{int64(20), int64(40)}},
		{"first", int64(1)},
		{"last", int64(4)},
		{"missing", nil},
		{"key", int64(1)},
		{"dotted", int64(2)},
		{"absent", nil},
		{"member", true},
		{"sub", true},
		{"neg", int64(-2)},
		{"lazy", false},
		{"either", true},
		{"big", int64(7)},
		{"small", 0.5},
		{"abs", int64(4)},
		{"rounded", 2.57},
		{"whole", int64(3)},
		{"str", "[1, 2, 3, 4]"},
		{"len", int64(11)},
		{"div", int64(3)},
		{"fdiv", 3.5},
		{"cat", []Value{int64(1), int64(2), int64(3), int64(4), int64(5)}},
		{"cmp", true},
		{"eq", true},
	}

	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			v, err := e.Evaluate("A", tt.attr, nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	e := mustCompile(t, `
A:
  n =?
  xs = [1, 2]
  needsN = n + 1
  badIndex = xs['a']
  notIndexable = 5[0]
  badMember = xs.size
  nilMember = nil.size
  divZero = 1 / 0
  overflow = 9223372036854775807 + 1
  mismatch = n + 'x'
  user = ERR('limit', 3)
  notIterable = [x for x in 5]
  instMember = A(n: 1).xs.size
`, Config{})

	tests := []struct {
		attr string
		code Code
	}{
		{"needsN", CodeUndefinedParam},
		{"badIndex", CodeInvalidIndex},
		{"notIndexable", CodeInvalidIndex},
		{"badMember", CodeInvalidGetAttribute},
		{"nilMember", CodeInvalidGetAttribute},
		{"divZero", CodeDivisionByZero},
		{"overflow", CodeOverflow},
		{"user", CodeUserError},
		{"notIterable", CodeTypeMismatch},
		{"instMember", CodeInvalidGetAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			_, err := e.Evaluate("A", tt.attr, nil)
			require.True(t, Is(err, tt.code), "got %v", err)
		})
	}

	_, err := e.Evaluate("A", "mismatch", Params{"n": int64(1)})
	require.True(t, Is(err, CodeTypeMismatch), "got %v", err)

	_, err = e.Evaluate("Missing", "a", nil)
	require.True(t, Is(err, CodeUndefinedNode))

	_, err = e.Evaluate("A", "nope", nil)
	require.True(t, Is(err, CodeInvalidGetAttribute))
}

func TestFailureReport(t *testing.T) {
	e := mustCompile(t, `
A:
  limit =? 3
  check = if limit > 2 then ERR('limit too high:', limit) else limit
  total = check + 1
`, Config{Name: "rules"})

	_, err := e.Evaluate("A", "total", nil)
	require.Error(t, err)

	report := Report(err)
	require.Equal(t, CodeUserError, report.Code)
	require.Equal(t, "UserError: limit too high: 3", report.Message)
	require.Equal(t, []Frame{
		{Unit: "rules", Line: 5, Attribute: "A.total"},
		{Unit: "rules", Line: 4, Attribute: "A.check"},
	}, report.Frames)
	require.Contains(t, report.String(), "at rules:4 in A.check")

	_, err = e.Evaluate("A", "total", Params{"limit": int64(1)})
	require.NoError(t, err)
	require.Nil(t, Report(nil))
}

func TestUndefinedParamReport(t *testing.T) {
	e := mustCompile(t, factorialSource, Config{})

	_, err := e.Evaluate("A", "fact", nil)
	report := Report(err)
	require.Equal(t, CodeUndefinedParam, report.Code)
	require.Equal(t, []Frame{
		{Unit: DefaultUnitName, Line: 4, Attribute: "A.fact"},
		{Unit: DefaultUnitName, Line: 3, Attribute: "A.n"},
	}, report.Frames)
}

func TestCompileErrorReport(t *testing.T) {
	_, err := newTestEngine(Config{Name: "x"}).Compile("A:\n  a = b\n")
	report := Report(err)
	require.Equal(t, CodeUndefined, report.Code)
	require.Equal(t, []Frame{{Unit: "x", Line: 2}}, report.Frames)

	plain := Report(errors.New("boom"))
	require.Equal(t, "boom", plain.Message)
	require.Empty(t, plain.Frames)
}

func TestIntegerAndDecimalParamsKeptApart(t *testing.T) {
	shared := cache.NewAgingCache(10)
	e := mustCompile(t, "A:\n  n =?\n  q = n / 4\n  s = STRING(n)\n", Config{Cache: shared, CachedNodes: []string{"A"}})

	tests := []struct {
		attr string
		n    Value
		want Value
	}{
		{"q", int64(2), int64(0)},
		{"q", 2.0, 0.5},
		{"s", 2.0, "2.0"},
		{"s", int64(2), "2"},
	}

	for _, tt := range tests {
		v, err := e.Evaluate("A", tt.attr, Params{"n": tt.n})
		require.NoError(t, err)
		require.Equal(t, tt.want, v, "%s with n=%#v", tt.attr, tt.n)
	}

	inline := mustCompile(t, "A:\n  n =?\n  q = n / 4\nB:\n  both = [A(n: 2).q, A(n: 2.0).q]\n", Config{})
	v, err := inline.Evaluate("B", "both", nil)
	require.NoError(t, err)
	require.Equal(t, []Value{int64(0), 0.5}, v)
}

func TestCachedNodesScopedToUnit(t *testing.T) {
	shared := cache.NewAgingCache(10)
	compile := func(name, version, source string) *Engine {
		return mustCompile(t, source, Config{Name: name, Version: version, Cache: shared, CachedNodes: []string{"Rates"}})
	}

	tests := []struct {
		name string
		e    *Engine
		want Value
	}{
		{"alpha", compile("alpha", "1", "Rates:\n  x = 1\n"), int64(1)},
		{"beta", compile("beta", "1", "Rates:\n  x = 2\n"), int64(2)},
		{"alpha v2", compile("alpha", "2", "Rates:\n  x = 3\n"), int64(3)},
		{"alpha v1 edited", compile("alpha", "1", "Rates:\n  x = 4\n"), int64(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.e.Evaluate("Rates", "x", nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}

	same := compile("alpha", "1", "Rates:\n  x = 1\n")
	rates, ok := same.Unit().Node("Rates")
	require.True(t, ok)
	require.Equal(t, tests[0].e.Unit().nodes["Rates"].CacheClass(), rates.CacheClass())
	require.Equal(t, 1, shared.Len(rates.CacheClass()))
	require.Zero(t, shared.Len("Rates"))
}
