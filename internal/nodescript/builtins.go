package nodescript

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dueldanov/nodescript/internal/types"
)

// BuiltinFunction represents a built-in function
type BuiltinFunction struct {
	Name       string
	Signatures []types.Signature
	Handler    func(args []Value) (Value, error)
}

func builtinFunctions() []*BuiltinFunction {
	return []*BuiltinFunction{
		{
			Name:       "ERR",
			Signatures: []types.Signature{types.Variadic(types.Base, types.Base)},
			Handler:    funcErr,
		},
		{
			Name:       "MIN",
			Signatures: []types.Signature{{Variadic: types.Number, ResultFn: types.NumericResult}},
			Handler: func(args []Value) (Value, error) {
				return extremum("MIN", args, func(a, b float64) bool { return a < b })
			},
		},
		{
			Name:       "MAX",
			Signatures: []types.Signature{{Variadic: types.Number, ResultFn: types.NumericResult}},
			Handler: func(args []Value) (Value, error) {
				return extremum("MAX", args, func(a, b float64) bool { return a > b })
			},
		},
		{
			Name:       "ABS",
			Signatures: []types.Signature{types.Dynamic(types.NumericResult, types.Number)},
			Handler:    funcAbs,
		},
		{
			Name: "ROUND",
			Signatures: []types.Signature{
				types.Fixed(types.Integer, types.Number),
				types.Fixed(types.Decimal, types.Number, types.Integer),
			},
			Handler: funcRound,
		},
		{
			Name:       "STRING",
			Signatures: []types.Signature{types.Fixed(types.String, types.Base)},
			Handler:    funcString,
		},
		{
			Name: "LENGTH",
			Signatures: []types.Signature{
				types.Fixed(types.Integer, types.String),
				types.Fixed(types.Integer, types.Base),
			},
			Handler: funcLength,
		},
	}
}

// registerOperators declares the operator overloads consulted by the
// check pass. Order matters: the first matching signature wins.
func registerOperators(m *types.Matcher) {
	numeric := types.Dynamic(types.NumericResult, types.Number, types.Number)

	m.Register("+", numeric, types.Fixed(types.String, types.String, types.String))
	m.Register("-", numeric, types.Dynamic(types.NumericResult, types.Number))
	m.Register("*", numeric)
	m.Register("/", numeric)
	m.Register("%", types.Fixed(types.Integer, types.Integer, types.Integer))

	for _, op := range []string{"<", "<=", ">", ">="} {
		m.Register(op,
			types.Fixed(types.Boolean, types.Number, types.Number),
			types.Fixed(types.Boolean, types.String, types.String),
		)
	}
	for _, op := range []string{"==", "!=", "in", "and", "or"} {
		m.Register(op, types.Fixed(types.Boolean, types.Base, types.Base))
	}
	m.Register("not", types.Fixed(types.Boolean, types.Base))
}

func funcErr(args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = Format(arg)
	}
	return nil, newRuntimeError(CodeUserError, "%s", strings.Join(parts, " "))
}

func extremum(name string, args []Value, better func(a, b float64) bool) (Value, error) {
	if len(args) == 0 {
		return nil, newRuntimeError(CodeTypeMismatch, "%s expects at least one argument", name)
	}

	var (
		best    Value
		bestF   float64
		allInts = true
	)
	for i, arg := range args {
		f, ok := toFloat(arg)
		if !ok {
			return nil, newRuntimeError(CodeTypeMismatch, "%s expects numbers, got %s", name, typeName(arg))
		}
		if _, isInt := arg.(int64); !isInt {
			allInts = false
		}
		if i == 0 || better(f, bestF) {
			best, bestF = arg, f
		}
	}
	if allInts {
		return best, nil
	}
	return bestF, nil
}

func funcAbs(args []Value) (Value, error) {
	switch n := args[0].(type) {
	case int64:
		if n < 0 {
			return negate(n)
		}
		return n, nil
	case float64:
		return math.Abs(n), nil
	}
	return nil, newRuntimeError(CodeTypeMismatch, "ABS expects a number, got %s", typeName(args[0]))
}

func funcRound(args []Value) (Value, error) {
	f, ok := toFloat(args[0])
	if !ok {
		return nil, newRuntimeError(CodeTypeMismatch, "ROUND expects a number, got %s", typeName(args[0]))
	}

	if len(args) == 1 {
		r := math.Round(f)
		if r >= math.MaxInt64 || r < math.MinInt64 || math.IsNaN(r) {
			return nil, newRuntimeError(CodeOverflow, "%v does not fit an Integer", f)
		}
		return int64(r), nil
	}

	digits, ok := args[1].(int64)
	if !ok {
		return nil, newRuntimeError(CodeTypeMismatch, "ROUND digits must be Integer, got %s", typeName(args[1]))
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(f*scale) / scale, nil
}

func funcString(args []Value) (Value, error) {
	return Format(args[0]), nil
}

func funcLength(args []Value) (Value, error) {
	switch v := args[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	case []Value:
		return int64(len(v)), nil
	case map[Value]Value:
		return int64(len(v)), nil
	}
	return nil, newRuntimeError(CodeTypeMismatch, "LENGTH expects a String, List or Hash, got %s", typeName(args[0]))
}
