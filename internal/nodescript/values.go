package nodescript

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dueldanov/nodescript/internal/cache"
)

// Value is a runtime value: int64, float64, string, bool, nil, []Value,
// map[Value]Value, *Instance or a host value.
type Value = interface{}

// Params is a parameter environment.
type Params map[string]Value

// Instance is a node bound to an override set and a parameter environment.
// Bare node references and instantiations like A(n: 3) both evaluate to
// instances.
type Instance struct {
	Node *Node

	overrides   map[string]Value
	env         Params
	fingerprint string
}

func newInstance(node *Node, overrides map[string]Value, env Params) *Instance {
	b := make([]byte, 0, 64)
	b = append(b, node.unit.ID.String()...)
	b = append(b, '/')
	b = append(b, node.Name...)
	b = append(b, '|')
	b = cache.AppendCanonical(b, map[string]interface{}(overrides))
	b = append(b, '|')
	b = cache.AppendCanonical(b, map[string]interface{}(env))

	return &Instance{
		Node:        node,
		overrides:   overrides,
		env:         env,
		fingerprint: string(b),
	}
}

// Fingerprint identifies the instance by node identity and the canonical
// encoding of its overrides and environment.
func (i *Instance) Fingerprint() string {
	return i.fingerprint
}

func (i *Instance) String() string {
	if len(i.overrides) == 0 {
		return i.Node.Name
	}
	names := make([]string, 0, len(i.overrides))
	for name := range i.overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for n, name := range names {
		parts[n] = name + ": " + formatValue(i.overrides[name], true)
	}
	return i.Node.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Format renders v the way the CLI prints results.
func Format(v Value) string {
	return formatValue(v, false)
}

func formatValue(v Value, nested bool) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	case string:
		if nested {
			return strconv.Quote(val)
		}
		return val
	case []Value:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem, true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[Value]Value:
		parts := make([]string, 0, len(val))
		for k, elem := range val {
			parts = append(parts, formatValue(k, true)+": "+formatValue(elem, true))
		}
		sort.Strings(parts)
		return "{" + strings.Join(parts, ", ") + "}"
	case *Instance:
		return val.String()
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return reflect.TypeOf(v).String()
	}
}

func typeName(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		return "Boolean"
	case int64:
		return "Integer"
	case float64:
		return "Decimal"
	case string:
		return "String"
	case []Value:
		return "List"
	case map[Value]Value:
		return "Hash"
	case *Instance:
		return val.Node.Name
	default:
		return reflect.TypeOf(v).String()
	}
}

func truthy(v Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func hashable(v Value) bool {
	switch v.(type) {
	case nil, bool, int64, float64, string, *Instance:
		return true
	case []Value, map[Value]Value:
		return false
	default:
		return reflect.TypeOf(v).Comparable()
	}
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b Value) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch x := a.(type) {
	case nil:
		return b == nil
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[Value]Value:
		y, ok := b.(map[Value]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !equal(xv, yv) {
				return false
			}
		}
		return true
	case *Instance:
		y, ok := b.(*Instance)
		return ok && x.fingerprint == y.fingerprint
	}

	if b == nil || reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

func typeMismatch(op string, a, b Value) *RuntimeError {
	return newRuntimeError(CodeTypeMismatch, "unsupported operand types for %s: %s and %s", op, typeName(a), typeName(b))
}

func arith(op string, a, b Value) (Value, error) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return intArith(op, x, y)
		case float64:
			return floatArith(op, float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return floatArith(op, x, float64(y))
		case float64:
			return floatArith(op, x, y)
		}
	case string:
		if y, ok := b.(string); ok && op == "+" {
			return x + y, nil
		}
	case []Value:
		if y, ok := b.([]Value); ok && op == "+" {
			out := make([]Value, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
	}
	return nil, typeMismatch(op, a, b)
}

func intArith(op string, x, y int64) (Value, error) {
	switch op {
	case "+":
		s := x + y
		if (y > 0 && s < x) || (y < 0 && s > x) {
			return nil, newRuntimeError(CodeOverflow, "integer overflow in %d + %d", x, y)
		}
		return s, nil
	case "-":
		d := x - y
		if (y < 0 && d < x) || (y > 0 && d > x) {
			return nil, newRuntimeError(CodeOverflow, "integer overflow in %d - %d", x, y)
		}
		return d, nil
	case "*":
		if x == 0 || y == 0 {
			return int64(0), nil
		}
		p := x * y
		if p/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return nil, newRuntimeError(CodeOverflow, "integer overflow in %d * %d", x, y)
		}
		return p, nil
	case "/":
		if y == 0 {
			return nil, newRuntimeError(CodeDivisionByZero, "division by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return nil, newRuntimeError(CodeOverflow, "integer overflow in %d / %d", x, y)
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return nil, newRuntimeError(CodeDivisionByZero, "modulo by zero")
		}
		if y == -1 {
			return int64(0), nil
		}
		return x % y, nil
	}
	return nil, typeMismatch(op, x, y)
}

func floatArith(op string, x, y float64) (Value, error) {
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, newRuntimeError(CodeDivisionByZero, "division by zero")
		}
		return x / y, nil
	}
	return nil, typeMismatch(op, x, y)
}

func negate(v Value) (Value, error) {
	switch n := v.(type) {
	case int64:
		if n == math.MinInt64 {
			return nil, newRuntimeError(CodeOverflow, "integer overflow in -%d", n)
		}
		return -n, nil
	case float64:
		return -n, nil
	}
	return nil, newRuntimeError(CodeTypeMismatch, "unsupported operand type for -: %s", typeName(v))
}

func compare(op string, a, b Value) (bool, error) {
	var c int
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return false, typeMismatch(op, a, b)
		}
		switch {
		case fa < fb:
			c = -1
		case fa > fb:
			c = 1
		}
	} else if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return false, typeMismatch(op, a, b)
		}
		c = strings.Compare(sa, sb)
	} else {
		return false, typeMismatch(op, a, b)
	}

	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, typeMismatch(op, a, b)
}

func contains(x, seq Value) (bool, error) {
	switch s := seq.(type) {
	case []Value:
		for _, elem := range s {
			if equal(x, elem) {
				return true, nil
			}
		}
		return false, nil
	case map[Value]Value:
		if !hashable(x) {
			return false, nil
		}
		_, ok := s[x]
		return ok, nil
	case string:
		sub, ok := x.(string)
		if !ok {
			return false, typeMismatch("in", x, seq)
		}
		return strings.Contains(s, sub), nil
	}
	return false, typeMismatch("in", x, seq)
}

func index(x, i Value) (Value, error) {
	switch s := x.(type) {
	case []Value:
		n, ok := i.(int64)
		if !ok {
			return nil, newRuntimeError(CodeInvalidIndex, "list index must be Integer, got %s", typeName(i))
		}
		if n < 0 {
			n += int64(len(s))
		}
		if n < 0 || n >= int64(len(s)) {
			return nil, nil
		}
		return s[n], nil
	case map[Value]Value:
		if !hashable(i) {
			return nil, newRuntimeError(CodeInvalidIndex, "%s cannot be used as a hash key", typeName(i))
		}
		return s[i], nil
	case string:
		n, ok := i.(int64)
		if !ok {
			return nil, newRuntimeError(CodeInvalidIndex, "string index must be Integer, got %s", typeName(i))
		}
		runes := []rune(s)
		if n < 0 {
			n += int64(len(runes))
		}
		if n < 0 || n >= int64(len(runes)) {
			return nil, nil
		}
		return string(runes[n]), nil
	}
	return nil, newRuntimeError(CodeInvalidIndex, "%s is not indexable", typeName(x))
}
