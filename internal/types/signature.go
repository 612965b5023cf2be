package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownFunction    = errors.New("unknown operator or function")
	ErrNoMatchingOverload = errors.New("no matching overload")
)

// ResultFunc computes a result type from the actual argument types.
type ResultFunc func(args []*Type) *Type

// Signature describes one overload of an operator or function.
//
// A signature is either fixed-arity (Params) or variadic (Variadic set, every
// actual argument must be a subtype of it). The result is Result unless
// ResultFn is set, in which case ResultFn is called with the actual types.
type Signature struct {
	Params   []*Type
	Variadic *Type
	Result   *Type
	ResultFn ResultFunc
}

// Fixed builds a fixed-arity signature with a constant result.
func Fixed(result *Type, params ...*Type) Signature {
	return Signature{Params: params, Result: result}
}

// Dynamic builds a fixed-arity signature whose result depends on the actual
// argument types.
func Dynamic(fn ResultFunc, params ...*Type) Signature {
	return Signature{Params: params, ResultFn: fn}
}

// Variadic builds a signature accepting any number of arguments bounded by
// bound.
func Variadic(bound *Type, result *Type) Signature {
	return Signature{Variadic: bound, Result: result}
}

// Accepts reports whether the signature structurally accepts args.
// An actual type of exactly Base is statically unknown and accepted anywhere.
func (s Signature) Accepts(args []*Type) bool {
	if s.Variadic != nil {
		for _, a := range args {
			if !accepts(a, s.Variadic) {
				return false
			}
		}
		return true
	}
	if len(args) != len(s.Params) {
		return false
	}
	for i, a := range args {
		if !accepts(a, s.Params[i]) {
			return false
		}
	}
	return true
}

// ResultFor returns the result type for the given actual argument types.
func (s Signature) ResultFor(args []*Type) *Type {
	if s.ResultFn != nil {
		return s.ResultFn(args)
	}
	if s.Result == nil {
		return Base
	}
	return s.Result
}

func (s Signature) String() string {
	if s.Variadic != nil {
		return fmt.Sprintf("(%s...)", s.Variadic)
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func accepts(actual, declared *Type) bool {
	return actual == Base || Subtype(actual, declared)
}

// NumericResult keeps the operand type when all operands agree and widens to
// Decimal otherwise.
func NumericResult(args []*Type) *Type {
	if len(args) == 0 {
		return Base
	}
	first := args[0]
	for _, a := range args {
		if a == Base || !IsNumeric(a) {
			return Base
		}
	}
	for _, a := range args[1:] {
		if a != first {
			return Decimal
		}
	}
	return first
}

// Matcher holds the registered signatures per operator or function name.
//
// Matching is first-match in registration order, not best-match.
type Matcher struct {
	signatures map[string][]Signature
}

func NewMatcher() *Matcher {
	return &Matcher{signatures: make(map[string][]Signature)}
}

// Register appends signatures for name after any already registered.
func (m *Matcher) Register(name string, sigs ...Signature) {
	m.signatures[name] = append(m.signatures[name], sigs...)
}

// Has reports whether any signature is registered for name.
func (m *Matcher) Has(name string) bool {
	_, ok := m.signatures[name]
	return ok
}

// Signatures returns the overloads of name in registration order.
func (m *Matcher) Signatures(name string) []Signature {
	return m.signatures[name]
}

// Match resolves the result type of calling name with args.
func (m *Matcher) Match(name string, args []*Type) (*Type, error) {
	sigs, ok := m.signatures[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return MatchSignatures(name, sigs, args)
}

// MatchSignatures applies the first-match policy to an explicit overload list.
func MatchSignatures(name string, sigs []Signature, args []*Type) (*Type, error) {
	for _, sig := range sigs {
		if sig.Accepts(args) {
			return sig.ResultFor(args), nil
		}
	}

	actual := make([]string, len(args))
	for i, a := range args {
		actual[i] = a.String()
	}
	return nil, fmt.Errorf("%w for %s(%s)", ErrNoMatchingOverload, name, strings.Join(actual, ", "))
}
