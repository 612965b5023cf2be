// Package whitelist restricts which host methods formulas may call.
package whitelist

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotAllowed  = errors.New("method not allowed")
	ErrArgMismatch = errors.New("arguments not allowed")
	ErrBadRule     = errors.New("invalid whitelist rule")
)

type absentArg struct{}

var (
	// Absent in an ArgSet lets the argument be omitted.
	Absent = reflect.TypeOf(absentArg{})
	// Any accepts every value, nil included.
	Any = reflect.TypeOf((*interface{})(nil)).Elem()
)

// TypeOf returns the reflect.Type of T, interfaces included.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ArgSet lists the types allowed at one argument position.
type ArgSet []reflect.Type

func (s ArgSet) allowsAbsent() bool {
	for _, t := range s {
		if t == Absent {
			return true
		}
	}
	return false
}

func (s ArgSet) accepts(arg interface{}) bool {
	for _, t := range s {
		if t == Absent {
			continue
		}
		if t == Any {
			return true
		}
		if arg == nil {
			continue
		}
		at := reflect.TypeOf(arg)
		if at == t || (t.Kind() == reflect.Interface && at.Implements(t)) {
			return true
		}
	}
	return false
}

// CallFunc invokes the whitelisted method on recv.
type CallFunc func(recv interface{}, args []interface{}) (interface{}, error)

// Rule allows Method on values of Receiver. Receiver may be an interface
// type; a rule for the exact concrete type takes precedence.
type Rule struct {
	Method   string
	Receiver reflect.Type
	Args     []ArgSet
	Call     CallFunc
}

func (r *Rule) acceptsArgs(args []interface{}) bool {
	if len(args) > len(r.Args) {
		return false
	}
	for i, set := range r.Args {
		if i >= len(args) {
			if !set.allowsAbsent() {
				return false
			}
			continue
		}
		if !set.accepts(args[i]) {
			return false
		}
	}
	return true
}

type Whitelist struct {
	mu    sync.RWMutex
	rules map[string][]*Rule
}

func New() *Whitelist {
	return &Whitelist{
		rules: make(map[string][]*Rule),
	}
}

// Add registers a rule. Rules are consulted in registration order.
func (w *Whitelist) Add(rule *Rule) error {
	if rule == nil || rule.Method == "" || rule.Receiver == nil || rule.Call == nil {
		return ErrBadRule
	}
	for i, set := range rule.Args {
		if len(set) == 0 {
			return errors.Wrapf(ErrBadRule, "%s: argument %d allows no types", rule.Method, i)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.rules[rule.Method] = append(w.rules[rule.Method], rule)
	return nil
}

// Allow registers a rule for receiver type R.
func Allow[R any](w *Whitelist, method string, call CallFunc, args ...ArgSet) error {
	return w.Add(&Rule{
		Method:   method,
		Receiver: TypeOf[R](),
		Args:     args,
		Call:     call,
	})
}

// Authorize finds the rule allowing method on recv with args. The receiver
// decides first: a rule for the exact concrete type beats interface rules,
// and among interfaces the most specific one wins, registration order
// breaking ties. The arguments are then validated against the rules for
// that receiver only.
func (w *Whitelist) Authorize(method string, recv interface{}, args []interface{}) (*Rule, error) {
	if recv == nil {
		return nil, errors.Wrapf(ErrNotAllowed, "%s on nil", method)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	rt := reflect.TypeOf(recv)
	receiver := w.receiver(method, rt)
	if receiver == nil {
		return nil, errors.Wrap(ErrNotAllowed, describe(method, rt, args))
	}

	for _, rule := range w.rules[method] {
		if rule.Receiver == receiver && rule.acceptsArgs(args) {
			return rule, nil
		}
	}
	return nil, errors.Wrap(ErrArgMismatch, describe(method, rt, args))
}

// receiver picks the most specific receiver type with a rule for method.
func (w *Whitelist) receiver(method string, rt reflect.Type) reflect.Type {
	var best reflect.Type
	for _, rule := range w.rules[method] {
		r := rule.Receiver
		if r == rt {
			return r
		}
		if r.Kind() != reflect.Interface || !rt.Implements(r) {
			continue
		}
		if best == nil || (r.Implements(best) && !best.Implements(r)) {
			best = r
		}
	}
	return best
}

// Allowed reports whether method may be called on recv with args.
func (w *Whitelist) Allowed(method string, recv interface{}, args []interface{}) bool {
	_, err := w.Authorize(method, recv, args)
	return err == nil
}

func describe(method string, recv reflect.Type, args []interface{}) string {
	s := fmt.Sprintf("%s.%s(", recv, method)
	for i, arg := range args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%T", arg)
	}
	return s + ")"
}
