// Package model describes the host's data model as seen from formulas:
// named external types and the functions callable on them.
package model

import (
	"fmt"
	"sync"

	"github.com/dueldanov/nodescript/internal/types"
)

// Unbounded as MaxArgs accepts any number of arguments.
const Unbounded = -1

// Function is a host function callable as Model.fn(args).
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	// Signatures, when set, take precedence over the arity bounds.
	Signatures []types.Signature
	// Result is the static result type when Signatures are empty.
	Result *types.Type
	// Cached results are kept in the engine's result cache, keyed by the
	// function name and its arguments.
	Cached bool
	Call   func(args []interface{}) (interface{}, error)
}

// CheckArity validates the number of arguments against the bounds.
func (f *Function) CheckArity(n int) error {
	if n < f.MinArgs {
		return fmt.Errorf("%s expects at least %d arguments, got %d", f.Name, f.MinArgs, n)
	}
	if f.MaxArgs != Unbounded && n > f.MaxArgs {
		return fmt.Errorf("%s expects at most %d arguments, got %d", f.Name, f.MaxArgs, n)
	}
	return nil
}

// ResultType resolves the static result type for the given argument types.
func (f *Function) ResultType(args []*types.Type) (*types.Type, error) {
	if len(f.Signatures) > 0 {
		return types.MatchSignatures(f.Name, f.Signatures, args)
	}
	if err := f.CheckArity(len(args)); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNoMatchingOverload, err)
	}
	if f.Result == nil {
		return types.Base, nil
	}
	return f.Result, nil
}

// Model is one host type.
type Model struct {
	Type      *types.Type
	Functions map[string]*Function
}

func (m *Model) Name() string {
	return m.Type.String()
}

// Function looks up a function by name.
func (m *Model) Function(name string) (*Function, bool) {
	f, ok := m.Functions[name]
	return f, ok
}

// Provider resolves capitalized type names to models.
type Provider interface {
	Resolve(name string) (*Model, bool)
}

// Static is an in-memory Provider.
type Static struct {
	mu     sync.RWMutex
	models map[string]*Model
}

var _ Provider = (*Static)(nil)

func NewStatic() *Static {
	return &Static{
		models: make(map[string]*Model),
	}
}

// Define registers a model type and returns it. Defining an existing name
// returns the existing model.
func (s *Static) Define(name string) *Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.models[name]; ok {
		return m
	}
	m := &Model{
		Type:      types.NewModel(name),
		Functions: make(map[string]*Function),
	}
	s.models[name] = m
	return m
}

// Register adds fn to the named model, defining the model if needed.
func (s *Static) Register(modelName string, fn *Function) {
	m := s.Define(modelName)

	s.mu.Lock()
	defer s.mu.Unlock()
	m.Functions[fn.Name] = fn
}

func (s *Static) Resolve(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[name]
	return m, ok
}
