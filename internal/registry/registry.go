// Package registry maps unit names to compiled units, compiling sources on
// first reference so that units can import one another.
package registry

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/runtime/event"

	"github.com/dueldanov/nodescript/internal/nodescript"
)

var ErrUnitNotLoaded = errors.New("unit not loaded")

// EngineFactory builds the engine compiling one unit. resolver must be set
// as the engine's import resolver.
type EngineFactory func(name, version string, resolver nodescript.UnitResolver) *nodescript.Engine

// NewEngineFactory returns a factory deriving every engine from base.
func NewEngineFactory(log *logger.Logger, base nodescript.Config) EngineFactory {
	return func(name, version string, resolver nodescript.UnitResolver) *nodescript.Engine {
		config := base
		config.Name = name
		config.Version = version
		config.Resolver = resolver
		return nodescript.NewEngine(log, config)
	}
}

// Ref names a unit, optionally pinned to a version.
type Ref struct {
	Name    string
	Version string
}

type Events struct {
	UnitCompiled *event.Event1[*nodescript.Unit]
}

type entry struct {
	version string
	engine  *nodescript.Engine
	unit    *nodescript.Unit
}

// Registry holds the units of one session. Within a session a unit name
// resolves to exactly one version.
type Registry struct {
	*logger.WrappedLogger

	loader  SourceLoader
	factory EngineFactory

	mu      sync.Mutex
	units   map[string]*entry
	loading []string

	Events *Events
}

var _ nodescript.UnitResolver = (*Registry)(nil)

// New creates a new registry
func New(log *logger.Logger, loader SourceLoader, factory EngineFactory) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if factory == nil {
		factory = NewEngineFactory(log, nodescript.Config{})
	}

	return &Registry{
		WrappedLogger: logger.NewWrappedLogger(log),
		loader:        loader,
		factory:       factory,
		units:         make(map[string]*entry),
		Events: &Events{
			UnitCompiled: event.New1[*nodescript.Unit](),
		},
	}
}

// Resolve implements nodescript.UnitResolver.
func (r *Registry) Resolve(name, version string) (*nodescript.Unit, error) {
	return r.Get(name, version)
}

// Get returns the compiled unit, loading and compiling it on first use.
// An empty version accepts whatever version the session already holds.
func (r *Registry) Get(name, version string) (*nodescript.Unit, error) {
	r.mu.Lock()
	if e, ok := r.units[name]; ok {
		r.mu.Unlock()
		if version != "" && e.version != version {
			return nil, &nodescript.CompileError{
				Code:    nodescript.CodeImportCollision,
				Message: "unit " + name + " requested at version " + version + " but version " + e.version + " is already loaded",
				Unit:    name,
			}
		}
		return e.unit, nil
	}

	if idx := slices.Index(r.loading, name); idx >= 0 {
		chain := append(slices.Clone(r.loading[idx:]), name)
		r.mu.Unlock()
		return nil, &nodescript.CompileError{
			Code:    nodescript.CodeImportCycle,
			Message: "import cycle " + strings.Join(chain, " -> "),
			Unit:    name,
		}
	}
	r.loading = append(r.loading, name)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if idx := slices.Index(r.loading, name); idx >= 0 {
			r.loading = slices.Delete(r.loading, idx, idx+1)
		}
	}()

	if r.loader == nil {
		return nil, errors.Wrapf(ErrSourceNotFound, "no loader for unit %s", name)
	}
	src, err := r.loader.Load(name, version)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load unit %s", name)
	}

	r.LogDebugf("compiling unit %s@%s", src.Name, src.Version)

	engine := r.factory(src.Name, src.Version, r)
	unit, err := engine.Compile(src.Text)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.units[name] = &entry{version: src.Version, engine: engine, unit: unit}
	r.mu.Unlock()

	r.LogInfof("unit %s compiled with %d nodes", unit, len(unit.Nodes()))
	r.Events.UnitCompiled.Trigger(unit)

	return unit, nil
}

// Preload compiles every ref, reporting all failures together.
func (r *Registry) Preload(refs ...Ref) error {
	var result error
	for _, ref := range refs {
		if _, err := r.Get(ref.Name, ref.Version); err != nil {
			result = multierr.Append(result, err)
		}
	}
	return result
}

// Engine returns the engine that compiled unit name.
func (r *Registry) Engine(name string) (*nodescript.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.units[name]
	if !ok {
		return nil, false
	}
	return e.engine, true
}

// Evaluate computes attrs of node in a loaded unit.
func (r *Registry) Evaluate(unit, node string, attrs []string, params nodescript.Params) ([]nodescript.Value, error) {
	engine, ok := r.Engine(unit)
	if !ok {
		return nil, errors.Wrap(ErrUnitNotLoaded, unit)
	}
	return engine.EvaluateMany(node, attrs, params)
}

// Units lists loaded unit names, sorted.
func (r *Registry) Units() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := maps.Keys(r.units)
	slices.Sort(names)
	return names
}

// Params lists every parameter name declared across the loaded units,
// sorted and without duplicates.
func (r *Registry) Params() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]struct{})
	for _, e := range r.units {
		for _, name := range e.unit.Params() {
			set[name] = struct{}{}
		}
	}
	names := maps.Keys(set)
	slices.Sort(names)
	return names
}

// Reset forgets every loaded unit, ending the session.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.units = make(map[string]*entry)
	r.loading = nil
}
