package nodescript

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/logger"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/model"
	"github.com/dueldanov/nodescript/internal/syntax"
	"github.com/dueldanov/nodescript/internal/types"
	"github.com/dueldanov/nodescript/internal/whitelist"
)

const DefaultUnitName = "main"

var ErrSourceTooLarge = errors.New("source exceeds maximum size")

// UnitResolver supplies compiled units for import declarations.
type UnitResolver interface {
	Resolve(name, version string) (*Unit, error)
}

// Config carries everything an engine depends on. Nothing is process-wide:
// two engines with different configs are fully independent.
type Config struct {
	// Name and Version identify the unit in errors and failure reports.
	Name    string
	Version string

	Models    model.Provider
	Whitelist *whitelist.Whitelist
	Cache     cache.Adapter
	// CachedNodes have their attribute results kept in Cache.
	CachedNodes []string
	Resolver    UnitResolver
	Metrics     *Metrics

	// MaxSourceSize bounds Compile input; zero means unlimited.
	MaxSourceSize int
}

// Engine compiles one unit and evaluates attributes of its nodes.
type Engine struct {
	*logger.WrappedLogger

	config      Config
	matcher     *types.Matcher
	builtins    map[string]*BuiltinFunction
	cachedNodes map[string]bool

	unit     *Unit
	current  *Node
	compiled bool
	probed   map[probeToken]*types.Type
}

// NewEngine creates a new engine
func NewEngine(log *logger.Logger, config Config) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if config.Name == "" {
		config.Name = DefaultUnitName
	}

	e := &Engine{
		WrappedLogger: logger.NewWrappedLogger(log),
		config:        config,
		matcher:       types.NewMatcher(),
		builtins:      make(map[string]*BuiltinFunction),
		cachedNodes:   make(map[string]bool),
	}

	registerOperators(e.matcher)
	for _, fn := range builtinFunctions() {
		e.builtins[fn.Name] = fn
		e.matcher.Register(fn.Name, fn.Signatures...)
	}
	for _, name := range config.CachedNodes {
		e.cachedNodes[name] = true
	}

	return e
}

// Unit returns the compiled unit, or nil before a successful compile.
func (e *Engine) Unit() *Unit {
	return e.unit
}

// Reset discards the compiled unit so the engine can compile again.
func (e *Engine) Reset() {
	e.unit = nil
	e.current = nil
	e.compiled = false
	e.probed = nil
}

// Compile parses and compiles source into the engine's unit.
func (e *Engine) Compile(source string) (*Unit, error) {
	if e.compiled {
		return nil, ErrAlreadyCompiled
	}
	if e.config.MaxSourceSize > 0 && len(source) > e.config.MaxSourceSize {
		return nil, ErrSourceTooLarge
	}

	script, err := syntax.Parse(source)
	if err != nil {
		e.compiled = true
		compileErr := &CompileError{Code: CodeSyntax, Message: err.Error(), Unit: e.config.Name, Cause: err}
		var syntaxErr *syntax.Error
		if errors.As(err, &syntaxErr) {
			compileErr.Message = syntaxErr.Msg
			compileErr.Line = syntaxErr.Line
		}
		e.config.Metrics.recordCompile(0, compileErr)
		return nil, compileErr
	}

	unit, err := e.CompileScript(script)
	if err != nil {
		return nil, err
	}
	unit.Digest = strconv.FormatUint(xxhash.Sum64String(source), 16)
	return unit, nil
}

// CompileScript compiles an already parsed script. Declarations are
// processed in order and the first error discards the whole unit.
func (e *Engine) CompileScript(script *syntax.Script) (*Unit, error) {
	if e.compiled {
		return nil, ErrAlreadyCompiled
	}
	e.compiled = true

	start := time.Now()
	e.unit = newUnit(e.config.Name, e.config.Version)
	e.current = nil
	e.probed = make(map[probeToken]*types.Type)

	e.LogDebugf("compiling unit %s (%d declarations)", e.unit, len(script.Decls))

	for _, decl := range script.Decls {
		var err error
		switch d := decl.(type) {
		case *syntax.ImportDecl:
			err = e.defineImport(d)
		case *syntax.NodeDecl:
			err = e.defineNode(d)
		case *syntax.AttrDecl:
			err = e.defineAttribute(d)
		default:
			err = compileErrorf(CodeSyntax, "unsupported declaration %s", decl.Type())
		}

		if err != nil {
			compileErr := e.located(err, decl.Pos())
			e.unit = nil
			e.current = nil
			e.config.Metrics.recordCompile(time.Since(start), compileErr)
			e.LogDebugf("compile of %s failed: %s", e.config.Name, compileErr)
			return nil, compileErr
		}
	}

	e.current = nil
	e.config.Metrics.recordCompile(time.Since(start), nil)
	e.LogDebugf("compiled unit %s: %d nodes in %s", e.unit, len(e.unit.order), time.Since(start))

	return e.unit, nil
}

// located stamps the unit name and declaration line onto errors raised
// while compiling a declaration.
func (e *Engine) located(err error, line int) *CompileError {
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		return &CompileError{Code: CodeSyntax, Message: err.Error(), Unit: e.config.Name, Line: line, Cause: err}
	}
	if compileErr.Unit == "" {
		compileErr.Unit = e.config.Name
		compileErr.Line = line
	}
	return compileErr
}

func (e *Engine) defineImport(d *syntax.ImportDecl) error {
	if e.config.Resolver == nil {
		return compileErrorf(CodeUndefined, "cannot import %s: no unit resolver configured", d.Unit)
	}
	if _, ok := e.unit.imports[d.Unit]; ok {
		return compileErrorf(CodeRedefined, "unit %s is already imported", d.Unit)
	}

	imported, err := e.config.Resolver.Resolve(d.Unit, d.Version)
	if err != nil {
		code := CodeUndefined
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			code = compileErr.Code
		}
		return &CompileError{
			Code:    code,
			Message: "import " + d.Unit + ": " + err.Error(),
			Cause:   err,
		}
	}

	e.unit.imports[d.Unit] = imported
	e.LogDebugf("%s imports %s", e.unit, imported)
	return nil
}

func (e *Engine) defineNode(d *syntax.NodeDecl) error {
	if _, ok := e.unit.nodes[d.Name]; ok {
		return compileErrorf(CodeRedefined, "node %s is already defined", d.Name)
	}

	var parent *Node
	switch {
	case d.ParentScope != "":
		imported, ok := e.unit.imports[d.ParentScope]
		if !ok {
			return compileErrorf(CodeUndefined, "unit %s is not imported", d.ParentScope)
		}
		if parent, ok = imported.nodes[d.Parent]; !ok {
			return compileErrorf(CodeUndefined, "node %s is not defined in %s", d.Parent, d.ParentScope)
		}
	case d.Parent != "":
		var ok bool
		if parent, ok = e.unit.nodes[d.Parent]; !ok {
			return compileErrorf(CodeUndefined, "parent node %s is not defined", d.Parent)
		}
	}

	node := newNode(e.unit, d.Name, parent, d.Line)
	e.unit.add(node)
	e.current = node
	return nil
}

func (e *Engine) defineAttribute(d *syntax.AttrDecl) error {
	node := e.current
	if node == nil {
		return compileErrorf(CodeSyntax, "attribute %s declared outside of a node", d.Name)
	}
	if _, ok := node.attrs[d.Name]; ok {
		return compileErrorf(CodeRedefined, "attribute %s is already defined on %s", d.Name, node.Name)
	}

	attr := &Attribute{
		Name:  d.Name,
		Node:  node,
		Param: d.Param,
		Line:  d.Line,
	}
	node.add(attr)
	e.invalidate(node)

	l := &lowerer{eng: e}
	var err error
	if d.Param {
		if d.Default != nil {
			attr.def, err = l.lower(d.Default)
		}
	} else {
		attr.formula, err = l.lower(d.Formula)
	}
	if err != nil {
		return err
	}

	p := &probe{eng: e, ctx: node, path: newProbePath()}
	t, err := p.resolveAttr(node, attr)
	if err != nil {
		return err
	}
	attr.Type = t

	return nil
}
