package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/nodescript"
	"github.com/dueldanov/nodescript/internal/registry"
	"github.com/dueldanov/nodescript/internal/syntax"
)

var ErrBadParam = errors.New("parameter must be NAME=VALUE")

// session compiles the unit in one file; imports resolve from its directory.
type session struct {
	registry *registry.Registry
	ref      registry.Ref
	path     string
}

// fileLoader serves the session's own unit from its file and every other
// unit from the directory.
type fileLoader struct {
	registry.DirLoader
	ref  registry.Ref
	path string
}

func (l *fileLoader) Load(name, version string) (*registry.Source, error) {
	if name != l.ref.Name || (version != "" && version != l.ref.Version) {
		return l.DirLoader.Load(name, version)
	}
	text, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", l.path)
	}
	return &registry.Source{Name: name, Version: l.ref.Version, Text: string(text)}, nil
}

func newSession(c *cli.Context, path string) (*session, func(), error) {
	log, err := newLogger(c.Bool("verbose"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build logger")
	}
	sugared := log.Sugar()

	factory := registry.NewEngineFactory(sugared, nodescript.Config{
		Cache: cache.NewAgingCache(cache.DefaultClassSize),
	})
	ref := unitRef(path)
	loader := &fileLoader{
		DirLoader: registry.DirLoader{Dir: filepath.Dir(path)},
		ref:       ref,
		path:      path,
	}

	s := &session{
		registry: registry.New(sugared, loader, factory),
		ref:      ref,
		path:     path,
	}
	return s, func() { _ = log.Sync() }, nil
}

func (s *session) compile() (*nodescript.Unit, error) {
	return s.registry.Get(s.ref.Name, s.ref.Version)
}

func (s *session) evaluate(node string, attrs []string, params nodescript.Params) ([]nodescript.Value, error) {
	return s.registry.Evaluate(s.ref.Name, node, attrs, params)
}

// unitRef maps rates.ns to rates and rates@2.ns to rates at version 2.
func unitRef(path string) registry.Ref {
	name := strings.TrimSuffix(filepath.Base(path), registry.SourceExtension)
	name, version, _ := strings.Cut(name, "@")
	return registry.Ref{Name: name, Version: version}
}

func checkUnits(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("check needs at least one FILE", 2)
	}

	failed := 0
	for _, path := range c.Args().Slice() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		s, done, err := newSession(c, path)
		if err != nil {
			return err
		}

		start := time.Now()
		unit, err := s.compile()
		done()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, nodescript.Report(err))
			failed++
			continue
		}

		fmt.Printf("%s: ok, %s nodes, %s parameters (%s) in %s\n",
			path,
			humanize.Comma(int64(len(unit.Nodes()))),
			humanize.Comma(int64(len(unit.Params()))),
			humanize.Bytes(uint64(info.Size())),
			time.Since(start).Round(time.Microsecond),
		)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d units failed", failed, c.NArg()), 1)
	}
	return nil
}

func evalUnit(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("eval needs exactly one FILE", 2)
	}

	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	s, done, err := newSession(c, c.Args().First())
	if err != nil {
		return err
	}
	defer done()

	if _, err := s.compile(); err != nil {
		return cli.Exit(nodescript.Report(err).String(), 1)
	}

	attrs := c.StringSlice("attr")
	values, err := s.evaluate(c.String("node"), attrs, params)
	if err != nil {
		return cli.Exit(nodescript.Report(err).String(), 1)
	}

	for i, attr := range attrs {
		fmt.Printf("%s.%s = %s\n", c.String("node"), attr, nodescript.Format(values[i]))
	}
	return nil
}

func parseParams(entries []string) (nodescript.Params, error) {
	params := make(nodescript.Params, len(entries))
	for _, entry := range entries {
		name, raw, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Wrap(ErrBadParam, entry)
		}
		params[name] = parseValue(strings.TrimSpace(raw))
	}
	return params, nil
}

// parseValue reads a literal; anything else is taken as a plain string.
func parseValue(raw string) nodescript.Value {
	expr, err := syntax.ParseExpr(raw)
	if err != nil {
		return raw
	}

	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Value
	case *syntax.Unary:
		if lit, ok := e.X.(*syntax.Literal); ok && e.Op == "-" {
			switch v := lit.Value.(type) {
			case int64:
				return -v
			case float64:
				return -v
			}
		}
	}
	return raw
}
