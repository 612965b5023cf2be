package nodescript

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/model"
	"github.com/dueldanov/nodescript/internal/nodescript"
	"github.com/dueldanov/nodescript/internal/registry"
	"github.com/dueldanov/nodescript/internal/whitelist"
	"github.com/dueldanov/nodescript/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "NodeScript",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsNodeScript.Enabled
		},
		Provide:   provide,
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

var ErrUnknownCacheBackend = errors.New("unknown cache backend")

type dependencies struct {
	dig.In

	Registry *registry.Registry
}

type cacheDeps struct {
	dig.In

	Store kvstore.KVStore `name:"nodeScriptStore" optional:"true"`
}

type metricsDeps struct {
	dig.In

	Registerer prometheus.Registerer `optional:"true"`
}

type engineDeps struct {
	dig.In

	Cache     cache.Adapter
	Metrics   *nodescript.Metrics
	Models    model.Provider       `optional:"true"`
	Whitelist *whitelist.Whitelist `optional:"true"`
}

func provide(c *dig.Container) error {
	if err := c.Provide(func(deps cacheDeps) (cache.Adapter, error) {
		return newCacheAdapter(componentLogger("NodeScript-Cache"), deps.Store)
	}); err != nil {
		return err
	}

	if err := c.Provide(func(deps metricsDeps) *nodescript.Metrics {
		registerer := deps.Registerer
		if registerer == nil {
			registerer = prometheus.NewRegistry()
		}
		return nodescript.NewMetrics(registerer)
	}); err != nil {
		return err
	}

	if err := c.Provide(func(deps engineDeps) registry.EngineFactory {
		return registry.NewEngineFactory(componentLogger("NodeScript-Engine"), nodescript.Config{
			Models:        deps.Models,
			Whitelist:     deps.Whitelist,
			Cache:         deps.Cache,
			CachedNodes:   ParamsNodeScript.Cache.CachedNodes,
			Metrics:       deps.Metrics,
			MaxSourceSize: ParamsNodeScript.MaxSourceSize,
		})
	}); err != nil {
		return err
	}

	return c.Provide(func(factory registry.EngineFactory) *registry.Registry {
		loader := &registry.DirLoader{Dir: ParamsNodeScript.SourceDir}
		return registry.New(componentLogger("NodeScript-Registry"), loader, factory)
	})
}

func configure() error {
	deps.Registry.Events.UnitCompiled.Hook(func(unit *nodescript.Unit) {
		Component.LogInfof("unit %s ready: %d nodes, %d parameters", unit, len(unit.Nodes()), len(unit.Params()))
	})

	refs := parseRefs(ParamsNodeScript.Preload)
	if len(refs) == 0 {
		return nil
	}

	if err := deps.Registry.Preload(refs...); err != nil {
		Component.LogErrorf("failed to preload units: %s", err)
		return err
	}
	Component.LogInfof("preloaded %d units from %s", len(refs), ParamsNodeScript.SourceDir)

	return nil
}

func run() error {
	return Component.Daemon().BackgroundWorker("NodeScript", func(ctx context.Context) {
		Component.LogInfof("NodeScript serving units from %s", ParamsNodeScript.SourceDir)
		<-ctx.Done()

		units := deps.Registry.Units()
		deps.Registry.Reset()
		Component.LogInfof("NodeScript stopped, released %d units", len(units))
	}, daemon.PriorityNodeScript)
}

func newCacheAdapter(log *logger.Logger, store kvstore.KVStore) (cache.Adapter, error) {
	switch ParamsNodeScript.Cache.Backend {
	case CacheBackendAging, "":
		return cache.NewAgingCache(ParamsNodeScript.Cache.Size), nil
	case CacheBackendLRU:
		return cache.NewLRUCache(ParamsNodeScript.Cache.Size), nil
	case CacheBackendKV:
		if store == nil {
			store = mapdb.NewMapDB()
		}
		return cache.NewKVCache(log, store)
	default:
		return nil, errors.Wrap(ErrUnknownCacheBackend, ParamsNodeScript.Cache.Backend)
	}
}

// parseRefs reads NAME or NAME@VERSION entries, skipping blanks.
func parseRefs(entries []string) []registry.Ref {
	refs := make([]registry.Ref, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, version, _ := strings.Cut(entry, "@")
		refs = append(refs, registry.Ref{Name: name, Version: version})
	}
	return refs
}

func componentLogger(name string) *logger.Logger {
	if Component == nil || Component.App() == nil {
		return logger.NewNopLogger()
	}
	return Component.App().NewLogger(name)
}
