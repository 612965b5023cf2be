package database

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/kvstore"

	"github.com/dueldanov/nodescript/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "Database",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		Provide:  provide,
		Run:      run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

var ErrUnknownEngine = errors.New("unknown database engine")

type dependencies struct {
	dig.In

	Store kvstore.KVStore `name:"nodeScriptStore"`
}

type storeResult struct {
	dig.Out

	Store kvstore.KVStore `name:"nodeScriptStore"`
}

func provide(c *dig.Container) error {
	return c.Provide(func() (storeResult, error) {
		store, err := newStore(ParamsDatabase.Engine)
		if err != nil {
			return storeResult{}, err
		}
		return storeResult{Store: store}, nil
	})
}

func newStore(engine string) (kvstore.KVStore, error) {
	switch engine {
	case EngineMapDB, "":
		return newMapDB(), nil
	default:
		return nil, errors.Wrap(ErrUnknownEngine, engine)
	}
}

func run() error {
	return Component.Daemon().BackgroundWorker("Close database", func(ctx context.Context) {
		<-ctx.Done()

		Component.LogInfo("Syncing database to disk ...")
		if err := deps.Store.Flush(); err != nil {
			Component.LogErrorf("failed to flush database: %s", err)
		}
		if err := deps.Store.Close(); err != nil {
			Component.LogErrorf("failed to close database: %s", err)
		}
		Component.LogInfo("Syncing database to disk ... done")
	}, daemon.PriorityCloseDatabase)
}
