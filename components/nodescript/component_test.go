package nodescript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"

	"github.com/dueldanov/nodescript/internal/cache"
	"github.com/dueldanov/nodescript/internal/nodescript"
	"github.com/dueldanov/nodescript/internal/registry"
)

func withParams(t *testing.T, backend, dir string) {
	saved := *ParamsNodeScript
	t.Cleanup(func() { *ParamsNodeScript = saved })

	ParamsNodeScript.SourceDir = dir
	ParamsNodeScript.Cache.Backend = backend
	ParamsNodeScript.Cache.Size = 10
	ParamsNodeScript.Cache.CachedNodes = []string{"Quote"}
}

func TestProvideRegistry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.ns"), []byte(`
Quote:
  qty =? 2
  price =? 10
  total = qty * price
`), 0o600))
	withParams(t, CacheBackendLRU, dir)

	c := dig.New()
	require.NoError(t, provide(c))

	require.NoError(t, c.Invoke(func(r *registry.Registry, adapter cache.Adapter) {
		require.IsType(t, &cache.LRUCache{}, adapter)

		unit, err := r.Get("pricing", "")
		require.NoError(t, err)
		quote, ok := unit.Node("Quote")
		require.True(t, ok)

		v, err := r.Evaluate("pricing", "Quote", []string{"total"}, nodescript.Params{"qty": int64(3)})
		require.NoError(t, err)
		require.Equal(t, []nodescript.Value{int64(30)}, v)

		lru := adapter.(*cache.LRUCache)
		require.Equal(t, 2, lru.Len(quote.CacheClass()), "price default and total")
		require.Zero(t, lru.Len("Quote"))
	}))
}

func TestProvideKVCacheUsesNamedStore(t *testing.T) {
	withParams(t, CacheBackendKV, t.TempDir())

	store := mapdb.NewMapDB()
	c := dig.New()
	require.NoError(t, c.Provide(func() kvstore.KVStore { return store }, dig.Name("nodeScriptStore")))
	require.NoError(t, provide(c))

	require.NoError(t, c.Invoke(func(adapter cache.Adapter) {
		require.IsType(t, &cache.KVCache{}, adapter)
		adapter.Put("Quote", "k", int64(7))
	}))

	kv, err := cache.NewKVCache(logger.NewNopLogger(), store)
	require.NoError(t, err)
	v, ok := kv.Get("Quote", "k")
	require.True(t, ok)
	require.Equal(t, int64(7), v)
}

func TestUnknownCacheBackend(t *testing.T) {
	withParams(t, "redis", t.TempDir())

	c := dig.New()
	require.NoError(t, provide(c))

	err := c.Invoke(func(cache.Adapter) {})
	require.Error(t, err)
	require.ErrorIs(t, dig.RootCause(err), ErrUnknownCacheBackend)
}

func TestParseRefs(t *testing.T) {
	refs := parseRefs([]string{"rates@2", " premium ", ""})
	require.Equal(t, []registry.Ref{
		{Name: "rates", Version: "2"},
		{Name: "premium"},
	}, refs)
}
