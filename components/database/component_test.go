package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/kvstore"
)

func TestProvideNamedStore(t *testing.T) {
	c := dig.New()
	require.NoError(t, provide(c))

	type in struct {
		dig.In

		Store kvstore.KVStore `name:"nodeScriptStore"`
	}
	require.NoError(t, c.Invoke(func(deps in) {
		require.NoError(t, deps.Store.Set([]byte("k"), []byte("v")))
		v, err := deps.Store.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v"), []byte(v))
	}))
}

func TestUnknownEngine(t *testing.T) {
	_, err := newStore("rocksdb")
	require.ErrorIs(t, err, ErrUnknownEngine)
}
