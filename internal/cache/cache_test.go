package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"
)

func TestAgingCacheEvictsOldestFifth(t *testing.T) {
	c := NewAgingCache(10)
	for i := 1; i <= 12; i++ {
		c.Put("rates", fmt.Sprintf("k%d", i), i)
	}

	for _, evicted := range []string{"k1", "k2"} {
		_, ok := c.Get("rates", evicted)
		require.False(t, ok, evicted)
	}
	for i := 3; i <= 12; i++ {
		v, ok := c.Get("rates", fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 10, c.Len("rates"))
}

func TestAgingCacheUpdateInPlace(t *testing.T) {
	c := NewAgingCache(2)
	c.Put("a", "x", 1)
	c.Put("a", "y", 2)
	c.Put("a", "x", 3)

	v, ok := c.Get("a", "x")
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 2, c.Len("a"))

	// classes are bounded independently
	c.Put("b", "x", 1)
	require.Equal(t, 2, c.Len("a"))
	require.Equal(t, 1, c.Len("b"))
}

func TestAgingCacheClear(t *testing.T) {
	c := NewAgingCache(0)
	c.Put("a", "x", 1)
	c.Put("b", "x", 2)

	c.Clear("a")
	_, ok := c.Get("a", "x")
	require.False(t, ok)
	_, ok = c.Get("b", "x")
	require.True(t, ok)

	c.ClearAll()
	_, ok = c.Get("b", "x")
	require.False(t, ok)
}

func TestLRUCache(t *testing.T) {
	c := NewLRUCache(4)
	for i := 0; i < 8; i++ {
		c.Put("a", fmt.Sprintf("k%d", i), i)
	}
	require.LessOrEqual(t, c.Len("a"), 4)

	v, ok := c.Get("a", "k7")
	require.True(t, ok)
	require.Equal(t, 7, v)

	c.Clear("a")
	require.Equal(t, 0, c.Len("a"))

	c.Put("b", "x", 1)
	c.ClearAll()
	_, ok = c.Get("b", "x")
	require.False(t, ok)
}

func TestKVCacheRoundTrip(t *testing.T) {
	c, err := NewKVCache(logger.NewNopLogger(), mapdb.NewMapDB())
	require.NoError(t, err)

	value := []interface{}{int64(1), 2.5, "x", nil, true,
		map[interface{}]interface{}{"k": int64(300)}}
	c.Put("rates", "q", value)

	got, ok := c.Get("rates", "q")
	require.True(t, ok)
	require.Equal(t, value, got)

	c.Put("rates", "big", int64(1)<<40)
	got, ok = c.Get("rates", "big")
	require.True(t, ok)
	require.Equal(t, int64(1)<<40, got)

	c.Clear("rates")
	_, ok = c.Get("rates", "q")
	require.False(t, ok)
}

func TestKVCacheSkipsHostValues(t *testing.T) {
	c, err := NewKVCache(logger.NewNopLogger(), mapdb.NewMapDB())
	require.NoError(t, err)

	c.Put("a", "ptr", &struct{}{})
	_, ok := c.Get("a", "ptr")
	require.False(t, ok)
}

type fingerprinted string

func (f fingerprinted) Fingerprint() string { return string(f) }

func TestKey(t *testing.T) {
	h1 := map[interface{}]interface{}{"a": int64(1), "b": int64(2)}
	h2 := map[interface{}]interface{}{"b": int64(2), "a": int64(1)}
	require.Equal(t, Key("f", h1), Key("f", h2))

	require.NotEqual(t, Key("f", int64(2)), Key("f", 2.0))
	require.Equal(t, Key("f", 2.0), Key("f", 2.0))
	require.Equal(t, Canonical(map[string]interface{}{"n": 2.5}), Canonical(map[string]interface{}{"n": 2.5}))
	require.NotEqual(t, Key("f", int64(1), int64(2)), Key("f", int64(2), int64(1)))
	require.NotEqual(t, Key("f", int64(1)), Key("g", int64(1)))
	require.NotEqual(t, Key("f", "1"), Key("f", int64(1)))

	require.Equal(t, Key("f", fingerprinted("A")), Key("f", fingerprinted("A")))
	require.NotEqual(t, Key("f", fingerprinted("A")), Key("f", fingerprinted("B")))

	type host struct{ n int }
	p1, p2 := &host{1}, &host{1}
	require.NotEqual(t, Key("f", p1), Key("f", p2))
	require.Equal(t, Key("f", host{1}), Key("f", host{1}))
}
