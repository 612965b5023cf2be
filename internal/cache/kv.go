package cache

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
)

const (
	kvRealm     byte = 0xCA
	prefixEntry byte = 0
)

// KVCache persists cached results in a kvstore. Only values built from
// nil, booleans, numbers, strings, lists and hashes are stored; anything
// else is skipped and recomputed on the next lookup.
type KVCache struct {
	*logger.WrappedLogger

	store kvstore.KVStore
}

var _ Adapter = (*KVCache)(nil)

func NewKVCache(log *logger.Logger, store kvstore.KVStore) (*KVCache, error) {
	cacheStore, err := store.WithRealm([]byte{kvRealm})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache realm")
	}

	return &KVCache{
		WrappedLogger: logger.NewWrappedLogger(log),
		store:         cacheStore,
	}, nil
}

func (c *KVCache) Get(class, key string) (interface{}, bool) {
	data, err := c.store.Get(entryKey(class, key))
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			c.LogWarnf("cache read %s/%s failed: %s", class, key, err)
		}
		return nil, false
	}

	v, err := decodeValue(data)
	if err != nil {
		c.LogWarnf("cache entry %s/%s is corrupt: %s", class, key, err)
		return nil, false
	}
	return v, true
}

func (c *KVCache) Put(class, key string, value interface{}) {
	if !Persistable(value) {
		c.LogDebugf("skipping non-persistable cache value for %s/%s (%T)", class, key, value)
		return
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		c.LogWarnf("cache encode %s/%s failed: %s", class, key, err)
		return
	}
	if err := c.store.Set(entryKey(class, key), data); err != nil {
		c.LogWarnf("cache write %s/%s failed: %s", class, key, err)
	}
}

func (c *KVCache) Clear(class string) {
	if err := c.store.DeletePrefix(classPrefix(class)); err != nil {
		c.LogWarnf("cache clear %s failed: %s", class, err)
	}
}

func (c *KVCache) ClearAll() {
	if err := c.store.Clear(); err != nil {
		c.LogWarnf("cache clear failed: %s", err)
	}
}

// Persistable reports whether v can be stored by KVCache.
func Persistable(v interface{}) bool {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return true
	case []interface{}:
		for _, elem := range val {
			if !Persistable(elem) {
				return false
			}
		}
		return true
	case map[interface{}]interface{}:
		for k, elem := range val {
			if !Persistable(k) || !Persistable(elem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func decodeValue(data []byte) (interface{}, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(func(d *msgpack.Decoder) (interface{}, error) {
		return d.DecodeUntypedMap()
	})

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize maps the integer widths msgpack may hand back onto int64.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []interface{}:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(val))
		for k, elem := range val {
			out[normalize(k)] = normalize(elem)
		}
		return out
	default:
		return v
	}
}

func classPrefix(class string) []byte {
	ms := marshalutil.New(2 + len(class))
	ms.WriteByte(prefixEntry)
	ms.WriteBytes([]byte(class))
	ms.WriteByte(0)
	return ms.Bytes()
}

func entryKey(class, key string) []byte {
	ms := marshalutil.New(2 + len(class) + len(key))
	ms.WriteBytes(classPrefix(class))
	ms.WriteBytes([]byte(key))
	return ms.Bytes()
}
