// Package cache holds the result cache contract consulted by the engine
// before expensive host computations, and its adapters.
package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Adapter is a key/value store partitioned into classes.
type Adapter interface {
	Get(class, key string) (interface{}, bool)
	Put(class, key string, value interface{})
	Clear(class string)
	ClearAll()
}

// Fingerprinter is implemented by values that carry their own stable
// identity encoding, e.g. node instances.
type Fingerprinter interface {
	Fingerprint() string
}

// Key builds a cache key from a method or attribute name and its ordered
// arguments. By-value arguments are hashed by value, reference arguments by
// identity.
func Key(name string, args ...interface{}) string {
	var buf []byte
	for _, arg := range args {
		buf = AppendCanonical(buf, arg)
		buf = append(buf, ';')
	}
	return name + "#" + strconv.FormatUint(xxhash.Sum64(buf), 16)
}

// Canonical returns the canonical encoding of v.
func Canonical(v interface{}) string {
	return string(AppendCanonical(nil, v))
}

// AppendCanonical appends a deterministic encoding of v to b. Equal values
// of the same type produce equal encodings regardless of map iteration
// order; Integer and Decimal never share an encoding.
func AppendCanonical(b []byte, v interface{}) []byte {
	switch val := v.(type) {
	case nil:
		return append(b, "nil"...)
	case bool:
		if val {
			return append(b, "b:1"...)
		}
		return append(b, "b:0"...)
	case int64:
		b = append(b, "i:"...)
		return strconv.AppendInt(b, val, 10)
	case int:
		b = append(b, "i:"...)
		return strconv.AppendInt(b, int64(val), 10)
	case float64:
		// 2 and 2.0 are equal values but evaluate differently
		b = append(b, "f:"...)
		return strconv.AppendFloat(b, val, 'g', -1, 64)
	case string:
		b = append(b, "s:"...)
		return strconv.AppendQuote(b, val)
	case Fingerprinter:
		b = append(b, "n:"...)
		return append(b, val.Fingerprint()...)
	case []interface{}:
		b = append(b, '[')
		for i, elem := range val {
			if i > 0 {
				b = append(b, ',')
			}
			b = AppendCanonical(b, elem)
		}
		return append(b, ']')
	case map[string]interface{}:
		keys := maps.Keys(val)
		slices.Sort(keys)
		b = append(b, '{')
		for i, k := range keys {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendQuote(b, k)
			b = append(b, '=')
			b = AppendCanonical(b, val[k])
		}
		return append(b, '}')
	case map[interface{}]interface{}:
		entries := make([]string, 0, len(val))
		for k, elem := range val {
			entries = append(entries, Canonical(k)+"="+Canonical(elem))
		}
		sort.Strings(entries)
		b = append(b, '{')
		for i, e := range entries {
			if i > 0 {
				b = append(b, ',')
			}
			b = append(b, e...)
		}
		return append(b, '}')
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return append(b, fmt.Sprintf("p:%T@%x", v, rv.Pointer())...)
	default:
		return append(b, fmt.Sprintf("v:%T:%#v", v, v)...)
	}
}
