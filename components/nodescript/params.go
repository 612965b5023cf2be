package nodescript

import (
	"github.com/iotaledger/hive.go/app"
)

const (
	CacheBackendAging = "aging"
	CacheBackendLRU   = "lru"
	CacheBackendKV    = "kv"
)

type ParametersNodeScript struct {
	Enabled       bool     `default:"true" usage:"whether the NodeScript engine is enabled"`
	SourceDir     string   `default:"scripts" usage:"directory holding NAME.ns and NAME@VERSION.ns units"`
	Preload       []string `default:"" usage:"units compiled on startup, as NAME or NAME@VERSION"`
	MaxSourceSize int      `default:"1048576" usage:"maximum unit source size in bytes (0 = unlimited)"`

	Cache struct {
		Backend     string   `default:"aging" usage:"result cache backend (aging, lru, kv)"`
		Size        int      `default:"1000" usage:"maximum number of entries per cache class"`
		CachedNodes []string `default:"" usage:"nodes whose attribute results are kept in the result cache"`
	}
}

var ParamsNodeScript = &ParametersNodeScript{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"nodescript": ParamsNodeScript,
	},
	Masked: []string{},
}
