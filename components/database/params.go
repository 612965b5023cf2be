package database

import (
	"github.com/iotaledger/hive.go/app"
)

const EngineMapDB = "mapdb"

type ParametersDatabase struct {
	// Engine selects the store backing unit sources and the kv result cache.
	Engine string `default:"mapdb" usage:"the database engine (mapdb)"`
}

var ParamsDatabase = &ParametersDatabase{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"db": ParamsDatabase,
	},
	Masked: []string{},
}
