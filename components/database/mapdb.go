package database

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
)

func newMapDB() kvstore.KVStore {
	return mapdb.NewMapDB()
}
