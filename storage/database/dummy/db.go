// Package dummydb provides an in-memory roster.Repository for tests; it
// mirrors the sqlite repository's semantics (email uniqueness, token-guarded
// reset) without touching disk.
package dummydb

import (
	"sync"

	"github.com/trezcool/rollcall/core/roster"
)

type DB struct {
	roster *rosterTable
}

type rosterTable struct {
	sync.RWMutex
	state   roster.SessionState
	records []roster.AttendanceRecord
	pkCount int
}

func Open() (*DB, error) {
	return &DB{roster: &rosterTable{}}, nil
}
