package dummydb

import (
	"sync"

	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/user"
)

type (
	// DB is a process-local store used by tests and the in-memory mode.
	DB struct {
		user       *userTable
		otp        *otpTable
		prediction *predictionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	otpTable struct {
		sync.RWMutex
		table map[string][]otp.Code // by email
	}

	predictionTable struct {
		sync.RWMutex
		seq       int
		records   []row[prediction.Record]
		rawInputs []row[prediction.RawInputRecord]
	}

	// row keeps insertion order to break created_at ties.
	row[T any] struct {
		seq int
		val T
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		otp:        &otpTable{table: make(map[string][]otp.Code)},
		prediction: &predictionTable{},
	}
	return db, nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.otp.Lock()
	db.otp.table = make(map[string][]otp.Code)
	db.otp.Unlock()

	db.prediction.Lock()
	db.prediction.records = nil
	db.prediction.rawInputs = nil
	db.prediction.Unlock()
}
