package dolphain

import (
	"github.com/himanishpuri/dolphain/internal/storage"
)

// ErrRunNotFound is returned by Index lookups for an unknown run ID.
var ErrRunNotFound = storage.ErrRunNotFound

// NewSQLiteIndex opens (or creates) the SQLite results index at dbPath. An empty
// path uses dolphain.sqlite3 in the working directory.
func NewSQLiteIndex(dbPath string) (Index, error) {
	db, err := storage.NewDBClient(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
