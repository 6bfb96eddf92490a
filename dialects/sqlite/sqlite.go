// Package sqlite opens SQLite backed stores
package sqlite

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/storage/sqlstore"
)

const DriverName = "sqlite3"

type Dialect struct {
	sqlstore.QuestionBindVar
}

func (Dialect) Name() string {
	return "sqlite"
}

func (Dialect) Quote(ident string) string {
	return sqlstore.QuoteWith('`', ident)
}

func (Dialect) SupportsReturning() bool {
	return false
}

func (Dialect) InsertIgnore() (string, string) {
	return "INSERT OR IGNORE INTO", ""
}

// Open opens the database file at dsn with foreign keys enforced on every
// connection of the pool
func Open(dsn string, log logger.Interface) (*sqlstore.Store, error) {
	if !strings.Contains(dsn, "_foreign_keys=") && !strings.Contains(dsn, "_fk=") {
		if strings.Contains(dsn, "?") {
			dsn += "&_foreign_keys=1"
		} else {
			dsn += "?_foreign_keys=1"
		}
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, Dialect{}, log), nil
}
