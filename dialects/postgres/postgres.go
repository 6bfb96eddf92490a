// Package postgres opens PostgreSQL backed stores through pgx or lib/pq
package postgres

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/storage/sqlstore"
)

const (
	// DriverPgx pgx stdlib driver, the default
	DriverPgx = "pgx"
	// DriverPq lib/pq driver
	DriverPq = "postgres"
)

type Dialect struct {
	sqlstore.DollarBindVar
}

func (Dialect) Name() string {
	return "postgres"
}

func (Dialect) Quote(ident string) string {
	return sqlstore.QuoteWith('"', ident)
}

func (Dialect) SupportsReturning() bool {
	return true
}

func (Dialect) InsertIgnore() (string, string) {
	return "INSERT INTO", " ON CONFLICT DO NOTHING"
}

type Config struct {
	DSN        string
	DriverName string
}

// Open connects to dsn with pgx
func Open(dsn string, log logger.Interface) (*sqlstore.Store, error) {
	return New(Config{DSN: dsn}, log)
}

// New connects with the configured driver, pgx when empty
func New(config Config, log logger.Interface) (*sqlstore.Store, error) {
	driver := config.DriverName
	if driver == "" {
		driver = DriverPgx
	}
	db, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, Dialect{}, log), nil
}
