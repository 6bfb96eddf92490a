// Package mysql opens MySQL backed stores
package mysql

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/storage/sqlstore"
)

const DriverName = "mysql"

type Dialect struct {
	sqlstore.QuestionBindVar
}

func (Dialect) Name() string {
	return DriverName
}

func (Dialect) Quote(ident string) string {
	return sqlstore.QuoteWith('`', ident)
}

func (Dialect) SupportsReturning() bool {
	return false
}

func (Dialect) InsertIgnore() (string, string) {
	return "INSERT IGNORE INTO", ""
}

// NormalizeDSN enables parseTime so DATETIME columns scan into time.Time
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Open connects to dsn and returns a store using the MySQL dialect
func Open(dsn string, log logger.Interface) (*sqlstore.Store, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, Dialect{}, log), nil
}
