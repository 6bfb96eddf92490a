package errtranslator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

type mssqlError struct {
	Number  int
	Message string
}

func (e mssqlError) Error() string { return e.Message }

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		err     error
		want    error
	}{
		{"mysql duplicate", "mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrDuplicatedKey},
		{"mysql foreign key", "mysql", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1452}), ErrForeignKeyViolated},
		{"pgx duplicate", "postgres", &pgconn.PgError{Code: "23505"}, ErrDuplicatedKey},
		{"pgx foreign key", "pgx", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolated},
		{"pq duplicate", "postgres", &pq.Error{Code: "23505"}, ErrDuplicatedKey},
		{"sqlite unique", "sqlite", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrDuplicatedKey},
		{"sqlite foreign key", "sqlite3", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ErrForeignKeyViolated},
		{"mssql duplicate", "mssql", mssqlError{Number: 2627, Message: "Violation of PRIMARY KEY"}, ErrDuplicatedKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := For(tt.dialect).Translate(tt.err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, tt.err), "driver error must stay reachable")

			var translatedErr *TranslatedError
			assert.True(t, errors.As(err, &translatedErr))
		})
	}
}

func TestTranslateUnknown(t *testing.T) {
	other := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	assert.Same(t, other, (&MysqlErrTranslator{}).Translate(other))

	plain := errors.New("connection refused")
	for _, dialect := range []string{"mysql", "postgres", "sqlite", "mssql"} {
		assert.Equal(t, plain, For(dialect).Translate(plain), dialect)
	}
	assert.Nil(t, For("oracle"))
}
