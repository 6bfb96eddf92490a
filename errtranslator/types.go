package errtranslator

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicatedKey unique or primary key constraint violated
	ErrDuplicatedKey = errors.New("duplicated key not allowed")
	// ErrForeignKeyViolated foreign key constraint violated
	ErrForeignKeyViolated = errors.New("violates foreign key constraint")
)

// ErrTranslator converts driver specific errors into relmap errors. Errors
// it doesn't recognize are returned unchanged.
type ErrTranslator interface {
	Translate(err error) error
}

// TranslatedError keeps the driver error reachable next to the relmap error kind
type TranslatedError struct {
	Kind    error
	Code    interface{}
	Message string
	Err     error
}

func (e *TranslatedError) Error() string {
	return fmt.Sprintf("%v, code: %v, message: %s", e.Kind, e.Code, e.Message)
}

func (e *TranslatedError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func translated(kind error, code interface{}, message string, err error) error {
	return &TranslatedError{Kind: kind, Code: code, Message: message, Err: err}
}

// For returns the translator of a dialect, nil when the dialect is unknown
func For(dialect string) ErrTranslator {
	switch dialect {
	case "sqlite", "sqlite3":
		return &SqliteErrTranslator{}
	case "postgres", "pgx":
		return &PostgresErrTranslator{}
	case "mysql":
		return &MysqlErrTranslator{}
	case "mssql", "sqlserver":
		return &MssqlErrTranslator{}
	}
	return nil
}
