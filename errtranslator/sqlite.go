package errtranslator

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var sqliteErrCodes = map[sqlite3.ErrNoExtended]error{
	sqlite3.ErrConstraintUnique:     ErrDuplicatedKey,
	sqlite3.ErrConstraintPrimaryKey: ErrDuplicatedKey,
	sqlite3.ErrConstraintForeignKey: ErrForeignKeyViolated,
}

type SqliteErrTranslator struct{}

func (s *SqliteErrTranslator) Translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if kind, ok := sqliteErrCodes[sqliteErr.ExtendedCode]; ok {
			return translated(kind, int(sqliteErr.ExtendedCode), sqliteErr.Error(), err)
		}
	}
	return err
}
