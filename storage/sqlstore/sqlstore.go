// Package sqlstore implements persist.Storage and persist.RowReader on top
// of database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/relmap/relmap/errtranslator"
	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/persist"
)

// ErrUnsafeDelete delete without conditions
var ErrUnsafeDelete = errors.New("sqlstore: delete needs conditions")

var numericPlaceholder = regexp.MustCompile(`\$(\d+)`)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store a database/sql backed storage
type Store struct {
	DB         *sql.DB
	Dialect    Dialect
	logger     logger.Interface
	translator errtranslator.ErrTranslator
}

var (
	_ persist.Storage   = (*Store)(nil)
	_ persist.RowReader = (*Store)(nil)
)

// New returns a store issuing statements on db, nil log means logger.Default
func New(db *sql.DB, dialect Dialect, log logger.Interface) *Store {
	if log == nil {
		log = logger.Default
	}
	return &Store{DB: db, Dialect: dialect, logger: log, translator: errtranslator.For(dialect.Name())}
}

// Ping verifies the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.translate(s.DB.PingContext(ctx))
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.DB.Close()
}

// Begin starts a transaction
func (s *Store) Begin(ctx context.Context) (persist.Tx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.translate(err)
	}
	return &Tx{store: s, tx: tx}, nil
}

// SelectRows runs SELECT * on table outside of any transaction
func (s *Store) SelectRows(ctx context.Context, table string, where map[string]interface{}) ([]map[string]interface{}, error) {
	return s.selectRows(ctx, s.DB, table, where)
}

// Tx a database transaction
type Tx struct {
	store *Store
	tx    *sql.Tx
}

// Insert inserts one row and returns its identity. Junction rows (empty
// primaryKey) skip duplicates.
func (t *Tx) Insert(ctx context.Context, table, primaryKey string, values map[string]interface{}) (interface{}, error) {
	s := t.store
	d := s.Dialect
	columns := sortedColumns(values)

	var (
		b    strings.Builder
		args = make([]interface{}, 0, len(columns))
	)
	verb, suffix := "INSERT INTO", ""
	if primaryKey == "" {
		verb, suffix = d.InsertIgnore()
	}
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(d.Quote(table))
	b.WriteString(" (")
	for i, column := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.Quote(column))
	}
	b.WriteString(") VALUES (")
	for i, column := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.BindVar(i + 1))
		args = append(args, values[column])
	}
	b.WriteByte(')')
	b.WriteString(suffix)

	if primaryKey != "" && d.SupportsReturning() {
		b.WriteString(" RETURNING ")
		b.WriteString(d.Quote(primaryKey))

		var id interface{}
		query, begin := b.String(), time.Now()
		err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id)
		s.trace(ctx, begin, query, 1, err, args...)
		if err != nil {
			return nil, s.translate(err)
		}
		return id, nil
	}

	result, err := s.exec(ctx, t.tx, b.String(), args...)
	if err != nil || primaryKey == "" {
		return nil, err
	}
	if id := values[primaryKey]; id != nil && !reflect.ValueOf(id).IsZero() {
		return id, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, s.translate(err)
	}
	return id, nil
}

// Update sets values on the rows matching where
func (t *Tx) Update(ctx context.Context, table string, values, where map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	d := t.store.Dialect

	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString("UPDATE ")
	b.WriteString(d.Quote(table))
	b.WriteString(" SET ")
	for i, column := range sortedColumns(values) {
		if i > 0 {
			b.WriteByte(',')
		}
		args = append(args, values[column])
		b.WriteString(d.Quote(column))
		b.WriteByte('=')
		b.WriteString(d.BindVar(len(args)))
	}
	cond, args, ok := t.store.where(where, args)
	if !ok {
		return nil
	}
	b.WriteString(cond)

	_, err := t.store.exec(ctx, t.tx, b.String(), args...)
	return err
}

// Delete removes the rows matching where, which must not be empty
func (t *Tx) Delete(ctx context.Context, table string, where map[string]interface{}) error {
	if len(where) == 0 {
		return ErrUnsafeDelete
	}
	cond, args, ok := t.store.where(where, nil)
	if !ok {
		return nil
	}
	_, err := t.store.exec(ctx, t.tx, "DELETE FROM "+t.store.Dialect.Quote(table)+cond, args...)
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.store.translate(t.tx.Commit())
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.store.translate(t.tx.Rollback())
}

// SelectRows reads inside the transaction
func (t *Tx) SelectRows(ctx context.Context, table string, where map[string]interface{}) ([]map[string]interface{}, error) {
	return t.store.selectRows(ctx, t.tx, table, where)
}

func (s *Store) selectRows(ctx context.Context, q queryer, table string, where map[string]interface{}) ([]map[string]interface{}, error) {
	cond, args, ok := s.where(where, nil)
	if !ok {
		return nil, nil
	}
	query, begin := "SELECT * FROM "+s.Dialect.Quote(table)+cond, time.Now()

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		s.trace(ctx, begin, query, 0, err, args...)
		return nil, s.translate(err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	s.trace(ctx, begin, query, int64(len(result)), err, args...)
	return result, s.translate(err)
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// where renders the conditions in column order; ok is false when an empty
// IN list makes the condition unsatisfiable
func (s *Store) where(where map[string]interface{}, args []interface{}) (string, []interface{}, bool) {
	if len(where) == 0 {
		return "", args, true
	}
	d := s.Dialect

	var b strings.Builder
	b.WriteString(" WHERE ")
	for i, column := range sortedColumns(where) {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(d.Quote(column))

		value := where[column]
		if value == nil {
			b.WriteString(" IS NULL")
			continue
		}
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			if rv.Len() == 0 {
				return "", nil, false
			}
			b.WriteString(" IN (")
			for j := 0; j < rv.Len(); j++ {
				if j > 0 {
					b.WriteByte(',')
				}
				args = append(args, rv.Index(j).Interface())
				b.WriteString(d.BindVar(len(args)))
			}
			b.WriteByte(')')
			continue
		}
		args = append(args, value)
		b.WriteByte('=')
		b.WriteString(d.BindVar(len(args)))
	}
	return b.String(), args, true
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...interface{}) (sql.Result, error) {
	begin := time.Now()
	result, err := q.ExecContext(ctx, query, args...)

	rows := int64(-1)
	if err == nil {
		if n, e := result.RowsAffected(); e == nil {
			rows = n
		}
	}
	s.trace(ctx, begin, query, rows, err, args...)
	if err != nil {
		return nil, s.translate(err)
	}
	return result, nil
}

func (s *Store) trace(ctx context.Context, begin time.Time, query string, rows int64, err error, args ...interface{}) {
	s.logger.Trace(ctx, begin, func() (string, int64) {
		if filter, ok := s.logger.(logger.ParamsFilter); ok {
			query, args = filter.ParamsFilter(ctx, query, args...)
		}
		var placeholder *regexp.Regexp
		if strings.HasPrefix(s.Dialect.BindVar(1), "$") {
			placeholder = numericPlaceholder
		}
		return logger.ExplainSQL(query, placeholder, `'`, args...), rows
	}, err)
}

func (s *Store) translate(err error) error {
	if err == nil || s.translator == nil {
		return err
	}
	return s.translator.Translate(err)
}

func sortedColumns(m map[string]interface{}) []string {
	columns := make([]string, 0, len(m))
	for column := range m {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func (s *Store) String() string {
	return fmt.Sprintf("sqlstore(%s)", s.Dialect.Name())
}
