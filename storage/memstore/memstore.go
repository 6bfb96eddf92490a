// Package memstore keeps tables in memory. It implements persist.Storage and
// persist.RowReader, one transaction at a time, and rolls back by restoring
// a snapshot taken at Begin.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/relmap/relmap/errtranslator"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/utils"
)

var (
	// ErrTxDone transaction already committed or rolled back
	ErrTxDone = errors.New("memstore: transaction has already been committed or rolled back")
	// ErrUnsafeDelete delete without conditions
	ErrUnsafeDelete = errors.New("memstore: delete needs conditions")
)

type table struct {
	rows []map[string]interface{}
	seq  int64
}

// Store in memory tables
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	tables map[string]*table
}

var (
	_ persist.Storage   = (*Store)(nil)
	_ persist.RowReader = (*Store)(nil)
)

// New returns an empty store
func New() *Store {
	return &Store{tables: map[string]*table{}}
}

// Begin waits for the running transaction, if any, and starts a new one
func (s *Store) Begin(ctx context.Context) (persist.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return &tx{store: s, snapshot: s.clone()}, nil
}

// SelectRows copies the rows of name matching where
func (s *Store) SelectRows(ctx context.Context, name string, where map[string]interface{}) ([]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []map[string]interface{}
	if t, ok := s.tables[name]; ok {
		for _, row := range t.rows {
			if match(row, where) {
				rows = append(rows, copyRow(row))
			}
		}
	}
	return rows, nil
}

// Seed stores rows without a transaction, for fixtures
func (s *Store) Seed(name string, rows ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	for _, row := range rows {
		t.rows = append(t.rows, copyRow(row))
	}
}

// Rows copies every row of name
func (s *Store) Rows(name string) []map[string]interface{} {
	rows, _ := s.SelectRows(context.Background(), name, nil)
	return rows
}

func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	return t
}

func (s *Store) clone() map[string]*table {
	tables := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		c := &table{seq: t.seq, rows: make([]map[string]interface{}, len(t.rows))}
		for i, row := range t.rows {
			c.rows[i] = copyRow(row)
		}
		tables[name] = c
	}
	return tables
}

type tx struct {
	store    *Store
	snapshot map[string]*table
	done     bool
}

func (t *tx) check(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return ctx.Err()
}

// Insert appends a row. Rows with a primary key get the supplied identity
// or the next sequence value; junction rows (no primary key) are skipped
// when an identical row exists.
func (t *tx) Insert(ctx context.Context, name, primaryKey string, values map[string]interface{}) (interface{}, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := s.table(name)
	row := copyRow(values)
	if primaryKey == "" {
		for _, existing := range tbl.rows {
			if match(existing, row) {
				return nil, nil
			}
		}
		tbl.rows = append(tbl.rows, row)
		return nil, nil
	}

	id := row[primaryKey]
	if id == nil || reflect.ValueOf(id).IsZero() {
		tbl.seq++
		id = tbl.seq
	} else {
		key := utils.ToStringKey(id)
		for _, existing := range tbl.rows {
			if utils.ToStringKey(existing[primaryKey]) == key {
				return nil, fmt.Errorf("memstore: %s %s=%v: %w", name, primaryKey, id, errtranslator.ErrDuplicatedKey)
			}
		}
		if n, ok := asInt64(id); ok && n > tbl.seq {
			tbl.seq = n
		}
	}
	row[primaryKey] = id
	tbl.rows = append(tbl.rows, row)
	return id, nil
}

func (t *tx) Update(ctx context.Context, name string, values, where map[string]interface{}) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tbl, ok := s.tables[name]; ok {
		for _, row := range tbl.rows {
			if match(row, where) {
				for column, v := range values {
					row[column] = v
				}
			}
		}
	}
	return nil
}

func (t *tx) Delete(ctx context.Context, name string, where map[string]interface{}) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if len(where) == 0 {
		return ErrUnsafeDelete
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tbl, ok := s.tables[name]; ok {
		kept := tbl.rows[:0]
		for _, row := range tbl.rows {
			if !match(row, where) {
				kept = append(kept, row)
			}
		}
		tbl.rows = kept
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	s.tables = t.snapshot
	s.mu.Unlock()
	s.txMu.Unlock()
	return nil
}

// match reports whether row satisfies every condition; a slice condition
// matches any of its values, a nil condition matches NULL
func match(row, where map[string]interface{}) bool {
	for column, cond := range where {
		v := row[column]
		if cond == nil {
			if v != nil {
				return false
			}
			continue
		}
		if rv := reflect.ValueOf(cond); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			found := false
			for i := 0; i < rv.Len() && !found; i++ {
				found = v != nil && utils.ToStringKey(v) == utils.ToStringKey(rv.Index(i).Interface())
			}
			if !found {
				return false
			}
			continue
		}
		if v == nil || utils.ToStringKey(v) != utils.ToStringKey(cond) {
			return false
		}
	}
	return true
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(row))
	for k, v := range row {
		c[k] = v
	}
	return c
}

func asInt64(v interface{}) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}
