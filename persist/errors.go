package persist

import (
	"errors"
	"fmt"

	"github.com/relmap/relmap/logger"
)

var (
	// ErrRecordNotFound no row matches the identity
	ErrRecordNotFound = logger.ErrRecordNotFound
	// ErrMissingIdentity entity has no identity where one is required
	ErrMissingIdentity = errors.New("missing identity")
	// ErrUnresolvedReference a foreign key points at a row whose identity is still unknown
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrInvalidEntity value is not a pointer to an entity of the schema
	ErrInvalidEntity = errors.New("invalid entity")
)

// NotFoundError point lookup for an identity returned nothing
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("relmap: %s with id %v: %v", e.Entity, e.ID, ErrRecordNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// TransactionError reports a failed commit, or a failed statement whose
// rollback failed as well. Both errors stay reachable through errors.Is.
type TransactionError struct {
	Err         error
	RollbackErr error
}

func (e *TransactionError) Error() string {
	if e.RollbackErr == nil {
		return fmt.Sprintf("relmap: transaction failed: %v", e.Err)
	}
	return fmt.Sprintf("relmap: transaction failed: %v; rollback failed: %v", e.Err, e.RollbackErr)
}

func (e *TransactionError) Unwrap() []error {
	if e.RollbackErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.RollbackErr}
}
