package relmap

import (
	"errors"

	"github.com/relmap/relmap/errtranslator"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

var (
	// ErrRecordNotFound record not found error
	ErrRecordNotFound = persist.ErrRecordNotFound
	// ErrMissingIdentity operation needs a persisted entity
	ErrMissingIdentity = persist.ErrMissingIdentity
	// ErrUnresolvedReference reference to an entity without identity at execution
	ErrUnresolvedReference = persist.ErrUnresolvedReference
	// ErrInvalidEntity value is not a pointer to a registered entity
	ErrInvalidEntity = persist.ErrInvalidEntity
	// ErrUnsupportedRelation unsupported relations
	ErrUnsupportedRelation = schema.ErrUnsupportedRelation
	// ErrRelationNotFound relation not found
	ErrRelationNotFound = schema.ErrRelationNotFound
	// ErrUnsupportedDataType unsupported data type
	ErrUnsupportedDataType = schema.ErrUnsupportedDataType
	// ErrDuplicatedKey duplicated key
	ErrDuplicatedKey = errtranslator.ErrDuplicatedKey
	// ErrForeignKeyViolated foreign key constraint violated
	ErrForeignKeyViolated = errtranslator.ErrForeignKeyViolated
	// ErrReaderRequired storage can't read rows and no finder was configured
	ErrReaderRequired = errors.New("storage does not read rows")
)

type (
	// NotFoundError entity lookup miss
	NotFoundError = persist.NotFoundError
	// TransactionError execution failure, with the rollback failure if any
	TransactionError = persist.TransactionError
	// ConfigurationError invalid mapping or relation usage
	ConfigurationError = schema.ConfigurationError
)
