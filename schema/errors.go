package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedRelation unsupported relation declaration or mutation
	ErrUnsupportedRelation = errors.New("unsupported relation")
	// ErrRelationNotFound relation name not declared on the entity
	ErrRelationNotFound = errors.New("relation not found")
	// ErrUnsupportedDataType model is not a struct
	ErrUnsupportedDataType = errors.New("unsupported data type")
	// ErrPrimaryKeyRequired entity has no primary key
	ErrPrimaryKeyRequired = errors.New("primary key required")
	// ErrInvalidValue value can't be assigned to a field
	ErrInvalidValue = errors.New("invalid value")
)

// ConfigurationError reports invalid relation metadata or a relation
// mutation that does not fit the relation kind.
type ConfigurationError struct {
	Entity   string
	Relation string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("relmap: %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("relmap: %s.%s: %s", e.Entity, e.Relation, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError builds a ConfigurationError for the relation of the schema
func NewConfigurationError(s *Schema, relation string, err error, format string, args ...interface{}) *ConfigurationError {
	entity := "<unknown>"
	if s != nil {
		entity = s.Name
	}
	return &ConfigurationError{Entity: entity, Relation: relation, Reason: fmt.Sprintf(format, args...), Err: err}
}
