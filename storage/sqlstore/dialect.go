package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect the SQL differences between databases the store has to know
type Dialect interface {
	// Name driver name, also selects the error translator
	Name() string
	// BindVar placeholder of the n-th argument, starting at 1
	BindVar(n int) string
	// Quote quotes an identifier
	Quote(ident string) string
	// SupportsReturning reports whether INSERT ... RETURNING reports identities
	SupportsReturning() bool
	// InsertIgnore wraps an insert so that duplicates are skipped
	InsertIgnore() (verb, suffix string)
}

// QuestionBindVar ? placeholders
type QuestionBindVar struct{}

func (QuestionBindVar) BindVar(int) string {
	return "?"
}

// DollarBindVar $1, $2 placeholders
type DollarBindVar struct{}

func (DollarBindVar) BindVar(n int) string {
	return "$" + strconv.Itoa(n)
}

// QuoteWith quotes identifiers with c, doubling c inside the identifier.
// Dotted names are quoted part by part.
func QuoteWith(c byte, ident string) string {
	q := string(c)
	parts := strings.Split(ident, ".")
	for i, part := range parts {
		parts[i] = q + strings.ReplaceAll(part, q, q+q) + q
	}
	return strings.Join(parts, ".")
}
