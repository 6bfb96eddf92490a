package schema

import (
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Namer namer interface
type Namer interface {
	TableName(table string) string
	ColumnName(table, column string) string
	JoinTableName(joinTable string) string
	JoinColumnName(relation, referencedColumn string) string
}

// Tabler lets a model override its table name
type Tabler interface {
	TableName() string
}

// NamingStrategy tables, columns naming strategy
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
}

// TableName convert string to table name
func (ns NamingStrategy) TableName(str string) string {
	if ns.SingularTable {
		return ns.TablePrefix + toDBName(str)
	}
	return ns.TablePrefix + inflection.Plural(toDBName(str))
}

// ColumnName convert string to column name
func (ns NamingStrategy) ColumnName(table, column string) string {
	return toDBName(column)
}

// JoinTableName convert string to junction table name
func (ns NamingStrategy) JoinTableName(str string) string {
	if strings.ToLower(str) == str {
		return ns.TablePrefix + str
	}
	if ns.SingularTable {
		return ns.TablePrefix + toDBName(str)
	}
	return ns.TablePrefix + inflection.Plural(toDBName(str))
}

// JoinColumnName foreign key column of a relation field, e.g. Author + id => author_id
func (ns NamingStrategy) JoinColumnName(relation, referencedColumn string) string {
	return toDBName(relation) + "_" + referencedColumn
}

var (
	dbNames sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	title := cases.Title(language.Und)
	replacements := make([]string, 0, len(commonInitialisms)*2)
	for _, initialism := range commonInitialisms {
		replacements = append(replacements, initialism, title.String(initialism))
	}
	commonInitialismsReplacer = strings.NewReplacer(replacements...)
}

// toDBName converts CamelCase to snake_case, UserID => user_id
func toDBName(name string) string {
	if name == "" {
		return ""
	} else if v, ok := dbNames.Load(name); ok {
		return v.(string)
	}

	var (
		value                = commonInitialismsReplacer.Replace(name)
		buf                  strings.Builder
		prevUpper, nextUpper bool
		curUpper             = isUpper(value[0])
	)

	for i := 0; i < len(value)-1; i++ {
		c := value[i]
		nextUpper = isUpper(value[i+1])
		nextDigit := value[i+1] >= '0' && value[i+1] <= '9'

		if curUpper {
			startsWord := !(prevUpper && (nextUpper || nextDigit))
			if startsWord && i > 0 && value[i-1] != '_' && value[i+1] != '_' {
				buf.WriteByte('_')
			}
			buf.WriteByte(c + 32)
		} else {
			buf.WriteByte(c)
		}

		prevUpper = curUpper
		curUpper = nextUpper
	}

	last := value[len(value)-1]
	if curUpper {
		if !prevUpper && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(last + 32)
	} else {
		buf.WriteByte(last)
	}

	result := buf.String()
	dbNames.Store(name, result)
	return result
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
