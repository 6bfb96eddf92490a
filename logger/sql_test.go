package logger_test

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"github.com/stretchr/testify/assert"

	"github.com/relmap/relmap/logger"
)

type JSON json.RawMessage

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.RawMessage(j).MarshalJSON()
}

func TestExplainSQL(t *testing.T) {
	var (
		createdAt = now.MustParse("2020-02-23 11:10:10")
		postID    = uint(1)
		key       = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		dollar    = regexp.MustCompile(`\$(\d+)`)
	)

	cases := []struct {
		name   string
		sql    string
		dollar bool
		vars   []interface{}
		want   string
	}{
		{
			name: "insert",
			sql:  "INSERT INTO `posts` (`author_id`,`created_at`,`title`) VALUES (?,?,?)",
			vars: []interface{}{uint(3), createdAt, "o'brien"},
			want: "INSERT INTO `posts` (`author_id`,`created_at`,`title`) VALUES (3,'2020-02-23 11:10:10','o''brien')",
		},
		{
			name:   "numbered placeholders",
			sql:    `UPDATE "comments" SET "post_id"=$1 WHERE "id"=$2 AND "post_id"=$3`,
			dollar: true,
			vars:   []interface{}{nil, int64(5), &postID},
			want:   `UPDATE "comments" SET "post_id"=NULL WHERE "id"=5 AND "post_id"=1`,
		},
		{
			name: "binary and uuid",
			sql:  "INSERT INTO `profiles` (`avatar`,`key`) VALUES (?,?)",
			vars: []interface{}{[]byte{0xff, 0x00}, key},
			want: "INSERT INTO `profiles` (`avatar`,`key`) VALUES ('<binary>','6ba7b810-9dad-11d1-80b4-00c04fd430c8')",
		},
		{
			name: "valuers",
			sql:  "UPDATE `posts` SET `meta`=?,`published`=?,`score`=?,`summary`=? WHERE `id`=?",
			vars: []interface{}{JSON(`{"a":1}`), true, 4.5, sql.NullString{}, 7},
			want: "UPDATE `posts` SET `meta`='{\"a\":1}',`published`=true,`score`=4.5,`summary`=NULL WHERE `id`=7",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var placeholder *regexp.Regexp
			if c.dollar {
				placeholder = dollar
			}
			assert.Equal(t, c.want, logger.ExplainSQL(c.sql, placeholder, `'`, c.vars...))
		})
	}
}
