package utils

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToStringKey(t *testing.T) {
	assert.Equal(t, ToStringKey(uint(7)), ToStringKey(int64(7)))
	assert.Equal(t, "7_abc", ToStringKey(7, "abc"))
	assert.Equal(t, "<nil>", ToStringKey(nil))
	assert.Equal(t, "x", ToStringKey([]byte("x")))

	n := 3
	assert.Equal(t, "3", ToStringKey(&n))
	assert.Equal(t, "12", ToStringKey(sql.NullInt64{Int64: 12, Valid: true}))
}

func TestAssertEqual(t *testing.T) {
	now := time.Now()
	n := uint(5)

	cases := []struct {
		src, dst interface{}
		equal    bool
	}{
		{"a", "a", true},
		{"a", "b", false},
		{int64(5), &n, true},
		{nil, (*uint)(nil), true},
		{nil, 0, false},
		{now, now.UTC(), true},
		{now, now.Add(time.Second), false},
		{sql.NullString{String: "a", Valid: true}, "a", true},
		{"5", 5, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.equal, AssertEqual(c.src, c.dst), "%#v == %#v", c.src, c.dst)
	}
}

func TestCheckTruth(t *testing.T) {
	assert.True(t, CheckTruth("true"))
	assert.True(t, CheckTruth("", "1"))
	assert.False(t, CheckTruth("false", ""))
	assert.False(t, CheckTruth())
}

func TestFileWithLineNum(t *testing.T) {
	assert.NotEmpty(t, FileWithLineNum())
}
