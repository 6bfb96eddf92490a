package schema_test

import (
	"testing"

	"github.com/relmap/relmap/schema"
	"github.com/stretchr/testify/assert"
)

func TestNamingStrategy(t *testing.T) {
	ns := schema.NamingStrategy{TablePrefix: "app_"}
	assert.Equal(t, "app_user_profiles", ns.TableName("UserProfile"))
	assert.Equal(t, "app_categories", ns.TableName("Category"))
	assert.Equal(t, "api_key", ns.ColumnName("", "APIKey"))
	assert.Equal(t, "app_post_tags", ns.JoinTableName("post_tags"))
	assert.Equal(t, "app_post_tags", ns.JoinTableName("PostTag"))
	assert.Equal(t, "author_id", ns.JoinColumnName("Author", "id"))

	singular := schema.NamingStrategy{SingularTable: true}
	assert.Equal(t, "user_profile", singular.TableName("UserProfile"))
	assert.Equal(t, "post_tag", singular.JoinTableName("PostTag"))
}
