package sqlengine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReadOnly(t *testing.T) {
	t.Run("RejectsWriteKeywords", func(t *testing.T) {
		queries := map[string]string{
			"UPDATE Orders SET status = 1":        "UPDATE",
			"delete from users where id = :id":    "DELETE",
			"SELECT 1; DROP TABLE users":          "DROP",
			"exec sp_help":                        "EXEC",
			"TRUNCATE TABLE logs":                 "TRUNCATE",
			"insert into t values (1)":            "INSERT",
			"CREATE TABLE t (id int)":             "CREATE",
			"GRANT SELECT ON t TO role":           "GRANT",
		}
		for query, keyword := range queries {
			err := validateReadOnly(query)
			var violation *ReadOnlyViolationError
			require.True(t, errors.As(err, &violation), "query %q should be rejected", query)
			assert.Equal(t, keyword, violation.Keyword)
		}
	})

	t.Run("WordBoundaryDoesNotMatchIdentifiers", func(t *testing.T) {
		// A table literally named Inserted must not trip the validator
		assert.NoError(t, validateReadOnly("SELECT * FROM Inserted"))
		assert.NoError(t, validateReadOnly("SELECT updated_at, created_at FROM t"))
		assert.NoError(t, validateReadOnly("SELECT * FROM deletions WHERE grants > 0"))
	})

	t.Run("AllowsPlainReads", func(t *testing.T) {
		assert.NoError(t, validateReadOnly("SELECT id, name FROM customers WHERE status = :status"))
	})
}

func TestIsMutation(t *testing.T) {
	assert.True(t, isMutation("UPDATE Orders SET status = 1"))
	assert.False(t, isMutation("SELECT * FROM Orders"))
}
