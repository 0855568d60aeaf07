package sqlengine

import (
	"fmt"
	"regexp"
	"strings"
)

// ReadOnlyViolationError is returned when a query submitted without write
// permission contains a state-mutating keyword.
type ReadOnlyViolationError struct {
	Keyword string
}

func (e *ReadOnlyViolationError) Error() string {
	return fmt.Sprintf("query rejected: %s is not allowed for read-only operations", e.Keyword)
}

// writeKeywords are matched as whole words, case-insensitively. The word
// boundary keeps identifiers like INSERTED or created_at from tripping the
// check.
var writeKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE",
	"ALTER", "CREATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

var writeKeywordPattern = regexp.MustCompile(
	`(?i)\b(` + strings.Join(writeKeywords, "|") + `)\b`)

// validateReadOnly rejects state-mutating queries before any connection is
// opened. Returns nil when the query carries no write keyword.
func validateReadOnly(query string) error {
	match := writeKeywordPattern.FindString(query)
	if match == "" {
		return nil
	}
	return &ReadOnlyViolationError{Keyword: strings.ToUpper(match)}
}

// isMutation reports whether a permitted write query changes state, which
// decides Exec-with-affected-rows vs Query-with-result-set execution.
func isMutation(query string) bool {
	return writeKeywordPattern.MatchString(query)
}
