package sqlengine

import (
	"fmt"
	"strings"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// ParameterBindingError is returned when a query references a named
// parameter that is absent from the supplied params map. The engine never
// guesses a value.
type ParameterBindingError struct {
	Name string
}

func (e *ParameterBindingError) Error() string {
	return fmt.Sprintf("query references parameter %q but no value was supplied", e.Name)
}

// boundQuery is a query template rewritten into a driver's placeholder
// form, with argument values ordered by first appearance of each name.
type boundQuery struct {
	query string
	args  []interface{}
	names []string
}

// parameterToken is one named-parameter occurrence in the query text
type parameterToken struct {
	start int // index of the sigil
	end   int // index one past the name
	name  string
}

// tokenizeParameters scans the query for named parameters written as
// :name, $name or @name. Single-quoted strings, double-quoted identifiers,
// Postgres casts (::type) and MSSQL system variables (@@rowcount) are left
// alone. Tokens are returned in textual order.
func tokenizeParameters(query string) []parameterToken {
	var tokens []parameterToken
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(query, i)
		case c == ':' || c == '$' || c == '@':
			// A doubled sigil is engine syntax, not a parameter
			if i+1 < len(query) && query[i+1] == c {
				i += 2
				continue
			}
			j := i + 1
			for j < len(query) && isIdentChar(query[j]) {
				j++
			}
			if j == i+1 {
				i++
				continue
			}
			name := query[i+1 : j]
			// $1-style positional placeholders are not named parameters
			if c == '$' && isAllDigits(name) {
				i = j
				continue
			}
			tokens = append(tokens, parameterToken{start: i, end: j, name: name})
			i = j
		default:
			i++
		}
	}
	return tokens
}

// skipQuoted advances past a quoted region, honoring doubled-quote escapes
func skipQuoted(query string, start int) int {
	quote := query[start]
	i := start + 1
	for i < len(query) {
		if query[i] == quote {
			if i+1 < len(query) && query[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// bindParameters rewrites the query into the engine's placeholder form and
// collects argument values in first-appearance order. A repeated name reuses
// the same ordinal for postgres and mssql; mysql repeats the value.
func bindParameters(engine models.SQLEngine, query string, params map[string]interface{}) (*boundQuery, error) {
	tokens := tokenizeParameters(query)
	if len(tokens) == 0 {
		return &boundQuery{query: query}, nil
	}

	ordinal := make(map[string]int)
	var names []string
	var args []interface{}

	var b strings.Builder
	prev := 0
	for _, tok := range tokens {
		value, ok := params[tok.name]
		if !ok {
			return nil, &ParameterBindingError{Name: tok.name}
		}

		idx, seen := ordinal[tok.name]
		if !seen {
			idx = len(names) + 1
			ordinal[tok.name] = idx
			names = append(names, tok.name)
			if engine != models.SQLEngineMySQL {
				args = append(args, value)
			}
		}

		b.WriteString(query[prev:tok.start])
		switch engine {
		case models.SQLEnginePostgres:
			fmt.Fprintf(&b, "$%d", idx)
		case models.SQLEngineMySQL:
			b.WriteByte('?')
			args = append(args, value)
		case models.SQLEngineMSSQL:
			fmt.Fprintf(&b, "@p%d", idx)
		default:
			return nil, fmt.Errorf("unsupported SQL engine %q", engine)
		}
		prev = tok.end
	}
	b.WriteString(query[prev:])

	return &boundQuery{query: b.String(), args: args, names: names}, nil
}
