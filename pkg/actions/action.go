// Package actions is the dispatch surface the workflow step executor
// calls into: a type-keyed registry of handlers sharing one contract of
// schema-validated params, a read-only variable bag and an organization
// id checked before any handler runs.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Invocation is the context one handler call receives. OrganizationID is
// extracted from the variable bag and validated by the registry; handlers
// never read it from Variables themselves.
type Invocation struct {
	OrganizationID string
	Params         map[string]interface{}
	Variables      map[string]interface{}
	ExecutionID    string
}

// Extras carries optional call metadata from the outer workflow engine
type Extras struct {
	ExecutionID string
}

// Handler is one registered action type. ParametersSchema returns the
// JSON Schema its params are validated against; handlers returning
// RawTemplates true receive params before template resolution so they can
// stage resolution themselves.
type Handler interface {
	Type() string
	ParametersSchema() string
	RawTemplates() bool
	Execute(ctx context.Context, inv Invocation) (interface{}, error)
}

// UnknownActionError reports a dispatch for an unregistered type and
// lists every registered one.
type UnknownActionError struct {
	Type  string
	Valid []string
}

func (e *UnknownActionError) Error() string {
	sort.Strings(e.Valid)
	return fmt.Sprintf("unknown action type %q, valid types: %s", e.Type, strings.Join(e.Valid, ", "))
}

// ValidationError reports params rejected by a handler's schema
type ValidationError struct {
	Type     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for action %q: %s", e.Type, strings.Join(e.Problems, "; "))
}
