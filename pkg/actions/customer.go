package actions

import (
	"context"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// Backend is the workflow engine's query surface as seen by thin data
// actions. The engine hands the registry an implementation backed by its
// own storage primitives.
type Backend interface {
	RunQuery(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

const customerLookupSchema = `{
	"type": "object",
	"properties": {
		"customerId": {"type": "string", "minLength": 1},
		"email": {"type": "string", "minLength": 3}
	},
	"anyOf": [
		{"required": ["customerId"]},
		{"required": ["email"]}
	]
}`

// CustomerLookupAction is a thin data action sharing the uniform dispatch
// contract: schema-validated params, organization scoping from the
// invocation, delegation to the engine's query surface.
type CustomerLookupAction struct {
	backend Backend
}

// NewCustomerLookupAction creates the `customer_lookup` action handler
func NewCustomerLookupAction(backend Backend) *CustomerLookupAction {
	return &CustomerLookupAction{backend: backend}
}

func (a *CustomerLookupAction) Type() string             { return "customer_lookup" }
func (a *CustomerLookupAction) ParametersSchema() string { return customerLookupSchema }
func (a *CustomerLookupAction) RawTemplates() bool       { return false }

func (a *CustomerLookupAction) Execute(ctx context.Context, inv Invocation) (interface{}, error) {
	args := map[string]interface{}{
		"organizationId": inv.OrganizationID,
	}
	if id := asString(inv.Params["customerId"]); id != "" {
		args["customerId"] = id
	}
	if email := asString(inv.Params["email"]); email != "" {
		args["email"] = email
	}

	result, err := a.backend.RunQuery(ctx, "customers.lookup", args)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, models.ErrCustomerNotFound
	}
	return result, nil
}
