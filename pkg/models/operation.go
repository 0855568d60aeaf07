package models

// OperationType classifies an operation's effect on the external system
type OperationType string

const (
	OperationTypeRead  OperationType = "read"
	OperationTypeWrite OperationType = "write"
)

// OperationConfig describes one callable operation of an integration.
// For SQL integrations Query holds the named-parameter template; for REST
// integrations the name is resolved by the connector code. RequiresApproval
// is a tri-state: nil means "derive from operation type".
type OperationConfig struct {
	Name             string               `json:"name"`
	Title            string               `json:"title,omitempty"`
	OperationType    OperationType        `json:"operation_type,omitempty"`
	RequiresApproval *bool                `json:"requires_approval,omitempty"`
	Query            string               `json:"query,omitempty"`
	Parameters       []OperationParameter `json:"parameters,omitempty"`
}

// OperationParameter declares one parameter the operation accepts
type OperationParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// EffectiveType returns the operation type, defaulting to read
func (c OperationConfig) EffectiveType() OperationType {
	if c.OperationType == "" {
		return OperationTypeRead
	}
	return c.OperationType
}

// NeedsApproval reports whether invoking the operation requires a human
// approval: the explicit flag wins, otherwise write implies approval.
// Introspection bypass is enforced by the catalog, not here.
func (c OperationConfig) NeedsApproval() bool {
	if c.RequiresApproval != nil {
		return *c.RequiresApproval
	}
	return c.EffectiveType() == OperationTypeWrite
}

// DisplayTitle returns the human-facing title, falling back to the name
func (c OperationConfig) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// OperationRequest is one requested invocation inside a batch or a single
// call. ID is a caller-supplied correlation token echoed back untouched.
type OperationRequest struct {
	ID        string                 `json:"id,omitempty"`
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params,omitempty"`
}
