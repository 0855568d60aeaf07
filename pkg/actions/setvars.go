package actions

import (
	"context"
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/models"
)

const setVariablesSchema = `{
	"type": "object",
	"required": ["variables"],
	"properties": {
		"variables": {"type": "object", "minProperties": 1},
		"secure": {"type": "array", "items": {"type": "string"}}
	}
}`

// SetVariablesAction writes new entries into the workflow variable bag.
// It receives raw templates (RawTemplates true) and stages resolution
// itself: names listed under "secure" are resolved and then sealed before
// they leave this call, and secure wrappers referenced from existing
// variables pass through still encrypted. Plaintext never enters variable
// storage.
type SetVariablesAction struct {
	vault *credentials.Vault
}

// NewSetVariablesAction creates the `set_variables` action handler
func NewSetVariablesAction(vault *credentials.Vault) *SetVariablesAction {
	return &SetVariablesAction{vault: vault}
}

func (a *SetVariablesAction) Type() string             { return "set_variables" }
func (a *SetVariablesAction) ParametersSchema() string { return setVariablesSchema }
func (a *SetVariablesAction) RawTemplates() bool       { return true }

// Execute returns the map of variables to merge into the bag
func (a *SetVariablesAction) Execute(ctx context.Context, inv Invocation) (interface{}, error) {
	assignments := asObject(inv.Params["variables"])
	secureNames := map[string]bool{}
	if names, ok := inv.Params["secure"].([]interface{}); ok {
		for _, n := range names {
			secureNames[asString(n)] = true
		}
	}

	out := make(map[string]interface{}, len(assignments))
	for name, raw := range assignments {
		resolved, err := resolveValue(raw, inv.Variables)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}

		if secureNames[name] {
			// Resolve first so a template reference seals the referenced
			// value, not the template text. A value that is already a
			// secure wrapper must be assigned without the secure flag;
			// re-sealing ciphertext would bury the secret a layer deeper.
			if _, isSealed := models.SecureValueFromAny(resolved); isSealed {
				return nil, fmt.Errorf("secure variable %q already resolves to an encrypted value", name)
			}
			plaintext, ok := resolved.(string)
			if !ok {
				return nil, fmt.Errorf("secure variable %q must resolve to a string", name)
			}
			sealed, err := a.vault.SealValue(inv.OrganizationID, plaintext)
			if err != nil {
				return nil, fmt.Errorf("variable %q: %w", name, err)
			}
			out[name] = sealed
			continue
		}

		out[name] = resolved
	}
	return out, nil
}
