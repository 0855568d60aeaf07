package actions

import (
	"context"
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/batch"
	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/executor"
	"github.com/stackflow-io/stackflow/pkg/models"
)

const integrationSchema = `{
	"type": "object",
	"required": ["integrationName", "operation"],
	"properties": {
		"integrationName": {"type": "string", "minLength": 1},
		"operation": {"type": "string", "minLength": 1},
		"params": {"type": "object"},
		"skipApprovalCheck": {"type": "boolean"},
		"threadId": {"type": "string"},
		"messageId": {"type": "string"}
	}
}`

// IntegrationAction runs a single operation against a named integration
// through the gateway executor.
type IntegrationAction struct {
	executor *executor.Executor
	vault    *credentials.Vault
}

// NewIntegrationAction creates the `integration` action handler
func NewIntegrationAction(exec *executor.Executor, vault *credentials.Vault) *IntegrationAction {
	return &IntegrationAction{executor: exec, vault: vault}
}

func (a *IntegrationAction) Type() string             { return "integration" }
func (a *IntegrationAction) ParametersSchema() string { return integrationSchema }
func (a *IntegrationAction) RawTemplates() bool       { return false }

func (a *IntegrationAction) Execute(ctx context.Context, inv Invocation) (interface{}, error) {
	opParams, err := openSecureParams(a.vault, inv.OrganizationID, asObject(inv.Params["params"]))
	if err != nil {
		return nil, err
	}

	req := executor.Request{
		OrganizationID:    inv.OrganizationID,
		IntegrationName:   asString(inv.Params["integrationName"]),
		Operation:         asString(inv.Params["operation"]),
		Params:            opParams,
		Variables:         inv.Variables,
		SkipApprovalCheck: asBool(inv.Params["skipApprovalCheck"]),
		ThreadID:          asOptionalString(inv.Params["threadId"]),
		MessageID:         asOptionalString(inv.Params["messageId"]),
	}
	return a.executor.Execute(ctx, req)
}

// openSecureParams decrypts secure-wrapped operation parameters at the
// point of use. The decrypted copy lives only in this call; the wrappers
// in variable storage stay ciphertext.
func openSecureParams(vault *credentials.Vault, organizationID string, params map[string]interface{}) (map[string]interface{}, error) {
	if params == nil {
		return nil, nil
	}
	opened := make(map[string]interface{}, len(params))
	for key, value := range params {
		switch tv := Classify(value).(type) {
		case SecureRef:
			plaintext, err := vault.OpenValue(organizationID, tv.Value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}
			opened[key] = plaintext
		case Plain:
			opened[key] = tv.Value
		}
	}
	return opened, nil
}

const integrationBatchSchema = `{
	"type": "object",
	"required": ["integrationName", "operations"],
	"properties": {
		"integrationName": {"type": "string", "minLength": 1},
		"operations": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["operation"],
				"properties": {
					"id": {"type": "string"},
					"operation": {"type": "string", "minLength": 1},
					"params": {"type": "object"}
				}
			}
		},
		"skipApprovalCheck": {"type": "boolean"},
		"threadId": {"type": "string"},
		"messageId": {"type": "string"}
	}
}`

// IntegrationBatchAction runs N operations against one integration via
// the batch orchestrator.
type IntegrationBatchAction struct {
	orchestrator *batch.Orchestrator
	vault        *credentials.Vault
}

// NewIntegrationBatchAction creates the `integration_batch` action handler
func NewIntegrationBatchAction(orchestrator *batch.Orchestrator, vault *credentials.Vault) *IntegrationBatchAction {
	return &IntegrationBatchAction{orchestrator: orchestrator, vault: vault}
}

func (a *IntegrationBatchAction) Type() string             { return "integration_batch" }
func (a *IntegrationBatchAction) ParametersSchema() string { return integrationBatchSchema }
func (a *IntegrationBatchAction) RawTemplates() bool       { return false }

func (a *IntegrationBatchAction) Execute(ctx context.Context, inv Invocation) (interface{}, error) {
	rawOps, _ := inv.Params["operations"].([]interface{})
	operations := make([]models.OperationRequest, len(rawOps))
	for i, rawOp := range rawOps {
		op := asObject(rawOp)
		opParams, err := openSecureParams(a.vault, inv.OrganizationID, asObject(op["params"]))
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		operations[i] = models.OperationRequest{
			ID:        asString(op["id"]),
			Operation: asString(op["operation"]),
			Params:    opParams,
		}
	}

	return a.orchestrator.ExecuteBatch(ctx, batch.Request{
		OrganizationID:    inv.OrganizationID,
		IntegrationName:   asString(inv.Params["integrationName"]),
		Operations:        operations,
		Variables:         inv.Variables,
		SkipApprovalCheck: asBool(inv.Params["skipApprovalCheck"]),
		ThreadID:          asOptionalString(inv.Params["threadId"]),
		MessageID:         asOptionalString(inv.Params["messageId"]),
	})
}

func asObject(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asOptionalString(v interface{}) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
