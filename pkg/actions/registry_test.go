package actions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/security"
)

// stubHandler records its invocations so tests can assert what crossed
// the dispatch boundary.
type stubHandler struct {
	name        string
	schema      string
	raw         bool
	invocations []Invocation
	result      interface{}
	err         error
}

func (h *stubHandler) Type() string             { return h.name }
func (h *stubHandler) ParametersSchema() string { return h.schema }
func (h *stubHandler) RawTemplates() bool       { return h.raw }

func (h *stubHandler) Execute(ctx context.Context, inv Invocation) (interface{}, error) {
	h.invocations = append(h.invocations, inv)
	return h.result, h.err
}

func orgVariables() map[string]interface{} {
	return map[string]interface{}{"organizationId": "org-1"}
}

func TestDispatchUnknownType(t *testing.T) {
	registry := NewRegistry(nil, nil)
	registry.MustRegister(&stubHandler{name: "approval"})
	registry.MustRegister(&stubHandler{name: "set_variables"})

	_, err := registry.Dispatch(context.Background(), "integraton", nil, orgVariables(), nil)

	var unknown *UnknownActionError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "integraton", unknown.Type)
	assert.Contains(t, unknown.Valid, "approval")
	assert.Contains(t, unknown.Valid, "set_variables")
}

func TestDispatchRequiresOrganizationID(t *testing.T) {
	registry := NewRegistry(nil, nil)
	handler := &stubHandler{name: "integration"}
	registry.MustRegister(handler)

	cases := map[string]map[string]interface{}{
		"nil bag":      nil,
		"missing key":  {},
		"empty string": {"organizationId": ""},
		"whitespace":   {"organizationId": "   "},
		"wrong type":   {"organizationId": 42},
	}
	for name, variables := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := registry.Dispatch(context.Background(), "integration", nil, variables, nil)
			assert.ErrorIs(t, err, models.ErrMissingOrganizationID)
		})
	}
	assert.Empty(t, handler.invocations, "no handler may run without an organization id")
}

func TestDispatchValidatesParams(t *testing.T) {
	registry := NewRegistry(nil, nil)
	handler := &stubHandler{
		name: "integration",
		schema: `{"type":"object","required":["integrationName"],
			"properties":{"integrationName":{"type":"string","minLength":1}}}`,
	}
	registry.MustRegister(handler)

	_, err := registry.Dispatch(context.Background(), "integration",
		map[string]interface{}{"operation": "get_reservations"}, orgVariables(), nil)

	var invalid *ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "integration", invalid.Type)
	assert.Empty(t, handler.invocations)
}

func TestDispatchResolvesTemplates(t *testing.T) {
	registry := NewRegistry(nil, nil)
	handler := &stubHandler{name: "integration", result: "ok"}
	registry.MustRegister(handler)

	variables := orgVariables()
	variables["reservationId"] = float64(7)

	result, err := registry.Dispatch(context.Background(), "integration",
		map[string]interface{}{"id": "{{reservationId}}"}, variables,
		&Extras{ExecutionID: "exec-9"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	require.Len(t, handler.invocations, 1)
	inv := handler.invocations[0]
	assert.Equal(t, "org-1", inv.OrganizationID)
	assert.Equal(t, float64(7), inv.Params["id"])
	assert.Equal(t, "exec-9", inv.ExecutionID)
}

func TestDispatchRawTemplateHandlerSeesTemplates(t *testing.T) {
	registry := NewRegistry(nil, nil)
	handler := &stubHandler{name: "set_variables", raw: true}
	registry.MustRegister(handler)

	variables := orgVariables()
	variables["token"] = "t0k3n"

	_, err := registry.Dispatch(context.Background(), "set_variables",
		map[string]interface{}{"variables": map[string]interface{}{"t": "{{token}}"}},
		variables, nil)
	require.NoError(t, err)

	require.Len(t, handler.invocations, 1)
	assignments := handler.invocations[0].Params["variables"].(map[string]interface{})
	assert.Equal(t, "{{token}}", assignments["t"], "raw handlers stage their own resolution")
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry(nil, nil)
	require.NoError(t, registry.Register(&stubHandler{name: "integration"}))
	assert.ErrorContains(t, registry.Register(&stubHandler{name: "integration"}), "already registered")
}

func TestSetVariablesAction(t *testing.T) {
	vault := credentials.NewVault(security.NewEncryptionService("test-key"), nil)
	action := NewSetVariablesAction(vault)

	t.Run("SealsSecureValues", func(t *testing.T) {
		result, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"apiSecret": "hunter2"},
				"secure":    []interface{}{"apiSecret"},
			},
		})
		require.NoError(t, err)

		out := result.(map[string]interface{})
		sealed, ok := out["apiSecret"].(models.SecureValue)
		require.True(t, ok, "secure variables must leave as ciphertext wrappers")
		assert.NotContains(t, string(sealed.Encrypted), "hunter2")

		plaintext, err := vault.OpenValue("org-1", sealed)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", plaintext)
	})

	t.Run("ResolvesPlainTemplates", func(t *testing.T) {
		result, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"greeting": "Hello {{guest}}"},
			},
			Variables: map[string]interface{}{"guest": "Ada"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello Ada", result.(map[string]interface{})["greeting"])
	})

	t.Run("SecureReferencePassesThroughSealed", func(t *testing.T) {
		sealed, err := vault.SealValue("org-1", "s3cret")
		require.NoError(t, err)
		blob, err := json.Marshal(sealed)
		require.NoError(t, err)
		var asMap map[string]interface{}
		require.NoError(t, json.Unmarshal(blob, &asMap))

		result, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"copied": "{{apiSecret}}"},
			},
			Variables: map[string]interface{}{"apiSecret": asMap},
		})
		require.NoError(t, err)
		assert.True(t, models.IsSecureValue(result.(map[string]interface{})["copied"]))
	})

	t.Run("ResolvesTemplateBeforeSealing", func(t *testing.T) {
		result, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"apiKey": "{{tempKey}}"},
				"secure":    []interface{}{"apiKey"},
			},
			Variables: map[string]interface{}{"tempKey": "sk-live-42"},
		})
		require.NoError(t, err)

		sealed, ok := result.(map[string]interface{})["apiKey"].(models.SecureValue)
		require.True(t, ok)
		plaintext, err := vault.OpenValue("org-1", sealed)
		require.NoError(t, err)
		assert.Equal(t, "sk-live-42", plaintext, "the referenced value is sealed, not the template text")
	})

	t.Run("RejectsSecureToSecureReference", func(t *testing.T) {
		already, err := vault.SealValue("org-1", "s3cret")
		require.NoError(t, err)
		blob, err := json.Marshal(already)
		require.NoError(t, err)
		var asMap map[string]interface{}
		require.NoError(t, json.Unmarshal(blob, &asMap))

		_, err = action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"copied": "{{apiSecret}}"},
				"secure":    []interface{}{"copied"},
			},
			Variables: map[string]interface{}{"apiSecret": asMap},
		})
		assert.ErrorContains(t, err, "already resolves to an encrypted value")
	})

	t.Run("SecureValueMustResolveToString", func(t *testing.T) {
		_, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params: map[string]interface{}{
				"variables": map[string]interface{}{"n": float64(5)},
				"secure":    []interface{}{"n"},
			},
		})
		assert.ErrorContains(t, err, "must resolve to a string")
	})
}

type fakeBackend struct {
	queries []string
	args    []map[string]interface{}
	result  interface{}
	err     error
}

func (f *fakeBackend) RunQuery(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	f.queries = append(f.queries, name)
	f.args = append(f.args, args)
	return f.result, f.err
}

func TestCustomerLookupAction(t *testing.T) {
	t.Run("ScopesToOrganization", func(t *testing.T) {
		backend := &fakeBackend{result: map[string]interface{}{"id": "cust-1"}}
		action := NewCustomerLookupAction(backend)

		result, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params:         map[string]interface{}{"email": "ada@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"id": "cust-1"}, result)

		require.Len(t, backend.args, 1)
		assert.Equal(t, "org-1", backend.args[0]["organizationId"])
		assert.Equal(t, "ada@example.com", backend.args[0]["email"])
	})

	t.Run("NotFound", func(t *testing.T) {
		action := NewCustomerLookupAction(&fakeBackend{})
		_, err := action.Execute(context.Background(), Invocation{
			OrganizationID: "org-1",
			Params:         map[string]interface{}{"customerId": "cust-404"},
		})
		assert.ErrorIs(t, err, models.ErrCustomerNotFound)
	})
}
