package actions

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackflow-io/stackflow/pkg/approval"
	"github.com/stackflow-io/stackflow/pkg/batch"
	"github.com/stackflow-io/stackflow/pkg/catalog"
	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/executor"
	"github.com/stackflow-io/stackflow/pkg/models"
	approvalrepo "github.com/stackflow-io/stackflow/pkg/repository/approval"
	integrationrepo "github.com/stackflow-io/stackflow/pkg/repository/integration"
	"github.com/stackflow-io/stackflow/pkg/security"
	"github.com/stackflow-io/stackflow/pkg/sqlengine"
)

type fakeSQL struct {
	mu       sync.Mutex
	requests []sqlengine.Request
}

func (f *fakeSQL) ExecuteQuery(ctx context.Context, req sqlengine.Request) (*sqlengine.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &sqlengine.Result{Rows: []map[string]interface{}{{"ok": int64(1)}}, RowCount: 1}, nil
}

type gatewayFixture struct {
	registry *Registry
	vault    *credentials.Vault
	sql      *fakeSQL
	tickets  *approvalrepo.MemoryRepository
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	integrations := integrationrepo.NewMemoryRepository()
	tickets := approvalrepo.NewMemoryRepository()
	vault := credentials.NewVault(security.NewEncryptionService("test-key"), nil)
	sql := &fakeSQL{}

	exec := executor.NewExecutor(
		integrations,
		catalog.New(nil),
		approval.NewGateway(tickets, nil, nil),
		vault,
		sql,
		nil,
		nil, nil,
	)
	orchestrator := batch.NewOrchestrator(integrations, vault, exec, nil, nil)

	registry := NewRegistry(nil, nil)
	registry.MustRegister(NewIntegrationAction(exec, vault))
	registry.MustRegister(NewIntegrationBatchAction(orchestrator, vault))
	registry.MustRegister(NewSetVariablesAction(vault))

	in := &models.Integration{
		OrganizationID: "org-1",
		Name:           "protel",
		Type:           models.IntegrationTypeSQL,
		SQLConnectionConfig: &models.SQLConnectionConfig{
			Engine:   models.SQLEngineMSSQL,
			Server:   "db.hotel.internal",
			Database: "protel",
		},
		SQLOperations: []models.OperationConfig{
			{Name: "get_reservations", OperationType: models.OperationTypeRead,
				Query: "SELECT * FROM reservations WHERE status = :status"},
			{Name: "find_guest", OperationType: models.OperationTypeRead,
				Query: "SELECT * FROM guests WHERE passport = :passport"},
		},
	}
	require.NoError(t, vault.SealBasicAuth(in, "reporting", "s3cret"))
	require.NoError(t, integrations.Create(context.Background(), in))

	return &gatewayFixture{registry: registry, vault: vault, sql: sql, tickets: tickets}
}

func TestIntegrationActionDispatch(t *testing.T) {
	f := newGatewayFixture(t)

	variables := map[string]interface{}{
		"organizationId": "org-1",
		"status":         float64(0),
	}
	result, err := f.registry.Dispatch(context.Background(), "integration",
		map[string]interface{}{
			"integrationName": "protel",
			"operation":       "get_reservations",
			"params":          map[string]interface{}{"status": "{{status}}"},
		}, variables, nil)
	require.NoError(t, err)

	opResult, ok := result.(*models.OperationResult)
	require.True(t, ok)
	assert.True(t, opResult.Success)
	assert.Equal(t, "get_reservations", opResult.Operation)

	require.Len(t, f.sql.requests, 1)
	assert.Equal(t, float64(0), f.sql.requests[0].Params["status"])
}

func TestIntegrationActionOpensSecureParamsAtPointOfUse(t *testing.T) {
	f := newGatewayFixture(t)

	sealed, err := f.vault.SealValue("org-1", "P1234567")
	require.NoError(t, err)
	blob, err := json.Marshal(sealed)
	require.NoError(t, err)
	var secureVar map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &secureVar))

	variables := map[string]interface{}{
		"organizationId": "org-1",
		"passport":       secureVar,
	}
	_, err = f.registry.Dispatch(context.Background(), "integration",
		map[string]interface{}{
			"integrationName": "protel",
			"operation":       "find_guest",
			"params":          map[string]interface{}{"passport": "{{passport}}"},
		}, variables, nil)
	require.NoError(t, err)

	// The engine sees plaintext; variable storage never did.
	require.Len(t, f.sql.requests, 1)
	assert.Equal(t, "P1234567", f.sql.requests[0].Params["passport"])
	assert.True(t, models.IsSecureValue(variables["passport"]))
}

func TestIntegrationBatchActionOpensSecureParams(t *testing.T) {
	f := newGatewayFixture(t)

	sealed, err := f.vault.SealValue("org-1", "P1234567")
	require.NoError(t, err)
	blob, err := json.Marshal(sealed)
	require.NoError(t, err)
	var secureVar map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &secureVar))

	variables := map[string]interface{}{
		"organizationId": "org-1",
		"passport":       secureVar,
	}
	result, err := f.registry.Dispatch(context.Background(), "integration_batch",
		map[string]interface{}{
			"integrationName": "protel",
			"operations": []interface{}{
				map[string]interface{}{"operation": "get_reservations",
					"params": map[string]interface{}{"status": float64(0)}},
				map[string]interface{}{"operation": "find_guest",
					"params": map[string]interface{}{"passport": "{{passport}}"}},
			},
		}, variables, nil)
	require.NoError(t, err)

	batchResult, ok := result.(*models.BatchResult)
	require.True(t, ok)
	assert.True(t, batchResult.Success)

	// The engine sees plaintext on the batch path too; the wrapper in
	// variable storage stays ciphertext.
	require.Len(t, f.sql.requests, 2)
	params := make([]map[string]interface{}, 0, 2)
	for _, req := range f.sql.requests {
		params = append(params, req.Params)
	}
	assert.Contains(t, params, map[string]interface{}{"passport": "P1234567"})
	assert.True(t, models.IsSecureValue(variables["passport"]))
}

func TestIntegrationBatchActionDispatch(t *testing.T) {
	f := newGatewayFixture(t)

	result, err := f.registry.Dispatch(context.Background(), "integration_batch",
		map[string]interface{}{
			"integrationName": "protel",
			"operations": []interface{}{
				map[string]interface{}{"id": "a", "operation": "get_reservations",
					"params": map[string]interface{}{"status": float64(0)}},
				map[string]interface{}{"id": "b", "operation": "find_guest",
					"params": map[string]interface{}{"passport": "P1"}},
			},
		}, map[string]interface{}{"organizationId": "org-1"}, nil)
	require.NoError(t, err)

	batchResult, ok := result.(*models.BatchResult)
	require.True(t, ok)
	assert.True(t, batchResult.Success)
	require.Len(t, batchResult.Results, 2)
	assert.Equal(t, "get_reservations", batchResult.Results[0].Operation)
	assert.Equal(t, "find_guest", batchResult.Results[1].Operation)
	assert.Equal(t, 2, batchResult.Stats.SuccessCount)
}

func TestIntegrationActionSchemaRejectsMissingOperation(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.registry.Dispatch(context.Background(), "integration",
		map[string]interface{}{"integrationName": "protel"},
		map[string]interface{}{"organizationId": "org-1"}, nil)

	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, f.sql.requests)
}
