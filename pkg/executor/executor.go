// Package executor runs single integration operations end to end: catalog
// resolution, approval gating, just-in-time credential decryption and
// dispatch to the SQL engine or the sandboxed connector runtime.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackflow-io/stackflow/pkg/approval"
	"github.com/stackflow-io/stackflow/pkg/catalog"
	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
	integrationrepo "github.com/stackflow-io/stackflow/pkg/repository/integration"
	"github.com/stackflow-io/stackflow/pkg/sandbox"
	"github.com/stackflow-io/stackflow/pkg/sqlengine"
)

// ErrNoRowsAffected marks a write that ran successfully but matched
// nothing. Approval-gated writes must not silently swallow this.
var ErrNoRowsAffected = errors.New("operation completed but no rows were affected")

// TestConnectionOperation is the reserved operation name the sandbox
// runtime maps to the connector's testConnection entry point.
const TestConnectionOperation = "testConnection"

// SQLExecutor is the query-execution dependency; satisfied by
// *sqlengine.Executor.
type SQLExecutor interface {
	ExecuteQuery(ctx context.Context, req sqlengine.Request) (*sqlengine.Result, error)
}

// Request is one integration operation invocation
type Request struct {
	// ID is a caller-supplied correlation token echoed on the result
	ID              string
	OrganizationID  string
	IntegrationName string
	Operation       string
	Params          map[string]interface{}
	// Variables is the workflow variable bag forwarded to connector code
	Variables map[string]interface{}
	// SkipApprovalCheck is set on the re-invocation after a human approves
	SkipApprovalCheck bool
	ThreadID          *string
	MessageID         *string
}

// Executor runs integration operations
type Executor struct {
	integrations integrationrepo.Repository
	catalog      *catalog.Catalog
	gateway      *approval.Gateway
	vault        *credentials.Vault
	sql          SQLExecutor
	sandbox      sandbox.Client
	logger       observability.Logger
	metrics      observability.MetricsClient
}

// NewExecutor wires the integration executor
func NewExecutor(
	integrations integrationrepo.Repository,
	cat *catalog.Catalog,
	gateway *approval.Gateway,
	vault *credentials.Vault,
	sql SQLExecutor,
	sandboxClient sandbox.Client,
	logger observability.Logger,
	metrics observability.MetricsClient,
) *Executor {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Executor{
		integrations: integrations,
		catalog:      cat,
		gateway:      gateway,
		vault:        vault,
		sql:          sql,
		sandbox:      sandboxClient,
		logger:       logger.WithPrefix("executor"),
		metrics:      metrics,
	}
}

// Execute runs one operation against a named integration. Configuration,
// credential, validation and execution problems are returned as errors;
// an approval-gated call is a successful result carrying RequiresApproval
// and the ticket id.
func (e *Executor) Execute(ctx context.Context, req Request) (*models.OperationResult, error) {
	integration, err := e.integrations.GetByName(ctx, req.OrganizationID, req.IntegrationName)
	if err != nil {
		return nil, err
	}
	return e.ExecuteOnLoaded(ctx, integration, nil, req)
}

// ExecuteOnLoaded runs one operation against an already-loaded integration.
// For SQL integrations the batch orchestrator passes pre-decrypted shared
// credentials; when creds is nil they are resolved just in time, after the
// approval gate has decided the operation will actually run.
func (e *Executor) ExecuteOnLoaded(ctx context.Context, integration *models.Integration, creds *credentials.Credentials, req Request) (*models.OperationResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordLatency("executor.operation", time.Since(start))
	}()

	switch integration.EffectiveType() {
	case models.IntegrationTypeSQL:
		return e.executeSQL(ctx, integration, creds, req)
	case models.IntegrationTypeRESTAPI:
		return e.executeREST(ctx, integration, creds, req)
	default:
		return nil, fmt.Errorf("unsupported integration type %q", integration.Type)
	}
}

func (e *Executor) executeSQL(ctx context.Context, integration *models.Integration, creds *credentials.Credentials, req Request) (*models.OperationResult, error) {
	op, err := e.catalog.ResolveSQLOperation(integration, req.Operation)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredParams(op, req.Params); err != nil {
		return nil, err
	}

	decision, err := e.gateway.Check(ctx, approval.CheckRequest{
		Integration:       integration,
		Operation:         op,
		Params:            req.Params,
		SkipApprovalCheck: req.SkipApprovalCheck,
		ThreadID:          req.ThreadID,
		MessageID:         req.MessageID,
	})
	if err != nil {
		return nil, err
	}
	if decision.Required {
		return gatedResult(req, op, decision), nil
	}

	if creds == nil {
		creds, err = e.vault.Resolve(integration)
		if err != nil {
			return nil, err
		}
	}

	cfg := integration.SQLConnectionConfig
	allowWrite := op.EffectiveType() == models.OperationTypeWrite
	result, err := e.sql.ExecuteQuery(ctx, sqlengine.Request{
		Engine: cfg.Engine,
		Credentials: sqlengine.Credentials{
			Server:   cfg.Server,
			Port:     cfg.Port,
			Database: cfg.Database,
			User:     sqlUser(integration, creds),
			Password: sqlPassword(creds),
			Options:  cfg.Options,
		},
		Query:      op.Query,
		Params:     req.Params,
		Security:   cfg.Security,
		AllowWrite: allowWrite,
	})
	if err != nil {
		return nil, err
	}

	// A write that ran but matched nothing is a logical failure: it must
	// not read as "mutated state" to a caller that just approved it.
	if allowWrite && result.RowCount == 0 {
		return nil, fmt.Errorf("operation %q: %w", op.Name, ErrNoRowsAffected)
	}

	return &models.OperationResult{
		ID:         req.ID,
		Operation:  op.Name,
		Success:    true,
		Data:       result.Rows,
		RowCount:   result.RowCount,
		DurationMs: result.DurationMs,
	}, nil
}

func (e *Executor) executeREST(ctx context.Context, integration *models.Integration, creds *credentials.Credentials, req Request) (*models.OperationResult, error) {
	connector, op, err := e.catalog.ResolveRESTOperation(integration, req.Operation)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredParams(op, req.Params); err != nil {
		return nil, err
	}

	decision, err := e.gateway.Check(ctx, approval.CheckRequest{
		Integration:       integration,
		Operation:         op,
		Params:            req.Params,
		SkipApprovalCheck: req.SkipApprovalCheck,
		ThreadID:          req.ThreadID,
		MessageID:         req.MessageID,
	})
	if err != nil {
		return nil, err
	}
	if decision.Required {
		return gatedResult(req, op, decision), nil
	}

	if creds == nil {
		creds, err = e.vault.Resolve(integration)
		if err != nil {
			return nil, err
		}
	}

	resp, err := e.sandbox.Execute(ctx, e.sandboxRequest(integration, connector, op.Name, req.Params, req.Variables, creds))
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("connector operation %q failed: %s", op.Name, resp.Error)
	}

	return &models.OperationResult{
		ID:         req.ID,
		Operation:  op.Name,
		Success:    true,
		Data:       resp.Result,
		DurationMs: resp.DurationMs,
	}, nil
}

// sandboxRequest assembles the runtime request: secrets per auth method,
// the connector's allow-list and timeout with their defaults.
func (e *Executor) sandboxRequest(integration *models.Integration, connector *models.ConnectorConfig, operation string, params, variables map[string]interface{}, creds *credentials.Credentials) *sandbox.Request {
	domain := ""
	if integration.ConnectionConfig != nil {
		domain = integration.ConnectionConfig.Domain
	}

	allowedHosts := connector.AllowedHosts
	if allowedHosts == nil {
		allowedHosts = []string{}
	}
	timeoutMs := connector.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = sandbox.DefaultTimeoutMs
	}

	return &sandbox.Request{
		Code:         connector.Code,
		Operation:    operation,
		Params:       params,
		Variables:    variables,
		Secrets:      creds.SecretsMap(domain),
		AllowedHosts: allowedHosts,
		TimeoutMs:    timeoutMs,
	}
}

// TestConnection verifies an integration can reach its external system and
// stamps the health check on success. SQL integrations run a minimal probe
// query; REST integrations invoke the connector's testConnection entry.
func (e *Executor) TestConnection(ctx context.Context, integration *models.Integration) error {
	creds, err := e.vault.Resolve(integration)
	if err != nil {
		return err
	}

	switch integration.EffectiveType() {
	case models.IntegrationTypeSQL:
		cfg := integration.SQLConnectionConfig
		if cfg == nil {
			return fmt.Errorf("integration %q has no SQL connection config", integration.Name)
		}
		_, err = e.sql.ExecuteQuery(ctx, sqlengine.Request{
			Engine: cfg.Engine,
			Credentials: sqlengine.Credentials{
				Server:   cfg.Server,
				Port:     cfg.Port,
				Database: cfg.Database,
				User:     sqlUser(integration, creds),
				Password: sqlPassword(creds),
				Options:  cfg.Options,
			},
			Query:    "SELECT 1 AS ok",
			Security: cfg.Security,
		})
	case models.IntegrationTypeRESTAPI:
		var connector *models.ConnectorConfig
		connector, err = e.catalog.ResolveConnector(integration)
		if err != nil {
			return err
		}
		var resp *sandbox.Response
		resp, err = e.sandbox.Execute(ctx, e.sandboxRequest(integration, connector, TestConnectionOperation, nil, nil, creds))
		if err == nil && !resp.Success {
			err = fmt.Errorf("connection test failed: %s", resp.Error)
		}
	default:
		return fmt.Errorf("unsupported integration type %q", integration.Type)
	}
	if err != nil {
		return err
	}

	if recordErr := e.integrations.RecordHealthCheck(ctx, integration.ID); recordErr != nil {
		e.logger.Warn("failed to record health check", map[string]interface{}{
			"integration": integration.Name,
			"error":       recordErr.Error(),
		})
	}
	return nil
}

func gatedResult(req Request, op models.OperationConfig, decision *approval.Decision) *models.OperationResult {
	return &models.OperationResult{
		ID:               req.ID,
		Operation:        op.Name,
		Success:          true,
		RequiresApproval: true,
		ApprovalID:       decision.Ticket.ID,
	}
}

// validateRequiredParams rejects a call that omits a declared required
// parameter before anything is decrypted or executed.
func validateRequiredParams(op models.OperationConfig, params map[string]interface{}) error {
	for _, p := range op.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return fmt.Errorf("operation %q requires parameter %q", op.Name, p.Name)
		}
	}
	return nil
}

func sqlUser(integration *models.Integration, creds *credentials.Credentials) string {
	if creds.Username != "" {
		return creds.Username
	}
	return integration.Username
}

func sqlPassword(creds *credentials.Credentials) string {
	if creds.Password != "" {
		return creds.Password
	}
	// API-key style SQL credentials carry the token as the password
	return creds.AccessToken
}
