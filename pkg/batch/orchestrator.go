// Package batch executes N operations against one integration in a single
// call: the integration is loaded once, SQL credentials are decrypted once
// and shared, and per-operation failures never abort their siblings.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/stackflow-io/stackflow/pkg/credentials"
	"github.com/stackflow-io/stackflow/pkg/executor"
	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
	integrationrepo "github.com/stackflow-io/stackflow/pkg/repository/integration"
)

// Request is one batch invocation
type Request struct {
	OrganizationID    string
	IntegrationName   string
	Operations        []models.OperationRequest
	Variables         map[string]interface{}
	SkipApprovalCheck bool
	ThreadID          *string
	MessageID         *string
}

// Orchestrator fans a batch out over the integration executor
type Orchestrator struct {
	integrations integrationrepo.Repository
	vault        *credentials.Vault
	executor     *executor.Executor
	logger       observability.Logger
	metrics      observability.MetricsClient
}

// NewOrchestrator creates a batch orchestrator
func NewOrchestrator(
	integrations integrationrepo.Repository,
	vault *credentials.Vault,
	exec *executor.Executor,
	logger observability.Logger,
	metrics observability.MetricsClient,
) *Orchestrator {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Orchestrator{
		integrations: integrations,
		vault:        vault,
		executor:     exec,
		logger:       logger.WithPrefix("batch"),
		metrics:      metrics,
	}
}

// ExecuteBatch runs all operations and aggregates their outcomes. Results
// are index-aligned with the input regardless of completion order.
// Integration-not-found and credential failures apply to the entire batch:
// every operation reports the same failure rather than the call erroring.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, req Request) (*models.BatchResult, error) {
	start := time.Now()

	integration, err := o.integrations.GetByName(ctx, req.OrganizationID, req.IntegrationName)
	if err != nil {
		return o.uniformFailure(req, err, start), nil
	}

	var results []models.OperationResult
	switch integration.EffectiveType() {
	case models.IntegrationTypeSQL:
		// Decrypt exactly once; the read-only credentials are safely
		// shared across the concurrent operations.
		creds, credErr := o.vault.Resolve(integration)
		if credErr != nil {
			return o.uniformFailure(req, credErr, start), nil
		}
		results = o.runConcurrent(ctx, integration, creds, req)
	default:
		// REST operations run sequentially: per-call rate limits differ,
		// and each call rebuilds its own credential view.
		results = o.runSequential(ctx, integration, req)
	}

	batch := aggregate(results, start)
	o.metrics.RecordLatency("batch.execute", time.Since(start))
	o.metrics.RecordGauge("batch.size", float64(len(req.Operations)), map[string]string{
		"integration": req.IntegrationName,
	})
	o.logger.Info("batch completed", map[string]interface{}{
		"integration": req.IntegrationName,
		"operations":  len(req.Operations),
		"failures":    batch.Stats.FailureCount,
		"approvals":   batch.Stats.ApprovalCount,
	})
	return batch, nil
}

// runConcurrent fires every SQL operation at once. Concurrency is bounded
// only by the engine's per-call connection pool, so a large batch queues
// inside the pool instead of failing outright.
func (o *Orchestrator) runConcurrent(ctx context.Context, integration *models.Integration, creds *credentials.Credentials, req Request) []models.OperationResult {
	results := make([]models.OperationResult, len(req.Operations))

	var wg sync.WaitGroup
	for i, op := range req.Operations {
		wg.Add(1)
		go func(i int, op models.OperationRequest) {
			defer wg.Done()
			results[i] = o.runOne(ctx, integration, creds, op, req)
		}(i, op)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) runSequential(ctx context.Context, integration *models.Integration, req Request) []models.OperationResult {
	results := make([]models.OperationResult, len(req.Operations))
	for i, op := range req.Operations {
		results[i] = o.runOne(ctx, integration, nil, op, req)
	}
	return results
}

// runOne isolates a single operation: any error becomes a failed result
// and never disturbs sibling operations.
func (o *Orchestrator) runOne(ctx context.Context, integration *models.Integration, creds *credentials.Credentials, op models.OperationRequest, req Request) models.OperationResult {
	result, err := o.executor.ExecuteOnLoaded(ctx, integration, creds, executor.Request{
		ID:                op.ID,
		OrganizationID:    req.OrganizationID,
		IntegrationName:   req.IntegrationName,
		Operation:         op.Operation,
		Params:            op.Params,
		Variables:         req.Variables,
		SkipApprovalCheck: req.SkipApprovalCheck,
		ThreadID:          req.ThreadID,
		MessageID:         req.MessageID,
	})
	if err != nil {
		return models.OperationResult{
			ID:        op.ID,
			Operation: op.Operation,
			Success:   false,
			Error:     err.Error(),
		}
	}
	return *result
}

// uniformFailure marks every operation failed with the same batch-level
// error, per the shared-credential contract.
func (o *Orchestrator) uniformFailure(req Request, err error, start time.Time) *models.BatchResult {
	results := make([]models.OperationResult, len(req.Operations))
	for i, op := range req.Operations {
		results[i] = models.OperationResult{
			ID:        op.ID,
			Operation: op.Operation,
			Success:   false,
			Error:     err.Error(),
		}
	}
	o.logger.Warn("batch failed uniformly", map[string]interface{}{
		"integration": req.IntegrationName,
		"operations":  len(req.Operations),
		"error":       err.Error(),
	})
	return aggregate(results, start)
}

func aggregate(results []models.OperationResult, start time.Time) *models.BatchResult {
	stats := models.BatchStats{TotalTimeMs: time.Since(start).Milliseconds()}
	for _, r := range results {
		switch {
		case r.RequiresApproval:
			stats.ApprovalCount++
		case r.Success:
			stats.SuccessCount++
		default:
			stats.FailureCount++
		}
	}
	return &models.BatchResult{
		Success: stats.FailureCount == 0,
		Results: results,
		Stats:   stats,
	}
}
