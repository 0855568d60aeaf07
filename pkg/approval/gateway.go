// Package approval gates state-mutating operations behind a human decision.
// The gateway decides whether an operation needs approval, files a ticket
// and returns a sentinel decision instead of executing. The approve/reject
// transition itself belongs to an external collaborator, which re-invokes
// execution with the skip flag set.
package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/catalog"
	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
	approvalrepo "github.com/stackflow-io/stackflow/pkg/repository/approval"
)

// CheckRequest carries everything the gateway needs to gate one invocation
type CheckRequest struct {
	Integration *models.Integration
	Operation   models.OperationConfig
	Params      map[string]interface{}
	// SkipApprovalCheck is the re-invocation path after a human approves:
	// the check is skipped entirely and execution proceeds.
	SkipApprovalCheck bool
	// Optional UI linkage so the ticket can surface in a conversation
	ThreadID  *string
	MessageID *string
}

// Decision is the gateway's verdict. When Required is true, Ticket is the
// pending ticket that was filed and the caller must not execute.
type Decision struct {
	Required bool
	Ticket   *models.ApprovalTicket
}

// Gateway decides and files approvals
type Gateway struct {
	tickets approvalrepo.Repository
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewGateway creates an approval gateway over the given ticket store
func NewGateway(tickets approvalrepo.Repository, logger observability.Logger, metrics observability.MetricsClient) *Gateway {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Gateway{tickets: tickets, logger: logger.WithPrefix("approval"), metrics: metrics}
}

// Check applies the gating rules. Introspection operations never require
// approval; otherwise the operation's explicit flag wins and a write
// defaults to gated. Calling Check twice for the same logical request -
// once to gate, once with SkipApprovalCheck after the human approves - is
// the intended idempotent flow.
func (g *Gateway) Check(ctx context.Context, req CheckRequest) (*Decision, error) {
	if req.SkipApprovalCheck {
		return &Decision{Required: false}, nil
	}
	if catalog.IsIntrospection(req.Operation.Name) {
		return &Decision{Required: false}, nil
	}
	if !req.Operation.NeedsApproval() {
		return &Decision{Required: false}, nil
	}

	ticket, err := g.fileTicket(ctx, req)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordCounter("approval.ticket.created", 1, map[string]string{
		"integration": req.Integration.Name,
	})
	g.logger.Info("approval ticket created", map[string]interface{}{
		"ticket_id":   ticket.ID,
		"integration": req.Integration.Name,
		"operation":   req.Operation.Name,
	})
	return &Decision{Required: true, Ticket: ticket}, nil
}

// fileTicket serializes the request so the approver's later re-invocation
// can re-supply identical parameters. Credentials are deliberately absent:
// execution after approval always resolves the integration's current
// credentials.
func (g *Gateway) fileTicket(ctx context.Context, req CheckRequest) (*models.ApprovalTicket, error) {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize operation parameters: %w", err)
	}

	priority := models.ApprovalPriorityNormal
	if req.Operation.EffectiveType() == models.OperationTypeWrite {
		priority = models.ApprovalPriorityHigh
	}

	ticket := &models.ApprovalTicket{
		OrganizationID:  req.Integration.OrganizationID,
		IntegrationID:   req.Integration.ID,
		IntegrationName: req.Integration.Name,
		IntegrationType: req.Integration.EffectiveType(),
		OperationName:   req.Operation.Name,
		OperationTitle:  req.Operation.DisplayTitle(),
		OperationType:   req.Operation.EffectiveType(),
		Parameters:      params,
		ThreadID:        req.ThreadID,
		MessageID:       req.MessageID,
		EstimatedImpact: estimateImpact(req),
		Priority:        priority,
	}
	if err := g.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create approval ticket: %w", err)
	}
	return ticket, nil
}

func estimateImpact(req CheckRequest) string {
	return fmt.Sprintf("%s operation %q on integration %q with %d parameter(s)",
		req.Operation.EffectiveType(), req.Operation.DisplayTitle(),
		req.Integration.Name, len(req.Params))
}
