// Package approval persists approval tickets for gated operations.
package approval

import (
	"context"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// Repository defines storage operations for approval tickets. This
// subsystem only creates tickets (pending) and reads them back; status
// transitions are driven by the external approval-resolution collaborator
// through UpdateStatus.
type Repository interface {
	// Create stores a new ticket in pending state and fills in its ID
	Create(ctx context.Context, ticket *models.ApprovalTicket) error

	// GetByID retrieves a ticket. Returns database.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.ApprovalTicket, error)

	// UpdateStatus transitions a pending ticket to approved or rejected.
	// The transition is guarded against races: only a pending ticket can
	// move, so concurrent resolutions and retries settle exactly once.
	UpdateStatus(ctx context.Context, id string, status models.ApprovalStatus, resolvedBy string) error

	// ListPending retrieves pending tickets for an organization, oldest first
	ListPending(ctx context.Context, organizationID string) ([]*models.ApprovalTicket, error)
}
