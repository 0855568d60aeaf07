package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stackflow-io/stackflow/pkg/database"
	"github.com/stackflow-io/stackflow/pkg/models"
)

// ErrAlreadyResolved is returned when a status transition races a prior
// resolution of the same ticket.
var ErrAlreadyResolved = errors.New("approval ticket already resolved")

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new Postgres-backed ticket store
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &PostgresRepository{db: db}
}

const ticketColumns = `
	id, organization_id, integration_id, integration_name, integration_type,
	operation_name, operation_title, operation_type, parameters,
	thread_id, message_id, estimated_impact, priority, status,
	resolved_by, resolved_at, created_at`

// Create stores a new ticket in pending state
func (r *PostgresRepository) Create(ctx context.Context, ticket *models.ApprovalTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	ticket.Status = models.ApprovalStatusPending
	if ticket.Priority == "" {
		ticket.Priority = models.ApprovalPriorityNormal
	}
	if len(ticket.Parameters) == 0 {
		ticket.Parameters = []byte("{}")
	}

	query := `
		INSERT INTO approval_tickets (
			id, organization_id, integration_id, integration_name, integration_type,
			operation_name, operation_title, operation_type, parameters,
			thread_id, message_id, estimated_impact, priority, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		ticket.ID, ticket.OrganizationID, ticket.IntegrationID, ticket.IntegrationName,
		ticket.IntegrationType, ticket.OperationName, ticket.OperationTitle,
		ticket.OperationType, []byte(ticket.Parameters),
		ticket.ThreadID, ticket.MessageID, ticket.EstimatedImpact, ticket.Priority,
		ticket.Status,
	).Scan(&ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create approval ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ApprovalTicket, error) {
	query := `SELECT` + ticketColumns + `
		FROM approval_tickets
		WHERE id = $1`

	var ticket models.ApprovalTicket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get approval ticket %s: %w", id, err)
	}
	return &ticket, nil
}

// UpdateStatus transitions a pending ticket. The WHERE status='pending'
// guard makes the transition first-writer-wins under concurrent retries.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.ApprovalStatus, resolvedBy string) error {
	if status != models.ApprovalStatusApproved && status != models.ApprovalStatusRejected {
		return fmt.Errorf("invalid approval transition to %q", status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE approval_tickets
		SET status = $2, resolved_by = $3, resolved_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'`,
		id, status, resolvedBy)
	if err != nil {
		return fmt.Errorf("failed to update approval ticket %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing ticket from a lost race
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrAlreadyResolved
	}
	return nil
}

// ListPending retrieves pending tickets for an organization, oldest first
func (r *PostgresRepository) ListPending(ctx context.Context, organizationID string) ([]*models.ApprovalTicket, error) {
	query := `SELECT` + ticketColumns + `
		FROM approval_tickets
		WHERE organization_id = $1 AND status = 'pending'
		ORDER BY created_at`

	var tickets []*models.ApprovalTicket
	if err := r.db.SelectContext(ctx, &tickets, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return tickets, nil
}
