package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackflow-io/stackflow/pkg/database"
	"github.com/stackflow-io/stackflow/pkg/models"
)

// MemoryRepository is an in-memory ticket store for tests and local
// development. It honors the same pending-only transition guard as the
// Postgres implementation.
type MemoryRepository struct {
	mu      sync.Mutex
	tickets map[string]*models.ApprovalTicket
}

// NewMemoryRepository creates an empty in-memory ticket store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tickets: make(map[string]*models.ApprovalTicket)}
}

// Create stores a ticket in pending state
func (r *MemoryRepository) Create(ctx context.Context, ticket *models.ApprovalTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	ticket.Status = models.ApprovalStatusPending
	if ticket.Priority == "" {
		ticket.Priority = models.ApprovalPriorityNormal
	}
	ticket.CreatedAt = time.Now()

	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

// GetByID retrieves a ticket
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.ApprovalTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

// UpdateStatus transitions a pending ticket, first writer wins
func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status models.ApprovalStatus, resolvedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return database.ErrNotFound
	}
	if ticket.Status != models.ApprovalStatusPending {
		return ErrAlreadyResolved
	}
	now := time.Now()
	ticket.Status = status
	ticket.ResolvedBy = &resolvedBy
	ticket.ResolvedAt = &now
	return nil
}

// ListPending returns pending tickets for an organization, oldest first
func (r *MemoryRepository) ListPending(ctx context.Context, organizationID string) ([]*models.ApprovalTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.ApprovalTicket
	for _, ticket := range r.tickets {
		if ticket.OrganizationID == organizationID && ticket.Status == models.ApprovalStatusPending {
			copied := *ticket
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Count reports the total number of stored tickets
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}
