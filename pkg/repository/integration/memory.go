package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// MemoryRepository is an in-memory integration store for tests and local
// development.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*models.Integration
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.Integration)}
}

// Create stores a new integration
func (r *MemoryRepository) Create(ctx context.Context, in *models.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.OrganizationID == in.OrganizationID && existing.Name == in.Name {
			return fmt.Errorf("integration %q already exists for organization %s", in.Name, in.OrganizationID)
		}
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Type == "" {
		in.Type = models.IntegrationTypeRESTAPI
	}
	if in.Status == "" {
		in.Status = "active"
	}
	in.CreatedAt = time.Now()
	in.UpdatedAt = in.CreatedAt

	copied := *in
	r.records[in.ID] = &copied
	return nil
}

// GetByName retrieves an integration by organization and name
func (r *MemoryRepository) GetByName(ctx context.Context, organizationID, name string) (*models.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, in := range r.records {
		if in.OrganizationID == organizationID && in.Name == name {
			copied := *in
			return &copied, nil
		}
	}
	return nil, models.ErrIntegrationNotFound
}

// GetByID retrieves an integration by id
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.records[id]
	if !ok {
		return nil, models.ErrIntegrationNotFound
	}
	copied := *in
	return &copied, nil
}

// Update persists mutations to an existing integration
func (r *MemoryRepository) Update(ctx context.Context, in *models.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[in.ID]; !ok {
		return models.ErrIntegrationNotFound
	}
	in.UpdatedAt = time.Now()
	copied := *in
	r.records[in.ID] = &copied
	return nil
}

// RecordHealthCheck stamps the last successful connection test
func (r *MemoryRepository) RecordHealthCheck(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.records[id]
	if !ok {
		return models.ErrIntegrationNotFound
	}
	now := time.Now()
	in.LastHealthCheck = &now
	return nil
}

// ListByOrganization retrieves all integrations for an organization
func (r *MemoryRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Integration
	for _, in := range r.records {
		if in.OrganizationID == organizationID {
			copied := *in
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
