// Package integration persists tenant integration records.
package integration

import (
	"context"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// Repository defines storage operations for integration records. This
// subsystem never deletes integrations; records are created once per
// organization and mutated on re-auth or connection tests.
type Repository interface {
	// Create stores a new integration. Name must be unique within the
	// organization.
	Create(ctx context.Context, integration *models.Integration) error

	// GetByName retrieves an integration by organization and name.
	// Returns models.ErrIntegrationNotFound when absent.
	GetByName(ctx context.Context, organizationID, name string) (*models.Integration, error)

	// GetByID retrieves an integration by id
	GetByID(ctx context.Context, id string) (*models.Integration, error)

	// Update persists credential or connector mutations (re-auth, test)
	Update(ctx context.Context, integration *models.Integration) error

	// RecordHealthCheck stamps the last successful connection test
	RecordHealthCheck(ctx context.Context, id string) error

	// ListByOrganization retrieves all integrations for an organization
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Integration, error)
}
