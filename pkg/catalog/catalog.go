// Package catalog resolves the set of callable operations for an
// integration: user-defined SQL operation templates plus the built-in
// introspection operations, or a REST connector's operation manifest with
// a predefined fallback.
package catalog

import (
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
)

// Catalog resolves operations against integration records. It holds no
// per-tenant state; every resolution works from the record the caller
// loaded for this request.
type Catalog struct {
	logger observability.Logger
}

// New creates a catalog
func New(logger observability.Logger) *Catalog {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Catalog{logger: logger.WithPrefix("catalog")}
}

// ResolveSQLOperation returns the operation config for a SQL integration,
// expanding built-in introspection operations for the integration's engine.
// Unknown names yield an OperationNotFoundError listing every valid name.
func (c *Catalog) ResolveSQLOperation(integration *models.Integration, name string) (models.OperationConfig, error) {
	if integration.SQLConnectionConfig == nil {
		return models.OperationConfig{}, fmt.Errorf("integration %q has no SQL connection config", integration.Name)
	}

	if IsIntrospection(name) {
		return introspectionOperation(name, integration.SQLConnectionConfig.Engine)
	}

	for _, op := range integration.SQLOperations {
		if op.Name == name {
			return op, nil
		}
	}
	return models.OperationConfig{}, &models.OperationNotFoundError{
		Operation: name,
		Valid:     c.SQLOperationNames(integration),
	}
}

// SQLOperationNames lists every callable operation of a SQL integration,
// introspection operations first.
func (c *Catalog) SQLOperationNames(integration *models.Integration) []string {
	names := make([]string, 0, len(introspectionNames)+len(integration.SQLOperations))
	names = append(names, introspectionNames...)
	for _, op := range integration.SQLOperations {
		names = append(names, op.Name)
	}
	return names
}

// ResolveConnector returns the authoritative connector for a rest_api
// integration: the tenant record's own connector when it carries code,
// otherwise the built-in predefined connector for the integration name.
func (c *Catalog) ResolveConnector(integration *models.Integration) (*models.ConnectorConfig, error) {
	if integration.Connector != nil && integration.Connector.Code != "" {
		return integration.Connector, nil
	}
	if predefined := PredefinedConnector(integration.Name); predefined != nil {
		c.logger.Debug("using predefined connector", map[string]interface{}{
			"integration": integration.Name,
		})
		return predefined, nil
	}
	return nil, fmt.Errorf("integration %q has no connector code and no predefined connector exists", integration.Name)
}

// ResolveRESTOperation returns the connector and the operation config for a
// rest_api integration. Unknown names yield an OperationNotFoundError with
// the connector's declared operations.
func (c *Catalog) ResolveRESTOperation(integration *models.Integration, name string) (*models.ConnectorConfig, models.OperationConfig, error) {
	connector, err := c.ResolveConnector(integration)
	if err != nil {
		return nil, models.OperationConfig{}, err
	}

	for _, op := range connector.Operations {
		if op.Name == name {
			return connector, op, nil
		}
	}

	valid := make([]string, 0, len(connector.Operations))
	for _, op := range connector.Operations {
		valid = append(valid, op.Name)
	}
	return nil, models.OperationConfig{}, &models.OperationNotFoundError{Operation: name, Valid: valid}
}

// Resolve dispatches on the integration type. For SQL integrations the
// returned connector is nil.
func (c *Catalog) Resolve(integration *models.Integration, name string) (*models.ConnectorConfig, models.OperationConfig, error) {
	switch integration.EffectiveType() {
	case models.IntegrationTypeSQL:
		op, err := c.ResolveSQLOperation(integration, name)
		return nil, op, err
	case models.IntegrationTypeRESTAPI:
		return c.ResolveRESTOperation(integration, name)
	default:
		return nil, models.OperationConfig{}, fmt.Errorf("unsupported integration type %q", integration.Type)
	}
}
