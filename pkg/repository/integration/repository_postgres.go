package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new Postgres-backed repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &PostgresRepository{db: db}
}

// integrationRow mirrors the integrations table; JSONB columns are held as
// raw bytes and converted at the boundary.
type integrationRow struct {
	ID                   string         `db:"id"`
	OrganizationID       string         `db:"organization_id"`
	Name                 string         `db:"name"`
	Type                 string         `db:"type"`
	AuthMethod           string         `db:"auth_method"`
	Username             string         `db:"username"`
	EncryptedAccessToken []byte         `db:"encrypted_access_token"`
	EncryptedPassword    []byte         `db:"encrypted_password"`
	EncryptedOAuthTokens []byte         `db:"encrypted_oauth_tokens"`
	ConnectionConfig     []byte         `db:"connection_config"`
	SQLConnectionConfig  []byte         `db:"sql_connection_config"`
	Connector            []byte         `db:"connector"`
	SQLOperations        []byte         `db:"sql_operations"`
	Status               string         `db:"status"`
	LastHealthCheck      sql.NullTime   `db:"last_health_check"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

const integrationColumns = `
	id, organization_id, name, type, auth_method, username,
	encrypted_access_token, encrypted_password, encrypted_oauth_tokens,
	connection_config, sql_connection_config, connector, sql_operations,
	status, last_health_check, created_at, updated_at`

// Create stores a new integration
func (r *PostgresRepository) Create(ctx context.Context, in *models.Integration) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Type == "" {
		in.Type = models.IntegrationTypeRESTAPI
	}
	if in.Status == "" {
		in.Status = "active"
	}

	row, err := toRow(in)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO integrations (
			id, organization_id, name, type, auth_method, username,
			encrypted_access_token, encrypted_password, encrypted_oauth_tokens,
			connection_config, sql_connection_config, connector, sql_operations,
			status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		row.ID, row.OrganizationID, row.Name, row.Type, row.AuthMethod, row.Username,
		row.EncryptedAccessToken, row.EncryptedPassword, row.EncryptedOAuthTokens,
		row.ConnectionConfig, row.SQLConnectionConfig, row.Connector, row.SQLOperations,
		row.Status,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("integration %q already exists for organization %s", in.Name, in.OrganizationID)
		}
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

// GetByName retrieves an integration by organization and name
func (r *PostgresRepository) GetByName(ctx context.Context, organizationID, name string) (*models.Integration, error) {
	query := `SELECT` + integrationColumns + `
		FROM integrations
		WHERE organization_id = $1 AND name = $2`

	var row integrationRow
	if err := r.db.GetContext(ctx, &row, query, organizationID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("failed to get integration %q: %w", name, err)
	}
	return fromRow(&row)
}

// GetByID retrieves an integration by id
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	query := `SELECT` + integrationColumns + `
		FROM integrations
		WHERE id = $1`

	var row integrationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("failed to get integration %s: %w", id, err)
	}
	return fromRow(&row)
}

// Update persists mutable fields of an existing integration
func (r *PostgresRepository) Update(ctx context.Context, in *models.Integration) error {
	row, err := toRow(in)
	if err != nil {
		return err
	}

	query := `
		UPDATE integrations SET
			auth_method = $2, username = $3,
			encrypted_access_token = $4, encrypted_password = $5, encrypted_oauth_tokens = $6,
			connection_config = $7, sql_connection_config = $8, connector = $9,
			sql_operations = $10, status = $11,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		row.ID, row.AuthMethod, row.Username,
		row.EncryptedAccessToken, row.EncryptedPassword, row.EncryptedOAuthTokens,
		row.ConnectionConfig, row.SQLConnectionConfig, row.Connector,
		row.SQLOperations, row.Status,
	).Scan(&in.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrIntegrationNotFound
		}
		return fmt.Errorf("failed to update integration %s: %w", in.ID, err)
	}
	return nil
}

// RecordHealthCheck stamps the last successful connection test
func (r *PostgresRepository) RecordHealthCheck(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET last_health_check = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to record health check: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return models.ErrIntegrationNotFound
	}
	return nil
}

// ListByOrganization retrieves all integrations for an organization
func (r *PostgresRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Integration, error) {
	query := `SELECT` + integrationColumns + `
		FROM integrations
		WHERE organization_id = $1
		ORDER BY name`

	var rows []integrationRow
	if err := r.db.SelectContext(ctx, &rows, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	out := make([]*models.Integration, 0, len(rows))
	for i := range rows {
		in, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func toRow(in *models.Integration) (*integrationRow, error) {
	row := &integrationRow{
		ID:                   in.ID,
		OrganizationID:       in.OrganizationID,
		Name:                 in.Name,
		Type:                 string(in.Type),
		AuthMethod:           string(in.AuthMethod),
		Username:             in.Username,
		EncryptedAccessToken: in.EncryptedAccessToken,
		EncryptedPassword:    in.EncryptedPassword,
		EncryptedOAuthTokens: in.EncryptedOAuthTokens,
		Status:               in.Status,
	}

	var err error
	if row.ConnectionConfig, err = marshalNullable(in.ConnectionConfig, in.ConnectionConfig != nil); err != nil {
		return nil, fmt.Errorf("failed to marshal connection config: %w", err)
	}
	if row.SQLConnectionConfig, err = marshalNullable(in.SQLConnectionConfig, in.SQLConnectionConfig != nil); err != nil {
		return nil, fmt.Errorf("failed to marshal sql connection config: %w", err)
	}
	if row.Connector, err = marshalNullable(in.Connector, in.Connector != nil); err != nil {
		return nil, fmt.Errorf("failed to marshal connector: %w", err)
	}
	if row.SQLOperations, err = marshalNullable(in.SQLOperations, in.SQLOperations != nil); err != nil {
		return nil, fmt.Errorf("failed to marshal sql operations: %w", err)
	}
	return row, nil
}

func marshalNullable(v interface{}, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func fromRow(row *integrationRow) (*models.Integration, error) {
	in := &models.Integration{
		ID:                   row.ID,
		OrganizationID:       row.OrganizationID,
		Name:                 row.Name,
		Type:                 models.IntegrationType(row.Type),
		AuthMethod:           models.AuthMethod(row.AuthMethod),
		Username:             row.Username,
		EncryptedAccessToken: row.EncryptedAccessToken,
		EncryptedPassword:    row.EncryptedPassword,
		EncryptedOAuthTokens: row.EncryptedOAuthTokens,
		Status:               row.Status,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if row.LastHealthCheck.Valid {
		t := row.LastHealthCheck.Time
		in.LastHealthCheck = &t
	}

	if len(row.ConnectionConfig) > 0 {
		in.ConnectionConfig = &models.ConnectionConfig{}
		if err := json.Unmarshal(row.ConnectionConfig, in.ConnectionConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection config: %w", err)
		}
	}
	if len(row.SQLConnectionConfig) > 0 {
		in.SQLConnectionConfig = &models.SQLConnectionConfig{}
		if err := json.Unmarshal(row.SQLConnectionConfig, in.SQLConnectionConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sql connection config: %w", err)
		}
	}
	if len(row.Connector) > 0 {
		in.Connector = &models.ConnectorConfig{}
		if err := json.Unmarshal(row.Connector, in.Connector); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connector: %w", err)
		}
	}
	if len(row.SQLOperations) > 0 {
		if err := json.Unmarshal(row.SQLOperations, &in.SQLOperations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sql operations: %w", err)
		}
	}
	return in, nil
}
