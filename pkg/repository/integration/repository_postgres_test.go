package integration

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackflow-io/stackflow/pkg/models"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func integrationRowColumns() []string {
	return []string{
		"id", "organization_id", "name", "type", "auth_method", "username",
		"encrypted_access_token", "encrypted_password", "encrypted_oauth_tokens",
		"connection_config", "sql_connection_config", "connector", "sql_operations",
		"status", "last_health_check", "created_at", "updated_at",
	}
}

func TestCreate(t *testing.T) {
	t.Run("AssignsIDAndDefaults", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()
		mock.ExpectQuery(`INSERT INTO integrations`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		in := &models.Integration{
			OrganizationID: "org-1",
			Name:           "shopify",
			AuthMethod:     models.AuthMethodAPIKey,
		}
		require.NoError(t, repo.Create(context.Background(), in))

		assert.NotEmpty(t, in.ID)
		assert.Equal(t, models.IntegrationTypeRESTAPI, in.Type)
		assert.Equal(t, "active", in.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateName", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO integrations`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), &models.Integration{
			OrganizationID: "org-1",
			Name:           "shopify",
		})
		assert.ErrorContains(t, err, `integration "shopify" already exists`)
	})
}

func TestGetByName(t *testing.T) {
	t.Run("RoundTripsJSONColumns", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()
		rows := sqlmock.NewRows(integrationRowColumns()).AddRow(
			"int-1", "org-1", "protel", "sql", "basic_auth", "reporting",
			nil, []byte("ciphertext"), nil,
			nil,
			[]byte(`{"engine":"mssql","server":"db.hotel.internal","database":"protel"}`),
			nil,
			[]byte(`[{"name":"get_reservations","operation_type":"read","query":"SELECT 1"}]`),
			"active", nil, now, now,
		)
		mock.ExpectQuery(`SELECT .+ FROM integrations WHERE organization_id = \$1 AND name = \$2`).
			WithArgs("org-1", "protel").
			WillReturnRows(rows)

		in, err := repo.GetByName(context.Background(), "org-1", "protel")
		require.NoError(t, err)

		assert.Equal(t, models.IntegrationTypeSQL, in.Type)
		require.NotNil(t, in.SQLConnectionConfig)
		assert.Equal(t, models.SQLEngineMSSQL, in.SQLConnectionConfig.Engine)
		require.Len(t, in.SQLOperations, 1)
		assert.Equal(t, "get_reservations", in.SQLOperations[0].Name)
		assert.Nil(t, in.Connector)
		assert.Nil(t, in.LastHealthCheck)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT .+ FROM integrations`).
			WithArgs("org-1", "nope").
			WillReturnRows(sqlmock.NewRows(integrationRowColumns()))

		_, err := repo.GetByName(context.Background(), "org-1", "nope")
		assert.ErrorIs(t, err, models.ErrIntegrationNotFound)
	})
}

func TestRecordHealthCheck(t *testing.T) {
	t.Run("Stamps", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE integrations SET last_health_check`).
			WithArgs("int-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.RecordHealthCheck(context.Background(), "int-1"))
	})

	t.Run("UnknownID", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE integrations SET last_health_check`).
			WithArgs("int-404").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.RecordHealthCheck(context.Background(), "int-404")
		assert.ErrorIs(t, err, models.ErrIntegrationNotFound)
	})
}
