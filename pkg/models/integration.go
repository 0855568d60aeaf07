// Package models defines the data model of the action-execution gateway:
// tenant-scoped integrations, operation configurations, approval tickets
// and the result types returned to the workflow engine.
package models

import (
	"time"
)

// IntegrationType identifies how an integration executes operations
type IntegrationType string

const (
	IntegrationTypeSQL     IntegrationType = "sql"
	IntegrationTypeRESTAPI IntegrationType = "rest_api"
)

// AuthMethod identifies how an integration authenticates to the external system
type AuthMethod string

const (
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodBasicAuth AuthMethod = "basic_auth"
	AuthMethodOAuth2    AuthMethod = "oauth2"
)

// SQLEngine identifies the SQL dialect/driver an integration targets
type SQLEngine string

const (
	SQLEnginePostgres SQLEngine = "postgres"
	SQLEngineMySQL    SQLEngine = "mysql"
	SQLEngineMSSQL    SQLEngine = "mssql"
)

// Integration is a tenant-scoped record describing a connection to an
// external system. Name is unique within an organization. Exactly one of
// Connector (rest_api) or SQLConnectionConfig+SQLOperations (sql) is
// authoritative for a given Type.
type Integration struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Name           string          `json:"name" db:"name"`
	Type           IntegrationType `json:"type" db:"type"`
	AuthMethod     AuthMethod      `json:"auth_method" db:"auth_method"`

	// Credential material. Username is stored in clear for basic_auth;
	// everything else is ciphertext produced by the vault and never
	// exposed in JSON.
	Username             string `json:"-" db:"username"`
	EncryptedAccessToken []byte `json:"-" db:"encrypted_access_token"`
	EncryptedPassword    []byte `json:"-" db:"encrypted_password"`
	EncryptedOAuthTokens []byte `json:"-" db:"encrypted_oauth_tokens"`

	ConnectionConfig    *ConnectionConfig    `json:"connection_config,omitempty" db:"connection_config"`
	SQLConnectionConfig *SQLConnectionConfig `json:"sql_connection_config,omitempty" db:"sql_connection_config"`
	Connector           *ConnectorConfig     `json:"connector,omitempty" db:"connector"`
	SQLOperations       []OperationConfig    `json:"sql_operations,omitempty" db:"sql_operations"`

	Status          string     `json:"status" db:"status"`
	LastHealthCheck *time.Time `json:"last_health_check,omitempty" db:"last_health_check"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// ConnectionConfig carries non-secret connection settings for REST
// integrations. Domain is injected into the sandbox secrets map so
// connector code can build request URLs.
type ConnectionConfig struct {
	Domain string `json:"domain,omitempty"`
}

// SecurityLimits bounds what a single query may consume
type SecurityLimits struct {
	MaxResultRows  int `json:"max_result_rows,omitempty"`
	QueryTimeoutMs int `json:"query_timeout_ms,omitempty"`
}

// Defaults applied when a limit is zero
const (
	DefaultMaxResultRows  = 10000
	DefaultQueryTimeoutMs = 30000
)

// EffectiveMaxResultRows returns the configured row cap or the default
func (s SecurityLimits) EffectiveMaxResultRows() int {
	if s.MaxResultRows > 0 {
		return s.MaxResultRows
	}
	return DefaultMaxResultRows
}

// EffectiveQueryTimeout returns the configured statement timeout or the default
func (s SecurityLimits) EffectiveQueryTimeout() time.Duration {
	ms := s.QueryTimeoutMs
	if ms <= 0 {
		ms = DefaultQueryTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// SQLConnectionConfig carries connection settings for SQL integrations
type SQLConnectionConfig struct {
	Engine   SQLEngine         `json:"engine"`
	Server   string            `json:"server"`
	Port     int               `json:"port,omitempty"`
	Database string            `json:"database"`
	Options  map[string]string `json:"options,omitempty"`
	Security SecurityLimits    `json:"security,omitempty"`
}

// ConnectorConfig carries a REST integration's partner-authored connector:
// the sandboxed code, its declared operations, the HTTP egress allow-list
// and the sandbox timeout.
type ConnectorConfig struct {
	Code         string            `json:"code,omitempty"`
	Operations   []OperationConfig `json:"operations,omitempty"`
	AllowedHosts []string          `json:"allowed_hosts,omitempty"`
	TimeoutMs    int               `json:"timeout_ms,omitempty"`
}

// EffectiveType returns the integration type, defaulting to rest_api
func (i *Integration) EffectiveType() IntegrationType {
	if i.Type == "" {
		return IntegrationTypeRESTAPI
	}
	return i.Type
}
