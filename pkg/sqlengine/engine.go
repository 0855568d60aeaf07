// Package sqlengine executes tenant queries against external SQL systems.
// It routes by engine (postgres, mysql, mssql), rewrites named parameters
// into the driver's placeholder form, enforces the read-only validator and
// the per-query security limits, and reports timing. Connections are
// short-lived: a bounded pool is opened for one call and always released.
package sqlengine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// Tenant-facing SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
)

// Credentials identifies the tenant database and how to authenticate
type Credentials struct {
	Server   string
	Port     int
	Database string
	User     string
	Password string
	Options  map[string]string
}

// Request is one query execution against a tenant SQL system
type Request struct {
	Engine      models.SQLEngine
	Credentials Credentials
	Query       string
	Params      map[string]interface{}
	Security    models.SecurityLimits
	AllowWrite  bool
}

// Result is the outcome of a successful execution. For mutations Rows is
// nil and RowCount is the number of affected rows; for reads Rows holds the
// result set capped at the security limit.
type Result struct {
	Rows       []map[string]interface{}
	RowCount   int
	Truncated  bool
	DurationMs int64
}

// DefaultMaxPoolSize bounds the short-lived per-call connection pool.
// Operations beyond the bound queue inside the pool rather than fail.
const DefaultMaxPoolSize = 5

// openFunc opens a driver pool; replaced in tests
type openFunc func(driverName, dsn string) (*sqlx.DB, error)

// Executor routes queries to engine-specific drivers
type Executor struct {
	open        openFunc
	maxPoolSize int
	logger      observability.Logger
	metrics     observability.MetricsClient
}

// NewExecutor creates a query executor
func NewExecutor(logger observability.Logger, metrics observability.MetricsClient) *Executor {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Executor{
		open:        sqlx.Open,
		maxPoolSize: DefaultMaxPoolSize,
		logger:      logger.WithPrefix("sqlengine"),
		metrics:     metrics,
	}
}

// ExecuteQuery validates, binds and runs one query. The read-only check
// happens before any connection is opened. A driver timeout surfaces as a
// normal execution error, not a distinct code path.
func (e *Executor) ExecuteQuery(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if !req.AllowWrite {
		if err := validateReadOnly(req.Query); err != nil {
			return nil, err
		}
	}

	bound, err := bindParameters(req.Engine, req.Query, req.Params)
	if err != nil {
		return nil, err
	}

	driverName, dsn, err := buildDSN(req.Engine, req.Credentials, req.Security)
	if err != nil {
		return nil, err
	}

	db, err := e.open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", req.Engine, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			e.logger.Warn("failed to release connection pool", map[string]interface{}{
				"engine": string(req.Engine),
				"error":  closeErr.Error(),
			})
		}
	}()
	db.SetMaxOpenConns(e.maxPoolSize)
	db.SetMaxIdleConns(e.maxPoolSize)

	queryCtx, cancel := context.WithTimeout(ctx, req.Security.EffectiveQueryTimeout())
	defer cancel()

	result, err := e.run(queryCtx, db, req, bound)
	if err != nil {
		e.metrics.RecordCounter("sqlengine.query.error", 1, map[string]string{
			"engine": string(req.Engine),
		})
		return nil, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	e.metrics.RecordLatency("sqlengine.query", time.Since(start))
	e.logger.Debug("query executed", map[string]interface{}{
		"engine":    string(req.Engine),
		"row_count": result.RowCount,
		"truncated": result.Truncated,
	})
	return result, nil
}

// run dispatches between mutation and read execution. Mutations report
// affected rows so the caller can apply the zero-rows-affected guard.
func (e *Executor) run(ctx context.Context, db *sqlx.DB, req Request, bound *boundQuery) (*Result, error) {
	if req.AllowWrite && isMutation(req.Query) {
		res, err := db.ExecContext(ctx, bound.query, bound.args...)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			// Some drivers cannot report affected rows; treat as zero
			affected = 0
		}
		return &Result{RowCount: int(affected)}, nil
	}

	rows, err := db.QueryxContext(ctx, bound.query, bound.args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	maxRows := req.Security.EffectiveMaxResultRows()
	out := make([]map[string]interface{}, 0)
	truncated := false
	for rows.Next() {
		if len(out) >= maxRows {
			truncated = true
			break
		}
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		normalizeRow(row)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &Result{Rows: out, RowCount: len(out), Truncated: truncated}, nil
}

// normalizeRow converts driver byte slices to strings so results serialize
// cleanly for the workflow engine.
func normalizeRow(row map[string]interface{}) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}

// buildDSN constructs the driver DSN for an engine, embedding the statement
// timeout where the driver supports it.
func buildDSN(engine models.SQLEngine, creds Credentials, security models.SecurityLimits) (string, string, error) {
	timeout := security.EffectiveQueryTimeout()

	switch engine {
	case models.SQLEnginePostgres:
		parts := []string{
			fmt.Sprintf("host=%s", creds.Server),
			fmt.Sprintf("dbname=%s", creds.Database),
			fmt.Sprintf("user=%s", creds.User),
			fmt.Sprintf("password=%s", creds.Password),
			fmt.Sprintf("statement_timeout=%d", timeout.Milliseconds()),
		}
		if creds.Port > 0 {
			parts = append(parts, fmt.Sprintf("port=%d", creds.Port))
		}
		if _, ok := creds.Options["sslmode"]; !ok {
			parts = append(parts, "sslmode=require")
		}
		for k, v := range creds.Options {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
		return "postgres", strings.Join(parts, " "), nil

	case models.SQLEngineMySQL:
		port := creds.Port
		if port == 0 {
			port = 3306
		}
		params := url.Values{}
		params.Set("timeout", "10s")
		params.Set("readTimeout", timeout.String())
		params.Set("writeTimeout", timeout.String())
		for k, v := range creds.Options {
			params.Set(k, v)
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			creds.User, creds.Password, creds.Server, port, creds.Database, params.Encode())
		return "mysql", dsn, nil

	case models.SQLEngineMSSQL:
		query := url.Values{}
		query.Set("database", creds.Database)
		query.Set("dial timeout", "10")
		for k, v := range creds.Options {
			query.Set(k, v)
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(creds.User, creds.Password),
			Host:     hostPort(creds.Server, creds.Port),
			RawQuery: query.Encode(),
		}
		return "sqlserver", u.String(), nil

	default:
		return "", "", fmt.Errorf("unsupported SQL engine %q", engine)
	}
}

func hostPort(server string, port int) string {
	if port > 0 {
		return fmt.Sprintf("%s:%d", server, port)
	}
	return server
}
