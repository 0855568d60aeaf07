package catalog

import (
	"fmt"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// Built-in introspection operations. They exist on every SQL integration,
// take no approval regardless of configuration, and are engine-specific
// only in the query text they expand to.
const (
	OpIntrospectTables  = "introspect_tables"
	OpIntrospectColumns = "introspect_columns"
)

// IsIntrospection reports whether the named operation is a built-in
// schema-discovery operation.
func IsIntrospection(name string) bool {
	return name == OpIntrospectTables || name == OpIntrospectColumns
}

// introspectionNames in catalog listing order
var introspectionNames = []string{OpIntrospectTables, OpIntrospectColumns}

var tablesQueries = map[models.SQLEngine]string{
	models.SQLEnginePostgres: `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name`,
	models.SQLEngineMySQL: `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema = DATABASE()
ORDER BY table_name`,
	models.SQLEngineMSSQL: `SELECT TABLE_SCHEMA AS table_schema, TABLE_NAME AS table_name
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_SCHEMA, TABLE_NAME`,
}

var columnsQueries = map[models.SQLEngine]string{
	models.SQLEnginePostgres: `SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = :schemaName AND table_name = :tableName
ORDER BY ordinal_position`,
	models.SQLEngineMySQL: `SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = :schemaName AND table_name = :tableName
ORDER BY ordinal_position`,
	models.SQLEngineMSSQL: `SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type, IS_NULLABLE AS is_nullable
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = :schemaName AND TABLE_NAME = :tableName
ORDER BY ORDINAL_POSITION`,
}

// introspectionOperation expands a built-in operation for the given engine
func introspectionOperation(name string, engine models.SQLEngine) (models.OperationConfig, error) {
	switch name {
	case OpIntrospectTables:
		query, ok := tablesQueries[engine]
		if !ok {
			return models.OperationConfig{}, fmt.Errorf("unsupported SQL engine %q", engine)
		}
		return models.OperationConfig{
			Name:          OpIntrospectTables,
			Title:         "List tables",
			OperationType: models.OperationTypeRead,
			Query:         query,
		}, nil

	case OpIntrospectColumns:
		query, ok := columnsQueries[engine]
		if !ok {
			return models.OperationConfig{}, fmt.Errorf("unsupported SQL engine %q", engine)
		}
		return models.OperationConfig{
			Name:          OpIntrospectColumns,
			Title:         "List columns",
			OperationType: models.OperationTypeRead,
			Query:         query,
			Parameters: []models.OperationParameter{
				{Name: "schemaName", Type: "string", Required: true},
				{Name: "tableName", Type: "string", Required: true},
			},
		}, nil

	default:
		return models.OperationConfig{}, fmt.Errorf("not an introspection operation: %q", name)
	}
}
