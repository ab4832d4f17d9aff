package sqlstore

import (
	"fmt"
	"regexp"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type dialect struct {
	driver    string
	getSQL    string
	upsertSQL string
	deleteSQL string
	// fieldExpr renders the JSON field accessor; the field name is validated first.
	fieldExpr func(field string) string
	queryTmpl string
}

var sqliteDialect = dialect{
	driver:    DriverSQLite,
	getSQL:    `SELECT data FROM documents WHERE collection = ? AND id = ?`,
	upsertSQL: `INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	deleteSQL: `DELETE FROM documents WHERE collection = ? AND id = ?`,
	fieldExpr: func(field string) string { return fmt.Sprintf("json_extract(data, '$.%s')", field) },
	queryTmpl: `SELECT id, data FROM documents WHERE collection = ? AND %s = ? ORDER BY id`,
}

var postgresDialect = dialect{
	driver:    DriverPostgres,
	getSQL:    `SELECT data::text FROM documents WHERE collection = $1 AND id = $2`,
	upsertSQL: `INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, $4) ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	deleteSQL: `DELETE FROM documents WHERE collection = $1 AND id = $2`,
	fieldExpr: func(field string) string { return fmt.Sprintf("(data ->> '%s')", field) },
	queryTmpl: `SELECT id, data::text FROM documents WHERE collection = $1 AND %s = $2 ORDER BY id`,
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (d dialect) querySQL(field string) (string, error) {
	if !fieldName.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf(d.queryTmpl, d.fieldExpr(field)), nil
}
