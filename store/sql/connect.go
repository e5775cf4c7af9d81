package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Open resolves a dialect name to its SQL driver and bun dialect and
// returns a bun handle over the connection. It does not ping; callers
// own connectivity checks and the handle's lifecycle.
func Open(dialect string, dsn string) (*bun.DB, error) {
	driver, schemaDialect, err := resolveDialect(dialect)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s connection: %w", dialect, err)
	}
	return bun.NewDB(sqlDB, schemaDialect), nil
}

func resolveDialect(dialect string) (string, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres, "postgresql", "pg":
		return "postgres", pgdialect.New(), nil
	case DialectSQLite, "sqlite3":
		return "sqlite3", sqlitedialect.New(), nil
	default:
		return "", nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
}
