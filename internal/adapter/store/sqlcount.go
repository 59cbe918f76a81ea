package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CountRows returns SELECT COUNT(*) for the table. Table names are
// validated, not quoted, so schema-qualified names work on every driver.
func CountRows(ctx context.Context, db *sql.DB, table string) (int64, error) {
	if !identifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// driverName maps user-facing driver names to registered database/sql drivers.
func driverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}

// CountTable counts the rows of a table in an external SQL-backed store.
func CountTable(ctx context.Context, driver, dsn, table string) (int64, error) {
	name, err := driverName(driver)
	if err != nil {
		return 0, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return CountRows(ctx, db, table)
}
