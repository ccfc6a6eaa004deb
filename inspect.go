package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// systemTablePrefixes are skipped by ListTableNames (compared upper-cased).
var systemTablePrefixes = []string{
	"INFORMATION_SCHEMA",
	"PERFORMANCE_SCHEMA",
	"SYS",
	"MYSQL",
	"SYSTEM_",
	"SQLITE_",
	"PG_",
}

// TestConnection reports whether desc can be opened and pinged. It never
// returns an error; failures are logged.
func (e *Engine) TestConnection(ctx context.Context, desc ConnectionDescriptor) bool {
	db, _, err := openConnection(ctx, desc)
	if err != nil {
		log.Warn().Err(err).Str("target", descTag(desc)).Str("url", redactURL(desc.URL)).Msg("connection test failed")
		return false
	}
	db.Close()
	return true
}

// TableRowCount returns SELECT COUNT(*) for table.
func (e *Engine) TableRowCount(ctx context.Context, desc ConnectionDescriptor, table string) (int64, error) {
	db, d, err := openConnection(ctx, desc)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.QuoteIdentifier(table)).Scan(&n); err != nil {
		if isMissingTable(err) {
			return 0, &StructureNotFoundError{Table: table, Err: err}
		}
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return n, nil
}

// TableExists reports whether table exists in desc's current database or
// schema.
func (e *Engine) TableExists(ctx context.Context, desc ConnectionDescriptor, table string) (bool, error) {
	db, d, err := openConnection(ctx, desc)
	if err != nil {
		return false, err
	}
	defer db.Close()

	ok, err := tableExistsOn(ctx, db, d, table)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return ok, nil
}

// ListTableNames lists user tables, leaving out system and metadata tables.
func (e *Engine) ListTableNames(ctx context.Context, desc ConnectionDescriptor) ([]string, error) {
	db, d, err := openConnection(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	names, err := collectStringRows(ctx, db, d.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !isSystemTable(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DescribeTable introspects table without touching any destination.
func (e *Engine) DescribeTable(ctx context.Context, desc ConnectionDescriptor, table string) (*Table, Dialect, error) {
	db, d, err := openConnection(ctx, desc)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	t, err := introspectTable(ctx, db, d, table)
	if err != nil {
		return nil, nil, err
	}
	return t, d, nil
}

// isSystemTable matches systemTablePrefixes. The backup table set is never a
// system table, even though system_config starts with SYSTEM_.
func isSystemTable(name string) bool {
	for _, t := range backupTables {
		if strings.EqualFold(name, t) {
			return false
		}
	}
	upper := strings.ToUpper(name)
	for _, p := range systemTablePrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// isMissingTable recognizes "table does not exist" errors of every supported
// driver.
func isMissingTable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1146
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return strings.Contains(err.Error(), "no such table")
}
