package main

import (
	"context"
	"database/sql"
	"strings"
)

// Dialect abstracts one database family so the transfer engine can read from
// and write to MySQL, SQLite or PostgreSQL without branching on driver names.
type Dialect interface {
	// Name returns a human-readable name ("MySQL", "SQLite", "PostgreSQL").
	Name() string

	// OpenDB opens a handle with driver-specific options. It does not ping.
	OpenDB(desc ConnectionDescriptor) (*sql.DB, error)

	// QuoteIdentifier quotes a table, column or index name.
	QuoteIdentifier(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// MaxBindParams caps the number of parameters in one statement.
	MaxBindParams() int

	// TxOptions returns the options for destination transactions, or nil
	// when the driver only supports its default isolation level.
	TxOptions() *sql.TxOptions

	// TransactionalDDL reports whether DROP/CREATE participate in the
	// enclosing transaction instead of committing it implicitly.
	TransactionalDDL() bool

	// ColumnStrategies, PrimaryKeyStrategies and IndexStrategies list the
	// introspection paths in the order they are tried.
	ColumnStrategies() []strategy[Column]
	PrimaryKeyStrategies() []strategy[string]
	IndexStrategies() []strategy[Index]

	// TableProperties returns storage engine and collation, where the
	// dialect has them.
	TableProperties(ctx context.Context, q queryer, table string) (engine, collation string, err error)

	// ListTablesQuery lists base table names of the connected database.
	ListTablesQuery() string

	// TableExistsQuery selects a table's name given one bound parameter.
	TableExistsQuery() string

	// CanonicalType classifies a column of this dialect into the shared
	// type vocabulary.
	CanonicalType(col Column) canonicalType

	// MapType renders a canonical type as this dialect's column type.
	MapType(ct canonicalType, col Column) string

	// QuoteDefault renders a normalized default for a column of the given
	// canonical and destination type. ok is false when the default must be
	// dropped.
	QuoteDefault(def columnDefault, ct canonicalType, destType string) (expr string, ok bool)

	// AutoIncrementClause renders the identity clause. inlinePK reports that
	// the clause already declares the primary key.
	AutoIncrementClause(destType string, ct canonicalType, soleKey bool) (clause string, inlinePK bool)

	// CommentClause renders an inline column comment, or "" when the
	// dialect does not support them.
	CommentClause(comment string) string

	// TableOptions renders trailing CREATE TABLE options.
	TableOptions(t Table) string

	// IndexName returns the destination index name for a source index.
	IndexName(table, index string) string
}

// queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// lookupDialect returns the Dialect for a driver identifier. JDBC driver class
// names stored by older configurations are accepted as aliases.
func lookupDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb", "com.mysql.cj.jdbc.driver", "com.mysql.jdbc.driver", "org.mariadb.jdbc.driver":
		return mysqlDialect{}, nil
	case "sqlite", "sqlite3", "org.sqlite.jdbc":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx", "org.postgresql.driver":
		return postgresDialect{}, nil
	case "":
		return nil, configErrorf("driver is required")
	default:
		return nil, configErrorf("unsupported driver %q (must be mysql, sqlite or postgres)", driver)
	}
}

// openConnection resolves the dialect, opens a handle and pings it. Every
// failure after dialect resolution is a ConnectionError.
func openConnection(ctx context.Context, desc ConnectionDescriptor) (*sql.DB, Dialect, error) {
	d, err := lookupDialect(desc.Driver)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(desc.URL) == "" {
		return nil, nil, configErrorf("%s url is required", descTag(desc))
	}
	db, err := d.OpenDB(desc)
	if err != nil {
		return nil, nil, &ConnectionError{Tag: descTag(desc), Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, &ConnectionError{Tag: descTag(desc), Err: err}
	}
	return db, d, nil
}

func descTag(desc ConnectionDescriptor) string {
	if desc.Tag == "" {
		return "unnamed"
	}
	return desc.Tag
}

// quoteWith doubles q inside name and wraps it.
func quoteWith(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// tableScopedIndexName prefixes index with its table for dialects where index
// names share one namespace per schema.
func tableScopedIndexName(table, index string) string {
	if strings.HasPrefix(strings.ToLower(index), strings.ToLower(table)+"_") {
		return index
	}
	return table + "_" + index
}
