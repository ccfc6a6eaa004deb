package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// pgMaxVarchar is the largest length PostgreSQL accepts for VARCHAR(n).
const pgMaxVarchar = 10485760

type postgresDialect struct{}

func (postgresDialect) Name() string { return "PostgreSQL" }

func (postgresDialect) OpenDB(desc ConnectionDescriptor) (*sql.DB, error) {
	connString, err := postgresConnString(desc.URL)
	if err != nil {
		return nil, err
	}
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url %q: %w", redactURL(desc.URL), err)
	}
	if desc.Username != "" {
		cfg.User = desc.Username
	}
	if desc.Password != "" {
		cfg.Password = desc.Password
	}
	return stdlib.OpenDB(*cfg), nil
}

// postgresConnString converts jdbc:postgresql:// URLs into libpq URLs. JDBC
// properties without a libpq equivalent are dropped; ssl=true becomes
// sslmode=require.
func postgresConnString(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "jdbc:") {
		return s, nil
	}
	u, err := url.Parse(strings.TrimPrefix(s, "jdbc:"))
	if err != nil {
		return "", fmt.Errorf("parse postgres url %q: %w", redactURL(raw), err)
	}
	in := u.Query()
	out := url.Values{}
	for _, k := range []string{"user", "password", "sslmode", "connect_timeout", "application_name"} {
		if v := in.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	if strings.EqualFold(in.Get("ssl"), "true") && out.Get("sslmode") == "" {
		out.Set("sslmode", "require")
	}
	u.RawQuery = out.Encode()
	return u.String(), nil
}

func (postgresDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }
func (postgresDialect) Placeholder(n int) string           { return fmt.Sprintf("$%d", n) }
func (postgresDialect) MaxBindParams() int                 { return 65535 }
func (postgresDialect) TransactionalDDL() bool             { return true }

func (postgresDialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

func (postgresDialect) ColumnStrategies() []strategy[Column] {
	return []strategy[Column]{
		{name: "pg_attribute", run: pgAttributeColumns},
		withNameVariants(strategy[Column]{name: "information_schema.columns", run: pgInformationSchemaColumns}),
		withNameVariants(strategy[Column]{name: "result set metadata", run: resultSetColumns}),
	}
}

func (postgresDialect) PrimaryKeyStrategies() []strategy[string] {
	return []strategy[string]{
		withNameVariants(strategy[string]{name: "information_schema.key_column_usage", run: informationSchemaPrimaryKey("current_schema()")}),
		{name: "pg_index", run: pgIndexPrimaryKey},
	}
}

func (postgresDialect) IndexStrategies() []strategy[Index] {
	return []strategy[Index]{
		{name: "pg_index", run: pgIndexes},
	}
}

func (postgresDialect) TableProperties(context.Context, queryer, string) (string, string, error) {
	return "", "", nil
}

func (postgresDialect) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`
}

func (postgresDialect) TableExistsQuery() string {
	return `SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1`
}

func (postgresDialect) CanonicalType(col Column) canonicalType {
	return postgresSourceTypes[col.TypeName]
}

func (postgresDialect) MapType(ct canonicalType, col Column) string {
	switch ct {
	case typeTinyInt:
		return "SMALLINT"
	case typeSmallInt:
		if col.Unsigned {
			return "INTEGER"
		}
		return "SMALLINT"
	case typeInteger, typeYear:
		if col.Unsigned {
			return "BIGINT"
		}
		return "INTEGER"
	case typeBigInt:
		// Identity columns need an integer type.
		if col.Unsigned && !col.AutoIncrement {
			return "NUMERIC(20)"
		}
		return "BIGINT"
	case typeFloat:
		return "REAL"
	case typeDouble:
		return "DOUBLE PRECISION"
	case typeDecimal:
		if col.Size > 0 {
			return sized("NUMERIC", min(col.Size, 1000), col.Digits)
		}
		return "NUMERIC"
	case typeChar:
		if col.Size > 0 {
			return sized("CHAR", col.Size, 0)
		}
		return "TEXT"
	case typeVarchar:
		if col.Size <= 0 || col.Size > pgMaxVarchar {
			return "TEXT"
		}
		return sized("VARCHAR", col.Size, 0)
	case typeText:
		return "TEXT"
	case typeBlob:
		return "BYTEA"
	case typeDate:
		return "DATE"
	case typeTime:
		return "TIME"
	case typeTimestamp:
		return "TIMESTAMP"
	case typeBoolean:
		return "BOOLEAN"
	case typeJSON:
		return "JSON"
	case typeEnum:
		return sized("VARCHAR", enumWidth(col), 0)
	default:
		return "TEXT"
	}
}

var postgresDefaultStyle = defaultStyle{boolTrue: "TRUE", boolFalse: "FALSE"}

func (postgresDialect) QuoteDefault(def columnDefault, ct canonicalType, _ string) (string, bool) {
	return renderDefault(def, ct, postgresDefaultStyle)
}

func (postgresDialect) AutoIncrementClause(destType string, _ canonicalType, _ bool) (string, bool) {
	switch destType {
	case "SMALLINT", "INTEGER", "BIGINT":
		return "GENERATED BY DEFAULT AS IDENTITY", false
	}
	return "", false
}

func (postgresDialect) CommentClause(string) string { return "" }
func (postgresDialect) TableOptions(Table) string   { return "" }

func (postgresDialect) IndexName(table, index string) string {
	return tableScopedIndexName(table, index)
}

// --- Introspection ---

func pgAttributeColumns(ctx context.Context, q queryer, d Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT a.attname,
		        format_type(a.atttypid, a.atttypmod),
		        NOT a.attnotnull,
		        pg_get_expr(ad.adbin, ad.adrelid),
		        a.attidentity <> '',
		        COALESCE(col_description(a.attrelid, a.attnum), '')
		 FROM pg_attribute a
		 LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
		 WHERE a.attrelid = to_regclass($1::text)
		   AND a.attnum > 0 AND NOT a.attisdropped AND a.attgenerated = ''
		 ORDER BY a.attnum`,
		d.QuoteIdentifier(table),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, formatted, comment string
		var nullable, identity bool
		var dflt sql.NullString
		if err := rows.Scan(&name, &formatted, &nullable, &dflt, &identity, &comment); err != nil {
			return nil, err
		}
		td := parseTypeDecl(formatted)
		col := Column{
			Name:       name,
			TypeName:   td.base,
			ColumnType: formatted,
			Size:       td.size,
			Digits:     td.digits,
			Nullable:   nullable,
			Comment:    comment,
		}
		applyPostgresDefault(&col, dflt, identity)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func pgInformationSchemaColumns(ctx context.Context, q queryer, _ Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT column_name, data_type,
		        COALESCE(character_maximum_length, numeric_precision, 0),
		        COALESCE(numeric_scale, 0),
		        is_nullable, column_default, COALESCE(is_identity, 'NO')
		 FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable, identity string
		var dflt sql.NullString
		if err := rows.Scan(&c.Name, &c.TypeName, &c.Size, &c.Digits, &nullable, &dflt, &identity); err != nil {
			return nil, err
		}
		c.TypeName = strings.ToLower(c.TypeName)
		c.ColumnType = c.TypeName
		c.Nullable = nullable == "YES"
		// numeric_precision is in bits for integer and float types.
		if ct := postgresSourceTypes[c.TypeName]; ct != typeDecimal && !ct.isString() {
			c.Size, c.Digits = 0, 0
		}
		applyPostgresDefault(&c, dflt, identity == "YES")
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// applyPostgresDefault fills AutoIncrement and Default. Serial columns show up
// as a nextval() default and are treated like identity columns.
func applyPostgresDefault(col *Column, dflt sql.NullString, identity bool) {
	if col.TypeName == "uuid" && col.Size == 0 {
		col.Size = 36
	}
	col.AutoIncrement = identity
	if !dflt.Valid {
		return
	}
	v := strings.TrimSpace(dflt.String)
	if strings.HasPrefix(strings.ToLower(v), "nextval(") {
		col.AutoIncrement = true
		return
	}
	bare, ok := postgresUnwrapDefault(v)
	if !ok {
		log.Warn().Str("column", col.Name).Str("default", v).Msg("skipping expression default")
		return
	}
	col.Default = &bare
}

// postgresUnwrapDefault strips a trailing ::type cast and one level of
// quoting. ok is false for expressions that are not plain literals or
// timestamp functions.
func postgresUnwrapDefault(v string) (string, bool) {
	if strings.HasPrefix(v, "'") {
		end := closingQuote(v)
		if end < 0 {
			return "", false
		}
		rest := strings.TrimSpace(v[end+1:])
		if rest != "" && (!strings.HasPrefix(rest, "::") || strings.ContainsAny(rest, "'|+-*/")) {
			return "", false
		}
		return unquoteLiteral(v[:end+1]), true
	}
	if i := strings.Index(v, "::"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	switch {
	case isTimestampFunction(v), isNumericLiteral(v):
		return v, true
	}
	if _, ok := parseBoolLiteral(v); ok {
		return v, true
	}
	return "", false
}

// closingQuote returns the index of the quote that ends the literal starting
// at s[0], skipping doubled quotes.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return -1
}

func pgIndexPrimaryKey(ctx context.Context, q queryer, d Dialect, table string) ([]string, error) {
	return collectStringRows(ctx, q,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = to_regclass($1::text) AND i.indisprimary
		 ORDER BY array_position(i.indkey::int2[], a.attnum)`,
		d.QuoteIdentifier(table),
	)
}

func pgIndexes(ctx context.Context, q queryer, d Dialect, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ic.relname,
		        i.indisunique,
		        (i.indexprs IS NOT NULL OR i.indpred IS NOT NULL),
		        a.attname
		 FROM pg_index i
		 JOIN pg_class ic ON ic.oid = i.indexrelid
		 CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		 LEFT JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum AND k.attnum > 0
		 WHERE i.indrelid = to_regclass($1::text)
		   AND NOT i.indisprimary
		   AND k.ord <= i.indnkeyatts
		 ORDER BY ic.relname, k.ord`,
		d.QuoteIdentifier(table),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := newIndexBuilder()
	for rows.Next() {
		var name string
		var unique, expr bool
		var column sql.NullString
		if err := rows.Scan(&name, &unique, &expr, &column); err != nil {
			return nil, err
		}
		if expr {
			column = sql.NullString{}
		}
		b.add(name, column, unique, false)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.indexes(), nil
}
