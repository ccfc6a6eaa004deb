package main

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// mysqlMaxVarchar is the widest VARCHAR that fits a utf8mb4 row.
const mysqlMaxVarchar = 16383

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "MySQL" }

func (mysqlDialect) OpenDB(desc ConnectionDescriptor) (*sql.DB, error) {
	cfg, err := mysqlConfigFromDescriptor(desc)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func (mysqlDialect) QuoteIdentifier(name string) string { return quoteWith(name, "`") }
func (mysqlDialect) Placeholder(int) string             { return "?" }
func (mysqlDialect) MaxBindParams() int                 { return 65535 }
func (mysqlDialect) TransactionalDDL() bool             { return false }

func (mysqlDialect) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

func (mysqlDialect) ColumnStrategies() []strategy[Column] {
	return []strategy[Column]{
		{name: "show full columns", run: mysqlShowColumns},
		withNameVariants(strategy[Column]{name: "information_schema.columns", run: mysqlInformationSchemaColumns}),
		withNameVariants(strategy[Column]{name: "result set metadata", run: resultSetColumns}),
	}
}

func (mysqlDialect) PrimaryKeyStrategies() []strategy[string] {
	return []strategy[string]{
		withNameVariants(strategy[string]{name: "information_schema.key_column_usage", run: informationSchemaPrimaryKey("DATABASE()")}),
		{name: "show keys", run: mysqlShowPrimaryKey},
	}
}

func (mysqlDialect) IndexStrategies() []strategy[Index] {
	return []strategy[Index]{
		withNameVariants(strategy[Index]{name: "information_schema.statistics", run: mysqlInformationSchemaIndexes}),
		{name: "show index", run: mysqlShowIndexes},
	}
}

func (mysqlDialect) TableProperties(ctx context.Context, q queryer, table string) (string, string, error) {
	rows, err := q.QueryContext(ctx, "SHOW TABLE STATUS LIKE ?", table)
	if err != nil {
		return "", "", err
	}
	defer rows.Close()
	maps, err := scanRowMaps(rows)
	if err != nil {
		return "", "", err
	}
	// LIKE treats '_' as a wildcard, so pick the exact match.
	for _, m := range maps {
		if strings.EqualFold(m["name"].String, table) {
			return m["engine"].String, m["collation"].String, nil
		}
	}
	return "", "", nil
}

func (mysqlDialect) ListTablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`
}

func (mysqlDialect) TableExistsQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`
}

func (mysqlDialect) CanonicalType(col Column) canonicalType {
	if col.TypeName == "bit" {
		if col.Size <= 1 {
			return typeBoolean
		}
		return typeBlob
	}
	return mysqlSourceTypes[col.TypeName]
}

var mysqlTextVariants = map[string]bool{"tinytext": true, "text": true, "mediumtext": true, "longtext": true}
var mysqlBlobVariants = map[string]bool{"tinyblob": true, "blob": true, "mediumblob": true, "longblob": true}

func (mysqlDialect) MapType(ct canonicalType, col Column) string {
	unsigned := ""
	if col.Unsigned {
		unsigned = " UNSIGNED"
	}
	switch ct {
	case typeTinyInt:
		if col.Size == 1 {
			return "TINYINT(1)" + unsigned
		}
		return "TINYINT" + unsigned
	case typeSmallInt:
		return "SMALLINT" + unsigned
	case typeInteger:
		return "INT" + unsigned
	case typeBigInt:
		return "BIGINT" + unsigned
	case typeFloat:
		return "FLOAT"
	case typeDouble:
		return "DOUBLE"
	case typeDecimal:
		if col.Size > 0 {
			return sized("DECIMAL", min(col.Size, 65), min(col.Digits, 30))
		}
		return "DECIMAL(38,10)"
	case typeChar:
		if col.Size <= 0 || col.Size > 255 {
			return "CHAR(255)"
		}
		return sized("CHAR", col.Size, 0)
	case typeVarchar:
		switch {
		case col.Size <= 0:
			return "VARCHAR(255)"
		case col.Size > mysqlMaxVarchar:
			return "TEXT"
		}
		return sized("VARCHAR", col.Size, 0)
	case typeText:
		if mysqlTextVariants[col.TypeName] {
			return strings.ToUpper(col.TypeName)
		}
		return "TEXT"
	case typeBlob:
		if (col.TypeName == "binary" || col.TypeName == "varbinary") && col.Size > 0 {
			return sized(strings.ToUpper(col.TypeName), col.Size, 0)
		}
		if mysqlBlobVariants[col.TypeName] {
			return strings.ToUpper(col.TypeName)
		}
		return "BLOB"
	case typeDate:
		return "DATE"
	case typeTime:
		return "TIME"
	case typeTimestamp:
		return "DATETIME"
	case typeYear:
		return "YEAR"
	case typeBoolean:
		return "TINYINT(1)"
	case typeJSON:
		return "JSON"
	case typeEnum:
		if lower := strings.ToLower(col.ColumnType); strings.HasPrefix(lower, "enum(") || strings.HasPrefix(lower, "set(") {
			return col.ColumnType
		}
		return sized("VARCHAR", enumWidth(col), 0)
	default:
		return "VARCHAR(255)"
	}
}

var mysqlDefaultStyle = defaultStyle{boolTrue: "1", boolFalse: "0"}

func (mysqlDialect) QuoteDefault(def columnDefault, ct canonicalType, destType string) (string, bool) {
	// TEXT, BLOB and JSON columns cannot carry a literal default.
	base := parseTypeDecl(destType).base
	if def.kind == defaultLiteral && (mysqlTextVariants[base] || mysqlBlobVariants[base] || base == "json") {
		log.Warn().Str("default", def.value).Str("type", destType).Msg("literal default not supported for column type, dropping")
		return "", false
	}
	return renderDefault(def, ct, mysqlDefaultStyle)
}

func (mysqlDialect) AutoIncrementClause(string, canonicalType, bool) (string, bool) {
	return "AUTO_INCREMENT", false
}

var hexEscape = regexp.MustCompile(`\\[0-9a-fA-F]{4}`)

func (mysqlDialect) CommentClause(comment string) string {
	if comment == "" {
		return ""
	}
	return "COMMENT " + sqlStringLiteral(escapeComment(comment))
}

// escapeComment flattens control whitespace and strips \XXXX escapes that
// some drivers leave in column remarks.
func escapeComment(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	return hexEscape.ReplaceAllString(s, "")
}

func (mysqlDialect) TableOptions(t Table) string {
	engine := t.Engine
	if engine == "" {
		engine = "InnoDB"
	}
	charset := "utf8mb4"
	if i := strings.IndexByte(t.Collation, '_'); i > 0 {
		charset = t.Collation[:i]
	}
	opts := fmt.Sprintf("ENGINE=%s DEFAULT CHARSET=%s", engine, charset)
	if t.Collation != "" {
		opts += " COLLATE=" + t.Collation
	}
	return opts
}

func (mysqlDialect) IndexName(_, index string) string { return index }

// --- Introspection ---

func mysqlShowColumns(ctx context.Context, q queryer, d Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "SHOW FULL COLUMNS FROM "+d.QuoteIdentifier(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	maps, err := scanRowMaps(rows)
	if err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(maps))
	for _, m := range maps {
		td := parseTypeDecl(m["type"].String)
		col := Column{
			Name:          m["field"].String,
			TypeName:      td.base,
			ColumnType:    m["type"].String,
			Size:          td.size,
			Digits:        td.digits,
			Unsigned:      td.unsigned,
			Nullable:      strings.EqualFold(m["null"].String, "YES"),
			AutoIncrement: strings.Contains(strings.ToLower(m["extra"].String), "auto_increment"),
			Comment:       m["comment"].String,
			Collation:     m["collation"].String,
		}
		col.Default = mysqlColumnDefault(m["default"], m["extra"].String, col.Name)
		cols = append(cols, col)
	}
	return cols, nil
}

func mysqlInformationSchemaColumns(ctx context.Context, q queryer, _ Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		        COALESCE(CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, 0),
		        COALESCE(NUMERIC_SCALE, 0),
		        IS_NULLABLE, COLUMN_DEFAULT, EXTRA, COLUMN_COMMENT
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable, extra string
		var dflt sql.NullString
		if err := rows.Scan(
			&c.Name, &c.TypeName, &c.ColumnType,
			&c.Size, &c.Digits,
			&nullable, &dflt, &extra, &c.Comment,
		); err != nil {
			return nil, err
		}
		c.TypeName = strings.ToLower(c.TypeName)
		c.Unsigned = strings.Contains(strings.ToLower(c.ColumnType), "unsigned")
		c.Nullable = nullable == "YES"
		c.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if dflt.Valid {
			// MariaDB quotes literal defaults here.
			dflt.String = unquoteLiteral(dflt.String)
		}
		c.Default = mysqlColumnDefault(dflt, extra, c.Name)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// mysqlColumnDefault drops expression defaults (EXTRA DEFAULT_GENERATED)
// other than the timestamp functions, which cannot be carried as literals.
func mysqlColumnDefault(dflt sql.NullString, extra, column string) *string {
	if !dflt.Valid {
		return nil
	}
	v := dflt.String
	if strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED") && !isTimestampFunction(v) {
		log.Warn().Str("column", column).Str("default", v).Msg("skipping expression default")
		return nil
	}
	return &v
}

// informationSchemaPrimaryKey reads primary key columns from the ANSI
// metadata views. schemaExpr selects the current schema for the dialect.
func informationSchemaPrimaryKey(schemaExpr string) func(context.Context, queryer, Dialect, string) ([]string, error) {
	return func(ctx context.Context, q queryer, d Dialect, table string) ([]string, error) {
		query := `SELECT kcu.COLUMN_NAME
		 FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		 JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		   ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		  AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
		  AND kcu.TABLE_NAME = tc.TABLE_NAME
		 WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		   AND tc.TABLE_SCHEMA = ` + schemaExpr + `
		   AND tc.TABLE_NAME = ` + d.Placeholder(1) + `
		 ORDER BY kcu.ORDINAL_POSITION`
		return collectStringRows(ctx, q, query, table)
	}
}

func mysqlShowPrimaryKey(ctx context.Context, q queryer, d Dialect, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW KEYS FROM "+d.QuoteIdentifier(table)+" WHERE Key_name = 'PRIMARY'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	maps, err := scanRowMaps(rows)
	if err != nil {
		return nil, err
	}
	var cols []string
	for _, m := range maps {
		cols = append(cols, m["column_name"].String)
	}
	return cols, nil
}

func mysqlInformationSchemaIndexes(ctx context.Context, q queryer, _ Dialect, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, SUB_PART, INDEX_TYPE
		 FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := newIndexBuilder()
	for rows.Next() {
		var name string
		var column sql.NullString
		var nonUnique int
		var subPart sql.NullInt64
		var indexType string
		if err := rows.Scan(&name, &column, &nonUnique, &subPart, &indexType); err != nil {
			return nil, err
		}
		b.add(name, column, nonUnique == 0, subPart.Valid).Type = indexType
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.indexes(), nil
}

func mysqlShowIndexes(ctx context.Context, q queryer, d Dialect, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, "SHOW INDEX FROM "+d.QuoteIdentifier(table)+" WHERE Key_name <> 'PRIMARY'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	maps, err := scanRowMaps(rows)
	if err != nil {
		return nil, err
	}
	b := newIndexBuilder()
	for _, m := range maps {
		idx := b.add(m["key_name"].String, m["column_name"], m["non_unique"].String == "0", m["sub_part"].Valid)
		idx.Type = m["index_type"].String
	}
	return b.indexes(), nil
}
