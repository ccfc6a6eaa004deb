package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "SQLite" }

func (sqliteDialect) OpenDB(desc ConnectionDescriptor) (*sql.DB, error) {
	uri, err := sqliteURI(desc.URL)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (sqliteDialect) QuoteIdentifier(name string) string { return quoteWith(name, `"`) }
func (sqliteDialect) Placeholder(int) string             { return "?" }
func (sqliteDialect) MaxBindParams() int                 { return 32766 }
func (sqliteDialect) TransactionalDDL() bool             { return true }

// TxOptions is nil: SQLite transactions are always serializable.
func (sqliteDialect) TxOptions() *sql.TxOptions { return nil }

// sqliteURI turns a path, file: URI or jdbc:sqlite: URL into a file: URI with
// a busy timeout. In-memory databases are rejected because every sql.Open
// gets a separate one.
func sqliteURI(dsn string) (string, error) {
	dsn = strings.TrimPrefix(strings.TrimSpace(dsn), "jdbc:sqlite:")
	if dsn == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}
	if dsn == ":memory:" || dsn == "file::memory:" || strings.Contains(dsn, "mode=memory") {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each connection gets a separate DB)")
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	if !q.Has("_pragma") {
		q.Add("_pragma", "busy_timeout(5000)")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (sqliteDialect) ColumnStrategies() []strategy[Column] {
	return []strategy[Column]{
		{name: "pragma table_xinfo", run: sqlitePragmaColumns},
		withNameVariants(strategy[Column]{name: "pragma_table_info", run: sqliteTableInfoColumns}),
		withNameVariants(strategy[Column]{name: "result set metadata", run: resultSetColumns}),
	}
}

func (sqliteDialect) PrimaryKeyStrategies() []strategy[string] {
	return []strategy[string]{
		withNameVariants(strategy[string]{name: "pragma_table_info pk", run: sqliteTableInfoPrimaryKey}),
		{name: "pragma table_info", run: sqlitePragmaPrimaryKey},
	}
}

func (sqliteDialect) IndexStrategies() []strategy[Index] {
	return []strategy[Index]{
		withNameVariants(strategy[Index]{name: "pragma_index_list", run: sqliteIndexListJoin}),
		{name: "pragma index_list", run: sqlitePragmaIndexes},
	}
}

func (sqliteDialect) TableProperties(context.Context, queryer, string) (string, string, error) {
	return "", "", nil
}

func (sqliteDialect) ListTablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (sqliteDialect) TableExistsQuery() string {
	return "SELECT name FROM sqlite_master WHERE type='table' AND name = ?"
}

// CanonicalType applies the declared-type table first and SQLite's affinity
// rules second. Names that only fall into NUMERIC affinity by default, such
// as uuid or money, are unknown and get the destination's text fallback.
func (sqliteDialect) CanonicalType(col Column) canonicalType {
	if ct, ok := sqliteSourceTypes[col.TypeName]; ok {
		return ct
	}
	t := strings.ToUpper(col.TypeName)
	switch {
	case t == "":
		return typeBlob
	case strings.Contains(t, "INT"):
		return typeBigInt
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		if col.Size > 0 {
			return typeVarchar
		}
		return typeText
	case strings.Contains(t, "BLOB"):
		return typeBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return typeDouble
	case strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return typeDecimal
	}
	// NUMERIC affinity keeps non-numeric text as text.
	return typeUnknown
}

func (sqliteDialect) MapType(ct canonicalType, col Column) string {
	switch ct {
	case typeTinyInt, typeSmallInt, typeInteger, typeBigInt, typeYear:
		return "INTEGER"
	case typeFloat, typeDouble:
		return "REAL"
	case typeDecimal:
		if col.Size > 0 {
			return sized("NUMERIC", col.Size, col.Digits)
		}
		return "NUMERIC"
	case typeChar, typeVarchar:
		if col.Size > 0 {
			return sized("VARCHAR", col.Size, 0)
		}
		return "TEXT"
	case typeBlob:
		return "BLOB"
	case typeDate:
		return "DATE"
	case typeTime:
		return "TIME"
	case typeTimestamp:
		return "DATETIME"
	case typeBoolean:
		return "BOOLEAN"
	case typeEnum:
		return sized("VARCHAR", enumWidth(col), 0)
	default:
		return "TEXT"
	}
}

var sqliteDefaultStyle = defaultStyle{boolTrue: "TRUE", boolFalse: "FALSE"}

func (sqliteDialect) QuoteDefault(def columnDefault, ct canonicalType, _ string) (string, bool) {
	return renderDefault(def, ct, sqliteDefaultStyle)
}

// AutoIncrementClause declares the key inline: SQLite only accepts
// AUTOINCREMENT on a column that is the sole INTEGER PRIMARY KEY.
func (sqliteDialect) AutoIncrementClause(destType string, _ canonicalType, soleKey bool) (string, bool) {
	if soleKey && destType == "INTEGER" {
		return "PRIMARY KEY AUTOINCREMENT", true
	}
	return "", false
}

func (sqliteDialect) CommentClause(string) string { return "" }
func (sqliteDialect) TableOptions(Table) string   { return "" }

func (sqliteDialect) IndexName(table, index string) string { return tableScopedIndexName(table, index) }

// --- Introspection ---

func sqlitePragmaColumns(ctx context.Context, q queryer, d Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_xinfo("+d.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	pkCount := 0
	for rows.Next() {
		var cid, notnull, pk, hidden int
		var name, declType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notnull, &dflt, &pk, &hidden); err != nil {
			return nil, err
		}
		// Generated columns cannot be inserted into.
		if hidden == 2 || hidden == 3 {
			log.Warn().Str("table", table).Str("column", name).Msg("skipping generated column")
			continue
		}
		if pk > 0 {
			pkCount++
		}
		cols = append(cols, sqliteColumn(name, declType, notnull != 0, dflt))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	if pkCount == 1 {
		autoCols, err := sqliteAutoIncrementColumns(ctx, q, table)
		if err != nil {
			return nil, err
		}
		for i := range cols {
			if autoCols[strings.ToLower(cols[i].Name)] {
				cols[i].AutoIncrement = true
			}
		}
	}
	return cols, nil
}

func sqliteTableInfoColumns(ctx context.Context, q queryer, _ Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, declType string
		var notnull int
		var dflt sql.NullString
		if err := rows.Scan(&name, &declType, &notnull, &dflt); err != nil {
			return nil, err
		}
		cols = append(cols, sqliteColumn(name, declType, notnull != 0, dflt))
	}
	return cols, rows.Err()
}

func sqliteColumn(name, declType string, notNull bool, dflt sql.NullString) Column {
	td := parseTypeDecl(declType)
	col := Column{
		Name:       name,
		TypeName:   td.base,
		ColumnType: strings.ToLower(declType),
		Size:       td.size,
		Digits:     td.digits,
		Unsigned:   td.unsigned,
		Nullable:   !notNull,
	}
	if dflt.Valid {
		col.Default = sqliteColumnDefault(name, dflt.String)
	}
	return col
}

// sqliteColumnDefault unwraps dflt_value, which PRAGMA reports as SQL text.
// Expression defaults such as (datetime('now')) are skipped.
func sqliteColumnDefault(column, raw string) *string {
	v := strings.TrimSpace(raw)
	upper := strings.ToUpper(v)
	switch {
	case upper == "NULL":
		return nil
	case isTimestampFunction(v), upper == "TRUE", upper == "FALSE", isNumericLiteral(v):
		return &v
	case strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") && len(v) >= 2:
		s := unquoteLiteral(v)
		return &s
	}
	log.Warn().Str("column", column).Str("default", v).Msg("skipping expression default")
	return nil
}

// sqliteAutoIncrementColumns finds the column declared AUTOINCREMENT in the
// table's CREATE statement. Only an explicit AUTOINCREMENT counts: a plain
// INTEGER PRIMARY KEY keeps its values when copied.
func sqliteAutoIncrementColumns(ctx context.Context, q queryer, tableName string) (map[string]bool, error) {
	result := make(map[string]bool)
	var createSQL sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type='table' AND name = ?", tableName,
	).Scan(&createSQL)
	if err == sql.ErrNoRows || (err == nil && !createSQL.Valid) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(createSQL.String)
	idx := strings.Index(upper, "AUTOINCREMENT")
	if idx <= 0 {
		return result, nil
	}
	tokens := strings.Fields(createSQL.String[:idx])
	// Walk back over "INTEGER PRIMARY KEY" to the column name.
	for i := len(tokens) - 1; i >= 0; i-- {
		switch strings.ToUpper(tokens[i]) {
		case "INTEGER", "PRIMARY", "KEY", "NOT", "NULL":
			continue
		}
		name := strings.Trim(tokens[i], ",(\n\r\t \"`[]")
		if name != "" {
			result[strings.ToLower(name)] = true
		}
		break
	}
	return result, nil
}

func sqliteTableInfoPrimaryKey(ctx context.Context, q queryer, _ Dialect, table string) ([]string, error) {
	return collectStringRows(ctx, q, "SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk", table)
}

func sqlitePragmaPrimaryKey(ctx context.Context, q queryer, d Dialect, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+d.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		pos  int
	}
	var pks []pkCol
	for rows.Next() {
		var cid, notnull, pk int
		var name, declType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pks = append(pks, pkCol{name, pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(pks))
	for _, p := range pks {
		if p.pos-1 < len(out) {
			out[p.pos-1] = p.name
		}
	}
	return out, nil
}

func sqliteIndexListJoin(ctx context.Context, q queryer, _ Dialect, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT il.name, il."unique", il.partial, ii.name
		 FROM pragma_index_list(?) AS il, pragma_index_info(il.name) AS ii
		 WHERE il.origin <> 'pk'
		 ORDER BY il.seq, ii.seqno`,
		table,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := newIndexBuilder()
	for rows.Next() {
		var name string
		var unique, partial int
		var column sql.NullString
		if err := rows.Scan(&name, &unique, &partial, &column); err != nil {
			return nil, err
		}
		if partial != 0 {
			column = sql.NullString{}
		}
		b.add(name, column, unique != 0, false)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.indexes(), nil
}

func sqlitePragmaIndexes(ctx context.Context, q queryer, d Dialect, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA index_list("+d.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	type listed struct {
		name    string
		unique  bool
		partial bool
	}
	var list []listed
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		list = append(list, listed{name, unique != 0, partial != 0})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	b := newIndexBuilder()
	for _, l := range list {
		info, err := q.QueryContext(ctx, "PRAGMA index_info("+d.QuoteIdentifier(l.name)+")")
		if err != nil {
			return nil, err
		}
		for info.Next() {
			var seqno, cid int
			var column sql.NullString
			if err := info.Scan(&seqno, &cid, &column); err != nil {
				info.Close()
				return nil, err
			}
			if l.partial {
				column = sql.NullString{}
			}
			b.add(l.name, column, l.unique, false)
		}
		info.Close()
		if err := info.Err(); err != nil {
			return nil, err
		}
	}
	return b.indexes(), nil
}
