package main

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestParseTypeDecl(t *testing.T) {
	tests := []struct {
		decl string
		want typeDecl
	}{
		{"int(10) unsigned", typeDecl{base: "int", size: 10, unsigned: true}},
		{"DECIMAL(10, 2)", typeDecl{base: "decimal", size: 10, digits: 2}},
		{"varchar(255)", typeDecl{base: "varchar", size: 255}},
		{"enum('a)','b')", typeDecl{base: "enum"}},
		{"double precision", typeDecl{base: "double precision"}},
		{"bigint unsigned zerofill", typeDecl{base: "bigint", unsigned: true}},
		{"character varying(64)", typeDecl{base: "character varying", size: 64}},
		{"", typeDecl{}},
	}
	for _, tt := range tests {
		if got := parseTypeDecl(tt.decl); got != tt.want {
			t.Errorf("parseTypeDecl(%q) = %+v, want %+v", tt.decl, got, tt.want)
		}
	}
}

func TestNameVariants(t *testing.T) {
	tests := []struct {
		table string
		want  []string
	}{
		{"nav_item", []string{"nav_item", "NAV_ITEM"}},
		{"Nav_Item", []string{"Nav_Item", "NAV_ITEM", "nav_item"}},
		{"X", []string{"X", "x"}},
	}
	for _, tt := range tests {
		if got := nameVariants(tt.table); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("nameVariants(%q) = %v, want %v", tt.table, got, tt.want)
		}
	}
}

func TestIntrospectTable_MySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery("SHOW FULL COLUMNS FROM `nav_item`").WillReturnRows(
		sqlmock.NewRows([]string{"Field", "Type", "Collation", "Null", "Key", "Default", "Extra", "Privileges", "Comment"}).
			AddRow("id", "int(11)", nil, "NO", "PRI", nil, "auto_increment", "select", "主键").
			AddRow("name", "varchar(100)", "utf8mb4_general_ci", "NO", "", "x", "", "select", "").
			AddRow("created", "datetime", nil, "YES", "", "CURRENT_TIMESTAMP", "DEFAULT_GENERATED", "select", "").
			AddRow("code", "varchar(36)", nil, "YES", "", "uuid()", "DEFAULT_GENERATED", "select", ""),
	)
	mock.ExpectQuery(`INFORMATION_SCHEMA\.TABLE_CONSTRAINTS`).WithArgs("nav_item").WillReturnRows(
		sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"),
	)
	mock.ExpectQuery(`INFORMATION_SCHEMA\.STATISTICS`).WithArgs("nav_item").WillReturnRows(
		sqlmock.NewRows([]string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE", "SUB_PART", "INDEX_TYPE"}).
			AddRow("ft_name", "name", 1, nil, "FULLTEXT").
			AddRow("idx_name_code", "name", 0, nil, "BTREE").
			AddRow("idx_name_code", "code", 0, nil, "BTREE").
			AddRow("idx_prefix", "name", 1, 10, "BTREE"),
	)
	mock.ExpectQuery("SHOW TABLE STATUS LIKE").WithArgs("nav_item").WillReturnRows(
		sqlmock.NewRows([]string{"Name", "Engine", "Collation"}).
			AddRow("nav_items", "MyISAM", "latin1_swedish_ci").
			AddRow("nav_item", "InnoDB", "utf8mb4_general_ci"),
	)

	table, err := introspectTable(context.Background(), db, mysqlDialect{}, "nav_item")
	if err != nil {
		t.Fatalf("introspectTable() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	if len(table.Columns) != 4 {
		t.Fatalf("columns = %d, want 4", len(table.Columns))
	}
	id := table.Columns[0]
	if !id.AutoIncrement || id.Nullable || id.TypeName != "int" || id.Size != 11 || id.Comment != "主键" {
		t.Errorf("id column = %+v", id)
	}
	if name := table.Columns[1]; name.Default == nil || *name.Default != "x" {
		t.Errorf("name default = %v, want x", deref(name.Default))
	}
	if created := table.Columns[2]; created.Default == nil || *created.Default != "CURRENT_TIMESTAMP" {
		t.Errorf("created default = %v, want CURRENT_TIMESTAMP", deref(created.Default))
	}
	if code := table.Columns[3]; code.Default != nil {
		t.Errorf("expression default should be skipped, got %q", *code.Default)
	}
	if !reflect.DeepEqual(table.PrimaryKey, []string{"id"}) {
		t.Errorf("PrimaryKey = %v", table.PrimaryKey)
	}

	wantIndexes := []Index{
		{Name: "ft_name", Columns: []string{"name"}, Type: "FULLTEXT"},
		{Name: "idx_name_code", Columns: []string{"name", "code"}, Unique: true, Type: "BTREE"},
		{Name: "idx_prefix", Columns: []string{"name"}, Type: "BTREE", HasPrefix: true},
	}
	if !reflect.DeepEqual(table.Indexes, wantIndexes) {
		t.Errorf("Indexes = %+v\nwant %+v", table.Indexes, wantIndexes)
	}
	if table.Engine != "InnoDB" || table.Collation != "utf8mb4_general_ci" {
		t.Errorf("properties = %s/%s, want exact-name match", table.Engine, table.Collation)
	}

	warnings := collectIndexCompatibilityWarnings(table)
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want fulltext and prefix", warnings)
	}
}

func TestColumnStrategies_FallBackThroughNameVariants(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	columns := []string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "LEN", "SCALE", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA", "COLUMN_COMMENT"}
	mock.ExpectQuery("SHOW FULL COLUMNS FROM `Nav_Item`").WillReturnError(errors.New("command denied"))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS`).WithArgs("Nav_Item").WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS`).WithArgs("NAV_ITEM").WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS`).WithArgs("nav_item").WillReturnRows(
		sqlmock.NewRows(columns).
			AddRow("id", "BIGINT", "bigint(20) unsigned", 20, 0, "NO", nil, "auto_increment", "").
			AddRow("title", "varchar", "varchar(64)", 64, 0, "YES", "'draft'", "", "标题"),
	)

	d := mysqlDialect{}
	cols, err := runStrategies(context.Background(), db, d, "Nav_Item", "column", d.ColumnStrategies())
	if err != nil {
		t.Fatalf("runStrategies() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 {
		t.Fatalf("columns = %d, want 2", len(cols))
	}
	if id := cols[0]; id.TypeName != "bigint" || !id.Unsigned || !id.AutoIncrement || id.Nullable {
		t.Errorf("id column = %+v", id)
	}
	if title := cols[1]; title.Default == nil || *title.Default != "draft" || title.Size != 64 {
		t.Errorf("title column = %+v default=%v", title, deref(title.Default))
	}
}

func TestIntrospectTable_StructureNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	columns := []string{"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "LEN", "SCALE", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA", "COLUMN_COMMENT"}
	mock.ExpectQuery("SHOW FULL COLUMNS FROM `ghost`").WillReturnError(errors.New("Table 'navi.ghost' doesn't exist"))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS`).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA\.COLUMNS`).WithArgs("GHOST").WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery("SELECT \\* FROM `ghost` WHERE 1=0").WillReturnError(errors.New("no table"))
	mock.ExpectQuery("SELECT \\* FROM `GHOST` WHERE 1=0").WillReturnError(errors.New("no table"))

	_, err = introspectTable(context.Background(), db, mysqlDialect{}, "ghost")
	var notFound *StructureNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want StructureNotFoundError", err)
	}
	if notFound.Table != "ghost" {
		t.Errorf("Table = %q, want ghost", notFound.Table)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIndexBuilder_ExpressionKeyParts(t *testing.T) {
	b := newIndexBuilder()
	b.add("idx_lower", nullString(""), false, false)
	b.add("idx_a", nullString("a"), true, false)
	b.add("idx_a", nullString("b"), true, false)

	got := b.indexes()
	if len(got) != 2 || got[0].Name != "idx_lower" || got[1].Name != "idx_a" {
		t.Fatalf("indexes = %+v, want discovery order", got)
	}
	if !got[0].HasExpression || len(got[0].Columns) != 0 {
		t.Errorf("idx_lower = %+v, want expression index", got[0])
	}
	if !reflect.DeepEqual(got[1].Columns, []string{"a", "b"}) || !got[1].Unique {
		t.Errorf("idx_a = %+v", got[1])
	}
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
