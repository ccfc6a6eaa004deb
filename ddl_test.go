package main

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func navItemTable() *Table {
	return &Table{
		Name: "nav_item",
		Columns: []Column{
			{Name: "id", TypeName: "int", ColumnType: "int(11)", Size: 11, AutoIncrement: true, Comment: "主键"},
			{Name: "name", TypeName: "varchar", ColumnType: "varchar(100)", Size: 100, Default: strPtr("x")},
			{Name: "created", TypeName: "datetime", ColumnType: "datetime", Nullable: true, Default: strPtr("CURRENT_TIMESTAMP")},
		},
		PrimaryKey: []string{"id"},
		Engine:     "InnoDB",
		Collation:  "utf8mb4_general_ci",
	}
}

func TestGenerateCreateTable(t *testing.T) {
	tests := []struct {
		name string
		dst  Dialect
		want string
	}{
		{
			name: "mysql",
			dst:  mysqlDialect{},
			want: "CREATE TABLE `nav_item` (\n" +
				"  `id` INT NOT NULL AUTO_INCREMENT COMMENT '主键',\n" +
				"  `name` VARCHAR(100) NOT NULL DEFAULT 'x',\n" +
				"  `created` DATETIME DEFAULT CURRENT_TIMESTAMP,\n" +
				"  PRIMARY KEY (`id`)\n" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci",
		},
		{
			name: "sqlite declares the key inline",
			dst:  sqliteDialect{},
			want: "CREATE TABLE \"nav_item\" (\n" +
				"  \"id\" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,\n" +
				"  \"name\" VARCHAR(100) NOT NULL DEFAULT 'x',\n" +
				"  \"created\" DATETIME DEFAULT CURRENT_TIMESTAMP\n" +
				")",
		},
		{
			name: "postgres identity",
			dst:  postgresDialect{},
			want: "CREATE TABLE \"nav_item\" (\n" +
				"  \"id\" INTEGER NOT NULL GENERATED BY DEFAULT AS IDENTITY,\n" +
				"  \"name\" VARCHAR(100) NOT NULL DEFAULT 'x',\n" +
				"  \"created\" TIMESTAMP DEFAULT CURRENT_TIMESTAMP,\n" +
				"  PRIMARY KEY (\"id\")\n" +
				")",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateCreateTable(mysqlDialect{}, tt.dst, navItemTable(), "nav_item")
			if got != tt.want {
				t.Errorf("generateCreateTable() =\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestGenerateCreateTable_ShadowName(t *testing.T) {
	ddl := generateCreateTable(mysqlDialect{}, mysqlDialect{}, navItemTable(), "nav_item"+shadowSuffix)
	if !strings.HasPrefix(ddl, "CREATE TABLE `nav_item"+shadowSuffix+"` (") {
		t.Errorf("shadow DDL should use the shadow name, got:\n%s", ddl)
	}
}

func TestGenerateCreateTable_CompositeKeyIsNotInlined(t *testing.T) {
	table := &Table{
		Name: "pairs",
		Columns: []Column{
			{Name: "a", TypeName: "integer", AutoIncrement: true},
			{Name: "b", TypeName: "integer"},
		},
		PrimaryKey: []string{"a", "b"},
	}
	ddl := generateCreateTable(sqliteDialect{}, sqliteDialect{}, table, "pairs")
	if strings.Contains(ddl, "AUTOINCREMENT") {
		t.Errorf("AUTOINCREMENT is only valid on a sole key, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `PRIMARY KEY ("a", "b")`) {
		t.Errorf("composite key clause missing, got:\n%s", ddl)
	}
}

func TestColumnDefinition_Defaults(t *testing.T) {
	table := &Table{Name: "t"}
	tests := []struct {
		name string
		src  Dialect
		dst  Dialect
		col  Column
		want string
	}{
		{
			name: "text literal dropped on mysql",
			src:  mysqlDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "body", TypeName: "text", Nullable: true, Default: strPtr("abc")},
			want: "`body` TEXT",
		},
		{
			name: "json literal dropped on mysql",
			src:  postgresDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "doc", TypeName: "jsonb", Nullable: true, Default: strPtr("{}")},
			want: "`doc` JSON",
		},
		{
			name: "text literal kept on postgres",
			src:  mysqlDialect{},
			dst:  postgresDialect{},
			col:  Column{Name: "body", TypeName: "text", Nullable: true, Default: strPtr("abc")},
			want: `"body" TEXT DEFAULT 'abc'`,
		},
		{
			name: "postgres boolean to mysql",
			src:  postgresDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "enabled", TypeName: "boolean", Default: strPtr("true")},
			want: "`enabled` TINYINT(1) NOT NULL DEFAULT 1",
		},
		{
			name: "mysql bit to postgres boolean",
			src:  mysqlDialect{},
			dst:  postgresDialect{},
			col:  Column{Name: "flag", TypeName: "bit", Size: 1, Default: strPtr("b'0'")},
			want: `"flag" BOOLEAN NOT NULL DEFAULT FALSE`,
		},
		{
			name: "now() canonicalized",
			src:  postgresDialect{},
			dst:  sqliteDialect{},
			col:  Column{Name: "at", TypeName: "timestamp", Nullable: true, Default: strPtr("now()")},
			want: `"at" DATETIME DEFAULT CURRENT_TIMESTAMP`,
		},
		{
			name: "quotes are doubled",
			src:  mysqlDialect{},
			dst:  sqliteDialect{},
			col:  Column{Name: "s", TypeName: "varchar", Size: 10, Nullable: true, Default: strPtr("it's")},
			want: `"s" VARCHAR(10) DEFAULT 'it''s'`,
		},
		{
			name: "empty string default kept for strings",
			src:  mysqlDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "s", TypeName: "varchar", Size: 10, Default: strPtr("")},
			want: "`s` VARCHAR(10) NOT NULL DEFAULT ''",
		},
		{
			name: "empty numeric default dropped",
			src:  mysqlDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "n", TypeName: "int", Nullable: true, Default: strPtr("")},
			want: "`n` INT",
		},
		{
			name: "backslash default dropped",
			src:  mysqlDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "p", TypeName: "varchar", Size: 20, Nullable: true, Default: strPtr(`C:\temp`)},
			want: "`p` VARCHAR(20)",
		},
		{
			name: "auto increment suppresses default",
			src:  postgresDialect{},
			dst:  mysqlDialect{},
			col:  Column{Name: "id", TypeName: "bigint", AutoIncrement: true, Default: strPtr("nextval('t_id_seq')")},
			want: "`id` BIGINT NOT NULL AUTO_INCREMENT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := columnDefinition(tt.src, tt.dst, table, tt.col)
			if got != tt.want {
				t.Errorf("columnDefinition() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColumnDefinition_CommentEscaping(t *testing.T) {
	col := Column{Name: "c", TypeName: "varchar", Size: 5, Nullable: true, Comment: "line1\nit's"}
	got, _ := columnDefinition(mysqlDialect{}, mysqlDialect{}, &Table{Name: "t"}, col)
	want := "`c` VARCHAR(5) COMMENT 'line1 it''s'"
	if got != want {
		t.Errorf("columnDefinition() = %q, want %q", got, want)
	}
}

func TestGenerateCreateIndex(t *testing.T) {
	idx := Index{Name: "idx_url", Columns: []string{"url"}, Unique: true}
	tests := []struct {
		dst  Dialect
		want string
	}{
		{mysqlDialect{}, "CREATE UNIQUE INDEX `idx_url` ON `backup_config` (`url`)"},
		{sqliteDialect{}, `CREATE UNIQUE INDEX "backup_config_idx_url" ON "backup_config" ("url")`},
		{postgresDialect{}, `CREATE UNIQUE INDEX "backup_config_idx_url" ON "backup_config" ("url")`},
	}
	for _, tt := range tests {
		t.Run(tt.dst.Name(), func(t *testing.T) {
			if got := generateCreateIndex(tt.dst, "backup_config", idx); got != tt.want {
				t.Errorf("generateCreateIndex() = %q, want %q", got, tt.want)
			}
		})
	}

	composite := Index{Name: "nav_item_cat_sort", Columns: []string{"category_id", "sort"}}
	got := generateCreateIndex(sqliteDialect{}, "nav_item", composite)
	want := `CREATE INDEX "nav_item_cat_sort" ON "nav_item" ("category_id", "sort")`
	if got != want {
		t.Errorf("already-prefixed index = %q, want %q", got, want)
	}
}

func TestDropTableSQL(t *testing.T) {
	if got := dropTableSQL(mysqlDialect{}, "a`b"); got != "DROP TABLE IF EXISTS `a``b`" {
		t.Errorf("dropTableSQL() = %q", got)
	}
}
