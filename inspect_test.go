package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestIsSystemTable(t *testing.T) {
	for _, name := range []string{"sqlite_sequence", "pg_stat", "information_schema_tables", "mysql", "performance_schema"} {
		if !isSystemTable(name) {
			t.Errorf("isSystemTable(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"nav_item", "backup_config", "category", "system_config", "SYSTEM_CONFIG"} {
		if isSystemTable(name) {
			t.Errorf("isSystemTable(%q) = true, want false", name)
		}
	}
}

func TestEngineInspection_SQLite(t *testing.T) {
	ctx := context.Background()
	desc := sqliteFixture(t, "live",
		`CREATE TABLE nav_item (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT)`,
		`CREATE TABLE category (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE system_config (config_key TEXT PRIMARY KEY, config_value TEXT)`,
		`CREATE TABLE system_audit (id INTEGER)`,
		`INSERT INTO nav_item (title) VALUES ('a'), ('b')`,
	)
	e := NewEngine()

	if !e.TestConnection(ctx, desc) {
		t.Fatal("TestConnection() = false")
	}
	if e.TestConnection(ctx, ConnectionDescriptor{URL: ":memory:", Driver: "sqlite"}) {
		t.Error("TestConnection() accepted an in-memory database")
	}

	names, err := e.ListTableNames(ctx, desc)
	if err != nil {
		t.Fatalf("ListTableNames() error: %v", err)
	}
	if want := []string{"category", "nav_item", "system_config"}; !reflect.DeepEqual(names, want) {
		t.Errorf("ListTableNames() = %v, want %v", names, want)
	}

	n, err := e.TableRowCount(ctx, desc, "nav_item")
	if err != nil || n != 2 {
		t.Errorf("TableRowCount() = %d, %v; want 2", n, err)
	}
	_, err = e.TableRowCount(ctx, desc, "ghost")
	var notFound *StructureNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("TableRowCount(ghost) err = %v, want StructureNotFoundError", err)
	}

	for table, want := range map[string]bool{"category": true, "ghost": false} {
		got, err := e.TableExists(ctx, desc, table)
		if err != nil || got != want {
			t.Errorf("TableExists(%s) = %t, %v; want %t", table, got, err, want)
		}
	}

	table, d, err := e.DescribeTable(ctx, desc, "nav_item")
	if err != nil {
		t.Fatalf("DescribeTable() error: %v", err)
	}
	if d.Name() != "SQLite" || len(table.Columns) != 2 || !table.Columns[0].AutoIncrement {
		t.Errorf("DescribeTable() = %+v (%s)", table, d.Name())
	}
}
