package main

import "strings"

// ConnectionDescriptor identifies one side of a transfer. Values are built per
// call and never pooled or cached.
type ConnectionDescriptor struct {
	Tag      string `toml:"-" koanf:"tag"`
	URL      string `toml:"url" koanf:"url" validate:"required"`
	Username string `toml:"username" koanf:"username"`
	Password string `toml:"password" koanf:"password"`
	Driver   string `toml:"driver" koanf:"driver" validate:"required,dialect"`
}

// Column describes one source column as introspected. Default holds the bare
// literal or function name after the source dialect unwrapped its own quoting;
// nil means the column has no default.
type Column struct {
	Name          string
	TypeName      string // lower-cased base type, e.g. "varchar", "int", "timestamp"
	ColumnType    string // full declaration, e.g. "enum('a','b')", "int(10) unsigned"
	Size          int64
	Digits        int64
	Unsigned      bool
	Nullable      bool
	Default       *string
	AutoIncrement bool
	Comment       string
	Collation     string // MySQL only; empty for non-text columns
}

// Index is a secondary index. Columns are ordered by key position.
type Index struct {
	Name          string
	Columns       []string
	Unique        bool
	Type          string // MySQL INDEX_TYPE (BTREE, HASH, FULLTEXT, SPATIAL); empty elsewhere
	HasExpression bool // expression or partial key-parts, not representable as a column list
	HasPrefix     bool // MySQL prefix index (SUB_PART)
}

// Table is the dialect-neutral description of one table, built once per
// transfer and discarded afterwards.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    []Index // non-primary indexes, in discovery order
	Engine     string  // MySQL only
	Collation  string  // MySQL only
}

// column looks up a column by name, ignoring case.
func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// autoIncrementNames returns the lower-cased names of auto-increment columns.
func (t *Table) autoIncrementNames() map[string]bool {
	out := make(map[string]bool)
	for _, c := range t.Columns {
		if c.AutoIncrement {
			out[strings.ToLower(c.Name)] = true
		}
	}
	return out
}
