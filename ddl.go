package main

import (
	"fmt"
	"strings"
)

// generateCreateTable renders t, introspected through src, as a CREATE TABLE
// statement for dst named name. name differs from t.Name when building a
// shadow table.
func generateCreateTable(src, dst Dialect, t *Table, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", dst.QuoteIdentifier(name))

	inlinePK := false
	defs := make([]string, 0, len(t.Columns)+1)
	for _, col := range t.Columns {
		def, inline := columnDefinition(src, dst, t, col)
		inlinePK = inlinePK || inline
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 && !inlinePK {
		defs = append(defs, "PRIMARY KEY ("+quotedColumnList(dst, t.PrimaryKey)+")")
	}

	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")

	if opts := dst.TableOptions(*t); opts != "" {
		b.WriteByte(' ')
		b.WriteString(opts)
	}
	return b.String()
}

// columnDefinition renders "name TYPE [NOT NULL] [AUTO] [DEFAULT v] [COMMENT c]".
// inlinePK reports that the auto-increment clause declared the primary key.
func columnDefinition(src, dst Dialect, t *Table, col Column) (string, bool) {
	destType, ct := translateType(src, dst, col)

	var b strings.Builder
	b.WriteString(dst.QuoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(destType)

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}

	inlinePK := false
	if col.AutoIncrement {
		soleKey := len(t.PrimaryKey) == 1 && strings.EqualFold(t.PrimaryKey[0], col.Name)
		var clause string
		clause, inlinePK = dst.AutoIncrementClause(destType, ct, soleKey)
		if clause != "" {
			b.WriteByte(' ')
			b.WriteString(clause)
		}
	} else if expr, ok := dst.QuoteDefault(normalizeDefault(col.Default, ct), ct, destType); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(expr)
	}

	if comment := dst.CommentClause(col.Comment); comment != "" {
		b.WriteByte(' ')
		b.WriteString(comment)
	}
	return b.String(), inlinePK
}

// generateCreateIndex renders one secondary index of table for dst.
func generateCreateIndex(dst Dialect, table string, idx Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique,
		dst.QuoteIdentifier(dst.IndexName(table, idx.Name)),
		dst.QuoteIdentifier(table),
		quotedColumnList(dst, idx.Columns),
	)
}

func dropTableSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdentifier(table)
}
