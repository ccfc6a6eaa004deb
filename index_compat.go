package main

import (
	"fmt"
	"strings"
)

// indexUnsupportedReason reports indexes that cannot be rebuilt from a plain
// column list on the destination.
func indexUnsupportedReason(idx Index) (string, bool) {
	if idx.HasExpression {
		return "expression or partial index key-parts are not supported", true
	}
	if idx.HasPrefix {
		return "prefix indexes (SUB_PART) are not supported", true
	}
	switch strings.ToUpper(idx.Type) {
	case "", "BTREE", "HASH":
	default:
		return fmt.Sprintf("index type %q is not supported", idx.Type), true
	}
	if len(idx.Columns) == 0 {
		return "index has no plain column key-parts", true
	}
	return "", false
}

// collectIndexCompatibilityWarnings lists the indexes of t that a transfer
// will skip.
func collectIndexCompatibilityWarnings(t *Table) []string {
	var warnings []string
	for _, idx := range t.Indexes {
		if reason, unsupported := indexUnsupportedReason(idx); unsupported {
			warnings = append(warnings, fmt.Sprintf("%s.%s: %s", t.Name, idx.Name, reason))
		}
	}
	return warnings
}

// quotedColumnList joins column names quoted for d.
func quotedColumnList(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
