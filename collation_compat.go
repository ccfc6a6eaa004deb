package main

import (
	"fmt"
	"sort"
	"strings"
)

// collectCollationWarnings reports MySQL case-insensitive (_ci) collations in
// t that dst does not reproduce. Columns are created with dst's default
// collation, so comparisons and unique keys on them become case-sensitive.
func collectCollationWarnings(t *Table, dst Dialect) []string {
	if _, ok := dst.(mysqlDialect); ok {
		return nil
	}

	keyCols := make(map[string]bool)
	for _, c := range t.PrimaryKey {
		keyCols[strings.ToLower(c)] = true
	}
	for _, idx := range t.Indexes {
		if idx.Unique {
			for _, c := range idx.Columns {
				keyCols[strings.ToLower(c)] = true
			}
		}
	}

	ciCounts := make(map[string]int)
	ciKeyRefs := make(map[string][]string)
	for _, col := range t.Columns {
		coll := col.Collation
		if coll == "" && isTextLike(col) {
			coll = t.Collation
		}
		if !strings.HasSuffix(strings.ToLower(coll), "_ci") {
			continue
		}
		ciCounts[coll]++
		if keyCols[strings.ToLower(col.Name)] {
			ciKeyRefs[coll] = append(ciKeyRefs[coll], t.Name+"."+col.Name)
		}
	}

	var warnings []string
	for _, coll := range sortedKeys(ciCounts) {
		warnings = append(warnings, fmt.Sprintf(
			"%s: %d column(s) use %s (case-insensitive); %s comparisons are case-sensitive by default",
			t.Name, ciCounts[coll], coll, dst.Name()))
	}
	for _, coll := range sortedKeys(ciKeyRefs) {
		warnings = append(warnings, fmt.Sprintf(
			"%s: unique key on %s column(s), rows differing only in case no longer collide: %s",
			t.Name, coll, strings.Join(ciKeyRefs[coll], ", ")))
	}
	return warnings
}

// isTextLike reports whether a MySQL column holds character data.
func isTextLike(col Column) bool {
	switch (mysqlDialect{}).CanonicalType(col) {
	case typeChar, typeVarchar, typeText, typeEnum:
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
