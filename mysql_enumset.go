package main

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func parseMySQLEnumSetValues(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil, fmt.Errorf("invalid enum/set column_type %q", columnType)
	}

	inside := columnType[open+1 : close]
	var values []string
	i := 0
	for i < len(inside) {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',') {
			i++
		}
		if i >= len(inside) {
			break
		}
		if inside[i] != '\'' {
			return nil, fmt.Errorf("invalid enum/set value list in %q", columnType)
		}
		i++

		var b strings.Builder
		for i < len(inside) {
			c := inside[i]
			if c == '\\' {
				if i+1 >= len(inside) {
					return nil, fmt.Errorf("invalid escape in %q", columnType)
				}
				b.WriteByte(inside[i+1])
				i += 2
				continue
			}
			if c == '\'' {
				if i+1 < len(inside) && inside[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(c)
			i++
		}

		values = append(values, b.String())
	}

	return values, nil
}

// enumWidth sizes the VARCHAR that replaces an ENUM or SET column: the
// longest member for ENUM, all members joined by commas for SET.
func enumWidth(col Column) int64 {
	values, err := parseMySQLEnumSetValues(col.ColumnType)
	if err != nil {
		return 255
	}
	var width int64
	isSet := strings.HasPrefix(strings.ToLower(strings.TrimSpace(col.ColumnType)), "set(")
	for i, v := range values {
		n := int64(utf8.RuneCountInString(v))
		switch {
		case isSet && i > 0:
			width += n + 1
		case isSet:
			width += n
		default:
			width = max(width, n)
		}
	}
	return max(width, 1)
}
