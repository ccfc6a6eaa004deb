package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// strategy is one introspection path. Dialects return ordered lists of them
// and runStrategies stops at the first one that yields rows.
type strategy[T any] struct {
	name string
	run  func(ctx context.Context, q queryer, d Dialect, table string) ([]T, error)
}

// runStrategies tries each strategy in order. Errors are collected but only
// returned when no strategy produced a non-empty result.
func runStrategies[T any](ctx context.Context, q queryer, d Dialect, table, kind string, strategies []strategy[T]) ([]T, error) {
	var errs []error
	for _, s := range strategies {
		out, err := s.run(ctx, q, d, table)
		if err != nil {
			log.Debug().Err(err).Str("table", table).Str("strategy", s.name).Msgf("%s introspection failed", kind)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		if len(out) > 0 {
			log.Debug().Str("table", table).Str("strategy", s.name).Int("found", len(out)).Msgf("%s introspected", kind)
			return out, nil
		}
	}
	return nil, errors.Join(errs...)
}

// withNameVariants retries a strategy with the table name as given, then
// upper-cased, then lower-cased. Dialects disagree on identifier case folding.
func withNameVariants[T any](s strategy[T]) strategy[T] {
	return strategy[T]{
		name: s.name,
		run: func(ctx context.Context, q queryer, d Dialect, table string) ([]T, error) {
			var lastErr error
			for _, name := range nameVariants(table) {
				out, err := s.run(ctx, q, d, name)
				if err != nil {
					lastErr = err
					continue
				}
				if len(out) > 0 {
					return out, nil
				}
			}
			return nil, lastErr
		},
	}
}

// nameVariants returns table, TABLE and table without duplicates.
func nameVariants(table string) []string {
	variants := []string{table}
	for _, v := range []string{strings.ToUpper(table), strings.ToLower(table)} {
		dup := false
		for _, seen := range variants {
			if seen == v {
				dup = true
				break
			}
		}
		if !dup {
			variants = append(variants, v)
		}
	}
	return variants
}

// introspectTable builds the Table for one source table. Only a missing
// column list is fatal; key, index and property lookups degrade to empty.
func introspectTable(ctx context.Context, q queryer, d Dialect, table string) (*Table, error) {
	cols, err := runStrategies(ctx, q, d, table, "column", d.ColumnStrategies())
	if len(cols) == 0 {
		return nil, &StructureNotFoundError{Table: table, Err: err}
	}
	t := &Table{Name: table, Columns: cols}

	pk, err := runStrategies(ctx, q, d, table, "primary key", d.PrimaryKeyStrategies())
	if err != nil && len(pk) == 0 {
		log.Warn().Err(err).Str("table", table).Msg("primary key introspection failed")
	}
	t.PrimaryKey = pk

	indexes, err := runStrategies(ctx, q, d, table, "index", d.IndexStrategies())
	if err != nil && len(indexes) == 0 {
		log.Warn().Err(err).Str("table", table).Msg("index introspection failed")
	}
	for _, idx := range indexes {
		if strings.EqualFold(idx.Name, "PRIMARY") {
			continue
		}
		t.Indexes = append(t.Indexes, idx)
	}

	engine, collation, err := d.TableProperties(ctx, q, table)
	if err != nil {
		log.Warn().Err(err).Str("table", table).Msg("table properties lookup failed")
	}
	t.Engine = engine
	t.Collation = collation

	return t, nil
}

// resultSetColumns reads column metadata from an empty result set. It is the
// last resort for every dialect: defaults and auto-increment are unknown.
func resultSetColumns(ctx context.Context, q queryer, d Dialect, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+d.QuoteIdentifier(table)+" WHERE 1=0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(types))
	for _, ct := range types {
		td := parseTypeDecl(ct.DatabaseTypeName())
		col := Column{
			Name:       ct.Name(),
			TypeName:   td.base,
			ColumnType: strings.ToLower(ct.DatabaseTypeName()),
			Size:       td.size,
			Digits:     td.digits,
			Unsigned:   td.unsigned,
			Nullable:   true,
		}
		if n, ok := ct.Length(); ok && n > 0 && n < math.MaxInt32 {
			col.Size = n
		}
		if p, s, ok := ct.DecimalSize(); ok {
			col.Size, col.Digits = p, s
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// typeDecl is a parsed column type declaration such as "decimal(10,2)" or
// "int(10) unsigned".
type typeDecl struct {
	base     string
	size     int64
	digits   int64
	unsigned bool
}

func parseTypeDecl(decl string) typeDecl {
	s := strings.ToLower(strings.TrimSpace(decl))
	var td typeDecl

	if open := strings.IndexByte(s, '('); open >= 0 {
		if close := closingParen(s, open); close > open {
			params := s[open+1 : close]
			s = s[:open] + " " + s[close+1:]
			parts := strings.Split(params, ",")
			if n, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64); err == nil {
				td.size = n
			}
			if len(parts) > 1 {
				if n, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil {
					td.digits = n
				}
			}
		}
	}

	var kept []string
	for _, f := range strings.Fields(s) {
		switch f {
		case "unsigned":
			td.unsigned = true
		case "signed", "zerofill":
		default:
			kept = append(kept, f)
		}
	}
	td.base = strings.Join(kept, " ")
	return td
}

// closingParen finds the ')' matching s[open], skipping quoted enum members.
func closingParen(s string, open int) int {
	inQuote := false
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case ')':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// scanRowMaps reads every row into a map keyed by lower-cased column name.
// SHOW statements add columns between server versions, so positional scans
// are avoided for them.
func scanRowMaps(rows *sql.Rows) ([]map[string]sql.NullString, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]sql.NullString
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]sql.NullString, len(names))
		for i, n := range names {
			m[strings.ToLower(n)] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// indexBuilder groups one-row-per-key-part results into Index values while
// keeping discovery order.
type indexBuilder struct {
	byName map[string]*Index
	order  []string
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{byName: make(map[string]*Index)}
}

func (b *indexBuilder) add(name string, column sql.NullString, unique, prefix bool) *Index {
	idx, ok := b.byName[name]
	if !ok {
		idx = &Index{Name: name, Unique: unique}
		b.byName[name] = idx
		b.order = append(b.order, name)
	}
	if prefix {
		idx.HasPrefix = true
	}
	if !column.Valid || column.String == "" {
		idx.HasExpression = true
		return idx
	}
	idx.Columns = append(idx.Columns, column.String)
	return idx
}

func (b *indexBuilder) indexes() []Index {
	out := make([]Index, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.byName[name])
	}
	return out
}

// collectStringRows collects a single-column string result.
func collectStringRows(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
