package main

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

type defaultKind int

const (
	defaultNone defaultKind = iota
	defaultFunction
	defaultLiteral
)

// columnDefault is a column default after dialect-neutral normalization.
type columnDefault struct {
	kind  defaultKind
	value string
}

// normalizeDefault classifies a raw default. NULL means no default, and so
// does an empty value unless the column is string-typed. Anything carrying a
// backslash or a Unicode escape prefix is dropped rather than risk emitting
// malformed DDL.
func normalizeDefault(raw *string, ct canonicalType) columnDefault {
	if raw == nil {
		return columnDefault{}
	}
	v := strings.TrimSpace(*raw)
	if strings.EqualFold(v, "null") {
		return columnDefault{}
	}
	if v == "" {
		if ct.isString() {
			return columnDefault{kind: defaultLiteral}
		}
		return columnDefault{}
	}
	if strings.Contains(v, `\`) || strings.Contains(strings.ToUpper(v), "U&'") {
		log.Debug().Str("default", v).Msg("dropping default with escape sequence")
		return columnDefault{}
	}
	if isTimestampFunction(v) {
		return columnDefault{kind: defaultFunction, value: strings.ToUpper(v)}
	}
	return columnDefault{kind: defaultLiteral, value: *raw}
}

func isTimestampFunction(v string) bool {
	u := strings.ToUpper(strings.TrimSpace(v))
	switch u {
	case "CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP()", "NOW()", "SYSDATE()",
		"LOCALTIMESTAMP", "LOCALTIMESTAMP()", "CURRENT_DATE", "CURRENT_TIME":
		return true
	}
	return strings.HasPrefix(u, "CURRENT_TIMESTAMP(") && strings.HasSuffix(u, ")")
}

// canonicalTimestampFunction folds NOW(), SYSDATE(), LOCALTIMESTAMP and
// CURRENT_TIMESTAMP(n) into CURRENT_TIMESTAMP, which every destination accepts
// on a column without fractional precision.
func canonicalTimestampFunction(v string) string {
	switch v {
	case "CURRENT_DATE", "CURRENT_TIME":
		return v
	}
	return "CURRENT_TIMESTAMP"
}

// defaultStyle describes how a destination dialect renders boolean literals.
type defaultStyle struct {
	boolTrue, boolFalse string
}

// renderDefault turns a normalized default into a DEFAULT expression for the
// given style. ok is false when the default has to be dropped.
func renderDefault(def columnDefault, ct canonicalType, style defaultStyle) (string, bool) {
	switch def.kind {
	case defaultNone:
		return "", false
	case defaultFunction:
		return canonicalTimestampFunction(def.value), true
	}

	v := def.value
	switch {
	case ct == typeBoolean:
		b, ok := parseBoolLiteral(v)
		if !ok {
			log.Warn().Str("default", def.value).Msg("unsupported boolean default, dropping")
			return "", false
		}
		if b {
			return style.boolTrue, true
		}
		return style.boolFalse, true
	case ct.isNumeric():
		if !isNumericLiteral(strings.TrimSpace(v)) {
			log.Warn().Str("default", def.value).Msg("unsupported numeric default, dropping")
			return "", false
		}
		return strings.TrimSpace(v), true
	case ct == typeBlob:
		log.Warn().Str("default", def.value).Msg("binary defaults are not supported, dropping")
		return "", false
	default:
		return sqlStringLiteral(v), true
	}
}

// unquoteLiteral strips one level of single quotes and un-doubles embedded
// quotes. Values that are not quoted are returned unchanged. Source dialects
// call it while introspecting so Column.Default is always the bare value.
func unquoteLiteral(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	return v
}

func sqlStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func parseBoolLiteral(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "y", "yes", "b'1'":
		return true, true
	case "0", "false", "f", "n", "no", "b'0'":
		return false, true
	}
	return false, false
}

// isNumericLiteral accepts plain decimal numbers with an optional sign,
// fraction and exponent. Hex, inf, nan and digit separators are rejected.
func isNumericLiteral(s string) bool {
	if strings.TrimLeft(s, "+-.eE0123456789") != "" || strings.IndexFunc(s, unicode.IsDigit) < 0 {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
