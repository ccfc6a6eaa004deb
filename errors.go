package main

import "fmt"

// ConfigurationError reports an invalid schedule string or incomplete
// connection settings. It is raised before any database is touched.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Msg, e.Err)
	}
	return "configuration: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// ConnectionError reports a driver, authentication or network failure while
// opening one side of a transfer.
type ConnectionError struct {
	Tag string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s database: %v", e.Tag, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StructureNotFoundError means no introspection strategy could discover any
// column of the source table.
type StructureNotFoundError struct {
	Table string
	Err   error
}

func (e *StructureNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("table structure not found: %s: %v", e.Table, e.Err)
	}
	return "table structure not found: " + e.Table
}

func (e *StructureNotFoundError) Unwrap() error { return e.Err }

// TransferFailure wraps any DDL or DML error raised while writing the
// destination. The destination transaction has been rolled back.
type TransferFailure struct {
	Table string
	Stage string
	Err   error
}

func (e *TransferFailure) Error() string {
	return fmt.Sprintf("transfer %s: %s: %v", e.Table, e.Stage, e.Err)
}

func (e *TransferFailure) Unwrap() error { return e.Err }

// IndexCreationError is logged and skipped; it never aborts a transfer.
type IndexCreationError struct {
	Table string
	Index string
	Err   error
}

func (e *IndexCreationError) Error() string {
	return fmt.Sprintf("create index %s on %s: %v", e.Index, e.Table, e.Err)
}

func (e *IndexCreationError) Unwrap() error { return e.Err }
