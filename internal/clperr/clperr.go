// Package clperr defines the error kinds shared across the ingestion and
// archive-reading paths.
package clperr

import "errors"

// ErrPathConflict means the target archive directory already exists.
// Fatal for that archive.
var ErrPathConflict = errors.New("clps: archive directory already exists")

// ErrIoFailure wraps an underlying read/write/create failure. Fatal;
// partial outputs are left in place for operator diagnosis.
var ErrIoFailure = errors.New("clps: io failure")

// ErrMalformedInput means the parser rejected a record, or a truncated
// trailer remains at end of file. Non-fatal: the record is skipped.
var ErrMalformedInput = errors.New("clps: malformed input")

// ErrUnsupportedOperation is reserved for code paths the design does not
// yet permit, such as reopening a closed archive.
var ErrUnsupportedOperation = errors.New("clps: unsupported operation")

// ErrInvariantViolation indicates a column-count mismatch or other
// internal bug detected during a per-schema flush. Fatal.
var ErrInvariantViolation = errors.New("clps: invariant violation")
