package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document id, collection or index
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyActive is returned by [Collection.Begin] when the
	// collection already has an active writer transaction. The caller may
	// retry after the current transaction finishes.
	ErrAlreadyActive = errors.New("transaction already active")

	// ErrTxnFinished is returned when an operation is performed on a
	// transaction that was already committed or rolled back.
	ErrTxnFinished = errors.New("transaction already finished")

	// ErrClosed is returned when an operation is performed on a closed
	// database, collection or pager.
	ErrClosed = errors.New("database is closed")

	// ErrReadOnly is returned when a mutating operation is performed on a
	// database opened with [WithDatabaseReadOnly].
	ErrReadOnly = errors.New("database is read-only")

	// ErrConstraintViolated is returned when an action cannot be performed
	// because it is being blocked by a unique index constraint.
	ErrConstraintViolated = errors.New("unique constraint violated")

	// ErrCursorClosed is returned when trying to perform operations on a
	// closed [Cursor].
	ErrCursorClosed = errors.New("cursor is closed")

	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// calling [Cursor.Next].
	ErrScanBeforeNext = errors.New("called Scan before calling Next")

	// ErrCannotModifyID is returned when an update would modify a
	// document id.
	ErrCannotModifyID = errors.New("cannot modify _id")

	// ErrNoPath is returned if no field path is provided when creating a
	// new [Index].
	ErrNoPath = errors.New("no field path provided")

	// ErrTargetNil is returned when the user provides a nil value as a
	// target to decode data into, for example when calling
	// [Collection.Get].
	ErrTargetNil = errors.New("target interface is nil")

	// ErrLocked is returned when opening a database whose lock file is
	// held by another process.
	ErrLocked = errors.New("database file is locked")
)

// ErrIO represents a storage medium failure. The engine never retries
// internally; the failing operation name and the underlying error are
// carried for the caller to decide.
type ErrIO struct {
	Op  string
	Err error
}

func (e *ErrIO) Error() string { return fmt.Sprintf("io failure on %s: %v", e.Op, e.Err) }

// Unwrap returns the underlying error.
func (e *ErrIO) Unwrap() error { return e.Err }

// NewErrIO wraps err as an [ErrIO] for operation op. Returns nil if err is
// nil, and err itself when it is already engine-classified.
func NewErrIO(op string, err error) error {
	if err == nil {
		return nil
	}
	var io *ErrIO
	if errors.As(err, &io) {
		return err
	}
	return &ErrIO{Op: op, Err: err}
}

// ErrCorruptData is returned when a checksum or a structural check fails
// while reading stored data. The failure is fatal for the affected record
// or page, not for the whole database.
type ErrCorruptData struct {
	// Page holds the page id where corruption was detected, 0 when the
	// corruption is not page-addressed (e.g. a document buffer).
	Page uint32
	// Offset holds the byte offset of the failing check.
	Offset int
	// Detail describes the failing check.
	Detail string
}

func (e *ErrCorruptData) Error() string {
	if e.Page != 0 {
		return fmt.Sprintf("corrupt data at page %d offset %d: %s", e.Page, e.Offset, e.Detail)
	}
	return fmt.Sprintf("corrupt data at offset %d: %s", e.Offset, e.Detail)
}

// ErrOutOfSpace is returned when an allocation would grow the database
// file beyond the configured maximum size. No automatic compaction is
// triggered.
type ErrOutOfSpace struct {
	// Requested holds the size the file would need to grow to.
	Requested int64
	// Limit holds the configured maximum file size.
	Limit int64
}

func (e *ErrOutOfSpace) Error() string {
	return fmt.Sprintf("out of space: need %d bytes, limit is %d", e.Requested, e.Limit)
}

// ErrInvalidQuery is returned when a query or update specification is
// malformed: an unknown operator, or a type mismatch between an operator
// and its operand. It is surfaced during compilation, before any partial
// execution.
type ErrInvalidQuery struct {
	// Op holds the offending operator, when one is involved.
	Op string
	// Reason describes why the specification was rejected.
	Reason string
}

func (e *ErrInvalidQuery) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("invalid query: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// ErrSchemaViolated is returned when a document does not conform to the
// collection's JSON schema.
type ErrSchemaViolated struct {
	// Violations holds one description per failed schema check.
	Violations []string
}

func (e *ErrSchemaViolated) Error() string {
	return fmt.Sprintf("document violates collection schema: %v", e.Violations)
}

// ErrDocumentType is returned when a value that is invalid, or contains an
// invalid sub value, is passed for creating a document.
type ErrDocumentType struct {
	Value any
}

func (e *ErrDocumentType) Error() string {
	return fmt.Sprintf("cannot build a document from %T", e.Value)
}

// ErrCannotCompare is returned when [Comparer.Compare] is called with two
// values that cannot be compared.
type ErrCannotCompare struct {
	A, B Kind
}

func (e *ErrCannotCompare) Error() string {
	return fmt.Sprintf("cannot compare %s and %s", e.A, e.B)
}

// ErrDatafileName is returned when the user specifies an invalid name for
// the data file, usually a name carrying a suffix the engine reserves for
// its own companion files.
type ErrDatafileName struct {
	Filename string
}

func (e *ErrDatafileName) Error() string {
	return fmt.Sprintf("invalid datafile name %q", e.Filename)
}

// ErrDecode wraps third party decoding errors raised while scanning a
// document into a caller-provided target.
type ErrDecode struct {
	Err error
}

func (e *ErrDecode) Error() string { return fmt.Sprint("decode error: ", e.Err) }

// Unwrap returns the underlying error.
func (e *ErrDecode) Unwrap() error { return e.Err }
