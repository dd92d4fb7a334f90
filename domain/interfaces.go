// Package domain contains domain-specific interfaces and option types for
// JEDB.
//
// This package defines the core interfaces that must be implemented by
// adapters, as well as functional options for configuring various components
// like queries, updates, indexes, cursors, matchers, and persistence.
package domain

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Codec converts documents to and from their stored binary representation.
type Codec interface {
	// Encode serializes a document for persistence.
	Encode(*Doc) ([]byte, error)
	// Decode parses a full document from its binary representation.
	Decode([]byte) (*Doc, error)
	// DecodeFields parses only the named top-level fields of the binary
	// representation, skipping over everything else. Fields absent from
	// the payload are absent from the result.
	DecodeFields([]byte, ...string) (*Doc, error)
}

// Parser converts user-provided Go values into documents.
type Parser interface {
	// Parse converts a struct, map or [*Doc] into a document.
	Parse(any) (*Doc, error)
	// ParseValue converts a single Go value into a [Value].
	ParseValue(any) (Value, error)
}

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering and comparison operations for values.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(Value, Value) (int, error)
	// Comparable returns true if two values can be compared.
	Comparable(Value, Value) bool
}

// TimeGetter provides current time for timestamping operations.
type TimeGetter interface {
	// GetTime returns the current time.
	GetTime() time.Time
}

// IDGenerator mints object ids for callers that want portable document
// identifiers alongside the record ids the engine assigns.
type IDGenerator interface {
	// NewObjectID returns a fresh id. Ids minted later never sort
	// before ids minted in an earlier second.
	NewObjectID() (OID, error)
}

// Getter represents a value that can be treated as undefined.
type Getter interface {
	// Get returns the value for the given address and a bool that indicates
	// whether the value counts as defined or not. Unset values are
	// inaccessible for some reason. If an address points to an unset key in
	// a document, or an out of bounds index in an array or any address
	// within a primitive value (string, bool, etc.), it counts as
	// undefined. If a value is explicitly null, it will not count as
	// undefined.
	Get() (value Value, defined bool)
}

// GetSetter represents a value in a [Doc]. It will be returned by
// [FieldNavigator] so things like identifying unset values and appending to
// nested arrays becomes easier. Default GetSetter IS NOT concurrency safe, but
// other implementations might be.
type GetSetter interface {
	// GetSetter implements [Getter]. Undefined values can neither be set
	// nor unset.
	Getter
	// Set will set a new value for the address.
	Set(Value)
	// Unset removes the given value from the parent item (object or array).
	Unset()
}

// FieldNavigator provides field access operations with dot notation support.
type FieldNavigator interface {
	// GetField extracts values from nested documents, following path
	// parts. The boolean return reports whether an array was expanded
	// into its elements along the way.
	GetField(*Doc, ...string) ([]GetSetter, bool, error)
	// EnsureField returns the values under the path, creating missing
	// intermediate objects along the way.
	EnsureField(*Doc, ...string) ([]GetSetter, error)
	// GetAddress extracts nested path from the string address using the
	// expected notation.
	GetAddress(field string) ([]string, error)
}

// Predicate is a compiled query ready to be evaluated against documents.
type Predicate interface {
	// Match reports whether the document satisfies the query.
	Match(*Doc) (bool, error)
}

// ElemPredicate is a compiled condition evaluated against single values,
// such as array elements.
type ElemPredicate interface {
	// MatchElem reports whether the value satisfies the condition.
	MatchElem(v Value) (bool, error)
}

// Matcher compiles query documents into predicates.
type Matcher interface {
	// Compile validates the query and returns a predicate for it. Unknown
	// operators and malformed operands are reported here, before any
	// document is examined.
	Compile(query *Doc) (Predicate, error)
	// CompileElem validates an element condition, as accepted by
	// $elemMatch and $pull, and returns its value-level predicate.
	CompileElem(condition Value) (ElemPredicate, error)
}

// Modifier applies update operations to documents.
type Modifier interface {
	// Modify applies an update query to a document and returns the
	// result. The input document is not changed.
	Modify(doc, update *Doc) (*Doc, error)
}

// Snapshot is a stable read-only view of the page store taken at a commit
// boundary. Readers holding a snapshot never observe writes committed after
// it was taken. Release must be called once the snapshot is no longer needed
// so its pages can be reclaimed.
type Snapshot interface {
	// Seq returns the commit sequence the snapshot is pinned at.
	Seq() uint64
	// ReadRecord returns the payload of the record whose head page is ptr.
	ReadRecord(ptr uint32) ([]byte, error)
	// Release unpins the snapshot.
	Release()
}

// PageTx is a write transaction over the page store. Writes are staged in
// memory and published atomically by Commit. Reads through the transaction
// observe its own staged writes on top of the snapshot it was started from.
type PageTx interface {
	// ReadRecord returns the payload of the record whose head page is ptr.
	ReadRecord(ptr uint32) ([]byte, error)
	// WriteRecord stores the payload as a new record and returns its head
	// page.
	WriteRecord(p []byte) (uint32, error)
	// UpdateRecord replaces the payload of an existing record. The head
	// page is preserved, so references to the record stay valid.
	UpdateRecord(ptr uint32, p []byte) error
	// UpdateRecordAt overwrites len(p) bytes of the record starting at
	// off. The record length does not change.
	UpdateRecordAt(ptr uint32, off int64, p []byte) error
	// DeleteRecord frees every page of the record.
	DeleteRecord(ptr uint32) error
	// Commit atomically publishes the staged writes.
	Commit(ctx context.Context) error
	// Rollback discards the staged writes.
	Rollback() error
}

// Pager manages a database file as an array of fixed-size pages and provides
// crash-safe record storage on top of it. Records are chains of linked pages
// addressed by their head page.
type Pager interface {
	// Snapshot pins the latest committed state for reading.
	Snapshot() (Snapshot, error)
	// Begin starts a write transaction. At most one write transaction is
	// active at a time; Begin blocks until the current one finishes or
	// the context is done.
	Begin(ctx context.Context) (PageTx, error)
	// Checkpoint applies the write-ahead log to the data file and
	// truncates it.
	Checkpoint(ctx context.Context) error
	// Sync flushes buffered writes to stable storage.
	Sync() error
	// PageSize returns the page size the file was created with.
	PageSize() int
	// Size returns the current size of the data file in bytes.
	Size() (int64, error)
	// UUID returns the identity stamped into the file header.
	UUID() uuid.UUID
	// Close checkpoints the file and releases it.
	Close() error
}

// Index provides ordered lookups of document ids by field value.
type Index interface {
	// Spec returns the definition of the index.
	Spec() IndexSpec
	// Insert adds the document's indexed value under the given id.
	Insert(id int64, doc *Doc) error
	// Remove removes the document's entry for the given id.
	Remove(id int64, doc *Doc) error
	// Update replaces the entry of id keyed by oldDoc with one keyed by
	// newDoc.
	Update(id int64, oldDoc, newDoc *Doc) error
	// Lookup returns the ids stored under exactly v, ordered by id.
	Lookup(v Value) ([]int64, error)
	// Range returns ids whose keys fall between min and max in ascending
	// key order, ties broken by id. An undefined bound leaves that end
	// open.
	Range(min, max RangeBound) ([]int64, error)
	// All returns every id in the index in ascending key order.
	All() ([]int64, error)
	// Keys returns the number of distinct keys in the index.
	Keys() int
	// Len returns the number of entries in the index.
	Len() int
	// Reset discards every entry.
	Reset()
}

// Planner chooses how to satisfy a query given the available indexes.
type Planner interface {
	// Plan returns candidate document ids for the query, ordered by id.
	// When ok is false no index applies and every document must be
	// examined.
	Plan(query *Doc, indexes []Index) (ids []int64, ok bool, err error)
}

// Projector narrows documents to the fields selected by a projection.
type Projector interface {
	// Project returns copies of docs containing only the selected fields.
	// Values above zero include the field, zero excludes it. Mixing
	// inclusion and exclusion is not allowed, except for the id field.
	Project(docs []*Doc, projection map[string]uint8) ([]*Doc, error)
}

// Querier runs queries over a stream of documents, applying filtering,
// sorting, skipping, limiting and projection.
type Querier interface {
	// Query consumes data and returns the matching documents.
	Query(ctx context.Context, data iter.Seq2[*Doc, error], options ...QueryOption) ([]*Doc, error)
}

// Cursor provides iteration over query results.
//
// A Cursor is not safe for concurrent use. Close must be called when done;
// it releases the snapshot the cursor reads from.
type Cursor interface {
	// Next advances the cursor to the next document, returning true if
	// one is available.
	Next(ctx context.Context) bool
	// Scan decodes the current document into target. Next must have been
	// called first.
	Scan(target any) error
	// Doc returns the current document.
	Doc() *Doc
	// ID returns the id of the current document.
	ID() int64
	// All decodes every remaining document into the target slice and
	// closes the cursor.
	All(ctx context.Context, target any) error
	// Err returns any error that occurred during iteration.
	Err() error
	// Close releases cursor resources and should be called when done.
	Close() error
	// Iter returns the remaining documents as a sequence of id-document
	// pairs. Errors that interrupt the sequence are reported by Err.
	Iter(ctx context.Context) iter.Seq2[int64, *Doc]
}

// Txn is an explicit transaction on a collection. Writes staged in the
// transaction are visible only through it until Commit publishes them.
// Exactly one of Commit or Rollback finishes the transaction; calls after
// that fail with [ErrTxnFinished]. A Txn is meant to be used from a single
// goroutine.
type Txn interface {
	// Put inserts a new document and returns the id assigned to it.
	Put(ctx context.Context, doc any) (int64, error)
	// PutAll inserts several documents and returns their ids.
	PutAll(ctx context.Context, docs ...any) ([]int64, error)
	// Set replaces the document stored under id.
	Set(ctx context.Context, id int64, doc any) error
	// Save inserts doc, or replaces the stored document when doc carries
	// an id field.
	Save(ctx context.Context, doc any) (int64, error)
	// Patch applies an update query to the document stored under id.
	Patch(ctx context.Context, id int64, update any) error
	// Get decodes the document stored under id into target.
	Get(ctx context.Context, id int64, target any) error
	// GetDoc returns the document stored under id.
	GetDoc(ctx context.Context, id int64) (*Doc, error)
	// Del removes the document stored under id.
	Del(ctx context.Context, id int64) error
	// Count returns the number of documents matching the query. A nil
	// query counts all documents.
	Count(ctx context.Context, query any) (int64, error)
	// Find returns a cursor over all documents matching the query.
	Find(ctx context.Context, query any, options ...FindOption) (Cursor, error)
	// FindOne decodes the first document matching the query into target.
	FindOne(ctx context.Context, query any, target any, options ...FindOption) error
	// Update modifies documents matching the query using the update
	// query and returns a cursor over the updated documents.
	Update(ctx context.Context, query any, update any, options ...UpdateOption) (Cursor, error)
	// Remove deletes documents matching the query and returns the number
	// of documents removed.
	Remove(ctx context.Context, query any, options ...RemoveOption) (int64, error)
	// Commit atomically publishes the staged writes.
	Commit(ctx context.Context) error
	// Rollback discards the staged writes.
	Rollback() error
}

// Collection provides access to the documents of a single collection.
//
// All methods are safe for concurrent use. Writes outside an explicit
// transaction run in their own implicit transaction; they block while an
// explicit transaction is active and apply in submission order afterwards.
type Collection interface {
	// Name returns the collection name.
	Name() string
	// Put inserts a new document and returns the id assigned to it. Ids
	// grow monotonically and are never reused, even after the document is
	// deleted.
	Put(ctx context.Context, doc any) (int64, error)
	// PutAll inserts several documents in one transaction and returns
	// their ids.
	PutAll(ctx context.Context, docs ...any) ([]int64, error)
	// Set replaces the document stored under id.
	Set(ctx context.Context, id int64, doc any) error
	// Save inserts doc, or replaces the stored document when doc carries
	// an id field.
	Save(ctx context.Context, doc any) (int64, error)
	// Patch applies an update query to the document stored under id.
	Patch(ctx context.Context, id int64, update any) error
	// Get decodes the document stored under id into target.
	Get(ctx context.Context, id int64, target any) error
	// GetDoc returns the document stored under id.
	GetDoc(ctx context.Context, id int64) (*Doc, error)
	// Del removes the document stored under id.
	Del(ctx context.Context, id int64) error
	// All returns a cursor over every document in ascending id order.
	All(ctx context.Context, options ...FindOption) (Cursor, error)
	// Count returns the number of documents matching the query. A nil
	// query counts all documents without examining them.
	Count(ctx context.Context, query any) (int64, error)
	// Find returns a cursor over all documents matching the query.
	Find(ctx context.Context, query any, options ...FindOption) (Cursor, error)
	// FindOne decodes the first document matching the query into target.
	FindOne(ctx context.Context, query any, target any, options ...FindOption) error
	// Update modifies documents matching the query using the update
	// query and returns a cursor over the updated documents.
	Update(ctx context.Context, query any, update any, options ...UpdateOption) (Cursor, error)
	// Remove deletes documents matching the query and returns the number
	// of documents removed.
	Remove(ctx context.Context, query any, options ...RemoveOption) (int64, error)
	// EnsureIndex creates an index on a field to improve query
	// performance. If an equal index already exists, this is a no-op. The
	// call blocks until the index is built.
	EnsureIndex(ctx context.Context, options ...EnsureIndexOption) error
	// RemoveIndex deletes the index on the given path.
	RemoveIndex(ctx context.Context, path string) error
	// Reindex rebuilds every index of the collection from its documents.
	Reindex(ctx context.Context) error
	// Indexes returns the specs of the collection's indexes.
	Indexes(ctx context.Context) ([]IndexSpec, error)
	// Begin starts an explicit transaction. It fails with
	// [ErrAlreadyActive] when one is already active on the collection.
	Begin(ctx context.Context) (Txn, error)
	// TxnActive reports whether an explicit transaction is active on the
	// collection.
	TxnActive() bool
}

// JEDB defines the main interface for interacting with the embedded
// database. It provides document persistence, indexing, and query
// functionality with context-aware operations.
//
// All data is stored locally on disk, and operations are safe to use
// concurrently from multiple goroutines.
type JEDB interface {
	// Collection returns a handle to the named collection. Unknown
	// collections are created when asked to, and the handle is shared
	// between callers asking for the same name.
	Collection(ctx context.Context, name string, options ...CollectionOption) (Collection, error)
	// Collections returns the names of all collections.
	Collections(ctx context.Context) ([]string, error)
	// DropCollection permanently removes the named collection with its
	// documents and indexes.
	DropCollection(ctx context.Context, name string) error
	// Sync flushes pending writes to stable storage. Under [SyncManual]
	// it is the only thing that makes commits durable.
	Sync(ctx context.Context) error
	// Metadata describes the database file and its collections.
	Metadata(ctx context.Context) (Metadata, error)
	// Close flushes pending writes and releases the database file.
	Close(ctx context.Context) error
}
