// Package jedb provides an embedded MongoDB-like document database for
// golang.
//
// All data lives in a single paged file holding any number of named
// collections. Documents are maps or structs keyed by an engine-assigned
// int64 id, queried with MongoDB-style operators and served under
// snapshot isolation, so readers never wait for the writer.
//
// The basic usage starts with opening a database through [Open] and
// asking it for a [Collection].
package jedb

import (
	"os"
	"time"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/database"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/idgenerator"
)

var (
	// ErrNotFound is returned when a document id, collection or index
	// does not exist.
	ErrNotFound = domain.ErrNotFound
	// ErrAlreadyActive is returned by [Collection.Begin] when the
	// collection already has an active writer transaction.
	ErrAlreadyActive = domain.ErrAlreadyActive
	// ErrTxnFinished is returned when an operation is performed on a
	// transaction that was already committed or rolled back.
	ErrTxnFinished = domain.ErrTxnFinished
	// ErrClosed is returned when an operation is performed on a closed
	// database.
	ErrClosed = domain.ErrClosed
	// ErrReadOnly is returned when a mutating operation is performed on a
	// database opened with [WithReadOnly].
	ErrReadOnly = domain.ErrReadOnly
	// ErrConstraintViolated is returned when an action cannot be
	// performed because it is being blocked by a unique index constraint.
	ErrConstraintViolated = domain.ErrConstraintViolated
	// ErrCursorClosed is returned when trying to perform operations on a
	// closed [Cursor].
	ErrCursorClosed = domain.ErrCursorClosed
	// ErrScanBeforeNext is returned when calling [Cursor.Scan] before
	// calling [Cursor.Next].
	ErrScanBeforeNext = domain.ErrScanBeforeNext
	// ErrCannotModifyID is returned when an update would modify a
	// document _id.
	ErrCannotModifyID = domain.ErrCannotModifyID
	// ErrNoPath is returned if no field path is provided when creating an
	// index.
	ErrNoPath = domain.ErrNoPath
	// ErrTargetNil is returned when the user provides a nil value as a
	// target to decode data into, for example calling [Collection.Get].
	ErrTargetNil = domain.ErrTargetNil
	// ErrLocked is returned when opening a database whose lock file is
	// held by another process.
	ErrLocked = domain.ErrLocked
)

// ErrIO represents a storage medium failure, carrying the failing
// operation and the underlying error.
type ErrIO = domain.ErrIO

// ErrCorruptData is returned when stored bytes do not parse back into
// the structure that was written.
type ErrCorruptData = domain.ErrCorruptData

// ErrOutOfSpace is returned when a write would grow the data file past
// the configured maximum size.
type ErrOutOfSpace = domain.ErrOutOfSpace

// ErrInvalidQuery is returned before execution when a query or update
// document is malformed, naming the offending operator.
type ErrInvalidQuery = domain.ErrInvalidQuery

// ErrSchemaViolated is returned when a write does not satisfy the JSON
// schema configured on the collection.
type ErrSchemaViolated = domain.ErrSchemaViolated

// ErrDocumentType is returned when a user passes a value that is invalid
// or contains an invalid sub value for creating a document.
type ErrDocumentType = domain.ErrDocumentType

// ErrCannotCompare is returned when two values cannot be ordered against
// each other.
type ErrCannotCompare = domain.ErrCannotCompare

// ErrDatafileName is returned when the user specifies an invalid name
// for the data file, usually one carrying a suffix the engine reserves
// for its companion files.
type ErrDatafileName = domain.ErrDatafileName

// ErrDecode wraps third party decoding errors raised while scanning a
// document into a caller-provided target.
type ErrDecode = domain.ErrDecode

// Open opens or creates a database file with the provided configuration
// options:
//
// - [WithPath]: sets the data file path.
//
// - [WithCreateIfMissing]: creates the data file when it does not exist.
//
// - [WithMaxFileSize]: caps the size the data file may grow to.
//
// - [WithPageSize]: sets the page size for newly created files.
//
// - [WithCacheSize]: sets the number of pages kept in the read cache.
//
// - [WithSyncPolicy]: controls when commits reach stable storage.
//
// - [WithSyncInterval]: sets the flush cadence under [SyncPeriodic].
//
// - [WithTruncate]: discards any existing content of the data file.
//
// - [WithReadOnly]: opens the database for reading only.
//
// - [WithNoLock]: skips the lock file guarding against concurrent use.
//
// - [WithFileMode]: sets the file permissions for database files.
//
// - [WithDirMode]: sets the directory permissions for database
// directories.
//
// - [WithPager]: sets the page store implementation for data storage.
//
// - [WithCodec]: sets the codec for document serialization.
//
// - [WithParser]: sets the parser converting user values into documents.
//
// - [WithDecoder]: sets the decoder for scanning documents into targets.
//
// - [WithComparer]: sets the comparer for value ordering operations.
//
// - [WithFieldNavigator]: sets the navigator for dotted field access.
//
// - [WithMatcher]: sets the matcher implementation for query evaluation.
//
// - [WithModifier]: sets the modifier implementation for updates.
//
// - [WithQuerier]: sets the querier executing compiled queries.
//
// - [WithPlanner]: sets the planner choosing index driven access paths.
//
// - [WithTimeGetter]: sets the time getter for modification stamps.
//
// - [WithCollectionFactory]: sets the function for creating collection
// handles.
func Open(options ...Option) (JEDB, error) {
	return database.NewDatabase(options...)
}

var objectIDs = idgenerator.NewIDGenerator()

// NewObjectID returns a globally unique hex object id for documents that
// need an identity beyond the collection-scoped integer id. Ids order by
// creation second.
func NewObjectID() (string, error) {
	oid, err := objectIDs.NewObjectID()
	if err != nil {
		return "", err
	}
	return oid.String(), nil
}

// JEDB defines the main interface for interacting with the embedded
// database. All data is stored locally on disk, and operations are safe
// to use concurrently from multiple goroutines.
type JEDB = domain.JEDB

// Collection is a named set of documents sharing an id sequence and a
// set of indices.
type Collection = domain.Collection

// Txn is an explicit transaction on one collection. Writes stage until
// Commit and disappear on Rollback.
type Txn = domain.Txn

// Cursor provides iteration over query results.
type Cursor = domain.Cursor

// Doc is an ordered document, the engine-side representation of every
// stored record.
type Doc = domain.Doc

// Value is a single typed document value.
type Value = domain.Value

// Metadata describes the database file and its collections.
type Metadata = domain.Metadata

// CollectionMetadata describes one collection for [JEDB.Metadata].
type CollectionMetadata = domain.CollectionMetadata

// IndexSpec describes one index of a collection.
type IndexSpec = domain.IndexSpec

// IndexKind selects which value kind an index extracts and orders.
type IndexKind = domain.IndexKind

// The typed index kinds.
const (
	IndexString = domain.IndexString
	IndexNumber = domain.IndexNumber
	IndexArray  = domain.IndexArray
)

// SyncPolicy controls when the write-ahead log is fsynced.
type SyncPolicy = domain.SyncPolicy

// The sync policies.
const (
	SyncPerCommit = domain.SyncPerCommit
	SyncPeriodic  = domain.SyncPeriodic
	SyncManual    = domain.SyncManual
)

// IDField is the name of the engine-assigned id field.
const IDField = domain.IDField

// Sort represents an ordered list of fields which should be used,
// respectively, to sort the results of a query.
type Sort = domain.Sort

// SortName represents a single field and the order which should be used
// to sort it, a positive value meaning ascending order and a negative
// value meaning descending order.
type SortName = domain.SortName

// Pager provides page-aligned storage with snapshots and atomic write
// transactions.
type Pager = domain.Pager

// Codec converts documents to bytes and back.
type Codec = domain.Codec

// Parser converts user values into documents.
type Parser = domain.Parser

// Decoder converts between different data representations.
type Decoder = domain.Decoder

// Comparer provides ordering and comparison for different value types.
type Comparer = domain.Comparer

// FieldNavigator provides field access operations with dot notation
// support.
type FieldNavigator = domain.FieldNavigator

// Matcher evaluates whether documents match query criteria.
type Matcher = domain.Matcher

// Modifier applies update operations to documents.
type Modifier = domain.Modifier

// Querier runs compiled queries over document streams.
type Querier = domain.Querier

// Planner chooses index driven access paths for queries.
type Planner = domain.Planner

// Predicate is a compiled query, ready to match documents.
type Predicate = domain.Predicate

// TimeGetter provides current time for modification stamps.
type TimeGetter = domain.TimeGetter

// Index provides fast document lookups based on field values.
type Index = domain.Index

// IDGenerator creates unique object ids.
type IDGenerator = domain.IDGenerator

// OID is a twelve byte object id.
type OID = domain.OID

// Option configures the database through the functional options pattern.
type Option = domain.DatabaseOption

// WithPath sets the data file path.
func WithPath(p string) Option {
	return domain.WithDatabasePath(p)
}

// WithCreateIfMissing creates the data file when it does not exist.
func WithCreateIfMissing(c bool) Option {
	return domain.WithDatabaseCreateIfMissing(c)
}

// WithMaxFileSize caps the size the data file may grow to.
func WithMaxFileSize(s int64) Option {
	return domain.WithDatabaseMaxFileSize(s)
}

// WithPageSize sets the page size in bytes for newly created files.
func WithPageSize(s int) Option {
	return domain.WithDatabasePageSize(s)
}

// WithCacheSize sets the number of pages kept in the read cache.
func WithCacheSize(s int) Option {
	return domain.WithDatabaseCacheSize(s)
}

// WithSyncPolicy controls when commits are flushed to stable storage.
func WithSyncPolicy(s SyncPolicy) Option {
	return domain.WithDatabaseSyncPolicy(s)
}

// WithSyncInterval sets how often commits are flushed under
// [SyncPeriodic].
func WithSyncInterval(d time.Duration) Option {
	return domain.WithDatabaseSyncInterval(d)
}

// WithTruncate discards any existing content of the data file.
func WithTruncate(t bool) Option {
	return domain.WithDatabaseTruncate(t)
}

// WithReadOnly opens the database for reading only.
func WithReadOnly(r bool) Option {
	return domain.WithDatabaseReadOnly(r)
}

// WithNoLock skips the lock file that guards against concurrent use of
// the data file.
func WithNoLock(n bool) Option {
	return domain.WithDatabaseNoLock(n)
}

// WithFileMode sets the file permissions for database files.
func WithFileMode(f os.FileMode) Option {
	return domain.WithDatabaseFileMode(f)
}

// WithDirMode sets the directory permissions for database directories.
func WithDirMode(d os.FileMode) Option {
	return domain.WithDatabaseDirMode(d)
}

// WithPager sets the page store implementation for data storage.
func WithPager(p Pager) Option {
	return domain.WithDatabasePager(p)
}

// WithCodec sets the codec for document serialization.
func WithCodec(c Codec) Option {
	return domain.WithDatabaseCodec(c)
}

// WithParser sets the parser for converting user values into documents.
func WithParser(p Parser) Option {
	return domain.WithDatabaseParser(p)
}

// WithDecoder sets the decoder for data format conversions.
func WithDecoder(d Decoder) Option {
	return domain.WithDatabaseDecoder(d)
}

// WithComparer sets the comparer for value comparison operations.
func WithComparer(c Comparer) Option {
	return domain.WithDatabaseComparer(c)
}

// WithFieldNavigator sets the field getter for accessing document
// fields.
func WithFieldNavigator(f FieldNavigator) Option {
	return domain.WithDatabaseFieldNavigator(f)
}

// WithMatcher sets the matcher implementation for query evaluation.
func WithMatcher(m Matcher) Option {
	return domain.WithDatabaseMatcher(m)
}

// WithModifier sets the modifier implementation for document updates.
func WithModifier(m Modifier) Option {
	return domain.WithDatabaseModifier(m)
}

// WithQuerier sets the querier executing compiled queries.
func WithQuerier(q Querier) Option {
	return domain.WithDatabaseQuerier(q)
}

// WithPlanner sets the planner choosing index driven access paths.
func WithPlanner(p Planner) Option {
	return domain.WithDatabasePlanner(p)
}

// WithTimeGetter sets the time getter for modification stamps.
func WithTimeGetter(t TimeGetter) Option {
	return domain.WithDatabaseTimeGetter(t)
}

// WithCollectionFactory sets the function for creating collection
// handles.
func WithCollectionFactory(f func(string, ...CollectionOption) (Collection, error)) Option {
	return domain.WithDatabaseCollectionFactory(f)
}

// CollectionOption configures a collection handle through the functional
// options pattern.
type CollectionOption = domain.CollectionOption

// WithCollectionCreate creates the collection when it does not exist.
func WithCollectionCreate(c bool) CollectionOption {
	return domain.WithCollectionCreate(c)
}

// WithCollectionExpectedRecords sizes the primary keyspace directory for
// the expected number of documents.
func WithCollectionExpectedRecords(n int64) CollectionOption {
	return domain.WithCollectionExpectedRecords(n)
}

// WithCollectionCachedRecords sets the number of decoded documents kept
// in the collection read cache.
func WithCollectionCachedRecords(n int) CollectionOption {
	return domain.WithCollectionCachedRecords(n)
}

// WithCollectionCompression deflates record payloads on disk.
func WithCollectionCompression(c bool) CollectionOption {
	return domain.WithCollectionCompression(c)
}

// WithCollectionSchema enforces the given JSON schema on every write.
func WithCollectionSchema(s string) CollectionOption {
	return domain.WithCollectionSchema(s)
}

// FindOption configures query behavior through the functional options
// pattern.
type FindOption = domain.FindOption

// WithProjection specifies which fields to include or exclude from query
// results.
func WithProjection(p any) FindOption {
	return domain.WithFindProjection(p)
}

// WithSkip sets the number of documents to skip in query results.
func WithSkip(s int64) FindOption {
	return domain.WithFindSkip(s)
}

// WithLimit sets the maximum number of documents to return.
func WithLimit(l int64) FindOption {
	return domain.WithFindLimit(l)
}

// WithSort specifies the sort order for query results.
func WithSort(s Sort) FindOption {
	return domain.WithFindSort(s)
}

// UpdateOption configures update behavior through the functional options
// pattern.
type UpdateOption = domain.UpdateOption

// WithUpdateMulti enables updating multiple documents that match the
// query.
func WithUpdateMulti(m bool) UpdateOption {
	return domain.WithUpdateMulti(m)
}

// WithUpsert enables inserting a document if no matches are found.
func WithUpsert(u bool) UpdateOption {
	return domain.WithUpsert(u)
}

// RemoveOption configures remove behavior through the functional options
// pattern.
type RemoveOption = domain.RemoveOption

// WithRemoveMulti enables removing multiple documents that match the
// query.
func WithRemoveMulti(m bool) RemoveOption {
	return domain.WithRemoveMulti(m)
}

// EnsureIndexOption configures index creation through the functional
// options pattern.
type EnsureIndexOption = domain.EnsureIndexOption

// WithEnsureIndexPath sets the dot separated field path the index
// covers.
func WithEnsureIndexPath(p string) EnsureIndexOption {
	return domain.WithEnsureIndexPath(p)
}

// WithEnsureIndexKind selects the value kind the index extracts.
func WithEnsureIndexKind(k IndexKind) EnsureIndexOption {
	return domain.WithEnsureIndexKind(k)
}

// WithEnsureIndexUnique creates a unique index that prevents duplicate
// values.
func WithEnsureIndexUnique(u bool) EnsureIndexOption {
	return domain.WithEnsureIndexUnique(u)
}

// QueryOption configures query behavior through the functional options
// pattern.
type QueryOption = domain.QueryOption

// WithQuery sets the query criteria for a [Querier.Query] call.
func WithQuery(q *Doc) QueryOption {
	return domain.WithQuery(q)
}

// WithQueryPredicate sets a compiled predicate for a [Querier.Query]
// call, taking precedence over [WithQuery].
func WithQueryPredicate(p Predicate) QueryOption {
	return domain.WithQueryPredicate(p)
}

// WithQueryLimit sets the maximum number of documents the query should
// return.
func WithQueryLimit(l int64) QueryOption {
	return domain.WithQueryLimit(l)
}

// WithQuerySkip sets the number of documents the query should skip.
func WithQuerySkip(s int64) QueryOption {
	return domain.WithQuerySkip(s)
}

// WithQuerySort sets the sort order for query results.
func WithQuerySort(s Sort) QueryOption {
	return domain.WithQuerySort(s)
}

// WithQueryProjection specifies which fields to include or exclude in
// query results.
func WithQueryProjection(p map[string]uint8) QueryOption {
	return domain.WithQueryProjection(p)
}

// CursorOption configures cursor behavior through the functional options
// pattern.
type CursorOption = domain.CursorOption

// WithCursorDecoder sets the decoder for converting cursor results.
func WithCursorDecoder(d Decoder) CursorOption {
	return domain.WithCursorDecoder(d)
}

// WithCursorOnClose registers a function the cursor calls when closed.
func WithCursorOnClose(f func()) CursorOption {
	return domain.WithCursorOnClose(f)
}

// IndexOption configures index behavior through the functional options
// pattern.
type IndexOption = domain.IndexOption

// WithIndexPath sets the dot separated field path for the index.
func WithIndexPath(p string) IndexOption {
	return domain.WithIndexPath(p)
}

// WithIndexKind selects the value kind the index extracts.
func WithIndexKind(k IndexKind) IndexOption {
	return domain.WithIndexKind(k)
}

// WithIndexUnique creates a unique index that prevents duplicate values.
func WithIndexUnique(u bool) IndexOption {
	return domain.WithIndexUnique(u)
}

// WithIndexOrder sets the branching order of the index tree.
func WithIndexOrder(o int) IndexOption {
	return domain.WithIndexOrder(o)
}

// WithIndexComparer sets the comparer implementation for ordering keys
// in the index.
func WithIndexComparer(c Comparer) IndexOption {
	return domain.WithIndexComparer(c)
}

// WithIndexFieldNavigator sets the field getter for accessing document
// fields during indexing.
func WithIndexFieldNavigator(f FieldNavigator) IndexOption {
	return domain.WithIndexFieldNavigator(f)
}
