package domain

import (
	"os"
	"time"
)

// WithFindProjection specifies which fields to include or exclude from query
// results.
func WithFindProjection(p any) FindOption {
	return func(fo *FindOptions) {
		fo.Projection = p
	}
}

// WithFindSkip sets the number of documents to skip in query results.
func WithFindSkip(s int64) FindOption {
	return func(fo *FindOptions) {
		fo.Skip = s
	}
}

// WithFindLimit sets the maximum number of documents to return.
func WithFindLimit(l int64) FindOption {
	return func(fo *FindOptions) {
		fo.Limit = l
	}
}

// WithFindSort specifies the sort order for query results.
func WithFindSort(s Sort) FindOption {
	return func(fo *FindOptions) {
		fo.Sort = s
	}
}

// FindOption configures query behavior through the functional options pattern.
type FindOption func(*FindOptions)

// FindOptions contains parameters for customizing query execution.
type FindOptions struct {
	// Projection specifies which fields to include or exclude from results.
	Projection any
	// Skip specifies the number of documents to skip.
	Skip int64
	// Limit specifies the maximum number of documents to return.
	Limit int64
	// Sort specifies the sort order for results.
	Sort Sort
}

// WithUpdateMulti enables updating multiple documents that match the query.
func WithUpdateMulti(m bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Multi = m
	}
}

// WithUpsert enables inserting a document if no matches are found.
func WithUpsert(u bool) UpdateOption {
	return func(uo *UpdateOptions) {
		uo.Upsert = u
	}
}

// UpdateOption configures update behavior through the functional options
// pattern.
type UpdateOption func(*UpdateOptions)

// UpdateOptions contains parameters for customizing update operations.
type UpdateOptions struct {
	// Multi enables updating multiple documents that match the query.
	Multi bool
	// Upsert enables inserting a document if no matches are found.
	Upsert bool
}

// WithRemoveMulti enables removing multiple documents that match the query.
func WithRemoveMulti(m bool) RemoveOption {
	return func(ro *RemoveOptions) {
		ro.Multi = m
	}
}

// RemoveOption configures remove behavior through the functional options
// pattern.
type RemoveOption func(*RemoveOptions)

// RemoveOptions contains parameters for customizing remove operations.
type RemoveOptions struct {
	// Multi enables removing multiple documents that match the query.
	Multi bool
}

// WithEnsureIndexPath specifies the field path for the index.
func WithEnsureIndexPath(p string) EnsureIndexOption {
	return func(eio *EnsureIndexOptions) {
		eio.Path = p
	}
}

// WithEnsureIndexKind sets the kind of values the index covers.
func WithEnsureIndexKind(k IndexKind) EnsureIndexOption {
	return func(eio *EnsureIndexOptions) {
		eio.Kind = k
	}
}

// WithEnsureIndexUnique creates a unique index that prevents duplicate values.
func WithEnsureIndexUnique(u bool) EnsureIndexOption {
	return func(eio *EnsureIndexOptions) {
		eio.Unique = u
	}
}

// EnsureIndexOption configures index creation through the functional options
// pattern.
type EnsureIndexOption func(*EnsureIndexOptions)

// EnsureIndexOptions contains parameters for customizing index creation.
type EnsureIndexOptions struct {
	// Path specifies the field path to index, in dot notation.
	Path string
	// Kind specifies the kind of values the index covers.
	Kind IndexKind
	// Unique prevents duplicate values in the indexed field.
	Unique bool
}

// WithProjectorFieldNavigator sets the [FieldNavigator] that will be used by
// [Projector].
func WithProjectorFieldNavigator(fn FieldNavigator) ProjectorOption {
	return func(po *ProjectorOptions) {
		po.FieldNavigator = fn
	}
}

// ProjectorOption configures projector behavior through the functional options
// pattern.
type ProjectorOption func(*ProjectorOptions)

// ProjectorOptions contains parameters for customizing projector behavior.
type ProjectorOptions struct {
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
}

// WithQuerierMatcher sets the matcher implementation for querier evaluations.
func WithQuerierMatcher(m Matcher) QuerierOption {
	return func(qo *QuerierOptions) {
		qo.Matcher = m
	}
}

// WithQuerierComparer sets the comparer implementation for sorting operations.
func WithQuerierComparer(c Comparer) QuerierOption {
	return func(qo *QuerierOptions) {
		qo.Comparer = c
	}
}

// WithQuerierFieldNavigator sets the field getter for accessing document
// fields.
func WithQuerierFieldNavigator(f FieldNavigator) QuerierOption {
	return func(qo *QuerierOptions) {
		qo.FieldNavigator = f
	}
}

// WithQuerierProjector sets the implementation that will be used to project
// the resultant documents.
func WithQuerierProjector(p Projector) QuerierOption {
	return func(qo *QuerierOptions) {
		qo.Projector = p
	}
}

// QuerierOption configures querier behavior through the functional options
// pattern.
type QuerierOption func(*QuerierOptions)

// QuerierOptions contains parameters for customizing querier behavior.
type QuerierOptions struct {
	// Matcher provides query evaluation logic.
	Matcher Matcher
	// Comparer provides sorting operations.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
	// Projector provides field projection.
	Projector Projector
}

// WithQuery sets the query criteria for a [Querier.Query] call.
func WithQuery(q *Doc) QueryOption {
	return func(qo *QueryOptions) {
		qo.Query = q
	}
}

// WithQueryPredicate sets a precompiled predicate for a [Querier.Query] call.
// It takes precedence over [WithQuery].
func WithQueryPredicate(p Predicate) QueryOption {
	return func(qo *QueryOptions) {
		qo.Predicate = p
	}
}

// WithQueryLimit sets the maximum number of documents the query should return.
func WithQueryLimit(l int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Limit = l
	}
}

// WithQuerySkip sets the number of documents the query should skip.
func WithQuerySkip(s int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Skip = s
	}
}

// WithQuerySort sets the sort order for query results.
func WithQuerySort(s Sort) QueryOption {
	return func(qo *QueryOptions) {
		qo.Sort = s
	}
}

// WithQueryProjection specifies which fields to include or exclude in query
// results.
func WithQueryProjection(p map[string]uint8) QueryOption {
	return func(qo *QueryOptions) {
		qo.Projection = p
	}
}

// QueryOption configures query behavior through the functional options pattern.
type QueryOption func(*QueryOptions)

// QueryOptions contains parameters for customizing query behavior.
type QueryOptions struct {
	// Query specifies the criteria for filtering documents.
	Query *Doc
	// Predicate is a precompiled query. When set, Query is ignored.
	Predicate Predicate
	// Limit specifies the maximum number of documents to return.
	Limit int64
	// Skip specifies the number of documents to skip.
	Skip int64
	// Sort specifies the sort order for results.
	Sort Sort
	// Projection specifies which fields to include or exclude.
	Projection map[string]uint8
}

// WithCursorDecoder sets the decoder for converting cursor results.
func WithCursorDecoder(d Decoder) CursorOption {
	return func(co *CursorOptions) {
		co.Decoder = d
	}
}

// WithCursorOnClose registers a function the cursor runs once when closed.
func WithCursorOnClose(f func()) CursorOption {
	return func(co *CursorOptions) {
		co.OnClose = f
	}
}

// CursorOption configures cursor behavior through the functional options
// pattern.
type CursorOption func(*CursorOptions)

// CursorOptions contains parameters for customizing cursor behavior.
type CursorOptions struct {
	// Decoder converts between data representations.
	Decoder Decoder
	// OnClose runs once when the cursor is closed.
	OnClose func()
}

// WithMatcherComparer sets the comparer implementation for value comparisons
// during matching.
func WithMatcherComparer(c Comparer) MatcherOption {
	return func(mo *MatcherOptions) {
		mo.Comparer = c
	}
}

// WithMatcherFieldNavigator sets the field getter for accessing document fields
// during matching.
func WithMatcherFieldNavigator(f FieldNavigator) MatcherOption {
	return func(mo *MatcherOptions) {
		mo.FieldNavigator = f
	}
}

// MatcherOption configures matcher behavior through the functional options
// pattern.
type MatcherOption func(*MatcherOptions)

// MatcherOptions contains parameters for customizing matcher behavior.
type MatcherOptions struct {
	// Comparer provides value comparison operations.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
}

// WithModifierComparer sets the comparer implementation for value comparisons
// during updates.
func WithModifierComparer(c Comparer) ModifierOption {
	return func(mo *ModifierOptions) {
		mo.Comparer = c
	}
}

// WithModifierFieldNavigator sets the field getter for accessing document
// fields during updates.
func WithModifierFieldNavigator(f FieldNavigator) ModifierOption {
	return func(mo *ModifierOptions) {
		mo.FieldNavigator = f
	}
}

// WithModifierMatcher sets the matcher used to evaluate $pull conditions.
func WithModifierMatcher(m Matcher) ModifierOption {
	return func(mo *ModifierOptions) {
		mo.Matcher = m
	}
}

// ModifierOption configures modifier behavior through the functional options
// pattern.
type ModifierOption func(*ModifierOptions)

// ModifierOptions contains parameters for customizing modifier behavior.
type ModifierOptions struct {
	// Comparer provides value comparison operations.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
	// Matcher evaluates $pull conditions against array elements.
	Matcher Matcher
}

// WithPagerPath sets the database file path for the pager.
func WithPagerPath(p string) PagerOption {
	return func(po *PagerOptions) {
		po.Path = p
	}
}

// WithPagerPageSize sets the page size in bytes for newly created files.
func WithPagerPageSize(s int) PagerOption {
	return func(po *PagerOptions) {
		po.PageSize = s
	}
}

// WithPagerMaxFileSize caps the size the data file may grow to.
func WithPagerMaxFileSize(s int64) PagerOption {
	return func(po *PagerOptions) {
		po.MaxFileSize = s
	}
}

// WithPagerCacheSize sets the number of pages kept in the read cache.
func WithPagerCacheSize(s int) PagerOption {
	return func(po *PagerOptions) {
		po.CacheSize = s
	}
}

// WithPagerCreateIfMissing creates the data file when it does not exist.
func WithPagerCreateIfMissing(c bool) PagerOption {
	return func(po *PagerOptions) {
		po.CreateIfMissing = c
	}
}

// WithPagerSyncPolicy controls when commits are flushed to stable storage.
func WithPagerSyncPolicy(s SyncPolicy) PagerOption {
	return func(po *PagerOptions) {
		po.SyncPolicy = s
	}
}

// WithPagerReadOnly opens the data file for reading only.
func WithPagerReadOnly(r bool) PagerOption {
	return func(po *PagerOptions) {
		po.ReadOnly = r
	}
}

// WithPagerTruncate discards any existing content of the data file.
func WithPagerTruncate(t bool) PagerOption {
	return func(po *PagerOptions) {
		po.Truncate = t
	}
}

// WithPagerFileMode sets the file permissions for database files.
func WithPagerFileMode(f os.FileMode) PagerOption {
	return func(po *PagerOptions) {
		po.FileMode = f
	}
}

// WithPagerDirMode sets the directory permissions for database directories.
func WithPagerDirMode(d os.FileMode) PagerOption {
	return func(po *PagerOptions) {
		po.DirMode = d
	}
}

// PagerOption configures pager behavior through the functional options
// pattern.
type PagerOption func(*PagerOptions)

// PagerOptions contains parameters for customizing pager behavior.
type PagerOptions struct {
	// Path specifies the database file path.
	Path string
	// PageSize specifies the page size in bytes for newly created files.
	PageSize int
	// MaxFileSize caps the size the data file may grow to. Zero means no
	// cap.
	MaxFileSize int64
	// CacheSize specifies the number of pages kept in the read cache.
	CacheSize int
	// CreateIfMissing creates the data file when it does not exist.
	CreateIfMissing bool
	// SyncPolicy controls when commits are flushed to stable storage.
	SyncPolicy SyncPolicy
	// ReadOnly opens the data file for reading only.
	ReadOnly bool
	// Truncate discards any existing content of the data file.
	Truncate bool
	// FileMode specifies file permissions for database files.
	FileMode os.FileMode
	// DirMode specifies directory permissions for database directories.
	DirMode os.FileMode
}

// WithIndexPath sets the field path for the index.
func WithIndexPath(p string) IndexOption {
	return func(io *IndexOptions) {
		io.Path = p
	}
}

// WithIndexKind sets the kind of values the index covers.
func WithIndexKind(k IndexKind) IndexOption {
	return func(io *IndexOptions) {
		io.Kind = k
	}
}

// WithIndexUnique creates a unique index that prevents duplicate values.
func WithIndexUnique(u bool) IndexOption {
	return func(io *IndexOptions) {
		io.Unique = u
	}
}

// WithIndexOrder sets the branching order of the index tree.
func WithIndexOrder(o int) IndexOption {
	return func(io *IndexOptions) {
		io.Order = o
	}
}

// WithIndexComparer sets the comparer implementation for key ordering in the
// index.
func WithIndexComparer(c Comparer) IndexOption {
	return func(io *IndexOptions) {
		io.Comparer = c
	}
}

// WithIndexFieldNavigator sets the field getter for accessing document fields
// during indexing.
func WithIndexFieldNavigator(f FieldNavigator) IndexOption {
	return func(io *IndexOptions) {
		io.FieldNavigator = f
	}
}

// IndexOption configures index behavior through the functional options pattern.
type IndexOption func(*IndexOptions)

// IndexOptions contains parameters for customizing index creation and behavior.
type IndexOptions struct {
	// Path specifies the field path to index, in dot notation.
	Path string
	// Kind specifies the kind of values the index covers.
	Kind IndexKind
	// Unique prevents duplicate values in the indexed field.
	Unique bool
	// Order specifies the branching order of the index tree.
	Order int
	// Comparer provides key ordering for the index.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
}

// WithCollectionCreate creates the collection when it does not exist.
func WithCollectionCreate(c bool) CollectionOption {
	return func(co *CollectionOptions) {
		co.Create = c
	}
}

// WithCollectionExpectedRecords hints how many documents the collection is
// expected to hold, sizing its lookup structures accordingly.
func WithCollectionExpectedRecords(n int64) CollectionOption {
	return func(co *CollectionOptions) {
		co.ExpectedRecords = n
	}
}

// WithCollectionCachedRecords sets the number of decoded documents kept in
// an in-memory cache. Zero disables the cache.
func WithCollectionCachedRecords(n int) CollectionOption {
	return func(co *CollectionOptions) {
		co.CachedRecords = n
	}
}

// WithCollectionCompression stores document payloads compressed.
func WithCollectionCompression(c bool) CollectionOption {
	return func(co *CollectionOptions) {
		co.Compression = c
	}
}

// WithCollectionSchema sets a JSON Schema that inserted and updated documents
// must satisfy.
func WithCollectionSchema(s string) CollectionOption {
	return func(co *CollectionOptions) {
		co.Schema = s
	}
}

// WithCollectionPager sets the page store the collection persists to.
func WithCollectionPager(p Pager) CollectionOption {
	return func(co *CollectionOptions) {
		co.Pager = p
	}
}

// WithCollectionCodec sets the codec for document serialization.
func WithCollectionCodec(c Codec) CollectionOption {
	return func(co *CollectionOptions) {
		co.Codec = c
	}
}

// WithCollectionParser sets the parser for converting user values into
// documents.
func WithCollectionParser(p Parser) CollectionOption {
	return func(co *CollectionOptions) {
		co.Parser = p
	}
}

// WithCollectionDecoder sets the decoder for data format conversions.
func WithCollectionDecoder(d Decoder) CollectionOption {
	return func(co *CollectionOptions) {
		co.Decoder = d
	}
}

// WithCollectionComparer sets the comparer for value comparison operations.
func WithCollectionComparer(c Comparer) CollectionOption {
	return func(co *CollectionOptions) {
		co.Comparer = c
	}
}

// WithCollectionFieldNavigator sets the field getter for accessing document
// fields.
func WithCollectionFieldNavigator(f FieldNavigator) CollectionOption {
	return func(co *CollectionOptions) {
		co.FieldNavigator = f
	}
}

// WithCollectionMatcher sets the matcher implementation for query evaluation.
func WithCollectionMatcher(m Matcher) CollectionOption {
	return func(co *CollectionOptions) {
		co.Matcher = m
	}
}

// WithCollectionModifier sets the modifier implementation for document
// updates.
func WithCollectionModifier(m Modifier) CollectionOption {
	return func(co *CollectionOptions) {
		co.Modifier = m
	}
}

// WithCollectionQuerier sets the querier that runs queries over documents.
func WithCollectionQuerier(q Querier) CollectionOption {
	return func(co *CollectionOptions) {
		co.Querier = q
	}
}

// WithCollectionPlanner sets the planner that chooses candidate documents for
// queries.
func WithCollectionPlanner(p Planner) CollectionOption {
	return func(co *CollectionOptions) {
		co.Planner = p
	}
}

// WithCollectionTimeGetter sets the time getter for timestamping operations.
func WithCollectionTimeGetter(t TimeGetter) CollectionOption {
	return func(co *CollectionOptions) {
		co.TimeGetter = t
	}
}

// WithCollectionIndexFactory sets the factory function for creating index
// instances.
func WithCollectionIndexFactory(i func(...IndexOption) (Index, error)) CollectionOption {
	return func(co *CollectionOptions) {
		co.IndexFactory = i
	}
}

// WithCollectionCursorFactory sets the factory function for creating cursor
// instances.
func WithCollectionCursorFactory(c func([]*Doc, ...CursorOption) Cursor) CollectionOption {
	return func(co *CollectionOptions) {
		co.CursorFactory = c
	}
}

// CollectionOption configures collection behavior through the functional
// options pattern.
type CollectionOption func(*CollectionOptions)

// CollectionOptions contains parameters for customizing collection behavior.
type CollectionOptions struct {
	// Create creates the collection when it does not exist.
	Create bool
	// ExpectedRecords hints how many documents the collection is expected
	// to hold.
	ExpectedRecords int64
	// CachedRecords specifies the number of decoded documents kept in an
	// in-memory cache. Zero disables the cache.
	CachedRecords int
	// Compression stores document payloads compressed.
	Compression bool
	// Schema is a JSON Schema that inserted and updated documents must
	// satisfy. Empty disables validation.
	Schema string
	// Pager is the page store the collection persists to.
	Pager Pager
	// Codec converts documents to and from bytes.
	Codec Codec
	// Parser converts user values into documents.
	Parser Parser
	// Decoder converts between data representations.
	Decoder Decoder
	// Comparer provides value comparison operations.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
	// Matcher evaluates whether documents match query criteria.
	Matcher Matcher
	// Modifier applies update operations to documents.
	Modifier Modifier
	// Querier allows filtering, ordering, limiting and projecting docs.
	Querier Querier
	// Planner chooses candidate documents for queries.
	Planner Planner
	// TimeGetter provides current time for timestamping operations.
	TimeGetter TimeGetter
	// IndexFactory creates index instances.
	IndexFactory func(...IndexOption) (Index, error)
	// CursorFactory creates cursor instances.
	CursorFactory func([]*Doc, ...CursorOption) Cursor
}

// WithDatabasePath sets the database file path.
func WithDatabasePath(p string) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Path = p
	}
}

// WithDatabaseCreateIfMissing creates the database file when it does not
// exist.
func WithDatabaseCreateIfMissing(c bool) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.CreateIfMissing = c
	}
}

// WithDatabaseMaxFileSize caps the size the database file may grow to.
func WithDatabaseMaxFileSize(s int64) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.MaxFileSize = s
	}
}

// WithDatabasePageSize sets the page size in bytes for newly created files.
func WithDatabasePageSize(s int) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.PageSize = s
	}
}

// WithDatabaseCacheSize sets the number of pages kept in the read cache.
func WithDatabaseCacheSize(s int) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.CacheSize = s
	}
}

// WithDatabaseSyncPolicy controls when commits are flushed to stable storage.
func WithDatabaseSyncPolicy(s SyncPolicy) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.SyncPolicy = s
	}
}

// WithDatabaseSyncInterval sets how often commits are flushed under
// [SyncPeriodic].
func WithDatabaseSyncInterval(d time.Duration) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.SyncInterval = d
	}
}

// WithDatabaseTruncate discards any existing content of the database file.
func WithDatabaseTruncate(t bool) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Truncate = t
	}
}

// WithDatabaseReadOnly opens the database for reading only.
func WithDatabaseReadOnly(r bool) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.ReadOnly = r
	}
}

// WithDatabaseNoLock skips the lock file that guards against concurrent
// processes opening the same database.
func WithDatabaseNoLock(n bool) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.NoLock = n
	}
}

// WithDatabaseFileMode sets the file permissions for database files.
func WithDatabaseFileMode(f os.FileMode) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.FileMode = f
	}
}

// WithDatabaseDirMode sets the directory permissions for database
// directories.
func WithDatabaseDirMode(d os.FileMode) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.DirMode = d
	}
}

// WithDatabasePager sets the page store implementation for data storage.
func WithDatabasePager(p Pager) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Pager = p
	}
}

// WithDatabaseCodec sets the codec for document serialization.
func WithDatabaseCodec(c Codec) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Codec = c
	}
}

// WithDatabaseParser sets the parser for converting user values into
// documents.
func WithDatabaseParser(p Parser) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Parser = p
	}
}

// WithDatabaseDecoder sets the decoder for data format conversions.
func WithDatabaseDecoder(d Decoder) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Decoder = d
	}
}

// WithDatabaseComparer sets the comparer for value comparison operations.
func WithDatabaseComparer(c Comparer) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Comparer = c
	}
}

// WithDatabaseFieldNavigator sets the field getter for accessing document
// fields.
func WithDatabaseFieldNavigator(f FieldNavigator) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.FieldNavigator = f
	}
}

// WithDatabaseMatcher sets the matcher implementation for query evaluation.
func WithDatabaseMatcher(m Matcher) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Matcher = m
	}
}

// WithDatabaseModifier sets the modifier implementation for document updates.
func WithDatabaseModifier(m Modifier) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Modifier = m
	}
}

// WithDatabaseQuerier sets the querier that runs queries over documents.
func WithDatabaseQuerier(q Querier) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Querier = q
	}
}

// WithDatabasePlanner sets the planner that chooses candidate documents for
// queries.
func WithDatabasePlanner(p Planner) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.Planner = p
	}
}

// WithDatabaseTimeGetter sets the time getter for timestamping operations.
func WithDatabaseTimeGetter(t TimeGetter) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.TimeGetter = t
	}
}

// WithDatabaseCollectionFactory sets the factory function for creating
// collection instances.
func WithDatabaseCollectionFactory(f func(string, ...CollectionOption) (Collection, error)) DatabaseOption {
	return func(dbo *DatabaseOptions) {
		dbo.CollectionFactory = f
	}
}

// DatabaseOption configures database behavior through the functional options
// pattern.
type DatabaseOption func(*DatabaseOptions)

// DatabaseOptions contains parameters for customizing database behavior.
type DatabaseOptions struct {
	// Path specifies the database file path.
	Path string
	// CreateIfMissing creates the database file when it does not exist.
	CreateIfMissing bool
	// MaxFileSize caps the size the database file may grow to. Zero means
	// no cap.
	MaxFileSize int64
	// PageSize specifies the page size in bytes for newly created files.
	PageSize int
	// CacheSize specifies the number of pages kept in the read cache.
	CacheSize int
	// SyncPolicy controls when commits are flushed to stable storage.
	SyncPolicy SyncPolicy
	// SyncInterval specifies how often commits are flushed under
	// [SyncPeriodic].
	SyncInterval time.Duration
	// Truncate discards any existing content of the database file.
	Truncate bool
	// ReadOnly opens the database for reading only.
	ReadOnly bool
	// NoLock skips the lock file that guards against concurrent processes
	// opening the same database.
	NoLock bool
	// FileMode specifies file permissions for database files.
	FileMode os.FileMode
	// DirMode specifies directory permissions for database directories.
	DirMode os.FileMode
	// Pager manages page-level storage for the database file.
	Pager Pager
	// Codec converts documents to and from bytes.
	Codec Codec
	// Parser converts user values into documents.
	Parser Parser
	// Decoder converts between data representations.
	Decoder Decoder
	// Comparer provides value comparison operations.
	Comparer Comparer
	// FieldNavigator provides field access operations.
	FieldNavigator FieldNavigator
	// Matcher evaluates whether documents match query criteria.
	Matcher Matcher
	// Modifier applies update operations to documents.
	Modifier Modifier
	// Querier allows filtering, ordering, limiting and projecting docs.
	Querier Querier
	// Planner chooses candidate documents for queries.
	Planner Planner
	// TimeGetter provides current time for timestamping operations.
	TimeGetter TimeGetter
	// CollectionFactory creates collection instances.
	CollectionFactory func(string, ...CollectionOption) (Collection, error)
}
