package domain

import (
	"github.com/google/uuid"
)

// IndexKind selects which value kind an index extracts and orders.
type IndexKind uint8

// The typed index kinds. A string index covers string values, a number
// index covers ints and floats on the real number line, and an array index
// covers the string and number elements of array values, each element
// keyed separately. Documents lacking the indexed path, or holding a value
// of a non-matching kind, are absent from the index.
const (
	IndexString IndexKind = iota + 1
	IndexNumber
	IndexArray
)

var indexKindNames = [...]string{
	IndexString: "string",
	IndexNumber: "number",
	IndexArray:  "array",
}

// String returns the lowercase name of the index kind.
func (k IndexKind) String() string {
	if int(k) < len(indexKindNames) && indexKindNames[k] != "" {
		return indexKindNames[k]
	}
	return "unknown"
}

// IndexSpec describes one index of a collection.
type IndexSpec struct {
	// Path is the dot separated field path the index covers.
	Path string
	// Kind selects the value kind the index extracts.
	Kind IndexKind
	// Unique rejects two documents holding an equal key.
	Unique bool
	// Records holds the number of keyed entries, populated on metadata
	// queries.
	Records int64
}

// SyncPolicy controls when the write-ahead log is fsynced.
type SyncPolicy uint8

const (
	// SyncPerCommit fsyncs the log on every commit. The durable default.
	SyncPerCommit SyncPolicy = iota
	// SyncPeriodic fsyncs the log from a background flusher on a fixed
	// interval, bounding data loss to that window.
	SyncPeriodic
	// SyncManual fsyncs only on [JEDB.Sync] and [JEDB.Close].
	SyncManual
)

// Sort represents an ordered list of fields which should be used to sort
// query results, applied in sequence.
type Sort = []SortName

// SortName represents a single field and the order which should be used to
// sort it. A positive Order value means ascending order and a negative
// value means descending order.
type SortName struct {
	Key   string
	Order int64
}

// RangeBound is one end of an index range lookup.
type RangeBound struct {
	// Value is the bounding key. An undefined value leaves the end open.
	Value Value
	// Inclusive includes documents whose key equals Value.
	Inclusive bool
}

// Metadata describes an open database: its file, identity and the
// collections it holds.
type Metadata struct {
	// Path is the data file path.
	Path string
	// Size is the current data file size in bytes.
	Size int64
	// PageSize is the page size the file was created with.
	PageSize int
	// UUID is the database identity stamped in the header at creation
	// and into the write-ahead log for pairing.
	UUID uuid.UUID
	// Collections describes every collection, sorted by name.
	Collections []CollectionMetadata
}

// CollectionMetadata describes one collection for [JEDB.Metadata].
type CollectionMetadata struct {
	// Name is the collection name.
	Name string
	// Records is the number of live documents.
	Records int64
	// Buckets is the size of the primary keyspace directory.
	Buckets int
	// Compressed reports whether record payloads are deflated.
	Compressed bool
	// Indexes describes the collection's secondary indices.
	Indexes []IndexSpec
}

// DocUpdate carries the before and after versions of a document through
// index re-keying.
type DocUpdate struct {
	ID     int64
	OldDoc *Doc
	NewDoc *Doc
}
