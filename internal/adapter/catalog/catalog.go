// Package catalog persists the collection directory and per-collection
// metadata. Both live in ordinary pager records encoded with the document
// codec, so they ride the same write-ahead log and page versioning as the
// data they describe.
package catalog

import (
	"math"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// Meta document field names.
const (
	fieldDir      = "dir"
	fieldBuckets  = "buckets"
	fieldNext     = "next"
	fieldCount    = "count"
	fieldCompress = "compress"
	fieldModified = "modified"
	fieldSchema   = "schema"
	fieldIndexes  = "indexes"
	fieldPath     = "path"
	fieldKind     = "kind"
	fieldUnique   = "unique"
)

// Root maps collection names to the records holding their metadata. It is
// stored in the fixed catalog record and rewritten whenever a collection
// is created or dropped.
type Root struct {
	doc *domain.Doc
}

// NewRoot returns an empty collection directory.
func NewRoot() *Root {
	return &Root{doc: domain.NewDoc()}
}

// DecodeRoot parses a stored collection directory.
func DecodeRoot(codec domain.Codec, payload []byte) (*Root, error) {
	if len(payload) == 0 {
		return NewRoot(), nil
	}
	doc, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	for name, v := range doc.Iter() {
		if name == "" {
			return nil, corrupt("catalog holds an unnamed collection")
		}
		if v.Kind() != domain.KindInt || v.Int() < 1 || v.Int() > math.MaxUint32 {
			return nil, corrupt("catalog entry " + name + " holds no record pointer")
		}
	}
	return &Root{doc: doc}, nil
}

// Encode serializes the directory for storage.
func (r *Root) Encode(codec domain.Codec) ([]byte, error) {
	return codec.Encode(r.doc)
}

// Ptr returns the metadata record of the named collection.
func (r *Root) Ptr(name string) (uint32, bool) {
	v, ok := r.doc.GetOk(name)
	if !ok {
		return 0, false
	}
	return uint32(v.Int()), true
}

// Set points name at the given metadata record.
func (r *Root) Set(name string, ptr uint32) {
	r.doc.Set(name, domain.Int(int64(ptr)))
}

// Remove drops name from the directory and reports whether it was listed.
func (r *Root) Remove(name string) bool {
	if !r.doc.Has(name) {
		return false
	}
	r.doc.Unset(name)
	return true
}

// Names returns the collection names in ascending order.
func (r *Root) Names() []string {
	names := slices.Collect(r.doc.Keys())
	slices.Sort(names)
	return names
}

// Len returns the number of collections listed.
func (r *Root) Len() int {
	return r.doc.Len()
}

// Meta is the durable state of one collection. It is rewritten in the same
// transaction as every data mutation, so the id counter and record count
// can never run ahead of or behind the documents on disk.
type Meta struct {
	// Dir is the record holding the bucket directory.
	Dir uint32
	// Buckets is the directory width, a power of two fixed at creation.
	Buckets int
	// Next is the id the next insert takes. Ids are never reused.
	Next int64
	// Count is the number of live documents.
	Count int64
	// Compress deflates record payloads.
	Compress bool
	// Schema holds the JSON schema source enforced on writes, if any.
	Schema string
	// Modified is the time of the last committed write.
	Modified time.Time
	// Indexes describes the secondary indices to rebuild at open.
	Indexes []domain.IndexSpec
}

// DecodeMeta parses a stored collection metadata record.
func DecodeMeta(codec domain.Codec, payload []byte) (*Meta, error) {
	doc, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	m := &Meta{}

	dir, err := metaInt(doc, fieldDir, 1, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	m.Dir = uint32(dir)

	buckets, err := metaInt(doc, fieldBuckets, 1, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	if buckets&(buckets-1) != 0 {
		return nil, corrupt("collection meta: bucket count is not a power of two")
	}
	m.Buckets = int(buckets)

	if m.Next, err = metaInt(doc, fieldNext, 1, math.MaxInt64); err != nil {
		return nil, err
	}
	if m.Count, err = metaInt(doc, fieldCount, 0, math.MaxInt64); err != nil {
		return nil, err
	}

	if v, ok := doc.GetOk(fieldCompress); ok {
		if v.Kind() != domain.KindBool {
			return nil, corrupt("collection meta: compress is not a bool")
		}
		m.Compress = v.Bool()
	}
	if v, ok := doc.GetOk(fieldSchema); ok {
		if v.Kind() != domain.KindString {
			return nil, corrupt("collection meta: schema is not a string")
		}
		m.Schema = v.Str()
	}
	if v, ok := doc.GetOk(fieldModified); ok {
		if v.Kind() != domain.KindTime {
			return nil, corrupt("collection meta: modified is not a time")
		}
		m.Modified = v.Time()
	}

	if v, ok := doc.GetOk(fieldIndexes); ok {
		if v.Kind() != domain.KindArray {
			return nil, corrupt("collection meta: indexes is not an array")
		}
		for _, el := range v.Array() {
			spec, err := decodeIndexSpec(el)
			if err != nil {
				return nil, err
			}
			m.Indexes = append(m.Indexes, spec)
		}
	}
	return m, nil
}

// Encode serializes the metadata for storage.
func (m *Meta) Encode(codec domain.Codec) ([]byte, error) {
	doc := domain.NewDoc(
		domain.Field{Name: fieldDir, Value: domain.Int(int64(m.Dir))},
		domain.Field{Name: fieldBuckets, Value: domain.Int(int64(m.Buckets))},
		domain.Field{Name: fieldNext, Value: domain.Int(m.Next)},
		domain.Field{Name: fieldCount, Value: domain.Int(m.Count)},
		domain.Field{Name: fieldCompress, Value: domain.Bool(m.Compress)},
	)
	if !m.Modified.IsZero() {
		doc.Set(fieldModified, domain.Time(m.Modified))
	}
	if m.Schema != "" {
		doc.Set(fieldSchema, domain.Str(m.Schema))
	}
	if len(m.Indexes) > 0 {
		specs := make([]domain.Value, len(m.Indexes))
		for i, spec := range m.Indexes {
			specs[i] = domain.Object(domain.NewDoc(
				domain.Field{Name: fieldPath, Value: domain.Str(spec.Path)},
				domain.Field{Name: fieldKind, Value: domain.Int(int64(spec.Kind))},
				domain.Field{Name: fieldUnique, Value: domain.Bool(spec.Unique)},
			))
		}
		doc.Set(fieldIndexes, domain.Array(specs...))
	}
	return codec.Encode(doc)
}

// Clone returns an independent copy of the metadata.
func (m *Meta) Clone() *Meta {
	c := *m
	c.Indexes = slices.Clone(m.Indexes)
	return &c
}

func decodeIndexSpec(v domain.Value) (domain.IndexSpec, error) {
	var spec domain.IndexSpec
	if v.Kind() != domain.KindObject {
		return spec, corrupt("collection meta: index entry is not a document")
	}
	doc := v.Doc()

	path, ok := doc.GetOk(fieldPath)
	if !ok || path.Kind() != domain.KindString || path.Str() == "" {
		return spec, corrupt("collection meta: index entry lacks a path")
	}
	spec.Path = path.Str()

	kind, ok := doc.GetOk(fieldKind)
	if !ok || kind.Kind() != domain.KindInt {
		return spec, corrupt("collection meta: index entry lacks a kind")
	}
	switch domain.IndexKind(kind.Int()) {
	case domain.IndexString, domain.IndexNumber, domain.IndexArray:
		spec.Kind = domain.IndexKind(kind.Int())
	default:
		return spec, corrupt("collection meta: unknown index kind")
	}

	if u, ok := doc.GetOk(fieldUnique); ok {
		if u.Kind() != domain.KindBool {
			return spec, corrupt("collection meta: index unique flag is not a bool")
		}
		spec.Unique = u.Bool()
	}
	return spec, nil
}

func metaInt(doc *domain.Doc, field string, min, max int64) (int64, error) {
	v, ok := doc.GetOk(field)
	if !ok || v.Kind() != domain.KindInt {
		return 0, corrupt("collection meta: " + field + " is not an integer")
	}
	if v.Int() < min || v.Int() > max {
		return 0, corrupt("collection meta: " + field + " is out of range")
	}
	return v.Int(), nil
}

func corrupt(detail string) error {
	return &domain.ErrCorruptData{Detail: detail}
}
