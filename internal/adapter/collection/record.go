package collection

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"io"
	"slices"

	"github.com/klauspost/compress/zlib"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// Document record layout. Every record starts with the document id, the
// pointer of the next record in the same bucket chain and a flag byte;
// the encoded body follows. The header sits at fixed offsets so chain
// surgery can patch the next pointer without rewriting the body.
const (
	offID     = 0
	offNext   = 8
	offFlags  = 12
	docHeader = 13

	flagDeflated byte = 1 << 0
)

// Bucket directory sizing. Without a record count hint the directory gets
// defaultBuckets slots; with one it is sized for about bucketLoad
// documents per chain.
const (
	defaultBuckets = 1024
	minBuckets     = 64
	maxBuckets     = 1 << 20
	bucketLoad     = 8
)

// maxChain bounds bucket chain walks so a corrupt next pointer cannot
// loop forever.
const maxChain = 1 << 24

// bucketCount returns the directory width for an expected record count,
// always a power of two.
func bucketCount(expected int64) int {
	if expected <= 0 {
		return defaultBuckets
	}
	n := minBuckets
	for int64(n)*bucketLoad < expected && n < maxBuckets {
		n <<= 1
	}
	return n
}

// docRecord assembles a document record from its header fields and body.
func docRecord(id int64, next uint32, flags byte, body []byte) []byte {
	rec := make([]byte, docHeader+len(body))
	binary.LittleEndian.PutUint64(rec[offID:], uint64(id))
	binary.LittleEndian.PutUint32(rec[offNext:], next)
	rec[offFlags] = flags
	copy(rec[docHeader:], body)
	return rec
}

// parseDocRecord splits a record payload into its header fields and body.
func parseDocRecord(payload []byte) (id int64, next uint32, flags byte, body []byte, err error) {
	if len(payload) < docHeader {
		return 0, 0, 0, nil, &domain.ErrCorruptData{Detail: "short document record"}
	}
	id = int64(binary.LittleEndian.Uint64(payload[offID:]))
	next = binary.LittleEndian.Uint32(payload[offNext:])
	flags = payload[offFlags]
	return id, next, flags, payload[docHeader:], nil
}

// dirPayload serializes the bucket directory: a slot count followed by one
// head pointer per bucket.
func dirPayload(heads []uint32) []byte {
	p := make([]byte, 4+4*len(heads))
	binary.LittleEndian.PutUint32(p, uint32(len(heads)))
	for n, head := range heads {
		binary.LittleEndian.PutUint32(p[4+4*n:], head)
	}
	return p
}

// parseDir reads a bucket directory payload back into its head pointers.
func parseDir(payload []byte) ([]uint32, error) {
	if len(payload) < 4 {
		return nil, &domain.ErrCorruptData{Detail: "short bucket directory"}
	}
	n := int(binary.LittleEndian.Uint32(payload))
	if n < 1 || n > maxBuckets || len(payload) < 4+4*n {
		return nil, &domain.ErrCorruptData{Detail: "bucket directory count disagrees with its payload"}
	}
	heads := make([]uint32, n)
	for i := range heads {
		heads[i] = binary.LittleEndian.Uint32(payload[4+4*i:])
	}
	return heads, nil
}

// slotOffset returns the byte offset of a bucket's head pointer inside the
// directory record.
func slotOffset(bucket uint32) int64 {
	return int64(4 + 4*bucket)
}

// bucketOf maps a document id onto a directory slot. Ids are sequential,
// so masking spreads them evenly.
func bucketOf(id int64, buckets int) uint32 {
	return uint32(id) & uint32(buckets-1)
}

// ptrBytes encodes a record pointer for in-place patching of a chain link
// or a directory slot.
func ptrBytes(ptr uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, ptr)
	return b
}

// deflate compresses a record body.
func deflate(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inflate undoes deflate. Damage to the compressed stream surfaces as
// corrupt data.
func inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ErrCorruptData{Detail: "record body will not inflate"}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &domain.ErrCorruptData{Detail: "record body will not inflate"}
	}
	return out, nil
}

// withID returns doc with the engine id stamped as its first field. Stored
// bodies never carry the id; it is attached on the way out.
func withID(id int64, doc *domain.Doc) *domain.Doc {
	fields := doc.Fields()
	all := make([]domain.Field, 0, len(fields)+1)
	all = append(all, domain.Field{Name: domain.IDField, Value: domain.Int(id)})
	all = append(all, fields...)
	return domain.NewDoc(all...)
}

// stripID returns doc without its id field, for encoding.
func stripID(doc *domain.Doc) *domain.Doc {
	if !doc.Has(domain.IDField) {
		return doc
	}
	fields := doc.Fields()
	kept := make([]domain.Field, 0, len(fields)-1)
	for _, f := range fields {
		if f.Name != domain.IDField {
			kept = append(kept, f)
		}
	}
	return domain.NewDoc(kept...)
}

// idPtr pairs a document id with the record holding it.
type idPtr struct {
	id  int64
	ptr uint32
}

// fetchFunc reads one record payload, either from a snapshot or from a
// transaction's view.
type fetchFunc func(uint32) ([]byte, error)

// scanPairs walks every bucket chain and returns the live documents as
// (id, record) pairs in ascending id order.
func scanPairs(read fetchFunc, heads []uint32) ([]idPtr, error) {
	var pairs []idPtr
	for _, head := range heads {
		for ptr, n := head, 0; ptr != 0; n++ {
			if n >= maxChain {
				return nil, &domain.ErrCorruptData{Detail: "bucket chain cycles"}
			}
			payload, err := read(ptr)
			if err != nil {
				return nil, err
			}
			id, next, _, _, err := parseDocRecord(payload)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, idPtr{id: id, ptr: ptr})
			ptr = next
		}
	}
	slices.SortFunc(pairs, func(a, b idPtr) int {
		return cmp.Compare(a.id, b.id)
	})
	return pairs, nil
}

// findInChain walks one bucket chain for id. It returns the record
// pointer, the predecessor record (zero when id heads the chain) and the
// record payload, or all zero values when the id is absent.
func findInChain(read fetchFunc, head uint32, id int64) (uint32, uint32, []byte, error) {
	var prev uint32
	for ptr, n := head, 0; ptr != 0; n++ {
		if n >= maxChain {
			return 0, 0, nil, &domain.ErrCorruptData{Detail: "bucket chain cycles"}
		}
		payload, err := read(ptr)
		if err != nil {
			return 0, 0, nil, err
		}
		recID, next, _, _, err := parseDocRecord(payload)
		if err != nil {
			return 0, 0, nil, err
		}
		if recID == id {
			return ptr, prev, payload, nil
		}
		prev = ptr
		ptr = next
	}
	return 0, 0, nil, nil
}
