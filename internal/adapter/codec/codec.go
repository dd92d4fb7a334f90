// Package codec contains the default [domain.Codec] implementation: a
// little-endian, type-tagged binary layout for documents. Containers
// carry a byte-length prefix, so readers can skip a value without
// decoding it; DecodeFields relies on that to pull single fields out of
// large documents.
//
// Layout, one tagged value:
//
//	null                 0x01
//	bool                 0x02 | 1 byte
//	int                  0x03 | int64, 8 bytes
//	float                0x04 | IEEE 754 bits, 8 bytes
//	string               0x05 | u32 byte length | bytes
//	bytes                0x06 | u32 byte length | bytes
//	time                 0x07 | unix milliseconds int64, 8 bytes
//	object id            0x08 | 12 bytes
//	array                0x09 | u32 body length | elements
//	object               0x0a | u32 body length | fields
//
// An object field is a u16 key length, the key bytes, then the tagged
// value. A document is a single top-level object.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

type tag byte

const (
	tagInvalid tag = iota
	tagNull
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagTime
	tagObjectID
	tagArray
	tagObject
)

// lenSize is the width of a container length prefix, keySize the width
// of a field key length.
const (
	lenSize = 4
	keySize = 2
)

var (
	// ErrUndefinedValue is returned when a document holds an undefined
	// value. Undefined marks absence and has no stored form.
	ErrUndefinedValue = errors.New("cannot encode undefined values")

	// ErrKeyTooLong is returned for field names above 65535 bytes.
	ErrKeyTooLong = errors.New("field name does not fit a 16 bit length")
)

// Codec implements [domain.Codec].
type Codec struct{}

// NewCodec returns a new implementation of [domain.Codec].
func NewCodec() domain.Codec {
	return &Codec{}
}

// Encode implements [domain.Codec].
func (c *Codec) Encode(doc *domain.Doc) ([]byte, error) {
	return c.appendDoc(make([]byte, 0, 16+16*doc.Len()), doc)
}

func (c *Codec) appendDoc(b []byte, doc *domain.Doc) ([]byte, error) {
	b = append(b, byte(tagObject))
	lenAt := len(b)
	b = append(b, 0, 0, 0, 0)
	start := len(b)

	var err error
	for name, val := range doc.Iter() {
		if len(name) > math.MaxUint16 {
			return nil, ErrKeyTooLong
		}
		b = binary.LittleEndian.AppendUint16(b, uint16(len(name)))
		b = append(b, name...)
		if b, err = c.appendValue(b, val); err != nil {
			return nil, err
		}
	}

	binary.LittleEndian.PutUint32(b[lenAt:], uint32(len(b)-start))
	return b, nil
}

func (c *Codec) appendValue(b []byte, v domain.Value) ([]byte, error) {
	switch v.Kind() {
	case domain.KindNull:
		return append(b, byte(tagNull)), nil
	case domain.KindBool:
		if v.Bool() {
			return append(b, byte(tagBool), 1), nil
		}
		return append(b, byte(tagBool), 0), nil
	case domain.KindInt:
		b = append(b, byte(tagInt))
		return binary.LittleEndian.AppendUint64(b, uint64(v.Int())), nil
	case domain.KindFloat:
		b = append(b, byte(tagFloat))
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(v.Float())), nil
	case domain.KindString:
		s := v.Str()
		b = append(b, byte(tagString))
		b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
		return append(b, s...), nil
	case domain.KindBytes:
		raw := v.Bytes()
		b = append(b, byte(tagBytes))
		b = binary.LittleEndian.AppendUint32(b, uint32(len(raw)))
		return append(b, raw...), nil
	case domain.KindTime:
		b = append(b, byte(tagTime))
		return binary.LittleEndian.AppendUint64(b, uint64(v.UnixMilli())), nil
	case domain.KindObjectID:
		oid := v.OID()
		b = append(b, byte(tagObjectID))
		return append(b, oid[:]...), nil
	case domain.KindArray:
		b = append(b, byte(tagArray))
		lenAt := len(b)
		b = append(b, 0, 0, 0, 0)
		start := len(b)
		var err error
		for _, el := range v.Array() {
			if b, err = c.appendValue(b, el); err != nil {
				return nil, err
			}
		}
		binary.LittleEndian.PutUint32(b[lenAt:], uint32(len(b)-start))
		return b, nil
	case domain.KindObject:
		return c.appendDoc(b, v.Doc())
	default:
		return nil, ErrUndefinedValue
	}
}

// Decode implements [domain.Codec].
func (c *Codec) Decode(data []byte) (*domain.Doc, error) {
	doc, end, err := c.decodeDoc(data, 0)
	if err != nil {
		return nil, err
	}
	if end != len(data) {
		return nil, corrupt(end, "trailing bytes after document")
	}
	return doc, nil
}

// DecodeFields implements [domain.Codec]. Only the named top-level
// fields are decoded; everything else is skipped by its length prefix.
// Requested fields missing from the document are simply absent from the
// result.
func (c *Codec) DecodeFields(data []byte, fields ...string) (*domain.Doc, error) {
	end, err := c.containerEnd(data, 0, tagObject)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	doc := domain.NewDoc()
	i := 1 + lenSize
	for i < end && len(want) > 0 {
		key, n, err := c.decodeKey(data, i)
		if err != nil {
			return nil, err
		}
		if want[key] {
			val, m, err := c.decodeValue(data, n)
			if err != nil {
				return nil, err
			}
			doc.Set(key, val)
			delete(want, key)
			i = m
			continue
		}
		if i, err = c.skipValue(data, n); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (c *Codec) decodeDoc(data []byte, off int) (*domain.Doc, int, error) {
	end, err := c.containerEnd(data, off, tagObject)
	if err != nil {
		return nil, 0, err
	}

	doc := domain.NewDoc()
	i := off + 1 + lenSize
	for i < end {
		key, n, err := c.decodeKey(data, i)
		if err != nil {
			return nil, 0, err
		}
		val, m, err := c.decodeValue(data, n)
		if err != nil {
			return nil, 0, err
		}
		if m > end {
			return nil, 0, corrupt(n, "value crosses object boundary")
		}
		doc.Set(key, val)
		i = m
	}
	return doc, end, nil
}

func (c *Codec) decodeKey(data []byte, off int) (string, int, error) {
	if off+keySize > len(data) {
		return "", 0, corrupt(off, "truncated field key length")
	}
	n := int(binary.LittleEndian.Uint16(data[off:]))
	off += keySize
	if off+n > len(data) {
		return "", 0, corrupt(off, "truncated field key")
	}
	return string(data[off : off+n]), off + n, nil
}

func (c *Codec) decodeValue(data []byte, off int) (domain.Value, int, error) {
	if off >= len(data) {
		return domain.Value{}, 0, corrupt(off, "unexpected end of value")
	}
	switch tag(data[off]) {
	case tagNull:
		return domain.Null(), off + 1, nil
	case tagBool:
		if off+2 > len(data) {
			return domain.Value{}, 0, corrupt(off, "truncated bool")
		}
		return domain.Bool(data[off+1] != 0), off + 2, nil
	case tagInt:
		u, end, err := c.fixed64(data, off, "int")
		if err != nil {
			return domain.Value{}, 0, err
		}
		return domain.Int(int64(u)), end, nil
	case tagFloat:
		u, end, err := c.fixed64(data, off, "float")
		if err != nil {
			return domain.Value{}, 0, err
		}
		return domain.Float(math.Float64frombits(u)), end, nil
	case tagString:
		end, err := c.containerEnd(data, off, tagString)
		if err != nil {
			return domain.Value{}, 0, err
		}
		return domain.Str(string(data[off+1+lenSize : end])), end, nil
	case tagBytes:
		end, err := c.containerEnd(data, off, tagBytes)
		if err != nil {
			return domain.Value{}, 0, err
		}
		raw := make([]byte, end-off-1-lenSize)
		copy(raw, data[off+1+lenSize:end])
		return domain.Bytes(raw), end, nil
	case tagTime:
		u, end, err := c.fixed64(data, off, "time")
		if err != nil {
			return domain.Value{}, 0, err
		}
		return domain.Time(time.UnixMilli(int64(u))), end, nil
	case tagObjectID:
		if off+1+12 > len(data) {
			return domain.Value{}, 0, corrupt(off, "truncated object id")
		}
		var oid domain.OID
		copy(oid[:], data[off+1:])
		return domain.ObjectID(oid), off + 1 + 12, nil
	case tagArray:
		end, err := c.containerEnd(data, off, tagArray)
		if err != nil {
			return domain.Value{}, 0, err
		}
		var elems []domain.Value
		i := off + 1 + lenSize
		for i < end {
			el, n, err := c.decodeValue(data, i)
			if err != nil {
				return domain.Value{}, 0, err
			}
			if n > end {
				return domain.Value{}, 0, corrupt(i, "element crosses array boundary")
			}
			elems = append(elems, el)
			i = n
		}
		return domain.Array(elems...), end, nil
	case tagObject:
		doc, end, err := c.decodeDoc(data, off)
		if err != nil {
			return domain.Value{}, 0, err
		}
		return domain.Object(doc), end, nil
	default:
		return domain.Value{}, 0, corrupt(off, fmt.Sprintf("unknown value tag 0x%02x", data[off]))
	}
}

// skipValue advances past the value at off without building it.
func (c *Codec) skipValue(data []byte, off int) (int, error) {
	if off >= len(data) {
		return 0, corrupt(off, "unexpected end of value")
	}
	switch tag(data[off]) {
	case tagNull:
		return off + 1, nil
	case tagBool:
		return c.need(data, off, 2, "bool")
	case tagInt, tagFloat, tagTime:
		return c.need(data, off, 9, "number")
	case tagObjectID:
		return c.need(data, off, 13, "object id")
	case tagString, tagBytes, tagArray, tagObject:
		return c.containerEnd(data, off, tag(data[off]))
	default:
		return 0, corrupt(off, fmt.Sprintf("unknown value tag 0x%02x", data[off]))
	}
}

// containerEnd checks the tag at off and resolves the container's end
// offset from its length prefix.
func (c *Codec) containerEnd(data []byte, off int, want tag) (int, error) {
	if off >= len(data) {
		return 0, corrupt(off, "unexpected end of data")
	}
	if tag(data[off]) != want {
		return 0, corrupt(off, fmt.Sprintf("unexpected tag 0x%02x", data[off]))
	}
	if off+1+lenSize > len(data) {
		return 0, corrupt(off, "truncated length prefix")
	}
	end := off + 1 + lenSize + int(binary.LittleEndian.Uint32(data[off+1:]))
	if end > len(data) {
		return 0, corrupt(off, "length prefix past end of data")
	}
	return end, nil
}

func (c *Codec) fixed64(data []byte, off int, what string) (uint64, int, error) {
	if off+9 > len(data) {
		return 0, 0, corrupt(off, "truncated "+what)
	}
	return binary.LittleEndian.Uint64(data[off+1:]), off + 9, nil
}

func (c *Codec) need(data []byte, off, n int, what string) (int, error) {
	if off+n > len(data) {
		return 0, corrupt(off, "truncated "+what)
	}
	return off + n, nil
}

func corrupt(off int, detail string) error {
	return &domain.ErrCorruptData{Offset: off, Detail: detail}
}
