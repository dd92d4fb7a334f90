package domain

import (
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Kind identifies the type held by a [Value]. The zero Kind is
// [KindUndefined], so the zero Value reads as an absent field.
type Kind uint8

// The closed set of value kinds a document field can hold. Every site that
// consumes values (codec, comparer, matcher, index key extraction,
// modifier) switches exhaustively over this enumeration.
const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTime
	KindObjectID
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindBytes:     "bytes",
	KindTime:      "time",
	KindObjectID:  "objectid",
	KindArray:     "array",
	KindObject:    "object",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// OID is a 12 byte opaque identifier value, available to callers that want
// to store their own object ids inside documents. It is unrelated to the
// int64 ids the engine assigns to documents.
type OID [12]byte

// String returns the hexadecimal form of the id.
func (o OID) String() string { return hex.EncodeToString(o[:]) }

// Value is a tagged union holding one of the document value kinds. Values
// are immutable; composite kinds share their backing storage, so callers
// that need an independent copy use [Value.Clone].
type Value struct {
	kind Kind
	num  int64   // Bool (0|1), Int, Time (unix milliseconds)
	fnum float64 // Float
	str  string  // String
	raw  []byte  // Bytes, ObjectID
	arr  []Value // Array
	doc  *Doc    // Object
}

// Undefined returns the value reported for absent fields.
func Undefined() Value { return Value{} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	var n int64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Int returns an integer value. The integer/float distinction is preserved
// through storage and comparison.
func Int(v int64) Value { return Value{kind: KindInt, num: v} }

// Float returns a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, fnum: v} }

// Str returns a string value.
func Str(v string) Value { return Value{kind: KindString, str: v} }

// Bytes returns a binary blob value. The slice is not copied.
func Bytes(v []byte) Value { return Value{kind: KindBytes, raw: v} }

// Time returns a datetime value. Precision is truncated to milliseconds,
// which is what the storage format preserves.
func Time(v time.Time) Value {
	return Value{kind: KindTime, num: v.UnixMilli()}
}

// ObjectID returns an object id value.
func ObjectID(v OID) Value {
	raw := make([]byte, len(v))
	copy(raw, v[:])
	return Value{kind: KindObjectID, raw: raw}
}

// Array returns an array value over the given elements. The slice is not
// copied.
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Object returns a value holding a nested document. The document is not
// copied.
func Object(d *Doc) Value {
	if d == nil {
		d = NewDoc()
	}
	return Value{kind: KindObject, doc: d}
}

// Kind returns the kind tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether the value marks an absent field.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; false for any other kind.
func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Int returns the integer payload; 0 for any other kind.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.num
}

// Float returns the floating point payload; 0 for any other kind.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		return 0
	}
	return v.fnum
}

// Num returns the value on the real number line and whether the value is
// numeric at all. Ints convert losslessly for magnitudes below 2^53.
func (v Value) Num() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindFloat:
		return v.fnum, true
	default:
		return 0, false
	}
}

// Str returns the string payload; "" for any other kind.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Bytes returns the binary payload; nil for any other kind. The slice is
// shared with the value.
func (v Value) Bytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return v.raw
}

// Time returns the datetime payload in UTC; the zero time for any other
// kind.
func (v Value) Time() time.Time {
	if v.kind != KindTime {
		return time.Time{}
	}
	return time.UnixMilli(v.num).UTC()
}

// OID returns the object id payload; the zero id for any other kind.
func (v Value) OID() OID {
	var o OID
	if v.kind == KindObjectID {
		copy(o[:], v.raw)
	}
	return o
}

// Array returns the element slice; nil for any other kind. The slice is
// shared with the value.
func (v Value) Array() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Doc returns the nested document; nil for any other kind. The document is
// shared with the value.
func (v Value) Doc() *Doc {
	if v.kind != KindObject {
		return nil
	}
	return v.doc
}

// UnixMilli returns the raw millisecond payload of a time value without
// building a [time.Time].
func (v Value) UnixMilli() int64 {
	if v.kind != KindTime {
		return 0
	}
	return v.num
}

// Clone returns a value whose composite storage is independent from the
// receiver. Scalars are returned as is.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes, KindObjectID:
		v.raw = slices.Clone(v.raw)
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, el := range v.arr {
			arr[i] = el.Clone()
		}
		v.arr = arr
	case KindObject:
		v.doc = v.doc.Clone()
	}
	return v
}

// Equal reports deep equality. Int and Float compare on the number line,
// so Int(2) equals Float(2).
func (v Value) Equal(o Value) bool {
	if an, ok := v.Num(); ok {
		bn, bok := o.Num()
		return bok && an == bn && !(math.IsNaN(an) || math.IsNaN(bn))
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool, KindTime:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBytes, KindObjectID:
		return slices.Equal(v.raw, o.raw)
	case KindArray:
		return slices.EqualFunc(v.arr, o.arr, Value.Equal)
	case KindObject:
		return v.doc.Equal(o.doc)
	default:
		return false
	}
}

// Interface converts the value to plain Go data: nil, bool, int64,
// float64, string, []byte, time.Time, OID, []any or map[string]any. Used
// by the decoder and the schema validator.
func (v Value) Interface() any {
	switch v.kind {
	case KindUndefined, KindNull:
		return nil
	case KindBool:
		return v.num != 0
	case KindInt:
		return v.num
	case KindFloat:
		return v.fnum
	case KindString:
		return v.str
	case KindBytes:
		return v.raw
	case KindTime:
		return v.Time()
	case KindObjectID:
		return v.OID()
	case KindArray:
		res := make([]any, len(v.arr))
		for i, el := range v.arr {
			res[i] = el.Interface()
		}
		return res
	case KindObject:
		return v.doc.Interface()
	default:
		return nil
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprint(v.num != 0)
	case KindInt:
		return fmt.Sprint(v.num)
	case KindFloat:
		return fmt.Sprint(v.fnum)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	case KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case KindObjectID:
		return v.OID().String()
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, el := range v.arr {
			parts[i] = el.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return v.doc.String()
	default:
		return fmt.Sprintf("kind(%d)", uint8(v.kind))
	}
}
