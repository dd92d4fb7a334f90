package domain

import (
	"iter"
	"strings"
)

// IDField is the reserved field name through which queries and results
// address the engine-assigned document id. The id is engine metadata, not
// part of the stored document body, and cannot be set by update operators.
const IDField = "_id"

// Field is a single named entry of a [Doc].
type Field struct {
	Name  string
	Value Value
}

// Doc is an ordered mapping from field name to [Value]. Field names are
// unique; insertion order is preserved through encoding and decoding.
//
// The zero Doc is not usable; use [NewDoc].
type Doc struct {
	fields []Field
	index  map[string]int
}

// NewDoc creates a document from the given fields. A later duplicate name
// replaces the earlier value in place.
func NewDoc(fields ...Field) *Doc {
	d := &Doc{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		d.Set(f.Name, f.Value)
	}
	return d
}

// Len returns the number of fields.
func (d *Doc) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Has reports whether the field exists.
func (d *Doc) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[name]
	return ok
}

// Get returns the value of the named field, or [Undefined] when the field
// is absent.
func (d *Doc) Get(name string) Value {
	v, _ := d.GetOk(name)
	return v
}

// GetOk returns the value of the named field and whether it exists.
func (d *Doc) GetOk(name string) (Value, bool) {
	if d == nil {
		return Undefined(), false
	}
	i, ok := d.index[name]
	if !ok {
		return Undefined(), false
	}
	return d.fields[i].Value, true
}

// Set stores the value under name, replacing an existing field in place or
// appending a new one.
func (d *Doc) Set(name string, value Value) {
	if i, ok := d.index[name]; ok {
		d.fields[i].Value = value
		return
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, Field{Name: name, Value: value})
}

// Unset removes the named field, preserving the order of the remaining
// fields. Removing an absent field is a no-op.
func (d *Doc) Unset(name string) {
	i, ok := d.index[name]
	if !ok {
		return
	}
	d.fields = append(d.fields[:i], d.fields[i+1:]...)
	delete(d.index, name)
	for n := i; n < len(d.fields); n++ {
		d.index[d.fields[n].Name] = n
	}
}

// Fields returns the backing field slice in document order. The slice is
// shared with the document and must not be mutated.
func (d *Doc) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// Iter iterates fields in document order.
func (d *Doc) Iter() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, f := range d.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// Keys iterates field names in document order.
func (d *Doc) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		if d == nil {
			return
		}
		for _, f := range d.fields {
			if !yield(f.Name) {
				return
			}
		}
	}
}

// Values iterates field values in document order.
func (d *Doc) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		if d == nil {
			return
		}
		for _, f := range d.fields {
			if !yield(f.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (d *Doc) Clone() *Doc {
	if d == nil {
		return nil
	}
	res := &Doc{
		fields: make([]Field, len(d.fields)),
		index:  make(map[string]int, len(d.index)),
	}
	for i, f := range d.fields {
		res.fields[i] = Field{Name: f.Name, Value: f.Value.Clone()}
		res.index[f.Name] = i
	}
	return res
}

// Equal reports deep equality including field order.
func (d *Doc) Equal(o *Doc) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, f := range d.Fields() {
		of := o.Fields()[i]
		if f.Name != of.Name || !f.Value.Equal(of.Value) {
			return false
		}
	}
	return true
}

// Interface converts the document to a map[string]any of plain Go data.
// Field order is lost; the decoder and the schema validator are the
// intended consumers.
func (d *Doc) Interface() map[string]any {
	if d == nil {
		return nil
	}
	res := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		res[f.Name] = f.Value.Interface()
	}
	return res
}

// String renders the document for diagnostics.
func (d *Doc) String() string {
	if d == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}
