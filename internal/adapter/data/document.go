// Package data contains the default [domain.Parser] implementation. It
// turns arbitrary Go values (maps, structs, slices and scalars) into
// documents, and ships an order-preserving JSON reader for the same
// purpose.
package data

import (
	"encoding/json"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"
	"github.com/google/uuid"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// TagName is the struct tag consulted when parsing struct fields. The
// tag grammar follows encoding/json: the first segment renames the
// field, "-" drops it, and the omitempty and omitzero segments skip
// nil and zero values respectively.
const TagName = "jedb"

var (
	timeTyp  = goreflect.TypeOf(*new(time.Time))
	oidTyp   = goreflect.TypeOf(domain.OID{})
	uuidTyp  = goreflect.TypeOf(uuid.UUID{})
	valueTyp = goreflect.TypeOf(domain.Value{})
	docTyp   = goreflect.TypeOf(domain.Doc{})
)

// Parser implements [domain.Parser].
type Parser struct{}

// NewParser returns a new [Parser].
func NewParser() domain.Parser {
	return &Parser{}
}

// Parse builds a document from in. Accepted shapes are documents
// themselves, maps with string keys, structs and [encoding/json.RawMessage]
// bytes holding a JSON object. Map keys are emitted in ascending order so
// that the same map always produces the same document; struct fields keep
// their declaration order.
func (p *Parser) Parse(in any) (*domain.Doc, error) {
	if doc, ok, err := p.parseSimple(in); ok {
		return doc, err
	}
	r := goreflect.ValueNoEscapeOf(in)
	k := r.Kind()
	for k == goreflect.Interface || k == reflect.Pointer {
		r = r.Elem()
		k = r.Kind()
	}
	switch k {
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return nil, &domain.ErrDocumentType{Value: in}
		}
		return p.parseStruct(r)
	case goreflect.Map:
		return p.parseMapReflect(r)
	default:
		return nil, &domain.ErrDocumentType{Value: in}
	}
}

// ParseValue converts a single Go value into a [domain.Value].
func (p *Parser) ParseValue(in any) (domain.Value, error) {
	return p.parseValue(in)
}

// parseSimple resolves the document shapes that do not need reflection.
// The second return reports whether in was handled.
func (p *Parser) parseSimple(in any) (*domain.Doc, bool, error) {
	switch t := in.(type) {
	case nil:
		return domain.NewDoc(), true, nil
	case *domain.Doc:
		return t, true, nil
	case domain.Doc:
		return &t, true, nil
	case domain.Value:
		if t.Kind() == domain.KindObject {
			return t.Doc(), true, nil
		}
		return nil, true, &domain.ErrDocumentType{Value: in}
	case json.RawMessage:
		doc, err := ParseJSON(t)
		return doc, true, err
	case map[string]any:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]domain.Value:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]string:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]int:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]int64:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]float64:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]bool:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	case map[string]time.Time:
		doc, err := parseStringMap(p, t)
		return doc, true, err
	}
	return nil, false, nil
}

// parseStringMap builds a document from a map with plain string keys,
// visiting the keys in ascending order.
func parseStringMap[T any](p *Parser, m map[string]T) (*domain.Doc, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	doc := domain.NewDoc()
	for _, k := range keys {
		val, err := p.parseValue(m[k])
		if err != nil {
			return nil, err
		}
		doc.Set(k, val)
	}
	return doc, nil
}

func (p *Parser) parseValue(in any) (domain.Value, error) {
	switch t := in.(type) {
	case nil:
		return domain.Null(), nil
	case domain.Value:
		return t, nil
	case *domain.Doc:
		return domain.Object(t), nil
	case bool:
		return domain.Bool(t), nil
	case int:
		return domain.Int(int64(t)), nil
	case int64:
		return domain.Int(t), nil
	case float64:
		return domain.Float(t), nil
	case string:
		return domain.Str(t), nil
	case []byte:
		return domain.Bytes(slices.Clone(t)), nil
	case json.RawMessage:
		return parseJSONValue(t)
	case time.Time:
		return domain.Time(t), nil
	case domain.OID:
		return domain.ObjectID(t), nil
	case uuid.UUID:
		return domain.Str(t.String()), nil
	case []any:
		elems := make([]domain.Value, len(t))
		for i, el := range t {
			val, err := p.parseValue(el)
			if err != nil {
				return domain.Value{}, err
			}
			elems[i] = val
		}
		return domain.Array(elems...), nil
	case []domain.Value:
		return domain.Array(slices.Clone(t)...), nil
	case map[string]any:
		doc, err := parseStringMap(p, t)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Object(doc), nil
	}
	return p.parseReflect(goreflect.ValueNoEscapeOf(in))
}

func (p *Parser) parseReflect(r goreflect.Value) (domain.Value, error) {
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return domain.Null(), nil
	case goreflect.Bool:
		return domain.Bool(r.Bool()), nil
	case goreflect.Int, goreflect.Int8, goreflect.Int16, goreflect.Int32, goreflect.Int64:
		return domain.Int(r.Int()), nil
	case goreflect.Uint, goreflect.Uint8, goreflect.Uint16, goreflect.Uint32, goreflect.Uint64, goreflect.Uintptr:
		u := r.Uint()
		if u > math.MaxInt64 {
			return domain.Value{}, &domain.ErrDocumentType{Value: r.Interface()}
		}
		return domain.Int(int64(u)), nil
	case goreflect.Float32, goreflect.Float64:
		return domain.Float(r.Float()), nil
	case goreflect.String:
		return domain.Str(r.String()), nil
	case goreflect.Slice:
		if r.IsNil() {
			return domain.Null(), nil
		}
		if r.Type().Elem().Kind() == goreflect.Uint8 {
			return domain.Bytes(slices.Clone(r.Bytes())), nil
		}
		return p.parseList(r)
	case goreflect.Array:
		switch r.Type() {
		case oidTyp:
			return domain.ObjectID(r.Interface().(domain.OID)), nil
		case uuidTyp:
			return domain.Str(r.Interface().(uuid.UUID).String()), nil
		}
		if r.Type().Elem().Kind() == goreflect.Uint8 {
			b := make([]byte, r.Len())
			for i := range b {
				b[i] = byte(r.Index(i).Uint())
			}
			return domain.Bytes(b), nil
		}
		return p.parseList(r)
	case goreflect.Struct:
		switch r.Type() {
		case timeTyp:
			return domain.Time(r.Interface().(time.Time)), nil
		case valueTyp:
			return r.Interface().(domain.Value), nil
		case docTyp:
			d := r.Interface().(domain.Doc)
			return domain.Object(&d), nil
		}
		doc, err := p.parseStruct(r)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Object(doc), nil
	case goreflect.Map:
		if r.IsNil() {
			return domain.Null(), nil
		}
		doc, err := p.parseMapReflect(r)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Object(doc), nil
	case goreflect.Chan, goreflect.Func:
		if r.IsNil() {
			return domain.Null(), nil
		}
		return domain.Value{}, &domain.ErrDocumentType{Value: r.Interface()}
	default:
		return domain.Value{}, &domain.ErrDocumentType{Value: r.Interface()}
	}
}

func (p *Parser) parseStruct(r goreflect.Value) (*domain.Doc, error) {
	typ := r.Type()
	numField := r.NumField()

	doc := domain.NewDoc()

	for n := range numField {
		fieldInfo, err := p.parseField(r.Field(n), typ.Field(n))
		if err != nil {
			return nil, err
		}
		if fieldInfo == nil {
			continue
		}
		doc.Set(fieldInfo.name, fieldInfo.value)
	}
	return doc, nil
}

func (p *Parser) parseMapReflect(r goreflect.Value) (*domain.Doc, error) {
	if r.Type().Key().Kind() != goreflect.String {
		return nil, &domain.ErrDocumentType{Value: r.Interface()}
	}
	keys := r.MapKeys()
	slices.SortFunc(keys, func(a, b goreflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	doc := domain.NewDoc()
	for _, k := range keys {
		val, err := p.parseReflect(r.MapIndex(k))
		if err != nil {
			return nil, err
		}
		doc.Set(k.String(), val)
	}
	return doc, nil
}

type field struct {
	name  string
	value domain.Value
}

// parseField resolves a single struct field. A nil result with a nil
// error means the field is skipped.
func (p *Parser) parseField(r goreflect.Value, typ goreflect.StructField) (*field, error) {
	if typ.PkgPath != "" {
		return nil, nil
	}
	name := typ.Name
	var tagSegments []string
	if tag, ok := typ.Tag.Lookup(TagName); ok {
		if tag == "-" {
			return nil, nil
		}
		tagSegments = strings.Split(tag, ",")
		if tagSegments[0] != "" {
			name = tagSegments[0]
		}
		tagSegments = tagSegments[1:]
	}
	if slices.Contains(tagSegments, "omitempty") && isNullable(typ.Type) && r.IsNil() {
		return nil, nil
	}
	if slices.Contains(tagSegments, "omitzero") && r.IsZero() {
		return nil, nil
	}

	value, err := p.parseReflect(r)
	if err != nil {
		return nil, err
	}

	return &field{name: name, value: value}, nil
}

func (p *Parser) parseList(r goreflect.Value) (domain.Value, error) {
	length := r.Len()
	elems := make([]domain.Value, length)
	for i := range length {
		el, err := p.parseReflect(r.Index(i))
		if err != nil {
			return domain.Value{}, err
		}
		elems[i] = el
	}
	return domain.Array(elems...), nil
}

func isNullable(t goreflect.Type) bool {
	k := t.Kind()
	return k == reflect.Pointer ||
		k == reflect.Slice ||
		k == reflect.Map ||
		k == reflect.Interface ||
		k == reflect.Func ||
		k == reflect.Chan
}
