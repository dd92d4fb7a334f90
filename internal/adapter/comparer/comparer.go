// Package comparer contains the default [domain.Comparer]
// implementation. It defines a total order across every value kind so
// that sorting and index traversal never depend on input order.
package comparer

import (
	"bytes"
	"cmp"
	"math"
	"math/big"
	"slices"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// Comparer implements [domain.Comparer].
type Comparer struct{}

// NewComparer returns a new implementation of [domain.Comparer].
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Kinds outside their own class never interleave: the class decides
// first, the value only breaks ties inside it.
const (
	classUndefined = iota
	classNull
	classNumber
	classString
	classBytes
	classObjectID
	classBool
	classTime
	classArray
	classObject
	classInvalid
)

func classOf(k domain.Kind) int {
	switch k {
	case domain.KindUndefined:
		return classUndefined
	case domain.KindNull:
		return classNull
	case domain.KindInt, domain.KindFloat:
		return classNumber
	case domain.KindString:
		return classString
	case domain.KindBytes:
		return classBytes
	case domain.KindObjectID:
		return classObjectID
	case domain.KindBool:
		return classBool
	case domain.KindTime:
		return classTime
	case domain.KindArray:
		return classArray
	case domain.KindObject:
		return classObject
	default:
		return classInvalid
	}
}

// Compare implements [domain.Comparer].
func (c *Comparer) Compare(a, b domain.Value) (int, error) {
	ca, cb := classOf(a.Kind()), classOf(b.Kind())
	if ca == classInvalid || cb == classInvalid {
		return 0, &domain.ErrCannotCompare{A: a.Kind(), B: b.Kind()}
	}
	if ca != cb {
		return cmp.Compare(ca, cb), nil
	}

	switch ca {
	case classUndefined, classNull:
		return 0, nil
	case classNumber:
		return c.compareNumbers(a, b), nil
	case classString:
		return cmp.Compare(a.Str(), b.Str()), nil
	case classBytes:
		return bytes.Compare(a.Bytes(), b.Bytes()), nil
	case classObjectID:
		oa, ob := a.OID(), b.OID()
		return bytes.Compare(oa[:], ob[:]), nil
	case classBool:
		return c.compareBool(a.Bool(), b.Bool()), nil
	case classTime:
		return cmp.Compare(a.UnixMilli(), b.UnixMilli()), nil
	case classArray:
		return c.compareArray(a.Array(), b.Array())
	default:
		return c.compareDoc(a.Doc(), b.Doc())
	}
}

// Comparable implements [domain.Comparer]. It reports whether a and b
// belong to the same class and that class supports range queries.
func (c *Comparer) Comparable(a, b domain.Value) bool {
	ca := classOf(a.Kind())
	if ca != classOf(b.Kind()) {
		return false
	}
	switch ca {
	case classNumber, classString, classBytes, classObjectID, classTime:
		return true
	default:
		return false
	}
}

func (c *Comparer) compareNumbers(a, b domain.Value) int {
	if a.Kind() == domain.KindInt && b.Kind() == domain.KindInt {
		return cmp.Compare(a.Int(), b.Int())
	}
	if a.Kind() == domain.KindFloat && b.Kind() == domain.KindFloat {
		// cmp.Compare places NaN below every other float
		return cmp.Compare(a.Float(), b.Float())
	}

	// An int64 meets a float64. NaN stays the smallest number; the
	// rest goes through big.Float, which compares the two without
	// precision loss.
	if a.Kind() == domain.KindFloat && math.IsNaN(a.Float()) {
		return -1
	}
	if b.Kind() == domain.KindFloat && math.IsNaN(b.Float()) {
		return 1
	}
	return newBigNum(a).Cmp(newBigNum(b))
}

func newBigNum(v domain.Value) *big.Float {
	f := new(big.Float)
	if v.Kind() == domain.KindInt {
		return f.SetInt64(v.Int())
	}
	return f.SetFloat64(v.Float())
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func (c *Comparer) compareArray(a, b []domain.Value) (int, error) {
	minLength := min(len(a), len(b))

	for i := range minLength {
		comp, err := c.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareDoc(a, b *domain.Doc) (int, error) {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		comp, err := c.Compare(a.Get(aKeys[i]), b.Get(bKeys[i]))
		if err != nil {
			return 0, err
		}
		if comp != 0 {
			return comp, nil
		}
	}

	if comp := cmp.Compare(a.Len(), b.Len()); comp != 0 {
		return comp, nil
	}

	for i := range aKeys {
		if comp := cmp.Compare(aKeys[i], bKeys[i]); comp != 0 {
			return comp, nil
		}
	}
	return 0, nil
}
