// Package index contains the default [domain.Index] implementation.
package index

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
)

const defaultOrder = 8

// Index implements [domain.Index]. It keeps typed keys in an AVL tree and
// is not concurrency safe; callers serialize access.
type Index struct {
	spec  domain.IndexSpec
	addr  []string
	order int
	cmpr  domain.Comparer
	fn    domain.FieldNavigator
	bcmp  bst.Comparer[entry, int64]
	tree  bst.BST[entry, int64]
	keys  int
	size  int
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(options ...domain.IndexOption) (domain.Index, error) {
	opts := domain.IndexOptions{
		Kind:  domain.IndexString,
		Order: defaultOrder,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.FieldNavigator == nil {
		opts.FieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if opts.Order <= 0 {
		opts.Order = defaultOrder
	}

	if opts.Path == "" {
		return nil, domain.ErrNoPath
	}
	switch opts.Kind {
	case domain.IndexString, domain.IndexNumber, domain.IndexArray:
	default:
		return nil, fmt.Errorf("unknown index kind %d", opts.Kind)
	}

	addr, err := opts.FieldNavigator.GetAddress(opts.Path)
	if err != nil {
		return nil, err
	}

	bcmp := newEntryComparer(opts.Comparer)

	return &Index{
		spec: domain.IndexSpec{
			Path:   opts.Path,
			Kind:   opts.Kind,
			Unique: opts.Unique,
		},
		addr:  addr,
		order: opts.Order,
		cmpr:  opts.Comparer,
		fn:    opts.FieldNavigator,
		bcmp:  bcmp,
		tree:  avl.NewBST(false, opts.Order, bcmp),
	}, nil
}

// Spec implements [domain.Index].
func (i *Index) Spec() domain.IndexSpec {
	spec := i.spec
	spec.Records = int64(i.size)
	return spec
}

// Keys implements [domain.Index].
func (i *Index) Keys() int {
	return i.keys
}

// Len implements [domain.Index].
func (i *Index) Len() int {
	return i.size
}

// Reset implements [domain.Index].
func (i *Index) Reset() {
	i.tree = avl.NewBST(false, i.order, i.bcmp)
	i.keys = 0
	i.size = 0
}

// keysOf extracts the document's keys for this index: the defined values
// under the path narrowed to the index kind, deduplicated and sorted.
// Array kinds contribute one key per string or number element.
func (i *Index) keysOf(doc *domain.Doc) ([]domain.Value, error) {
	slots, _, err := i.fn.GetField(doc, i.addr...)
	if err != nil {
		return nil, err
	}

	var keys []domain.Value
	for _, slot := range slots {
		v, defined := slot.Get()
		if !defined {
			continue
		}
		keys = i.appendTyped(keys, v)
	}
	if len(keys) < 2 {
		return keys, nil
	}

	var cerr error
	slices.SortFunc(keys, func(a, b domain.Value) int {
		if cerr != nil {
			return 0
		}
		c, err := i.cmpr.Compare(a, b)
		if err != nil {
			cerr = err
		}
		return c
	})
	if cerr == nil {
		keys = slices.CompactFunc(keys, func(a, b domain.Value) bool {
			if cerr != nil {
				return false
			}
			c, err := i.cmpr.Compare(a, b)
			if err != nil {
				cerr = err
			}
			return c == 0
		})
	}
	if cerr != nil {
		return nil, cerr
	}
	return keys, nil
}

func (i *Index) appendTyped(keys []domain.Value, v domain.Value) []domain.Value {
	switch i.spec.Kind {
	case domain.IndexString:
		if v.Kind() == domain.KindString {
			keys = append(keys, v)
		}
	case domain.IndexNumber:
		switch v.Kind() {
		case domain.KindInt, domain.KindFloat:
			keys = append(keys, v)
		}
	case domain.IndexArray:
		if v.Kind() != domain.KindArray {
			return keys
		}
		for _, el := range v.Array() {
			switch el.Kind() {
			case domain.KindString, domain.KindInt, domain.KindFloat:
				keys = append(keys, el)
			}
		}
	}
	return keys
}

// Insert implements [domain.Index].
func (i *Index) Insert(id int64, doc *domain.Doc) error {
	keys, err := i.keysOf(doc)
	if err != nil {
		return err
	}
	return i.insertKeys(id, keys)
}

// Remove implements [domain.Index].
func (i *Index) Remove(id int64, doc *domain.Doc) error {
	keys, err := i.keysOf(doc)
	if err != nil {
		return err
	}
	return i.removeKeys(id, keys)
}

// Update implements [domain.Index].
func (i *Index) Update(id int64, oldDoc, newDoc *domain.Doc) error {
	oldKeys, err := i.keysOf(oldDoc)
	if err != nil {
		return err
	}
	newKeys, err := i.keysOf(newDoc)
	if err != nil {
		return err
	}
	if i.sameKeys(oldKeys, newKeys) {
		return nil
	}
	if err := i.removeKeys(id, oldKeys); err != nil {
		return err
	}
	if err := i.insertKeys(id, newKeys); err != nil {
		_ = i.insertKeys(id, oldKeys)
		return err
	}
	return nil
}

func (i *Index) sameKeys(a, b []domain.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		c, err := i.cmpr.Compare(a[n], b[n])
		if err != nil || c != 0 {
			return false
		}
	}
	return true
}

func (i *Index) insertKeys(id int64, keys []domain.Value) error {
	added := make([]domain.Value, 0, len(keys))
	for _, k := range keys {
		taken, err := i.idsUnder(k)
		if err != nil {
			_ = i.removeKeys(id, added)
			return err
		}
		if slices.Contains(taken, id) {
			continue
		}
		if i.spec.Unique && len(taken) > 0 {
			_ = i.removeKeys(id, added)
			return fmt.Errorf("%w: %s already holds %s",
				domain.ErrConstraintViolated, i.spec.Path, k)
		}
		if err := i.tree.Insert(entry{value: k, id: id}, id); err != nil {
			_ = i.removeKeys(id, added)
			return err
		}
		if len(taken) == 0 {
			i.keys++
		}
		i.size++
		added = append(added, k)
	}
	return nil
}

func (i *Index) removeKeys(id int64, keys []domain.Value) error {
	var errs []error
	for _, k := range keys {
		taken, err := i.idsUnder(k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(taken, id) {
			continue
		}
		if err := i.tree.Delete(entry{value: k, id: id}, &id); err != nil {
			errs = append(errs, err)
			continue
		}
		i.size--
		if len(taken) == 1 {
			i.keys--
		}
	}
	return errors.Join(errs...)
}

// idsUnder returns the ids keyed by exactly v, in ascending id order.
func (i *Index) idsUnder(v domain.Value) ([]int64, error) {
	q := bst.Query[entry]{
		GreaterThan: &bst.Bound[entry]{
			Value:        entry{value: v, id: math.MinInt64},
			IncludeEqual: true,
		},
		LowerThan: &bst.Bound[entry]{
			Value:        entry{value: v, id: math.MaxInt64},
			IncludeEqual: true,
		},
	}
	var ids []int64
	for id, err := range i.tree.Query(q) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Lookup implements [domain.Index].
func (i *Index) Lookup(v domain.Value) ([]int64, error) {
	if !i.covers(v) {
		return nil, nil
	}
	return i.idsUnder(v)
}

// covers reports whether values of v's kind can appear as keys of this
// index.
func (i *Index) covers(v domain.Value) bool {
	switch v.Kind() {
	case domain.KindString:
		return i.spec.Kind == domain.IndexString || i.spec.Kind == domain.IndexArray
	case domain.KindInt, domain.KindFloat:
		return i.spec.Kind == domain.IndexNumber || i.spec.Kind == domain.IndexArray
	}
	return false
}

// Range implements [domain.Index].
func (i *Index) Range(min, max domain.RangeBound) ([]int64, error) {
	var q bst.Query[entry]
	if !min.Value.IsUndefined() {
		bound := entry{value: min.Value, id: math.MaxInt64}
		if min.Inclusive {
			bound.id = math.MinInt64
		}
		q.GreaterThan = &bst.Bound[entry]{Value: bound, IncludeEqual: min.Inclusive}
	}
	if !max.Value.IsUndefined() {
		bound := entry{value: max.Value, id: math.MinInt64}
		if max.Inclusive {
			bound.id = math.MaxInt64
		}
		q.LowerThan = &bst.Bound[entry]{Value: bound, IncludeEqual: max.Inclusive}
	}

	var ids []int64
	for id, err := range i.tree.Query(q) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// All implements [domain.Index].
func (i *Index) All() ([]int64, error) {
	ids := make([]int64, 0, i.size)
	for id := range i.tree.GetAll() {
		ids = append(ids, id)
	}
	return ids, nil
}
