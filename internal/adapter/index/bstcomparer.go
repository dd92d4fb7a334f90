package index

import (
	"cmp"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// entry is one tree key: an indexed value paired with the id of the
// document holding it. Carrying the id inside the key keeps equal values
// ordered by document id, so lookups and range scans emit ties in
// ascending id order.
type entry struct {
	value domain.Value
	id    int64
}

type entryComparer struct {
	comparer domain.Comparer
}

// newEntryComparer adapts a [domain.Comparer] to the tree's key ordering.
func newEntryComparer(comparer domain.Comparer) bst.Comparer[entry, int64] {
	return &entryComparer{comparer: comparer}
}

// CompareKeys implements bst.Comparer.
func (ec *entryComparer) CompareKeys(a, b entry) (int, error) {
	c, err := ec.comparer.Compare(a.value, b.value)
	if err != nil || c != 0 {
		return c, err
	}
	return cmp.Compare(a.id, b.id), nil
}

// CompareValues implements bst.Comparer.
func (ec *entryComparer) CompareValues(a, b int64) (bool, error) {
	return a == b, nil
}
