// Package fieldnavigator contains the default [domain.FieldNavigator]
// implementation, resolving dot notation paths inside documents.
package fieldnavigator

import (
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct{}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator() domain.FieldNavigator {
	return &FieldNavigator{}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	return strings.Split(field, "."), nil
}

// GetField implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetField(doc *domain.Doc, fieldParts ...string) ([]domain.GetSetter, bool, error) {
	return fn.getField(doc, fieldParts, false)
}

// EnsureField implements [domain.FieldNavigator].
func (fn *FieldNavigator) EnsureField(doc *domain.Doc, fieldParts ...string) ([]domain.GetSetter, error) {
	res, _, err := fn.getField(doc, fieldParts, true)
	return res, err
}

func (fn *FieldNavigator) getField(doc *domain.Doc, fieldParts []string, ensure bool) ([]domain.GetSetter, bool, error) {
	invalid := []domain.GetSetter{NewGetSetterEmpty()}
	if doc == nil || len(fieldParts) == 0 {
		return invalid, false, nil
	}

	type item struct {
		v          domain.Value
		expandable bool
		gs         domain.GetSetter
	}

	var (
		// has to be a list to include expanded queries
		curr = []item{{v: domain.Object(doc), expandable: true, gs: NewGetSetterEmpty()}}
		// set to true when continuing a query for every item in a list
		expanded = false
	)

	for idx, part := range fieldParts {
		last := idx == len(fieldParts)-1
		for n := 0; n < len(curr); n++ {
			it := curr[n]

			switch it.v.Kind() {
			case domain.KindObject:
				d := it.v.Doc()
				if !d.Has(part) {
					switch {
					case ensure:
						if last {
							d.Set(part, domain.Null())
						} else {
							d.Set(part, domain.Object(domain.NewDoc()))
						}
					case !expanded:
						// an unset key in a document makes
						// the whole address invalid.
						return invalid, false, nil
					}
				}
				curr[n] = item{
					v:          d.Get(part),
					expandable: true,
					gs:         NewGetSetterWithDoc(d, part),
				}
			case domain.KindArray:
				arr := it.v.Array()
				i, err := strconv.Atoi(part)
				if err != nil {
					expanded = true

					if !it.expandable {
						curr[n] = item{expandable: true, gs: NewGetSetterEmpty()}
						continue
					}

					elems := make([]item, len(arr))
					for nn, v := range arr {
						elems[nn] = item{v: v, expandable: false, gs: NewGetSetterEmpty()}
					}

					// expanding current list without losing
					// track of current index by inserting
					// in current position, then rerunning it
					// against the same part.
					rest := curr[n+1:]
					curr = append(append(curr[:n:n], elems...), rest...)
					n--
					continue
				}

				if i >= 0 && i < len(arr) {
					curr[n] = item{
						v:          arr[i],
						expandable: true,
						gs:         NewGetSetterWithArrayIndex(arr, i),
					}
					continue
				}

				if ensure && i >= 0 {
					grown := make([]domain.Value, i+1)
					copy(grown, arr)
					for j := len(arr); j < i; j++ {
						grown[j] = domain.Null()
					}
					if last {
						grown[i] = domain.Null()
					} else {
						grown[i] = domain.Object(domain.NewDoc())
					}
					it.gs.Set(domain.Array(grown...))
					curr[n] = item{
						v:          grown[i],
						expandable: true,
						gs:         NewGetSetterWithArrayIndex(grown, i),
					}
					continue
				}

				if !expanded {
					return invalid, false, nil
				}
				curr[n] = item{expandable: true, gs: NewGetSetterEmpty()}
			default:
				if !expanded {
					return invalid, false, nil
				}
				curr[n] = item{expandable: true, gs: NewGetSetterEmpty()}
			}
		}
	}

	res := make([]domain.GetSetter, len(curr))
	for n, it := range curr {
		res[n] = it.gs
	}

	return res, expanded, nil
}
