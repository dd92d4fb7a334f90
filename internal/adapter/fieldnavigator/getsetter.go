package fieldnavigator

import "github.com/vinicius-lino-figueiredo/jedb/domain"

// GetSetter implements [domain.GetSetter].
type GetSetter struct {
	get   func() (domain.Value, bool)
	set   func(domain.Value)
	unset func()
}

// NewGetSetterWithArrayIndex returns a new implementation of [domain.GetSetter]
// that will represent one element of an array value. The element slice is
// shared with the document the array came from, so sets write through.
// Unsetting an element nulls it instead of shrinking the array.
func NewGetSetterWithArrayIndex(array []domain.Value, index int) domain.GetSetter {
	return &GetSetter{
		get: func() (domain.Value, bool) {
			if index >= 0 && index < len(array) {
				return array[index], true
			}
			return domain.Undefined(), false
		},
		set: func(value domain.Value) {
			if index >= 0 && index < len(array) {
				array[index] = value
			}
		},
		unset: func() {
			if index >= 0 && index < len(array) {
				array[index] = domain.Null()
			}
		},
	}
}

// NewGetSetterWithDoc returns a new implementation of [domain.GetSetter] that
// will represent a field of a [domain.Doc].
func NewGetSetterWithDoc(doc *domain.Doc, key string) domain.GetSetter {
	return &GetSetter{
		get:   func() (domain.Value, bool) { return doc.GetOk(key) },
		set:   func(value domain.Value) { doc.Set(key, value) },
		unset: func() { doc.Unset(key) },
	}
}

// NewGetSetterEmpty returns a new [domain.GetSetter] of an undefined value.
func NewGetSetterEmpty() domain.GetSetter {
	return &GetSetter{}
}

// Get implements [domain.GetSetter].
func (gs *GetSetter) Get() (domain.Value, bool) {
	if gs.get != nil {
		return gs.get()
	}
	return domain.Undefined(), false
}

// Set implements [domain.GetSetter].
func (gs *GetSetter) Set(value domain.Value) {
	if gs.set != nil {
		gs.set(value)
	}
}

// Unset implements [domain.GetSetter].
func (gs *GetSetter) Unset() {
	if gs.unset != nil {
		gs.unset()
	}
}
