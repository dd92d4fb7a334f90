// Package projector contains the default [domain.Projector]
// implementation, reducing result documents to the fields a projection
// names.
package projector

import (
	"slices"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
)

// Projector implements [domain.Projector].
type Projector struct {
	fn domain.FieldNavigator
}

// NewProjector returns a new implementation of [domain.Projector].
func NewProjector(opts ...domain.ProjectorOption) domain.Projector {
	var o domain.ProjectorOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.FieldNavigator == nil {
		o.FieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	return &Projector{fn: o.FieldNavigator}
}

// Project implements [domain.Projector]. A projection either includes
// named fields or excludes them; mixing both forms fails, except that
// "_id": 0 may accompany an include list.
func (p *Projector) Project(docs []*domain.Doc, proj map[string]uint8) ([]*domain.Doc, error) {
	if len(proj) == 0 {
		return docs, nil
	}

	id, idMentioned := proj[domain.IDField]
	keepID := !idMentioned || id != 0

	// map order is random; sorted keys keep the output deterministic
	keys := make([]string, 0, len(proj))
	for field := range proj {
		if field != domain.IDField {
			keys = append(keys, field)
		}
	}
	slices.Sort(keys)

	include := 0
	addrs := make([][]string, 0, len(keys))
	for _, field := range keys {
		if proj[field] > 0 {
			include++
		}
		addr, err := p.fn.GetAddress(field)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if include != 0 && include != len(keys) {
		return nil, &domain.ErrInvalidQuery{
			Op:     "projection",
			Reason: "cannot mix include and exclude fields except for _id",
		}
	}

	res := make([]*domain.Doc, len(docs))
	for n, doc := range docs {
		projected, err := p.projectDoc(doc, addrs, include != 0, keepID)
		if err != nil {
			return nil, err
		}
		res[n] = projected
	}
	return res, nil
}

func (p *Projector) projectDoc(doc *domain.Doc, addrs [][]string, include, keepID bool) (*domain.Doc, error) {
	if include {
		return p.positiveProject(doc, addrs, keepID)
	}
	return p.negativeProject(doc, addrs, keepID)
}

func (p *Projector) positiveProject(doc *domain.Doc, addrs [][]string, keepID bool) (*domain.Doc, error) {
	res := domain.NewDoc()
	if id, ok := doc.GetOk(domain.IDField); ok && keepID {
		res.Set(domain.IDField, id)
	}

	for _, addr := range addrs {
		slots, expanded, err := p.fn.GetField(doc, addr...)
		if err != nil {
			return nil, err
		}
		value, ok := p.readSlots(slots, expanded)
		if !ok {
			continue
		}
		created, err := p.fn.EnsureField(res, addr...)
		if err != nil {
			return nil, err
		}
		for _, c := range created {
			c.Set(value)
		}
	}
	return res, nil
}

// readSlots collapses the navigated slots into the value to copy. A
// single missing slot means the field is absent and nothing is copied;
// expanded array slots become an array, with misses as nulls.
func (p *Projector) readSlots(slots []domain.GetSetter, expanded bool) (domain.Value, bool) {
	if !expanded {
		return slots[0].Get()
	}
	elems := make([]domain.Value, len(slots))
	for n, slot := range slots {
		value, ok := slot.Get()
		if !ok {
			value = domain.Null()
		}
		elems[n] = value
	}
	return domain.Array(elems...), true
}

func (p *Projector) negativeProject(doc *domain.Doc, addrs [][]string, keepID bool) (*domain.Doc, error) {
	res := doc.Clone()
	if !keepID {
		res.Unset(domain.IDField)
	}
	for _, addr := range addrs {
		slots, _, err := p.fn.GetField(res, addr...)
		if err != nil {
			return nil, err
		}
		for _, slot := range slots {
			slot.Unset()
		}
	}
	return res, nil
}
