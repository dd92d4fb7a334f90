// Package planner contains the default [domain.Planner] implementation.
package planner

import (
	"cmp"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
)

// Planner implements [domain.Planner]. It turns the indexable parts of a
// query into candidate id sets and intersects them smallest first, leaving
// the matcher to verify only the survivors.
//
// Equality and the ordered comparisons also match inside array fields, and
// documents holding the value in an array only appear in an array index. A
// scalar operand therefore plans against the pair of indexes covering both
// shapes; with either half missing the conjunct contributes nothing rather
// than dropping matches.
type Planner struct {
	cmpr domain.Comparer
}

// NewPlanner returns a new implementation of [domain.Planner].
func NewPlanner() domain.Planner {
	return &Planner{cmpr: comparer.NewComparer()}
}

// pathIndexes groups the indexes of one field path by kind.
type pathIndexes struct {
	strs domain.Index
	nums domain.Index
	arrs domain.Index
}

// scalar returns the index holding scalar slots of v's kind.
func (pi *pathIndexes) scalar(v domain.Value) domain.Index {
	if v.Kind() == domain.KindString {
		return pi.strs
	}
	return pi.nums
}

// Plan implements [domain.Planner]. The returned ids ascend and may
// legitimately be empty; ok false means no conjunct was plannable and the
// caller examines every document. Malformed operands never plan, they are
// the matcher's to reject.
func (p *Planner) Plan(query *domain.Doc, indexes []domain.Index) ([]int64, bool, error) {
	if query.Len() == 0 || len(indexes) == 0 {
		return nil, false, nil
	}
	paths := groupByPath(indexes)

	var sets [][]int64
	if err := p.collect(query, paths, &sets); err != nil {
		return nil, false, err
	}
	if len(sets) == 0 {
		return nil, false, nil
	}

	slices.SortFunc(sets, func(a, b []int64) int {
		return cmp.Compare(len(a), len(b))
	})
	ids := sets[0]
	for _, set := range sets[1:] {
		if len(ids) == 0 {
			break
		}
		ids = intersect(ids, set)
	}
	return ids, true, nil
}

func groupByPath(indexes []domain.Index) map[string]*pathIndexes {
	paths := make(map[string]*pathIndexes, len(indexes))
	for _, idx := range indexes {
		spec := idx.Spec()
		pi := paths[spec.Path]
		if pi == nil {
			pi = &pathIndexes{}
			paths[spec.Path] = pi
		}
		switch spec.Kind {
		case domain.IndexString:
			pi.strs = idx
		case domain.IndexNumber:
			pi.nums = idx
		case domain.IndexArray:
			pi.arrs = idx
		}
	}
	return paths
}

// collect gathers one candidate set per indexable conjunct. $and members
// are conjuncts themselves and flatten into the same pool; $or and $not
// cannot narrow anything and plan nothing.
func (p *Planner) collect(query *domain.Doc, paths map[string]*pathIndexes, sets *[][]int64) error {
	for field, arg := range query.Iter() {
		switch {
		case field == "$and":
			for _, item := range arg.Array() {
				if item.Kind() != domain.KindObject {
					continue
				}
				if err := p.collect(item.Doc(), paths, sets); err != nil {
					return err
				}
			}
		case strings.HasPrefix(field, "$"):
		default:
			pi := paths[field]
			if pi == nil {
				continue
			}
			if err := p.field(pi, arg, sets); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Planner) field(pi *pathIndexes, arg domain.Value, sets *[][]int64) error {
	if arg.Kind() != domain.KindObject {
		return p.equality(pi, arg, sets)
	}
	ops := arg.Doc()
	for name := range ops.Keys() {
		if !strings.HasPrefix(name, "$") {
			// a nested object without operators means deep equality,
			// which no index kind covers
			return nil
		}
	}
	for op, operand := range ops.Iter() {
		var err error
		switch op {
		case "$eq":
			err = p.equality(pi, operand, sets)
		case "$in":
			err = p.enum(pi, operand, sets)
		case "$all":
			err = p.containsAll(pi, operand, sets)
		case "$gt":
			err = p.ranged(pi, domain.RangeBound{Value: operand}, domain.RangeBound{}, sets)
		case "$gte":
			err = p.ranged(pi, domain.RangeBound{Value: operand, Inclusive: true}, domain.RangeBound{}, sets)
		case "$lt":
			err = p.ranged(pi, domain.RangeBound{}, domain.RangeBound{Value: operand}, sets)
		case "$lte":
			err = p.ranged(pi, domain.RangeBound{}, domain.RangeBound{Value: operand, Inclusive: true}, sets)
		case "$bt":
			err = p.between(pi, operand, sets)
		case "$begin":
			err = p.prefix(pi, operand, sets)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// equality plans the bare {field: value} form and $eq. A scalar operand
// matches scalar slots and array elements alike, so both sides are
// unioned. An array operand only equals a whole array slot; every scalar
// element of it then bounds the matches through the array index.
func (p *Planner) equality(pi *pathIndexes, v domain.Value, sets *[][]int64) error {
	switch v.Kind() {
	case domain.KindString, domain.KindInt, domain.KindFloat:
		scalar := pi.scalar(v)
		if scalar == nil || pi.arrs == nil {
			return nil
		}
		direct, err := scalar.Lookup(v)
		if err != nil {
			return err
		}
		inArrays, err := pi.arrs.Lookup(v)
		if err != nil {
			return err
		}
		*sets = append(*sets, union(direct, inArrays))
	case domain.KindArray:
		if pi.arrs == nil {
			return nil
		}
		for _, elem := range v.Array() {
			if !scalarKind(elem) {
				continue
			}
			ids, err := pi.arrs.Lookup(elem)
			if err != nil {
				return err
			}
			*sets = append(*sets, normalize(ids))
		}
	}
	return nil
}

// enum plans $in. A document matches through any member, so the set is
// the union over all of them and every member must be coverable; one
// member of an unindexable kind makes the conjunct unplannable.
func (p *Planner) enum(pi *pathIndexes, operand domain.Value, sets *[][]int64) error {
	if operand.Kind() != domain.KindArray {
		return nil
	}
	members := operand.Array()
	if len(members) == 0 {
		*sets = append(*sets, nil)
		return nil
	}
	if pi.arrs == nil {
		return nil
	}
	for _, member := range members {
		if !scalarKind(member) || pi.scalar(member) == nil {
			return nil
		}
	}
	var ids []int64
	for _, member := range members {
		direct, err := pi.scalar(member).Lookup(member)
		if err != nil {
			return err
		}
		ids = append(ids, direct...)
		inArrays, err := pi.arrs.Lookup(member)
		if err != nil {
			return err
		}
		ids = append(ids, inArrays...)
	}
	*sets = append(*sets, normalize(ids))
	return nil
}

// containsAll plans $all. Every listed element must be present, so each
// scalar member bounds the matches on its own; members of other kinds
// are simply skipped.
func (p *Planner) containsAll(pi *pathIndexes, operand domain.Value, sets *[][]int64) error {
	if operand.Kind() != domain.KindArray {
		return nil
	}
	members := operand.Array()
	if len(members) == 0 {
		*sets = append(*sets, nil)
		return nil
	}
	if pi.arrs == nil {
		return nil
	}
	for _, member := range members {
		if !scalarKind(member) {
			continue
		}
		ids, err := pi.arrs.Lookup(member)
		if err != nil {
			return err
		}
		*sets = append(*sets, normalize(ids))
	}
	return nil
}

// ranged plans an ordered comparison over the index pair. The array index
// interleaves numbers below strings, so an open end facing the other kind
// is pinned to the class boundary before scanning it.
func (p *Planner) ranged(pi *pathIndexes, lo, hi domain.RangeBound, sets *[][]int64) error {
	bound := lo.Value
	if bound.IsUndefined() {
		bound = hi.Value
	}
	if !scalarKind(bound) {
		return nil
	}
	scalar := pi.scalar(bound)
	if scalar == nil || pi.arrs == nil {
		return nil
	}
	direct, err := scalar.Range(lo, hi)
	if err != nil {
		return err
	}

	alo, ahi := lo, hi
	if bound.Kind() == domain.KindString {
		if alo.Value.IsUndefined() {
			alo = domain.RangeBound{Value: domain.Str(""), Inclusive: true}
		}
	} else if ahi.Value.IsUndefined() {
		ahi = domain.RangeBound{Value: domain.Str("")}
	}
	inArrays, err := pi.arrs.Range(alo, ahi)
	if err != nil {
		return err
	}
	*sets = append(*sets, union(direct, inArrays))
	return nil
}

// between plans $bt, whose bounds are inclusive and may come in either
// order.
func (p *Planner) between(pi *pathIndexes, operand domain.Value, sets *[][]int64) error {
	if operand.Kind() != domain.KindArray || len(operand.Array()) != 2 {
		return nil
	}
	lo, hi := operand.Array()[0], operand.Array()[1]
	if !scalarKind(lo) || !scalarKind(hi) || !p.cmpr.Comparable(lo, hi) {
		return nil
	}
	if c, err := p.cmpr.Compare(lo, hi); err != nil {
		return nil
	} else if c > 0 {
		lo, hi = hi, lo
	}
	return p.ranged(pi,
		domain.RangeBound{Value: lo, Inclusive: true},
		domain.RangeBound{Value: hi, Inclusive: true},
		sets)
}

// prefix plans $begin. String order is bytewise, so every string with the
// prefix falls between the prefix itself and its successor.
func (p *Planner) prefix(pi *pathIndexes, operand domain.Value, sets *[][]int64) error {
	if operand.Kind() != domain.KindString {
		return nil
	}
	lo := domain.RangeBound{Value: operand, Inclusive: true}
	var hi domain.RangeBound
	if next, ok := prefixSuccessor(operand.Str()); ok {
		hi = domain.RangeBound{Value: domain.Str(next)}
	}
	return p.ranged(pi, lo, hi, sets)
}

// prefixSuccessor returns the smallest string sorting after every string
// with the given prefix. There is none when the prefix is empty or all
// 0xff bytes.
func prefixSuccessor(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

func scalarKind(v domain.Value) bool {
	switch v.Kind() {
	case domain.KindString, domain.KindInt, domain.KindFloat:
		return true
	}
	return false
}

func union(a, b []int64) []int64 {
	return normalize(append(a, b...))
}

// normalize sorts ids ascending and drops duplicates, the shape the
// intersection walk expects.
func normalize(ids []int64) []int64 {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// intersect keeps the ids present in both normalized sets.
func intersect(a, b []int64) []int64 {
	res := make([]int64, 0, min(len(a), len(b)))
	var i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			res = append(res, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return res
}
