// Package modifier contains the default [domain.Modifier] implementation,
// applying update operators to copies of stored documents.
package modifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/matcher"
)

type modFunc func(doc *domain.Doc, addr []string, arg domain.Value) error

// Modifier implements [domain.Modifier].
type Modifier struct {
	comparer domain.Comparer
	fn       domain.FieldNavigator
	matcher  domain.Matcher
	mods     map[string]modFunc
}

// NewModifier returns a new implementation of [domain.Modifier].
func NewModifier(options ...domain.ModifierOption) domain.Modifier {
	opts := domain.ModifierOptions{
		Comparer:       comparer.NewComparer(),
		FieldNavigator: fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewMatcher(
			domain.WithMatcherComparer(opts.Comparer),
			domain.WithMatcherFieldNavigator(opts.FieldNavigator),
		)
	}

	m := &Modifier{
		comparer: opts.Comparer,
		fn:       opts.FieldNavigator,
		matcher:  opts.Matcher,
	}
	m.mods = map[string]modFunc{
		"$set":      m.set,
		"$unset":    m.unset,
		"$inc":      m.inc,
		"$push":     m.push,
		"$addToSet": m.addToSet,
		"$pop":      m.pop,
		"$pull":     m.pull,
		"$max":      m.max,
		"$min":      m.min,
	}
	return m
}

// Modify implements [domain.Modifier]. An update made of plain fields
// replaces the whole document except its id; one made of operators
// transforms a copy field by field. The input document is not changed.
func (m *Modifier) Modify(doc, update *domain.Doc) (*domain.Doc, error) {
	if update == nil {
		return nil, &domain.ErrInvalidQuery{Reason: "update document is nil"}
	}

	hasOps, err := checkUpdate(update)
	if err != nil {
		return nil, err
	}
	if !hasOps {
		return m.replace(doc, update)
	}
	return m.apply(doc, update)
}

// checkUpdate reports whether the update consists of operators.
// Operators and plain fields cannot appear side by side.
func checkUpdate(update *domain.Doc) (bool, error) {
	total := 0
	dollar := 0
	for field := range update.Keys() {
		total++
		if strings.HasPrefix(field, "$") {
			dollar++
		}
		if dollar > 0 && dollar != total {
			return false, &domain.ErrInvalidQuery{
				Reason: "cannot mix update operators and plain fields",
			}
		}
	}
	return dollar > 0, nil
}

func (m *Modifier) replace(doc, update *domain.Doc) (*domain.Doc, error) {
	id, hasID := doc.GetOk(domain.IDField)
	if upID, ok := update.GetOk(domain.IDField); ok {
		if !hasID || !upID.Equal(id) {
			return nil, domain.ErrCannotModifyID
		}
	}

	res := domain.NewDoc()
	if hasID {
		res.Set(domain.IDField, id.Clone())
	}
	for field, value := range update.Iter() {
		if field == domain.IDField {
			continue
		}
		res.Set(field, value.Clone())
	}
	return res, nil
}

func (m *Modifier) apply(doc, update *domain.Doc) (*domain.Doc, error) {
	type modCall struct {
		fn   modFunc
		addr []string
		arg  domain.Value
	}

	// resolve every operator and address before touching anything
	var calls []modCall
	for op, arg := range update.Iter() {
		mod, ok := m.mods[op]
		if !ok {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "unknown update operator",
			}
		}
		if arg.Kind() != domain.KindObject {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "operand must be a document of fields",
			}
		}
		for field, fieldArg := range arg.Doc().Iter() {
			if field == domain.IDField {
				return nil, domain.ErrCannotModifyID
			}
			addr, err := m.fn.GetAddress(field)
			if err != nil {
				return nil, err
			}
			calls = append(calls, modCall{fn: mod, addr: addr, arg: fieldArg})
		}
	}

	res := doc.Clone()
	for _, call := range calls {
		if err := call.fn(res, call.addr, call.arg); err != nil {
			return nil, err
		}
	}

	if idChanged(doc, res) {
		return nil, domain.ErrCannotModifyID
	}
	return res, nil
}

func idChanged(before, after *domain.Doc) bool {
	a, okA := before.GetOk(domain.IDField)
	b, okB := after.GetOk(domain.IDField)
	if okA != okB {
		return true
	}
	return okA && !a.Equal(b)
}

func (m *Modifier) set(doc *domain.Doc, addr []string, arg domain.Value) error {
	slots, err := m.fn.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if _, defined := slot.Get(); defined {
			slot.Set(arg.Clone())
		}
	}
	return nil
}

func (m *Modifier) unset(doc *domain.Doc, addr []string, _ domain.Value) error {
	slots, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if _, defined := slot.Get(); defined {
			slot.Unset()
		}
	}
	return nil
}

func (m *Modifier) inc(doc *domain.Doc, addr []string, arg domain.Value) error {
	if _, ok := arg.Num(); !ok {
		return &domain.ErrInvalidQuery{Op: "$inc", Reason: "operand must be a number"}
	}
	slots, err := m.fn.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		value, defined := slot.Get()
		if !defined {
			continue
		}
		if value.IsNull() {
			value = domain.Int(0)
		}
		sum, err := addNumbers(value, arg)
		if err != nil {
			return err
		}
		slot.Set(sum)
	}
	return nil
}

// addNumbers keeps integer fields integer; mixing in a float promotes
// the result to float.
func addNumbers(a, b domain.Value) (domain.Value, error) {
	if a.Kind() == domain.KindInt && b.Kind() == domain.KindInt {
		return domain.Int(a.Int() + b.Int()), nil
	}
	af, ok := a.Num()
	if !ok {
		return domain.Value{}, fmt.Errorf("cannot $inc non-number fields")
	}
	bf, _ := b.Num()
	return domain.Float(af + bf), nil
}

func (m *Modifier) push(doc *domain.Doc, addr []string, arg domain.Value) error {
	items, slice, hasSlice, err := m.pushItems("$push", arg, true)
	if err != nil {
		return err
	}
	slots, err := m.fn.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		value, defined := slot.Get()
		if !defined {
			continue
		}
		if value.IsNull() {
			value = domain.Array()
		}
		if value.Kind() != domain.KindArray {
			return fmt.Errorf("cannot $push onto non-array values")
		}
		res := value.Array()
		for _, item := range items {
			res = append(res, item.Clone())
		}
		if hasSlice {
			res = sliceBound(res, slice)
		}
		slot.Set(domain.Array(res...))
	}
	return nil
}

// sliceBound applies $slice: non-negative counts keep the first n
// elements, negative ones the last.
func sliceBound(arr []domain.Value, n int) []domain.Value {
	if n >= 0 {
		return arr[:min(n, len(arr))]
	}
	return arr[len(arr)+max(n, -len(arr)):]
}

// pushItems extracts the values an array modifier appends: the operand
// itself, or the contents of its $each list, optionally bounded by
// $slice when the modifier supports it.
func (m *Modifier) pushItems(op string, arg domain.Value, allowSlice bool) (items []domain.Value, slice int, hasSlice bool, err error) {
	if arg.Kind() != domain.KindObject {
		return []domain.Value{arg}, 0, false, nil
	}
	d := arg.Doc()
	if !d.Has("$each") && !d.Has("$slice") {
		// a document without list controls is pushed as an element
		return []domain.Value{arg}, 0, false, nil
	}

	used := 0
	each, hasEach := d.GetOk("$each")
	if hasEach {
		used++
		if each.Kind() != domain.KindArray {
			return nil, 0, false, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "$each requires an array value",
			}
		}
		items = each.Array()
	}
	if sliceArg, ok := d.GetOk("$slice"); ok {
		if !allowSlice {
			return nil, 0, false, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "$slice is only available with $push",
			}
		}
		if !hasEach {
			return nil, 0, false, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "$slice requires $each",
			}
		}
		n, err := asInt(op, sliceArg)
		if err != nil {
			return nil, 0, false, err
		}
		used++
		slice, hasSlice = n, true
	}
	if d.Len() > used {
		return nil, 0, false, &domain.ErrInvalidQuery{
			Op:     op,
			Reason: "cannot combine $each with other fields",
		}
	}
	return items, slice, hasSlice, nil
}

func asInt(op string, v domain.Value) (int, error) {
	switch v.Kind() {
	case domain.KindInt:
		return int(v.Int()), nil
	case domain.KindFloat:
		f := v.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), nil
		}
	}
	return 0, &domain.ErrInvalidQuery{Op: op, Reason: "operand must be an integer"}
}

func (m *Modifier) addToSet(doc *domain.Doc, addr []string, arg domain.Value) error {
	items, _, _, err := m.pushItems("$addToSet", arg, false)
	if err != nil {
		return err
	}
	slots, err := m.fn.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		value, defined := slot.Get()
		if !defined {
			continue
		}
		if value.IsNull() {
			value = domain.Array()
		}
		if value.Kind() != domain.KindArray {
			return fmt.Errorf("cannot $addToSet onto non-array values")
		}
		res := value.Array()
		for _, item := range items {
			found, err := m.contains(res, item)
			if err != nil {
				return err
			}
			if !found {
				res = append(res, item.Clone())
			}
		}
		slot.Set(domain.Array(res...))
	}
	return nil
}

func (m *Modifier) contains(arr []domain.Value, v domain.Value) (bool, error) {
	for _, item := range arr {
		c, err := m.comparer.Compare(item, v)
		if err != nil {
			return false, err
		}
		if c == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m *Modifier) pop(doc *domain.Doc, addr []string, arg domain.Value) error {
	n, err := asInt("$pop", arg)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	slots, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		value, _ := slot.Get()
		if value.Kind() != domain.KindArray {
			return fmt.Errorf("cannot $pop from non-array values")
		}
		arr := value.Array()
		if len(arr) == 0 {
			continue
		}
		if n > 0 {
			arr = arr[:len(arr)-1]
		} else {
			arr = arr[1:]
		}
		slot.Set(domain.Array(arr...))
	}
	return nil
}

func (m *Modifier) pull(doc *domain.Doc, addr []string, arg domain.Value) error {
	pred, err := m.matcher.CompileElem(arg)
	if err != nil {
		return err
	}
	slots, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		value, _ := slot.Get()
		if value.Kind() != domain.KindArray {
			return fmt.Errorf("cannot $pull from non-array values")
		}
		arr := value.Array()
		res := make([]domain.Value, 0, len(arr))
		for _, item := range arr {
			matches, err := pred.MatchElem(item)
			if err != nil {
				return err
			}
			if !matches {
				res = append(res, item)
			}
		}
		slot.Set(domain.Array(res...))
	}
	return nil
}

func (m *Modifier) max(doc *domain.Doc, addr []string, arg domain.Value) error {
	return m.bound(doc, addr, arg, func(c int) bool { return c < 0 })
}

func (m *Modifier) min(doc *domain.Doc, addr []string, arg domain.Value) error {
	return m.bound(doc, addr, arg, func(c int) bool { return c > 0 })
}

// bound keeps the larger or smaller of the current value and the
// operand. Fields that do not exist yet take the operand outright,
// which is not the same as fields holding null.
func (m *Modifier) bound(doc *domain.Doc, addr []string, arg domain.Value, replace func(int) bool) error {
	pre, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return err
	}
	existed := make([]bool, len(pre))
	for n, slot := range pre {
		_, existed[n] = slot.Get()
	}

	slots, err := m.fn.EnsureField(doc, addr...)
	if err != nil {
		return err
	}
	for n, slot := range slots {
		value, defined := slot.Get()
		if !defined {
			continue
		}
		if n < len(existed) && !existed[n] {
			slot.Set(arg.Clone())
			continue
		}
		c, err := m.comparer.Compare(value, arg)
		if err != nil {
			return err
		}
		if replace(c) {
			slot.Set(arg.Clone())
		}
	}
	return nil
}
