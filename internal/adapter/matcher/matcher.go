// Package matcher contains the default [domain.Matcher] implementation.
// Queries compile into predicate trees up front, so malformed operators
// surface before any document is examined.
package matcher

import (
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
)

// predFunc is a compiled query evaluated against one document.
type predFunc func(*domain.Doc) (bool, error)

// Match implements [domain.Predicate].
func (f predFunc) Match(doc *domain.Doc) (bool, error) { return f(doc) }

// valueMatch evaluates one operator against a single value. defined is
// false when the value's address does not resolve in the document.
type valueMatch func(v domain.Value, defined bool) (bool, error)

// elemFunc is a compiled element condition.
type elemFunc func(domain.Value) (bool, error)

// MatchElem implements [domain.ElemPredicate].
func (f elemFunc) MatchElem(v domain.Value) (bool, error) { return f(v) }

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer domain.Comparer
	fn       domain.FieldNavigator
	logicOps map[string]func(arg domain.Value) (predFunc, error)
	fieldOps map[string]func(addr []string, arg domain.Value) (predFunc, error)
	valueOps map[string]func(arg domain.Value) (valueMatch, error)
}

// NewMatcher returns a new implementation of [domain.Matcher].
func NewMatcher(options ...domain.MatcherOption) domain.Matcher {
	opts := domain.MatcherOptions{
		Comparer:       comparer.NewComparer(),
		FieldNavigator: fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(&opts)
	}

	m := &Matcher{
		comparer: opts.Comparer,
		fn:       opts.FieldNavigator,
	}
	m.logicOps = map[string]func(domain.Value) (predFunc, error){
		"$and": m.compileAnd,
		"$or":  m.compileOr,
		"$not": m.compileNot,
	}
	m.valueOps = map[string]func(domain.Value) (valueMatch, error){
		"$eq":        m.compileEq,
		"$ne":        m.compileNe,
		"$gt":        m.compileGt,
		"$gte":       m.compileGte,
		"$lt":        m.compileLt,
		"$lte":       m.compileLte,
		"$bt":        m.compileBt,
		"$in":        m.compileIn,
		"$nin":       m.compileNin,
		"$regex":     m.compileRegex,
		"$begin":     m.compileBegin,
		"$icase":     m.compileIcase,
		"$strand":    m.compileStrAnd,
		"$stror":     m.compileStrOr,
		"$all":       m.compileAll,
		"$size":      m.compileSizeValue,
		"$elemMatch": m.compileElemPred,
	}
	m.fieldOps = map[string]func([]string, domain.Value) (predFunc, error){
		"$eq":        m.slotOp(m.compileEq),
		"$ne":        m.elemOp(m.compileNe),
		"$gt":        m.elemOp(m.compileGt),
		"$gte":       m.elemOp(m.compileGte),
		"$lt":        m.elemOp(m.compileLt),
		"$lte":       m.elemOp(m.compileLte),
		"$bt":        m.elemOp(m.compileBt),
		"$in":        m.elemOp(m.compileIn),
		"$nin":       m.elemOp(m.compileNin),
		"$regex":     m.elemOp(m.compileRegex),
		"$begin":     m.elemOp(m.compileBegin),
		"$icase":     m.elemOp(m.compileIcase),
		"$strand":    m.slotOp(m.compileStrAnd),
		"$stror":     m.slotOp(m.compileStrOr),
		"$all":       m.slotOp(m.compileAll),
		"$exists":    m.compileExists,
		"$size":      m.compileSize,
		"$elemMatch": m.compileElemMatch,
	}

	return m
}

// Compile implements [domain.Matcher]. A nil or empty query matches
// every document.
func (m *Matcher) Compile(query *domain.Doc) (domain.Predicate, error) {
	pred, err := m.compileQuery(query)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// CompileElem implements [domain.Matcher].
func (m *Matcher) CompileElem(condition domain.Value) (domain.ElemPredicate, error) {
	vm, err := m.compileElemPred(condition)
	if err != nil {
		return nil, err
	}
	return elemFunc(func(v domain.Value) (bool, error) {
		return vm(v, true)
	}), nil
}

func (m *Matcher) compileQuery(query *domain.Doc) (predFunc, error) {
	if query == nil || query.Len() == 0 {
		return matchAll, nil
	}

	hasOps, err := checkFields(query)
	if err != nil {
		return nil, err
	}

	preds := make([]predFunc, 0, query.Len())
	for field, value := range query.Iter() {
		var pred predFunc
		var err error
		if hasOps {
			compile, ok := m.logicOps[field]
			if !ok {
				return nil, &domain.ErrInvalidQuery{
					Op:     field,
					Reason: "unknown logical operator",
				}
			}
			pred, err = compile(value)
		} else {
			pred, err = m.compileField(field, value)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return allOf(preds), nil
}

func (m *Matcher) compileField(field string, value domain.Value) (predFunc, error) {
	addr, err := m.fn.GetAddress(field)
	if err != nil {
		return nil, err
	}

	if value.Kind() != domain.KindObject {
		return m.fieldOps["$eq"](addr, value)
	}

	sub := value.Doc()
	hasOps, err := checkFields(sub)
	if err != nil {
		return nil, err
	}
	if !hasOps {
		// a nested object without operators is matched by deep equality
		return m.fieldOps["$eq"](addr, value)
	}

	preds := make([]predFunc, 0, sub.Len())
	for op, arg := range sub.Iter() {
		compile, ok := m.fieldOps[op]
		if !ok {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "unknown comparison operator",
			}
		}
		pred, err := compile(addr, arg)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return allOf(preds), nil
}

// checkFields reports whether the document consists of operators.
// Operators and plain fields cannot appear side by side.
func checkFields(query *domain.Doc) (bool, error) {
	total := 0
	dollar := 0
	for field := range query.Keys() {
		total++
		if strings.HasPrefix(field, "$") {
			dollar++
		}
		if dollar > 0 && dollar != total {
			return false, &domain.ErrInvalidQuery{
				Reason: "cannot mix operators and plain fields",
			}
		}
	}
	return dollar > 0, nil
}

func matchAll(*domain.Doc) (bool, error) { return true, nil }

func allOf(preds []predFunc) predFunc {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(doc *domain.Doc) (bool, error) {
		for _, pred := range preds {
			matches, err := pred(doc)
			if err != nil || !matches {
				return false, err
			}
		}
		return true, nil
	}
}

// slotOp builds a field operator that applies the compiled match to
// each value reached by the address, arrays taken as a whole.
func (m *Matcher) slotOp(compile func(domain.Value) (valueMatch, error)) func([]string, domain.Value) (predFunc, error) {
	return func(addr []string, arg domain.Value) (predFunc, error) {
		vm, err := compile(arg)
		if err != nil {
			return nil, err
		}
		return func(doc *domain.Doc) (bool, error) {
			return m.slotAny(doc, addr, vm)
		}, nil
	}
}

// elemOp builds a field operator that additionally descends one level
// into array values: an array field matches when any element does.
func (m *Matcher) elemOp(compile func(domain.Value) (valueMatch, error)) func([]string, domain.Value) (predFunc, error) {
	return func(addr []string, arg domain.Value) (predFunc, error) {
		vm, err := compile(arg)
		if err != nil {
			return nil, err
		}
		return func(doc *domain.Doc) (bool, error) {
			return m.elemAny(doc, addr, vm)
		}, nil
	}
}

func (m *Matcher) slotAny(doc *domain.Doc, addr []string, vm valueMatch) (bool, error) {
	slots, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		v, defined := slot.Get()
		matches, err := vm(v, defined)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) elemAny(doc *domain.Doc, addr []string, vm valueMatch) (bool, error) {
	slots, _, err := m.fn.GetField(doc, addr...)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		v, defined := slot.Get()
		if defined && v.Kind() == domain.KindArray {
			for _, item := range v.Array() {
				matches, err := vm(item, true)
				if err != nil || matches {
					return matches, err
				}
			}
			continue
		}
		matches, err := vm(v, defined)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) compileAnd(arg domain.Value) (predFunc, error) {
	preds, err := m.compileQueryList("$and", arg)
	if err != nil {
		return nil, err
	}
	return allOf(preds), nil
}

func (m *Matcher) compileOr(arg domain.Value) (predFunc, error) {
	preds, err := m.compileQueryList("$or", arg)
	if err != nil {
		return nil, err
	}
	return func(doc *domain.Doc) (bool, error) {
		for _, pred := range preds {
			matches, err := pred(doc)
			if err != nil || matches {
				return matches, err
			}
		}
		return false, nil
	}, nil
}

func (m *Matcher) compileNot(arg domain.Value) (predFunc, error) {
	if arg.Kind() != domain.KindObject {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$not",
			Reason: "operand must be a document",
		}
	}
	pred, err := m.compileQuery(arg.Doc())
	if err != nil {
		return nil, err
	}
	return func(doc *domain.Doc) (bool, error) {
		matches, err := pred(doc)
		if err != nil {
			return false, err
		}
		return !matches, nil
	}, nil
}

func (m *Matcher) compileQueryList(op string, arg domain.Value) ([]predFunc, error) {
	if arg.Kind() != domain.KindArray || len(arg.Array()) == 0 {
		return nil, &domain.ErrInvalidQuery{
			Op:     op,
			Reason: "operand must be a non-empty array of documents",
		}
	}
	arr := arg.Array()
	preds := make([]predFunc, 0, len(arr))
	for _, item := range arr {
		if item.Kind() != domain.KindObject {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "operand must be a non-empty array of documents",
			}
		}
		pred, err := m.compileQuery(item.Doc())
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}
