package matcher

import (
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// compileEq backs both the bare {field: value} form and the explicit
// $eq operator. An array field equals an array operand as a whole and a
// scalar operand through any of its elements.
func (m *Matcher) compileEq(arg domain.Value) (valueMatch, error) {
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined {
			return false, nil
		}
		if v.Kind() == domain.KindArray && arg.Kind() != domain.KindArray {
			return m.contains(v.Array(), arg)
		}
		c, err := m.comparer.Compare(v, arg)
		if err != nil {
			return false, err
		}
		return c == 0, nil
	}, nil
}

func (m *Matcher) compileNe(arg domain.Value) (valueMatch, error) {
	return m.compileCmp(arg, func(c int) bool { return c != 0 }), nil
}

func (m *Matcher) compileGt(arg domain.Value) (valueMatch, error) {
	return m.compileCmp(arg, func(c int) bool { return c > 0 }), nil
}

func (m *Matcher) compileGte(arg domain.Value) (valueMatch, error) {
	return m.compileCmp(arg, func(c int) bool { return c >= 0 }), nil
}

func (m *Matcher) compileLt(arg domain.Value) (valueMatch, error) {
	return m.compileCmp(arg, func(c int) bool { return c < 0 }), nil
}

func (m *Matcher) compileLte(arg domain.Value) (valueMatch, error) {
	return m.compileCmp(arg, func(c int) bool { return c <= 0 }), nil
}

// compileCmp builds the ordered comparisons. Values of another class
// than the operand never match, without erroring out the whole query.
func (m *Matcher) compileCmp(arg domain.Value, want func(int) bool) valueMatch {
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || !m.comparer.Comparable(v, arg) {
			return false, nil
		}
		c, err := m.comparer.Compare(v, arg)
		if err != nil {
			return false, err
		}
		return want(c), nil
	}
}

// compileBt matches values between two inclusive bounds. Bounds may
// come in either order.
func (m *Matcher) compileBt(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindArray || len(arg.Array()) != 2 {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$bt",
			Reason: "operand must be a two-element array",
		}
	}
	lo, hi := arg.Array()[0], arg.Array()[1]
	if !m.comparer.Comparable(lo, hi) {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$bt",
			Reason: "bounds are not comparable with each other",
		}
	}
	if c, err := m.comparer.Compare(lo, hi); err != nil {
		return nil, err
	} else if c > 0 {
		lo, hi = hi, lo
	}
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || !m.comparer.Comparable(v, lo) {
			return false, nil
		}
		if c, err := m.comparer.Compare(v, lo); err != nil || c < 0 {
			return false, err
		}
		c, err := m.comparer.Compare(v, hi)
		if err != nil {
			return false, err
		}
		return c <= 0, nil
	}, nil
}

func (m *Matcher) compileIn(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindArray {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$in",
			Reason: "operand must be an array",
		}
	}
	list := arg.Array()
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined {
			return false, nil
		}
		return m.contains(list, v)
	}, nil
}

func (m *Matcher) compileNin(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindArray {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$nin",
			Reason: "operand must be an array",
		}
	}
	list := arg.Array()
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined {
			// nothing in a list equals an absent value
			return true, nil
		}
		found, err := m.contains(list, v)
		if err != nil {
			return false, err
		}
		return !found, nil
	}, nil
}

func (m *Matcher) contains(list []domain.Value, v domain.Value) (bool, error) {
	for _, item := range list {
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

func (m *Matcher) compileRegex(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindString {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$regex",
			Reason: "operand must be a pattern string",
		}
	}
	rgx, err := regexp.Compile(arg.Str())
	if err != nil {
		return nil, &domain.ErrInvalidQuery{Op: "$regex", Reason: err.Error()}
	}
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || v.Kind() != domain.KindString {
			return false, nil
		}
		return rgx.MatchString(v.Str()), nil
	}, nil
}

func (m *Matcher) compileBegin(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindString {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$begin",
			Reason: "operand must be a string",
		}
	}
	prefix := arg.Str()
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || v.Kind() != domain.KindString {
			return false, nil
		}
		return strings.HasPrefix(v.Str(), prefix), nil
	}, nil
}

// compileIcase wraps string equality, or an $in list of strings, so
// they match regardless of case.
func (m *Matcher) compileIcase(arg domain.Value) (valueMatch, error) {
	var wants []string
	switch arg.Kind() {
	case domain.KindString:
		wants = []string{arg.Str()}
	case domain.KindObject:
		sub := arg.Doc()
		inArg, ok := sub.GetOk("$in")
		if !ok || sub.Len() != 1 {
			return nil, &domain.ErrInvalidQuery{
				Op:     "$icase",
				Reason: "operand must be a string or an $in list",
			}
		}
		var err error
		wants, err = stringList("$icase", inArg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &domain.ErrInvalidQuery{
			Op:     "$icase",
			Reason: "operand must be a string or an $in list",
		}
	}
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || v.Kind() != domain.KindString {
			return false, nil
		}
		for _, want := range wants {
			if strings.EqualFold(v.Str(), want) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

// compileStrAnd matches fields containing every one of the given
// strings, either as array elements or as space-separated tokens.
func (m *Matcher) compileStrAnd(arg domain.Value) (valueMatch, error) {
	wants, err := stringList("$strand", arg)
	if err != nil {
		return nil, err
	}
	return func(v domain.Value, defined bool) (bool, error) {
		tokens, ok := stringTokens(v, defined)
		if !ok {
			return false, nil
		}
		for _, want := range wants {
			if !slices.Contains(tokens, want) {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

// compileStrOr is the any-of counterpart of $strand.
func (m *Matcher) compileStrOr(arg domain.Value) (valueMatch, error) {
	wants, err := stringList("$stror", arg)
	if err != nil {
		return nil, err
	}
	return func(v domain.Value, defined bool) (bool, error) {
		tokens, ok := stringTokens(v, defined)
		if !ok {
			return false, nil
		}
		for _, want := range wants {
			if slices.Contains(tokens, want) {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

// stringTokens extracts the tokens of a field value: the string
// elements of an array, or the space-separated tokens of a string.
func stringTokens(v domain.Value, defined bool) ([]string, bool) {
	if !defined {
		return nil, false
	}
	switch v.Kind() {
	case domain.KindString:
		return strings.Fields(v.Str()), true
	case domain.KindArray:
		var res []string
		for _, item := range v.Array() {
			if item.Kind() == domain.KindString {
				res = append(res, item.Str())
			}
		}
		return res, true
	}
	return nil, false
}

func stringList(op string, arg domain.Value) ([]string, error) {
	if arg.Kind() != domain.KindArray {
		return nil, &domain.ErrInvalidQuery{
			Op:     op,
			Reason: "operand must be an array of strings",
		}
	}
	arr := arg.Array()
	res := make([]string, len(arr))
	for n, item := range arr {
		if item.Kind() != domain.KindString {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "operand must be an array of strings",
			}
		}
		res[n] = item.Str()
	}
	return res, nil
}

func (m *Matcher) compileAll(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindArray {
		return nil, &domain.ErrInvalidQuery{
			Op:     "$all",
			Reason: "operand must be an array",
		}
	}
	wants := arg.Array()
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || v.Kind() != domain.KindArray || len(wants) == 0 {
			return false, nil
		}
		for _, want := range wants {
			found, err := m.contains(v.Array(), want)
			if err != nil {
				return false, err
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

func (m *Matcher) compileExists(addr []string, arg domain.Value) (predFunc, error) {
	want := isTruthy(arg)
	return func(doc *domain.Doc) (bool, error) {
		slots, _, err := m.fn.GetField(doc, addr...)
		if err != nil {
			return false, err
		}
		for _, slot := range slots {
			if _, defined := slot.Get(); defined {
				return want, nil
			}
		}
		return !want, nil
	}, nil
}

// isTruthy follows the convention that only null, false and numeric
// zero reject: empty strings, arrays and documents still count as
// asking for presence.
func isTruthy(v domain.Value) bool {
	switch v.Kind() {
	case domain.KindUndefined, domain.KindNull:
		return false
	case domain.KindBool:
		return v.Bool()
	case domain.KindInt:
		return v.Int() != 0
	case domain.KindFloat:
		return v.Float() != 0
	}
	return true
}

// compileSize counts the elements of an array field or, when the
// address expanded an array along the way, the number of values
// reached.
func (m *Matcher) compileSize(addr []string, arg domain.Value) (predFunc, error) {
	num, err := asLen(arg)
	if err != nil {
		return nil, err
	}
	return func(doc *domain.Doc) (bool, error) {
		slots, expanded, err := m.fn.GetField(doc, addr...)
		if err != nil {
			return false, err
		}
		if expanded {
			return len(slots) == num, nil
		}
		v, defined := slots[0].Get()
		if !defined || v.Kind() != domain.KindArray {
			return false, nil
		}
		return len(v.Array()) == num, nil
	}, nil
}

// compileSizeValue is the element-level form of $size used inside
// $elemMatch.
func (m *Matcher) compileSizeValue(arg domain.Value) (valueMatch, error) {
	num, err := asLen(arg)
	if err != nil {
		return nil, err
	}
	return func(v domain.Value, defined bool) (bool, error) {
		if !defined || v.Kind() != domain.KindArray {
			return false, nil
		}
		return len(v.Array()) == num, nil
	}, nil
}

func asLen(arg domain.Value) (int, error) {
	switch arg.Kind() {
	case domain.KindInt:
		return int(arg.Int()), nil
	case domain.KindFloat:
		f := arg.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), nil
		}
	}
	return 0, &domain.ErrInvalidQuery{
		Op:     "$size",
		Reason: "operand must be an integer",
	}
}

func (m *Matcher) compileElemMatch(addr []string, arg domain.Value) (predFunc, error) {
	vm, err := m.compileElemPred(arg)
	if err != nil {
		return nil, err
	}
	return func(doc *domain.Doc) (bool, error) {
		slots, _, err := m.fn.GetField(doc, addr...)
		if err != nil {
			return false, err
		}
		for _, slot := range slots {
			v, defined := slot.Get()
			if !defined || v.Kind() != domain.KindArray {
				continue
			}
			for _, item := range v.Array() {
				matches, err := vm(item, true)
				if err != nil || matches {
					return matches, err
				}
			}
		}
		return false, nil
	}, nil
}

// compileElemPred builds the per-element predicate of $elemMatch. A
// document operand made of comparison operators applies them to the
// element itself; one made of plain fields or logical operators is a
// sub-query document elements have to satisfy; anything else matches
// elements by equality.
func (m *Matcher) compileElemPred(arg domain.Value) (valueMatch, error) {
	if arg.Kind() != domain.KindObject {
		return m.compileEq(arg)
	}
	sub := arg.Doc()
	hasOps, err := checkFields(sub)
	if err != nil {
		return nil, err
	}
	if !hasOps || m.allLogic(sub) {
		pred, err := m.compileQuery(sub)
		if err != nil {
			return nil, err
		}
		return func(v domain.Value, defined bool) (bool, error) {
			if !defined || v.Kind() != domain.KindObject {
				return false, nil
			}
			return pred(v.Doc())
		}, nil
	}

	vms := make([]valueMatch, 0, sub.Len())
	for op, opArg := range sub.Iter() {
		compile, ok := m.valueOps[op]
		if !ok {
			return nil, &domain.ErrInvalidQuery{
				Op:     op,
				Reason: "operator cannot be applied to array elements",
			}
		}
		vm, err := compile(opArg)
		if err != nil {
			return nil, err
		}
		vms = append(vms, vm)
	}
	return func(v domain.Value, defined bool) (bool, error) {
		for _, vm := range vms {
			matches, err := vm(v, defined)
			if err != nil || !matches {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func (m *Matcher) allLogic(sub *domain.Doc) bool {
	for op := range sub.Keys() {
		if _, ok := m.logicOps[op]; !ok {
			return false
		}
	}
	return true
}
