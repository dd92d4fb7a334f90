// Package querier contains the default [domain.Querier] implementation.
package querier

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/projector"
)

// Querier implements [domain.Querier].
type Querier struct {
	mtchr domain.Matcher
	cmpr  domain.Comparer
	fn    domain.FieldNavigator
	proj  domain.Projector
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(options ...domain.QuerierOption) domain.Querier {
	var opts domain.QuerierOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.FieldNavigator == nil {
		opts.FieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if opts.Projector == nil {
		opts.Projector = projector.NewProjector(
			domain.WithProjectorFieldNavigator(opts.FieldNavigator),
		)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewMatcher(
			domain.WithMatcherComparer(opts.Comparer),
			domain.WithMatcherFieldNavigator(opts.FieldNavigator),
		)
	}
	return &Querier{
		mtchr: opts.Matcher,
		cmpr:  opts.Comparer,
		fn:    opts.FieldNavigator,
		proj:  opts.Projector,
	}
}

// Query implements [domain.Querier]. Without a sort the stream is
// consumed only as far as the limit requires.
func (q *Querier) Query(ctx context.Context, data iter.Seq2[*domain.Doc, error], options ...domain.QueryOption) ([]*domain.Doc, error) {
	var opts domain.QueryOptions
	for _, option := range options {
		option(&opts)
	}

	pred := opts.Predicate
	if pred == nil && opts.Query != nil {
		compiled, err := q.mtchr.Compile(opts.Query)
		if err != nil {
			return nil, err
		}
		pred = compiled
	}

	addrs, err := q.sortAddresses(opts.Sort)
	if err != nil {
		return nil, err
	}

	var skipped int64
	var res []*domain.Doc
	for doc, err := range data {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pred != nil {
			matches, err := pred.Match(doc)
			if err != nil {
				return nil, fmt.Errorf("matching document: %w", err)
			}
			if !matches {
				continue
			}
		}
		if opts.Sort == nil {
			if skipped < opts.Skip {
				skipped++
				continue
			}
			if opts.Limit > 0 && int64(len(res)) == opts.Limit {
				break
			}
		}
		res = append(res, doc)
	}

	if opts.Sort != nil {
		if err := q.sort(res, opts.Sort, addrs); err != nil {
			return nil, fmt.Errorf("sorting: %w", err)
		}
		res = window(res, opts.Skip, opts.Limit)
	}

	res, err = q.proj.Project(res, opts.Projection)
	if err != nil {
		return nil, fmt.Errorf("projecting: %w", err)
	}
	return res, nil
}

// sortAddresses resolves every sort key up front so path problems
// surface before the stream is consumed.
func (q *Querier) sortAddresses(sort domain.Sort) ([][]string, error) {
	if sort == nil {
		return nil, nil
	}
	addrs := make([][]string, len(sort))
	for n, crit := range sort {
		addr, err := q.fn.GetAddress(crit.Key)
		if err != nil {
			return nil, fmt.Errorf("getting address: %w", err)
		}
		addrs[n] = addr
	}
	return addrs, nil
}

// sort orders res in place. The sort is stable, so documents with
// equal keys keep their stream order.
func (q *Querier) sort(res []*domain.Doc, sort domain.Sort, addrs [][]string) error {
	var sortErr error
	slices.SortStableFunc(res, func(a, b *domain.Doc) int {
		if sortErr != nil {
			return 0
		}
		for n, crit := range sort {
			comp, err := q.compareByCriterion(a, b, addrs[n])
			if err != nil {
				sortErr = err
				return 0
			}
			if crit.Order < 0 {
				comp = -comp
			}
			if comp != 0 {
				return comp
			}
		}
		return 0
	})
	return sortErr
}

// compareByCriterion orders two documents by one sort key. Slot values
// wrap in an array so expanded paths and missing fields rank by the
// comparer's class order, missing first.
func (q *Querier) compareByCriterion(a, b *domain.Doc, addr []string) (int, error) {
	keyA, err := q.sortKey(a, addr)
	if err != nil {
		return 0, err
	}
	keyB, err := q.sortKey(b, addr)
	if err != nil {
		return 0, err
	}
	comp, err := q.cmpr.Compare(keyA, keyB)
	if err != nil {
		return 0, fmt.Errorf("comparing: %w", err)
	}
	return comp, nil
}

func (q *Querier) sortKey(doc *domain.Doc, addr []string) (domain.Value, error) {
	slots, _, err := q.fn.GetField(doc, addr...)
	if err != nil {
		return domain.Undefined(), fmt.Errorf("getting field: %w", err)
	}
	elems := make([]domain.Value, len(slots))
	for n, slot := range slots {
		elems[n], _ = slot.Get()
	}
	return domain.Array(elems...), nil
}

// window applies skip and limit to the sorted result. A limit of zero
// or less returns everything after the skip.
func window(data []*domain.Doc, skip, limit int64) []*domain.Doc {
	length := int64(len(data))
	skip = min(max(skip, 0), length)
	if limit <= 0 {
		return data[skip:]
	}
	return data[skip:min(skip+limit, length)]
}
