package querier

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/matcher"
)

type S = domain.Sort

type fieldNavigatorMock struct{ mock.Mock }

func (f *fieldNavigatorMock) GetField(doc *domain.Doc, fields ...string) ([]domain.GetSetter, bool, error) {
	args := f.Called(doc, fields)
	slots, _ := args.Get(0).([]domain.GetSetter)
	return slots, args.Bool(1), args.Error(2)
}

func (f *fieldNavigatorMock) EnsureField(doc *domain.Doc, fields ...string) ([]domain.GetSetter, error) {
	args := f.Called(doc, fields)
	slots, _ := args.Get(0).([]domain.GetSetter)
	return slots, args.Error(1)
}

func (f *fieldNavigatorMock) GetAddress(field string) ([]string, error) {
	args := f.Called(field)
	addr, _ := args.Get(0).([]string)
	return addr, args.Error(1)
}

// strLenComparer orders sort keys by the length of their first string
// element.
type strLenComparer struct{}

func (strLenComparer) Compare(a, b domain.Value) (int, error) {
	return len(a.Array()[0].Str()) - len(b.Array()[0].Str()), nil
}

func (strLenComparer) Comparable(a, b domain.Value) bool { return true }

// stream yields the given documents one by one.
func stream(docs ...*domain.Doc) iter.Seq2[*domain.Doc, error] {
	return func(yield func(*domain.Doc, error) bool) {
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

type QuerierSuite struct {
	suite.Suite
	q    *Querier
	ctx  context.Context
	ages []*domain.Doc
}

func TestQuerier(t *testing.T) {
	suite.Run(t, new(QuerierSuite))
}

func (s *QuerierSuite) SetupSuite() {
	s.ctx = context.Background()
	for _, src := range []string{
		`{"age": 5}`,
		`{"age": 57}`,
		`{"age": 52}`,
		`{"age": 23}`,
		`{"age": 89}`,
	} {
		s.ages = append(s.ages, s.doc(src))
	}
}

func (s *QuerierSuite) SetupTest() {
	s.q = NewQuerier().(*Querier)
}

func (s *QuerierSuite) SetupSubTest() {
	s.SetupTest()
}

// doc parses a JSON fixture.
func (s *QuerierSuite) doc(src string) *domain.Doc {
	doc, err := data.ParseJSON([]byte(src))
	s.Require().NoError(err)
	return doc
}

// run queries s.ages and requires success.
func (s *QuerierSuite) run(options ...domain.QueryOption) []*domain.Doc {
	docs, err := s.q.Query(s.ctx, stream(s.ages...), options...)
	s.Require().NoError(err)
	return docs
}

// agesOf lists the age field of every result.
func (s *QuerierSuite) agesOf(docs []*domain.Doc) []int64 {
	res := make([]int64, len(docs))
	for n, doc := range docs {
		res[n] = doc.Get("age").Int()
	}
	return res
}

// Without options the stream comes back untouched.
func (s *QuerierSuite) TestNoTreatment() {
	docs := s.run()
	s.Equal(s.ages, docs)
}

// An empty query keeps every document.
func (s *QuerierSuite) TestEmptyQuery() {
	docs := s.run(domain.WithQuery(s.doc(`{}`)))
	s.Equal(s.ages, docs)
}

// A query filters the stream, preserving its order.
func (s *QuerierSuite) TestSimpleQuery() {
	docs := s.run(domain.WithQuery(s.doc(`{"age": {"$gt": 23}}`)))
	s.Equal([]int64{57, 52, 89}, s.agesOf(docs))
}

// A precompiled predicate wins over a query document.
func (s *QuerierSuite) TestPredicatePrecedence() {
	pred, err := matcher.NewMatcher().Compile(s.doc(`{"age": {"$lt": 23}}`))
	s.Require().NoError(err)

	docs := s.run(
		domain.WithQuery(s.doc(`{"age": {"$gt": 23}}`)),
		domain.WithQueryPredicate(pred),
	)
	s.Equal([]int64{5}, s.agesOf(docs))
}

// A malformed query fails before the stream is consumed.
func (s *QuerierSuite) TestInvalidQuery() {
	pulled := 0
	seq := func(yield func(*domain.Doc, error) bool) {
		for _, doc := range s.ages {
			pulled++
			if !yield(doc, nil) {
				return
			}
		}
	}

	docs, err := s.q.Query(s.ctx, seq, domain.WithQuery(s.doc(`{"age": {"$wat": 1}}`)))
	var invalid *domain.ErrInvalidQuery
	s.ErrorAs(err, &invalid)
	s.Nil(docs)
	s.Zero(pulled)
}

// Errors produced by the stream abort the query.
func (s *QuerierSuite) TestStreamError() {
	seq := func(yield func(*domain.Doc, error) bool) {
		if !yield(s.ages[0], nil) {
			return
		}
		yield(nil, assert.AnError)
	}

	docs, err := s.q.Query(s.ctx, seq)
	s.ErrorIs(err, assert.AnError)
	s.Nil(docs)
}

// A cancelled context stops the query.
func (s *QuerierSuite) TestContextCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs, err := s.q.Query(ctx, stream(s.ages...))
	s.ErrorIs(err, context.Canceled)
	s.Nil(docs)
}

// Without a sort, the limit stops the stream early.
func (s *QuerierSuite) TestLimitStopsEarly() {
	pulled := 0
	seq := func(yield func(*domain.Doc, error) bool) {
		for _, doc := range s.ages {
			pulled++
			if !yield(doc, nil) {
				return
			}
		}
	}

	docs, err := s.q.Query(s.ctx, seq, domain.WithQueryLimit(2))
	s.NoError(err)
	s.Equal([]int64{5, 57}, s.agesOf(docs))
	s.Equal(3, pulled)
}

// Limit and skip work on the unsorted stream.
func (s *QuerierSuite) TestLimitAndSkip() {
	docs := s.run(domain.WithQueryLimit(3))
	s.Len(docs, 3)

	docs = s.run(domain.WithQuerySkip(2))
	s.Equal([]int64{52, 23, 89}, s.agesOf(docs))

	docs = s.run(domain.WithQueryLimit(4), domain.WithQuerySkip(3))
	s.Equal([]int64{23, 89}, s.agesOf(docs))
}

// An empty stream yields an empty result, sorted or not.
func (s *QuerierSuite) TestEmptyStream() {
	docs, err := s.q.Query(s.ctx, stream())
	s.NoError(err)
	s.Len(docs, 0)

	docs, err = s.q.Query(s.ctx, stream(), domain.WithQuerySort(S{{Key: "age", Order: 1}}))
	s.NoError(err)
	s.Len(docs, 0)
}

// Sorting orders ascending for positive orders and descending for
// negative ones.
func (s *QuerierSuite) TestSort() {
	docs := s.run(domain.WithQuerySort(S{{Key: "age", Order: 1}}))
	s.Equal([]int64{5, 23, 52, 57, 89}, s.agesOf(docs))

	docs = s.run(domain.WithQuerySort(S{{Key: "age", Order: -1}}))
	s.Equal([]int64{89, 57, 52, 23, 5}, s.agesOf(docs))
}

// The limit applies after the sort.
func (s *QuerierSuite) TestLimitAndSort() {
	docs := s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQueryLimit(3),
	)
	s.Equal([]int64{5, 23, 52}, s.agesOf(docs))

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: -1}}),
		domain.WithQueryLimit(2),
	)
	s.Equal([]int64{89, 57}, s.agesOf(docs))

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQueryLimit(7),
	)
	s.Equal([]int64{5, 23, 52, 57, 89}, s.agesOf(docs))
}

// Skip applies after the sort and before the limit.
func (s *QuerierSuite) TestLimitSkipAndSort() {
	docs := s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQueryLimit(1),
		domain.WithQuerySkip(2),
	)
	s.Equal([]int64{52}, s.agesOf(docs))

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQueryLimit(3),
		domain.WithQuerySkip(1),
	)
	s.Equal([]int64{23, 52, 57}, s.agesOf(docs))

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: -1}}),
		domain.WithQueryLimit(2),
		domain.WithQuerySkip(2),
	)
	s.Equal([]int64{52, 23}, s.agesOf(docs))

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQueryLimit(8),
		domain.WithQuerySkip(2),
	)
	s.Equal([]int64{52, 57, 89}, s.agesOf(docs))
}

// Skipping past the end returns nothing.
func (s *QuerierSuite) TestTooBigSkip() {
	docs := s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQuerySkip(5),
	)
	s.Len(docs, 0)

	docs = s.run(
		domain.WithQuerySort(S{{Key: "age", Order: 1}}),
		domain.WithQuerySkip(7),
		domain.WithQueryLimit(3),
	)
	s.Len(docs, 0)
}

// Strings sort lexicographically.
func (s *QuerierSuite) TestSortStrings() {
	docs := []*domain.Doc{
		s.doc(`{"name": "jako"}`),
		s.doc(`{"name": "jakeb"}`),
		s.doc(`{"name": "sue"}`),
	}

	res, err := s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "name", Order: 1}}))
	s.NoError(err)
	s.Equal("jakeb", res[0].Get("name").Str())
	s.Equal("jako", res[1].Get("name").Str())
	s.Equal("sue", res[2].Get("name").Str())

	res, err = s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "name", Order: -1}}))
	s.NoError(err)
	s.Equal("sue", res[0].Get("name").Str())
	s.Equal("jako", res[1].Get("name").Str())
	s.Equal("jakeb", res[2].Get("name").Str())
}

// Dates sort chronologically, through dotted paths.
func (s *QuerierSuite) TestSortDates() {
	event := func(ms int64) *domain.Doc {
		inner := domain.NewDoc()
		inner.Set("recorded", domain.Time(time.UnixMilli(ms)))
		doc := domain.NewDoc()
		doc.Set("event", domain.Object(inner))
		return doc
	}
	docs := []*domain.Doc{event(400), event(60000), event(32)}

	res, err := s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQuerySort(S{{Key: "event.recorded", Order: 1}}),
	)
	s.NoError(err)
	recorded := func(d *domain.Doc) time.Time {
		return d.Get("event").Doc().Get("recorded").Time()
	}
	s.Equal(time.UnixMilli(32).UTC(), recorded(res[0]))
	s.Equal(time.UnixMilli(400).UTC(), recorded(res[1]))
	s.Equal(time.UnixMilli(60000).UTC(), recorded(res[2]))

	res, err = s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQuerySort(S{{Key: "event.recorded", Order: -1}}),
	)
	s.NoError(err)
	s.Equal(time.UnixMilli(60000).UTC(), recorded(res[0]))
	s.Equal(time.UnixMilli(32).UTC(), recorded(res[2]))
}

// Documents missing the sort key rank before every defined value.
func (s *QuerierSuite) TestSortSomeMissing() {
	docs := []*domain.Doc{
		s.doc(`{"name": "jako", "other": 2}`),
		s.doc(`{"name": "jakeb", "other": 3}`),
		s.doc(`{"name": "sue"}`),
		s.doc(`{"name": "henry", "other": 4}`),
	}

	res, err := s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "other", Order: 1}}))
	s.NoError(err)
	s.Len(res, 4)
	s.False(res[0].Has("other"))
	s.Equal("sue", res[0].Get("name").Str())
	s.Equal("jako", res[1].Get("name").Str())
	s.Equal("jakeb", res[2].Get("name").Str())
	s.Equal("henry", res[3].Get("name").Str())

	res, err = s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQuerySort(S{{Key: "other", Order: -1}}),
		domain.WithQuery(s.doc(`{"name": {"$in": ["suzy", "jakeb", "jako"]}}`)),
	)
	s.NoError(err)
	s.Len(res, 2)
	s.Equal("jakeb", res[0].Get("name").Str())
	s.Equal("jako", res[1].Get("name").Str())
}

// When no document has the sort key, the stream order is kept.
func (s *QuerierSuite) TestSortAllMissing() {
	docs := []*domain.Doc{
		s.doc(`{"name": "jako"}`),
		s.doc(`{"name": "jakeb"}`),
		s.doc(`{"name": "sue"}`),
	}

	res, err := s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "other", Order: 1}}))
	s.NoError(err)
	s.Equal(docs, res)
}

// Later criteria break ties left by earlier ones.
func (s *QuerierSuite) TestSortMultipleCriteria() {
	docs := []*domain.Doc{
		s.doc(`{"name": "jako", "age": 43, "nid": 1}`),
		s.doc(`{"name": "jakeb", "age": 43, "nid": 2}`),
		s.doc(`{"name": "sue", "age": 12, "nid": 3}`),
		s.doc(`{"name": "zoe", "age": 23, "nid": 4}`),
		s.doc(`{"name": "jako", "age": 35, "nid": 5}`),
	}
	nids := func(res []*domain.Doc) []int64 {
		out := make([]int64, len(res))
		for n, doc := range res {
			out[n] = doc.Get("nid").Int()
		}
		return out
	}

	res, err := s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{
		{Key: "name", Order: 1},
		{Key: "age", Order: -1},
	}))
	s.NoError(err)
	s.Equal([]int64{2, 1, 5, 3, 4}, nids(res))

	res, err = s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{
		{Key: "name", Order: 1},
		{Key: "age", Order: 1},
	}))
	s.NoError(err)
	s.Equal([]int64{2, 5, 1, 3, 4}, nids(res))

	res, err = s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{
		{Key: "age", Order: 1},
		{Key: "name", Order: 1},
	}))
	s.NoError(err)
	s.Equal([]int64{3, 4, 5, 2, 1}, nids(res))

	res, err = s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{
		{Key: "age", Order: 1},
		{Key: "name", Order: -1},
	}))
	s.NoError(err)
	s.Equal([]int64{3, 4, 5, 1, 2}, nids(res))
}

// A two-key sort reproduces the generation order of a company/cost
// grid.
func (s *QuerierSuite) TestSortGrid() {
	var docs []*domain.Doc
	id := int64(0)
	for _, company := range []string{"acme", "milkman", "zoinks"} {
		for cost := 5; cost < 100; cost += 5 {
			doc := domain.NewDoc()
			doc.Set("company", domain.Str(company))
			doc.Set("cost", domain.Int(int64(cost)))
			doc.Set("nid", domain.Int(id))
			docs = append(docs, doc)
			id++
		}
	}

	res, err := s.q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{
		{Key: "company", Order: 1},
		{Key: "cost", Order: 1},
	}))
	s.NoError(err)
	s.Len(res, len(docs))
	for n, doc := range res {
		s.Equal(int64(n), doc.Get("nid").Int())
	}
}

// A custom comparer drives the sort order.
func (s *QuerierSuite) TestSortCustomComparer() {
	docs := []*domain.Doc{
		s.doc(`{"name": "charlie"}`),
		s.doc(`{"name": "zulu"}`),
		s.doc(`{"name": "al"}`),
	}

	q := NewQuerier(domain.WithQuerierComparer(strLenComparer{})).(*Querier)
	res, err := q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "name", Order: 1}}))
	s.NoError(err)
	s.Equal("al", res[0].Get("name").Str())
	s.Equal("zulu", res[1].Get("name").Str())
	s.Equal("charlie", res[2].Get("name").Str())
}

// Results can be projected down to chosen fields.
func (s *QuerierSuite) TestProjection() {
	docs := []*domain.Doc{
		s.doc(`{"_id": 1, "name": "jako", "age": 43}`),
		s.doc(`{"_id": 2, "name": "sue", "age": 12}`),
	}

	res, err := s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQueryProjection(map[string]uint8{"name": 1}),
	)
	s.NoError(err)
	s.Len(res, 2)
	s.True(res[0].Has("_id"))
	s.True(res[0].Has("name"))
	s.False(res[0].Has("age"))

	res, err = s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQueryProjection(map[string]uint8{"age": 0}),
	)
	s.NoError(err)
	s.True(res[0].Has("name"))
	s.False(res[0].Has("age"))

	_, err = s.q.Query(
		s.ctx,
		stream(docs...),
		domain.WithQueryProjection(map[string]uint8{"name": 1, "age": 0}),
	)
	var invalid *domain.ErrInvalidQuery
	s.ErrorAs(err, &invalid)
}

// Navigation failures while sorting surface to the caller.
func (s *QuerierSuite) TestSortFailedFieldNavigation() {
	docs := []*domain.Doc{s.doc(`{"a": 1}`), s.doc(`{"a": 2}`)}

	s.Run("GetAddress", func() {
		fn := new(fieldNavigatorMock)
		q := NewQuerier(domain.WithQuerierFieldNavigator(fn)).(*Querier)

		fn.On("GetAddress", "a").Return(([]string)(nil), assert.AnError).Once()
		res, err := q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "a", Order: 1}}))
		s.ErrorIs(err, assert.AnError)
		s.Nil(res)
		fn.AssertExpectations(s.T())
	})

	s.Run("GetField", func() {
		fn := new(fieldNavigatorMock)
		q := NewQuerier(domain.WithQuerierFieldNavigator(fn)).(*Querier)

		fn.On("GetAddress", "a").Return([]string{"a"}, nil).Once()
		fn.On("GetField", mock.Anything, []string{"a"}).
			Return(([]domain.GetSetter)(nil), false, assert.AnError).Once()
		res, err := q.Query(s.ctx, stream(docs...), domain.WithQuerySort(S{{Key: "a", Order: 1}}))
		s.ErrorIs(err, assert.AnError)
		s.Nil(res)
		fn.AssertExpectations(s.T())
	})
}
