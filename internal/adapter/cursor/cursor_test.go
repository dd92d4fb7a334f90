package cursor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/data"
)

type decoderMock struct{ mock.Mock }

// Decode implements [domain.Decoder].
func (d *decoderMock) Decode(src any, tgt any) error {
	return d.Called(src, tgt).Error(0)
}

type person struct {
	Name string
	Age  int64
}

type CursorSuite struct {
	suite.Suite
	ctx context.Context
}

func TestCursorSuite(t *testing.T) {
	suite.Run(t, new(CursorSuite))
}

func (s *CursorSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *CursorSuite) doc(body string) *domain.Doc {
	s.T().Helper()
	d, err := data.ParseJSON([]byte(body))
	s.Require().NoError(err)
	return d
}

func (s *CursorSuite) people() []*domain.Doc {
	return []*domain.Doc{
		s.doc(`{"_id": 1, "name": "bob", "age": 5}`),
		s.doc(`{"_id": 2, "name": "alice", "age": 57}`),
		s.doc(`{"_id": 3, "name": "carol", "age": 52}`),
	}
}

// An empty cursor never advances and has no current document.
func (s *CursorSuite) TestEmpty() {
	for _, docs := range [][]*domain.Doc{nil, {}} {
		cur := NewCursor(docs)
		s.False(cur.Next(s.ctx))
		s.Nil(cur.Doc())
		s.Zero(cur.ID())
		s.NoError(cur.Err())
		s.NoError(cur.Close())
	}
}

// Next walks the documents in order and reports exhaustion.
func (s *CursorSuite) TestIteration() {
	cur := NewCursor(s.people())

	var ids []int64
	var names []string
	for cur.Next(s.ctx) {
		ids = append(ids, cur.ID())
		names = append(names, cur.Doc().Get("name").Str())
	}
	s.Equal([]int64{1, 2, 3}, ids)
	s.Equal([]string{"bob", "alice", "carol"}, names)
	s.False(cur.Next(s.ctx))
	s.NoError(cur.Err())
}

// Scan decodes the current document and refuses to run before Next.
func (s *CursorSuite) TestScan() {
	cur := NewCursor(s.people())

	var p person
	s.ErrorIs(cur.Scan(&p), domain.ErrScanBeforeNext)

	s.True(cur.Next(s.ctx))
	s.NoError(cur.Scan(&p))
	s.Equal(person{Name: "bob", Age: 5}, p)

	s.True(cur.Next(s.ctx))
	s.NoError(cur.Scan(&p))
	s.Equal(person{Name: "alice", Age: 57}, p)
}

// Scanning into a nil target fails.
func (s *CursorSuite) TestScanNilTarget() {
	cur := NewCursor(s.people())
	s.True(cur.Next(s.ctx))
	s.ErrorIs(cur.Scan(nil), domain.ErrTargetNil)
}

// All decodes every remaining document and closes the cursor.
func (s *CursorSuite) TestAll() {
	cur := NewCursor(s.people())

	var people []person
	s.NoError(cur.All(s.ctx, &people))
	s.Equal([]person{
		{Name: "bob", Age: 5},
		{Name: "alice", Age: 57},
		{Name: "carol", Age: 52},
	}, people)

	s.False(cur.Next(s.ctx))
	s.ErrorIs(cur.Scan(&person{}), domain.ErrCursorClosed)
}

// All after Next only decodes the documents not yet visited.
func (s *CursorSuite) TestAllRemaining() {
	cur := NewCursor(s.people())
	s.True(cur.Next(s.ctx))

	var people []person
	s.NoError(cur.All(s.ctx, &people))
	s.Equal([]person{
		{Name: "alice", Age: 57},
		{Name: "carol", Age: 52},
	}, people)
}

// Close releases the cursor once and later calls are no-ops.
func (s *CursorSuite) TestClose() {
	closes := 0
	cur := NewCursor(s.people(), domain.WithCursorOnClose(func() { closes++ }))

	s.True(cur.Next(s.ctx))
	s.NoError(cur.Close())
	s.NoError(cur.Close())
	s.Equal(1, closes)

	s.False(cur.Next(s.ctx))
	s.ErrorIs(cur.Scan(&person{}), domain.ErrCursorClosed)
	s.Nil(cur.Doc())
}

// Iter yields id and document pairs and closes on exhaustion.
func (s *CursorSuite) TestIter() {
	closes := 0
	cur := NewCursor(s.people(), domain.WithCursorOnClose(func() { closes++ }))

	var ids []int64
	for id, doc := range cur.Iter(s.ctx) {
		ids = append(ids, id)
		s.NotNil(doc)
	}
	s.Equal([]int64{1, 2, 3}, ids)
	s.Equal(1, closes)
}

// Breaking out of Iter still closes the cursor.
func (s *CursorSuite) TestIterBreak() {
	closes := 0
	cur := NewCursor(s.people(), domain.WithCursorOnClose(func() { closes++ }))

	for id := range cur.Iter(s.ctx) {
		s.Equal(int64(1), id)
		break
	}
	s.Equal(1, closes)
	s.False(cur.Next(s.ctx))
}

// A cancelled context stops iteration and is reported by Err.
func (s *CursorSuite) TestContextCancelled() {
	cur := NewCursor(s.people())
	ctx, cancel := context.WithCancel(s.ctx)

	s.True(cur.Next(ctx))
	cancel()
	s.False(cur.Next(ctx))
	s.ErrorIs(cur.Err(), context.Canceled)
}

// Ids fall back to zero when the _id field is missing or not an integer.
func (s *CursorSuite) TestIDFallback() {
	cur := NewCursor([]*domain.Doc{
		s.doc(`{"name": "bob"}`),
		s.doc(`{"_id": "abc"}`),
		s.doc(`{"_id": 7}`),
	})

	var ids []int64
	for cur.Next(s.ctx) {
		ids = append(ids, cur.ID())
	}
	s.Equal([]int64{0, 0, 7}, ids)
}

// Scan goes through the configured decoder.
func (s *CursorSuite) TestCustomDecoder() {
	docs := s.people()
	dec := new(decoderMock)
	dec.On("Decode", docs[0], &person{}).Return(assert.AnError).Once()

	cur := NewCursor(docs, domain.WithCursorDecoder(dec))
	s.True(cur.Next(s.ctx))
	s.ErrorIs(cur.Scan(&person{}), assert.AnError)
	dec.AssertExpectations(s.T())
}
