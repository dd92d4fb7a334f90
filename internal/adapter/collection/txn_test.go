package collection

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/pager"
)

// TestTxn runs the explicit transaction test suite.
func TestTxn(t *testing.T) {
	suite.Run(t, new(TxnSuite))
}

// TxnSuite tests explicit transactions and their interplay with readers
// and implicit writes.
type TxnSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *TxnSuite) SetupTest() {
	s.ctx = context.Background()
}

// Fresh opens a collection on a throwaway database file.
func (s *TxnSuite) Fresh(options ...domain.CollectionOption) domain.Collection {
	p, err := pager.NewPager(domain.WithPagerPath(filepath.Join(s.T().TempDir(), "test.db")))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = p.Close() })
	options = append([]domain.CollectionOption{domain.WithCollectionPager(p)}, options...)
	c, err := NewCollection("things", options...)
	s.Require().NoError(err)
	return c
}

// Count reads the unfiltered document count.
func (s *TxnSuite) Count(c interface {
	Count(context.Context, any) (int64, error)
}) int64 {
	n, err := c.Count(s.ctx, nil)
	s.Require().NoError(err)
	return n
}

func (s *TxnSuite) TestBegin() {
	c := s.Fresh()

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	s.True(c.TxnActive())

	_, err = c.Begin(s.ctx)
	s.ErrorIs(err, domain.ErrAlreadyActive)

	s.Require().NoError(t.Rollback())
	s.False(c.TxnActive())

	t, err = c.Begin(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(t.Commit(s.ctx))
}

func (s *TxnSuite) TestCommitPublishes() {
	c := s.Fresh()
	base, err := c.Put(s.ctx, map[string]any{"name": "bolt", "qty": int64(7)})
	s.Require().NoError(err)

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	staged, err := t.Put(s.ctx, map[string]any{"name": "nut"})
	s.Require().NoError(err)
	s.Require().NoError(t.Patch(s.ctx, base, map[string]any{"$set": map[string]any{"qty": int64(9)}}))

	// The transaction reads its own writes.
	s.Equal(int64(2), s.Count(t))
	var got struct {
		Qty int64 `jedb:"qty"`
	}
	s.Require().NoError(t.Get(s.ctx, base, &got))
	s.Equal(int64(9), got.Qty)

	// Readers outside keep the committed state.
	s.Equal(int64(1), s.Count(c))
	_, err = c.GetDoc(s.ctx, staged)
	s.ErrorIs(err, domain.ErrNotFound)
	s.Require().NoError(c.Get(s.ctx, base, &got))
	s.Equal(int64(7), got.Qty)

	s.Require().NoError(t.Commit(s.ctx))

	s.Equal(int64(2), s.Count(c))
	s.Require().NoError(c.Get(s.ctx, base, &got))
	s.Equal(int64(9), got.Qty)
	doc, err := c.GetDoc(s.ctx, staged)
	s.Require().NoError(err)
	s.Equal("nut", doc.Get("name").Str())
}

func (s *TxnSuite) TestRollbackDiscards() {
	c := s.Fresh()
	base, err := c.Put(s.ctx, map[string]any{"name": "bolt", "qty": int64(7)})
	s.Require().NoError(err)

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	staged, err := t.Put(s.ctx, map[string]any{"name": "nut"})
	s.Require().NoError(err)
	s.Require().NoError(t.Del(s.ctx, base))
	s.Require().NoError(t.Rollback())

	s.Equal(int64(1), s.Count(c))
	doc, err := c.GetDoc(s.ctx, base)
	s.Require().NoError(err)
	s.Equal("bolt", doc.Get("name").Str())

	// The discarded insert never reached a committed state, so its
	// tentative id is handed out again.
	id, err := c.Put(s.ctx, map[string]any{"name": "washer"})
	s.Require().NoError(err)
	s.Equal(staged, id)
}

func (s *TxnSuite) TestFinishedTxn() {
	c := s.Fresh()

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(t.Commit(s.ctx))

	_, err = t.Put(s.ctx, map[string]any{"name": "bolt"})
	s.ErrorIs(err, domain.ErrTxnFinished)
	_, err = t.Find(s.ctx, nil)
	s.ErrorIs(err, domain.ErrTxnFinished)
	s.ErrorIs(t.Commit(s.ctx), domain.ErrTxnFinished)
	s.ErrorIs(t.Rollback(), domain.ErrTxnFinished)
}

// TestReadersNeverBlock pins the contract that reads serve the committed
// state while a transaction is staging, indexed lookups included.
func (s *TxnSuite) TestReadersNeverBlock() {
	c := s.Fresh()
	s.Require().NoError(c.EnsureIndex(s.ctx, domain.WithEnsureIndexPath("name")))
	bolt, err := c.Put(s.ctx, map[string]any{"name": "bolt"})
	s.Require().NoError(err)
	_, err = c.Put(s.ctx, map[string]any{"name": "nut"})
	s.Require().NoError(err)

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(t.Del(s.ctx, bolt))
	staged, err := t.Put(s.ctx, map[string]any{"name": "washer"})
	s.Require().NoError(err)

	// The staged delete already left the index, and the staged insert
	// already entered it. Readers must notice neither.
	cur, err := c.Find(s.ctx, map[string]any{"name": "bolt"})
	s.Require().NoError(err)
	s.Require().True(cur.Next(s.ctx))
	s.Equal(bolt, cur.ID())
	s.Require().NoError(cur.Close())

	cur, err = c.Find(s.ctx, map[string]any{"name": "washer"})
	s.Require().NoError(err)
	s.False(cur.Next(s.ctx))
	s.Require().NoError(cur.Close())

	doc, err := c.GetDoc(s.ctx, bolt)
	s.Require().NoError(err)
	s.Equal("bolt", doc.Get("name").Str())

	// Inside the transaction the staged state is the truth.
	_, err = t.GetDoc(s.ctx, bolt)
	s.ErrorIs(err, domain.ErrNotFound)
	s.Require().NoError(t.Commit(s.ctx))

	cur, err = c.Find(s.ctx, map[string]any{"name": "bolt"})
	s.Require().NoError(err)
	s.False(cur.Next(s.ctx))
	s.Require().NoError(cur.Close())
	doc, err = c.GetDoc(s.ctx, staged)
	s.Require().NoError(err)
	s.Equal("washer", doc.Get("name").Str())

	// With the commit published and no snapshot alive, nothing keeps the
	// removal bookkeeping around.
	col := c.(*Collection)
	col.mu.RLock()
	defer col.mu.RUnlock()
	s.Empty(col.removals)
}

func (s *TxnSuite) TestUniqueConflictKeepsTxnUsable() {
	c := s.Fresh()
	s.Require().NoError(c.EnsureIndex(s.ctx,
		domain.WithEnsureIndexPath("name"), domain.WithEnsureIndexUnique(true)))
	s.fillOne(c, "bolt")

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)

	_, err = t.Put(s.ctx, map[string]any{"name": "bolt"})
	s.ErrorIs(err, domain.ErrConstraintViolated)

	id, err := t.Put(s.ctx, map[string]any{"name": "nut"})
	s.Require().NoError(err)
	s.Require().NoError(t.Commit(s.ctx))

	doc, err := c.GetDoc(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("nut", doc.Get("name").Str())
	s.Equal(int64(2), s.Count(c))
}

func (s *TxnSuite) fillOne(c domain.Collection, name string) {
	_, err := c.Put(s.ctx, map[string]any{"name": name})
	s.Require().NoError(err)
}

func (s *TxnSuite) TestImplicitWritesQueue() {
	c := s.Fresh()

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	_, err = t.Put(s.ctx, map[string]any{"name": "bolt"})
	s.Require().NoError(err)

	done := make(chan int64, 1)
	go func() {
		id, err := c.Put(s.ctx, map[string]any{"name": "nut"})
		s.NoError(err)
		done <- id
	}()

	select {
	case <-done:
		s.Fail("implicit write ran while a transaction was active")
	case <-time.After(20 * time.Millisecond):
	}

	s.Require().NoError(t.Commit(s.ctx))
	select {
	case id := <-done:
		// Queued behind the transaction, so its id follows the staged one.
		s.Equal(int64(2), id)
	case <-time.After(time.Second):
		s.Fail("implicit write never ran after commit")
	}
	s.Equal(int64(2), s.Count(c))
}

func (s *TxnSuite) TestUpdateAndRemoveInsideTxn() {
	c := s.Fresh()
	ids, err := c.PutAll(s.ctx,
		map[string]any{"name": "bolt", "qty": int64(7)},
		map[string]any{"name": "nut", "qty": int64(2)},
		map[string]any{"name": "washer", "qty": int64(12)},
	)
	s.Require().NoError(err)

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)

	cur, err := t.Update(s.ctx,
		map[string]any{"qty": map[string]any{"$lt": int64(10)}},
		map[string]any{"$set": map[string]any{"qty": int64(0)}},
		domain.WithUpdateMulti(true),
	)
	s.Require().NoError(err)
	s.Require().NoError(cur.Close())

	n, err := t.Remove(s.ctx, map[string]any{"name": "washer"})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = t.Count(s.ctx, map[string]any{"qty": int64(0)})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	s.Require().NoError(t.Commit(s.ctx))

	n, err = c.Count(s.ctx, map[string]any{"qty": int64(0)})
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	_, err = c.GetDoc(s.ctx, ids[2])
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *TxnSuite) TestCounterRidesTheCommit() {
	c := s.Fresh()

	t, err := c.Begin(s.ctx)
	s.Require().NoError(err)
	id, err := t.Put(s.ctx, map[string]any{"name": "bolt"})
	s.Require().NoError(err)
	s.Equal(int64(1), id)
	s.Require().NoError(t.Commit(s.ctx))

	id, err = c.Put(s.ctx, map[string]any{"name": "nut"})
	s.Require().NoError(err)
	s.Equal(int64(2), id)
}
