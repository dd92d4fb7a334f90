// Package cursor contains the default [domain.Cursor] implementation.
package cursor

import (
	"context"
	"iter"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/decoder"
)

// Cursor implements [domain.Cursor] over materialized query results.
// Ids come from each document's _id field; a projection that excluded it
// leaves ID reporting zero.
type Cursor struct {
	docs    []*domain.Doc
	pos     int
	dec     domain.Decoder
	onClose func()
	err     error
	closed  bool
}

// NewCursor returns a new implementation of domain.Cursor.
func NewCursor(docs []*domain.Doc, options ...domain.CursorOption) domain.Cursor {
	opts := domain.CursorOptions{}
	for _, option := range options {
		option(&opts)
	}

	if opts.Decoder == nil {
		opts.Decoder = decoder.NewDecoder()
	}

	return &Cursor{
		docs:    docs,
		pos:     -1,
		dec:     opts.Decoder,
		onClose: opts.OnClose,
	}
}

// Next implements [domain.Cursor].
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 < len(c.docs) {
		c.pos++
		return true
	}
	return false
}

// Scan implements [domain.Cursor].
func (c *Cursor) Scan(target any) error {
	if c.closed {
		return domain.ErrCursorClosed
	}
	if c.pos < 0 || c.pos >= len(c.docs) {
		return domain.ErrScanBeforeNext
	}
	return c.dec.Decode(c.docs[c.pos], target)
}

// Doc implements [domain.Cursor].
func (c *Cursor) Doc() *domain.Doc {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return c.docs[c.pos]
}

// ID implements [domain.Cursor].
func (c *Cursor) ID() int64 {
	doc := c.Doc()
	if doc == nil {
		return 0
	}
	v, ok := doc.GetOk(domain.IDField)
	if !ok || v.Kind() != domain.KindInt {
		return 0
	}
	return v.Int()
}

// All implements [domain.Cursor].
func (c *Cursor) All(ctx context.Context, target any) error {
	defer c.Close()

	if c.closed {
		return domain.ErrCursorClosed
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return err
	}

	rest := c.docs[c.pos+1:]
	items := make([]any, len(rest))
	for n, doc := range rest {
		items[n] = doc.Interface()
	}
	return c.dec.Decode(items, target)
}

// Err implements [domain.Cursor].
func (c *Cursor) Err() error {
	return c.err
}

// Close implements [domain.Cursor]. Closing twice is a no-op.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.docs = nil
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

// Iter implements [domain.Cursor]. The cursor closes when the sequence
// stops, whether by exhaustion or by the caller breaking out.
func (c *Cursor) Iter(ctx context.Context) iter.Seq2[int64, *domain.Doc] {
	return func(yield func(int64, *domain.Doc) bool) {
		defer c.Close()
		for c.Next(ctx) {
			if !yield(c.ID(), c.Doc()) {
				return
			}
		}
	}
}
