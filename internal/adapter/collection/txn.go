package collection

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/catalog"
)

// txn is the single write transaction of a collection. It owns the
// collection writer lock and a page transaction; record writes stage in
// the page transaction while index changes apply to the shared indices
// immediately, paired with graveyard entries so concurrent snapshot
// readers keep seeing the documents they pinned.
//
// A failed page write leaves staged pages and indices out of step, so it
// poisons the transaction: every operation after it returns the failure
// and only Rollback, or Commit rolling back, can finish it.
type txn struct {
	c     *Collection
	ptx   domain.PageTx
	meta  *catalog.Meta
	heads []uint32

	deltas   []domain.DocUpdate
	explicit bool
	dirty    bool
	done     bool
	err      error
}

var (
	_ domain.Txn        = (*txn)(nil)
	_ domain.Collection = (*Collection)(nil)
)

// matchedDoc is a query match collected before a bulk update. The chain
// link is captured alongside so the record can be rewritten in place.
type matchedDoc struct {
	id   int64
	ptr  uint32
	next uint32
	old  *domain.Doc
}

// Put implements [domain.Txn].
func (t *txn) Put(_ context.Context, doc any) (int64, error) {
	return t.put(doc)
}

// PutAll implements [domain.Txn].
func (t *txn) PutAll(_ context.Context, docs ...any) ([]int64, error) {
	return t.putAll(docs)
}

// Set implements [domain.Txn].
func (t *txn) Set(_ context.Context, id int64, doc any) error {
	return t.set(id, doc)
}

// Save implements [domain.Txn].
func (t *txn) Save(_ context.Context, doc any) (int64, error) {
	return t.save(doc)
}

// Patch implements [domain.Txn].
func (t *txn) Patch(_ context.Context, id int64, update any) error {
	return t.patch(id, update)
}

// Get implements [domain.Txn].
func (t *txn) Get(_ context.Context, id int64, target any) error {
	doc, err := t.getDoc(id)
	if err != nil {
		return err
	}
	return t.c.dec.Decode(doc.Interface(), target)
}

// GetDoc implements [domain.Txn].
func (t *txn) GetDoc(_ context.Context, id int64) (*domain.Doc, error) {
	return t.getDoc(id)
}

// Del implements [domain.Txn].
func (t *txn) Del(_ context.Context, id int64) error {
	return t.del(id)
}

// Count implements [domain.Txn].
func (t *txn) Count(ctx context.Context, query any) (int64, error) {
	return t.count(ctx, query)
}

// Find implements [domain.Txn].
func (t *txn) Find(ctx context.Context, query any, options ...domain.FindOption) (domain.Cursor, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	var fo domain.FindOptions
	for _, option := range options {
		option(&fo)
	}
	docs, err := t.findDocs(ctx, query, fo)
	if err != nil {
		return nil, err
	}
	return t.c.newCursor(docs, domain.WithCursorDecoder(t.c.dec)), nil
}

// FindOne implements [domain.Txn].
func (t *txn) FindOne(ctx context.Context, query any, target any, options ...domain.FindOption) error {
	if err := t.ready(); err != nil {
		return err
	}
	var fo domain.FindOptions
	for _, option := range options {
		option(&fo)
	}
	fo.Limit = 1
	docs, err := t.findDocs(ctx, query, fo)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return domain.ErrNotFound
	}
	return t.c.dec.Decode(docs[0].Interface(), target)
}

// Update implements [domain.Txn].
func (t *txn) Update(ctx context.Context, query any, update any, options ...domain.UpdateOption) (domain.Cursor, error) {
	return t.update(ctx, query, update, options)
}

// Remove implements [domain.Txn].
func (t *txn) Remove(ctx context.Context, query any, options ...domain.RemoveOption) (int64, error) {
	return t.remove(ctx, query, options)
}

// Commit implements [domain.Txn].
func (t *txn) Commit(ctx context.Context) error {
	return t.commit(ctx)
}

// Rollback implements [domain.Txn].
func (t *txn) Rollback() error {
	return t.rollback()
}

func (t *txn) ready() error {
	if t.done {
		return domain.ErrTxnFinished
	}
	return t.err
}

// fail poisons the transaction.
func (t *txn) fail(err error) error {
	t.err = err
	return err
}

func (t *txn) put(doc any) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	parsed, err := t.c.parser.Parse(doc)
	if err != nil {
		return 0, err
	}
	if parsed.Has(domain.IDField) {
		return 0, fmt.Errorf("%w: ids are assigned on insert", domain.ErrCannotModifyID)
	}
	return t.insertAt(t.meta.Next, parsed)
}

func (t *txn) putAll(docs []any) ([]int64, error) {
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		id, err := t.put(doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *txn) set(id int64, doc any) error {
	if err := t.ready(); err != nil {
		return err
	}
	parsed, err := t.c.parser.Parse(doc)
	if err != nil {
		return err
	}
	if v, ok := parsed.GetOk(domain.IDField); ok {
		if v.Kind() != domain.KindInt || v.Int() != id {
			return fmt.Errorf("%w: document carries a different id", domain.ErrCannotModifyID)
		}
		parsed = stripID(parsed)
	}
	ptr, _, payload, err := t.lookup(id)
	if err != nil {
		return err
	}
	if ptr == 0 {
		return domain.ErrNotFound
	}
	_, next, flags, body, err := parseDocRecord(payload)
	if err != nil {
		return err
	}
	old, err := t.c.decodeBody(flags, body)
	if err != nil {
		return err
	}
	return t.replaceAt(ptr, id, next, withID(id, old), withID(id, parsed))
}

// save inserts the document, or replaces the stored one when it carries
// an id. An unknown id below the next assignment is rejected: it may have
// belonged to a deleted document, and ids are never reused.
func (t *txn) save(doc any) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	parsed, err := t.c.parser.Parse(doc)
	if err != nil {
		return 0, err
	}
	v, ok := parsed.GetOk(domain.IDField)
	if !ok {
		return t.insertAt(t.meta.Next, parsed)
	}
	if v.Kind() != domain.KindInt {
		return 0, fmt.Errorf("_id is a %s, not an integer id", v.Kind())
	}
	id := v.Int()
	body := stripID(parsed)

	ptr, _, payload, err := t.lookup(id)
	if err != nil {
		return 0, err
	}
	if ptr == 0 {
		if id >= t.meta.Next {
			return t.insertAt(id, body)
		}
		return 0, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	_, next, flags, old, err := parseDocRecord(payload)
	if err != nil {
		return 0, err
	}
	oldDoc, err := t.c.decodeBody(flags, old)
	if err != nil {
		return 0, err
	}
	if err := t.replaceAt(ptr, id, next, withID(id, oldDoc), withID(id, body)); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *txn) patch(id int64, update any) error {
	if err := t.ready(); err != nil {
		return err
	}
	upd, err := t.c.parser.Parse(update)
	if err != nil {
		return err
	}
	ptr, _, payload, err := t.lookup(id)
	if err != nil {
		return err
	}
	if ptr == 0 {
		return domain.ErrNotFound
	}
	_, next, flags, body, err := parseDocRecord(payload)
	if err != nil {
		return err
	}
	old, err := t.c.decodeBody(flags, body)
	if err != nil {
		return err
	}
	oldDoc := withID(id, old)
	newDoc, err := t.c.mod.Modify(oldDoc, upd)
	if err != nil {
		return err
	}
	return t.replaceAt(ptr, id, next, oldDoc, newDoc)
}

func (t *txn) del(id int64) error {
	if err := t.ready(); err != nil {
		return err
	}
	ptr, prev, payload, err := t.lookup(id)
	if err != nil {
		return err
	}
	if ptr == 0 {
		return domain.ErrNotFound
	}
	_, next, flags, body, err := parseDocRecord(payload)
	if err != nil {
		return err
	}
	old, err := t.c.decodeBody(flags, body)
	if err != nil {
		return err
	}
	return t.deleteAt(ptr, prev, id, next, withID(id, old))
}

func (t *txn) getDoc(id int64) (*domain.Doc, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	ptr, _, payload, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, domain.ErrNotFound
	}
	return t.c.decodeStored(id, payload)
}

func (t *txn) count(ctx context.Context, query any) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	q, err := t.c.parser.Parse(query)
	if err != nil {
		return 0, err
	}
	if q.Len() == 0 {
		return t.meta.Count, nil
	}
	pred, err := t.c.match.Compile(q)
	if err != nil {
		return 0, err
	}
	var n int64
	for doc, err := range t.stream() {
		if err != nil {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		match, err := pred.Match(doc)
		if err != nil {
			return 0, err
		}
		if match {
			n++
		}
	}
	return n, nil
}

// findDocs is the transaction's query pipeline. The planner is not
// consulted: staged writes already reshaped the shared indices, and a
// full scan of the transaction's own chains is the view that cannot lie.
func (t *txn) findDocs(ctx context.Context, query any, fo domain.FindOptions) ([]*domain.Doc, error) {
	q, err := t.c.parser.Parse(query)
	if err != nil {
		return nil, err
	}
	pred, err := t.c.match.Compile(q)
	if err != nil {
		return nil, err
	}
	proj, err := t.c.parseProjection(fo.Projection)
	if err != nil {
		return nil, err
	}
	return t.c.quer.Query(ctx, t.stream(),
		domain.WithQueryPredicate(pred),
		domain.WithQuerySkip(fo.Skip),
		domain.WithQueryLimit(fo.Limit),
		domain.WithQuerySort(fo.Sort),
		domain.WithQueryProjection(proj),
	)
}

func (t *txn) update(ctx context.Context, query, update any, options []domain.UpdateOption) (domain.Cursor, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	var opts domain.UpdateOptions
	for _, option := range options {
		option(&opts)
	}
	q, err := t.c.parser.Parse(query)
	if err != nil {
		return nil, err
	}
	pred, err := t.c.match.Compile(q)
	if err != nil {
		return nil, err
	}
	upd, err := t.c.parser.Parse(update)
	if err != nil {
		return nil, err
	}

	matches, err := t.collectMatches(ctx, pred, opts.Multi)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if !opts.Upsert {
			return t.c.newCursor(nil, domain.WithCursorDecoder(t.c.dec)), nil
		}
		return t.upsert(q, upd)
	}

	news := make([]*domain.Doc, len(matches))
	for n, m := range matches {
		if news[n], err = t.c.mod.Modify(m.old, upd); err != nil {
			return nil, err
		}
	}
	for n, m := range matches {
		if err := t.replaceAt(m.ptr, m.id, m.next, m.old, news[n]); err != nil {
			return nil, err
		}
	}
	return t.c.newCursor(news, domain.WithCursorDecoder(t.c.dec)), nil
}

// upsert inserts the document an unmatched update describes: the query's
// equality fields seeded with the update applied on top.
func (t *txn) upsert(q, upd *domain.Doc) (domain.Cursor, error) {
	base, err := t.upsertBase(q)
	if err != nil {
		return nil, err
	}
	doc, err := t.c.mod.Modify(base, upd)
	if err != nil {
		return nil, err
	}
	body := stripID(doc)
	id, err := t.insertAt(t.meta.Next, body)
	if err != nil {
		return nil, err
	}
	docs := []*domain.Doc{withID(id, body)}
	return t.c.newCursor(docs, domain.WithCursorDecoder(t.c.dec)), nil
}

// upsertBase seeds an upserted document with the query's equality
// fields. Operator clauses contribute nothing, and a dotted path creates
// the nested objects it names.
func (t *txn) upsertBase(q *domain.Doc) (*domain.Doc, error) {
	base := domain.NewDoc()
	for field, v := range q.Iter() {
		if strings.HasPrefix(field, "$") || field == domain.IDField {
			continue
		}
		if v.Kind() == domain.KindObject && hasOperator(v.Doc()) {
			continue
		}
		addr, err := t.c.nav.GetAddress(field)
		if err != nil {
			return nil, err
		}
		targets, err := t.c.nav.EnsureField(base, addr...)
		if err != nil {
			return nil, err
		}
		for _, target := range targets {
			target.Set(v.Clone())
		}
	}
	return base, nil
}

func hasOperator(d *domain.Doc) bool {
	for field := range d.Keys() {
		if strings.HasPrefix(field, "$") {
			return true
		}
	}
	return false
}

func (t *txn) remove(ctx context.Context, query any, options []domain.RemoveOption) (int64, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	var opts domain.RemoveOptions
	for _, option := range options {
		option(&opts)
	}
	q, err := t.c.parser.Parse(query)
	if err != nil {
		return 0, err
	}
	pred, err := t.c.match.Compile(q)
	if err != nil {
		return 0, err
	}
	matches, err := t.collectMatches(ctx, pred, opts.Multi)
	if err != nil {
		return 0, err
	}
	// Deleting patches chain links, so every pointer is resolved fresh
	// instead of reusing the ones captured during the scan.
	for n, m := range matches {
		if err := t.del(m.id); err != nil {
			return int64(n), err
		}
	}
	return int64(len(matches)), nil
}

// collectMatches scans the transaction's chains for documents satisfying
// the predicate, in ascending id order. Without multi the first match
// wins.
func (t *txn) collectMatches(ctx context.Context, pred domain.Predicate, multi bool) ([]matchedDoc, error) {
	pairs, err := scanPairs(t.ptx.ReadRecord, t.heads)
	if err != nil {
		return nil, err
	}
	var matches []matchedDoc
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := t.ptx.ReadRecord(pair.ptr)
		if err != nil {
			return nil, err
		}
		recID, next, flags, body, err := parseDocRecord(payload)
		if err != nil {
			return nil, err
		}
		if recID != pair.id {
			return nil, &domain.ErrCorruptData{Detail: "bucket chain holds a foreign record"}
		}
		doc, err := t.c.decodeBody(flags, body)
		if err != nil {
			return nil, err
		}
		stamped := withID(pair.id, doc)
		ok, err := pred.Match(stamped)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		matches = append(matches, matchedDoc{id: pair.id, ptr: pair.ptr, next: next, old: stamped})
		if !multi {
			break
		}
	}
	return matches, nil
}

// lookup walks the bucket chain for id through the transaction's own
// staged view. A zero pointer means the document does not exist.
func (t *txn) lookup(id int64) (uint32, uint32, []byte, error) {
	head := t.heads[bucketOf(id, len(t.heads))]
	return findInChain(t.ptx.ReadRecord, head, id)
}

// stream yields every document of the transaction's view in ascending id
// order. The record cache is bypassed: it mirrors committed state only.
func (t *txn) stream() iter.Seq2[*domain.Doc, error] {
	return func(yield func(*domain.Doc, error) bool) {
		pairs, err := scanPairs(t.ptx.ReadRecord, t.heads)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, pair := range pairs {
			payload, err := t.ptx.ReadRecord(pair.ptr)
			if err != nil {
				yield(nil, err)
				return
			}
			doc, err := t.c.decodeStored(pair.id, payload)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// insertAt stores a document body under id at the head of its bucket
// chain. Index conflicts surface before anything is staged and leave the
// transaction untouched.
func (t *txn) insertAt(id int64, body *domain.Doc) (int64, error) {
	if err := t.c.validate(body); err != nil {
		return 0, err
	}
	stamped := withID(id, body)
	if err := t.applyInsert(id, stamped); err != nil {
		return 0, err
	}
	enc, flags, err := t.c.encodeBody(body)
	if err != nil {
		t.revertInsert(id, stamped)
		return 0, err
	}
	bucket := bucketOf(id, len(t.heads))
	ptr, err := t.ptx.WriteRecord(docRecord(id, t.heads[bucket], flags, enc))
	if err != nil {
		t.revertInsert(id, stamped)
		return 0, t.fail(err)
	}
	if err := t.ptx.UpdateRecordAt(t.c.dirPtr, slotOffset(bucket), ptrBytes(ptr)); err != nil {
		t.revertInsert(id, stamped)
		return 0, t.fail(err)
	}
	t.heads[bucket] = ptr
	if id >= t.meta.Next {
		t.meta.Next = id + 1
	}
	t.meta.Count++
	t.deltas = append(t.deltas, domain.DocUpdate{ID: id, NewDoc: stamped})
	t.dirty = true
	return id, nil
}

// replaceAt rewrites the record at ptr with a new document body, keeping
// its chain link.
func (t *txn) replaceAt(ptr uint32, id int64, next uint32, oldDoc, newDoc *domain.Doc) error {
	body := stripID(newDoc)
	if err := t.c.validate(body); err != nil {
		return err
	}
	if err := t.applyUpdate(id, oldDoc, newDoc); err != nil {
		return err
	}
	enc, flags, err := t.c.encodeBody(body)
	if err != nil {
		t.revertUpdate(id, oldDoc, newDoc)
		return err
	}
	if err := t.ptx.UpdateRecord(ptr, docRecord(id, next, flags, enc)); err != nil {
		t.revertUpdate(id, oldDoc, newDoc)
		return t.fail(err)
	}
	t.deltas = append(t.deltas, domain.DocUpdate{ID: id, OldDoc: oldDoc, NewDoc: newDoc})
	t.dirty = true
	return nil
}

// deleteAt unlinks the record at ptr from its chain and frees it.
func (t *txn) deleteAt(ptr, prev uint32, id int64, next uint32, oldDoc *domain.Doc) error {
	if err := t.applyRemove(id, oldDoc); err != nil {
		return err
	}
	bucket := bucketOf(id, len(t.heads))
	var err error
	if prev == 0 {
		err = t.ptx.UpdateRecordAt(t.c.dirPtr, slotOffset(bucket), ptrBytes(next))
	} else {
		err = t.ptx.UpdateRecordAt(prev, offNext, ptrBytes(next))
	}
	if err != nil {
		t.revertRemove(id, oldDoc)
		return t.fail(err)
	}
	if err := t.ptx.DeleteRecord(ptr); err != nil {
		t.revertRemove(id, oldDoc)
		return t.fail(err)
	}
	if prev == 0 {
		t.heads[bucket] = next
	}
	t.meta.Count--
	t.deltas = append(t.deltas, domain.DocUpdate{ID: id, OldDoc: oldDoc})
	t.dirty = true
	return nil
}

// applyInsert adds the document to every index, undoing the ones already
// grown when a later one rejects it.
func (t *txn) applyInsert(id int64, doc *domain.Doc) error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, idx := range c.indexes {
		if err := idx.Insert(id, doc); err != nil {
			for _, grown := range c.indexes[:n] {
				_ = grown.Remove(id, doc)
			}
			return err
		}
	}
	return nil
}

func (t *txn) revertInsert(id int64, doc *domain.Doc) {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range c.indexes {
		_ = idx.Remove(id, doc)
	}
}

// applyRemove takes the document out of every index and buries its id in
// the graveyard, in one critical section, so no reader can observe the
// shrunken indices without the graveyard entry.
func (t *txn) applyRemove(id int64, doc *domain.Doc) error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, idx := range c.indexes {
		if err := idx.Remove(id, doc); err != nil {
			for _, shrunk := range c.indexes[:n] {
				_ = shrunk.Insert(id, doc)
			}
			return err
		}
	}
	c.removals = append(c.removals, removal{seq: stagedSeq, id: id})
	return nil
}

func (t *txn) revertRemove(id int64, doc *domain.Doc) {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range c.indexes {
		_ = idx.Insert(id, doc)
	}
	c.dropStagedLocked(id)
}

// applyUpdate moves the document's index entries from the old keys to the
// new ones. The old keys may vanish from the indices, so the id is buried
// like a removal.
func (t *txn) applyUpdate(id int64, oldDoc, newDoc *domain.Doc) error {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, idx := range c.indexes {
		if err := idx.Update(id, oldDoc, newDoc); err != nil {
			for _, moved := range c.indexes[:n] {
				_ = moved.Update(id, newDoc, oldDoc)
			}
			return err
		}
	}
	c.removals = append(c.removals, removal{seq: stagedSeq, id: id})
	return nil
}

func (t *txn) revertUpdate(id int64, oldDoc, newDoc *domain.Doc) {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range c.indexes {
		_ = idx.Update(id, newDoc, oldDoc)
	}
	c.dropStagedLocked(id)
}

// commit publishes the staged writes. The metadata record rides in the
// same page transaction, so the id counter and record count can never
// disagree with the documents on disk.
func (t *txn) commit(ctx context.Context) error {
	if t.done {
		return domain.ErrTxnFinished
	}
	if t.err != nil {
		err := t.err
		_ = t.rollback()
		return err
	}
	if !t.dirty {
		err := t.ptx.Rollback()
		t.finish()
		return err
	}

	t.meta.Modified = t.c.clock.GetTime()
	payload, err := t.meta.Encode(t.c.codec)
	if err != nil {
		t.err = err
		_ = t.rollback()
		return err
	}
	if err := t.ptx.UpdateRecord(t.c.metaPtr, payload); err != nil {
		t.err = err
		_ = t.rollback()
		return err
	}
	if err := t.ptx.Commit(ctx); err != nil {
		t.undo()
		t.finish()
		return err
	}

	seq := stagedSeq - 1
	if snap, err := t.c.pager.Snapshot(); err == nil {
		seq = snap.Seq()
		snap.Release()
	}

	c := t.c
	c.mu.Lock()
	c.meta = t.meta
	c.heads = t.heads
	for n := range c.removals {
		if c.removals[n].seq == stagedSeq {
			c.removals[n].seq = seq
		}
	}
	c.lastSeq = seq
	if c.cache != nil {
		for _, d := range t.deltas {
			c.cache.Remove(d.ID)
		}
	}
	c.pruneLocked()
	if t.explicit {
		c.active = false
	}
	c.mu.Unlock()

	t.done = true
	c.writer.Unlock()
	return nil
}

// rollback discards the staged writes and retraces the index changes.
func (t *txn) rollback() error {
	if t.done {
		return domain.ErrTxnFinished
	}
	t.undo()
	err := t.ptx.Rollback()
	t.finish()
	return err
}

// undo reverses the staged index changes, newest first, and clears the
// staged graveyard entries. The writer lock is still held, so every
// staged entry belongs to this transaction and the retrace cannot
// conflict.
func (t *txn) undo() {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := len(t.deltas) - 1; n >= 0; n-- {
		d := t.deltas[n]
		for _, idx := range c.indexes {
			switch {
			case d.OldDoc == nil:
				_ = idx.Remove(d.ID, d.NewDoc)
			case d.NewDoc == nil:
				_ = idx.Insert(d.ID, d.OldDoc)
			default:
				_ = idx.Update(d.ID, d.NewDoc, d.OldDoc)
			}
		}
	}
	c.removals = slices.DeleteFunc(c.removals, func(r removal) bool {
		return r.seq == stagedSeq
	})
}

func (t *txn) finish() {
	t.done = true
	if t.explicit {
		t.c.mu.Lock()
		t.c.active = false
		t.c.mu.Unlock()
	}
	t.c.writer.Unlock()
}
