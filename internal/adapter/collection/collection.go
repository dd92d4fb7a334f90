// Package collection contains the default [domain.Collection]
// implementation. Documents live in pager records chained per bucket of a
// fixed-width directory, secondary indices are rebuilt in memory at open,
// and every write runs inside a page transaction so data, catalog
// metadata and chain links commit atomically.
package collection

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"runtime"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/catalog"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/cursor"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/index"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/pager"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/planner"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/querier"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/jedb/pkg/ctxsync"
	"github.com/xeipuuv/gojsonschema"
)

// stagedSeq marks a graveyard entry whose commit has not published yet.
// It compares above every snapshot, so concurrent readers keep treating
// the id as a candidate until the transaction settles.
const stagedSeq = uint64(math.MaxUint64)

// removal remembers that a document left the indices at a commit. Index
// lookups running against older snapshots add these ids back to their
// candidate sets; entries are dropped once no snapshot predates them.
type removal struct {
	seq uint64
	id  int64
}

// Collection implements [domain.Collection] on top of a shared pager.
//
// Reads run against pager snapshots and never wait for writers. Writes
// serialize on a collection mutex: explicit transactions hold it until
// they finish, implicit operations take it per call.
type Collection struct {
	name   string
	pager  domain.Pager
	codec  domain.Codec
	parser domain.Parser
	dec    domain.Decoder
	cmp    domain.Comparer
	nav    domain.FieldNavigator
	match  domain.Matcher
	mod    domain.Modifier
	quer   domain.Querier
	plnr   domain.Planner
	clock  domain.TimeGetter

	newIndex  func(...domain.IndexOption) (domain.Index, error)
	newCursor func([]*domain.Doc, ...domain.CursorOption) domain.Cursor
	schema    *gojsonschema.Schema

	metaPtr  uint32
	dirPtr   uint32
	buckets  int
	compress bool

	writer *ctxsync.Mutex

	mu       sync.RWMutex
	meta     *catalog.Meta
	heads    []uint32
	indexes  []domain.Index
	removals []removal
	snaps    map[uint64]int
	lastSeq  uint64
	active   bool
	cache    *lru.Cache[int64, *domain.Doc]
}

// NewCollection opens the named collection on the pager given through the
// options, creating it unless creation was disabled.
func NewCollection(name string, options ...domain.CollectionOption) (domain.Collection, error) {
	opts := domain.CollectionOptions{Create: true}
	for _, option := range options {
		option(&opts)
	}

	if name == "" {
		return nil, errors.New("collection name is empty")
	}
	if opts.Pager == nil {
		return nil, errors.New("collection requires a pager")
	}

	if opts.Codec == nil {
		opts.Codec = codec.NewCodec()
	}
	if opts.Parser == nil {
		opts.Parser = data.NewParser()
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.NewDecoder()
	}
	if opts.Comparer == nil {
		opts.Comparer = comparer.NewComparer()
	}
	if opts.FieldNavigator == nil {
		opts.FieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.NewMatcher(
			domain.WithMatcherComparer(opts.Comparer),
			domain.WithMatcherFieldNavigator(opts.FieldNavigator),
		)
	}
	if opts.Modifier == nil {
		opts.Modifier = modifier.NewModifier(
			domain.WithModifierComparer(opts.Comparer),
			domain.WithModifierFieldNavigator(opts.FieldNavigator),
			domain.WithModifierMatcher(opts.Matcher),
		)
	}
	if opts.Querier == nil {
		opts.Querier = querier.NewQuerier(
			domain.WithQuerierComparer(opts.Comparer),
			domain.WithQuerierFieldNavigator(opts.FieldNavigator),
			domain.WithQuerierMatcher(opts.Matcher),
		)
	}
	if opts.Planner == nil {
		opts.Planner = planner.NewPlanner()
	}
	if opts.TimeGetter == nil {
		opts.TimeGetter = timegetter.NewTimeGetter()
	}
	if opts.IndexFactory == nil {
		opts.IndexFactory = index.NewIndex
	}
	if opts.CursorFactory == nil {
		opts.CursorFactory = cursor.NewCursor
	}

	c := &Collection{
		name:      name,
		pager:     opts.Pager,
		codec:     opts.Codec,
		parser:    opts.Parser,
		dec:       opts.Decoder,
		cmp:       opts.Comparer,
		nav:       opts.FieldNavigator,
		match:     opts.Matcher,
		mod:       opts.Modifier,
		quer:      opts.Querier,
		plnr:      opts.Planner,
		clock:     opts.TimeGetter,
		newIndex:  opts.IndexFactory,
		newCursor: opts.CursorFactory,
		writer:    ctxsync.NewMutex(),
		snaps:     map[uint64]int{},
	}

	if err := c.open(&opts); err != nil {
		return nil, err
	}
	return c, nil
}

// open loads the collection state from the catalog, creating the
// collection first when it is absent.
func (c *Collection) open(opts *domain.CollectionOptions) error {
	ctx := context.Background()

	meta, metaPtr, err := c.load()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if meta == nil {
		if !opts.Create {
			return fmt.Errorf("collection %s: %w", c.name, domain.ErrNotFound)
		}
		meta, metaPtr, err = c.create(ctx, opts)
		if err != nil {
			return err
		}
	}

	c.meta = meta
	c.metaPtr = metaPtr
	c.dirPtr = meta.Dir
	c.buckets = meta.Buckets
	c.compress = meta.Compress

	if meta.Schema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(meta.Schema))
		if err != nil {
			return fmt.Errorf("collection %s schema: %w", c.name, err)
		}
		c.schema = schema
	}

	if opts.CachedRecords > 0 {
		cache, err := lru.New[int64, *domain.Doc](opts.CachedRecords)
		if err != nil {
			return err
		}
		c.cache = cache
	}

	snap, err := c.pager.Snapshot()
	if err != nil {
		return err
	}
	heads, err := readDirRecord(snap.ReadRecord, c.dirPtr)
	if err != nil {
		snap.Release()
		return err
	}
	snap.Release()
	c.heads = heads

	if len(meta.Indexes) > 0 {
		indexes, err := c.buildIndexes(ctx, meta.Indexes)
		if err != nil {
			return err
		}
		c.indexes = indexes
	}
	return nil
}

// load reads this collection's metadata through the catalog.
func (c *Collection) load() (*catalog.Meta, uint32, error) {
	snap, err := c.pager.Snapshot()
	if err != nil {
		return nil, 0, err
	}
	defer snap.Release()

	rootPayload, err := snap.ReadRecord(pager.CatalogPage)
	if err != nil {
		return nil, 0, err
	}
	root, err := catalog.DecodeRoot(c.codec, rootPayload)
	if err != nil {
		return nil, 0, err
	}
	metaPtr, ok := root.Ptr(c.name)
	if !ok {
		return nil, 0, domain.ErrNotFound
	}

	metaPayload, err := snap.ReadRecord(metaPtr)
	if err != nil {
		return nil, 0, err
	}
	meta, err := catalog.DecodeMeta(c.codec, metaPayload)
	if err != nil {
		return nil, 0, err
	}
	return meta, metaPtr, nil
}

// create registers the collection in the catalog: an empty bucket
// directory, a metadata record and a directory entry, all in one page
// transaction. A concurrent creator may win the race; its records are
// adopted instead.
func (c *Collection) create(ctx context.Context, opts *domain.CollectionOptions) (*catalog.Meta, uint32, error) {
	ptx, err := c.pager.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}

	rootPayload, err := ptx.ReadRecord(pager.CatalogPage)
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}
	root, err := catalog.DecodeRoot(c.codec, rootPayload)
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}
	if _, ok := root.Ptr(c.name); ok {
		if err := ptx.Rollback(); err != nil {
			return nil, 0, err
		}
		return c.load()
	}

	buckets := bucketCount(opts.ExpectedRecords)
	dirPtr, err := ptx.WriteRecord(dirPayload(make([]uint32, buckets)))
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}

	meta := &catalog.Meta{
		Dir:      dirPtr,
		Buckets:  buckets,
		Next:     1,
		Compress: opts.Compression,
		Schema:   opts.Schema,
		Modified: c.clock.GetTime(),
	}
	metaPayload, err := meta.Encode(c.codec)
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}
	metaPtr, err := ptx.WriteRecord(metaPayload)
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}

	root.Set(c.name, metaPtr)
	rootPayload, err = root.Encode(c.codec)
	if err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}
	if err := ptx.UpdateRecord(pager.CatalogPage, rootPayload); err != nil {
		_ = ptx.Rollback()
		return nil, 0, err
	}
	if err := ptx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return meta, metaPtr, nil
}

// Name implements [domain.Collection].
func (c *Collection) Name() string {
	return c.name
}

// Put implements [domain.Collection].
func (c *Collection) Put(ctx context.Context, doc any) (int64, error) {
	var id int64
	err := c.write(ctx, func(t *txn) error {
		var err error
		id, err = t.put(doc)
		return err
	})
	return id, err
}

// PutAll implements [domain.Collection].
func (c *Collection) PutAll(ctx context.Context, docs ...any) ([]int64, error) {
	var ids []int64
	err := c.write(ctx, func(t *txn) error {
		var err error
		ids, err = t.putAll(docs)
		return err
	})
	return ids, err
}

// Set implements [domain.Collection].
func (c *Collection) Set(ctx context.Context, id int64, doc any) error {
	return c.write(ctx, func(t *txn) error {
		return t.set(id, doc)
	})
}

// Save implements [domain.Collection].
func (c *Collection) Save(ctx context.Context, doc any) (int64, error) {
	var id int64
	err := c.write(ctx, func(t *txn) error {
		var err error
		id, err = t.save(doc)
		return err
	})
	return id, err
}

// Patch implements [domain.Collection].
func (c *Collection) Patch(ctx context.Context, id int64, update any) error {
	return c.write(ctx, func(t *txn) error {
		return t.patch(id, update)
	})
}

// Del implements [domain.Collection].
func (c *Collection) Del(ctx context.Context, id int64) error {
	return c.write(ctx, func(t *txn) error {
		return t.del(id)
	})
}

// Update implements [domain.Collection].
func (c *Collection) Update(ctx context.Context, query any, update any, options ...domain.UpdateOption) (domain.Cursor, error) {
	var cur domain.Cursor
	err := c.write(ctx, func(t *txn) error {
		var err error
		cur, err = t.update(ctx, query, update, options)
		return err
	})
	return cur, err
}

// Remove implements [domain.Collection].
func (c *Collection) Remove(ctx context.Context, query any, options ...domain.RemoveOption) (int64, error) {
	var n int64
	err := c.write(ctx, func(t *txn) error {
		var err error
		n, err = t.remove(ctx, query, options)
		return err
	})
	return n, err
}

// Get implements [domain.Collection].
func (c *Collection) Get(ctx context.Context, id int64, target any) error {
	doc, err := c.GetDoc(ctx, id)
	if err != nil {
		return err
	}
	return c.dec.Decode(doc.Interface(), target)
}

// GetDoc implements [domain.Collection].
func (c *Collection) GetDoc(_ context.Context, id int64) (*domain.Doc, error) {
	snap, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	heads, err := c.headsFor(snap)
	if err != nil {
		return nil, err
	}
	return c.fetch(snap, heads, id)
}

// All implements [domain.Collection].
func (c *Collection) All(ctx context.Context, options ...domain.FindOption) (domain.Cursor, error) {
	return c.Find(ctx, nil, options...)
}

// Count implements [domain.Collection]. Without a query the count comes
// straight from the collection metadata.
func (c *Collection) Count(ctx context.Context, query any) (int64, error) {
	q, err := c.parser.Parse(query)
	if err != nil {
		return 0, err
	}
	if q.Len() == 0 {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.meta.Count, nil
	}

	pred, err := c.match.Compile(q)
	if err != nil {
		return 0, err
	}

	snap, err := c.snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Release()

	heads, err := c.headsFor(snap)
	if err != nil {
		return 0, err
	}
	ids, planned, err := c.planIDs(q, snap.Seq())
	if err != nil {
		return 0, err
	}

	var n int64
	for doc, err := range c.stream(snap, heads, ids, planned) {
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

// Find implements [domain.Collection]. The documents are materialized
// before the cursor is returned, so the snapshot is released up front and
// later writes cannot disturb iteration.
func (c *Collection) Find(ctx context.Context, query any, options ...domain.FindOption) (domain.Cursor, error) {
	var fo domain.FindOptions
	for _, option := range options {
		option(&fo)
	}
	docs, err := c.findDocs(ctx, query, fo)
	if err != nil {
		return nil, err
	}
	return c.newCursor(docs, domain.WithCursorDecoder(c.dec)), nil
}

// FindOne implements [domain.Collection].
func (c *Collection) FindOne(ctx context.Context, query any, target any, options ...domain.FindOption) error {
	var fo domain.FindOptions
	for _, option := range options {
		option(&fo)
	}
	fo.Limit = 1
	docs, err := c.findDocs(ctx, query, fo)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return domain.ErrNotFound
	}
	return c.dec.Decode(docs[0].Interface(), target)
}

// findDocs runs the full query pipeline: parse, compile, plan, stream the
// candidates out of a snapshot and hand them to the querier. Compilation
// errors surface before any data is touched.
func (c *Collection) findDocs(ctx context.Context, query any, fo domain.FindOptions) ([]*domain.Doc, error) {
	q, err := c.parser.Parse(query)
	if err != nil {
		return nil, err
	}
	pred, err := c.match.Compile(q)
	if err != nil {
		return nil, err
	}
	proj, err := c.parseProjection(fo.Projection)
	if err != nil {
		return nil, err
	}

	snap, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	heads, err := c.headsFor(snap)
	if err != nil {
		return nil, err
	}
	ids, planned, err := c.planIDs(q, snap.Seq())
	if err != nil {
		return nil, err
	}

	return c.quer.Query(ctx, c.stream(snap, heads, ids, planned),
		domain.WithQueryPredicate(pred),
		domain.WithQuerySkip(fo.Skip),
		domain.WithQueryLimit(fo.Limit),
		domain.WithQuerySort(fo.Sort),
		domain.WithQueryProjection(proj),
	)
}

// planIDs narrows the query to candidate ids. A plain id equality is
// answered directly; otherwise the planner consults the indices, and ids
// recently removed from them are merged back so older snapshots do not
// lose documents that were still alive when they were taken.
func (c *Collection) planIDs(q *domain.Doc, snapSeq uint64) ([]int64, bool, error) {
	if v, ok := q.GetOk(domain.IDField); ok && v.Kind() == domain.KindInt {
		return []int64{v.Int()}, true, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids, ok, err := c.plnr.Plan(q, c.indexes)
	if err != nil || !ok {
		return nil, false, err
	}
	for _, r := range c.removals {
		if r.seq > snapSeq {
			ids = append(ids, r.id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), true, nil
}

// stream yields the candidate documents in ascending id order. Planned
// ids that the snapshot cannot see are skipped; they belong to newer or
// uncommitted state.
func (c *Collection) stream(snap domain.Snapshot, heads []uint32, ids []int64, planned bool) iter.Seq2[*domain.Doc, error] {
	if planned {
		return func(yield func(*domain.Doc, error) bool) {
			for _, id := range ids {
				doc, err := c.fetch(snap, heads, id)
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
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
	return func(yield func(*domain.Doc, error) bool) {
		pairs, err := scanPairs(snap.ReadRecord, heads)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, pair := range pairs {
			doc, err := c.docAt(snap, pair)
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

// fetch resolves one document by id inside a snapshot.
func (c *Collection) fetch(snap domain.Snapshot, heads []uint32, id int64) (*domain.Doc, error) {
	if doc, ok := c.cacheGet(snap.Seq(), id); ok {
		return doc, nil
	}
	ptr, _, payload, err := findInChain(snap.ReadRecord, heads[bucketOf(id, len(heads))], id)
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, domain.ErrNotFound
	}
	doc, err := c.decodeStored(id, payload)
	if err != nil {
		return nil, err
	}
	return c.cachePut(snap.Seq(), id, doc), nil
}

// docAt resolves a scanned (id, record) pair.
func (c *Collection) docAt(snap domain.Snapshot, pair idPtr) (*domain.Doc, error) {
	if doc, ok := c.cacheGet(snap.Seq(), pair.id); ok {
		return doc, nil
	}
	payload, err := snap.ReadRecord(pair.ptr)
	if err != nil {
		return nil, err
	}
	doc, err := c.decodeStored(pair.id, payload)
	if err != nil {
		return nil, err
	}
	return c.cachePut(snap.Seq(), pair.id, doc), nil
}

// decodeStored turns a record payload into a document with its id
// stamped.
func (c *Collection) decodeStored(id int64, payload []byte) (*domain.Doc, error) {
	recID, _, flags, body, err := parseDocRecord(payload)
	if err != nil {
		return nil, err
	}
	if recID != id {
		return nil, &domain.ErrCorruptData{Detail: "bucket chain holds a foreign record"}
	}
	doc, err := c.decodeBody(flags, body)
	if err != nil {
		return nil, err
	}
	return withID(id, doc), nil
}

// decodeBody decodes a record body, inflating it first when the record
// was stored compressed.
func (c *Collection) decodeBody(flags byte, body []byte) (*domain.Doc, error) {
	if flags&flagDeflated != 0 {
		var err error
		if body, err = inflate(body); err != nil {
			return nil, err
		}
	}
	return c.codec.Decode(body)
}

// encodeBody serializes a document body for storage, compressing it when
// the collection was created compressed.
func (c *Collection) encodeBody(body *domain.Doc) ([]byte, byte, error) {
	enc, err := c.codec.Encode(body)
	if err != nil {
		return nil, 0, err
	}
	if !c.compress {
		return enc, 0, nil
	}
	if enc, err = deflate(enc); err != nil {
		return nil, 0, err
	}
	return enc, flagDeflated, nil
}

// cacheGet returns a copy of the cached document when the snapshot is at
// least as new as the last committed write. Older snapshots read records
// directly; the cache only mirrors current state.
func (c *Collection) cacheGet(snapSeq uint64, id int64) (*domain.Doc, bool) {
	if c.cache == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if snapSeq < c.lastSeq {
		return nil, false
	}
	doc, ok := c.cache.Get(id)
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// cachePut stores a freshly decoded document, guarded by the same
// currency check as cacheGet so a commit racing the read cannot leave a
// stale entry behind.
func (c *Collection) cachePut(snapSeq uint64, id int64, doc *domain.Doc) *domain.Doc {
	if c.cache == nil {
		return doc
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if snapSeq < c.lastSeq {
		return doc
	}
	c.cache.Add(id, doc)
	return doc.Clone()
}

// headsFor returns the bucket directory as the snapshot sees it. When no
// commit landed since the snapshot was taken the in-memory mirror is
// authoritative and the directory record read is skipped.
func (c *Collection) headsFor(snap domain.Snapshot) ([]uint32, error) {
	c.mu.RLock()
	if snap.Seq() >= c.lastSeq {
		heads := c.heads
		c.mu.RUnlock()
		return heads, nil
	}
	c.mu.RUnlock()
	return readDirRecord(snap.ReadRecord, c.dirPtr)
}

func readDirRecord(read fetchFunc, ptr uint32) ([]uint32, error) {
	payload, err := read(ptr)
	if err != nil {
		return nil, err
	}
	return parseDir(payload)
}

// snapshot pins a pager snapshot and registers it so graveyard pruning
// knows the oldest reader still alive.
func (c *Collection) snapshot() (domain.Snapshot, error) {
	snap, err := c.pager.Snapshot()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.snaps[snap.Seq()]++
	c.mu.Unlock()
	return &trackedSnap{Snapshot: snap, c: c}, nil
}

func (c *Collection) untrack(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snaps[seq]--; c.snaps[seq] <= 0 {
		delete(c.snaps, seq)
	}
	c.pruneLocked()
}

// pruneLocked drops graveyard entries no live snapshot can need. Staged
// entries stay until their transaction settles.
func (c *Collection) pruneLocked() {
	oldest := uint64(math.MaxUint64)
	for seq := range c.snaps {
		oldest = min(oldest, seq)
	}
	c.removals = slices.DeleteFunc(c.removals, func(r removal) bool {
		return r.seq != stagedSeq && r.seq <= oldest
	})
}

// dropStagedLocked takes back the newest staged graveyard entry for id,
// written by an operation that is being reverted.
func (c *Collection) dropStagedLocked(id int64) {
	for n := len(c.removals) - 1; n >= 0; n-- {
		if c.removals[n].seq == stagedSeq && c.removals[n].id == id {
			c.removals = slices.Delete(c.removals, n, n+1)
			return
		}
	}
}

type trackedSnap struct {
	domain.Snapshot
	c    *Collection
	once sync.Once
}

func (s *trackedSnap) Release() {
	s.once.Do(func() {
		seq := s.Snapshot.Seq()
		s.Snapshot.Release()
		s.c.untrack(seq)
	})
}

// parseProjection accepts the shapes a projection can arrive in and
// normalizes them to the querier's field map.
func (c *Collection) parseProjection(p any) (map[string]uint8, error) {
	switch t := p.(type) {
	case nil:
		return nil, nil
	case map[string]uint8:
		return t, nil
	}
	doc, err := c.parser.Parse(p)
	if err != nil {
		return nil, err
	}
	proj := make(map[string]uint8, doc.Len())
	for field, v := range doc.Iter() {
		switch v.Kind() {
		case domain.KindBool:
			if v.Bool() {
				proj[field] = 1
			} else {
				proj[field] = 0
			}
		case domain.KindInt, domain.KindFloat:
			if n, _ := v.Num(); n > 0 {
				proj[field] = 1
			} else {
				proj[field] = 0
			}
		default:
			return nil, &domain.ErrInvalidQuery{
				Op:     "projection",
				Reason: "fields must be included or excluded with booleans or numbers",
			}
		}
	}
	return proj, nil
}

// validate enforces the collection schema on a document body.
func (c *Collection) validate(doc *domain.Doc) error {
	if c.schema == nil {
		return nil
	}
	res, err := c.schema.Validate(gojsonschema.NewGoLoader(doc.Interface()))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if res.Valid() {
		return nil
	}
	violations := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		violations = append(violations, desc.String())
	}
	return &domain.ErrSchemaViolated{Violations: violations}
}

// EnsureIndex implements [domain.Collection]. Building runs against a
// stable view while the writer lock is held; an index equal to an
// existing one is a no-op, and one differing only in uniqueness replaces
// it.
func (c *Collection) EnsureIndex(ctx context.Context, options ...domain.EnsureIndexOption) error {
	var opts domain.EnsureIndexOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.Kind == 0 {
		opts.Kind = domain.IndexString
	}
	want := domain.IndexSpec{Path: opts.Path, Kind: opts.Kind, Unique: opts.Unique}

	if err := c.writer.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.writer.Unlock()

	replace := -1
	for n, spec := range c.specs() {
		if spec.Path != want.Path || spec.Kind != want.Kind {
			continue
		}
		if spec.Unique == want.Unique {
			return nil
		}
		replace = n
	}

	built, err := c.buildIndexes(ctx, []domain.IndexSpec{want})
	if err != nil {
		return err
	}

	meta := c.copyMeta()
	if replace >= 0 {
		meta.Indexes[replace] = want
	} else {
		meta.Indexes = append(meta.Indexes, want)
	}
	if err := c.persistMeta(ctx, meta); err != nil {
		return err
	}

	c.mu.Lock()
	if replace >= 0 {
		c.indexes[replace] = built[0]
	} else {
		c.indexes = append(c.indexes, built[0])
	}
	c.meta = meta
	c.mu.Unlock()
	return nil
}

// RemoveIndex implements [domain.Collection]. Every index on the path is
// dropped regardless of kind.
func (c *Collection) RemoveIndex(ctx context.Context, path string) error {
	if path == "" {
		return domain.ErrNoPath
	}
	if err := c.writer.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.writer.Unlock()

	meta := c.copyMeta()
	kept := meta.Indexes[:0]
	for _, spec := range meta.Indexes {
		if spec.Path != path {
			kept = append(kept, spec)
		}
	}
	if len(kept) == len(meta.Indexes) {
		return fmt.Errorf("index %s: %w", path, domain.ErrNotFound)
	}
	meta.Indexes = kept

	if err := c.persistMeta(ctx, meta); err != nil {
		return err
	}

	c.mu.Lock()
	c.indexes = slices.DeleteFunc(c.indexes, func(idx domain.Index) bool {
		return idx.Spec().Path == path
	})
	c.meta = meta
	c.mu.Unlock()
	return nil
}

// Reindex implements [domain.Collection]. Fresh indices are built off to
// the side and swapped in whole, so readers keep planning against the old
// ones until the rebuild is done.
func (c *Collection) Reindex(ctx context.Context) error {
	if err := c.writer.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.writer.Unlock()

	specs := c.specs()
	if len(specs) == 0 {
		return nil
	}
	built, err := c.buildIndexes(ctx, specs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.indexes = built
	c.mu.Unlock()
	return nil
}

// Indexes implements [domain.Collection].
func (c *Collection) Indexes(_ context.Context) ([]domain.IndexSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]domain.IndexSpec, len(c.indexes))
	for n, idx := range c.indexes {
		specs[n] = idx.Spec()
	}
	return specs, nil
}

// buildIndexes constructs and fills one index per spec. The documents are
// scanned once and the indices filled from a worker pool, one worker per
// index.
func (c *Collection) buildIndexes(ctx context.Context, specs []domain.IndexSpec) ([]domain.Index, error) {
	built := make([]domain.Index, len(specs))
	for n, spec := range specs {
		idx, err := c.newIndex(
			domain.WithIndexPath(spec.Path),
			domain.WithIndexKind(spec.Kind),
			domain.WithIndexUnique(spec.Unique),
			domain.WithIndexComparer(c.cmp),
			domain.WithIndexFieldNavigator(c.nav),
		)
		if err != nil {
			return nil, err
		}
		built[n] = idx
	}

	docs, err := c.allDocs(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return built, nil
	}

	pool, err := ants.NewPool(min(len(built), runtime.NumCPU()))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	errs := make([]error, len(built))
	for n, idx := range built {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			for _, pair := range docs {
				if err := idx.Insert(pair.ID, pair.NewDoc); err != nil {
					errs[n] = fmt.Errorf("building index %s: %w", idx.Spec().Path, err)
					return
				}
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[n] = err
		}
	}
	wg.Wait()
	return built, errors.Join(errs...)
}

// allDocs decodes every live document, id stamped, in ascending id order.
func (c *Collection) allDocs(ctx context.Context) ([]domain.DocUpdate, error) {
	snap, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	heads, err := c.headsFor(snap)
	if err != nil {
		return nil, err
	}
	pairs, err := scanPairs(snap.ReadRecord, heads)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.DocUpdate, 0, len(pairs))
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := snap.ReadRecord(pair.ptr)
		if err != nil {
			return nil, err
		}
		doc, err := c.decodeStored(pair.id, payload)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.DocUpdate{ID: pair.id, NewDoc: doc})
	}
	return docs, nil
}

func (c *Collection) specs() []domain.IndexSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]domain.IndexSpec, len(c.indexes))
	for n, idx := range c.indexes {
		specs[n] = idx.Spec()
	}
	return specs
}

func (c *Collection) copyMeta() *catalog.Meta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Clone()
}

// persistMeta rewrites the metadata record in its own page transaction.
// The caller holds the writer lock.
func (c *Collection) persistMeta(ctx context.Context, meta *catalog.Meta) error {
	ptx, err := c.pager.Begin(ctx)
	if err != nil {
		return err
	}
	payload, err := meta.Encode(c.codec)
	if err != nil {
		_ = ptx.Rollback()
		return err
	}
	if err := ptx.UpdateRecord(c.metaPtr, payload); err != nil {
		_ = ptx.Rollback()
		return err
	}
	return ptx.Commit(ctx)
}

// Begin implements [domain.Collection]. The transaction owns the writer
// lock until it commits or rolls back; implicit writes queue behind it
// and a second Begin fails fast.
func (c *Collection) Begin(ctx context.Context) (domain.Txn, error) {
	if !c.writer.TryLock() {
		return nil, domain.ErrAlreadyActive
	}
	t, err := c.begin(ctx, true)
	if err != nil {
		c.writer.Unlock()
		return nil, err
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return t, nil
}

// TxnActive implements [domain.Collection]. It reports explicit
// transactions only.
func (c *Collection) TxnActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// write runs fn inside an implicit transaction: writer lock, page
// transaction, commit on success, rollback on failure.
func (c *Collection) write(ctx context.Context, fn func(*txn) error) error {
	if err := c.writer.LockWithContext(ctx); err != nil {
		return err
	}
	t, err := c.begin(ctx, false)
	if err != nil {
		c.writer.Unlock()
		return err
	}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return t.commit(ctx)
}

// begin opens a transaction. The caller holds the writer lock; the page
// transaction waits for writers on other collections sharing the pager.
func (c *Collection) begin(ctx context.Context, explicit bool) (*txn, error) {
	ptx, err := c.pager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	meta := c.meta.Clone()
	heads := slices.Clone(c.heads)
	c.mu.RUnlock()
	return &txn{
		c:        c,
		ptx:      ptx,
		meta:     meta,
		heads:    heads,
		explicit: explicit,
	}, nil
}
