// Package pager implements the paged data file behind collections: fixed
// size pages, checksummed record chains, multi version reads for lock-free
// snapshots and a single writer transaction protocol made durable by a
// write-ahead log.
package pager

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/wal"
	"github.com/vinicius-lino-figueiredo/jedb/pkg/ctxsync"
)

const (
	// DefaultPageSize is the page size of newly created data files
	DefaultPageSize = 4096
	// DefaultCacheSize is the number of pages kept in the read cache
	DefaultCacheSize = 256
	// DefaultFileMode is the default permission used for data files
	DefaultFileMode os.FileMode = 0o644
	// DefaultDirMode is the default permission used for directories
	DefaultDirMode os.FileMode = 0o755
)

// CatalogPage is the head page of the record that holds the collection
// catalog. It is written empty when the data file is created, so the
// record can always be updated in place and never moves.
const CatalogPage uint32 = 1

const (
	magic         = "JEDB"
	formatVersion = 1
	headerSize    = 54

	offVersion  = 4
	offPageSize = 6
	offUUID     = 10
	offMaxSize  = 26
	offFreeList = 34
	offCatalog  = 38
	offSeq      = 42
	offCRC      = 50

	headLength = 4
	headCRC    = 8
	headStart  = 12
	contStart  = 4

	minPageSize   = 64
	maxRecordSize = 1 << 30

	logSuffix = ".wal"

	// checkpointThreshold is the committed log size past which a commit
	// triggers an opportunistic checkpoint.
	checkpointThreshold = 4 << 20
)

// version is one committed image of a page, kept in memory until the
// checkpoint barrier passes it.
type version struct {
	seq  uint64
	data []byte
}

// quarantined holds pages freed at a commit. They rejoin the free list
// only once no live snapshot predates that commit, since older snapshots
// may still read them through the file.
type quarantined struct {
	seq   uint64
	pages []uint32
}

// Pager implements domain.Pager over a data file and its write-ahead log.
// Commits append page images to the log and publish them as in-memory
// versions; the file itself is only rewritten by checkpoints, and never
// past what the oldest pinned snapshot is allowed to observe.
type Pager struct {
	path     string
	file     *os.File
	log      *wal.Log
	pageSize int
	maxSize  int64
	fileMode os.FileMode
	id       uuid.UUID
	policy   domain.SyncPolicy
	readOnly bool

	// writer serializes transactions, checkpoints and close.
	writer *ctxsync.Mutex

	mu         sync.Mutex
	seq        uint64
	flushed    uint64
	freePtr    uint32
	nextPage   uint32
	versions   map[uint32][]version
	free       []uint32
	quarantine []quarantined
	// retired holds pages of superseded free list records. The on-disk
	// header may still reference them after a failed checkpoint, so they
	// rejoin the free list only once a header that does not is durable.
	retired []uint32
	pinned  map[uint64]int
	closed  bool

	cache *lru.Cache[uint32, []byte]
}

type fetchFunc func(uint32) ([]byte, error)

// NewPager opens or creates the paged data file at the configured path,
// replays any committed write-ahead log batches left by a prior session
// and checkpoints them into the file.
func NewPager(options ...domain.PagerOption) (domain.Pager, error) {
	opts := domain.PagerOptions{
		PageSize:        DefaultPageSize,
		CacheSize:       DefaultCacheSize,
		CreateIfMissing: true,
		SyncPolicy:      domain.SyncPerCommit,
		FileMode:        DefaultFileMode,
		DirMode:         DefaultDirMode,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Path == "" {
		return nil, errors.New("no datafile path provided")
	}
	if opts.ReadOnly && opts.Truncate {
		return nil, errors.New("cannot truncate a read-only datafile")
	}
	if opts.PageSize < minPageSize {
		return nil, fmt.Errorf("page size %d is below the %d byte minimum", opts.PageSize, minPageSize)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	} else {
		if opts.CreateIfMissing {
			flags |= os.O_CREATE
			if err := os.MkdirAll(filepath.Dir(opts.Path), opts.DirMode); err != nil {
				return nil, domain.NewErrIO("create datafile directory", err)
			}
		}
		if opts.Truncate {
			flags |= os.O_TRUNC
		}
	}
	f, err := os.OpenFile(opts.Path, flags, opts.FileMode)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("datafile %s: %w", opts.Path, domain.ErrNotFound)
		}
		return nil, domain.NewErrIO("open datafile", err)
	}

	cache, err := lru.New[uint32, []byte](opts.CacheSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	p := &Pager{
		path:     opts.Path,
		file:     f,
		pageSize: opts.PageSize,
		maxSize:  opts.MaxFileSize,
		fileMode: opts.FileMode,
		policy:   opts.SyncPolicy,
		readOnly: opts.ReadOnly,
		writer:   ctxsync.NewMutex(),
		versions: make(map[uint32][]version),
		pinned:   make(map[uint64]int),
		cache:    cache,
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, domain.NewErrIO("stat datafile", err)
	}
	if st.Size() == 0 {
		err = p.init()
	} else {
		err = p.load(st.Size())
	}
	if err == nil {
		err = p.recover()
	}
	if err != nil {
		f.Close()
		if p.log != nil {
			p.log.Close()
		}
		return nil, err
	}
	return p, nil
}

// init lays out a fresh file: the header page and an empty catalog record
// at its fixed location.
func (p *Pager) init() error {
	if p.readOnly {
		return &domain.ErrCorruptData{Page: 0, Detail: "missing header"}
	}
	if p.maxSize > 0 && int64(2*p.pageSize) > p.maxSize {
		return &domain.ErrOutOfSpace{Requested: int64(2 * p.pageSize), Limit: p.maxSize}
	}
	p.id = uuid.New()
	p.nextPage = 2

	header := make([]byte, p.pageSize)
	copy(header, p.headerBytes())
	if _, err := p.file.WriteAt(header, 0); err != nil {
		return domain.NewErrIO("write header", err)
	}
	root := pageImages(p.pageSize, []uint32{CatalogPage}, nil)[0]
	if _, err := p.file.WriteAt(root, int64(CatalogPage)*int64(p.pageSize)); err != nil {
		return domain.NewErrIO("write catalog root", err)
	}
	if err := p.file.Sync(); err != nil {
		return domain.NewErrIO("sync datafile", err)
	}
	return nil
}

// load validates the header of an existing file and restores the free
// list persisted by the last checkpoint.
func (p *Pager) load(size int64) error {
	if size < headerSize {
		return &domain.ErrCorruptData{Page: 0, Detail: "short header"}
	}
	hdr := make([]byte, headerSize)
	if _, err := p.file.ReadAt(hdr, 0); err != nil {
		return domain.NewErrIO("read header", err)
	}
	if string(hdr[:4]) != magic {
		return &domain.ErrCorruptData{Page: 0, Detail: "bad magic"}
	}
	if v := binary.LittleEndian.Uint16(hdr[offVersion:]); v != formatVersion {
		return &domain.ErrCorruptData{Page: 0, Offset: offVersion, Detail: fmt.Sprintf("unsupported format version %d", v)}
	}
	if crc32.ChecksumIEEE(hdr[:offCRC]) != binary.LittleEndian.Uint32(hdr[offCRC:]) {
		return &domain.ErrCorruptData{Page: 0, Offset: offCRC, Detail: "header checksum mismatch"}
	}
	ps := int(binary.LittleEndian.Uint32(hdr[offPageSize:]))
	if ps < minPageSize {
		return &domain.ErrCorruptData{Page: 0, Offset: offPageSize, Detail: "implausible page size"}
	}
	p.pageSize = ps
	copy(p.id[:], hdr[offUUID:])
	if p.maxSize == 0 {
		p.maxSize = int64(binary.LittleEndian.Uint64(hdr[offMaxSize:]))
	}
	p.freePtr = binary.LittleEndian.Uint32(hdr[offFreeList:])
	p.flushed = binary.LittleEndian.Uint64(hdr[offSeq:])
	p.seq = p.flushed
	p.nextPage = uint32((size + int64(ps) - 1) / int64(ps))
	if p.nextPage < 2 {
		p.nextPage = 2
	}
	if p.freePtr != 0 {
		payload, err := p.record(p.view(p.seq), p.freePtr)
		if err != nil {
			return err
		}
		p.free, err = parseFreeList(p.freePtr, payload)
		if err != nil {
			return err
		}
	}
	return nil
}

// recover replays committed log batches newer than the last checkpoint
// into the version cache and, unless read-only, checkpoints them so the
// session starts with an empty log.
func (p *Pager) recover() error {
	log, err := wal.Open(p.path+logSuffix, p.fileMode, p.readOnly, p.id)
	if err != nil {
		return err
	}
	p.log = log
	err = log.Replay(func(b *wal.Batch) error {
		if b.Seq <= p.flushed {
			return nil
		}
		for _, e := range b.Pages {
			if len(e.Data) != p.pageSize {
				return &domain.ErrCorruptData{Page: e.Page, Detail: "log page size mismatch"}
			}
			p.versions[e.Page] = append(p.versions[e.Page], version{seq: b.Seq, data: e.Data})
			p.free = removeSorted(p.free, e.Page)
			if e.Page >= p.nextPage {
				p.nextPage = e.Page + 1
			}
		}
		for _, id := range b.Freed {
			p.free = insertSorted(p.free, id)
		}
		p.seq = b.Seq
		return nil
	})
	if err != nil {
		return err
	}
	if !p.readOnly && p.seq > p.flushed {
		return p.checkpoint(context.Background(), false)
	}
	return nil
}

// Snapshot implements domain.Pager.
func (p *Pager) Snapshot() (domain.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, domain.ErrClosed
	}
	p.pinned[p.seq]++
	return &snapshot{p: p, seq: p.seq}, nil
}

// Begin implements domain.Pager.
func (p *Pager) Begin(ctx context.Context) (domain.PageTx, error) {
	if err := p.writer.LockWithContext(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.writer.Unlock()
		return nil, domain.ErrClosed
	}
	if p.readOnly {
		p.writer.Unlock()
		return nil, domain.ErrReadOnly
	}
	return &pageTx{
		p:         p,
		seq:       p.seq,
		startNext: p.nextPage,
		staged:    make(map[uint32][]byte),
	}, nil
}

// Checkpoint implements domain.Pager.
func (p *Pager) Checkpoint(ctx context.Context) error {
	if err := p.writer.LockWithContext(ctx); err != nil {
		return err
	}
	defer p.writer.Unlock()
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return domain.ErrClosed
	}
	if p.readOnly {
		return nil
	}
	return p.checkpoint(ctx, false)
}

// Sync implements domain.Pager.
func (p *Pager) Sync() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return domain.ErrClosed
	}
	if p.readOnly {
		return nil
	}
	return p.log.Sync()
}

// PageSize implements domain.Pager.
func (p *Pager) PageSize() int { return p.pageSize }

// Size implements domain.Pager.
func (p *Pager) Size() (int64, error) {
	st, err := p.file.Stat()
	if err != nil {
		return 0, domain.NewErrIO("stat datafile", err)
	}
	return st.Size(), nil
}

// UUID implements domain.Pager.
func (p *Pager) UUID() uuid.UUID { return p.id }

// Close implements domain.Pager.
func (p *Pager) Close() error {
	p.writer.Lock()
	defer p.writer.Unlock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrClosed
	}
	p.closed = true
	p.mu.Unlock()
	var errs []error
	if !p.readOnly {
		errs = append(errs, p.checkpoint(context.Background(), true))
	}
	errs = append(errs, p.log.Close())
	if err := p.file.Close(); err != nil {
		errs = append(errs, domain.NewErrIO("close datafile", err))
	}
	return errors.Join(errs...)
}

// checkpoint applies committed page versions up to the barrier to the
// data file, persists the free list, rewrites the header and truncates
// the log once nothing committed remains outside the file. The caller
// must hold the writer lock. With all set the barrier ignores pinned
// snapshots; that is only safe when no reader can come back, i.e. on
// Close.
func (p *Pager) checkpoint(ctx context.Context, all bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var old []uint32
	if p.freePtr != 0 {
		var err error
		old, err = p.chain(p.view(p.seq), p.freePtr)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	barrier := p.seq
	if !all {
		for s := range p.pinned {
			if s < barrier {
				barrier = s
			}
		}
	}
	flush := make(map[uint32][]byte)
	for id, vs := range p.versions {
		for i := len(vs) - 1; i >= 0; i-- {
			if vs[i].seq <= barrier {
				flush[id] = vs[i].data
				break
			}
		}
	}
	idle := barrier == p.flushed && len(flush) == 0 &&
		len(p.quarantine) == 0 && len(p.retired) == 0 && p.log.Size() == 0
	p.mu.Unlock()
	if idle {
		return nil
	}

	ids := slices.Sorted(maps.Keys(flush))
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := p.file.WriteAt(flush[id], int64(id)*int64(p.pageSize)); err != nil {
			return domain.NewErrIO("write page", err)
		}
		p.cache.Add(id, flush[id])
	}

	p.mu.Lock()
	for id, vs := range p.versions {
		kept := vs[:0]
		for _, v := range vs {
			if v.seq > barrier {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(p.versions, id)
		} else {
			p.versions[id] = kept
		}
	}
	if all {
		for _, q := range p.quarantine {
			p.free = mergeSorted(p.free, q.pages)
		}
		p.quarantine = nil
	} else {
		p.promoteLocked()
	}
	complete := barrier == p.seq && len(p.quarantine) == 0

	// Carve the next free list record out of the free pages themselves.
	// The record lists the pages of its predecessors as free again, but
	// those never back the new record and stay out of circulation until
	// the header that stops referencing them is durable, so a crash or a
	// failed write at any point leaves the record the on-disk header
	// names intact.
	pend := mergeSorted(slices.Clone(p.retired), old)
	listed := mergeSorted(slices.Clone(p.free), pend)
	var self []uint32
	var payload []byte
	if len(listed) > 0 {
		n := p.pagesFor(4 + 4*len(listed))
		take := min(n, len(p.free))
		self = slices.Clone(p.free[:take])
		p.free = slices.Delete(p.free, 0, take)
		for _, id := range self {
			listed = removeSorted(listed, id)
		}
		if ext := n - take; ext > 0 {
			next := p.nextPage + uint32(ext)
			if need := int64(next) * int64(p.pageSize); p.maxSize > 0 && need > p.maxSize {
				p.mu.Unlock()
				return &domain.ErrOutOfSpace{Requested: need, Limit: p.maxSize}
			}
			for id := p.nextPage; id < next; id++ {
				self = append(self, id)
			}
			p.nextPage = next
		}
		payload = freeListPayload(listed, p.chainCap(n))
	}
	p.retired = pend
	p.mu.Unlock()

	var newPtr uint32
	if len(self) > 0 {
		newPtr = self[0]
		images := pageImages(p.pageSize, self, payload)
		for i, id := range self {
			if _, err := p.file.WriteAt(images[i], int64(id)*int64(p.pageSize)); err != nil {
				return domain.NewErrIO("write free list", err)
			}
			p.cache.Add(id, images[i])
		}
	}
	if err := p.file.Sync(); err != nil {
		return domain.NewErrIO("sync datafile", err)
	}

	p.mu.Lock()
	p.freePtr = newPtr
	p.flushed = barrier
	hdr := p.headerBytes()
	p.mu.Unlock()
	if _, err := p.file.WriteAt(hdr, 0); err != nil {
		return domain.NewErrIO("write header", err)
	}
	if err := p.file.Sync(); err != nil {
		return domain.NewErrIO("sync datafile", err)
	}
	p.mu.Lock()
	p.free = mergeSorted(p.free, pend)
	p.retired = nil
	p.mu.Unlock()
	if complete {
		return p.log.Reset()
	}
	return nil
}

// allocate hands out n pages, lowest free pages first, extending the file
// when the free list runs dry. All or nothing.
func (p *Pager) allocate(n int) ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promoteLocked()
	take := min(n, len(p.free))
	next := p.nextPage + uint32(n-take)
	if n > take && p.maxSize > 0 {
		if need := int64(next) * int64(p.pageSize); need > p.maxSize {
			return nil, &domain.ErrOutOfSpace{Requested: need, Limit: p.maxSize}
		}
	}
	pages := make([]uint32, 0, n)
	pages = append(pages, p.free[:take]...)
	p.free = slices.Delete(p.free, 0, take)
	for id := p.nextPage; id < next; id++ {
		pages = append(pages, id)
	}
	p.nextPage = next
	return pages, nil
}

// promoteLocked moves quarantined pages no live snapshot can still read
// back into the free list.
func (p *Pager) promoteLocked() {
	if len(p.quarantine) == 0 {
		return
	}
	oldest := uint64(math.MaxUint64)
	for s := range p.pinned {
		if s < oldest {
			oldest = s
		}
	}
	kept := p.quarantine[:0]
	for _, q := range p.quarantine {
		if q.seq <= oldest {
			p.free = mergeSorted(p.free, q.pages)
		} else {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	p.quarantine = kept
}

// page returns the image of a page as of seq: the newest committed
// version at or below it, else the file through the read cache.
func (p *Pager) page(seq uint64, id uint32) ([]byte, error) {
	p.mu.Lock()
	vs := p.versions[id]
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].seq <= seq {
			data := vs[i].data
			p.mu.Unlock()
			return data, nil
		}
	}
	p.mu.Unlock()
	if data, ok := p.cache.Get(id); ok {
		return data, nil
	}
	data := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(data, int64(id)*int64(p.pageSize)); err != nil {
		return nil, domain.NewErrIO("read page", err)
	}
	p.cache.Add(id, data)
	return data, nil
}

func (p *Pager) view(seq uint64) fetchFunc {
	return func(id uint32) ([]byte, error) { return p.page(seq, id) }
}

// record assembles and verifies the payload of the record headed at ptr.
func (p *Pager) record(fetch fetchFunc, ptr uint32) ([]byte, error) {
	if ptr == 0 {
		return nil, domain.ErrNotFound
	}
	head, err := fetch(ptr)
	if err != nil {
		return nil, err
	}
	length := int(binary.LittleEndian.Uint32(head[headLength:]))
	sum := binary.LittleEndian.Uint32(head[headCRC:])
	if length > maxRecordSize {
		return nil, &domain.ErrCorruptData{Page: ptr, Offset: headLength, Detail: "implausible record length"}
	}
	payload := make([]byte, 0, min(length, 1<<20))
	payload = append(payload, head[headStart:headStart+min(length, p.pageSize-headStart)]...)
	next := binary.LittleEndian.Uint32(head)
	for len(payload) < length {
		if next == 0 {
			return nil, &domain.ErrCorruptData{Page: ptr, Detail: "record chain ends early"}
		}
		page, err := fetch(next)
		if err != nil {
			return nil, err
		}
		payload = append(payload, page[contStart:contStart+min(length-len(payload), p.pageSize-contStart)]...)
		next = binary.LittleEndian.Uint32(page)
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, &domain.ErrCorruptData{Page: ptr, Offset: headCRC, Detail: "record checksum mismatch"}
	}
	return payload, nil
}

// chain returns the page ids of the record headed at ptr, in chain order.
func (p *Pager) chain(fetch fetchFunc, ptr uint32) ([]uint32, error) {
	if ptr == 0 {
		return nil, domain.ErrNotFound
	}
	head, err := fetch(ptr)
	if err != nil {
		return nil, err
	}
	length := int(binary.LittleEndian.Uint32(head[headLength:]))
	if length > maxRecordSize {
		return nil, &domain.ErrCorruptData{Page: ptr, Offset: headLength, Detail: "implausible record length"}
	}
	ids := make([]uint32, 0, p.pagesFor(length))
	ids = append(ids, ptr)
	next := binary.LittleEndian.Uint32(head)
	for len(ids) < cap(ids) {
		if next == 0 {
			return nil, &domain.ErrCorruptData{Page: ptr, Detail: "record chain ends early"}
		}
		ids = append(ids, next)
		page, err := fetch(next)
		if err != nil {
			return nil, err
		}
		next = binary.LittleEndian.Uint32(page)
	}
	return ids, nil
}

// pagesFor returns how many chain pages a payload of n bytes occupies.
func (p *Pager) pagesFor(n int) int {
	headCap := p.pageSize - headStart
	if n <= headCap {
		return 1
	}
	contCap := p.pageSize - contStart
	return 1 + (n-headCap+contCap-1)/contCap
}

// chainCap returns the payload capacity of an n page chain.
func (p *Pager) chainCap(n int) int {
	return (p.pageSize - headStart) + (n-1)*(p.pageSize-contStart)
}

func (p *Pager) headerBytes() []byte {
	b := make([]byte, headerSize)
	copy(b, magic)
	binary.LittleEndian.PutUint16(b[offVersion:], formatVersion)
	binary.LittleEndian.PutUint32(b[offPageSize:], uint32(p.pageSize))
	copy(b[offUUID:], p.id[:])
	binary.LittleEndian.PutUint64(b[offMaxSize:], uint64(p.maxSize))
	binary.LittleEndian.PutUint32(b[offFreeList:], p.freePtr)
	binary.LittleEndian.PutUint32(b[offCatalog:], CatalogPage)
	binary.LittleEndian.PutUint64(b[offSeq:], p.flushed)
	binary.LittleEndian.PutUint32(b[offCRC:], crc32.ChecksumIEEE(b[:offCRC]))
	return b
}

// snapshot pins the pager state at a commit sequence for reading.
type snapshot struct {
	p    *Pager
	seq  uint64
	once sync.Once
}

// Seq implements domain.Snapshot.
func (s *snapshot) Seq() uint64 { return s.seq }

// ReadRecord implements domain.Snapshot.
func (s *snapshot) ReadRecord(ptr uint32) ([]byte, error) {
	return s.p.record(s.p.view(s.seq), ptr)
}

// Release implements domain.Snapshot.
func (s *snapshot) Release() {
	s.once.Do(func() {
		p := s.p
		p.mu.Lock()
		if p.pinned[s.seq]--; p.pinned[s.seq] == 0 {
			delete(p.pinned, s.seq)
		}
		p.promoteLocked()
		p.mu.Unlock()
	})
}

// pageTx stages page writes on top of the commit sequence it was started
// from and publishes them atomically.
type pageTx struct {
	p         *Pager
	seq       uint64
	startNext uint32
	staged    map[uint32][]byte
	alloced   []uint32
	freed     []uint32
	done      bool
}

func (t *pageTx) fetch(id uint32) ([]byte, error) {
	if img, ok := t.staged[id]; ok {
		return img, nil
	}
	return t.p.page(t.seq, id)
}

// ReadRecord implements domain.PageTx.
func (t *pageTx) ReadRecord(ptr uint32) ([]byte, error) {
	if t.done {
		return nil, domain.ErrTxnFinished
	}
	return t.p.record(t.fetch, ptr)
}

// WriteRecord implements domain.PageTx.
func (t *pageTx) WriteRecord(b []byte) (uint32, error) {
	if t.done {
		return 0, domain.ErrTxnFinished
	}
	if len(b) > maxRecordSize {
		return 0, fmt.Errorf("record of %d bytes exceeds the %d byte maximum", len(b), maxRecordSize)
	}
	pages, err := t.p.allocate(t.p.pagesFor(len(b)))
	if err != nil {
		return 0, err
	}
	t.alloced = append(t.alloced, pages...)
	t.stage(pages, b)
	return pages[0], nil
}

// UpdateRecord implements domain.PageTx.
func (t *pageTx) UpdateRecord(ptr uint32, b []byte) error {
	if t.done {
		return domain.ErrTxnFinished
	}
	if len(b) > maxRecordSize {
		return fmt.Errorf("record of %d bytes exceeds the %d byte maximum", len(b), maxRecordSize)
	}
	old, err := t.p.chain(t.fetch, ptr)
	if err != nil {
		return err
	}
	want := t.p.pagesFor(len(b))
	pages := old
	if want <= len(old) {
		pages = old[:want]
		for _, id := range old[want:] {
			delete(t.staged, id)
		}
		t.freed = append(t.freed, old[want:]...)
	} else {
		extra, err := t.p.allocate(want - len(old))
		if err != nil {
			return err
		}
		t.alloced = append(t.alloced, extra...)
		pages = append(slices.Clip(old), extra...)
	}
	t.stage(pages, b)
	return nil
}

// UpdateRecordAt implements domain.PageTx.
func (t *pageTx) UpdateRecordAt(ptr uint32, off int64, b []byte) error {
	if t.done {
		return domain.ErrTxnFinished
	}
	payload, err := t.p.record(t.fetch, ptr)
	if err != nil {
		return err
	}
	if off < 0 || off+int64(len(b)) > int64(len(payload)) {
		return fmt.Errorf("write of %d bytes at %d outside record of %d bytes", len(b), off, len(payload))
	}
	copy(payload[off:], b)
	return t.UpdateRecord(ptr, payload)
}

// DeleteRecord implements domain.PageTx.
func (t *pageTx) DeleteRecord(ptr uint32) error {
	if t.done {
		return domain.ErrTxnFinished
	}
	ids, err := t.p.chain(t.fetch, ptr)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(t.staged, id)
	}
	t.freed = append(t.freed, ids...)
	return nil
}

// Commit implements domain.PageTx.
func (t *pageTx) Commit(ctx context.Context) error {
	if t.done {
		return domain.ErrTxnFinished
	}
	p := t.p
	if len(t.staged) == 0 && len(t.freed) == 0 {
		t.release(false)
		return nil
	}

	freed := slices.Clone(t.freed)
	slices.Sort(freed)
	freed = slices.Compact(freed)
	ids := slices.Sorted(maps.Keys(t.staged))
	entries := make([]wal.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, wal.Entry{Page: id, Data: t.staged[id]})
	}

	seq := p.seq + 1
	mark := p.log.Size()
	if err := p.log.Append(ctx, &wal.Batch{Seq: seq, Pages: entries, Freed: freed}); err != nil {
		t.release(true)
		return err
	}
	if p.policy == domain.SyncPerCommit {
		if err := p.log.Sync(); err != nil {
			_ = p.log.Rewind(mark)
			t.release(true)
			return err
		}
	}

	p.mu.Lock()
	for _, e := range entries {
		p.versions[e.Page] = append(p.versions[e.Page], version{seq: seq, data: e.Data})
	}
	if len(freed) > 0 {
		p.quarantine = append(p.quarantine, quarantined{seq: seq, pages: freed})
	}
	p.seq = seq
	full := p.log.Size() >= checkpointThreshold
	p.mu.Unlock()

	if full {
		// The commit is already durable; a failed sweep retries on a
		// later one.
		_ = p.checkpoint(ctx, false)
	}
	t.release(false)
	return nil
}

// Rollback implements domain.PageTx.
func (t *pageTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release(true)
	return nil
}

// stage lays the payload out over the page chain.
func (t *pageTx) stage(pages []uint32, payload []byte) {
	images := pageImages(t.p.pageSize, pages, payload)
	for i, id := range pages {
		t.staged[id] = images[i]
	}
}

// release finishes the transaction, returning allocated pages on restore.
func (t *pageTx) release(restore bool) {
	p := t.p
	if restore {
		p.mu.Lock()
		for _, id := range t.alloced {
			if id < t.startNext {
				p.free = insertSorted(p.free, id)
			}
		}
		p.nextPage = t.startNext
		p.mu.Unlock()
	}
	t.done = true
	p.writer.Unlock()
}

// pageImages lays payload out over a page chain, linking each page to the
// next. The head page carries the payload length and checksum.
func pageImages(pageSize int, pages []uint32, payload []byte) [][]byte {
	images := make([][]byte, len(pages))
	rest := payload
	for i := range pages {
		img := make([]byte, pageSize)
		var next uint32
		if i+1 < len(pages) {
			next = pages[i+1]
		}
		binary.LittleEndian.PutUint32(img, next)
		start := contStart
		if i == 0 {
			binary.LittleEndian.PutUint32(img[headLength:], uint32(len(payload)))
			binary.LittleEndian.PutUint32(img[headCRC:], crc32.ChecksumIEEE(payload))
			start = headStart
		}
		n := copy(img[start:], rest)
		rest = rest[n:]
		images[i] = img
	}
	return images
}

func freeListPayload(pages []uint32, padTo int) []byte {
	b := make([]byte, 0, padTo)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(pages)))
	for _, id := range pages {
		b = binary.LittleEndian.AppendUint32(b, id)
	}
	return append(b, make([]byte, padTo-len(b))...)
}

func parseFreeList(ptr uint32, payload []byte) ([]uint32, error) {
	if len(payload) < 4 {
		return nil, &domain.ErrCorruptData{Page: ptr, Detail: "short free list"}
	}
	count := int(binary.LittleEndian.Uint32(payload))
	if count < 0 || len(payload) < 4+4*count {
		return nil, &domain.ErrCorruptData{Page: ptr, Detail: "short free list"}
	}
	ids := make([]uint32, count)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(payload[4+4*i:])
	}
	return ids, nil
}

// insertSorted adds id keeping ids ascending and duplicate free.
func insertSorted(ids []uint32, id uint32) []uint32 {
	i, ok := slices.BinarySearch(ids, id)
	if ok {
		return ids
	}
	return slices.Insert(ids, i, id)
}

func removeSorted(ids []uint32, id uint32) []uint32 {
	i, ok := slices.BinarySearch(ids, id)
	if !ok {
		return ids
	}
	return slices.Delete(ids, i, i+1)
}

func mergeSorted(ids []uint32, add []uint32) []uint32 {
	for _, id := range add {
		ids = insertSorted(ids, id)
	}
	return ids
}
