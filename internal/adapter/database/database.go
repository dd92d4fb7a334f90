// Package database assembles the embedded engine behind [domain.JEDB]:
// one pager per data file, the root catalog naming its collections, and a
// cache of collection handles sharing that pager. A sidecar lock file
// keeps two processes from opening the same data file for writing.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/catalog"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/codec"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/collection"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/pager"
	"github.com/vinicius-lino-figueiredo/jedb/pkg/ctxsync"
)

// Suffixes of the sidecar files kept next to the data file. A data file
// named like one would collide with the write-ahead log or the lock file
// of the database it belongs to.
const (
	logSuffix  = ".wal"
	lockSuffix = ".lock"
)

// defaultSyncInterval is the flush cadence under [domain.SyncPeriodic]
// when no interval is configured.
const defaultSyncInterval = time.Second

// Database implements domain.JEDB. Collection handles are created once
// per name and shared between callers, so their caches and index state
// stay coherent. Dropping a collection evicts its handle; a handle kept
// across the drop fails once it touches the freed records.
type Database struct {
	path    string
	pager   domain.Pager
	codec   domain.Codec
	base    []domain.CollectionOption
	factory func(string, ...domain.CollectionOption) (domain.Collection, error)

	lockPath string
	lockFile *os.File

	flushStop chan struct{}
	flushers  *ctxsync.WaitGroup

	mu      sync.Mutex
	handles map[string]domain.Collection
	closed  bool
}

var _ domain.JEDB = (*Database)(nil)

// NewDatabase opens or creates the database at the configured path. The
// data file is locked against other processes unless the database is
// read-only or locking is disabled, and under [domain.SyncPeriodic] a
// background flusher starts syncing the log on the configured interval.
func NewDatabase(options ...domain.DatabaseOption) (domain.JEDB, error) {
	opts := domain.DatabaseOptions{
		CreateIfMissing: true,
		PageSize:        pager.DefaultPageSize,
		CacheSize:       pager.DefaultCacheSize,
		SyncPolicy:      domain.SyncPerCommit,
		SyncInterval:    defaultSyncInterval,
		FileMode:        pager.DefaultFileMode,
		DirMode:         pager.DefaultDirMode,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Pager == nil {
		if opts.Path == "" {
			return nil, errors.New("no datafile path provided")
		}
		if err := checkPath(opts.Path); err != nil {
			return nil, err
		}
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}

	d := &Database{
		path:    opts.Path,
		codec:   opts.Codec,
		factory: opts.CollectionFactory,
		handles: make(map[string]domain.Collection),
	}
	if d.codec == nil {
		d.codec = codec.NewCodec()
	}
	if d.factory == nil {
		d.factory = collection.NewCollection
	}
	d.base = baseOptions(&opts)

	if opts.Pager == nil && !opts.ReadOnly && !opts.NoLock {
		if err := d.acquireLock(&opts); err != nil {
			return nil, err
		}
	}

	d.pager = opts.Pager
	if d.pager == nil {
		p, err := pager.NewPager(
			domain.WithPagerPath(opts.Path),
			domain.WithPagerPageSize(opts.PageSize),
			domain.WithPagerMaxFileSize(opts.MaxFileSize),
			domain.WithPagerCacheSize(opts.CacheSize),
			domain.WithPagerCreateIfMissing(opts.CreateIfMissing),
			domain.WithPagerSyncPolicy(opts.SyncPolicy),
			domain.WithPagerReadOnly(opts.ReadOnly),
			domain.WithPagerTruncate(opts.Truncate),
			domain.WithPagerFileMode(opts.FileMode),
			domain.WithPagerDirMode(opts.DirMode),
		)
		if err != nil {
			d.releaseLock()
			return nil, err
		}
		d.pager = p
	}

	if opts.SyncPolicy == domain.SyncPeriodic && !opts.ReadOnly {
		d.flushStop = make(chan struct{})
		d.flushers = ctxsync.NewWaitGroup()
		d.flushers.Add(1)
		go d.flushLoop(opts.SyncInterval)
	}
	return d, nil
}

// checkPath rejects data file names carrying a sidecar suffix.
func checkPath(path string) error {
	for _, suffix := range []string{logSuffix, lockSuffix} {
		if strings.HasSuffix(path, suffix) {
			return &domain.ErrDatafileName{Filename: path}
		}
	}
	return nil
}

// baseOptions collects the collection options every handle starts from.
// Caller options are appended after them, so they stay overridable.
func baseOptions(opts *domain.DatabaseOptions) []domain.CollectionOption {
	var base []domain.CollectionOption
	if opts.ReadOnly {
		base = append(base, domain.WithCollectionCreate(false))
	}
	if opts.Codec != nil {
		base = append(base, domain.WithCollectionCodec(opts.Codec))
	}
	if opts.Parser != nil {
		base = append(base, domain.WithCollectionParser(opts.Parser))
	}
	if opts.Decoder != nil {
		base = append(base, domain.WithCollectionDecoder(opts.Decoder))
	}
	if opts.Comparer != nil {
		base = append(base, domain.WithCollectionComparer(opts.Comparer))
	}
	if opts.FieldNavigator != nil {
		base = append(base, domain.WithCollectionFieldNavigator(opts.FieldNavigator))
	}
	if opts.Matcher != nil {
		base = append(base, domain.WithCollectionMatcher(opts.Matcher))
	}
	if opts.Modifier != nil {
		base = append(base, domain.WithCollectionModifier(opts.Modifier))
	}
	if opts.Querier != nil {
		base = append(base, domain.WithCollectionQuerier(opts.Querier))
	}
	if opts.Planner != nil {
		base = append(base, domain.WithCollectionPlanner(opts.Planner))
	}
	if opts.TimeGetter != nil {
		base = append(base, domain.WithCollectionTimeGetter(opts.TimeGetter))
	}
	return base
}

// acquireLock creates the sidecar lock file exclusively. An existing lock
// file means another process holds the database open.
func (d *Database) acquireLock(opts *domain.DatabaseOptions) error {
	if opts.CreateIfMissing {
		if err := os.MkdirAll(filepath.Dir(opts.Path), opts.DirMode); err != nil {
			return domain.NewErrIO("create datafile directory", err)
		}
	}
	lockPath := opts.Path + lockSuffix
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, opts.FileMode)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s: %w", opts.Path, domain.ErrLocked)
		}
		return domain.NewErrIO("create lock file", err)
	}
	d.lockPath = lockPath
	d.lockFile = f
	return nil
}

func (d *Database) releaseLock() []error {
	if d.lockFile == nil {
		return nil
	}
	var errs []error
	if err := d.lockFile.Close(); err != nil {
		errs = append(errs, domain.NewErrIO("close lock file", err))
	}
	if err := os.Remove(d.lockPath); err != nil {
		errs = append(errs, domain.NewErrIO("remove lock file", err))
	}
	d.lockFile = nil
	return errs
}

// flushLoop syncs the log on a fixed cadence until Close stops it.
func (d *Database) flushLoop(interval time.Duration) {
	defer d.flushers.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.pager.Sync()
		case <-d.flushStop:
			return
		}
	}
}

// Collection implements domain.JEDB. The first call for a name opens or
// creates the collection with the given options; later calls return the
// shared handle and ignore them.
func (d *Database) Collection(_ context.Context, name string, options ...domain.CollectionOption) (domain.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, domain.ErrClosed
	}
	if c, ok := d.handles[name]; ok {
		return c, nil
	}
	all := make([]domain.CollectionOption, 0, len(d.base)+len(options)+1)
	all = append(all, domain.WithCollectionPager(d.pager))
	all = append(all, d.base...)
	all = append(all, options...)
	c, err := d.factory(name, all...)
	if err != nil {
		return nil, err
	}
	d.handles[name] = c
	return c, nil
}

// Collections implements domain.JEDB.
func (d *Database) Collections(_ context.Context) ([]string, error) {
	if err := d.ok(); err != nil {
		return nil, err
	}
	snap, err := d.pager.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	root, err := d.root(snap)
	if err != nil {
		return nil, err
	}
	return root.Names(), nil
}

// DropCollection implements domain.JEDB. The cached handle is evicted
// before the records go, so later Collection calls look the name up
// fresh instead of resurrecting the dropped state.
func (d *Database) DropCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.ErrClosed
	}
	delete(d.handles, name)
	d.mu.Unlock()
	return collection.Drop(ctx, d.pager, d.codec, name)
}

// Sync implements domain.JEDB.
func (d *Database) Sync(_ context.Context) error {
	if err := d.ok(); err != nil {
		return err
	}
	return d.pager.Sync()
}

// Metadata implements domain.JEDB. Index entry counts come from the live
// handle when the collection is open; for collections nobody opened yet
// only the persisted spec is known and the counts read zero.
func (d *Database) Metadata(ctx context.Context) (domain.Metadata, error) {
	if err := d.ok(); err != nil {
		return domain.Metadata{}, err
	}
	snap, err := d.pager.Snapshot()
	if err != nil {
		return domain.Metadata{}, err
	}
	defer snap.Release()
	root, err := d.root(snap)
	if err != nil {
		return domain.Metadata{}, err
	}
	size, err := d.pager.Size()
	if err != nil {
		return domain.Metadata{}, err
	}
	m := domain.Metadata{
		Path:     d.path,
		Size:     size,
		PageSize: d.pager.PageSize(),
		UUID:     d.pager.UUID(),
	}
	for _, name := range root.Names() {
		ptr, _ := root.Ptr(name)
		payload, err := snap.ReadRecord(ptr)
		if err != nil {
			return domain.Metadata{}, err
		}
		meta, err := catalog.DecodeMeta(d.codec, payload)
		if err != nil {
			return domain.Metadata{}, fmt.Errorf("collection %s: %w", name, err)
		}
		cm := domain.CollectionMetadata{
			Name:       name,
			Records:    meta.Count,
			Buckets:    meta.Buckets,
			Compressed: meta.Compress,
			Indexes:    meta.Indexes,
		}
		if h := d.handle(name); h != nil {
			if specs, err := h.Indexes(ctx); err == nil {
				cm.Indexes = specs
			}
		}
		m.Collections = append(m.Collections, cm)
	}
	return m, nil
}

// Close implements domain.JEDB. It stops the background flusher,
// checkpoints and releases the data file and removes the lock file.
func (d *Database) Close(_ context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.ErrClosed
	}
	d.closed = true
	d.handles = nil
	d.mu.Unlock()

	if d.flushStop != nil {
		close(d.flushStop)
		d.flushers.Wait()
	}
	errs := []error{d.pager.Close()}
	errs = append(errs, d.releaseLock()...)
	return errors.Join(errs...)
}

func (d *Database) ok() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.ErrClosed
	}
	return nil
}

func (d *Database) handle(name string) domain.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[name]
}

func (d *Database) root(snap domain.Snapshot) (*catalog.Root, error) {
	payload, err := snap.ReadRecord(pager.CatalogPage)
	if err != nil {
		return nil, err
	}
	return catalog.DecodeRoot(d.codec, payload)
}
