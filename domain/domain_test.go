package domain_test

import (
	"errors"
	"io"
	"math"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/projector"
)

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestOptions() {
	var fos domain.FindOptions
	fo := []domain.FindOption{
		domain.WithFindProjection(1),
		domain.WithFindSkip(-2),
		domain.WithFindLimit(-3),
		domain.WithFindSort(domain.Sort{{Key: "a", Order: -4}}),
	}
	for _, opt := range fo {
		opt(&fos)
	}
	s.Equal(domain.FindOptions{
		Projection: 1,
		Skip:       -2,
		Limit:      -3,
		Sort:       domain.Sort{{Key: "a", Order: -4}},
	}, fos)

	var uos domain.UpdateOptions
	uo := []domain.UpdateOption{
		domain.WithUpdateMulti(true),
		domain.WithUpsert(true),
	}
	for _, opt := range uo {
		opt(&uos)
	}
	s.Equal(domain.UpdateOptions{Multi: true, Upsert: true}, uos)

	var ros domain.RemoveOptions
	domain.WithRemoveMulti(true)(&ros)
	s.Equal(domain.RemoveOptions{Multi: true}, ros)

	var eios domain.EnsureIndexOptions
	eio := []domain.EnsureIndexOption{
		domain.WithEnsureIndexPath("a.b"),
		domain.WithEnsureIndexKind(domain.IndexNumber),
		domain.WithEnsureIndexUnique(true),
	}
	for _, opt := range eio {
		opt(&eios)
	}
	s.Equal(domain.EnsureIndexOptions{
		Path:   "a.b",
		Kind:   domain.IndexNumber,
		Unique: true,
	}, eios)

	q := domain.NewDoc(domain.Field{Name: "a", Value: domain.Int(1)})
	var qos domain.QueryOptions
	qo := []domain.QueryOption{
		domain.WithQuery(q),
		domain.WithQueryLimit(2),
		domain.WithQuerySkip(3),
		domain.WithQuerySort(domain.Sort{{Key: "a", Order: 5}}),
		domain.WithQueryProjection(map[string]uint8{"b": 6}),
	}
	for _, opt := range qo {
		opt(&qos)
	}
	s.Equal(domain.QueryOptions{
		Query:      q,
		Limit:      2,
		Skip:       3,
		Sort:       domain.Sort{{Key: "a", Order: 5}},
		Projection: map[string]uint8{"b": 6},
	}, qos)

	dec := decoder.NewDecoder()
	var cos domain.CursorOptions
	domain.WithCursorDecoder(dec)(&cos)
	s.Equal(dec, cos.Decoder)

	comp := comparer.NewComparer()
	fn := fieldnavigator.NewFieldNavigator()
	var ios domain.IndexOptions
	io := []domain.IndexOption{
		domain.WithIndexPath("a"),
		domain.WithIndexKind(domain.IndexString),
		domain.WithIndexUnique(true),
		domain.WithIndexOrder(8),
		domain.WithIndexComparer(comp),
		domain.WithIndexFieldNavigator(fn),
	}
	for _, opt := range io {
		opt(&ios)
	}
	s.Equal(domain.IndexOptions{
		Path:           "a",
		Kind:           domain.IndexString,
		Unique:         true,
		Order:          8,
		Comparer:       comp,
		FieldNavigator: fn,
	}, ios)

	var mos domain.MatcherOptions
	mo := []domain.MatcherOption{
		domain.WithMatcherComparer(comp),
		domain.WithMatcherFieldNavigator(fn),
	}
	for _, opt := range mo {
		opt(&mos)
	}
	s.Equal(domain.MatcherOptions{
		Comparer:       comp,
		FieldNavigator: fn,
	}, mos)

	m := matcher.NewMatcher()

	var mdos domain.ModifierOptions
	mdo := []domain.ModifierOption{
		domain.WithModifierComparer(comp),
		domain.WithModifierFieldNavigator(fn),
		domain.WithModifierMatcher(m),
	}
	for _, opt := range mdo {
		opt(&mdos)
	}
	s.Equal(domain.ModifierOptions{
		Comparer:       comp,
		FieldNavigator: fn,
		Matcher:        m,
	}, mdos)

	var pros domain.ProjectorOptions
	domain.WithProjectorFieldNavigator(fn)(&pros)
	s.Equal(domain.ProjectorOptions{FieldNavigator: fn}, pros)

	proj := projector.NewProjector()
	var qros domain.QuerierOptions
	qro := []domain.QuerierOption{
		domain.WithQuerierMatcher(m),
		domain.WithQuerierComparer(comp),
		domain.WithQuerierFieldNavigator(fn),
		domain.WithQuerierProjector(proj),
	}
	for _, opt := range qro {
		opt(&qros)
	}
	s.Equal(domain.QuerierOptions{
		Matcher:        m,
		Comparer:       comp,
		FieldNavigator: fn,
		Projector:      proj,
	}, qros)

	var pos domain.PagerOptions
	po := []domain.PagerOption{
		domain.WithPagerPath("x.db"),
		domain.WithPagerPageSize(512),
		domain.WithPagerMaxFileSize(1 << 20),
		domain.WithPagerCacheSize(64),
		domain.WithPagerCreateIfMissing(true),
		domain.WithPagerSyncPolicy(domain.SyncManual),
		domain.WithPagerReadOnly(true),
		domain.WithPagerTruncate(true),
		domain.WithPagerFileMode(0o600),
		domain.WithPagerDirMode(0o700),
	}
	for _, opt := range po {
		opt(&pos)
	}
	s.Equal(domain.PagerOptions{
		Path:            "x.db",
		PageSize:        512,
		MaxFileSize:     1 << 20,
		CacheSize:       64,
		CreateIfMissing: true,
		SyncPolicy:      domain.SyncManual,
		ReadOnly:        true,
		Truncate:        true,
		FileMode:        0o600,
		DirMode:         0o700,
	}, pos)

	var clos domain.CollectionOptions
	clo := []domain.CollectionOption{
		domain.WithCollectionCreate(true),
		domain.WithCollectionExpectedRecords(5000),
		domain.WithCollectionCachedRecords(128),
		domain.WithCollectionCompression(true),
		domain.WithCollectionSchema(`{"type":"object"}`),
	}
	for _, opt := range clo {
		opt(&clos)
	}
	s.True(clos.Create)
	s.Equal(int64(5000), clos.ExpectedRecords)
	s.Equal(128, clos.CachedRecords)
	s.True(clos.Compression)
	s.Equal(`{"type":"object"}`, clos.Schema)

	var dbos domain.DatabaseOptions
	dbo := []domain.DatabaseOption{
		domain.WithDatabasePath("x.db"),
		domain.WithDatabaseCreateIfMissing(true),
		domain.WithDatabaseMaxFileSize(1 << 30),
		domain.WithDatabasePageSize(4096),
		domain.WithDatabaseCacheSize(256),
		domain.WithDatabaseSyncPolicy(domain.SyncPeriodic),
		domain.WithDatabaseSyncInterval(time.Second),
		domain.WithDatabaseTruncate(true),
		domain.WithDatabaseReadOnly(true),
		domain.WithDatabaseNoLock(true),
		domain.WithDatabaseFileMode(0o640),
		domain.WithDatabaseDirMode(0o750),
	}
	for _, opt := range dbo {
		opt(&dbos)
	}
	s.Equal("x.db", dbos.Path)
	s.True(dbos.CreateIfMissing)
	s.Equal(int64(1<<30), dbos.MaxFileSize)
	s.Equal(4096, dbos.PageSize)
	s.Equal(256, dbos.CacheSize)
	s.Equal(domain.SyncPeriodic, dbos.SyncPolicy)
	s.Equal(time.Second, dbos.SyncInterval)
	s.True(dbos.Truncate)
	s.True(dbos.ReadOnly)
	s.True(dbos.NoLock)
	s.Equal(os.FileMode(0o640), dbos.FileMode)
	s.Equal(os.FileMode(0o750), dbos.DirMode)
}

func (s *DomainTestSuite) TestErrorMessages() {
	var e error

	e = &domain.ErrIO{Op: "write header", Err: errors.New("boom")}
	s.Equal("io failure on write header: boom", e.Error())

	e = &domain.ErrCorruptData{Page: 3, Offset: 16, Detail: "bad checksum"}
	s.Equal("corrupt data at page 3 offset 16: bad checksum", e.Error())

	e = &domain.ErrCorruptData{Offset: 4, Detail: "unknown value tag 99"}
	s.Equal("corrupt data at offset 4: unknown value tag 99", e.Error())

	e = &domain.ErrOutOfSpace{Requested: 8192, Limit: 4096}
	s.Equal("out of space: need 8192 bytes, limit is 4096", e.Error())

	e = &domain.ErrInvalidQuery{Op: "$wat", Reason: "unknown operator"}
	s.Equal("invalid query: $wat: unknown operator", e.Error())

	e = &domain.ErrInvalidQuery{Reason: "sort key is empty"}
	s.Equal("invalid query: sort key is empty", e.Error())

	e = &domain.ErrSchemaViolated{Violations: []string{"age is required"}}
	s.Equal("document violates collection schema: [age is required]", e.Error())

	e = &domain.ErrDocumentType{Value: make(chan int)}
	s.Equal("cannot build a document from chan int", e.Error())

	e = &domain.ErrCannotCompare{A: domain.KindBool, B: domain.KindArray}
	s.Equal("cannot compare bool and array", e.Error())

	e = &domain.ErrDatafileName{Filename: "db.wal"}
	s.Equal(`invalid datafile name "db.wal"`, e.Error())

	e = &domain.ErrDecode{Err: errors.New("nope")}
	s.Equal("decode error: nope", e.Error())
}

func (s *DomainTestSuite) TestNewErrIO() {
	s.NoError(domain.NewErrIO("read", nil))

	wrapped := domain.NewErrIO("read page", io.ErrUnexpectedEOF)
	s.ErrorIs(wrapped, io.ErrUnexpectedEOF)
	var ioErr *domain.ErrIO
	s.ErrorAs(wrapped, &ioErr)
	s.Equal("read page", ioErr.Op)

	// Already classified errors pass through untouched.
	s.Same(wrapped, domain.NewErrIO("outer", wrapped))
}

func (s *DomainTestSuite) TestValues() {
	var zero domain.Value
	s.True(zero.IsUndefined())
	s.Equal(domain.KindUndefined, zero.Kind())

	s.True(domain.Null().IsNull())
	s.True(domain.Bool(true).Bool())
	s.False(domain.Int(1).Bool())
	s.Equal(int64(-7), domain.Int(-7).Int())
	s.Equal(1.5, domain.Float(1.5).Float())
	s.Equal("x", domain.Str("x").Str())

	// Ints and floats meet on the number line.
	s.True(domain.Int(2).Equal(domain.Float(2)))
	s.False(domain.Int(2).Equal(domain.Str("2")))
	s.False(domain.Float(math.NaN()).Equal(domain.Float(math.NaN())))

	n, ok := domain.Int(3).Num()
	s.True(ok)
	s.Equal(3.0, n)
	_, ok = domain.Str("3").Num()
	s.False(ok)

	// Time keeps millisecond precision.
	now := time.Date(2024, 5, 14, 10, 30, 0, 123456789, time.UTC)
	v := domain.Time(now)
	s.Equal(now.UnixMilli(), v.UnixMilli())
	s.True(v.Time().Equal(now.Truncate(time.Millisecond)))

	oid := domain.OID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	s.Equal("0102030405060708090a0b0c", oid.String())
	s.Equal(oid, domain.ObjectID(oid).OID())

	// Clone detaches composite storage.
	b := []byte("ab")
	bv := domain.Bytes(b)
	cl := bv.Clone()
	b[0] = 'z'
	s.Equal(byte('z'), bv.Bytes()[0])
	s.Equal(byte('a'), cl.Bytes()[0])

	arr := domain.Array(domain.Int(1), domain.Str("x"))
	s.Len(arr.Array(), 2)
	s.True(arr.Equal(arr.Clone()))

	s.Equal(int64(7), domain.Int(7).Interface())
	s.Equal([]any{int64(1), "x"}, arr.Interface())
	s.Nil(domain.Null().Interface())

	s.Equal(`"x"`, domain.Str("x").String())
	s.Equal("[1, true]", domain.Array(domain.Int(1), domain.Bool(true)).String())
}

func (s *DomainTestSuite) TestDocuments() {
	d := domain.NewDoc(
		domain.Field{Name: "a", Value: domain.Int(1)},
		domain.Field{Name: "b", Value: domain.Str("x")},
		domain.Field{Name: "a", Value: domain.Int(2)},
	)
	s.Equal(2, d.Len())
	s.Equal([]string{"a", "b"}, slices.Collect(d.Keys()))
	s.Equal(int64(2), d.Get("a").Int())

	d.Set("c", domain.Bool(true))
	d.Unset("b")
	s.Equal([]string{"a", "c"}, slices.Collect(d.Keys()))
	s.True(d.Has("c"))
	s.False(d.Has("b"))
	_, ok := d.GetOk("b")
	s.False(ok)
	s.True(d.Get("b").IsUndefined())

	nested := domain.NewDoc(domain.Field{Name: "n", Value: domain.Int(1)})
	outer := domain.NewDoc(domain.Field{Name: "sub", Value: domain.Object(nested)})
	cl := outer.Clone()
	nested.Set("n", domain.Int(9))
	s.Equal(int64(9), outer.Get("sub").Doc().Get("n").Int())
	s.Equal(int64(1), cl.Get("sub").Doc().Get("n").Int())

	x := domain.NewDoc(
		domain.Field{Name: "a", Value: domain.Int(1)},
		domain.Field{Name: "b", Value: domain.Int(2)},
	)
	y := domain.NewDoc(
		domain.Field{Name: "b", Value: domain.Int(2)},
		domain.Field{Name: "a", Value: domain.Int(1)},
	)
	s.False(x.Equal(y))
	s.True(x.Equal(x.Clone()))

	s.Equal(map[string]any{"a": int64(2), "c": true}, d.Interface())
	s.Equal("{a: 2, c: true}", d.String())

	var nilDoc *domain.Doc
	s.Equal(0, nilDoc.Len())
	s.False(nilDoc.Has("a"))
	s.True(nilDoc.Get("a").IsUndefined())
	s.Nil(nilDoc.Clone())
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
