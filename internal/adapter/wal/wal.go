// Package wal implements the page delta journal that makes pager commits
// durable before any in-place write reaches the data file.
package wal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/dolmen-go/contextio"
	"github.com/google/uuid"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

const (
	logMagic   = "JWAL"
	logVersion = 1
	headerSize = 24

	recPage   = 'P'
	recCommit = 'C'
)

// Entry is one full page image carried by a batch.
type Entry struct {
	Page uint32
	Data []byte
}

// Batch is the unit of commit: the page images staged by one transaction
// and the pages it freed, published under a single commit sequence.
type Batch struct {
	Seq   uint64
	Pages []Entry
	Freed []uint32
}

// Log is an append-only journal of committed batches. Appends that fail
// leave the committed boundary where it was, so a torn batch is simply
// overwritten by the next append and never replayed.
type Log struct {
	f        *os.File
	id       uuid.UUID
	off      int64
	readOnly bool
}

// Open opens or creates the log at path. The id pairs the log with its
// data file; an existing log stamped with a different id is discarded, so
// a journal copied next to a foreign data file can never be applied to it.
func Open(path string, mode os.FileMode, readOnly bool, id uuid.UUID) (*Log, error) {
	if readOnly {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if os.IsNotExist(err) {
			return &Log{id: id, readOnly: true}, nil
		}
		if err != nil {
			return nil, domain.NewErrIO("open log", err)
		}
		l := &Log{f: f, id: id, readOnly: true}
		ok, err := l.check()
		if err != nil {
			f.Close()
			return nil, err
		}
		if !ok {
			f.Close()
			return &Log{id: id, readOnly: true}, nil
		}
		return l, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, mode)
	if err != nil {
		return nil, domain.NewErrIO("open log", err)
	}
	l := &Log{f: f, id: id}
	ok, err := l.check()
	if err == nil && !ok {
		err = l.Reset()
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// check validates the file header against the expected identity.
func (l *Log) check() (bool, error) {
	st, err := l.f.Stat()
	if err != nil {
		return false, domain.NewErrIO("stat log", err)
	}
	if st.Size() < headerSize {
		return false, nil
	}
	hdr := make([]byte, headerSize)
	if _, err := l.f.ReadAt(hdr, 0); err != nil {
		return false, domain.NewErrIO("read log header", err)
	}
	if string(hdr[:4]) != logMagic ||
		binary.LittleEndian.Uint16(hdr[4:]) != logVersion ||
		!bytes.Equal(hdr[8:24], l.id[:]) {
		return false, nil
	}
	l.off = headerSize
	return true, nil
}

// Append writes the batch after the last committed one and advances the
// committed boundary once every byte is down.
func (l *Log) Append(ctx context.Context, b *Batch) error {
	if l.readOnly {
		return domain.ErrReadOnly
	}
	buf := new(bytes.Buffer)
	w := contextio.NewWriter(ctx, buf)
	for i := range b.Pages {
		if _, err := w.Write(pageRecord(&b.Pages[i])); err != nil {
			return domain.NewErrIO("append log", err)
		}
	}
	if _, err := w.Write(commitRecord(b)); err != nil {
		return domain.NewErrIO("append log", err)
	}
	if _, err := l.f.WriteAt(buf.Bytes(), l.off); err != nil {
		return domain.NewErrIO("append log", err)
	}
	l.off += int64(buf.Len())
	return nil
}

// Replay calls fn for every committed batch in commit order and positions
// the log after the last one. A torn or uncommitted tail is dropped
// without error.
func (l *Log) Replay(fn func(*Batch) error) error {
	if l.f == nil {
		return nil
	}
	st, err := l.f.Stat()
	if err != nil {
		return domain.NewErrIO("stat log", err)
	}
	size := st.Size()
	if size <= headerSize {
		return nil
	}
	r := bufio.NewReader(io.NewSectionReader(l.f, headerSize, size-headerSize))
	remain := size - headerSize

	off := int64(headerSize)
	var tail int64
	var pending []Entry
	for {
		rec, n, ok := readRecord(r, remain)
		if !ok {
			break
		}
		remain -= n
		tail += n
		switch rec.kind {
		case recPage:
			pending = append(pending, Entry{Page: rec.page, Data: rec.data})
		case recCommit:
			b := &Batch{Seq: rec.seq, Pages: pending, Freed: rec.freed}
			if err := fn(b); err != nil {
				return err
			}
			pending = nil
			off += tail
			tail = 0
		}
	}
	l.off = off
	return nil
}

// Size returns the bytes occupied by committed batches.
func (l *Log) Size() int64 {
	if l.off <= headerSize {
		return 0
	}
	return l.off - headerSize
}

// Rewind moves the committed boundary back to a previous Size value and
// cuts the file there, withdrawing batches appended after it.
func (l *Log) Rewind(size int64) error {
	if l.readOnly {
		return domain.ErrReadOnly
	}
	l.off = headerSize + size
	if err := l.f.Truncate(l.off); err != nil {
		return domain.NewErrIO("truncate log", err)
	}
	return nil
}

// Reset discards every batch, leaving only the header.
func (l *Log) Reset() error {
	if l.readOnly {
		return domain.ErrReadOnly
	}
	if err := l.f.Truncate(0); err != nil {
		return domain.NewErrIO("truncate log", err)
	}
	hdr := make([]byte, headerSize)
	copy(hdr, logMagic)
	binary.LittleEndian.PutUint16(hdr[4:], logVersion)
	copy(hdr[8:], l.id[:])
	if _, err := l.f.WriteAt(hdr, 0); err != nil {
		return domain.NewErrIO("write log header", err)
	}
	l.off = headerSize
	return nil
}

// Sync flushes the log to stable storage.
func (l *Log) Sync() error {
	if l.f == nil || l.readOnly {
		return nil
	}
	if err := l.f.Sync(); err != nil {
		return domain.NewErrIO("sync log", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	if err := l.f.Close(); err != nil {
		return domain.NewErrIO("close log", err)
	}
	return nil
}

func pageRecord(e *Entry) []byte {
	b := make([]byte, 0, 13+len(e.Data))
	b = append(b, recPage)
	b = binary.LittleEndian.AppendUint32(b, e.Page)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(e.Data)))
	b = append(b, e.Data...)
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

func commitRecord(batch *Batch) []byte {
	b := make([]byte, 0, 17+4*len(batch.Freed))
	b = append(b, recCommit)
	b = binary.LittleEndian.AppendUint64(b, batch.Seq)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(batch.Freed)))
	for _, page := range batch.Freed {
		b = binary.LittleEndian.AppendUint32(b, page)
	}
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

type record struct {
	kind  byte
	page  uint32
	data  []byte
	seq   uint64
	freed []uint32
}

// readRecord reads and validates one record. Any short read, implausible
// length or checksum mismatch marks the tail torn.
func readRecord(r *bufio.Reader, remain int64) (*record, int64, bool) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, 0, false
	}
	sum := crc32.NewIEEE()
	sum.Write([]byte{kind})
	switch kind {
	case recPage:
		hdr := make([]byte, 8)
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, 0, false
		}
		length := int64(binary.LittleEndian.Uint32(hdr[4:]))
		if 13+length > remain {
			return nil, 0, false
		}
		body := make([]byte, length+4)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, 0, false
		}
		sum.Write(hdr)
		sum.Write(body[:length])
		if sum.Sum32() != binary.LittleEndian.Uint32(body[length:]) {
			return nil, 0, false
		}
		return &record{
			kind: kind,
			page: binary.LittleEndian.Uint32(hdr),
			data: body[:length:length],
		}, 13 + length, true
	case recCommit:
		hdr := make([]byte, 12)
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, 0, false
		}
		nfreed := int64(binary.LittleEndian.Uint32(hdr[8:]))
		if 17+4*nfreed > remain {
			return nil, 0, false
		}
		body := make([]byte, 4*nfreed+4)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, 0, false
		}
		sum.Write(hdr)
		sum.Write(body[:4*nfreed])
		if sum.Sum32() != binary.LittleEndian.Uint32(body[4*nfreed:]) {
			return nil, 0, false
		}
		var freed []uint32
		for i := int64(0); i < nfreed; i++ {
			freed = append(freed, binary.LittleEndian.Uint32(body[4*i:]))
		}
		return &record{kind: kind, seq: binary.LittleEndian.Uint64(hdr), freed: freed}, 17 + 4*nfreed, true
	default:
		return nil, 0, false
	}
}
