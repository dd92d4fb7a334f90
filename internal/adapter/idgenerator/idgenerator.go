// Package idgenerator contains the default [domain.IDGenerator]
// implementation, producing object ids with a leading timestamp.
package idgenerator

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/timegetter"
)

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
	clock  domain.TimeGetter
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
		clock:  timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// NewObjectID implements [domain.IDGenerator]. The first four bytes
// carry the unix timestamp in seconds, big endian, so ids order by
// creation second; the remaining eight come from the random reader.
func (i *IDGenerator) NewObjectID() (domain.OID, error) {
	var oid domain.OID
	binary.BigEndian.PutUint32(oid[:4], uint32(i.clock.GetTime().Unix()))
	if _, err := io.ReadFull(i.reader, oid[4:]); err != nil {
		return domain.OID{}, err
	}
	return oid, nil
}
