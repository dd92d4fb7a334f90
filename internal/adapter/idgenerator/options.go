package idgenerator

import (
	"io"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// WithReader sets the reader that will provide random bytes.
func WithReader(r io.Reader) Option {
	return func(ig *IDGenerator) {
		ig.reader = r
	}
}

// WithTimeGetter sets the clock that stamps the id prefix.
func WithTimeGetter(tg domain.TimeGetter) Option {
	return func(ig *IDGenerator) {
		ig.clock = tg
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*IDGenerator)
