// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

// Decoder implements [domain.Decoder].
type Decoder struct{}

// NewDecoder returns a new implementation of [domain.Decoder].
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements [domain.Decoder]. Documents and values are unwrapped
// to their plain Go shapes before decoding, so struct targets see maps,
// slices and scalars.
func (d *Decoder) Decode(src any, tgt any) error {
	if tgt == nil {
		return domain.ErrTargetNil
	}
	switch t := src.(type) {
	case *domain.Doc:
		src = t.Interface()
	case domain.Value:
		src = t.Interface()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "jedb",
		Result:  tgt,
	})
	if err != nil {
		return &domain.ErrDecode{Err: err}
	}
	if err := dec.Decode(src); err != nil {
		return &domain.ErrDecode{Err: err}
	}
	return nil
}
