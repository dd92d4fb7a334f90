package collection

import (
	"context"
	"fmt"

	"github.com/vinicius-lino-figueiredo/jedb/domain"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/catalog"
	"github.com/vinicius-lino-figueiredo/jedb/internal/adapter/pager"
)

// Drop permanently removes the named collection from the paged file:
// every document record, the bucket directory, the metadata record and
// the catalog entry go in a single page transaction, so a crash mid-drop
// leaves the collection whole. Handles opened before the drop keep their
// in-memory state and fail once they touch the freed records.
func Drop(ctx context.Context, p domain.Pager, codec domain.Codec, name string) error {
	ptx, err := p.Begin(ctx)
	if err != nil {
		return err
	}
	if err := drop(ptx, codec, name); err != nil {
		ptx.Rollback()
		return err
	}
	return ptx.Commit(ctx)
}

func drop(ptx domain.PageTx, codec domain.Codec, name string) error {
	payload, err := ptx.ReadRecord(pager.CatalogPage)
	if err != nil {
		return err
	}
	root, err := catalog.DecodeRoot(codec, payload)
	if err != nil {
		return err
	}
	metaPtr, ok := root.Ptr(name)
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	metaPayload, err := ptx.ReadRecord(metaPtr)
	if err != nil {
		return err
	}
	meta, err := catalog.DecodeMeta(codec, metaPayload)
	if err != nil {
		return fmt.Errorf("collection %s: %w", name, err)
	}
	dirPayload, err := ptx.ReadRecord(meta.Dir)
	if err != nil {
		return err
	}
	heads, err := parseDir(dirPayload)
	if err != nil {
		return fmt.Errorf("collection %s: %w", name, err)
	}
	pairs, err := scanPairs(ptx.ReadRecord, heads)
	if err != nil {
		return fmt.Errorf("collection %s: %w", name, err)
	}
	for _, pair := range pairs {
		if err := ptx.DeleteRecord(pair.ptr); err != nil {
			return err
		}
	}
	if err := ptx.DeleteRecord(meta.Dir); err != nil {
		return err
	}
	if err := ptx.DeleteRecord(metaPtr); err != nil {
		return err
	}
	root.Remove(name)
	encoded, err := root.Encode(codec)
	if err != nil {
		return err
	}
	return ptx.UpdateRecord(pager.CatalogPage, encoded)
}
