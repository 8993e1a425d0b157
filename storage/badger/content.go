package badger

import (
	"context"
	"errors"
	"time"

	"github.com/codefulcrum/senseai/core"
	"github.com/codefulcrum/senseai/storage"
	"github.com/dgraph-io/badger/v4"
)

// ContentRepository implements storage.ContentRepository for BadgerDB.
type ContentRepository struct {
	backend *Backend
}

var _ storage.ContentRepository = (*ContentRepository)(nil)

// NewContentRepository creates a new ContentRepository.
func NewContentRepository(backend *Backend) *ContentRepository {
	return &ContentRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *ContentRepository) Close() error {
	return nil
}

// PutContent inserts or replaces a content item.
func (r *ContentRepository) PutContent(ctx context.Context, item *core.ContentItem) error {
	if err := core.ValidateContentItem(item); err != nil {
		return err
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	value, err := storage.MarshalContentItem(item)
	if err != nil {
		return err
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeContentKey(item.ID), value)
	})
}

// GetContent retrieves a content item by ID.
func (r *ContentRepository) GetContent(ctx context.Context, id string) (*core.ContentItem, error) {
	var result *core.ContentItem
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeContentKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result, err = storage.UnmarshalContentItem(val)
			return err
		})
	})
	return result, err
}

// ListContent returns every stored content item.
// Entries that fail to decode are logged and skipped.
func (r *ContentRepository) ListContent(ctx context.Context) ([]*core.ContentItem, error) {
	var results []*core.ContentItem
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, prefixOf(contentItemPrefix), func(key, val []byte) error {
			item, err := storage.UnmarshalContentItem(val)
			if err != nil {
				r.backend.logger.Warn("skipping unreadable content item", "key", string(key), "err", err)
				return nil
			}
			results = append(results, item)
			return nil
		})
	})
	return results, err
}

// DeleteContent removes a content item.
func (r *ContentRepository) DeleteContent(ctx context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		key := makeContentKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(key)
	})
}
