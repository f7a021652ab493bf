// Package ledger owns item capacity records.
//
// The ledger creates items and serves reads. Counter mutation happens on
// models.Item (Reserve, Release, Commit) and is driven only by the allocation
// engine while it holds the item's lock.
package ledger

import (
	"context"
	"errors"
	"time"

	"stash/internal/inventory/models"
	"stash/internal/inventory/store"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/sentinel"
)

// Store is the persistence the ledger needs.
type Store interface {
	store.ItemReader
	store.Writer
}

type Ledger struct {
	store Store
	clock func() time.Time
}

type Option func(*Ledger)

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func New(st Store, opts ...Option) *Ledger {
	l := &Ledger{store: st, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Create registers a new item with all capacity available and persists it.
func (l *Ledger) Create(ctx context.Context, capacity int, metadata map[string]string, tags []string) (*models.Item, error) {
	item, err := models.NewItem(id.NewItemID(), capacity, metadata, tags, l.clock().UTC())
	if err != nil {
		return nil, err
	}
	if err := l.store.Save(ctx, item, nil); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist item")
	}
	return item, nil
}

func (l *Ledger) Get(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	item, err := l.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "item not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load item")
	}
	return item, nil
}

// List returns a snapshot of every item.
func (l *Ledger) List(ctx context.Context) ([]*models.Item, error) {
	items, err := l.store.ListItems(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list items")
	}
	return items, nil
}
