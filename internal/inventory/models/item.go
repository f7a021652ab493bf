package models

import (
	"fmt"
	"maps"
	"slices"
	"time"

	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/strings"
)

// Item is a reservable resource with a fixed capacity.
//
// Invariants:
//   - Capacity, Available and Committed are never negative
//   - Capacity is immutable after construction
//   - Available + Committed + Σ(pending reservation quantities) == Capacity
//
// The pending pool is implicit: Capacity - Available - Committed. Ledger
// mutators are only invoked by the allocation engine while it holds the
// item's lock, always on a private copy that is published by a successful
// store write.
type Item struct {
	ID        id.ItemID         `json:"id"`
	Capacity  int               `json:"capacity"`
	Available int               `json:"available"`
	Committed int               `json:"committed"`
	Metadata  map[string]string `json:"metadata"`
	Tags      []string          `json:"tags"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewItem constructs an item with all capacity available.
func NewItem(itemID id.ItemID, capacity int, metadata map[string]string, tags []string, now time.Time) (*Item, error) {
	if capacity < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "capacity must not be negative")
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	tags = strings.DedupeAndTrim(tags)
	if tags == nil {
		tags = []string{}
	}
	return &Item{
		ID:        itemID,
		Capacity:  capacity,
		Available: capacity,
		Committed: 0,
		Metadata:  maps.Clone(metadata),
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Pending returns the units currently held by pending reservations.
func (i *Item) Pending() int {
	return i.Capacity - i.Available - i.Committed
}

// Reserve moves qty units from available into the pending pool.
func (i *Item) Reserve(qty int, now time.Time) error {
	if qty <= 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "quantity must be positive")
	}
	if qty > i.Available {
		return dErrors.New(dErrors.CodeInsufficientAvailable,
			fmt.Sprintf("requested %d units but only %d available", qty, i.Available))
	}
	i.Available -= qty
	i.UpdatedAt = now
	return nil
}

// Release returns qty units from the pending pool to available.
func (i *Item) Release(qty int, now time.Time) error {
	if qty <= 0 || qty > i.Pending() {
		return dErrors.New(dErrors.CodeInsufficientAvailable,
			fmt.Sprintf("cannot release %d units; %d pending", qty, i.Pending()))
	}
	i.Available += qty
	i.UpdatedAt = now
	return nil
}

// Commit moves qty units from the pending pool into committed.
func (i *Item) Commit(qty int, now time.Time) error {
	if qty <= 0 || qty > i.Pending() {
		return dErrors.New(dErrors.CodeInsufficientAvailable,
			fmt.Sprintf("cannot commit %d units; %d pending", qty, i.Pending()))
	}
	i.Committed += qty
	i.UpdatedAt = now
	return nil
}

// CheckInvariant verifies the counters against the pending total computed
// from the item's reservation records.
func (i *Item) CheckInvariant(pending int) error {
	if i.Available < 0 || i.Committed < 0 || i.Capacity < 0 {
		return fmt.Errorf("item %s has negative counters", i.ID)
	}
	if i.Available+i.Committed+pending != i.Capacity {
		return fmt.Errorf("item %s: available %d + committed %d + pending %d != capacity %d",
			i.ID, i.Available, i.Committed, pending, i.Capacity)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without sharing maps or slices.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	c.Tags = slices.Clone(i.Tags)
	return &c
}
