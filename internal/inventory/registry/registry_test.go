package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/internal/inventory/models"
	"stash/internal/inventory/store"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, st *store.InMemory) (*models.Item, []*models.Reservation) {
	t.Helper()
	item, err := models.NewItem(id.NewItemID(), 10, nil, nil, testNow)
	require.NoError(t, err)
	var rs []*models.Reservation
	for i, ttl := range []time.Duration{time.Minute, time.Hour} {
		require.NoError(t, item.Reserve(i+1, testNow))
		r, err := models.NewReservation(id.NewReservationID(), item.ID, i+1, ttl, testNow)
		require.NoError(t, err)
		rs = append(rs, r)
	}
	require.NoError(t, st.Save(context.Background(), item, rs))
	return item, rs
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	reg := New(st)
	item, rs := seed(t, st)

	t.Run("get returns the record", func(t *testing.T) {
		got, err := reg.Get(ctx, rs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, rs[0], got)
	})

	t.Run("get unknown is not found", func(t *testing.T) {
		_, err := reg.Get(ctx, id.NewReservationID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("list by item", func(t *testing.T) {
		got, err := reg.List(ctx, models.ReservationFilter{ItemID: &item.ID})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, 3, PendingQuantity(got))
	})

	t.Run("expired honours the boundary", func(t *testing.T) {
		due, err := reg.Expired(ctx, testNow.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, rs[0].ID, due[0].ID)

		due, err = reg.Expired(ctx, testNow.Add(time.Minute-time.Nanosecond))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}
