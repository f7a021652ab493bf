package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/sentinel"
)

const (
	redisItemKeyPrefix        = "stash:item:"
	redisItemsSetKey          = "stash:items"
	redisReservationKeyPrefix = "stash:reservation:"
	redisReservationsSetKey   = "stash:reservations"
	// Sorted set of pending reservation ids scored by expires_at in unix millis.
	redisPendingZSetKey = "stash:reservations:pending"
)

func redisItemKey(itemID id.ItemID) string { return redisItemKeyPrefix + itemID.String() }

func redisItemReservationsKey(itemID id.ItemID) string {
	return redisItemKeyPrefix + itemID.String() + ":reservations"
}

func redisReservationKey(reservationID string) string {
	return redisReservationKeyPrefix + reservationID
}

// Redis stores records as JSON strings with set indexes. Save runs inside
// MULTI/EXEC so an item and its reservations become visible together.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	raw, err := s.client.Get(ctx, redisItemKey(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, unavailable(err))
	}
	var item models.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return &item, nil
}

func (s *Redis) ListItems(ctx context.Context) ([]*models.Item, error) {
	ids, err := s.client.SMembers(ctx, redisItemsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", unavailable(err))
	}
	if len(ids) == 0 {
		return []*models.Item{}, nil
	}
	keys := make([]string, len(ids))
	for i, raw := range ids {
		keys[i] = redisItemKeyPrefix + raw
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load items: %w", unavailable(err))
	}
	out := make([]*models.Item, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var item models.Item
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", ids[i], err)
		}
		out = append(out, &item)
	}
	sortItems(out)
	return out, nil
}

func (s *Redis) GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	raw, err := s.client.Get(ctx, redisReservationKey(reservationID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, unavailable(err))
	}
	var r models.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode reservation %s: %w", reservationID, err)
	}
	return &r, nil
}

func (s *Redis) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	setKey := redisReservationsSetKey
	if filter.ItemID != nil {
		setKey = redisItemReservationsKey(*filter.ItemID)
	}
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list reservation ids: %w", unavailable(err))
	}
	rs, err := s.loadReservations(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Reservation, 0, len(rs))
	for _, r := range rs {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Redis) ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	ids, err := s.client.ZRangeByScore(ctx, redisPendingZSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due reservation ids: %w", unavailable(err))
	}
	rs, err := s.loadReservations(ctx, ids)
	if err != nil {
		return nil, err
	}
	// The index has millisecond resolution; the record is authoritative.
	out := make([]*models.Reservation, 0, len(rs))
	for _, r := range rs {
		if r.IsDue(now) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Redis) loadReservations(ctx context.Context, ids []string) ([]*models.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, raw := range ids {
		keys[i] = redisReservationKey(raw)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", unavailable(err))
	}
	out := make([]*models.Reservation, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r models.Reservation
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("decode reservation %s: %w", ids[i], err)
		}
		out = append(out, &r)
	}
	return out, nil
}

// Save writes the item, its reservations and every index in one transaction.
func (s *Redis) Save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error {
	if item == nil {
		return fmt.Errorf("save: item is required")
	}
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	encoded := make([][]byte, len(reservations))
	for i, r := range reservations {
		if r.ItemID != item.ID {
			return fmt.Errorf("save: reservation %s belongs to item %s, not %s", r.ID, r.ItemID, item.ID)
		}
		if encoded[i], err = json.Marshal(r); err != nil {
			return fmt.Errorf("encode reservation %s: %w", r.ID, err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisItemKey(item.ID), itemJSON, 0)
		pipe.SAdd(ctx, redisItemsSetKey, item.ID.String())
		for i, r := range reservations {
			rid := r.ID.String()
			pipe.Set(ctx, redisReservationKey(rid), encoded[i], 0)
			pipe.SAdd(ctx, redisReservationsSetKey, rid)
			pipe.SAdd(ctx, redisItemReservationsKey(item.ID), rid)
			if r.IsPending() {
				pipe.ZAdd(ctx, redisPendingZSetKey, redis.Z{Score: float64(r.ExpiresAt.UnixMilli()), Member: rid})
			} else {
				pipe.ZRem(ctx, redisPendingZSetKey, rid)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save item %s: %w", item.ID, unavailable(err))
	}
	return nil
}

func (s *Redis) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health: %w", unavailable(err))
	}
	return nil
}
