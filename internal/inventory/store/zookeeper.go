package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/sentinel"
)

// ZooKeeper stores each record as a JSON znode under a root path:
//
//	<root>/items/<item id>
//	<root>/reservations/<reservation id>
//
// Save issues a single multi-op so the item and reservation znodes change
// together.
type ZooKeeper struct {
	conn *zk.Conn
	root string
}

// NewZooKeeper creates the record parents under root if needed.
func NewZooKeeper(conn *zk.Conn, root string) (*ZooKeeper, error) {
	s := &ZooKeeper{conn: conn, root: root}
	for _, p := range []string{s.itemsPath(), s.reservationsPath()} {
		if err := EnsurePath(conn, p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EnsurePath creates every missing persistent znode along p.
func EnsurePath(conn *zk.Conn, p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		_, err := conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("create znode %s: %w", current, err)
		}
	}
	return nil
}

func (s *ZooKeeper) itemsPath() string        { return path.Join(s.root, "items") }
func (s *ZooKeeper) reservationsPath() string { return path.Join(s.root, "reservations") }

func (s *ZooKeeper) itemPath(itemID id.ItemID) string {
	return path.Join(s.itemsPath(), itemID.String())
}

func (s *ZooKeeper) reservationPath(reservationID string) string {
	return path.Join(s.reservationsPath(), reservationID)
}

func (s *ZooKeeper) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := s.conn.Get(s.itemPath(itemID))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, unavailable(err))
	}
	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return &item, nil
}

func (s *ZooKeeper) ListItems(ctx context.Context) ([]*models.Item, error) {
	children, _, err := s.conn.Children(s.itemsPath())
	if err != nil {
		return nil, fmt.Errorf("list item znodes: %w", unavailable(err))
	}
	out := make([]*models.Item, 0, len(children))
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, _, err := s.conn.Get(path.Join(s.itemsPath(), child))
		if errors.Is(err, zk.ErrNoNode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get item %s: %w", child, unavailable(err))
		}
		var item models.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", child, err)
		}
		out = append(out, &item)
	}
	sortItems(out)
	return out, nil
}

func (s *ZooKeeper) GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := s.conn.Get(s.reservationPath(reservationID.String()))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, unavailable(err))
	}
	var r models.Reservation
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode reservation %s: %w", reservationID, err)
	}
	return &r, nil
}

func (s *ZooKeeper) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	return s.scanReservations(ctx, filter.Matches)
}

func (s *ZooKeeper) ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	return s.scanReservations(ctx, func(r *models.Reservation) bool { return r.IsDue(now) })
}

func (s *ZooKeeper) scanReservations(ctx context.Context, keep func(*models.Reservation) bool) ([]*models.Reservation, error) {
	children, _, err := s.conn.Children(s.reservationsPath())
	if err != nil {
		return nil, fmt.Errorf("list reservation znodes: %w", unavailable(err))
	}
	out := make([]*models.Reservation, 0)
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, _, err := s.conn.Get(s.reservationPath(child))
		if errors.Is(err, zk.ErrNoNode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get reservation %s: %w", child, unavailable(err))
		}
		var r models.Reservation
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode reservation %s: %w", child, err)
		}
		if keep(&r) {
			out = append(out, &r)
		}
	}
	sortReservations(out)
	return out, nil
}

// Save creates or overwrites every znode of the mutation in one multi-op.
func (s *ZooKeeper) Save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error {
	if item == nil {
		return fmt.Errorf("save: item is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ops := make([]any, 0, len(reservations)+1)
	op, err := s.writeOp(s.itemPath(item.ID), item)
	if err != nil {
		return fmt.Errorf("save item %s: %w", item.ID, err)
	}
	ops = append(ops, op)
	for _, r := range reservations {
		if r.ItemID != item.ID {
			return fmt.Errorf("save: reservation %s belongs to item %s, not %s", r.ID, r.ItemID, item.ID)
		}
		op, err := s.writeOp(s.reservationPath(r.ID.String()), r)
		if err != nil {
			return fmt.Errorf("save reservation %s: %w", r.ID, err)
		}
		ops = append(ops, op)
	}
	if _, err := s.conn.Multi(ops...); err != nil {
		return fmt.Errorf("save item %s: %w", item.ID, unavailable(err))
	}
	return nil
}

func (s *ZooKeeper) writeOp(p string, record any) (any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	exists, _, err := s.conn.Exists(p)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", p, unavailable(err))
	}
	if exists {
		return &zk.SetDataRequest{Path: p, Data: data, Version: -1}, nil
	}
	return &zk.CreateRequest{Path: p, Data: data, Acl: zk.WorldACL(zk.PermAll)}, nil
}

func (s *ZooKeeper) Health(context.Context) error {
	if _, _, err := s.conn.Exists(s.root); err != nil {
		return fmt.Errorf("zookeeper health: %w", unavailable(err))
	}
	return nil
}
