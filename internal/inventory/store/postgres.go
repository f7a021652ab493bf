package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/sentinel"
	"stash/pkg/platform/tx"
)

//go:embed schema.sql
var postgresSchema string

const (
	itemColumns        = "id, capacity, available, committed, metadata, tags, created_at, updated_at"
	reservationColumns = "id, item_id, quantity, status, expires_at, created_at, updated_at"
)

// Postgres persists records in two tables. Save upserts the item and its
// reservations inside one transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		itemID   uuid.UUID
		item     models.Item
		metadata []byte
		tags     pq.StringArray
	)
	if err := row.Scan(&itemID, &item.Capacity, &item.Available, &item.Committed, &metadata, &tags, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.ID = id.ItemID(itemID)
	item.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	item.Tags = []string(tags)
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		rid, itemID uuid.UUID
		r           models.Reservation
		status      string
	)
	if err := row.Scan(&rid, &itemID, &r.Quantity, &status, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = id.ReservationID(rid)
	r.ItemID = id.ItemID(itemID)
	r.Status = models.ReservationStatus(status)
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (s *Postgres) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", uuid.UUID(itemID))
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return item, nil
}

func (s *Postgres) ListItems(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list items: %w", unavailable(err))
	}
	defer rows.Close()

	out := make([]*models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return out, nil
}

func (s *Postgres) GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reservationColumns+" FROM reservations WHERE id = $1", uuid.UUID(reservationID))
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	return r, nil
}

func (s *Postgres) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ItemID != nil {
		args = append(args, uuid.UUID(*filter.ItemID))
		clauses = append(clauses, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + reservationColumns + " FROM reservations"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"
	return s.queryReservations(ctx, query, args...)
}

func (s *Postgres) ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	return s.queryReservations(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE status = $1 AND expires_at <= $2 ORDER BY created_at, id",
		string(models.StatusPending), now)
}

func (s *Postgres) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", unavailable(err))
	}
	defer rows.Close()

	out := make([]*models.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

const upsertItemSQL = `
INSERT INTO items (` + itemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    available = EXCLUDED.available,
    committed = EXCLUDED.committed,
    metadata = EXCLUDED.metadata,
    tags = EXCLUDED.tags,
    updated_at = EXCLUDED.updated_at`

const upsertReservationSQL = `
INSERT INTO reservations (` + reservationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at`

// Save upserts the item and reservations in one transaction, joining a
// transaction already carried by ctx.
func (s *Postgres) Save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error {
	if item == nil {
		return fmt.Errorf("save: item is required")
	}
	for _, r := range reservations {
		if r.ItemID != item.ID {
			return fmt.Errorf("save: reservation %s belongs to item %s, not %s", r.ID, r.ItemID, item.ID)
		}
	}
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	return tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		_, err := sqlTx.ExecContext(ctx, upsertItemSQL,
			uuid.UUID(item.ID), item.Capacity, item.Available, item.Committed,
			metadata, pq.Array(item.Tags), item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", item.ID, unavailable(err))
		}
		for _, r := range reservations {
			_, err := sqlTx.ExecContext(ctx, upsertReservationSQL,
				uuid.UUID(r.ID), uuid.UUID(r.ItemID), r.Quantity, string(r.Status),
				r.ExpiresAt, r.CreatedAt, r.UpdatedAt)
			if err != nil {
				return fmt.Errorf("upsert reservation %s: %w", r.ID, unavailable(err))
			}
		}
		return nil
	})
}

func (s *Postgres) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health: %w", unavailable(err))
	}
	return nil
}
