package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stash/internal/inventory/models"
	"stash/internal/inventory/store"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type failingWriter struct {
	*store.InMemory
}

func (failingWriter) Save(context.Context, *models.Item, []*models.Reservation) error {
	return errors.New("disk full")
}

type LedgerSuite struct {
	suite.Suite
	store  *store.InMemory
	ledger *Ledger
	ctx    context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.ledger = New(s.store, WithClock(func() time.Time { return testNow }))
	s.ctx = context.Background()
}

func (s *LedgerSuite) TestCreate() {
	s.Run("persists with all capacity available", func() {
		item, err := s.ledger.Create(s.ctx, 10, map[string]string{"sku": "X"}, []string{" red ", "red", "blue"})
		s.Require().NoError(err)
		s.Equal(10, item.Available)
		s.Zero(item.Committed)
		s.Equal([]string{"red", "blue"}, item.Tags)
		s.Equal(testNow, item.CreatedAt)

		stored, err := s.store.GetItem(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal(item, stored)
	})

	s.Run("zero capacity is allowed", func() {
		item, err := s.ledger.Create(s.ctx, 0, nil, nil)
		s.Require().NoError(err)
		s.Zero(item.Available)
	})

	s.Run("negative capacity is rejected", func() {
		_, err := s.ledger.Create(s.ctx, -1, nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	s.Run("store failure is a persistence error", func() {
		l := New(failingWriter{store.NewInMemory()})
		_, err := l.Create(s.ctx, 1, nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodePersistence))
	})
}

func (s *LedgerSuite) TestGetAndList() {
	_, err := s.ledger.Get(s.ctx, id.NewItemID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	a, err := s.ledger.Create(s.ctx, 1, nil, nil)
	s.Require().NoError(err)
	b, err := s.ledger.Create(s.ctx, 2, nil, nil)
	s.Require().NoError(err)

	got, err := s.ledger.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)

	items, err := s.ledger.List(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]id.ItemID{a.ID, b.ID}, []id.ItemID{items[0].ID, items[1].ID})
}
