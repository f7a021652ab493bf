package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"stash/internal/inventory/events"
	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/requestcontext"
)

func (e *Engine) CreateItem(ctx context.Context, req models.CreateItemRequest) (_ *models.Item, err error) {
	ctx, span := e.startSpan(ctx, "create_item")
	defer func() { e.finish(span, "create_item", err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	item, err := e.ledger.Create(ctx, *req.Capacity, req.Metadata, req.Tags)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("item_id", item.ID.String()))
	e.logger.InfoContext(ctx, "item created",
		"item_id", item.ID.String(),
		"capacity", item.Capacity,
		"request_id", requestcontext.RequestID(ctx),
	)
	e.publish(ctx, events.ForItem(item, requestcontext.RequestID(ctx)))
	return item, nil
}

func (e *Engine) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	return e.ledger.Get(ctx, itemID)
}

func (e *Engine) ListItems(ctx context.Context) ([]*models.Item, error) {
	return e.ledger.List(ctx)
}
