package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/httputil"
	"stash/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the inventory operations exposed over HTTP.
type Service interface {
	CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error)
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	ListItems(ctx context.Context) ([]*models.Item, error)
	CreateReservation(ctx context.Context, itemID id.ItemID, quantity int) (*models.Reservation, error)
	GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error)
	CancelReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error)
	Health(ctx context.Context) error
}

// Handler wires inventory endpoints to the allocation engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an inventory handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts inventory endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.HandleListItems)
		r.Post("/", h.HandleCreateItem)
		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", h.HandleGetItem)
			r.Get("/reservations", h.HandleListItemReservations)
			r.Post("/reservations", h.HandleCreateReservation)
			r.Route("/reservations/{reservationID}", func(r chi.Router) {
				r.Get("/", h.scoped(h.HandleGetReservation))
				r.Put("/", h.scoped(h.HandleUpdateReservation))
				r.Delete("/", h.scoped(h.HandleCancelReservation))
				r.Post("/confirm", h.scoped(h.HandleConfirmReservation))
			})
		})
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Get("/", h.HandleListReservations)
		r.Route("/{reservationID}", func(r chi.Router) {
			r.Get("/", h.HandleGetReservation)
			r.Put("/", h.HandleUpdateReservation)
			r.Delete("/", h.HandleCancelReservation)
			r.Post("/confirm", h.HandleConfirmReservation)
		})
	})
}

// HandleHealth reports whether the backing store is reachable.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Health(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListItems handles GET /items.
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.service.ListItems(ctx)
	if err != nil {
		h.fail(ctx, w, "list items", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromItems(items))
}

// HandleCreateItem handles POST /items.
func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateItemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	item, err := h.service.CreateItem(ctx, *req)
	if err != nil {
		h.fail(ctx, w, "create item", err)
		return
	}
	w.Header().Set("Location", itemHref(item.ID))
	httputil.WriteJSON(w, http.StatusCreated, FromItem(item))
}

// HandleGetItem handles GET /items/{itemID}.
func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	item, err := h.service.GetItem(ctx, itemID)
	if err != nil {
		h.fail(ctx, w, "get item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromItem(item))
}

// HandleListItemReservations handles GET /items/{itemID}/reservations.
func (h *Handler) HandleListItemReservations(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter := models.ReservationFilter{
		ItemID: &itemID,
		Status: models.ReservationStatus(r.URL.Query().Get("status")),
	}
	h.listReservations(w, r, filter)
}

// HandleListReservations handles GET /reservations with optional item_id and status filters.
func (h *Handler) HandleListReservations(w http.ResponseWriter, r *http.Request) {
	var filter models.ReservationFilter
	q := r.URL.Query()
	if raw := q.Get("item_id"); raw != "" {
		itemID, err := id.ParseItemID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.ItemID = &itemID
	}
	filter.Status = models.ReservationStatus(q.Get("status"))
	h.listReservations(w, r, filter)
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request, filter models.ReservationFilter) {
	ctx := r.Context()
	reservations, err := h.service.ListReservations(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "list reservations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReservations(reservations))
}

// HandleCreateReservation handles POST /items/{itemID}/reservations.
func (h *Handler) HandleCreateReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateReservationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reservation, err := h.service.CreateReservation(ctx, itemID, req.QuantityOrDefault())
	if err != nil {
		h.fail(ctx, w, "create reservation", err)
		return
	}
	w.Header().Set("Location", reservationHref(reservation.ID))
	httputil.WriteJSON(w, http.StatusCreated, FromReservation(reservation))
}

// HandleGetReservation handles GET /reservations/{reservationID}.
func (h *Handler) HandleGetReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reservationID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reservation, err := h.service.GetReservation(ctx, reservationID)
	if err != nil {
		h.fail(ctx, w, "get reservation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReservation(reservation))
}

// HandleUpdateReservation handles PUT /reservations/{reservationID}, moving
// the reservation to committed or cancelled.
func (h *Handler) HandleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reservationID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateReservationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var reservation *models.Reservation
	switch req.Status {
	case models.StatusCommitted:
		reservation, err = h.service.ConfirmReservation(ctx, reservationID)
	default:
		reservation, err = h.service.CancelReservation(ctx, reservationID)
	}
	if err != nil {
		h.fail(ctx, w, "update reservation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReservation(reservation))
}

// HandleConfirmReservation handles POST /reservations/{reservationID}/confirm.
func (h *Handler) HandleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm reservation", h.service.ConfirmReservation)
}

// HandleCancelReservation handles DELETE /reservations/{reservationID}.
func (h *Handler) HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel reservation", h.service.CancelReservation)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, id.ReservationID) (*models.Reservation, error)) {
	ctx := r.Context()
	reservationID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reservation, err := fn(ctx, reservationID)
	if err != nil {
		h.fail(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReservation(reservation))
}

// scoped guards nested reservation routes: a reservation that belongs to a
// different item than the one in the path is reported as not found.
func (h *Handler) scoped(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		reservationID, err := id.ParseReservationID(chi.URLParam(r, "reservationID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		reservation, err := h.service.GetReservation(ctx, reservationID)
		if err != nil {
			h.fail(ctx, w, "get reservation", err)
			return
		}
		if reservation.ItemID != itemID {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "reservation "+reservationID.String()+" not found for item "+itemID.String()))
			return
		}
		next(w, r)
	}
}

// fail logs at a level matching the outcome and writes the error envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelInfo
	if dErrors.HTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	httputil.WriteError(w, err)
}
