package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// PriceService defines the methods the price handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type PriceService interface {
	Snapshot(ctx context.Context, itemID uint32) (domain.ItemPrice, error)
	Record(ctx context.Context, itemID uint32) (domain.PriceRecord, error)
	History(ctx context.Context, itemID uint32, opts domain.ListOpts) ([]domain.PriceRecord, error)
	Aggregate(ctx context.Context, itemID uint32) (domain.AggregatePrice, error)
	Items(ctx context.Context) ([]uint32, error)
}

// PriceHandler serves the per-item price endpoints.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// historyResponse wraps stored records with the page that was requested.
type historyResponse struct {
	ItemID  uint32               `json:"item_id"`
	Records []domain.PriceRecord `json:"records"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// fail logs err when it is a server-side problem and writes the mapped
// status.
func (h *PriceHandler) fail(w http.ResponseWriter, r *http.Request, op string, itemID uint32, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.Uint64("item_id", uint64(itemID)),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, err.Error())
}

// GetPrice returns the live snapshot for an item without storing it.
// GET /api/items/{id}/price
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	price, err := h.prices.Snapshot(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get price", id, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

// RecordPrice fetches and stores a snapshot for an item.
// POST /api/items/{id}/record
func (h *PriceHandler) RecordPrice(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	rec, err := h.prices.Record(r.Context(), id)
	if err != nil {
		h.fail(w, r, "record price", id, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetHistory returns stored records for an item, oldest first.
// GET /api/items/{id}/history?limit=50&offset=0
func (h *PriceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	opts := parseListOpts(r)

	records, err := h.prices.History(r.Context(), id, opts)
	if err != nil {
		h.fail(w, r, "get history", id, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		ItemID:  id,
		Records: records,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetAggregate returns the best buy and sell summary for an item.
// GET /api/items/{id}/aggregate
func (h *PriceHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	agg, err := h.prices.Aggregate(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get aggregate", id, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ListItems returns the ids of every item with stored history.
// GET /api/items
func (h *PriceHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ids, err := h.prices.Items(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list items failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ids})
}
