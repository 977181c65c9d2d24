package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// ArchiveService lists and loads archived price history.
type ArchiveService interface {
	Archives(ctx context.Context, itemID uint32) ([]domain.BlobInfo, error)
	Load(ctx context.Context, itemID uint32, day time.Time) ([]domain.PriceRecord, error)
}

// ArchiveHandler serves the cold-storage endpoints.
type ArchiveHandler struct {
	archives ArchiveService
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archives ArchiveService, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, logger: logger}
}

// ListArchives lists the archive objects for an item.
// GET /api/items/{id}/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	infos, err := h.archives.Archives(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.Uint64("item_id", uint64(id)),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list archives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": id, "archives": infos})
}

// GetArchive returns the records archived for an item on one day.
// GET /api/items/{id}/archives/{day}   (day is YYYY-MM-DD)
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	id, err := itemIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	day, err := time.Parse(time.DateOnly, r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	records, err := h.archives.Load(r.Context(), id, day)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: load archive failed",
				slog.Uint64("item_id", uint64(id)),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to load archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": id, "day": day.Format(time.DateOnly), "records": records})
}
