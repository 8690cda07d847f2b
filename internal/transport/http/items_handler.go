package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"deskops/internal/bulk"
	apierrors "deskops/internal/errors"
	"deskops/internal/items"
)

// ItemsHandler serves the item inventory the bulk actions operate on.
type ItemsHandler struct {
	items  *items.Service
	logger *slog.Logger
}

// NewItemsHandler creates an items handler.
func NewItemsHandler(service *items.Service, logger *slog.Logger) *ItemsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemsHandler{
		items:  service,
		logger: logger.With(slog.String("handler", "items")),
	}
}

// List handles GET /api/items/{itemType}.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	itemType := bulk.ItemType(chi.URLParam(r, "itemType"))
	if !bulk.IsValidItemType(itemType) {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST",
				"unknown item type", string(itemType))))
		return
	}

	list := h.items.List(itemType)
	render.JSON(w, r, map[string]any{
		"item_type": itemType,
		"items":     list,
		"count":     len(list),
	})
}

// Get handles GET /api/items/{itemType}/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemType := bulk.ItemType(chi.URLParam(r, "itemType"))
	if !bulk.IsValidItemType(itemType) {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST",
				"unknown item type", string(itemType))))
		return
	}

	id := chi.URLParam(r, "id")
	item, ok := h.items.Get(itemType, id)
	if !ok {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrNotFound))
		return
	}
	render.JSON(w, r, item)
}
