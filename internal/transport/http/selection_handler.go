package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"deskops/internal/bulk"
	apierrors "deskops/internal/errors"
	"deskops/internal/items"
	"deskops/internal/selection"
)

// SelectionHandler manages the per-item-type selection sets.
type SelectionHandler struct {
	registry *selection.Registry
	items    *items.Service
	logger   *slog.Logger
}

// NewSelectionHandler creates a selection handler.
func NewSelectionHandler(registry *selection.Registry, service *items.Service, logger *slog.Logger) *SelectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelectionHandler{
		registry: registry,
		items:    service,
		logger:   logger.With(slog.String("handler", "selection")),
	}
}

// SelectRequest is the body of selection mutations.
type SelectRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// Bind implements render.Binder.
func (r *SelectRequest) Bind(req *http.Request) error {
	return validate.Struct(r)
}

// itemType extracts and validates the {itemType} route parameter.
func (h *SelectionHandler) itemType(r *http.Request) (bulk.ItemType, *apierrors.APIError) {
	itemType := bulk.ItemType(chi.URLParam(r, "itemType"))
	if !bulk.IsValidItemType(itemType) {
		return "", apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST",
			"unknown item type", string(itemType))
	}
	return itemType, nil
}

// state is the selection snapshot returned by every mutation.
func (h *SelectionHandler) state(itemType bulk.ItemType) map[string]any {
	allIDs := h.items.IDs(itemType)
	return map[string]any{
		"item_type": itemType,
		"ids":       h.registry.SelectedIDs(string(itemType)),
		"count":     h.registry.Count(string(itemType)),
		"mode":      h.registry.Mode(string(itemType), allIDs),
	}
}

// Get handles GET /api/selection/{itemType}.
func (h *SelectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemType, apiErr := h.itemType(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}
	render.JSON(w, r, h.state(itemType))
}

// Select handles POST /api/selection/{itemType}/select.
func (h *SelectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(itemType bulk.ItemType, ids []string) {
		for _, id := range ids {
			h.registry.Select(string(itemType), id)
		}
	})
}

// Deselect handles POST /api/selection/{itemType}/deselect.
func (h *SelectionHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(itemType bulk.ItemType, ids []string) {
		for _, id := range ids {
			h.registry.Deselect(string(itemType), id)
		}
	})
}

// Toggle handles POST /api/selection/{itemType}/toggle.
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(itemType bulk.ItemType, ids []string) {
		for _, id := range ids {
			h.registry.Toggle(string(itemType), id)
		}
	})
}

// mutate binds the request, applies fn, and returns the new selection state.
func (h *SelectionHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(bulk.ItemType, []string)) {
	itemType, apiErr := h.itemType(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}

	data := &SelectRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	fn(itemType, data.IDs)
	render.JSON(w, r, h.state(itemType))
}

// SelectAll handles POST /api/selection/{itemType}/all, selecting every
// known item of the type.
func (h *SelectionHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	itemType, apiErr := h.itemType(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}

	h.registry.SelectAll(string(itemType), h.items.IDs(itemType))
	render.JSON(w, r, h.state(itemType))
}

// Clear handles DELETE /api/selection/{itemType}.
func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	itemType, apiErr := h.itemType(r)
	if apiErr != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apiErr))
		return
	}

	h.registry.Clear(string(itemType))
	render.JSON(w, r, h.state(itemType))
}
