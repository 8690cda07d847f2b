package http

import (
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"deskops/internal/bulk"
	apierrors "deskops/internal/errors"
)

// validate is the shared request validator. JSON tag names show up in
// validation error messages instead of Go field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// OperationsHandler handles bulk operation HTTP requests.
type OperationsHandler struct {
	engine *bulk.Engine
	logger *slog.Logger
}

// NewOperationsHandler creates an operations handler.
func NewOperationsHandler(engine *bulk.Engine, logger *slog.Logger) *OperationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		engine: engine,
		logger: logger.With(slog.String("handler", "operations")),
	}
}

// StartRequest is the body of POST /api/operations.
type StartRequest struct {
	Action   string `json:"action" validate:"required"`
	ItemType string `json:"item_type" validate:"required"`
}

// Bind implements render.Binder.
func (r *StartRequest) Bind(req *http.Request) error {
	return validate.Struct(r)
}

// StartResponse acknowledges an accepted operation.
type StartResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
}

// Start handles POST /api/operations. The operation runs asynchronously;
// progress is pushed over the websocket feed.
func (h *OperationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &StartRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	operationID, err := h.engine.Start(ctx, bulk.ActionType(data.Action), bulk.ItemType(data.ItemType))
	if err != nil {
		h.logger.WarnContext(ctx, "operation_rejected",
			slog.String("action", data.Action),
			slog.String("item_type", data.ItemType),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromEngine(err)))
		return
	}

	h.logger.InfoContext(ctx, "operation_accepted",
		slog.String("operation_id", operationID),
		slog.String("action", data.Action),
		slog.String("item_type", data.ItemType))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, StartResponse{OperationID: operationID, Status: "accepted"})
}

// Get handles GET /api/operations/{id}.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	operationID := chi.URLParam(r, "id")

	op, err := h.engine.Get(operationID)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromEngine(err)))
		return
	}
	render.JSON(w, r, op)
}

// List handles GET /api/operations.
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ops := h.engine.List()
	render.JSON(w, r, map[string]any{
		"operations": ops,
		"count":      len(ops),
	})
}

// Cancel handles POST /api/operations/{id}/cancel. Cancellation is
// cooperative; the operation stops at the next batch boundary.
func (h *OperationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operationID := chi.URLParam(r, "id")

	if err := h.engine.Cancel(ctx, operationID); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromEngine(err)))
		return
	}

	h.logger.InfoContext(ctx, "operation_cancel_requested",
		slog.String("operation_id", operationID))
	render.JSON(w, r, map[string]string{
		"operation_id": operationID,
		"status":       "cancellation_requested",
	})
}

// Stats handles GET /api/operations/stats.
func (h *OperationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.engine.Stats())
}

// Actions handles GET /api/operations/actions, the catalog of available
// bulk actions with their confirmation and undo metadata.
func (h *OperationsHandler) Actions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"actions": bulk.ActionCatalog()})
}

// Undo handles POST /api/operations/undo.
func (h *OperationsHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, err := h.engine.Undo(ctx)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromEngine(err)))
		return
	}

	h.logger.InfoContext(ctx, "operation_undone",
		slog.String("undo_id", action.ID),
		slog.String("action", string(action.ActionType)))
	render.JSON(w, r, action)
}

// Redo handles POST /api/operations/redo.
func (h *OperationsHandler) Redo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, err := h.engine.Redo(ctx)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.FromEngine(err)))
		return
	}

	h.logger.InfoContext(ctx, "operation_redone",
		slog.String("undo_id", action.ID),
		slog.String("action", string(action.ActionType)))
	render.JSON(w, r, action)
}

// UndoHistory handles GET /api/operations/undo/history?limit=N.
func (h *OperationsHandler) UndoHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a non-negative integer", raw)))
			return
		}
		limit = parsed
	}

	history := h.engine.UndoStack().RecentUndoHistory(limit)
	render.JSON(w, r, map[string]any{
		"history": history,
		"count":   len(history),
	})
}
