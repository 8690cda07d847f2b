package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deskops/internal/selection"
)

// EngineOptions bounds the engine's history and batching behavior.
type EngineOptions struct {
	HistoryLimit       int
	UndoDepth          int
	PersistedUndoLimit int
	BatchSize          int
	InterBatchDelay    time.Duration
}

// withDefaults fills unset options from the package defaults.
func (o EngineOptions) withDefaults() EngineOptions {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.UndoDepth <= 0 {
		o.UndoDepth = DefaultUndoDepth
	}
	if o.PersistedUndoLimit <= 0 {
		o.PersistedUndoLimit = DefaultPersistedUndo
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = DefaultInterBatchDelay
	}
	return o
}

// Engine is the one service object owning selection state, operation
// history, and the undo stack. It is injected explicitly into transport
// code; there is no package-level instance.
type Engine struct {
	logger      *slog.Logger
	options     EngineOptions
	registry    *selection.Registry
	executor    *Executor
	undoStack   *UndoStack
	broadcaster *StatusBroadcaster
	store       HistoryStore
	telemetry   *Telemetry

	// mu guards history, inflight and handlers.
	mu       sync.Mutex
	history  []*Operation
	inflight map[ItemType]*Operation
	handlers map[ItemType]map[ActionType]Handler
}

// NewEngine wires the engine from its collaborators. Hub, store and
// telemetry may be nil (no push, no persistence, no metrics); scheduler nil
// means real timers.
func NewEngine(logger *slog.Logger, hub Hub, scheduler Scheduler, store HistoryStore, telemetry *Telemetry, opts EngineOptions) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "bulk.engine"))
	opts = opts.withDefaults()

	return &Engine{
		logger:      logger,
		options:     opts,
		registry:    selection.NewRegistry(),
		executor:    NewExecutor(scheduler, logger),
		undoStack:   NewUndoStack(opts.UndoDepth),
		broadcaster: NewStatusBroadcaster(hub, logger),
		store:       store,
		telemetry:   telemetry,
		inflight:    make(map[ItemType]*Operation),
		handlers:    make(map[ItemType]map[ActionType]Handler),
	}
}

// Selection exposes the engine-owned selection registry.
func (e *Engine) Selection() *selection.Registry {
	return e.registry
}

// Broadcaster exposes the snapshot feed for observers.
func (e *Engine) Broadcaster() *StatusBroadcaster {
	return e.broadcaster
}

// RegisterHandler installs the action handler for one item/action pair.
func (e *Engine) RegisterHandler(itemType ItemType, action ActionType, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byAction, ok := e.handlers[itemType]
	if !ok {
		byAction = make(map[ActionType]Handler)
		e.handlers[itemType] = byAction
	}
	byAction[action] = handler
}

// RegisterRollback installs the rollback handler for one undoable action
// type.
func (e *Engine) RegisterRollback(action ActionType, handler RollbackHandler) {
	e.undoStack.RegisterHandler(action, handler)
}

// Restore seeds history and undo state from the persistence boundary. Called
// once at startup, before any operation runs.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	history, err := e.store.LoadHistory()
	if err != nil {
		return fmt.Errorf("failed to load operation history: %w", err)
	}
	undoHistory, err := e.store.LoadUndoHistory()
	if err != nil {
		return fmt.Errorf("failed to load undo history: %w", err)
	}

	e.mu.Lock()
	e.history = e.history[:0]
	for _, op := range history {
		if op != nil && op.GetStatus().IsTerminal() {
			e.history = append(e.history, op)
		}
	}
	e.trimHistoryLocked()
	e.mu.Unlock()

	e.undoStack.RestoreUndoHistory(undoHistory)

	e.logger.InfoContext(ctx, "engine_state_restored",
		slog.Int("operations", len(history)),
		slog.Int("undo_entries", len(undoHistory)))
	return nil
}

// Start validates the request, creates the operation, and launches batched
// execution. It returns the operation id immediately; everything that
// happens once the operation is in progress is absorbed into its result
// data, never returned as an error.
func (e *Engine) Start(ctx context.Context, action ActionType, itemType ItemType) (string, error) {
	if !IsValidItemType(itemType) {
		return "", NewValidationError(fmt.Sprintf("unknown item type %q", itemType))
	}
	if !IsValidActionType(action) {
		return "", NewValidationError(fmt.Sprintf("unknown action type %q", action))
	}

	itemIDs := e.registry.SelectedIDs(string(itemType))
	if len(itemIDs) == 0 {
		return "", NewValidationError(fmt.Sprintf("no %s items selected", itemType))
	}

	e.mu.Lock()
	if running, ok := e.inflight[itemType]; ok {
		e.mu.Unlock()
		e.logger.WarnContext(ctx, "operation_rejected_concurrent",
			slog.String("item_type", string(itemType)),
			slog.String("running_operation_id", running.ID))
		return "", NewConcurrencyError(itemType)
	}

	handler := e.handlers[itemType][action]
	if handler == nil {
		e.mu.Unlock()
		return "", NewValidationError(fmt.Sprintf("no handler registered for %s on %s", action, itemType))
	}

	op := NewOperation(uuid.New().String(), action, itemType, itemIDs)
	e.inflight[itemType] = op
	e.history = append(e.history, op)
	e.trimHistoryLocked()
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "operation_started",
		slog.String("operation_id", op.ID),
		slog.String("action_type", string(action)),
		slog.String("item_type", string(itemType)),
		slog.Int("total_items", len(itemIDs)))

	e.broadcaster.Publish(op)

	opts := ExecuteOptions{
		BatchSize:       e.options.BatchSize,
		InterBatchDelay: e.options.InterBatchDelay,
	}

	// Execution outlives the request that started it.
	execCtx := context.WithoutCancel(ctx)
	go e.run(execCtx, op, handler, opts)

	return op.ID, nil
}

// run drives one operation to a terminal status and performs the
// post-completion bookkeeping: selection cleanup, undo capture, persistence,
// telemetry.
func (e *Engine) run(ctx context.Context, op *Operation, handler Handler, opts ExecuteOptions) {
	spanCtx, span := e.telemetry.StartOperationSpan(ctx, op)

	e.executor.Execute(spanCtx, op, handler, opts, e.broadcaster.Publish)

	e.mu.Lock()
	delete(e.inflight, op.ItemType)
	e.mu.Unlock()

	e.finishSelection(op)
	e.captureUndo(spanCtx, op)
	e.persist(spanCtx)
	e.telemetry.RecordTerminal(spanCtx, span, op)
}

// finishSelection clears satisfied selections: a clean completion empties
// the item type's selection, a partial one narrows it to the failed ids so
// the operator can retry just those. Cancelled runs also keep unattempted
// ids selected.
func (e *Engine) finishSelection(op *Operation) {
	clone := op.Clone()
	if clone.Status == StatusCompleted && clone.FailedItems == 0 {
		e.registry.Clear(string(clone.ItemType))
		return
	}

	succeeded := make(map[string]bool)
	for _, id := range clone.SucceededIDs() {
		succeeded[id] = true
	}
	keep := make([]string, 0, len(clone.ItemIDs))
	for _, id := range clone.ItemIDs {
		if !succeeded[id] {
			keep = append(keep, id)
		}
	}
	e.registry.Retain(string(clone.ItemType), keep)
}

// captureUndo records an undoable action for a completed operation that
// supports reversal, assembling the action-level payload from the per-item
// fragments the handler captured.
func (e *Engine) captureUndo(ctx context.Context, op *Operation) {
	clone := op.Clone()
	if clone.Status != StatusCompleted || !clone.CanUndo {
		return
	}

	payload := BuildRollbackPayload(clone.ActionType, clone.Results)
	if payload == nil {
		e.logger.WarnContext(ctx, "undo_capture_skipped_no_payload",
			slog.String("operation_id", clone.ID),
			slog.String("action_type", string(clone.ActionType)))
		return
	}

	action := UndoableAction{
		ID:          uuid.New().String(),
		ActionType:  clone.ActionType,
		ItemType:    clone.ItemType,
		Timestamp:   time.Now(),
		Description: describeAction(clone),
		ItemIDs:     op.SucceededIDs(),
		Payload:     *payload,
		CanUndo:     true,
	}

	if err := e.undoStack.Push(action); err != nil {
		e.logger.ErrorContext(ctx, "undo_push_failed",
			slog.String("operation_id", clone.ID),
			slog.String("error", err.Error()))
		return
	}

	e.logger.InfoContext(ctx, "undo_action_recorded",
		slog.String("operation_id", clone.ID),
		slog.String("undo_action_id", action.ID),
		slog.Int("item_count", len(action.ItemIDs)))
}

// Cancel requests cooperative cancellation of the in-flight operation with
// the given id. The transition happens at the executor's next inter-batch
// checkpoint.
func (e *Engine) Cancel(ctx context.Context, operationID string) error {
	e.mu.Lock()
	var op *Operation
	for _, running := range e.inflight {
		if running.ID == operationID {
			op = running
			break
		}
	}
	e.mu.Unlock()

	if op == nil {
		return NewNotFoundError(operationID)
	}
	if err := op.RequestCancel(); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "operation_cancel_requested",
		slog.String("operation_id", operationID))
	return nil
}

// Get returns a snapshot of one operation.
func (e *Engine) Get(operationID string) (*Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, op := range e.history {
		if op.ID == operationID {
			return op.Clone(), nil
		}
	}
	return nil, NewNotFoundError(operationID)
}

// List returns snapshots of the retained history, newest first.
func (e *Engine) List() []*Operation {
	e.mu.Lock()
	defer e.mu.Unlock()

	operations := make([]*Operation, 0, len(e.history))
	for i := len(e.history) - 1; i >= 0; i-- {
		operations = append(operations, e.history[i].Clone())
	}
	return operations
}

// Stats recomputes the statistics read-model over terminal history.
func (e *Engine) Stats() Statistics {
	e.mu.Lock()
	history := make([]*Operation, 0, len(e.history))
	for _, op := range e.history {
		history = append(history, op.Clone())
	}
	e.mu.Unlock()

	return ComputeStatistics(history)
}

// Undo reverses the most recent undoable action.
func (e *Engine) Undo(ctx context.Context) (*UndoableAction, error) {
	action, err := e.undoStack.Undo(ctx)
	if err != nil {
		return nil, err
	}

	e.telemetry.RecordUndo(ctx, "undo", action.ActionType)
	e.persist(ctx)
	e.logger.InfoContext(ctx, "action_undone",
		slog.String("undo_action_id", action.ID),
		slog.String("action_type", string(action.ActionType)))
	return action, nil
}

// Redo re-applies the most recently undone action.
func (e *Engine) Redo(ctx context.Context) (*UndoableAction, error) {
	action, err := e.undoStack.Redo(ctx)
	if err != nil {
		return nil, err
	}

	e.telemetry.RecordUndo(ctx, "redo", action.ActionType)
	e.persist(ctx)
	e.logger.InfoContext(ctx, "action_redone",
		slog.String("undo_action_id", action.ID),
		slog.String("action_type", string(action.ActionType)))
	return action, nil
}

// UndoStack exposes undo/redo depths for the transport layer.
func (e *Engine) UndoStack() *UndoStack {
	return e.undoStack
}

// persist mirrors the bounded terminal history and recent undo slice to the
// store.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}

	e.mu.Lock()
	terminal := make([]*Operation, 0, len(e.history))
	for _, op := range e.history {
		if op.GetStatus().IsTerminal() {
			terminal = append(terminal, op.Clone())
		}
	}
	e.mu.Unlock()

	if err := e.store.SaveHistory(terminal); err != nil {
		e.logger.ErrorContext(ctx, "history_persist_failed",
			slog.String("error", err.Error()))
	}
	if err := e.store.SaveUndoHistory(e.undoStack.RecentUndoHistory(e.options.PersistedUndoLimit)); err != nil {
		e.logger.ErrorContext(ctx, "undo_persist_failed",
			slog.String("error", err.Error()))
	}
}

// trimHistoryLocked enforces the in-memory retention bound, evicting the
// oldest terminal operations first. In-flight operations are never evicted.
// Caller must hold mu.
func (e *Engine) trimHistoryLocked() {
	if len(e.history) <= e.options.HistoryLimit {
		return
	}

	excess := len(e.history) - e.options.HistoryLimit
	kept := make([]*Operation, 0, e.options.HistoryLimit)
	for _, op := range e.history {
		if excess > 0 && op.GetStatus().IsTerminal() {
			e.broadcaster.Remove(op.ID)
			excess--
			continue
		}
		kept = append(kept, op)
	}
	e.history = kept
}

// describeAction builds the human-readable undo description.
func describeAction(op *Operation) string {
	succeeded := op.TotalItems - op.FailedItems
	noun := string(op.ItemType)
	if succeeded != 1 {
		noun += "s"
	}
	verb := strings.ReplaceAll(string(op.ActionType), "_", " ")
	return fmt.Sprintf("%s %d %s", verb, succeeded, noun)
}
