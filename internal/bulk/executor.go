package bulk

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor drives one operation through ordered chunks of work, invoking the
// caller-supplied handler per chunk. Handler failures are absorbed into
// per-item results; one failing chunk never stops remaining chunks from
// being attempted.
type Executor struct {
	scheduler Scheduler
	logger    *slog.Logger
}

// NewExecutor creates an executor using the given scheduler for inter-batch
// delays.
func NewExecutor(scheduler Scheduler, logger *slog.Logger) *Executor {
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "bulk.executor")),
	}
}

// Execute partitions the operation's ids into consecutive chunks, preserving
// original order, and runs the handler chunk by chunk. After each chunk it
// updates progress, notifies the observer, and honors the cooperative
// cancellation flag before attempting the next chunk. The operation always
// reaches a terminal status; Execute never returns a handler error.
func (e *Executor) Execute(ctx context.Context, op *Operation, handler Handler, opts ExecuteOptions, observer func(*Operation)) {
	opts = opts.withDefaults()
	notify := func() {
		if observer != nil {
			observer(op)
		}
	}

	// Empty selection short-circuits to an immediate zero-total completion.
	if op.TotalItems == 0 {
		if err := op.Complete(); err != nil {
			e.logger.WarnContext(ctx, "empty_operation_complete_failed",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()))
		}
		notify()
		return
	}

	if handler == nil {
		// Handler contract violated: the operation itself cannot proceed.
		if err := op.Fail(NewValidationError("no handler registered for operation")); err != nil {
			e.logger.WarnContext(ctx, "operation_fail_transition_failed",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()))
		}
		notify()
		return
	}

	chunks := Chunk(op.ItemIDs, opts.BatchSize)
	e.logger.InfoContext(ctx, "execution_start",
		slog.String("operation_id", op.ID),
		slog.String("action_type", string(op.ActionType)),
		slog.String("item_type", string(op.ItemType)),
		slog.Int("total_items", op.TotalItems),
		slog.Int("chunk_count", len(chunks)))

	for i, chunk := range chunks {
		results := e.runChunk(ctx, op.ID, handler, chunk)

		succeeded, failed := 0, 0
		for _, res := range results {
			if res.Success {
				succeeded++
			} else {
				failed++
			}
		}

		if err := op.AppendResults(results); err != nil {
			e.logger.ErrorContext(ctx, "append_results_failed",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()))
			return
		}
		if err := op.UpdateProgress(len(results), failed); err != nil {
			e.logger.ErrorContext(ctx, "update_progress_failed",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()))
			return
		}
		notify()

		e.logger.DebugContext(ctx, "chunk_processed",
			slog.String("operation_id", op.ID),
			slog.Int("chunk_index", i),
			slog.Int("chunk_size", len(chunk)),
			slog.Int("succeeded", succeeded),
			slog.Int("failed", failed))

		// Cancellation checkpoint: the in-flight chunk above ran to
		// completion and its results are recorded; only further chunks
		// are skipped. Unattempted ids are excluded from results, not
		// marked failed.
		if op.CancelRequested() || ctx.Err() != nil {
			if err := op.MarkCancelled(); err != nil {
				e.logger.WarnContext(ctx, "cancel_transition_failed",
					slog.String("operation_id", op.ID),
					slog.String("error", err.Error()))
			}
			e.logger.InfoContext(ctx, "execution_cancelled",
				slog.String("operation_id", op.ID),
				slog.Int("processed_items", op.Clone().ProcessedItems))
			notify()
			return
		}

		if i < len(chunks)-1 {
			if err := e.scheduler.Sleep(ctx, opts.InterBatchDelay); err != nil {
				// Context cancelled during the delay; treat as a
				// cancellation checkpoint.
				if markErr := op.MarkCancelled(); markErr != nil {
					e.logger.WarnContext(ctx, "cancel_transition_failed",
						slog.String("operation_id", op.ID),
						slog.String("error", markErr.Error()))
				}
				notify()
				return
			}
		}
	}

	if err := op.Complete(); err != nil {
		e.logger.WarnContext(ctx, "complete_transition_failed",
			slog.String("operation_id", op.ID),
			slog.String("error", err.Error()))
	}

	final := op.Clone()
	e.logger.InfoContext(ctx, "execution_complete",
		slog.String("operation_id", op.ID),
		slog.Int("processed_items", final.ProcessedItems),
		slog.Int("failed_items", final.FailedItems),
		slog.Bool("can_undo", final.CanUndo))
	notify()
}

// runChunk invokes the handler for one chunk and normalizes its outcome into
// a complete per-item result list. A handler error or panic becomes a
// synthesized failure result for every id in the chunk.
func (e *Executor) runChunk(ctx context.Context, operationID string, handler Handler, chunk []string) (results []ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "handler_panic",
				slog.String("operation_id", operationID),
				slog.Any("panic", r))
			results = failChunk(chunk, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	returned, err := handler(ctx, chunk)
	if err != nil {
		return failChunk(chunk, err.Error())
	}

	// A bare success with no structure means the whole chunk succeeded.
	if returned == nil {
		results = make([]ItemResult, 0, len(chunk))
		for _, id := range chunk {
			results = append(results, ItemResult{ItemID: id, Success: true})
		}
		return results
	}

	// Use the structured outcomes verbatim, but never silently drop an item:
	// ids the handler omitted are recorded as succeeded.
	seen := make(map[string]bool, len(returned))
	results = make([]ItemResult, 0, len(chunk))
	for _, res := range returned {
		seen[res.ItemID] = true
		results = append(results, res)
	}
	for _, id := range chunk {
		if !seen[id] {
			results = append(results, ItemResult{ItemID: id, Success: true})
		}
	}
	return results
}

// failChunk synthesizes a failure result for every id in the chunk.
func failChunk(chunk []string, message string) []ItemResult {
	results := make([]ItemResult, 0, len(chunk))
	for _, id := range chunk {
		results = append(results, ItemResult{ItemID: id, Success: false, Error: message})
	}
	return results
}

// Chunk partitions ids into consecutive slices of at most size elements,
// preserving original order. The last chunk may be smaller.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
