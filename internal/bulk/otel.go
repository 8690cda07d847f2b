package bulk

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName identifies engine spans.
	TracerName = "deskops.bulk"
	// MeterName identifies engine instruments.
	MeterName = "deskops.bulk"
)

// Telemetry provides OpenTelemetry instrumentation for the engine.
type Telemetry struct {
	tracer trace.Tracer

	operationsTotal   metric.Int64Counter
	itemsProcessed    metric.Int64Counter
	itemsFailed       metric.Int64Counter
	operationDuration metric.Float64Histogram
	undoTotal         metric.Int64Counter
}

// NewTelemetry creates the engine's tracer and instruments from the given
// meter.
func NewTelemetry(meter metric.Meter) (*Telemetry, error) {
	operationsTotal, err := meter.Int64Counter("bulk_operations_total",
		metric.WithDescription("Total bulk operations reaching a terminal status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}

	itemsProcessed, err := meter.Int64Counter("bulk_items_processed_total",
		metric.WithDescription("Total items processed across bulk operations"))
	if err != nil {
		return nil, fmt.Errorf("failed to create items counter: %w", err)
	}

	itemsFailed, err := meter.Int64Counter("bulk_items_failed_total",
		metric.WithDescription("Total items that failed across bulk operations"))
	if err != nil {
		return nil, fmt.Errorf("failed to create failed items counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("bulk_operation_duration_seconds",
		metric.WithDescription("Duration of bulk operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	undoTotal, err := meter.Int64Counter("bulk_undo_total",
		metric.WithDescription("Total undo/redo applications"))
	if err != nil {
		return nil, fmt.Errorf("failed to create undo counter: %w", err)
	}

	return &Telemetry{
		tracer:            otel.Tracer(TracerName),
		operationsTotal:   operationsTotal,
		itemsProcessed:    itemsProcessed,
		itemsFailed:       itemsFailed,
		operationDuration: operationDuration,
		undoTotal:         undoTotal,
	}, nil
}

// StartOperationSpan opens a span covering one operation's execution.
func (t *Telemetry) StartOperationSpan(ctx context.Context, op *Operation) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, fmt.Sprintf("bulk.execute.%s", op.ActionType),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("bulk.operation_id", op.ID),
			attribute.String("bulk.action_type", string(op.ActionType)),
			attribute.String("bulk.item_type", string(op.ItemType)),
			attribute.Int("bulk.total_items", op.TotalItems),
		),
	)
}

// RecordTerminal records counters and duration once an operation reaches a
// terminal status, and closes its span.
func (t *Telemetry) RecordTerminal(ctx context.Context, span trace.Span, op *Operation) {
	if t == nil {
		return
	}

	clone := op.Clone()
	attrs := metric.WithAttributes(
		attribute.String("action_type", string(clone.ActionType)),
		attribute.String("item_type", string(clone.ItemType)),
		attribute.String("status", string(clone.Status)),
	)

	t.operationsTotal.Add(ctx, 1, attrs)
	t.itemsProcessed.Add(ctx, int64(clone.ProcessedItems), attrs)
	t.itemsFailed.Add(ctx, int64(clone.FailedItems), attrs)
	t.operationDuration.Record(ctx, clone.Duration().Seconds(), attrs)

	if span != nil {
		span.SetAttributes(
			attribute.Int("bulk.processed_items", clone.ProcessedItems),
			attribute.Int("bulk.failed_items", clone.FailedItems),
			attribute.String("bulk.status", string(clone.Status)),
		)
		if clone.Status == StatusFailed {
			span.SetStatus(codes.Error, clone.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// RecordUndo counts one undo or redo application.
func (t *Telemetry) RecordUndo(ctx context.Context, direction string, action ActionType) {
	if t == nil {
		return
	}
	t.undoTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("action_type", string(action)),
	))
}
