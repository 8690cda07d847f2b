package bulk

import (
	"sort"
	"time"
)

// Statistics is the derived read-model over terminal operation history.
// It is recomputed on demand rather than incrementally maintained, so it
// cannot drift from the history it is derived from.
type Statistics struct {
	TotalOperations      int           `json:"total_operations"`
	SuccessfulOperations int           `json:"successful_operations"`
	FailedOperations     int           `json:"failed_operations"`
	PartialOperations    int           `json:"partial_operations"`
	TotalItemsProcessed  int           `json:"total_items_processed"`
	AverageDuration      time.Duration `json:"average_duration"`
	MostUsedAction       ActionType    `json:"most_used_action,omitempty"`
	RecentOperations     []*Operation  `json:"recent_operations"`
}

// recentOperationsLimit bounds the most-recent slice in the read-model.
const recentOperationsLimit = 10

// ComputeStatistics aggregates the given operations. Non-terminal operations
// are ignored; the caller passes clones, so the result shares no state with
// the engine.
func ComputeStatistics(history []*Operation) Statistics {
	stats := Statistics{RecentOperations: []*Operation{}}

	actionCounts := make(map[ActionType]int)
	var durationTotal time.Duration
	var durationCount int
	var terminal []*Operation

	for _, op := range history {
		if !op.Status.IsTerminal() {
			continue
		}
		terminal = append(terminal, op)

		stats.TotalOperations++
		stats.TotalItemsProcessed += op.ProcessedItems
		actionCounts[op.ActionType]++

		switch {
		case op.Status == StatusCompleted && op.FailedItems == 0:
			stats.SuccessfulOperations++
		case op.Status == StatusCompleted:
			// Completed with failures: not a success, counted apart from
			// failed/cancelled runs.
			stats.PartialOperations++
		default:
			stats.FailedOperations++
		}

		if op.CompletedAt != nil {
			durationTotal += op.CompletedAt.Sub(op.StartedAt)
			durationCount++
		}
	}

	if durationCount > 0 {
		stats.AverageDuration = durationTotal / time.Duration(durationCount)
	}

	best := 0
	for action, count := range actionCounts {
		if count > best || (count == best && string(action) < string(stats.MostUsedAction)) {
			best = count
			stats.MostUsedAction = action
		}
	}

	sort.SliceStable(terminal, func(i, j int) bool {
		return terminal[i].StartedAt.After(terminal[j].StartedAt)
	})
	if len(terminal) > recentOperationsLimit {
		terminal = terminal[:recentOperationsLimit]
	}
	stats.RecentOperations = append(stats.RecentOperations, terminal...)

	return stats
}
