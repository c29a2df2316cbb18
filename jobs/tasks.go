// Package jobs runs background work over Asynq: the periodic reorder
// sweep, projection cache warming and retention cleanup.
package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderSweep re-evaluates the whole catalog against reorder points.
	TaskReorderSweep = "reorder:sweep"
	// TaskOrderDispatch moves created orders into transit.
	TaskOrderDispatch = "orders:dispatch"
	// TaskProjectionRefresh rebuilds the cached dashboard projections.
	TaskProjectionRefresh = "projection:refresh"
	// TaskRetentionCleanup prunes expired idempotency keys.
	TaskRetentionCleanup = "retention:cleanup"
)

// NewReorderSweepTask constructs the sweep task. The sweep carries no
// payload; it always covers the full catalog.
func NewReorderSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReorderSweep, nil)
}

// NewOrderDispatchTask constructs the order dispatch task.
func NewOrderDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskOrderDispatch, nil)
}

// NewProjectionRefreshTask constructs the projection warmup task.
func NewProjectionRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskProjectionRefresh, nil)
}

// NewRetentionCleanupTask constructs the retention cleanup task.
func NewRetentionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskRetentionCleanup, nil)
}
