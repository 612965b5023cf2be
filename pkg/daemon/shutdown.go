package daemon

// Shutdown priorities of background workers; lower values stop last.
const (
	PriorityCloseDatabase = iota
	PriorityFlushToDatabase
	PriorityMetricsUpdater
	PriorityPrometheus
	PriorityNodeScript
)
