package tasks

import (
	"context"

	"feedsink/app/database"
	"feedsink/app/feed"
)

// IngesterInterface is the slice of the ingestion core the tasks need.
type IngesterInterface interface {
	Run(ctx context.Context, f database.Feed) (*feed.IngestResult, error)
}

var _ IngesterInterface = (*feed.Ingester)(nil)

// TaskSchedulerInterface defines the interface for task scheduling
// operations: queue management, worker pool control, and enqueueing.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
