package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedsink/app/database"
)

type RefreshFeedTask struct {
	Task
	Feed            database.Feed
	ingester        IngesterInterface
	feedRepo        database.FeedRepository
	refreshInterval time.Duration
}

func NewRefreshFeedTask(f database.Feed, ingester IngesterInterface,
	feedRepo database.FeedRepository, refreshInterval time.Duration) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:            NewTask(TaskTypeRefreshFeed, f.ID),
		Feed:            f,
		ingester:        ingester,
		feedRepo:        feedRepo,
		refreshInterval: refreshInterval,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.ingester.Run(ctx, t.Feed)

	// Push the next fetch forward even on failure so a broken source is
	// not hammered on every scheduler tick.
	nextFetch := time.Now().UTC().Add(t.refreshInterval)
	if markErr := t.feedRepo.MarkFetched(ctx, t.Feed.ID, nextFetch); markErr != nil {
		slog.Warn("Failed to mark feed fetched", "feed", t.Feed.ID, "error", markErr)
	}

	if err != nil {
		return fmt.Errorf("failed to refresh feed: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.Feed.ID,
		"duration", t.GetDuration(),
		"created", result.Created,
		"duplicates", result.Duplicates,
		"skipped_empty_title", result.SkippedEmptyTitle)

	return nil
}
