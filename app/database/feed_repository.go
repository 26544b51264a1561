package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

type FeedRepositoryImpl struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

func (r *FeedRepositoryImpl) Create(ctx context.Context, userID, feedURL string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feeds (user_id, feed_url)
		VALUES ($1, $2)
		RETURNING id, user_id, feed_url, title, last_fetched_at, next_fetch_at, created_at, updated_at
	`, userID, feedURL).Scan(
		&feed.ID, &feed.UserID, &feed.FeedURL, &feed.Title,
		&feed.LastFetchedAt, &feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) Get(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, feed_url, title, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		WHERE id = $1
	`, id).Scan(
		&feed.ID, &feed.UserID, &feed.FeedURL, &feed.Title,
		&feed.LastFetchedAt, &feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) GetByUserAndURL(ctx context.Context, userID, feedURL string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, feed_url, title, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		WHERE user_id = $1 AND feed_url = $2
		LIMIT 1
	`, userID, feedURL).Scan(
		&feed.ID, &feed.UserID, &feed.FeedURL, &feed.Title,
		&feed.LastFetchedAt, &feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by user and URL: %w", err)
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, feed_url, title, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

func (r *FeedRepositoryImpl) UpdateTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = $2, updated_at = NOW()
		WHERE id = $1
	`, id, title)

	if err != nil {
		return fmt.Errorf("failed to update feed title: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) MarkFetched(ctx context.Context, id string, nextFetchAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_fetched_at = NOW(), next_fetch_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, nextFetchAt)

	if err != nil {
		return fmt.Errorf("failed to mark feed fetched: %w", err)
	}

	return nil
}

// Delete removes a feed; its entries go with it via ON DELETE CASCADE.
func (r *FeedRepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete feed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

func (r *FeedRepositoryImpl) GetDueForRefresh(ctx context.Context, limit int) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, feed_url, title, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		WHERE next_fetch_at IS NULL OR next_fetch_at <= NOW()
		ORDER BY COALESCE(next_fetch_at, '1970-01-01'::timestamptz)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds due for refresh: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

func (r *FeedRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func scanFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.UserID, &feed.FeedURL, &feed.Title,
			&feed.LastFetchedAt, &feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}
