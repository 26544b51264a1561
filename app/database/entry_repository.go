package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ EntryRepository = (*EntryRepositoryImpl)(nil)

type EntryRepositoryImpl struct {
	db *DB
}

func NewEntryRepository(db *DB) *EntryRepositoryImpl {
	return &EntryRepositoryImpl{db: db}
}

// CreateIfAbsent relies on the UNIQUE (feed_id, title) constraint: the
// insert is ignored when the pair already exists, so the look-up-then-create
// sequence is atomic even under concurrent ingestions of the same feed.
func (r *EntryRepositoryImpl) CreateIfAbsent(ctx context.Context, feedID string, entry NewEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (feed_id, title, summary, link, image_url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (feed_id, title) DO NOTHING
	`, feedID, entry.Title, entry.Summary, entry.Link, entry.ImageURL, entry.PublishedAt)

	if err != nil {
		return false, fmt.Errorf("failed to create entry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

func (r *EntryRepositoryImpl) GetByTitle(ctx context.Context, feedID, title string) (*Entry, error) {
	var entry Entry
	err := r.db.QueryRowContext(ctx, `
		SELECT id, feed_id, title, summary, link, image_url, published_at, created_at
		FROM entries
		WHERE feed_id = $1 AND title = $2
	`, feedID, title).Scan(
		&entry.ID, &entry.FeedID, &entry.Title, &entry.Summary,
		&entry.Link, &entry.ImageURL, &entry.PublishedAt, &entry.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry by title: %w", err)
	}

	return &entry, nil
}

func (r *EntryRepositoryImpl) ListByFeed(ctx context.Context, feedID string, limit, offset int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, feed_id, title, summary, link, image_url, published_at, created_at
		FROM entries
		WHERE feed_id = $1
		ORDER BY published_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3
	`, feedID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.ID, &entry.FeedID, &entry.Title, &entry.Summary,
			&entry.Link, &entry.ImageURL, &entry.PublishedAt, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

func (r *EntryRepositoryImpl) CountByFeed(ctx context.Context, feedID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE feed_id = $1`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}

func (r *EntryRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total entry count: %w", err)
	}
	return count, nil
}
