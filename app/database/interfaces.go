package database

import (
	"context"
	"time"
)

// NewEntry carries the fields of an entry at creation time. Entries are
// create-only: a repeat sighting of the same (feed, title) never updates
// the stored record.
type NewEntry struct {
	Title       string
	Summary     string
	Link        string
	ImageURL    string
	PublishedAt *time.Time
}

type FeedRepository interface {
	Create(ctx context.Context, userID, feedURL string) (*Feed, error)
	Get(ctx context.Context, id string) (*Feed, error)
	GetByUserAndURL(ctx context.Context, userID, feedURL string) (*Feed, error)
	ListByUser(ctx context.Context, userID string) ([]Feed, error)

	UpdateTitle(ctx context.Context, id, title string) error
	MarkFetched(ctx context.Context, id string, nextFetchAt time.Time) error
	Delete(ctx context.Context, id string) (bool, error)

	GetDueForRefresh(ctx context.Context, limit int) ([]Feed, error)
	Count(ctx context.Context) (int, error)
}

type EntryRepository interface {
	// CreateIfAbsent inserts the entry unless one with the same
	// (feed, title) already exists. Reports whether a row was created.
	CreateIfAbsent(ctx context.Context, feedID string, entry NewEntry) (bool, error)

	GetByTitle(ctx context.Context, feedID, title string) (*Entry, error)
	ListByFeed(ctx context.Context, feedID string, limit, offset int) ([]Entry, error)
	CountByFeed(ctx context.Context, feedID string) (int, error)
	Count(ctx context.Context) (int, error)
}
