package api

import (
	"context"
	"time"

	"feedsink/app/database"
	"feedsink/app/feed"
)

type IngesterInterface interface {
	Run(ctx context.Context, f database.Feed) (*feed.IngestResult, error)
}

var _ IngesterInterface = (*feed.Ingester)(nil)

type GeneratorInterface interface {
	Run(f database.Feed, entries []database.Entry) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	feedRepo  database.FeedRepository
	entryRepo database.EntryRepository
	ingester  IngesterInterface
	generator GeneratorInterface
}

type createFeedRequest struct {
	URL string `json:"url" binding:"required"`
}

type feedResponse struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	EntryCount    int        `json:"entry_count"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type entryResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Link        string     `json:"link,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
