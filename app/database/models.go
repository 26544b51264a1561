package database

import (
	"time"
)

type Feed struct {
	ID            string // Database UUID
	UserID        string // Owning user reference (the user entity itself is external)
	FeedURL       string // RSS/Atom source URL
	Title         string // Populated from the source document on first successful ingestion
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Entry struct {
	ID          string
	FeedID      string
	Title       string
	Summary     string
	Link        string
	ImageURL    string
	PublishedAt *time.Time // NULL when the source provides no timestamp
	CreatedAt   time.Time
}
