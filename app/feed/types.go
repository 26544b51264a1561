package feed

import (
	"time"
)

// Document is a fetched source feed after normalization by a SourceFetcher.
// Optional fields are explicit: an empty string means the source carried no
// value, a nil time means no timestamp was supplied.
type Document struct {
	Title string

	// Degraded is the fetcher's parse-quality signal: the document was
	// interpretable but the fetcher encountered malformed content.
	Degraded bool

	Entries []SourceEntry
}

type SourceEntry struct {
	Title      string
	Summary    string
	Link       string
	Published  *time.Time
	Updated    *time.Time
	Thumbnails []Thumbnail
}

type Thumbnail struct {
	URL string
}

// IngestResult summarizes a single ingestion run.
type IngestResult struct {
	Created           int    `json:"created"`
	Duplicates        int    `json:"duplicates"`
	SkippedEmptyTitle int    `json:"skipped_empty_title"`
	FeedTitle         string `json:"feed_title"`
}
