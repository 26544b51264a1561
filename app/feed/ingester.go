package feed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"feedsink/app/database"
)

// Ingester reconciles a feed's current source document against its stored
// entries. It holds no state of its own and is safe to invoke concurrently
// for different feeds; for the same feed, the store's (feed, title)
// uniqueness guarantees no duplicate entries.
type Ingester struct {
	fetcher   SourceFetcher
	feedRepo  database.FeedRepository
	entryRepo database.EntryRepository
}

func NewIngester(fetcher SourceFetcher, feedRepo database.FeedRepository,
	entryRepo database.EntryRepository) *Ingester {
	return &Ingester{
		fetcher:   fetcher,
		feedRepo:  feedRepo,
		entryRepo: entryRepo,
	}
}

// Run fetches the feed's source document, updates the feed title when the
// channel supplies a new one, and creates entries for titles not seen
// before. Repeat runs against an unchanged document create nothing. A fetch,
// parse, or validity failure leaves the feed and its entries untouched.
func (ing *Ingester) Run(ctx context.Context, f database.Feed) (*IngestResult, error) {
	doc, err := ing.fetcher.Fetch(ctx, f.FeedURL)
	if err != nil {
		return nil, err
	}

	channelTitle := strings.TrimSpace(doc.Title)

	if doc.Degraded {
		return nil, &InvalidFeedError{URL: f.FeedURL, Reason: "source signaled malformed content"}
	}
	if len(doc.Entries) == 0 && channelTitle == "" {
		return nil, &InvalidFeedError{URL: f.FeedURL, Reason: "document has no entries and no channel title"}
	}

	result := &IngestResult{FeedTitle: f.Title}

	if channelTitle != "" && channelTitle != f.Title {
		if err := ing.feedRepo.UpdateTitle(ctx, f.ID, channelTitle); err != nil {
			return nil, &StoreError{Op: "update feed title", Err: err}
		}
		result.FeedTitle = channelTitle
	}

	for _, src := range doc.Entries {
		title := strings.TrimSpace(src.Title)
		if title == "" {
			result.SkippedEmptyTitle++
			continue
		}

		entry := database.NewEntry{
			Title:       title,
			Summary:     strings.TrimSpace(src.Summary),
			Link:        strings.TrimSpace(src.Link),
			PublishedAt: entryTimestamp(src),
		}
		if len(src.Thumbnails) > 0 {
			entry.ImageURL = src.Thumbnails[0].URL
		}

		created, err := ing.entryRepo.CreateIfAbsent(ctx, f.ID, entry)
		if err != nil {
			return nil, &StoreError{Op: "create entry", Err: err}
		}

		if created {
			result.Created++
		} else {
			result.Duplicates++
		}
	}

	slog.Info("Feed ingested",
		"feed", f.ID,
		"url", f.FeedURL,
		"total", len(doc.Entries),
		"created", result.Created,
		"duplicates", result.Duplicates,
		"skipped_empty_title", result.SkippedEmptyTitle)

	return result, nil
}

// entryTimestamp prefers the published time, falls back to the updated
// time, and yields nil when the source supplies neither. The stored value
// is UTC-normalized.
func entryTimestamp(src SourceEntry) *time.Time {
	ts := src.Published
	if ts == nil {
		ts = src.Updated
	}
	if ts == nil {
		return nil
	}

	utc := ts.UTC()
	return &utc
}
