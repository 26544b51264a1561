package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// SourceFetcher turns a feed URL into a normalized source document.
// Implementations report transport failures as *FetchError and
// uninterpretable documents as *ParseError.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

var _ SourceFetcher = (*Fetcher)(nil)

// Fetcher retrieves feeds over HTTP and parses them with gofeed.
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	doc := &Document{
		Title:   parsed.Title,
		Entries: make([]SourceEntry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		doc.Entries = append(doc.Entries, normalizeItem(item))
	}

	return doc, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func normalizeItem(item *gofeed.Item) SourceEntry {
	entry := SourceEntry{
		Title:   item.Title,
		Summary: item.Description,
		Link:    item.Link,
	}

	if item.PublishedParsed != nil {
		entry.Published = item.PublishedParsed
	}

	if item.UpdatedParsed != nil {
		entry.Updated = item.UpdatedParsed
	}

	entry.Thumbnails = extractThumbnails(item)

	return entry
}

// extractThumbnails collects media:thumbnail elements in document order.
// gofeed surfaces Media RSS under the "media" extension namespace; the item
// image is kept as a fallback for feeds that express artwork that way.
func extractThumbnails(item *gofeed.Item) []Thumbnail {
	var thumbnails []Thumbnail

	if media, ok := item.Extensions["media"]; ok {
		for _, th := range media["thumbnail"] {
			if url := th.Attrs["url"]; url != "" {
				thumbnails = append(thumbnails, Thumbnail{URL: url})
			}
		}
	}

	if len(thumbnails) == 0 && item.Image != nil && item.Image.URL != "" {
		thumbnails = append(thumbnails, Thumbnail{URL: item.Image.URL})
	}

	return thumbnails
}
