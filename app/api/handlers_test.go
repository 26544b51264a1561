package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"feedsink/app/cfg"
	"feedsink/app/database"
	"feedsink/app/feed"
)

func setupTestConfig() {
	// Clear os.Args to prevent config parsing from failing
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	cfg.Load()
}

type MockFeedRepository struct {
	feeds       map[string]*database.Feed
	nextID      int
	deleted     []string
	markedCalls int
}

func NewMockFeedRepository() *MockFeedRepository {
	return &MockFeedRepository{feeds: make(map[string]*database.Feed)}
}

func (m *MockFeedRepository) Create(ctx context.Context, userID, feedURL string) (*database.Feed, error) {
	m.nextID++
	f := &database.Feed{
		ID:        fmt.Sprintf("feed-%d", m.nextID),
		UserID:    userID,
		FeedURL:   feedURL,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.feeds[f.ID] = f
	return f, nil
}

func (m *MockFeedRepository) Get(ctx context.Context, id string) (*database.Feed, error) {
	return m.feeds[id], nil
}

func (m *MockFeedRepository) GetByUserAndURL(ctx context.Context, userID, feedURL string) (*database.Feed, error) {
	for _, f := range m.feeds {
		if f.UserID == userID && f.FeedURL == feedURL {
			return f, nil
		}
	}
	return nil, nil
}

func (m *MockFeedRepository) ListByUser(ctx context.Context, userID string) ([]database.Feed, error) {
	var result []database.Feed
	for _, f := range m.feeds {
		if f.UserID == userID {
			result = append(result, *f)
		}
	}
	return result, nil
}

func (m *MockFeedRepository) UpdateTitle(ctx context.Context, id, title string) error {
	if f, ok := m.feeds[id]; ok {
		f.Title = title
	}
	return nil
}

func (m *MockFeedRepository) MarkFetched(ctx context.Context, id string, nextFetchAt time.Time) error {
	m.markedCalls++
	return nil
}

func (m *MockFeedRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.feeds[id]; !ok {
		return false, nil
	}
	delete(m.feeds, id)
	m.deleted = append(m.deleted, id)
	return true, nil
}

func (m *MockFeedRepository) GetDueForRefresh(ctx context.Context, limit int) ([]database.Feed, error) {
	return nil, nil
}

func (m *MockFeedRepository) Count(ctx context.Context) (int, error) {
	return len(m.feeds), nil
}

type MockEntryRepository struct {
	entries map[string][]database.Entry
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{entries: make(map[string][]database.Entry)}
}

func (m *MockEntryRepository) CreateIfAbsent(ctx context.Context, feedID string, entry database.NewEntry) (bool, error) {
	for _, e := range m.entries[feedID] {
		if e.Title == entry.Title {
			return false, nil
		}
	}
	m.entries[feedID] = append(m.entries[feedID], database.Entry{
		ID:          fmt.Sprintf("entry-%d", len(m.entries[feedID])+1),
		FeedID:      feedID,
		Title:       entry.Title,
		Summary:     entry.Summary,
		Link:        entry.Link,
		ImageURL:    entry.ImageURL,
		PublishedAt: entry.PublishedAt,
		CreatedAt:   time.Now().UTC(),
	})
	return true, nil
}

func (m *MockEntryRepository) GetByTitle(ctx context.Context, feedID, title string) (*database.Entry, error) {
	for _, e := range m.entries[feedID] {
		if e.Title == title {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MockEntryRepository) ListByFeed(ctx context.Context, feedID string, limit, offset int) ([]database.Entry, error) {
	all := m.entries[feedID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MockEntryRepository) CountByFeed(ctx context.Context, feedID string) (int, error) {
	return len(m.entries[feedID]), nil
}

func (m *MockEntryRepository) Count(ctx context.Context) (int, error) {
	total := 0
	for _, entries := range m.entries {
		total += len(entries)
	}
	return total, nil
}

type MockIngester struct {
	result *feed.IngestResult
	err    error
	runs   int
}

func (m *MockIngester) Run(ctx context.Context, f database.Feed) (*feed.IngestResult, error) {
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func setupTestServer(feedRepo *MockFeedRepository, entryRepo *MockEntryRepository,
	ingester *MockIngester, apiAccessKey string) http.Handler {
	setupTestConfig()
	handler := NewHandler(feedRepo, entryRepo, ingester)
	return NewServer(handler, apiAccessKey)
}

func doRequest(t *testing.T, server http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestCreateFeed(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	ingester := &MockIngester{result: &feed.IngestResult{Created: 5, FeedTitle: "Example Feed"}}
	server := setupTestServer(feedRepo, entryRepo, ingester, "")

	w := doRequest(t, server, "POST", "/api/feeds", "user-1", `{"url": "https://example.com/feed.xml"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Feed   feedResponse       `json:"feed"`
		Result *feed.IngestResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response.Feed.Title != "Example Feed" {
		t.Errorf("Expected feed title 'Example Feed', got '%s'", response.Feed.Title)
	}
	if response.Result.Created != 5 {
		t.Errorf("Expected 5 created entries, got %d", response.Result.Created)
	}
	if ingester.runs != 1 {
		t.Errorf("Expected 1 ingester run, got %d", ingester.runs)
	}
}

func TestCreateFeedRejectsBadSource(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	ingester := &MockIngester{err: &feed.InvalidFeedError{URL: "https://example.com/feed.xml", Reason: "no usable content"}}
	server := setupTestServer(feedRepo, entryRepo, ingester, "")

	w := doRequest(t, server, "POST", "/api/feeds", "user-1", `{"url": "https://example.com/feed.xml"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d: %s", w.Code, w.Body.String())
	}

	// The rejected feed must not linger as an empty subscription
	if len(feedRepo.feeds) != 0 {
		t.Errorf("Expected rejected feed to be removed, %d feeds remain", len(feedRepo.feeds))
	}
	if len(feedRepo.deleted) != 1 {
		t.Errorf("Expected 1 delete call, got %d", len(feedRepo.deleted))
	}
}

func TestCreateFeedInvalidURL(t *testing.T) {
	server := setupTestServer(NewMockFeedRepository(), NewMockEntryRepository(), &MockIngester{}, "")

	for _, body := range []string{
		`{"url": "not-a-url"}`,
		`{"url": "ftp://example.com/feed.xml"}`,
		`{}`,
	} {
		w := doRequest(t, server, "POST", "/api/feeds", "user-1", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for body %s, got %d", body, w.Code)
		}
	}
}

func TestIdentityRequired(t *testing.T) {
	server := setupTestServer(NewMockFeedRepository(), NewMockEntryRepository(), &MockIngester{}, "")

	w := doRequest(t, server, "GET", "/api/feeds", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without X-User-ID, got %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	server := setupTestServer(NewMockFeedRepository(), NewMockEntryRepository(), &MockIngester{}, "secret-key")

	w := doRequest(t, server, "GET", "/api/feeds", "user-1", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without API key, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/feeds", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with valid API key, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/feeds", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer secret-key")
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer token, got %d", rec.Code)
	}
}

func TestGetFeedOwnership(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	server := setupTestServer(feedRepo, entryRepo, &MockIngester{}, "")

	owned, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")

	// Another user's feed reads as not found
	w := doRequest(t, server, "GET", "/api/feeds/"+owned.ID, "user-2", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for another user's feed, got %d", w.Code)
	}

	w = doRequest(t, server, "GET", "/api/feeds/"+owned.ID, "user-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for the owner, got %d", w.Code)
	}

	w = doRequest(t, server, "GET", "/api/feeds/no-such-feed", "user-1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown feed, got %d", w.Code)
	}
}

func TestGetFeedPagination(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	server := setupTestServer(feedRepo, entryRepo, &MockIngester{}, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")
	for i := 0; i < 30; i++ {
		entryRepo.CreateIfAbsent(context.Background(), f.ID, database.NewEntry{
			Title: fmt.Sprintf("Entry %d", i),
		})
	}

	w := doRequest(t, server, "GET", "/api/feeds/"+f.ID, "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Entries []entryResponse `json:"entries"`
		Limit   int             `json:"limit"`
		Total   int             `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Entries) != 20 {
		t.Errorf("Expected default page of 20 entries, got %d", len(response.Entries))
	}
	if response.Total != 30 {
		t.Errorf("Expected total of 30, got %d", response.Total)
	}

	w = doRequest(t, server, "GET", "/api/feeds/"+f.ID+"?limit=10&offset=25", "user-1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Entries) != 5 {
		t.Errorf("Expected 5 entries at offset 25, got %d", len(response.Entries))
	}

	// Limit is capped, not taken verbatim
	w = doRequest(t, server, "GET", "/api/feeds/"+f.ID+"?limit=1000", "user-1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Limit != 100 {
		t.Errorf("Expected limit capped at 100, got %d", response.Limit)
	}
}

func TestRefreshFeed(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	ingester := &MockIngester{result: &feed.IngestResult{Created: 2, Duplicates: 3}}
	server := setupTestServer(feedRepo, NewMockEntryRepository(), ingester, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")

	w := doRequest(t, server, "POST", "/api/feeds/"+f.ID+"/refresh", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Result *feed.IngestResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Result.Created != 2 || response.Result.Duplicates != 3 {
		t.Errorf("Unexpected result: %+v", response.Result)
	}
}

func TestRefreshFeedSourceFailure(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	ingester := &MockIngester{err: &feed.FetchError{URL: "https://example.com/feed.xml", Err: fmt.Errorf("connection refused")}}
	server := setupTestServer(feedRepo, NewMockEntryRepository(), ingester, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")

	w := doRequest(t, server, "POST", "/api/feeds/"+f.ID+"/refresh", "user-1", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}

	// An existing feed is kept even when a refresh fails
	if len(feedRepo.feeds) != 1 {
		t.Errorf("Expected the feed to survive a failed refresh, %d feeds remain", len(feedRepo.feeds))
	}
}

func TestDeleteFeed(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	server := setupTestServer(feedRepo, NewMockEntryRepository(), &MockIngester{}, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")

	w := doRequest(t, server, "DELETE", "/api/feeds/"+f.ID, "user-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if len(feedRepo.feeds) != 0 {
		t.Error("Expected the feed to be removed")
	}

	w = doRequest(t, server, "DELETE", "/api/feeds/"+f.ID, "user-1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 deleting twice, got %d", w.Code)
	}
}

func TestListFeeds(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	server := setupTestServer(feedRepo, entryRepo, &MockIngester{}, "")

	f1, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/a.xml")
	feedRepo.Create(context.Background(), "user-1", "https://example.com/b.xml")
	feedRepo.Create(context.Background(), "user-2", "https://example.com/c.xml")
	entryRepo.CreateIfAbsent(context.Background(), f1.ID, database.NewEntry{Title: "Entry"})

	w := doRequest(t, server, "GET", "/api/feeds", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Feeds []feedResponse `json:"feeds"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Total != 2 {
		t.Errorf("Expected 2 feeds for user-1, got %d", response.Total)
	}
}

func TestExportFeed(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	server := setupTestServer(feedRepo, entryRepo, &MockIngester{}, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")
	feedRepo.UpdateTitle(context.Background(), f.ID, "Exported Feed")
	entryRepo.CreateIfAbsent(context.Background(), f.ID, database.NewEntry{
		Title: "First Entry",
		Link:  "https://example.com/first",
	})

	// No identity header required on the public export route
	w := doRequest(t, server, "GET", "/feeds/"+f.ID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Errorf("Expected XML content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "Exported Feed") {
		t.Error("Expected the feed title in the export")
	}
	if !strings.Contains(w.Body.String(), "First Entry") {
		t.Error("Expected the entry title in the export")
	}

	w = doRequest(t, server, "GET", "/feeds/no-such-feed", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown feed, got %d", w.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	feedRepo := NewMockFeedRepository()
	entryRepo := NewMockEntryRepository()
	server := setupTestServer(feedRepo, entryRepo, &MockIngester{}, "")

	f, _ := feedRepo.Create(context.Background(), "user-1", "https://example.com/feed.xml")
	entryRepo.CreateIfAbsent(context.Background(), f.ID, database.NewEntry{Title: "Entry"})

	w := doRequest(t, server, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 from /health, got %d", w.Code)
	}

	w = doRequest(t, server, "GET", "/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from /stats, got %d", w.Code)
	}

	var stats map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to parse stats: %v", err)
	}
	if stats["feeds"] != 1 || stats["entries"] != 1 {
		t.Errorf("Unexpected stats: %v", stats)
	}
}
