package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"feedsink/app/database"
	"feedsink/app/feed"
)

const (
	defaultEntryLimit = 20
	maxEntryLimit     = 100
	exportEntryLimit  = 50
)

func NewHandler(feedRepo database.FeedRepository, entryRepo database.EntryRepository,
	ingester IngesterInterface) *Handler {
	return &Handler{
		feedRepo:  feedRepo,
		entryRepo: entryRepo,
		ingester:  ingester,
		generator: feed.NewGenerator(),
	}
}

func (h *Handler) CreateFeed(c *gin.Context) {
	userID := c.GetString("userID")

	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	if err := feed.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.feedRepo.Create(c.Request.Context(), userID, req.URL)
	if err != nil {
		slog.Error("Database error", "operation", "create_feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result, err := h.ingester.Run(c.Request.Context(), *created)
	if err != nil {
		// A feed that cannot be ingested at creation time is not kept,
		// so a bad URL never lingers as an empty subscription.
		if _, delErr := h.feedRepo.Delete(c.Request.Context(), created.ID); delErr != nil {
			slog.Error("Failed to remove rejected feed", "feed", created.ID, "error", delErr)
		}

		status, msg := ingestFailureStatus(err, "could not add feed")
		slog.Warn("Feed creation rejected", "url", req.URL, "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"feed": feedResponse{
			ID:            created.ID,
			URL:           created.FeedURL,
			Title:         result.FeedTitle,
			EntryCount:    result.Created,
			LastFetchedAt: created.LastFetchedAt,
			CreatedAt:     created.CreatedAt,
		},
		"result": result,
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	userID := c.GetString("userID")

	feeds, err := h.feedRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	responses := lo.Map(feeds, func(f database.Feed, _ int) feedResponse {
		count, err := h.entryRepo.CountByFeed(c.Request.Context(), f.ID)
		if err != nil {
			slog.Warn("Failed to count entries", "feed", f.ID, "error", err)
		}

		return feedResponse{
			ID:            f.ID,
			URL:           f.FeedURL,
			Title:         f.Title,
			EntryCount:    count,
			LastFetchedAt: f.LastFetchedAt,
			CreatedAt:     f.CreatedAt,
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"feeds": responses,
		"total": len(responses),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	f := h.ownedFeed(c)
	if f == nil {
		return
	}

	limit, offset := paginationParams(c)

	entries, err := h.entryRepo.ListByFeed(c.Request.Context(), f.ID, limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "feed", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	count, err := h.entryRepo.CountByFeed(c.Request.Context(), f.ID)
	if err != nil {
		slog.Error("Database error", "operation", "count_entries", "feed", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed": feedResponse{
			ID:            f.ID,
			URL:           f.FeedURL,
			Title:         f.Title,
			EntryCount:    count,
			LastFetchedAt: f.LastFetchedAt,
			CreatedAt:     f.CreatedAt,
		},
		"entries": lo.Map(entries, func(e database.Entry, _ int) entryResponse {
			return entryResponse{
				ID:          e.ID,
				Title:       e.Title,
				Summary:     e.Summary,
				Link:        e.Link,
				ImageURL:    e.ImageURL,
				PublishedAt: e.PublishedAt,
				CreatedAt:   e.CreatedAt,
			}
		}),
		"limit":  limit,
		"offset": offset,
		"total":  count,
	})
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	f := h.ownedFeed(c)
	if f == nil {
		return
	}

	result, err := h.ingester.Run(c.Request.Context(), *f)
	if err != nil {
		status, msg := ingestFailureStatus(err, "could not refresh feed")
		slog.Warn("Feed refresh failed", "feed", f.ID, "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	f := h.ownedFeed(c)
	if f == nil {
		return
	}

	deleted, err := h.feedRepo.Delete(c.Request.Context(), f.ID)
	if err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed", f.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportFeed serves a stored feed's entries back as RSS.
func (h *Handler) ExportFeed(c *gin.Context) {
	id := c.Param("id")

	f, err := h.feedRepo.Get(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if f == nil {
		c.Status(http.StatusNotFound)
		return
	}

	entries, err := h.entryRepo.ListByFeed(c.Request.Context(), f.ID, exportEntryLimit, 0)
	if err != nil {
		slog.Error("Database error", "operation", "list_entries", "feed", f.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*f, entries)
	if err != nil {
		slog.Error("RSS generation error", "feed", f.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Entries", strconv.Itoa(len(entries)))
	c.Header("X-Last-Updated", f.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.Count(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if feedCount, err := h.feedRepo.Count(c.Request.Context()); err == nil {
		stats["feeds"] = feedCount
	}
	if entryCount, err := h.entryRepo.Count(c.Request.Context()); err == nil {
		stats["entries"] = entryCount
	}

	c.JSON(http.StatusOK, stats)
}

// ownedFeed resolves :id to a feed owned by the caller. A feed belonging to
// another user reads as not found so existence is not leaked. Writes the
// error response itself and returns nil when the request cannot proceed.
func (h *Handler) ownedFeed(c *gin.Context) *database.Feed {
	userID := c.GetString("userID")
	id := c.Param("id")

	f, err := h.feedRepo.Get(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}

	if f == nil || f.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil
	}

	return f
}

// ingestFailureStatus maps the ingestion error taxonomy to a response:
// source-side failures collapse into one user-facing message, store
// failures stay internal.
func ingestFailureStatus(err error, msg string) (int, string) {
	var fetchErr *feed.FetchError
	var parseErr *feed.ParseError
	var invalidErr *feed.InvalidFeedError

	if errors.As(err, &fetchErr) || errors.As(err, &parseErr) || errors.As(err, &invalidErr) {
		return http.StatusUnprocessableEntity, msg
	}

	return http.StatusInternalServerError, "Database error"
}

func paginationParams(c *gin.Context) (int, int) {
	limit := defaultEntryLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxEntryLimit)
		}
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}

	return limit, offset
}
