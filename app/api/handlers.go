package api

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-aggregator/app/database"
	"github.com/lysyi3m/news-aggregator/app/feed"
	"github.com/lysyi3m/news-aggregator/app/query"
	"github.com/lysyi3m/news-aggregator/app/tasks"
)

const (
	maxArticlesLimit     = 1000
	defaultAttemptsLimit = 20
)

// NewHandler wires the read API. attempts may be nil.
func NewHandler(q QueryInterface, sources SourceLookup, store CacheStats, scheduler tasks.TaskSchedulerInterface,
	generator GeneratorInterface, attempts AttemptHistory, opts Options) *Handler {
	return &Handler{
		query:     q,
		sources:   sources,
		store:     store,
		scheduler: scheduler,
		generator: generator,
		attempts:  attempts,
		opts:      opts,
	}
}

func (h *Handler) ListArticles(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requested := c.Query("source")
	applied, _ := h.query.ResolveFilter(requested)
	if requested != "" && applied == "" {
		slog.Debug("Unknown source filter, serving all sources", "source", requested)
	}

	articles := h.query.ListArticles(query.Filter{SourceID: applied, Limit: limit})

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    len(articles),
		"source":   applied,
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources := h.query.ListSources()

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

// GetAggregatedFeed serves /feeds/all.{rss,atom,json}.
func (h *Handler) GetAggregatedFeed(c *gin.Context) {
	file := c.Param("file")
	name, ext, ok := strings.Cut(file, ".")
	format, valid := feed.ParseOutputFormat(ext)
	if !ok || name != "all" || !valid {
		c.Status(http.StatusNotFound)
		return
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied, _ := h.query.ResolveFilter(c.Query("source"))
	articles := h.query.ListArticles(query.Filter{SourceID: applied, Limit: limit})

	title := "All sources"
	if applied != "" && len(articles) > 0 {
		title = articles[0].SourceTitle
	}

	items := make([]feed.OutputItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, feed.OutputItem{
			Title:       a.Title,
			Link:        a.Link,
			Summary:     a.Summary,
			SourceTitle: a.SourceTitle,
			PublishedAt: a.PublishedAt,
		})
	}

	channel := feed.Channel{
		Title:       fmt.Sprintf("News Aggregator: %s", title),
		Link:        h.selfLink(file),
		Description: "Merged and deduplicated articles from all configured feeds",
	}

	body, err := h.generator.Run(format, channel, items)
	if err != nil {
		slog.Error("Feed generation error", "format", string(format), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.String(http.StatusOK, body)
}

func (h *Handler) GetHealth(c *gin.Context) {
	states := h.scheduler.States()

	failing := 0
	for _, state := range states {
		if state.ConsecutiveFailures > 0 {
			failing++
		}
	}

	status := "ok"
	if failing > 0 {
		status = "degraded"
	}
	if len(states) > 0 && failing == len(states) {
		status = "failing"
	}

	cacheStats := h.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"timestamp":       time.Now().In(time.Local).Format(time.RFC3339),
		"sources":         len(states),
		"sources_failing": failing,
		"sources_cached":  cacheStats.Sources,
		"articles_cached": cacheStats.Articles,
		"attempt_log":     h.attempts != nil,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	cacheStats := h.store.Stats()
	response := gin.H{
		"scheduler": h.scheduler.Stats(),
		"cache": gin.H{
			"sources":  cacheStats.Sources,
			"articles": cacheStats.Articles,
		},
	}

	if h.attempts != nil {
		counts, err := h.attempts.GetOutcomeCounts(c.Request.Context())
		if err != nil {
			slog.Error("Database error", "operation", "get_outcome_counts", "error", err)
		} else {
			response["attempts"] = counts
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListSources(c *gin.Context) {
	states := h.scheduler.States()

	sources := make([]gin.H, 0, len(states))
	for _, state := range states {
		src, ok := h.sources.Get(state.SourceID)
		if !ok {
			continue
		}
		sources = append(sources, sourceDetails(src, state))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	id := c.Param("id")

	src, ok := h.sources.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}
	state, _ := h.scheduler.State(id)

	details := sourceDetails(src, state)
	details["filters"] = src.Filters

	if h.attempts != nil {
		limit, err := parseLimit(c.Query("attempts"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		attempts, err := h.attempts.GetRecentAttempts(c.Request.Context(), id, cmp.Or(limit, defaultAttemptsLimit))
		if err != nil {
			slog.Error("Database error", "operation", "get_recent_attempts", "feed", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		details["attempts"] = attemptViews(attempts)
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIRefreshSource(c *gin.Context) {
	id := c.Param("id")

	err := h.scheduler.Trigger(id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"message": "Refresh queued",
			"source":  id,
		})
	case errors.Is(err, tasks.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, tasks.ErrAlreadyFetching):
		c.JSON(http.StatusConflict, gin.H{"error": "Source is already being fetched"})
	case errors.Is(err, tasks.ErrQueueFull), errors.Is(err, tasks.ErrStopped):
		slog.Warn("Manual refresh rejected", "feed", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue refresh", "details": err.Error()})
	default:
		slog.Error("Error enqueueing refresh", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue refresh", "details": err.Error()})
	}
}

func (h *Handler) selfLink(file string) string {
	if h.opts.BaseURL != "" {
		return fmt.Sprintf("%s/feeds/%s", strings.TrimRight(h.opts.BaseURL, "/"), file)
	}
	return fmt.Sprintf("http://localhost:%s/feeds/%s", cmp.Or(h.opts.Port, "8080"), file)
}

func sourceDetails(src *feed.Source, state tasks.SourceState) gin.H {
	return gin.H{
		"id":            src.ID,
		"name":          src.Name,
		"url":           src.URL,
		"title":         src.Title,
		"icon_url":      src.IconURL,
		"poll_interval": src.PollInterval.String(),
		"timeout":       src.Timeout.String(),
		"max_items":     src.MaxItems,
		"state":         state,
	}
}

func attemptViews(attempts []database.Attempt) []gin.H {
	views := make([]gin.H, 0, len(attempts))
	for _, a := range attempts {
		view := gin.H{
			"id":          a.ID,
			"manual":      a.Manual,
			"started_at":  a.StartedAt,
			"finished_at": a.FinishedAt,
			"duration":    a.FinishedAt.Sub(a.StartedAt).String(),
			"outcome":     a.Outcome,
			"status_code": a.StatusCode,
			"articles":    a.Articles,
			"skipped":     a.Skipped,
			"filtered":    a.Filtered,
		}
		if a.Error != "" {
			view["error_kind"] = a.ErrorKind
			view["error"] = a.Error
		}
		views = append(views, view)
	}
	return views
}

// parseLimit accepts an empty value as "no limit".
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(limit, maxArticlesLimit), nil
}
