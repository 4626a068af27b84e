package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/semerproje/haberwire/app/cache"
	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/ingest"
	"github.com/semerproje/haberwire/app/tasks"
)

const (
	defaultIntervalMinutes = 30
	defaultMaxItemsPerRun  = 20
	defaultListLimit       = 20
	maxListLimit           = 100
)

func NewHandler(newsRepo database.NewsRepository, scheduleRepo database.ScheduleRepository,
	statsRepo database.StatsRepository, sources *ingest.SourceCache,
	scheduler tasks.TaskSchedulerInterface, responseCache ResponseCache) *Handler {
	if responseCache == nil {
		responseCache = (*cache.Cache)(nil)
	}
	return &Handler{
		newsRepo:     newsRepo,
		scheduleRepo: scheduleRepo,
		statsRepo:    statsRepo,
		sources:      sources,
		scheduler:    scheduler,
		cache:        responseCache,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if stats, err := h.statsRepo.Get(); err == nil && stats != nil {
		health["news_total"] = stats.TotalNews
	}

	health["loaded_sources"] = h.sources.GetSourceCount()
	health["cache"] = h.cache.Health()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	key := cache.StatsKey()
	if cached, err := h.cache.Get(key); err == nil && cached != nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	stats, err := h.statsRepo.Get()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{"total_news": 0})
		return
	}

	body := map[string]interface{}{
		"total_news":     stats.TotalNews,
		"published_news": stats.PublishedNews,
		"draft_news":     stats.DraftNews,
		"by_category":    stats.ByCategory,
		"by_type":        stats.ByType,
		"updated_at":     stats.UpdatedAt.Format(time.RFC3339),
	}
	c.JSON(http.StatusOK, body)
	h.cacheJSON(key, body)
}

// GetNewsList serves the public news listing: published items only.
func (h *Handler) GetNewsList(c *gin.Context) {
	key := cache.NewsListKey(c.Request.URL.RawQuery)
	if cached, err := h.cache.Get(key); err == nil && cached != nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	opts := database.NewsListOptions{
		Status:   database.StatusPublished,
		Category: c.Query("category"),
		Source:   c.Query("source"),
		Limit:    parseLimit(c.Query("limit")),
		Offset:   parseOffset(c.Query("offset")),
	}

	items, err := h.newsRepo.List(opts)
	if err != nil {
		slog.Error("Database error", "operation", "list_news", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	body := map[string]interface{}{
		"items": newsItemList(items),
		"total": len(items),
	}
	c.JSON(http.StatusOK, body)
	h.cacheJSON(key, body)
}

// GetNewsItem serves one published item and bumps its view counter. The
// bump is best-effort: a failed update never fails the read.
func (h *Handler) GetNewsItem(c *gin.Context) {
	id := c.Param("id")

	key := cache.NewsItemKey(id)
	if cached, err := h.cache.Get(key); err == nil && cached != nil {
		// Only published items end up in the cache, so a hit is safe to
		// serve as-is. The view counter still moves.
		if err := h.newsRepo.IncrementViewCount(id); err != nil {
			slog.Warn("Failed to increment view count", "id", id, "error", err)
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	item, err := h.newsRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_news", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil || item.Status != database.StatusPublished {
		c.JSON(http.StatusNotFound, gin.H{"error": "News item not found"})
		return
	}

	if err := h.newsRepo.IncrementViewCount(id); err != nil {
		slog.Warn("Failed to increment view count", "id", id, "error", err)
	}

	body := newsItemBody(item, true)
	c.JSON(http.StatusOK, body)
	h.cacheJSON(key, body)
}

func (h *Handler) APIListNews(c *gin.Context) {
	opts := database.NewsListOptions{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Source:   c.Query("source"),
		Limit:    parseLimit(c.Query("limit")),
		Offset:   parseOffset(c.Query("offset")),
	}

	items, err := h.newsRepo.List(opts)
	if err != nil {
		slog.Error("Database error", "operation", "api_list_news", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"items": newsItemList(items),
		"total": len(items),
	})
}

func (h *Handler) APIUpdateNewsStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	switch req.Status {
	case database.StatusDraft, database.StatusPublished, database.StatusArchived:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "message": "Status must be draft, published, or archived"})
		return
	}

	item, err := h.newsRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_news", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "News item not found"})
		return
	}
	if item.Status == database.StatusArchived {
		c.JSON(http.StatusConflict, gin.H{"error": "Item is archived", "message": "Archived items cannot change status"})
		return
	}

	if err := h.newsRepo.UpdateStatus(id, req.Status); err != nil {
		slog.Error("Database error", "operation", "update_status", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.cache.Delete(cache.NewsItemKey(id)); err != nil {
		slog.Warn("Failed to invalidate cached item", "id", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (h *Handler) APIListSchedules(c *gin.Context) {
	schedules, err := h.scheduleRepo.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_schedules", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	body := make([]map[string]interface{}, 0, len(schedules))
	for i := range schedules {
		entry := scheduleBody(&schedules[i])
		entry["running"] = h.scheduler.IsRunning(schedules[i].ID)
		body = append(body, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"schedules": body,
		"total":     len(body),
	})
}

func (h *Handler) APICreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	if _, err := h.sources.GetSource(req.Source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown source", "message": err.Error()})
		return
	}

	schedule := database.Schedule{
		Name:            req.Name,
		Source:          req.Source,
		Categories:      req.Categories,
		IntervalMinutes: req.IntervalMinutes,
		MaxItemsPerRun:  req.MaxItemsPerRun,
		AutoPublish:     req.AutoPublish,
		AIEnabled:       req.AIEnabled,
		// New schedules start disabled unless the request says otherwise;
		// enabling is a deliberate second step.
		Enabled: req.Enabled,
	}
	if schedule.IntervalMinutes <= 0 {
		schedule.IntervalMinutes = defaultIntervalMinutes
	}
	if schedule.MaxItemsPerRun <= 0 {
		schedule.MaxItemsPerRun = defaultMaxItemsPerRun
	}

	id, err := h.scheduleRepo.Create(schedule)
	if err != nil {
		slog.Error("Database error", "operation", "create_schedule", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) APIGetSchedule(c *gin.Context) {
	schedule, ok := h.loadSchedule(c)
	if !ok {
		return
	}

	body := scheduleBody(schedule)
	body["running"] = h.scheduler.IsRunning(schedule.ID)
	c.JSON(http.StatusOK, body)
}

func (h *Handler) APIUpdateSchedule(c *gin.Context) {
	schedule, ok := h.loadSchedule(c)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	if req.Name != "" {
		schedule.Name = req.Name
	}
	if req.Categories != nil {
		schedule.Categories = req.Categories
	}
	if req.IntervalMinutes > 0 {
		schedule.IntervalMinutes = req.IntervalMinutes
	}
	if req.MaxItemsPerRun > 0 {
		schedule.MaxItemsPerRun = req.MaxItemsPerRun
	}
	if req.AutoPublish != nil {
		schedule.AutoPublish = *req.AutoPublish
	}
	if req.AIEnabled != nil {
		schedule.AIEnabled = *req.AIEnabled
	}

	if err := h.scheduleRepo.Update(*schedule); err != nil {
		slog.Error("Database error", "operation", "update_schedule", "id", schedule.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, scheduleBody(schedule))
}

func (h *Handler) APIDeleteSchedule(c *gin.Context) {
	schedule, ok := h.loadSchedule(c)
	if !ok {
		return
	}

	if err := h.scheduleRepo.Delete(schedule.ID); err != nil {
		slog.Error("Database error", "operation", "delete_schedule", "id", schedule.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) APIEnableSchedule(c *gin.Context) {
	h.setScheduleEnabled(c, true)
}

func (h *Handler) APIDisableSchedule(c *gin.Context) {
	h.setScheduleEnabled(c, false)
}

func (h *Handler) setScheduleEnabled(c *gin.Context, enabled bool) {
	schedule, ok := h.loadSchedule(c)
	if !ok {
		return
	}

	if err := h.scheduleRepo.SetEnabled(schedule.ID, enabled); err != nil {
		slog.Error("Database error", "operation", "set_enabled", "id", schedule.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": schedule.ID, "enabled": enabled})
}

// APIRunSchedule triggers an immediate run. A run already in flight is
// refused instead of queued.
func (h *Handler) APIRunSchedule(c *gin.Context) {
	id := c.Param("id")

	if err := h.scheduler.RunScheduleNow(id); err != nil {
		if err == tasks.ErrScheduleRunning {
			c.JSON(http.StatusConflict, gin.H{"error": "Run already in progress"})
			return
		}
		slog.Error("Failed to trigger schedule run", "id", id, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to trigger run", "message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "queued"})
}

func (h *Handler) APIListOperations(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	ops, err := h.statsRepo.RecentOperations(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_operations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	body := make([]map[string]interface{}, 0, len(ops))
	for _, op := range ops {
		body = append(body, map[string]interface{}{
			"id":              op.ID,
			"schedule_name":   op.ScheduleName,
			"trigger":         op.TriggerKind,
			"fetched":         op.Fetched,
			"accepted":        op.Accepted,
			"duplicates":      op.Duplicates,
			"enrich_failures": op.EnrichFailures,
			"persisted":       op.Persisted,
			"error":           op.ErrorMessage,
			"created_at":      op.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"operations": body,
		"total":      len(body),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.sources.GetSources()

	body := make([]map[string]interface{}, 0, len(configs))
	for _, source := range configs {
		body = append(body, map[string]interface{}{
			"name":      source.Name,
			"type":      source.Type,
			"url":       source.URL,
			"enabled":   source.Enabled,
			"max_items": source.MaxItems,
			"timeout":   (time.Duration(source.Timeout) * time.Second).String(),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": body,
		"total":   len(body),
	})
}

func (h *Handler) loadSchedule(c *gin.Context) (*database.Schedule, bool) {
	id := c.Param("id")

	schedule, err := h.scheduleRepo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_schedule", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if schedule == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
		return nil, false
	}
	return schedule, true
}

func (h *Handler) cacheJSON(key string, body interface{}) {
	if err := h.cache.Set(key, body, cache.DefaultTTL); err != nil {
		slog.Warn("Failed to cache response", "key", key, "error", err)
	}
}

func newsItemList(items []database.NewsItem) []map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(items))
	for i := range items {
		list = append(list, newsItemBody(&items[i], false))
	}
	return list
}

func newsItemBody(item *database.NewsItem, full bool) map[string]interface{} {
	body := map[string]interface{}{
		"id":         item.ID,
		"source":     item.Source,
		"title":      item.Title,
		"summary":    item.Summary,
		"categories": item.Categories,
		"status":     item.Status,
		"view_count": item.ViewCount,
		"created_at": item.CreatedAt.Format(time.RFC3339),
	}

	if len(item.Media) > 0 {
		media := make([]map[string]interface{}, 0, len(item.Media))
		for _, m := range item.Media {
			media = append(media, map[string]interface{}{
				"url":           m.URL,
				"caption":       m.Caption,
				"alt":           m.Alt,
				"type":          m.Type,
				"is_free_stock": m.IsFreeStock,
			})
		}
		body["media"] = media
	}

	if item.SourcePublishedAt != nil {
		body["published_at"] = item.SourcePublishedAt.Format(time.RFC3339)
	}

	if full {
		body["content"] = item.Content
		body["ai_enhanced"] = item.AIEnhanced
		body["seo_title"] = item.SEOTitle
		body["meta_description"] = item.MetaDescription
		body["keywords"] = item.Keywords
		body["hashtags"] = item.Hashtags
	}

	return body
}

func scheduleBody(s *database.Schedule) map[string]interface{} {
	body := map[string]interface{}{
		"id":                    s.ID,
		"name":                  s.Name,
		"source":                s.Source,
		"categories":            s.Categories,
		"interval_minutes":      s.IntervalMinutes,
		"enabled":               s.Enabled,
		"max_items_per_run":     s.MaxItemsPerRun,
		"auto_publish":          s.AutoPublish,
		"ai_enabled":            s.AIEnabled,
		"total_runs":            s.TotalRuns,
		"total_items_processed": s.TotalItemsProcessed,
		"last_run_succeeded":    s.LastRunSucceeded,
	}

	if s.LastRunAt != nil {
		body["last_run_at"] = s.LastRunAt.Format(time.RFC3339)
	}
	if s.NextRunAt != nil {
		body["next_run_at"] = s.NextRunAt.Format(time.RFC3339)
	}
	if s.LastRunError != "" {
		body["last_run_error"] = s.LastRunError
	}

	return body
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func parseOffset(raw string) int {
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
