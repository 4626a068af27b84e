package api

import (
	"time"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/ingest"
	"github.com/semerproje/haberwire/app/tasks"
)

// ResponseCache is the slice of the cache the handlers use. A nil
// *cache.Cache satisfies it, since all its methods tolerate a nil
// receiver.
type ResponseCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Health() map[string]interface{}
}

type Handler struct {
	newsRepo     database.NewsRepository
	scheduleRepo database.ScheduleRepository
	statsRepo    database.StatsRepository
	sources      *ingest.SourceCache
	scheduler    tasks.TaskSchedulerInterface
	cache        ResponseCache
}

// CreateScheduleRequest is the body of POST /api/schedules. Interval and
// max items fall back to defaults when omitted.
type CreateScheduleRequest struct {
	Name            string   `json:"name" binding:"required"`
	Source          string   `json:"source" binding:"required"`
	Categories      []string `json:"categories"`
	IntervalMinutes int      `json:"interval_minutes"`
	MaxItemsPerRun  int      `json:"max_items_per_run"`
	AutoPublish     bool     `json:"auto_publish"`
	AIEnabled       bool     `json:"ai_enabled"`
	Enabled         bool     `json:"enabled"`
}

type UpdateScheduleRequest struct {
	Name            string   `json:"name"`
	Categories      []string `json:"categories"`
	IntervalMinutes int      `json:"interval_minutes"`
	MaxItemsPerRun  int      `json:"max_items_per_run"`
	AutoPublish     *bool    `json:"auto_publish"`
	AIEnabled       *bool    `json:"ai_enabled"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
