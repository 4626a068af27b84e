package database

import (
	"time"
)

// News item status values. Archived is terminal.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Media types recorded per media entry.
const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
)

// MediaItem is a single media entry attached to a news item. Entries keep
// source order; a free-stock placeholder is provisional and never coexists
// with an authentic image.
type MediaItem struct {
	URL         string `json:"url"`
	Caption     string `json:"caption,omitempty"`
	Alt         string `json:"alt,omitempty"`
	Type        string `json:"type"`
	IsFreeStock bool   `json:"is_free_stock,omitempty"`
}

type NewsItem struct {
	ID                string
	Source            string  // Source definition name (e.g. "aa", "ntv-rss")
	SourceID          *string // Source-assigned identifier, nil for manually created items
	Title             string
	TitleHash         string // Normalized-title fingerprint
	Summary           string
	Content           string
	Categories        []string
	Media             []MediaItem
	Status            string
	AIEnhanced        bool
	SEOTitle          string
	MetaDescription   string
	Keywords          []string
	Hashtags          []string
	ViewCount         int
	SourcePublishedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasAuthenticImage reports whether the item carries at least one
// publisher-provided photo.
func (n *NewsItem) HasAuthenticImage() bool {
	for _, m := range n.Media {
		if m.Type == MediaTypePhoto && !m.IsFreeStock {
			return true
		}
	}
	return false
}

type Schedule struct {
	ID                  string
	Name                string
	Source              string // Source definition name this schedule pulls from
	Categories          []string
	IntervalMinutes     int
	Enabled             bool
	MaxItemsPerRun      int
	AutoPublish         bool
	AIEnabled           bool
	LastRunAt           *time.Time
	NextRunAt           *time.Time
	TotalRuns           int
	TotalItemsProcessed int
	LastRunSucceeded    bool
	LastRunError        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type SiteStats struct {
	TotalNews     int
	PublishedNews int
	DraftNews     int
	ByCategory    map[string]int
	ByType        map[string]int
	UpdatedAt     time.Time
}

// Operation trigger kinds.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// OperationEntry is one append-only run summary record.
type OperationEntry struct {
	ID             string
	ScheduleID     *string
	ScheduleName   string
	TriggerKind    string
	Fetched        int
	Accepted       int
	Duplicates     int
	EnrichFailures int
	Persisted      int
	ErrorMessage   string
	CreatedAt      time.Time
}

// Identifier is the dedup-relevant projection of a persisted news item,
// used to seed the in-memory index at process start.
type Identifier struct {
	Source    string
	SourceID  *string
	TitleHash string
}
