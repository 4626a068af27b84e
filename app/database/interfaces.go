package database

import (
	"time"
)

// NewsListOptions narrows a news listing query. Zero values mean "no filter".
type NewsListOptions struct {
	Status   string
	Category string
	Source   string
	Limit    int
	Offset   int
}

type NewsRepository interface {
	// Insert writes a news item and reports whether a row was actually
	// created. A unique-index conflict is not an error: it returns
	// inserted=false, which the persister surfaces as duplicate-at-write.
	Insert(item NewsItem) (id string, inserted bool, err error)

	GetByID(id string) (*NewsItem, error)

	// GetBySourceID looks an item up by its dedup identity. Used when a
	// refetched duplicate carries media the stored row lacks.
	GetBySourceID(source, sourceID string) (*NewsItem, error)

	List(opts NewsListOptions) ([]NewsItem, error)
	UpdateStatus(id string, status string) error
	ReplaceMedia(id string, media []MediaItem) error
	IncrementViewCount(id string) error

	// ScanIdentifiers streams dedup identifiers of non-archived items in
	// keyset batches, calling fn for each row.
	ScanIdentifiers(batchSize int, fn func(Identifier) error) error
}

type ScheduleRepository interface {
	Create(s Schedule) (string, error)
	GetByID(id string) (*Schedule, error)
	List() ([]Schedule, error)
	Update(s Schedule) error
	SetEnabled(id string, enabled bool) error
	Delete(id string) error

	// GetDue returns enabled schedules whose next_run_at is unset or in
	// the past, ordered by due time.
	GetDue(now time.Time, limit int) ([]Schedule, error)

	// RecordRun updates run bookkeeping after a completed run.
	RecordRun(id string, runAt, nextRunAt time.Time, itemsProcessed int, succeeded bool, errMsg string) error
}

type StatsRepository interface {
	// Recompute rebuilds the aggregate singleton by a full scan of
	// news_items. Incremental counters are never trusted as a source of
	// truth.
	Recompute() (*SiteStats, error)
	Get() (*SiteStats, error)

	AppendOperation(op OperationEntry) error
	RecentOperations(limit int) ([]OperationEntry, error)
}
