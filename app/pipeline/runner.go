package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/enrich"
	"github.com/semerproje/haberwire/app/ingest"
)

// WireSearcher is the AA search call used by wire-backed schedules.
type WireSearcher interface {
	Search(ctx context.Context, source string, filter ingest.SearchFilter) ([]ingest.RawItem, error)
}

// FeedFetcher is the RSS fetch call used by feed-backed schedules.
type FeedFetcher interface {
	Fetch(ctx context.Context, source *ingest.SourceConfig) ([]ingest.RawItem, error)
}

// Report summarizes one pipeline run. Accepted counts items that passed
// deduplication; Persisted counts items that reached the store. Errors
// holds per-category failures that did not stop the run.
type Report struct {
	Fetched        int
	Accepted       int
	Duplicates     int
	EnrichFailures int
	Persisted      int
	Errors         []string
}

// ErrorString joins per-category errors for storage on the run record.
func (r *Report) ErrorString() string {
	return strings.Join(r.Errors, "; ")
}

// Runner executes the fetch, deduplicate, enrich, persist sequence for one
// schedule. A failing category is reported in the run summary and never
// stops the remaining categories.
type Runner struct {
	sources  *ingest.SourceCache
	aa       WireSearcher
	rss      FeedFetcher
	enricher *enrich.Enricher
	persist  *Persister
	index    *ingest.DedupIndex
}

func NewRunner(sources *ingest.SourceCache, aa WireSearcher, rss FeedFetcher, enricher *enrich.Enricher, persist *Persister, index *ingest.DedupIndex) *Runner {
	return &Runner{sources: sources, aa: aa, rss: rss, enricher: enricher, persist: persist, index: index}
}

func (r *Runner) Run(ctx context.Context, schedule database.Schedule) Report {
	report := Report{}

	source, err := r.sources.GetSource(schedule.Source)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("source %s: %v", schedule.Source, err))
		return report
	}
	if !source.Enabled {
		report.Errors = append(report.Errors, fmt.Sprintf("source %s is disabled", schedule.Source))
		return report
	}

	budget := schedule.MaxItemsPerRun
	for _, category := range r.categories(schedule) {
		if budget <= 0 && schedule.MaxItemsPerRun > 0 {
			break
		}

		items, err := r.fetch(ctx, source, schedule, category)
		if err != nil {
			slog.Warn("Category fetch failed", "schedule", schedule.Name, "category", category, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("category %s: %v", orAll(category), err))
			continue
		}
		report.Fetched += len(items)

		fresh := ingest.FilterNew(items, source.Name, r.index)
		report.Duplicates += len(items) - len(fresh)
		r.upgradeDuplicateMedia(items, fresh, source.Name)

		if schedule.MaxItemsPerRun > 0 && len(fresh) > budget {
			fresh = fresh[:budget]
		}
		report.Accepted += len(fresh)
		budget -= len(fresh)

		opts := enrich.Options{
			FetchDetails: source.Type == ingest.SourceTypeAA,
			FetchMedia:   source.Type == ingest.SourceTypeAA,
			UseAI:        schedule.AIEnabled,
		}
		for _, item := range fresh {
			enriched := r.enricher.Enrich(ctx, item, opts)
			if enriched.AIFailed {
				report.EnrichFailures++
			}

			res, err := r.persist.Persist(item, source.Name, enriched, schedule.AutoPublish)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("persist %q: %v", item.Title, err))
				continue
			}
			if !res.Accepted {
				report.Duplicates++
				continue
			}
			report.Persisted++
		}
	}

	slog.Info("Run finished",
		"schedule", schedule.Name,
		"fetched", report.Fetched,
		"accepted", report.Accepted,
		"duplicates", report.Duplicates,
		"enrich_failures", report.EnrichFailures,
		"persisted", report.Persisted,
		"errors", len(report.Errors))

	return report
}

// upgradeDuplicateMedia revisits items the duplicate filter rejected by
// source id: a wire source can re-deliver a story with media that was
// missing on first fetch, and a stored free-stock placeholder must yield
// to the authentic image.
func (r *Runner) upgradeDuplicateMedia(items, fresh []ingest.RawItem, source string) {
	accepted := make(map[string]struct{}, len(fresh))
	for _, item := range fresh {
		if item.SourceID != "" {
			accepted[item.SourceID] = struct{}{}
		}
	}

	for _, item := range items {
		if item.SourceID == "" || len(item.MediaRefs) == 0 {
			continue
		}
		if _, ok := accepted[item.SourceID]; ok {
			continue
		}
		if !r.index.HasSourceID(source, item.SourceID) {
			continue
		}
		if err := r.persist.UpgradeMedia(item, source); err != nil {
			slog.Warn("Media upgrade failed", "source", source, "source_id", item.SourceID, "error", err)
		}
	}
}

// categories yields one fetch pass per configured category, or a single
// unfiltered pass when the schedule has none.
func (r *Runner) categories(schedule database.Schedule) []string {
	if len(schedule.Categories) == 0 {
		return []string{""}
	}
	return schedule.Categories
}

func (r *Runner) fetch(ctx context.Context, source *ingest.SourceConfig, schedule database.Schedule, category string) ([]ingest.RawItem, error) {
	switch source.Type {
	case ingest.SourceTypeAA:
		if r.aa == nil {
			return nil, fmt.Errorf("wire client is not configured")
		}
		filter := ingest.SearchFilter{
			Start:    r.searchStart(schedule),
			Category: category,
			TypeText: true,
			Limit:    source.MaxItems,
		}
		return r.aa.Search(ctx, source.Name, filter)
	case ingest.SourceTypeRSS:
		if r.rss == nil {
			return nil, fmt.Errorf("feed fetcher is not configured")
		}
		return r.rss.Fetch(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", source.Type)
	}
}

// searchStart bounds the wire search window to the previous run, falling
// back to a day when the schedule has never run.
func (r *Runner) searchStart(schedule database.Schedule) time.Time {
	if schedule.LastRunAt != nil {
		return *schedule.LastRunAt
	}
	return time.Now().Add(-24 * time.Hour)
}

func orAll(category string) string {
	if category == "" {
		return "all"
	}
	return category
}
