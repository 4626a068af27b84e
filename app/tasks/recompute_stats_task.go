package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/semerproje/haberwire/app/database"
)

// RecomputeStatsTask rebuilds the aggregate stats singleton from the news
// collection. Enqueued at startup so counters reflect writes made while
// the process was down.
type RecomputeStatsTask struct {
	Task
	statsRepo database.StatsRepository
}

func NewRecomputeStatsTask(statsRepo database.StatsRepository) *RecomputeStatsTask {
	return &RecomputeStatsTask{
		Task:      NewTask(TaskTypeRecomputeStats, ""),
		statsRepo: statsRepo,
	}
}

func (t *RecomputeStatsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.statsRepo.Recompute()
	if err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}

	slog.Info("Task completed",
		"type", "RecomputeStats",
		"duration", t.GetDuration(),
		"total_news", stats.TotalNews,
		"published", stats.PublishedNews)

	return nil
}
