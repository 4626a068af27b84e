package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/semerproje/haberwire/app/database"
)

// IngestRunTask executes one ingestion run for a schedule. It never
// retries: the run already widened the duplicate index and wrote items, so
// a retry would only produce duplicate rejections. The next regular tick
// picks the schedule up again instead.
type IngestRunTask struct {
	Task
	Schedule     database.Schedule
	TriggerKind  string
	runner       RunExecutor
	scheduleRepo database.ScheduleRepository
	statsRepo    database.StatsRepository
	onDone       func()
}

func NewIngestRunTask(schedule database.Schedule, triggerKind string, runner RunExecutor,
	scheduleRepo database.ScheduleRepository, statsRepo database.StatsRepository) *IngestRunTask {
	task := NewTask(TaskTypeIngestRun, schedule.Name)
	task.MaxRetries = 0

	return &IngestRunTask{
		Task:         task,
		Schedule:     schedule,
		TriggerKind:  triggerKind,
		runner:       runner,
		scheduleRepo: scheduleRepo,
		statsRepo:    statsRepo,
	}
}

func (t *IngestRunTask) Execute(ctx context.Context) error {
	if t.onDone != nil {
		defer t.onDone()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	runAt := time.Now().UTC()
	report := t.runner.Run(ctx, t.Schedule)

	// The next due time is anchored on this run's start, not its end, so
	// slow runs do not drift the cadence.
	nextRunAt := runAt.Add(time.Duration(t.Schedule.IntervalMinutes) * time.Minute)
	succeeded := len(report.Errors) == 0

	if err := t.scheduleRepo.RecordRun(t.Schedule.ID, runAt, nextRunAt, report.Persisted, succeeded, report.ErrorString()); err != nil {
		slog.Error("Failed to record schedule run", "schedule", t.Schedule.Name, "error", err)
	}

	scheduleID := t.Schedule.ID
	op := database.OperationEntry{
		ScheduleID:     &scheduleID,
		ScheduleName:   t.Schedule.Name,
		TriggerKind:    t.TriggerKind,
		Fetched:        report.Fetched,
		Accepted:       report.Accepted,
		Duplicates:     report.Duplicates,
		EnrichFailures: report.EnrichFailures,
		Persisted:      report.Persisted,
		ErrorMessage:   report.ErrorString(),
	}
	if err := t.statsRepo.AppendOperation(op); err != nil {
		slog.Error("Failed to append operation record", "schedule", t.Schedule.Name, "error", err)
	}

	if report.Persisted > 0 {
		if _, err := t.statsRepo.Recompute(); err != nil {
			slog.Warn("Failed to recompute site stats", "error", err)
		}
	}

	slog.Info("Task completed",
		"type", "IngestRun",
		"schedule", t.Schedule.Name,
		"trigger", t.TriggerKind,
		"duration", t.GetDuration(),
		"fetched", report.Fetched,
		"duplicates", report.Duplicates,
		"persisted", report.Persisted)

	return nil
}
