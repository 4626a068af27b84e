package tasks

import (
	"context"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/pipeline"
)

// TaskSchedulerInterface defines the interface for background task
// scheduling. Used by the main application and the HTTP API to manage the
// worker pool and to trigger schedule runs outside the regular tick.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunScheduleNow(scheduleID string) error
	IsRunning(scheduleID string) bool
}

// RunExecutor runs the ingestion pipeline for one schedule. Satisfied by
// pipeline.Runner.
type RunExecutor interface {
	Run(ctx context.Context, schedule database.Schedule) pipeline.Report
}
