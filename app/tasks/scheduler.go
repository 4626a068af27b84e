package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/semerproje/haberwire/app/cfg"
	"github.com/semerproje/haberwire/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrScheduleRunning is returned when a run is requested for a schedule
// that already has a run in flight. At most one run per schedule executes
// at a time, regardless of trigger.
var ErrScheduleRunning = fmt.Errorf("schedule run already in progress")

const dueBatchLimit = 50

// Scheduler drives schedule runs from persisted due times. Each tick asks
// the store for schedules whose next_run_at has passed, so missed runs are
// picked up after a restart without any in-memory timer state.
type Scheduler struct {
	scheduleRepo database.ScheduleRepository
	statsRepo    database.StatsRepository
	runner       RunExecutor
	interval     time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
	inflightMu   sync.Mutex
	inflight     map[string]struct{}
}

func NewScheduler(scheduleRepo database.ScheduleRepository, statsRepo database.StatsRepository,
	runner RunExecutor) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		scheduleRepo: scheduleRepo,
		statsRepo:    statsRepo,
		runner:       runner,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
		inflight:     make(map[string]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueRuns()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunScheduleNow enqueues a manually triggered run, bypassing the due
// check. It refuses if a run for the schedule is already in flight.
func (s *Scheduler) RunScheduleNow(scheduleID string) error {
	schedule, err := s.scheduleRepo.GetByID(scheduleID)
	if err != nil {
		return fmt.Errorf("failed to get schedule: %w", err)
	}
	if schedule == nil {
		return fmt.Errorf("schedule with id '%s' not found", scheduleID)
	}

	return s.dispatch(*schedule, database.TriggerManual)
}

func (s *Scheduler) IsRunning(scheduleID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, ok := s.inflight[scheduleID]
	return ok
}

func (s *Scheduler) enqueueStartupTasks() {
	statsTask := NewRecomputeStatsTask(s.statsRepo)
	if err := s.EnqueueTask(statsTask); err != nil {
		slog.Warn("Failed to enqueue RecomputeStatsTask", "error", err)
	}

	// Schedules that came due while the process was down are picked up
	// immediately.
	s.enqueueDueRuns()
}

func (s *Scheduler) enqueueDueRuns() {
	due, err := s.scheduleRepo.GetDue(time.Now().UTC(), dueBatchLimit)
	if err != nil {
		slog.Error("Failed to query due schedules", "error", err)
		return
	}
	if len(due) == 0 {
		slog.Debug("No schedules due")
		return
	}

	slog.Debug("Processing due schedules", "count", len(due))

	for _, schedule := range due {
		if err := s.dispatch(schedule, database.TriggerScheduled); err != nil {
			if err == ErrScheduleRunning {
				slog.Debug("Schedule run still in progress, skipping", "schedule", schedule.Name)
				continue
			}
			slog.Warn("Failed to enqueue IngestRunTask", "schedule", schedule.Name, "error", err)
		}
	}
}

// dispatch claims the schedule's in-flight slot and enqueues a run. The
// slot is released by the task when its execution finishes.
func (s *Scheduler) dispatch(schedule database.Schedule, triggerKind string) error {
	if !s.markRunning(schedule.ID) {
		return ErrScheduleRunning
	}

	task := NewIngestRunTask(schedule, triggerKind, s.runner, s.scheduleRepo, s.statsRepo)
	task.onDone = func() { s.markDone(schedule.ID) }

	if err := s.EnqueueTask(task); err != nil {
		s.markDone(schedule.ID)
		return err
	}
	return nil
}

func (s *Scheduler) markRunning(scheduleID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, ok := s.inflight[scheduleID]; ok {
		return false
	}
	s.inflight[scheduleID] = struct{}{}
	return true
}

func (s *Scheduler) markDone(scheduleID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, scheduleID)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "schedule", task.GetScheduleName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			// The retry waiter joins the WaitGroup so Stop cannot close the
			// queue while a re-enqueue is still pending.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				case <-time.After(retryDelay):
				}

				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
