package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/pipeline"
)

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*database.Schedule
	runs      []recordedRun
}

type recordedRun struct {
	id        string
	runAt     time.Time
	nextRunAt time.Time
	items     int
	succeeded bool
	errMsg    string
}

func newFakeScheduleRepo(schedules ...database.Schedule) *fakeScheduleRepo {
	repo := &fakeScheduleRepo{schedules: make(map[string]*database.Schedule)}
	for i := range schedules {
		s := schedules[i]
		repo.schedules[s.ID] = &s
	}
	return repo
}

func (r *fakeScheduleRepo) Create(s database.Schedule) (string, error) { return s.ID, nil }

func (r *fakeScheduleRepo) GetByID(id string) (*database.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeScheduleRepo) List() ([]database.Schedule, error) { return nil, nil }
func (r *fakeScheduleRepo) Update(s database.Schedule) error   { return nil }
func (r *fakeScheduleRepo) SetEnabled(id string, e bool) error { return nil }
func (r *fakeScheduleRepo) Delete(id string) error             { return nil }

func (r *fakeScheduleRepo) GetDue(now time.Time, limit int) ([]database.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []database.Schedule
	for _, s := range r.schedules {
		if !s.Enabled {
			continue
		}
		if s.NextRunAt == nil || !s.NextRunAt.After(now) {
			due = append(due, *s)
		}
	}
	return due, nil
}

func (r *fakeScheduleRepo) RecordRun(id string, runAt, nextRunAt time.Time, items int, succeeded bool, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, recordedRun{id, runAt, nextRunAt, items, succeeded, errMsg})
	if s, ok := r.schedules[id]; ok {
		s.LastRunAt = &runAt
		s.NextRunAt = &nextRunAt
	}
	return nil
}

type fakeStatsRepo struct {
	mu           sync.Mutex
	ops          []database.OperationEntry
	recomputes   int
	recomputeErr error
}

func (r *fakeStatsRepo) Recompute() (*database.SiteStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputes++
	if r.recomputeErr != nil {
		return nil, r.recomputeErr
	}
	return &database.SiteStats{}, nil
}

func (r *fakeStatsRepo) recomputeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recomputes
}

func (r *fakeStatsRepo) Get() (*database.SiteStats, error) { return &database.SiteStats{}, nil }

func (r *fakeStatsRepo) AppendOperation(op database.OperationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return nil
}

func (r *fakeStatsRepo) RecentOperations(limit int) ([]database.OperationEntry, error) {
	return nil, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	report  pipeline.Report
	runs    int
}

func (f *fakeRunner) Run(ctx context.Context, schedule database.Schedule) pipeline.Report {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- schedule.ID
	}
	if f.release != nil {
		<-f.release
	}
	return f.report
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func newTestScheduler(repo *fakeScheduleRepo, stats *fakeStatsRepo, runner RunExecutor) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduleRepo: repo,
		statsRepo:    stats,
		runner:       runner,
		interval:     time.Hour,
		workerCount:  2,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 10),
		inflight:     make(map[string]struct{}),
	}
}

func testSchedule(id string) database.Schedule {
	return database.Schedule{
		ID:              id,
		Name:            "aa-pull",
		Source:          "aa",
		IntervalMinutes: 30,
		Enabled:         true,
		MaxItemsPerRun:  10,
	}
}

func TestIngestRunTaskRecordsRun(t *testing.T) {
	schedule := testSchedule("sched-1")
	repo := newFakeScheduleRepo(schedule)
	stats := &fakeStatsRepo{}
	runner := &fakeRunner{report: pipeline.Report{Fetched: 5, Accepted: 3, Duplicates: 2, Persisted: 3}}

	task := NewIngestRunTask(schedule, database.TriggerScheduled, runner, repo, stats)
	before := time.Now().UTC()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(repo.runs))
	}
	run := repo.runs[0]
	if !run.succeeded {
		t.Error("expected run to be recorded as succeeded")
	}
	if run.items != 3 {
		t.Errorf("expected 3 items processed, got %d", run.items)
	}

	// Next due time is the run start plus the schedule interval.
	wantNext := run.runAt.Add(30 * time.Minute)
	if !run.nextRunAt.Equal(wantNext) {
		t.Errorf("expected next run at %v, got %v", wantNext, run.nextRunAt)
	}
	if run.runAt.Before(before) {
		t.Errorf("run time %v precedes task start %v", run.runAt, before)
	}

	if len(stats.ops) != 1 {
		t.Fatalf("expected 1 operation record, got %d", len(stats.ops))
	}
	if stats.ops[0].TriggerKind != database.TriggerScheduled {
		t.Errorf("expected scheduled trigger, got %q", stats.ops[0].TriggerKind)
	}
	if stats.recomputes != 1 {
		t.Errorf("expected 1 stats recompute, got %d", stats.recomputes)
	}
}

func TestIngestRunTaskRecordsFailures(t *testing.T) {
	schedule := testSchedule("sched-1")
	repo := newFakeScheduleRepo(schedule)
	stats := &fakeStatsRepo{}
	runner := &fakeRunner{report: pipeline.Report{Errors: []string{"category gundem: timeout"}}}

	task := NewIngestRunTask(schedule, database.TriggerScheduled, runner, repo, stats)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := repo.runs[0]
	if run.succeeded {
		t.Error("expected run to be recorded as failed")
	}
	if run.errMsg != "category gundem: timeout" {
		t.Errorf("unexpected error message: %q", run.errMsg)
	}
	// A failed run still advances the due time; the next tick retries.
	if run.nextRunAt.IsZero() {
		t.Error("expected next run time to be set")
	}
	if stats.recomputes != 0 {
		t.Errorf("expected no recompute after empty run, got %d", stats.recomputes)
	}
}

func TestIngestRunTaskDoesNotRetry(t *testing.T) {
	task := NewIngestRunTask(testSchedule("sched-1"), database.TriggerManual, &fakeRunner{}, newFakeScheduleRepo(), &fakeStatsRepo{})
	if task.CanRetry() {
		t.Error("ingest run tasks must not retry")
	}
}

func TestSchedulerSingleFlight(t *testing.T) {
	schedule := testSchedule("sched-1")
	repo := newFakeScheduleRepo(schedule)
	stats := &fakeStatsRepo{}
	runner := &fakeRunner{started: make(chan string, 1), release: make(chan struct{})}

	s := newTestScheduler(repo, stats, runner)
	s.Start()
	defer s.Stop()

	if err := s.RunScheduleNow("sched-1"); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	<-runner.started

	if !s.IsRunning("sched-1") {
		t.Error("expected schedule to be reported as running")
	}
	if err := s.RunScheduleNow("sched-1"); err != ErrScheduleRunning {
		t.Errorf("expected ErrScheduleRunning, got %v", err)
	}

	// A tick while the run is in flight must not enqueue a second run.
	s.enqueueDueRuns()
	if got := runner.runCount(); got != 1 {
		t.Errorf("expected 1 run in flight, got %d", got)
	}

	close(runner.release)
	waitFor(t, func() bool { return !s.IsRunning("sched-1") })

	if err := s.RunScheduleNow("sched-1"); err != nil {
		t.Errorf("trigger after completion failed: %v", err)
	}
}

func TestSchedulerSkipsNotDue(t *testing.T) {
	schedule := testSchedule("sched-1")
	future := time.Now().UTC().Add(time.Hour)
	schedule.NextRunAt = &future
	repo := newFakeScheduleRepo(schedule)
	runner := &fakeRunner{}

	s := newTestScheduler(repo, &fakeStatsRepo{}, runner)
	s.Start()
	defer s.Stop()

	s.enqueueDueRuns()
	time.Sleep(50 * time.Millisecond)

	if got := runner.runCount(); got != 0 {
		t.Errorf("expected no runs for a schedule not yet due, got %d", got)
	}
}

func TestSchedulerPicksUpOverdueAtStartup(t *testing.T) {
	// A schedule whose due time passed while the process was down runs on
	// the first pass without waiting for a tick.
	schedule := testSchedule("sched-1")
	past := time.Now().UTC().Add(-time.Hour)
	schedule.NextRunAt = &past
	repo := newFakeScheduleRepo(schedule)
	runner := &fakeRunner{}

	s := newTestScheduler(repo, &fakeStatsRepo{}, runner)
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return runner.runCount() == 1 })
}

func TestSchedulerStopWithPendingRetry(t *testing.T) {
	// A failing retryable task leaves a waiter sleeping before the
	// re-enqueue. Stop must wait for it instead of closing the queue
	// underneath it.
	stats := &fakeStatsRepo{recomputeErr: errors.New("stats store offline")}

	s := newTestScheduler(newFakeScheduleRepo(), stats, &fakeRunner{})
	s.Start()

	if err := s.EnqueueTask(NewRecomputeStatsTask(stats)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waitFor(t, func() bool { return stats.recomputeCount() >= 1 })

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop while a retry was pending")
	}
}

func TestSchedulerRunNowUnknownSchedule(t *testing.T) {
	s := newTestScheduler(newFakeScheduleRepo(), &fakeStatsRepo{}, &fakeRunner{})
	if err := s.RunScheduleNow("missing"); err == nil {
		t.Error("expected error for unknown schedule")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
