package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var _ ScheduleRepository = (*ScheduleRepo)(nil)

// ScheduleRepo handles database operations for ingestion schedules
type ScheduleRepo struct {
	db *DB
}

func NewScheduleRepo(db *DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

const scheduleColumns = `id, name, source, categories, interval_minutes, enabled,
	max_items_per_run, auto_publish, ai_enabled, last_run_at, next_run_at,
	total_runs, total_items_processed, last_run_succeeded,
	COALESCE(last_run_error, ''), created_at, updated_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*Schedule, error) {
	var s Schedule
	err := row.Scan(
		&s.ID, &s.Name, &s.Source, pq.Array(&s.Categories), &s.IntervalMinutes,
		&s.Enabled, &s.MaxItemsPerRun, &s.AutoPublish, &s.AIEnabled,
		&s.LastRunAt, &s.NextRunAt, &s.TotalRuns, &s.TotalItemsProcessed,
		&s.LastRunSucceeded, &s.LastRunError, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepo) Create(s Schedule) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO schedules (
			name, source, categories, interval_minutes, enabled,
			max_items_per_run, auto_publish, ai_enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, s.Name, s.Source, pq.Array(s.Categories), s.IntervalMinutes, s.Enabled,
		s.MaxItemsPerRun, s.AutoPublish, s.AIEnabled).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create schedule: %w", err)
	}
	return id, nil
}

func (r *ScheduleRepo) GetByID(id string) (*Schedule, error) {
	row := r.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)

	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return s, nil
}

func (r *ScheduleRepo) List() ([]Schedule, error) {
	rows, err := r.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}

	return schedules, nil
}

func (r *ScheduleRepo) Update(s Schedule) error {
	result, err := r.db.Exec(`
		UPDATE schedules
		SET name = $2, source = $3, categories = $4, interval_minutes = $5,
		    enabled = $6, max_items_per_run = $7, auto_publish = $8,
		    ai_enabled = $9, updated_at = NOW()
		WHERE id = $1
	`, s.ID, s.Name, s.Source, pq.Array(s.Categories), s.IntervalMinutes,
		s.Enabled, s.MaxItemsPerRun, s.AutoPublish, s.AIEnabled)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule %s not found", s.ID)
	}

	return nil
}

func (r *ScheduleRepo) SetEnabled(id string, enabled bool) error {
	// Disabling clears next_run_at so no future run is scheduled; enabling
	// leaves it NULL, which makes the schedule due on the next tick.
	_, err := r.db.Exec(`
		UPDATE schedules
		SET enabled = $2,
		    next_run_at = CASE WHEN $2 THEN next_run_at ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set schedule enabled: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) GetDue(now time.Time, limit int) ([]Schedule, error) {
	rows, err := r.db.Query(`
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE enabled = TRUE
		  AND (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY COALESCE(next_run_at, '1970-01-01'::timestamptz)
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}

	return schedules, nil
}

func (r *ScheduleRepo) RecordRun(id string, runAt, nextRunAt time.Time, itemsProcessed int, succeeded bool, errMsg string) error {
	var errVal interface{}
	if errMsg != "" {
		errVal = errMsg
	}

	_, err := r.db.Exec(`
		UPDATE schedules
		SET last_run_at = $2, next_run_at = $3,
		    total_runs = total_runs + 1,
		    total_items_processed = total_items_processed + $4,
		    last_run_succeeded = $5, last_run_error = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, nextRunAt, itemsProcessed, succeeded, errVal)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}
