package database

import (
	"encoding/json"
	"fmt"
)

var _ StatsRepository = (*StatsRepo)(nil)

// StatsRepo maintains the aggregate stats singleton and the operation log
type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Recompute rebuilds the singleton from a full scan. The per-run counter
// bumps elsewhere are advisory only; this is the source of truth.
func (r *StatsRepo) Recompute() (*SiteStats, error) {
	stats := &SiteStats{
		ByCategory: make(map[string]int),
		ByType:     make(map[string]int),
	}

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'published'),
		       COUNT(*) FILTER (WHERE status = 'draft')
		FROM news_items
	`).Scan(&stats.TotalNews, &stats.PublishedNews, &stats.DraftNews)
	if err != nil {
		return nil, fmt.Errorf("failed to count news items: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT category, COUNT(*)
		FROM news_items, unnest(categories) AS category
		GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	typeRows, err := r.db.Query(`
		SELECT CASE
		         WHEN media @> '[{"type":"video"}]' THEN 'video'
		         WHEN media @> '[{"type":"photo"}]' THEN 'photo'
		         ELSE 'text'
		       END AS item_type,
		       COUNT(*)
		FROM news_items
		GROUP BY item_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count media types: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var itemType string
		var count int
		if err := typeRows.Scan(&itemType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.ByType[itemType] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating type counts: %w", err)
	}

	byCategoryJSON, err := json.Marshal(stats.ByCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category counts: %w", err)
	}
	byTypeJSON, err := json.Marshal(stats.ByType)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal type counts: %w", err)
	}

	err = r.db.QueryRow(`
		UPDATE site_stats
		SET total_news = $1, published_news = $2, draft_news = $3,
		    by_category = $4, by_type = $5, updated_at = NOW()
		WHERE id = 1
		RETURNING updated_at
	`, stats.TotalNews, stats.PublishedNews, stats.DraftNews,
		byCategoryJSON, byTypeJSON).Scan(&stats.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store recomputed stats: %w", err)
	}

	return stats, nil
}

func (r *StatsRepo) Get() (*SiteStats, error) {
	stats := &SiteStats{}
	var byCategoryJSON, byTypeJSON []byte

	err := r.db.QueryRow(`
		SELECT total_news, published_news, draft_news, by_category, by_type, updated_at
		FROM site_stats
		WHERE id = 1
	`).Scan(&stats.TotalNews, &stats.PublishedNews, &stats.DraftNews,
		&byCategoryJSON, &byTypeJSON, &stats.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get site stats: %w", err)
	}

	if err := json.Unmarshal(byCategoryJSON, &stats.ByCategory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal category counts: %w", err)
	}
	if err := json.Unmarshal(byTypeJSON, &stats.ByType); err != nil {
		return nil, fmt.Errorf("failed to unmarshal type counts: %w", err)
	}

	return stats, nil
}

func (r *StatsRepo) AppendOperation(op OperationEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO operation_log (
			schedule_id, schedule_name, trigger_kind, fetched, accepted,
			duplicates, enrich_failures, persisted, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, op.ScheduleID, op.ScheduleName, op.TriggerKind, op.Fetched, op.Accepted,
		op.Duplicates, op.EnrichFailures, op.Persisted, op.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

func (r *StatsRepo) RecentOperations(limit int) ([]OperationEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, schedule_id, schedule_name, trigger_kind, fetched, accepted,
		       duplicates, enrich_failures, persisted, error_message, created_at
		FROM operation_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get operations: %w", err)
	}
	defer rows.Close()

	var entries []OperationEntry
	for rows.Next() {
		var op OperationEntry
		var sid *string
		err := rows.Scan(&op.ID, &sid, &op.ScheduleName, &op.TriggerKind,
			&op.Fetched, &op.Accepted, &op.Duplicates, &op.EnrichFailures,
			&op.Persisted, &op.ErrorMessage, &op.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		op.ScheduleID = sid
		entries = append(entries, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}

	return entries, nil
}
