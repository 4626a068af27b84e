package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var _ NewsRepository = (*NewsRepo)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewsRepo handles database operations for news items
type NewsRepo struct {
	db *DB
}

func NewNewsRepo(db *DB) *NewsRepo {
	return &NewsRepo{db: db}
}

func (r *NewsRepo) Insert(item NewsItem) (string, bool, error) {
	mediaJSON, err := json.Marshal(item.Media)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal media: %w", err)
	}

	var id string
	err = r.db.QueryRow(`
		INSERT INTO news_items (
			source, source_id, title, title_hash, summary, content,
			categories, media, status, ai_enhanced, seo_title,
			meta_description, keywords, hashtags, source_published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, item.Source, item.SourceID, item.Title, item.TitleHash, item.Summary,
		item.Content, pq.Array(item.Categories), mediaJSON, item.Status,
		item.AIEnhanced, item.SEOTitle, item.MetaDescription,
		pq.Array(item.Keywords), pq.Array(item.Hashtags), item.SourcePublishedAt).Scan(&id)

	if err == sql.ErrNoRows {
		// A concurrent writer won the unique index race.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to insert news item: %w", err)
	}

	return id, true, nil
}

const newsColumns = `id, source, COALESCE(source_id, ''), source_id IS NULL, title, title_hash,
	summary, content, categories, media, status, ai_enhanced, seo_title,
	meta_description, keywords, hashtags, view_count, source_published_at,
	created_at, updated_at`

func (r *NewsRepo) scanItem(row interface{ Scan(...interface{}) error }) (*NewsItem, error) {
	var item NewsItem
	var sourceID string
	var sourceIDNull bool
	var mediaJSON []byte

	err := row.Scan(
		&item.ID, &item.Source, &sourceID, &sourceIDNull, &item.Title, &item.TitleHash,
		&item.Summary, &item.Content, pq.Array(&item.Categories), &mediaJSON,
		&item.Status, &item.AIEnhanced, &item.SEOTitle, &item.MetaDescription,
		pq.Array(&item.Keywords), pq.Array(&item.Hashtags), &item.ViewCount,
		&item.SourcePublishedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !sourceIDNull {
		item.SourceID = &sourceID
	}

	if err := json.Unmarshal(mediaJSON, &item.Media); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media for item %s: %w", item.ID, err)
	}

	return &item, nil
}

func (r *NewsRepo) GetByID(id string) (*NewsItem, error) {
	row := r.db.QueryRow(`SELECT `+newsColumns+` FROM news_items WHERE id = $1`, id)

	item, err := r.scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news item: %w", err)
	}

	return item, nil
}

func (r *NewsRepo) GetBySourceID(source, sourceID string) (*NewsItem, error) {
	row := r.db.QueryRow(`SELECT `+newsColumns+` FROM news_items WHERE source = $1 AND source_id = $2`, source, sourceID)

	item, err := r.scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news item by source id: %w", err)
	}

	return item, nil
}

func (r *NewsRepo) List(opts NewsListOptions) ([]NewsItem, error) {
	builder := psql.Select(newsColumns).
		From("news_items").
		OrderBy("created_at DESC")

	if opts.Status != "" {
		builder = builder.Where(sq.Eq{"status": opts.Status})
	}
	if opts.Category != "" {
		builder = builder.Where("? = ANY(categories)", opts.Category)
	}
	if opts.Source != "" {
		builder = builder.Where(sq.Eq{"source": opts.Source})
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build news query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list news items: %w", err)
	}
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news rows: %w", err)
	}

	return items, nil
}

func (r *NewsRepo) UpdateStatus(id string, status string) error {
	result, err := r.db.Exec(`
		UPDATE news_items
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'archived'
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("news item %s not found or already archived", id)
	}

	return nil
}

// ReplaceMedia overwrites the media list of an item. Callers enforce the
// free-stock supersession contract before handing the list in; the repo
// additionally drops provisional entries when an authentic photo is present.
func (r *NewsRepo) ReplaceMedia(id string, media []MediaItem) error {
	authentic := false
	for _, m := range media {
		if m.Type == MediaTypePhoto && !m.IsFreeStock {
			authentic = true
			break
		}
	}
	if authentic {
		kept := make([]MediaItem, 0, len(media))
		for _, m := range media {
			if !m.IsFreeStock {
				kept = append(kept, m)
			}
		}
		media = kept
	}

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE news_items
		SET media = $2, updated_at = NOW()
		WHERE id = $1
	`, id, mediaJSON)
	if err != nil {
		return fmt.Errorf("failed to replace media: %w", err)
	}

	return nil
}

func (r *NewsRepo) IncrementViewCount(id string) error {
	_, err := r.db.Exec(`
		UPDATE news_items
		SET view_count = view_count + 1
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

func (r *NewsRepo) ScanIdentifiers(batchSize int, fn func(Identifier) error) error {
	if batchSize <= 0 {
		batchSize = 5000
	}

	lastID := ""
	for {
		rows, err := r.db.Query(`
			SELECT id, source, source_id, title_hash
			FROM news_items
			WHERE status <> 'archived' AND id::text > $1
			ORDER BY id::text
			LIMIT $2
		`, lastID, batchSize)
		if err != nil {
			return fmt.Errorf("failed to scan identifiers: %w", err)
		}

		count := 0
		for rows.Next() {
			var id string
			var ident Identifier
			var sourceID sql.NullString

			if err := rows.Scan(&id, &ident.Source, &sourceID, &ident.TitleHash); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan identifier row: %w", err)
			}
			if sourceID.Valid {
				ident.SourceID = &sourceID.String
			}

			if err := fn(ident); err != nil {
				rows.Close()
				return err
			}

			lastID = id
			count++
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("error iterating identifier rows: %w", err)
		}
		rows.Close()

		if count < batchSize {
			return nil
		}
	}
}
