package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/enrich"
	"github.com/semerproje/haberwire/app/ingest"
)

// ReasonDuplicateAtWrite marks an item rejected by the final duplicate
// check, after the batch-level filter already let it through.
const ReasonDuplicateAtWrite = "duplicate-at-write"

// PersistResult is the structured outcome of one persist attempt. A
// duplicate is an expected outcome, not an error.
type PersistResult struct {
	Accepted bool
	ID       string
	Reason   string
}

// Persister writes enriched items, guarding the at-most-one-per-identity
// contract. The identity is reserved in the index before the write and
// released if the write fails; the reservation is the only place index
// state is widened during a run.
type Persister struct {
	newsRepo database.NewsRepository
	index    *ingest.DedupIndex
}

func NewPersister(newsRepo database.NewsRepository, index *ingest.DedupIndex) *Persister {
	return &Persister{newsRepo: newsRepo, index: index}
}

func (p *Persister) Persist(raw ingest.RawItem, source string, enriched enrich.Result, autoPublish bool) (PersistResult, error) {
	titleHash := ingest.TitleHash(raw.Title)

	// Re-check immediately before writing: a concurrent run may have
	// accepted the same identity since the batch filter ran.
	if !p.index.Reserve(source, raw.SourceID, titleHash) {
		return PersistResult{Reason: ReasonDuplicateAtWrite}, nil
	}

	item := database.NewsItem{
		Source:          source,
		Title:           enriched.Title,
		TitleHash:       titleHash,
		Summary:         enriched.Summary,
		Content:         enriched.Content,
		Categories:      enriched.Categories,
		Media:           enriched.Media,
		Status:          database.StatusDraft,
		AIEnhanced:      enriched.AIEnhanced,
		SEOTitle:        enriched.SEOTitle,
		MetaDescription: enriched.MetaDescription,
		Keywords:        enriched.Keywords,
		Hashtags:        enriched.Hashtags,
	}
	if raw.SourceID != "" {
		sourceID := raw.SourceID
		item.SourceID = &sourceID
	}
	if !raw.PublishedAt.IsZero() {
		publishedAt := raw.PublishedAt
		item.SourcePublishedAt = &publishedAt
	}
	if autoPublish {
		item.Status = database.StatusPublished
	}

	id, inserted, err := p.newsRepo.Insert(item)
	if err != nil {
		// Withdraw the claim so the identity can be retried later.
		p.index.Release(source, raw.SourceID, titleHash)
		return PersistResult{}, fmt.Errorf("failed to persist item: %w", err)
	}
	if !inserted {
		// The database unique index caught a racing writer from another
		// process. The identity stays claimed: it exists in the store.
		slog.Debug("Duplicate caught at write", "source", source, "source_id", raw.SourceID)
		return PersistResult{Reason: ReasonDuplicateAtWrite}, nil
	}

	return PersistResult{Accepted: true, ID: id}, nil
}

// UpgradeMedia supersedes a stored free-stock placeholder when a refetch of
// the same wire item now carries an authentic image. Items without a
// provisional placeholder, or already holding an authentic image, are left
// untouched.
func (p *Persister) UpgradeMedia(raw ingest.RawItem, source string) error {
	incoming := authenticMedia(raw)
	if len(incoming) == 0 {
		return nil
	}

	stored, err := p.newsRepo.GetBySourceID(source, raw.SourceID)
	if err != nil {
		return fmt.Errorf("failed to look up stored item: %w", err)
	}
	if stored == nil || stored.HasAuthenticImage() {
		return nil
	}

	hasPlaceholder := false
	for _, m := range stored.Media {
		if m.IsFreeStock {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		return nil
	}

	// ReplaceMedia drops the free-stock entries once an authentic photo is
	// in the list.
	media := append(append([]database.MediaItem(nil), stored.Media...), incoming...)
	if err := p.newsRepo.ReplaceMedia(stored.ID, media); err != nil {
		return fmt.Errorf("failed to replace media: %w", err)
	}

	slog.Info("Free-stock placeholder superseded", "source", source, "source_id", raw.SourceID, "id", stored.ID)
	return nil
}

// authenticMedia maps the raw item's photo references onto store entries.
func authenticMedia(raw ingest.RawItem) []database.MediaItem {
	var media []database.MediaItem
	for _, ref := range raw.MediaRefs {
		if ref.URL == "" || ref.Type == ingest.MediaRefVideo {
			continue
		}
		media = append(media, database.MediaItem{
			URL:  ref.URL,
			Alt:  raw.Title,
			Type: database.MediaTypePhoto,
		})
	}
	return media
}
