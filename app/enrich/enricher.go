package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/ingest"
)

// DocumentFetcher fetches the full document for a source item id. The AA
// client implements it; RSS sources have no document call.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, id string) (*ingest.Document, error)
}

// MediaGroupFetcher resolves a media group reference into member assets.
type MediaGroupFetcher interface {
	GetMediaGroup(ctx context.Context, groupID string) ([]ingest.MediaRef, error)
}

// TextCompleter is the opaque AI rewrite call.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options toggles the enrichment sub-steps per run.
type Options struct {
	FetchDetails bool
	FetchMedia   bool
	UseAI        bool
}

// Result is the canonical-item-shaped output of enrichment. AIFailed is
// reported separately from AIEnhanced so run summaries can count degraded
// items.
type Result struct {
	Title           string
	Summary         string
	Content         string
	Media           []database.MediaItem
	Categories      []string
	AIEnhanced      bool
	AIFailed        bool
	SEOTitle        string
	MetaDescription string
	Keywords        []string
	Hashtags        []string
}

// Enricher runs the optional enrichment sub-steps over a raw item. Every
// sub-step is fail-soft: an error is logged and that sub-step's output
// falls back to the unenriched value. Enrich never returns an error.
type Enricher struct {
	docs  DocumentFetcher
	media MediaGroupFetcher
	ai    TextCompleter
}

func NewEnricher(docs DocumentFetcher, media MediaGroupFetcher, ai TextCompleter) *Enricher {
	return &Enricher{docs: docs, media: media, ai: ai}
}

func (e *Enricher) Enrich(ctx context.Context, item ingest.RawItem, opts Options) Result {
	result := Result{
		Title:   item.Title,
		Summary: item.Summary,
		Content: ingest.FirstNonEmpty(item.Content, item.Summary),
	}

	if opts.FetchDetails && e.docs != nil && item.SourceID != "" {
		if doc, err := e.docs.GetDocument(ctx, item.SourceID); err != nil {
			slog.Warn("Detail fetch failed, using wire payload", "source_id", item.SourceID, "error", err)
		} else {
			result.Title = ingest.FirstNonEmpty(doc.Title, result.Title)
			result.Summary = ingest.FirstNonEmpty(doc.Summary, result.Summary)
			result.Content = ingest.FirstNonEmpty(doc.Content, result.Content)
		}
	}

	result.Media = e.resolveMedia(ctx, item, opts)

	hasVideo := false
	for _, m := range result.Media {
		if m.Type == database.MediaTypeVideo {
			hasVideo = true
			break
		}
	}
	result.Categories = ingest.ResolveCategories(item, hasVideo)

	if opts.UseAI && e.ai != nil {
		e.rewrite(ctx, item, &result)
	}

	return result
}

// resolveMedia builds the ordered media list: media-group members when the
// item references a group, wire refs otherwise, an image scraped from the
// HTML body as a further fallback, and finally a provisional free-stock
// placeholder for text-only items. A placeholder is only ever added when
// zero authentic images resolved.
func (e *Enricher) resolveMedia(ctx context.Context, item ingest.RawItem, opts Options) []database.MediaItem {
	refs := item.MediaRefs

	if opts.FetchMedia && e.media != nil && item.GroupID != "" {
		if members, err := e.media.GetMediaGroup(ctx, item.GroupID); err != nil {
			slog.Warn("Media group fetch failed, using wire refs", "group_id", item.GroupID, "error", err)
		} else if len(members) > 0 {
			refs = members
		}
	}

	media := make([]database.MediaItem, 0, len(refs))
	for _, ref := range refs {
		if ref.URL == "" {
			continue
		}
		media = append(media, database.MediaItem{
			URL:  ref.URL,
			Alt:  item.Title,
			Type: mediaType(ref.Type),
		})
	}

	if !hasPhoto(media) {
		if src := extractImageFromHTML(item.Content); src != "" {
			media = append(media, database.MediaItem{
				URL:  src,
				Alt:  item.Title,
				Type: database.MediaTypePhoto,
			})
		}
	}

	// The placeholder is only for items that resolved no media at all;
	// a video-only item stays without an image.
	if len(media) == 0 {
		media = append(media, freeStockPlaceholder(item.Title))
	}

	return media
}

func (e *Enricher) rewrite(ctx context.Context, item ingest.RawItem, result *Result) {
	prompt := BuildPrompt(result.Title, result.Content)

	completion, err := e.ai.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("AI rewrite failed, keeping original content", "source_id", item.SourceID, "error", err)
		result.AIFailed = true
		return
	}

	enrichment := ParseEnrichment(completion)
	if enrichment.EnhancedContent == "" {
		// Unparseable output counts as a failure, the item degrades.
		slog.Warn("AI response missing enhanced content, keeping original", "source_id", item.SourceID)
		result.AIFailed = true
		return
	}

	result.Content = enrichment.EnhancedContent
	result.SEOTitle = enrichment.SEOTitle
	result.MetaDescription = enrichment.MetaDescription
	result.Keywords = enrichment.Keywords
	result.Hashtags = enrichment.Hashtags
	result.AIEnhanced = true
}

func hasPhoto(media []database.MediaItem) bool {
	for _, m := range media {
		if m.Type == database.MediaTypePhoto && !m.IsFreeStock {
			return true
		}
	}
	return false
}

func mediaType(refType string) string {
	if refType == ingest.MediaRefVideo {
		return database.MediaTypeVideo
	}
	return database.MediaTypePhoto
}

// freeStockPlaceholder synthesizes a provisional image keyed by the first
// 50 characters of the title. It must be superseded as soon as an
// authentic image is discovered for the item.
func freeStockPlaceholder(title string) database.MediaItem {
	fragment := title
	if runes := []rune(fragment); len(runes) > 50 {
		fragment = string(runes[:50])
	}

	return database.MediaItem{
		URL:         fmt.Sprintf("https://source.unsplash.com/800x450/?%s", url.QueryEscape(fragment)),
		Alt:         title,
		Type:        database.MediaTypePhoto,
		IsFreeStock: true,
	}
}

// extractImageFromHTML pulls the first img src out of an HTML fragment.
// RSS bodies frequently embed their lead image instead of using an
// enclosure.
func extractImageFromHTML(htmlBody string) string {
	if !strings.Contains(htmlBody, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img").First().Attr("src")
	return src
}
