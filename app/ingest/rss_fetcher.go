package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher retrieves and parses an RSS/Atom feed through an ordered list
// of transport strategies: a direct fetch first, then each configured
// proxy prefix. One pass through the list per invocation, no backoff.
type RSSFetcher struct {
	userAgent  string
	httpClient *http.Client
	parser     *gofeed.Parser
}

func NewRSSFetcher(userAgent string) *RSSFetcher {
	return &RSSFetcher{
		userAgent:  userAgent,
		httpClient: &http.Client{},
		parser:     gofeed.NewParser(),
	}
}

// Fetch walks the transport strategies until one yields content that
// sniffs as RSS/Atom, then parses it into raw items.
func (f *RSSFetcher) Fetch(ctx context.Context, source *SourceConfig) ([]RawItem, error) {
	attempts := make([]string, 0, 1+len(source.Proxies))
	attempts = append(attempts, source.URL)
	for _, proxy := range source.Proxies {
		attempts = append(attempts, proxy+url.QueryEscape(source.URL))
	}

	timeout := time.Duration(source.Timeout) * time.Second
	var failures []string
	sawTimeout := false

	for i, attemptURL := range attempts {
		data, err := f.fetchOnce(ctx, attemptURL, timeout)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				sawTimeout = true
			}
			failures = append(failures, fmt.Sprintf("strategy %d: %v", i+1, err))
			slog.Debug("RSS transport strategy failed", "source", source.Name, "strategy", i+1, "error", err)
			continue
		}

		if !looksLikeFeed(data) {
			failures = append(failures, fmt.Sprintf("strategy %d: response is not RSS/Atom", i+1))
			continue
		}

		return f.parse(source, data)
	}

	kind := FailureExhausted
	if len(failures) == len(attempts) && sawTimeout {
		kind = FailureTimeout
	}

	return nil, &SourceUnavailableError{
		Source: source.Name,
		Kind:   kind,
		Detail: fmt.Sprintf("all %d transport strategies failed: %s", len(attempts), strings.Join(failures, "; ")),
	}
}

func (f *RSSFetcher) fetchOnce(ctx context.Context, fetchURL string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// looksLikeFeed is the cheap sniff applied before handing a body to the
// parser: proxies sometimes return HTML error pages with status 200.
func looksLikeFeed(data []byte) bool {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	return bytes.Contains(head, []byte("<rss")) || bytes.Contains(head, []byte("<feed"))
}

func (f *RSSFetcher) parse(source *SourceConfig, data []byte) ([]RawItem, error) {
	feed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Source: source.Name, Detail: err.Error()}
	}

	limit := source.MaxItems
	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		if item.Title == "" {
			slog.Debug("Skipping feed item without title", "source", source.Name, "link", item.Link)
			continue
		}
		items = append(items, f.normalizeItem(item))
	}

	return items, nil
}

func (f *RSSFetcher) normalizeItem(item *gofeed.Item) RawItem {
	normalized := RawItem{
		SourceID: FirstNonEmpty(item.GUID, item.Link),
		Title:    item.Title,
		Link:     item.Link,
		Summary:  item.Description,
		// content:encoded when present, description otherwise.
		Content: FirstNonEmpty(item.Content, item.Description),
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	}

	if len(item.Categories) > 0 {
		normalized.Category = item.Categories[0]
	}

	// First enclosure wins as the item image (RSS 2.0 allows one per item).
	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		refType := MediaRefPhoto
		if strings.HasPrefix(enclosure.Type, "video/") {
			refType = MediaRefVideo
		}
		normalized.MediaRefs = append(normalized.MediaRefs, MediaRef{URL: enclosure.URL, Type: refType})
		break
	}

	return normalized
}
