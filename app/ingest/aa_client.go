package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Document is the full-text payload of a single wire item.
type Document struct {
	Title   string
	Summary string
	Content string
}

// AAClient talks to the AA subscriber API: an authenticated search, a
// per-document fetch, and a media-group fetch.
type AAClient struct {
	baseURL    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
}

func NewAAClient(baseURL, username, password, userAgent string, timeout time.Duration) *AAClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AAClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		username:  username,
		password:  password,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type aaSearchResponse struct {
	Data struct {
		Result []aaResultItem `json:"result"`
	} `json:"data"`
}

type aaResultItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Content  string `json:"content"`
	GroupID  string `json:"group_id"`

	// The wire guesses at image field names; first non-empty wins.
	ImageURL  string `json:"image_url"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
}

// Search issues an authenticated search request and maps the results to
// raw items. Items with an unparseable payload are skipped, not fatal.
func (c *AAClient) Search(ctx context.Context, source string, filter SearchFilter) ([]RawItem, error) {
	payload := map[string]interface{}{
		"start_date":      filter.Start.UTC().Format(time.RFC3339),
		"end_date":        "NOW",
		"filter_language": "1",
		"limit":           filter.Limit,
	}
	if !filter.End.IsZero() {
		payload["end_date"] = filter.End.UTC().Format(time.RFC3339)
	}
	if filter.Category != "" {
		payload["filter_category"] = filter.Category
	}
	if types := filterTypes(filter); types != "" {
		payload["filter_type"] = types
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SourceUnavailableError{Source: source, Kind: failureKind(err), Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceUnavailableError{
			Source: source,
			Kind:   FailureStatus,
			Detail: fmt.Sprintf("search returned HTTP %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceUnavailableError{Source: source, Kind: FailureNetwork, Detail: err.Error()}
	}

	var parsed aaSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ParseError{Source: source, Detail: err.Error()}
	}

	items := make([]RawItem, 0, len(parsed.Data.Result))
	for _, result := range parsed.Data.Result {
		item, err := c.mapResult(result)
		if err != nil {
			slog.Warn("Skipping malformed search result", "source", source, "id", result.ID, "error", err)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (c *AAClient) mapResult(result aaResultItem) (RawItem, error) {
	if result.ID == "" {
		return RawItem{}, fmt.Errorf("result has no id")
	}
	if result.Title == "" {
		return RawItem{}, fmt.Errorf("result %s has no title", result.ID)
	}

	item := RawItem{
		SourceID:    result.ID,
		Title:       result.Title,
		GroupID:     result.GroupID,
		Category:    result.Category,
		Summary:     result.Summary,
		Content:     result.Content,
		PublishedAt: parseWireDate(result.Date),
	}

	if imageURL := FirstNonEmpty(result.ImageURL, result.Image, result.Thumbnail); imageURL != "" {
		item.MediaRefs = append(item.MediaRefs, MediaRef{URL: imageURL, Type: MediaRefPhoto})
	}
	if strings.EqualFold(result.Type, "video") {
		item.MediaRefs = append(item.MediaRefs, MediaRef{Type: MediaRefVideo})
	}

	return item, nil
}

type aaDocumentResponse struct {
	Data struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Content string `json:"content"`
		Text    string `json:"text"`
	} `json:"data"`
}

// GetDocument fetches the full document for an item id.
func (c *AAClient) GetDocument(ctx context.Context, id string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/document/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create document request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document %s returned HTTP %d", id, resp.StatusCode)
	}

	var parsed aaDocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}

	return &Document{
		Title:   parsed.Data.Title,
		Summary: parsed.Data.Summary,
		Content: FirstNonEmpty(parsed.Data.Content, parsed.Data.Text),
	}, nil
}

type aaMediaResponse struct {
	Data struct {
		Result []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
			Path string `json:"path"`
		} `json:"result"`
	} `json:"data"`
}

// GetMediaGroup fetches the member assets of a media group, preserving
// source order.
func (c *AAClient) GetMediaGroup(ctx context.Context, groupID string) ([]MediaRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/multimedia/"+groupID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create media group request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media group %s: %w", groupID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media group %s returned HTTP %d", groupID, resp.StatusCode)
	}

	var parsed aaMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode media group %s: %w", groupID, err)
	}

	refs := make([]MediaRef, 0, len(parsed.Data.Result))
	for _, asset := range parsed.Data.Result {
		url := FirstNonEmpty(asset.URL, asset.Path)
		if url == "" {
			continue
		}

		refType := MediaRefPhoto
		if strings.EqualFold(asset.Type, "video") {
			refType = MediaRefVideo
		}
		refs = append(refs, MediaRef{URL: url, Type: refType})
	}

	return refs, nil
}

func filterTypes(filter SearchFilter) string {
	var types []string
	if filter.TypeText {
		types = append(types, "1")
	}
	if filter.TypePhoto {
		types = append(types, "2")
	}
	if filter.TypeVideo {
		types = append(types, "3")
	}
	return strings.Join(types, ",")
}

func parseWireDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	// Some results carry a unix timestamp in seconds.
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func failureKind(err error) string {
	if err == nil {
		return FailureNetwork
	}
	if strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout") {
		return FailureTimeout
	}
	return FailureNetwork
}
