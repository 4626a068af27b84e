package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAAClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != "subscriber" || pass != "secret" {
			t.Error("Expected basic auth credentials on search request")
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode search payload: %v", err)
		}
		if payload["filter_category"] != "2" {
			t.Errorf("Expected filter_category '2', got %v", payload["filter_category"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"result":[
			{"id":"aa:100","type":"text","title":"Birinci Haber","date":"2025-05-01T10:00:00Z","category":"2","summary":"özet","thumbnail":"https://cdn.example.com/t.jpg"},
			{"id":"aa:101","type":"video","title":"İkinci Haber","date":"2025-05-01 11:00:00","category":"2","group_id":"g-7"},
			{"id":"","title":"Kimliksiz"}
		]}}`))
	}))
	defer server.Close()

	client := NewAAClient(server.URL, "subscriber", "secret", "test-agent", 5*time.Second)

	items, err := client.Search(context.Background(), "aa", SearchFilter{
		Start:    time.Now().Add(-time.Hour),
		Category: "2",
		TypeText: true,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items (malformed third skipped), got %d", len(items))
	}

	if items[0].SourceID != "aa:100" {
		t.Errorf("Unexpected source ID: %s", items[0].SourceID)
	}
	if len(items[0].MediaRefs) != 1 || items[0].MediaRefs[0].URL != "https://cdn.example.com/t.jpg" {
		t.Errorf("Expected thumbnail fallback as image ref, got %+v", items[0].MediaRefs)
	}
	if items[0].PublishedAt.IsZero() {
		t.Error("Expected RFC3339 date to be parsed")
	}

	if items[1].GroupID != "g-7" {
		t.Errorf("Expected group ID on second item, got %q", items[1].GroupID)
	}
	if items[1].PublishedAt.IsZero() {
		t.Error("Expected fallback date layout to be parsed")
	}
	if len(items[1].MediaRefs) != 1 || items[1].MediaRefs[0].Type != MediaRefVideo {
		t.Errorf("Expected video media ref, got %+v", items[1].MediaRefs)
	}
}

func TestAAClient_SearchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewAAClient(server.URL, "u", "p", "test-agent", 5*time.Second)

	_, err := client.Search(context.Background(), "aa", SearchFilter{Limit: 5})
	if err == nil {
		t.Fatal("Expected error on non-2xx status")
	}

	var unavailable *SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected SourceUnavailableError, got %T", err)
	}
	if unavailable.Kind != FailureStatus {
		t.Errorf("Expected status failure kind, got %s", unavailable.Kind)
	}
}

func TestAAClient_GetDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/document/aa:100" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"title":"Tam Başlık","summary":"özet","text":"tam metin"}}`))
	}))
	defer server.Close()

	client := NewAAClient(server.URL, "u", "p", "test-agent", 5*time.Second)

	doc, err := client.GetDocument(context.Background(), "aa:100")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}

	// content falls back to text when content is absent
	if doc.Content != "tam metin" {
		t.Errorf("Expected text fallback, got %q", doc.Content)
	}
	if doc.Summary != "özet" {
		t.Errorf("Unexpected summary: %q", doc.Summary)
	}
}

func TestAAClient_GetMediaGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/multimedia/g-7" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"result":[
			{"type":"picture","url":"https://cdn.example.com/1.jpg"},
			{"type":"video","path":"https://cdn.example.com/2.mp4"},
			{"type":"picture"}
		]}}`))
	}))
	defer server.Close()

	client := NewAAClient(server.URL, "u", "p", "test-agent", 5*time.Second)

	refs, err := client.GetMediaGroup(context.Background(), "g-7")
	if err != nil {
		t.Fatalf("GetMediaGroup failed: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("Expected 2 refs (entry without url skipped), got %d", len(refs))
	}
	if refs[0].Type != MediaRefPhoto || refs[1].Type != MediaRefVideo {
		t.Errorf("Unexpected ref types: %+v", refs)
	}
	if refs[1].URL != "https://cdn.example.com/2.mp4" {
		t.Errorf("Expected path fallback for video url, got %q", refs[1].URL)
	}
}

func TestParseWireDate(t *testing.T) {
	if parseWireDate("2025-05-01T10:00:00Z").IsZero() {
		t.Error("RFC3339 date should parse")
	}
	if parseWireDate("2025-05-01 10:00:00").IsZero() {
		t.Error("Space-separated date should parse")
	}
	if parseWireDate("1714557600").IsZero() {
		t.Error("Unix timestamp should parse")
	}
	if !parseWireDate("not a date").IsZero() {
		t.Error("Garbage should produce zero time")
	}
}
