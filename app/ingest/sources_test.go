package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
}

func TestSourceCache_Run(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "aa.yml", "type: aa\nenabled: true\nmax_items: 20\n")
	writeSourceFile(t, dir, "ntv.yml", "type: rss\nurl: https://www.ntv.com.tr/gundem.rss\nenabled: true\nproxies:\n  - https://proxy.example.com/get?url=\n")

	cache := NewSourceCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cache.GetSourceCount() != 2 {
		t.Errorf("Expected 2 sources, got %d", cache.GetSourceCount())
	}

	aa, err := cache.GetSource("aa")
	if err != nil {
		t.Fatalf("GetSource(aa) failed: %v", err)
	}
	if aa.Type != SourceTypeAA || aa.MaxItems != 20 {
		t.Errorf("Unexpected aa source: %+v", aa)
	}
	if aa.Timeout != 15 {
		t.Errorf("Expected default timeout 15, got %d", aa.Timeout)
	}

	ntv, err := cache.GetSource("ntv")
	if err != nil {
		t.Fatalf("GetSource(ntv) failed: %v", err)
	}
	if len(ntv.Proxies) != 1 {
		t.Errorf("Expected 1 proxy, got %d", len(ntv.Proxies))
	}
}

func TestSourceCache_RejectsInvalidSource(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "broken.yml", "type: rss\n") // missing url

	cache := NewSourceCache(dir)
	if err := cache.Run(); err == nil {
		t.Error("Expected error for RSS source without URL")
	}
}

func TestSourceCache_UnknownType(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "odd.yml", "type: telex\nurl: https://example.com\n")

	cache := NewSourceCache(dir)
	if err := cache.Run(); err == nil {
		t.Error("Expected error for unknown source type")
	}
}

func TestSourceCache_MissingDirIsNotAnError(t *testing.T) {
	cache := NewSourceCache("/nonexistent/sources")
	if err := cache.Run(); err != nil {
		t.Errorf("Missing sources dir should not be an error: %v", err)
	}
}

func TestSourceCache_GetUnknownSource(t *testing.T) {
	cache := NewSourceCache(t.TempDir())
	if _, err := cache.GetSource("yok"); err == nil {
		t.Error("Expected error for unknown source name")
	}
}
