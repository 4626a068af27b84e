package ingest

import (
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Errorf("Expected 'b', got %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Errorf("Expected empty string for no arguments, got %q", got)
	}
	if got := FirstNonEmpty("", ""); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestMapSourceCategory(t *testing.T) {
	cases := map[string]string{
		"1":       "gundem",
		"2":       "spor",
		"Ekonomi": "ekonomi",
		"SPOR":    "spor",
		"bilinmeyen-kategori": "gundem",
		"": "gundem",
	}

	for input, want := range cases {
		if got := MapSourceCategory(input); got != want {
			t.Errorf("MapSourceCategory(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveCategories_SourceMapping(t *testing.T) {
	item := RawItem{Title: "Sade bir başlık", Category: "3"}

	categories := ResolveCategories(item, false)

	if len(categories) != 1 || categories[0] != "ekonomi" {
		t.Errorf("Expected [ekonomi], got %v", categories)
	}
}

func TestResolveCategories_VideoTag(t *testing.T) {
	item := RawItem{Title: "Sade bir başlık", Category: "1"}

	categories := ResolveCategories(item, true)

	found := false
	for _, c := range categories {
		if c == VideoCategoryTag {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s tag for video items, got %v", VideoCategoryTag, categories)
	}
}

func TestResolveCategories_KeywordHeuristic(t *testing.T) {
	item := RawItem{Title: "Dolar kuru rekor kırdı", Category: "1"}

	categories := ResolveCategories(item, false)

	foundGundem, foundEkonomi := false, false
	for _, c := range categories {
		switch c {
		case "gundem":
			foundGundem = true
		case "ekonomi":
			foundEkonomi = true
		}
	}
	if !foundGundem || !foundEkonomi {
		t.Errorf("Expected both gundem and ekonomi, got %v", categories)
	}
}

func TestResolveCategories_Deduplicated(t *testing.T) {
	// Source category and keyword heuristic both resolve to spor.
	item := RawItem{Title: "Transfer haberi: yeni futbol sezonu", Category: "spor"}

	categories := ResolveCategories(item, false)

	count := 0
	for _, c := range categories {
		if c == "spor" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected spor exactly once, got %v", categories)
	}
}
