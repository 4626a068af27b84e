package ingest

import (
	"strings"
)

// FirstNonEmpty returns the first non-empty string, the ordered-fallback
// primitive used when a source guesses at field names.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// aaCategories maps AA wire category ids/labels to site taxonomy slugs.
var aaCategories = map[string]string{
	"1":         "gundem",
	"2":         "spor",
	"3":         "ekonomi",
	"4":         "saglik",
	"5":         "bilim-teknoloji",
	"6":         "politika",
	"7":         "kultur-sanat-yasam",
	"genel":     "gundem",
	"guncel":    "gundem",
	"spor":      "spor",
	"ekonomi":   "ekonomi",
	"saglik":    "saglik",
	"teknoloji": "bilim-teknoloji",
	"politika":  "politika",
	"kultur":    "kultur-sanat-yasam",
	"dunya":     "dunya",
	"egitim":    "egitim",
}

// categoryKeywords drives the keyword-in-title heuristic. Substring match
// against the normalized title, coarse on purpose.
var categoryKeywords = map[string][]string{
	"spor":            {"maç", "gol", "transfer", "futbol", "basketbol", "şampiyon"},
	"ekonomi":         {"dolar", "euro", "borsa", "enflasyon", "faiz", "ihracat"},
	"saglik":          {"sağlık", "hastane", "aşı", "tedavi", "salgın"},
	"bilim-teknoloji": {"yapay zeka", "uydu", "teknoloji", "yazılım", "uzay"},
	"politika":        {"seçim", "meclis", "cumhurbaşkanı", "bakan", "parti"},
	"dunya":           {"abd", "avrupa", "birleşmiş milletler", "nato"},
}

// keywordOrder fixes the heuristic scan order so category lists are stable
// across runs.
var keywordOrder = []string{"spor", "ekonomi", "saglik", "bilim-teknoloji", "politika", "dunya"}

const defaultCategory = "gundem"

// VideoCategoryTag is attached when an item resolves any video media.
const VideoCategoryTag = "video-haberler"

// MapSourceCategory translates a source-native category label to a site
// taxonomy slug, falling back to the default category.
func MapSourceCategory(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if slug, ok := aaCategories[key]; ok {
		return slug
	}
	return defaultCategory
}

// ResolveCategories combines the static source-category mapping, a
// media-driven tag, and the title keyword heuristic. The result is
// deduplicated and keeps discovery order.
func ResolveCategories(item RawItem, hasVideo bool) []string {
	seen := make(map[string]struct{})
	var categories []string

	add := func(slug string) {
		if slug == "" {
			return
		}
		if _, ok := seen[slug]; ok {
			return
		}
		seen[slug] = struct{}{}
		categories = append(categories, slug)
	}

	add(MapSourceCategory(item.Category))

	if hasVideo {
		add(VideoCategoryTag)
	}

	title := NormalizeTitle(item.Title)
	for _, slug := range keywordOrder {
		for _, keyword := range categoryKeywords[slug] {
			if strings.Contains(title, NormalizeTitle(keyword)) {
				add(slug)
				break
			}
		}
	}

	return categories
}
