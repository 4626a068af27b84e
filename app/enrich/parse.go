package enrich

import (
	"strings"
)

// Enrichment is the structured result of an AI rewrite. Missing labels
// leave zero values; callers fall back to the unenriched fields.
type Enrichment struct {
	EnhancedContent string
	SEOTitle        string
	MetaDescription string
	Keywords        []string
	Hashtags        []string
	Headings        []string
	Bullets         []string
	CallToAction    string
}

const (
	maxSEOTitleLen        = 60
	maxMetaDescriptionLen = 155
)

var enrichmentLabels = []string{
	"ENHANCED_CONTENT:",
	"SEO_TITLE:",
	"META_DESCRIPTION:",
	"KEYWORDS:",
	"HASHTAGS:",
	"HEADINGS:",
	"BULLETS:",
	"CTA:",
}

// ParseEnrichment extracts labeled sections from a completion. The format
// is deliberately not JSON; partial or missing labels degrade to empty
// values instead of failing.
func ParseEnrichment(raw string) Enrichment {
	sections := splitLabeled(raw)

	return Enrichment{
		EnhancedContent: sections["ENHANCED_CONTENT:"],
		SEOTitle:        truncateRunes(sections["SEO_TITLE:"], maxSEOTitleLen),
		MetaDescription: truncateRunes(sections["META_DESCRIPTION:"], maxMetaDescriptionLen),
		Keywords:        splitList(sections["KEYWORDS:"]),
		Hashtags:        splitList(sections["HASHTAGS:"]),
		Headings:        splitList(sections["HEADINGS:"]),
		Bullets:         splitList(sections["BULLETS:"]),
		CallToAction:    sections["CTA:"],
	}
}

// splitLabeled walks the completion line by line, accumulating everything
// after a label until the next label starts.
func splitLabeled(raw string) map[string]string {
	sections := make(map[string]string)

	current := ""
	var buf []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		matched := false
		for _, label := range enrichmentLabels {
			if strings.HasPrefix(trimmed, label) {
				flush()
				current = label
				if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, label)); rest != "" {
					buf = append(buf, rest)
				}
				matched = true
				break
			}
		}

		if !matched && current != "" {
			buf = append(buf, line)
		}
	}
	flush()

	return sections
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	// Lists arrive comma-separated, sometimes as dash bullets on their
	// own lines.
	raw = strings.ReplaceAll(raw, "\n", ",")

	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "-"))
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
