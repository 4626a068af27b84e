package ingest

import (
	"time"
)

// Source types supported by schedules.
const (
	SourceTypeAA  = "aa"
	SourceTypeRSS = "rss"
)

// Media reference types as delivered by the wire source.
const (
	MediaRefPhoto = "photo"
	MediaRefVideo = "video"
)

// MediaRef is an opaque media reference carried on a raw item before
// resolution.
type MediaRef struct {
	URL  string
	Type string
}

// RawItem is a news item as returned by an external source before
// deduplication and persistence. It is never mutated after the fetch.
type RawItem struct {
	SourceID    string // Source-assigned identifier, empty for RSS items without guid
	Title       string
	Link        string
	GroupID     string // AA media group reference, empty when absent
	PublishedAt time.Time
	Category    string // Source-native category label
	Summary     string
	Content     string
	MediaRefs   []MediaRef
}

// SourceConfig is one source definition loaded from SOURCES_DIR. The name
// is derived from the filename.
type SourceConfig struct {
	Name     string   `yaml:"-"`
	Type     string   `yaml:"type"`
	URL      string   `yaml:"url"`
	Proxies  []string `yaml:"proxies"`
	Timeout  int      `yaml:"timeout"` // seconds
	MaxItems int      `yaml:"max_items"`
	Enabled  bool     `yaml:"enabled"`
}

// SearchFilter narrows an AA search call.
type SearchFilter struct {
	Start      time.Time
	End        time.Time
	Category   string
	TypeText   bool
	TypePhoto  bool
	TypeVideo  bool
	Limit      int
}
