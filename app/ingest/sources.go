package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceCache loads and caches source definitions from a directory of
// YAML files, one source per file.
type SourceCache struct {
	sourcesDir string
	cache      map[string]*SourceConfig
	mu         sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*SourceConfig),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := sc.LoadSource(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source definition loaded", "source", sourceName, "type", config.Type, "enabled", config.Enabled)
	}

	return nil
}

func (sc *SourceCache) LoadSource(sourceName string) (*SourceConfig, error) {
	configFile := filepath.Join(sc.sourcesDir, sourceName+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	config := &SourceConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse source file: %w", err)
	}

	config.Name = sourceName

	if err := validateSource(config); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", configFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[config.Name] = config

	return config, nil
}

func (sc *SourceCache) GetSource(sourceName string) (*SourceConfig, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	config, ok := sc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", sourceName)
	}
	return config, nil
}

func (sc *SourceCache) GetSources() []*SourceConfig {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sources := make([]*SourceConfig, 0, len(sc.cache))
	for _, config := range sc.cache {
		sources = append(sources, config)
	}
	return sources
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func validateSource(config *SourceConfig) error {
	switch config.Type {
	case SourceTypeAA:
		// AA endpoint and credentials come from application configuration.
	case SourceTypeRSS:
		if config.URL == "" {
			return fmt.Errorf("rss source requires a url")
		}
	default:
		return fmt.Errorf("unknown source type '%s'", config.Type)
	}

	if config.Timeout <= 0 {
		config.Timeout = 15
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 50
	}

	return nil
}
