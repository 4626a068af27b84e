package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semerproje/haberwire/app/database"
	"github.com/semerproje/haberwire/app/enrich"
	"github.com/semerproje/haberwire/app/ingest"
)

type fakeSearcher struct {
	byCategory map[string][]ingest.RawItem
	errs       map[string]error
	calls      []string
}

func (s *fakeSearcher) Search(ctx context.Context, source string, filter ingest.SearchFilter) ([]ingest.RawItem, error) {
	s.calls = append(s.calls, filter.Category)
	if err, ok := s.errs[filter.Category]; ok {
		return nil, err
	}
	return s.byCategory[filter.Category], nil
}

type fakeFeed struct {
	items []ingest.RawItem
	err   error
}

func (f *fakeFeed) Fetch(ctx context.Context, source *ingest.SourceConfig) ([]ingest.RawItem, error) {
	return f.items, f.err
}

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner(t *testing.T, aa WireSearcher, rss FeedFetcher) (*Runner, *fakeNewsRepo) {
	t.Helper()

	dir := t.TempDir()
	writeSource(t, dir, "aa", "type: aa\nenabled: true\n")
	writeSource(t, dir, "ntv", "type: rss\nurl: https://example.com/rss\nenabled: true\n")
	writeSource(t, dir, "disabled-feed", "type: rss\nurl: https://example.com/rss\nenabled: false\n")

	sources := ingest.NewSourceCache(dir)
	require.NoError(t, sources.Run())

	repo := newFakeNewsRepo()
	index := ingest.NewDedupIndex()
	enricher := enrich.NewEnricher(nil, nil, nil)
	runner := NewRunner(sources, aa, rss, enricher, NewPersister(repo, index), index)
	return runner, repo
}

func aaSchedule(categories []string, maxItems int) database.Schedule {
	return database.Schedule{
		ID:              "sched-1",
		Name:            "aa-pull",
		Source:          "aa",
		Categories:      categories,
		IntervalMinutes: 15,
		Enabled:         true,
		MaxItemsPerRun:  maxItems,
	}
}

func TestRunPersistsFreshItems(t *testing.T) {
	searcher := &fakeSearcher{byCategory: map[string][]ingest.RawItem{
		"gundem": {
			rawItem("aa:1", "Ankara'da Deprem"),
			rawItem("aa:2", "Meclis Bugün Toplanıyor"),
		},
	}}
	runner, repo := newTestRunner(t, searcher, nil)

	report := runner.Run(context.Background(), aaSchedule([]string{"gundem"}, 0))

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Persisted)
	assert.Equal(t, 0, report.Duplicates)
	assert.Empty(t, report.Errors)
	assert.Len(t, repo.items, 2)
}

func TestRunIsIdempotent(t *testing.T) {
	searcher := &fakeSearcher{byCategory: map[string][]ingest.RawItem{
		"gundem": {rawItem("aa:1", "Ankara'da Deprem")},
	}}
	runner, repo := newTestRunner(t, searcher, nil)
	schedule := aaSchedule([]string{"gundem"}, 0)

	first := runner.Run(context.Background(), schedule)
	second := runner.Run(context.Background(), schedule)

	assert.Equal(t, 1, first.Persisted)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Len(t, repo.items, 1)
}

func TestRunSkipsTitleVariants(t *testing.T) {
	// Same story from two wire ids, differing only in punctuation and
	// case: only the first survives.
	searcher := &fakeSearcher{byCategory: map[string][]ingest.RawItem{
		"gundem": {
			rawItem("aa:1", "Ankara'da Deprem!"),
			rawItem("aa:2", "ankara da deprem"),
		},
	}}
	runner, repo := newTestRunner(t, searcher, nil)

	report := runner.Run(context.Background(), aaSchedule([]string{"gundem"}, 0))

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Persisted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Len(t, repo.items, 1)
}

func TestRunSupersedesFreeStockOnRefetch(t *testing.T) {
	// First delivery is text-only, so the stored item gets the provisional
	// placeholder. The wire later re-delivers the same story with its real
	// photograph; the refetch is a duplicate but the image must land.
	item := rawItem("aa:1", "Ankara'da Deprem")
	searcher := &fakeSearcher{byCategory: map[string][]ingest.RawItem{"gundem": {item}}}
	runner, repo := newTestRunner(t, searcher, nil)
	schedule := aaSchedule([]string{"gundem"}, 0)

	first := runner.Run(context.Background(), schedule)
	require.Equal(t, 1, first.Persisted)

	stored, err := repo.GetBySourceID("aa", "aa:1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Media, 1)
	require.True(t, stored.Media[0].IsFreeStock)

	withImage := item
	withImage.MediaRefs = []ingest.MediaRef{{URL: "https://cdn.aa.com.tr/real.jpg", Type: ingest.MediaRefPhoto}}
	searcher.byCategory["gundem"] = []ingest.RawItem{withImage}

	second := runner.Run(context.Background(), schedule)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 1, second.Duplicates)

	stored, err = repo.GetBySourceID("aa", "aa:1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Media, 1)
	assert.Equal(t, "https://cdn.aa.com.tr/real.jpg", stored.Media[0].URL)
	assert.False(t, stored.Media[0].IsFreeStock)
	assert.True(t, stored.HasAuthenticImage())
}

func TestUpgradeMediaLeavesAuthenticItemsAlone(t *testing.T) {
	repo := newFakeNewsRepo()
	index := ingest.NewDedupIndex()
	p := NewPersister(repo, index)

	item := rawItem("aa:2", "Meclis Bugün Toplanıyor")
	item.MediaRefs = []ingest.MediaRef{{URL: "https://cdn.aa.com.tr/original.jpg", Type: ingest.MediaRefPhoto}}
	enriched := enrichedFor(item)
	enriched.Media = []database.MediaItem{{URL: "https://cdn.aa.com.tr/original.jpg", Type: database.MediaTypePhoto}}
	res, err := p.Persist(item, "aa", enriched, false)
	require.NoError(t, err)
	require.True(t, res.Accepted)

	refetch := item
	refetch.MediaRefs = []ingest.MediaRef{{URL: "https://cdn.aa.com.tr/other.jpg", Type: ingest.MediaRefPhoto}}
	require.NoError(t, p.UpgradeMedia(refetch, "aa"))

	stored, err := repo.GetBySourceID("aa", "aa:2")
	require.NoError(t, err)
	require.Len(t, stored.Media, 1)
	assert.Equal(t, "https://cdn.aa.com.tr/original.jpg", stored.Media[0].URL)
}

func TestRunIsolatesCategoryFailures(t *testing.T) {
	searcher := &fakeSearcher{
		byCategory: map[string][]ingest.RawItem{
			"spor": {rawItem("aa:9", "Derbi Golsüz Bitti")},
		},
		errs: map[string]error{
			"gundem": &ingest.SourceUnavailableError{Source: "aa", Kind: ingest.FailureTimeout},
		},
	}
	runner, repo := newTestRunner(t, searcher, nil)

	report := runner.Run(context.Background(), aaSchedule([]string{"gundem", "spor"}, 0))

	assert.Equal(t, []string{"gundem", "spor"}, searcher.calls)
	assert.Equal(t, 1, report.Persisted)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "gundem")
	assert.Len(t, repo.items, 1)
}

func TestRunRespectsMaxItemsPerRun(t *testing.T) {
	searcher := &fakeSearcher{byCategory: map[string][]ingest.RawItem{
		"gundem": {
			rawItem("aa:1", "Birinci Haber"),
			rawItem("aa:2", "İkinci Haber"),
			rawItem("aa:3", "Üçüncü Haber"),
		},
		"spor": {rawItem("aa:4", "Dördüncü Haber")},
	}}
	runner, repo := newTestRunner(t, searcher, nil)

	report := runner.Run(context.Background(), aaSchedule([]string{"gundem", "spor"}, 2))

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Persisted)
	assert.Len(t, repo.items, 2)
	// The budget covers the whole run, not each category.
	assert.Equal(t, []string{"gundem"}, searcher.calls)
}

func TestRunUnknownSource(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeSearcher{}, nil)

	schedule := aaSchedule(nil, 0)
	schedule.Source = "missing"
	report := runner.Run(context.Background(), schedule)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "missing")
	assert.Zero(t, report.Fetched)
}

func TestRunDisabledSource(t *testing.T) {
	feed := &fakeFeed{items: []ingest.RawItem{rawItem("", "Haber")}}
	runner, repo := newTestRunner(t, nil, feed)

	schedule := aaSchedule(nil, 0)
	schedule.Source = "disabled-feed"
	report := runner.Run(context.Background(), schedule)

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "disabled")
	assert.Empty(t, repo.items)
}

func TestRunRSSWithoutCategories(t *testing.T) {
	feed := &fakeFeed{items: []ingest.RawItem{
		{Title: "Dolar Güne Yükselişle Başladı", Link: "https://example.com/a"},
		{Title: "Borsa Rekor Kırdı", Link: "https://example.com/b"},
	}}
	runner, repo := newTestRunner(t, nil, feed)

	schedule := aaSchedule(nil, 0)
	schedule.Source = "ntv"
	report := runner.Run(context.Background(), schedule)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Persisted)
	assert.Len(t, repo.items, 2)
}

func TestReportErrorString(t *testing.T) {
	report := Report{Errors: []string{"category gundem: timeout", "persist \"x\": boom"}}
	assert.Equal(t, "category gundem: timeout; persist \"x\": boom", report.ErrorString())

	empty := Report{}
	assert.Equal(t, "", empty.ErrorString())
}
