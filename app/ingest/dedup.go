package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var turkishLower = cases.Lower(language.Turkish)

// NormalizeTitle produces the canonical form a title is fingerprinted
// from: Turkish-locale lowercase, punctuation replaced with spaces,
// whitespace runs collapsed, trimmed. The function is idempotent.
func NormalizeTitle(title string) string {
	lowered := turkishLower.String(title)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleHash returns the normalized-title fingerprint used for coarse
// duplicate detection. Exact equality only; no fuzzy matching.
func TitleHash(title string) string {
	hash := sha256.Sum256([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(hash[:])
}

// DedupIndex is the process-local cache of identifiers already persisted.
// It is seeded from the store at boot and only ever widened afterwards.
type DedupIndex struct {
	mu              sync.RWMutex
	seenSourceIDs   map[string]struct{}
	seenTitleHashes map[string]struct{}
}

func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		seenSourceIDs:   make(map[string]struct{}),
		seenTitleHashes: make(map[string]struct{}),
	}
}

func sourceKey(source, sourceID string) string {
	return source + "|" + sourceID
}

// Add records an identity as seen. Empty components are ignored.
func (idx *DedupIndex) Add(source, sourceID, titleHash string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if sourceID != "" {
		idx.seenSourceIDs[sourceKey(source, sourceID)] = struct{}{}
	}
	if titleHash != "" {
		idx.seenTitleHashes[titleHash] = struct{}{}
	}
}

func (idx *DedupIndex) HasSourceID(source, sourceID string) bool {
	if sourceID == "" {
		return false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.seenSourceIDs[sourceKey(source, sourceID)]
	return ok
}

func (idx *DedupIndex) HasTitleHash(titleHash string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.seenTitleHashes[titleHash]
	return ok
}

// Reserve atomically claims an identity ahead of a write. It returns false
// if any component is already claimed, in which case nothing is recorded.
// A successful reservation must be released if the write fails, so the
// identity can be retried on a later run.
func (idx *DedupIndex) Reserve(source, sourceID, titleHash string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if sourceID != "" {
		if _, ok := idx.seenSourceIDs[sourceKey(source, sourceID)]; ok {
			return false
		}
	}
	if titleHash != "" {
		if _, ok := idx.seenTitleHashes[titleHash]; ok {
			return false
		}
	}

	if sourceID != "" {
		idx.seenSourceIDs[sourceKey(source, sourceID)] = struct{}{}
	}
	if titleHash != "" {
		idx.seenTitleHashes[titleHash] = struct{}{}
	}
	return true
}

// Release withdraws a reservation after a failed write.
func (idx *DedupIndex) Release(source, sourceID, titleHash string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if sourceID != "" {
		delete(idx.seenSourceIDs, sourceKey(source, sourceID))
	}
	if titleHash != "" {
		delete(idx.seenTitleHashes, titleHash)
	}
}

// Size returns the number of tracked source IDs and title hashes.
func (idx *DedupIndex) Size() (int, int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.seenSourceIDs), len(idx.seenTitleHashes)
}

// FilterNew returns the items not yet seen by the index, in original
// order. An item is rejected when its source ID or title hash is already
// indexed, or when its title hash collides with an earlier item in the
// same batch. The index itself is not mutated here; that happens only
// after a successful write.
func FilterNew(items []RawItem, source string, idx *DedupIndex) []RawItem {
	accepted := make([]RawItem, 0, len(items))
	batchHashes := make(map[string]struct{}, len(items))

	for _, item := range items {
		hash := TitleHash(item.Title)

		if idx.HasSourceID(source, item.SourceID) {
			continue
		}
		if idx.HasTitleHash(hash) {
			continue
		}
		if _, ok := batchHashes[hash]; ok {
			continue
		}

		batchHashes[hash] = struct{}{}
		accepted = append(accepted, item)
	}

	return accepted
}
