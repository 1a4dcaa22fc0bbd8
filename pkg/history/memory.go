package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps entries in a map. Nothing survives the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Read(ctx context.Context, url string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[url]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) Update(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.URL] = entry
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, prefix string, limit int) ([]string, error) {
	entries, err := s.List(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	return urls, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matches := make([]Entry, 0, len(s.entries))
	for url, e := range s.entries {
		if strings.HasPrefix(url, prefix) {
			matches = append(matches, e)
		}
	}
	s.mu.RUnlock()

	sortEntries(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// sortEntries orders by LastUsed desc, then Count desc, then URL.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.URL < b.URL
	})
}
