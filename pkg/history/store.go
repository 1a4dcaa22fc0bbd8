// Package history tracks which socket URLs were used, how often and how
// recently. The Store interface is the gateway to whatever backend holds the
// entries; Touch and Suggest implement the lookup/update protocol on top of it.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tinyland-inc/wspanel/pkg/logger"
)

var ErrNotFound = errors.New("history entry not found")

// Entry is the usage record for one URL.
type Entry struct {
	URL      string    `json:"url"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// Store is the external history gateway. Implementations must be safe for
// concurrent use.
type Store interface {
	// Read returns the entry for url or ErrNotFound.
	Read(ctx context.Context, url string) (Entry, error)
	// Update inserts or replaces the entry keyed by its URL.
	Update(ctx context.Context, entry Entry) error
	// Query returns URLs starting with prefix, most recently used first.
	// A limit <= 0 means no limit.
	Query(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Lister is implemented by stores that can enumerate full entries.
type Lister interface {
	List(ctx context.Context, prefix string, limit int) ([]Entry, error)
}

// Touch records one use of url: an existing entry gets its count incremented
// and LastUsed moved to now, otherwise a fresh entry with count 1 is written.
// A failed read falls back to a fresh entry.
func Touch(ctx context.Context, store Store, url string, now time.Time) (Entry, error) {
	entry, err := store.Read(ctx, url)
	switch {
	case err == nil:
		entry.Count++
		entry.LastUsed = now
	default:
		if !errors.Is(err, ErrNotFound) {
			logger.WarnCF("history", "Read failed, starting fresh entry", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
		}
		entry = Entry{URL: url, Count: 1, LastUsed: now}
	}
	if err := store.Update(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Suggest returns URLs matching prefix. Store failures yield an empty slice.
func Suggest(ctx context.Context, store Store, prefix string, limit int) []string {
	if store == nil {
		return []string{}
	}
	urls, err := store.Query(ctx, strings.TrimSpace(prefix), limit)
	if err != nil {
		logger.WarnCF("history", "Suggestion query failed", map[string]any{
			"prefix": prefix,
			"error":  err.Error(),
		})
		return []string{}
	}
	if urls == nil {
		return []string{}
	}
	return urls
}
