// Package keyword provides Bleve keyword search over events and announcements.
package keyword

import (
	"context"

	"github.com/hyperjump/skfed/internal/models"
)

// Document kinds. The kind is stored in its own keyword field so one index can hold both collections.
const (
	KindEvent        = "event"
	KindAnnouncement = "announcement"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Values > 1 make title matches rank higher (e.g. 3.0). Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 1.
	Fuzziness int
}

// Index defines keyword index operations.
type Index interface {
	IndexEvent(ctx context.Context, ev *models.Event) error
	IndexAnnouncement(ctx context.Context, a *models.Announcement) error
	IndexBatch(ctx context.Context, events []models.Event, announcements []models.Announcement) error
	// Search returns the store IDs of documents of the given kind matching query.
	Search(ctx context.Context, kind, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	Delete(ctx context.Context, kind, id string) error
	// IDs returns the store IDs of every indexed document of kind.
	IDs(ctx context.Context, kind string) ([]string, error)
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single keyword search hit. ID is the store ID, not the index document ID.
type Hit struct {
	ID    string
	Score float64
}

// TermDictionary exposes the indexed vocabulary for query correction.
type TermDictionary interface {
	// Terms returns every indexed title/body term with its document frequency.
	Terms() (map[string]uint64, error)
	// Generation changes whenever the index content changes.
	Generation() uint64
}
