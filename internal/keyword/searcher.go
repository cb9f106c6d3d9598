package keyword

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/internal/storage"
	"go.uber.org/zap"
)

// RecordGetter loads the records behind keyword hits.
type RecordGetter interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error)
}

// Searcher answers event and announcement searches from the keyword index,
// resolving hits through the store so results carry current field values.
type Searcher struct {
	index     Index
	store     RecordGetter
	corrector *Corrector
	opts      *SearchOptions
	logger    *zap.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithCorrector retries a search with a spelling-corrected query when the first pass finds nothing.
func WithCorrector(c *Corrector) SearcherOption {
	return func(s *Searcher) {
		s.corrector = c
	}
}

// WithSearchOptions overrides the default search options.
func WithSearchOptions(opts *SearchOptions) SearcherOption {
	return func(s *Searcher) {
		s.opts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) SearcherOption {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a Searcher.
func NewSearcher(index Index, store RecordGetter, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		index:  index,
		store:  store,
		opts:   &SearchOptions{TitleBoost: 2.0},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchEvents returns events matching term, best match first.
func (s *Searcher) SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error) {
	hits, err := s.search(ctx, KindEvent, term, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(hits))
	for _, h := range hits {
		ev, err := s.store.GetEvent(ctx, h.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Debug("Skipping stale index entry", zap.String("kind", KindEvent), zap.String("id", h.ID))
				continue
			}
			return nil, fmt.Errorf("failed to load event %s: %w", h.ID, err)
		}
		out = append(out, *ev)
	}
	return out, nil
}

// SearchAnnouncements returns announcements matching term, best match first.
func (s *Searcher) SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error) {
	hits, err := s.search(ctx, KindAnnouncement, term, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Announcement, 0, len(hits))
	for _, h := range hits {
		a, err := s.store.GetAnnouncement(ctx, h.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Debug("Skipping stale index entry", zap.String("kind", KindAnnouncement), zap.String("id", h.ID))
				continue
			}
			return nil, fmt.Errorf("failed to load announcement %s: %w", h.ID, err)
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *Searcher) search(ctx context.Context, kind, term string, limit int) ([]*Hit, error) {
	hits, err := s.index.Search(ctx, kind, term, limit, s.opts)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 || s.corrector == nil {
		return hits, nil
	}
	corrected, err := s.corrector.Correct(term)
	if err != nil {
		s.logger.Warn("Query correction failed", zap.Error(err))
		return hits, nil
	}
	if corrected == term {
		return hits, nil
	}
	s.logger.Debug("Retrying search with corrected query",
		zap.String("kind", kind),
		zap.String("query", term),
		zap.String("corrected", corrected),
	)
	return s.index.Search(ctx, kind, corrected, limit, s.opts)
}
