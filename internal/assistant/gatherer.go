package assistant

import (
	"context"
	"fmt"

	"github.com/hyperjump/skfed/internal/config"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Searcher finds events and announcements by keyword.
// storage.Reader satisfies it with substring matching; keyword.Searcher with Bleve.
type Searcher interface {
	SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error)
	SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error)
}

// Limits caps how many rows each context category may hold.
type Limits struct {
	UpcomingEvents int
	Announcements  int
	PopularEvents  int
	Search         int
}

// DefaultLimits returns 5 upcoming events, 3 announcements, 5 popular events and 5 search hits.
func DefaultLimits() Limits {
	return Limits{UpcomingEvents: 5, Announcements: 3, PopularEvents: 5, Search: 5}
}

// LimitsFromConfig reads limits from cfg, falling back to DefaultLimits for zero values.
func LimitsFromConfig(cfg *config.AssistantConfig) Limits {
	l := DefaultLimits()
	if cfg == nil {
		return l
	}
	if cfg.UpcomingEventsLimit > 0 {
		l.UpcomingEvents = cfg.UpcomingEventsLimit
	}
	if cfg.AnnouncementsLimit > 0 {
		l.Announcements = cfg.AnnouncementsLimit
	}
	if cfg.PopularEventsLimit > 0 {
		l.PopularEvents = cfg.PopularEventsLimit
	}
	if cfg.SearchLimit > 0 {
		l.Search = cfg.SearchLimit
	}
	return l
}

// Gatherer reads the per-request context snapshot from the store.
type Gatherer struct {
	store    storage.Reader
	searcher Searcher
	limits   Limits
	logger   *zap.Logger
}

// NewGatherer creates a Gatherer. A nil searcher searches through store.
func NewGatherer(store storage.Reader, searcher Searcher, limits Limits, logger *zap.Logger) *Gatherer {
	if searcher == nil {
		searcher = store
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{store: store, searcher: searcher, limits: limits, logger: logger}
}

// Gather fetches recent events, latest announcements, popular events and participation
// stats concurrently, then runs the keyword searches the intent asks for.
//
// Store errors never escape: if any of the four primary reads fails the result is an
// empty ContextData; a failed search leaves only its own category empty.
func (g *Gatherer) Gather(ctx context.Context, intent Intent, message string) models.ContextData {
	var (
		upcoming      []models.Event
		announcements []models.Announcement
		popular       []models.PopularEvent
		participation *models.ParticipationStats
	)

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		upcoming, err = g.store.RecentEvents(egctx, g.limits.UpcomingEvents)
		return g.fetchErr("upcoming events", err)
	})
	eg.Go(func() error {
		var err error
		announcements, err = g.store.RecentAnnouncements(egctx, g.limits.Announcements)
		return g.fetchErr("latest announcements", err)
	})
	eg.Go(func() error {
		var err error
		popular, err = g.store.PopularEvents(egctx, g.limits.PopularEvents)
		return g.fetchErr("popular events", err)
	})
	eg.Go(func() error {
		var err error
		participation, err = g.store.ParticipationStats(egctx)
		return g.fetchErr("participation stats", err)
	})
	if err := eg.Wait(); err != nil {
		g.logger.Warn("Context gathering failed, continuing with empty context", zap.Error(err))
		return models.ContextData{}
	}

	data := models.ContextData{
		UpcomingEvents:      upcoming,
		LatestAnnouncements: announcements,
		PopularEvents:       popular,
		Participation:       participation,
	}

	var sg errgroup.Group
	if intent.NeedsEventSearch {
		if term := ExtractSearchTerms(message, EventStopWords); term != "" {
			sg.Go(func() error {
				found, err := g.searcher.SearchEvents(ctx, term, g.limits.Search)
				if err != nil {
					g.logger.Warn("Event search failed", zap.String("category", "matching events"), zap.String("term", term), zap.Error(err))
					return nil
				}
				data.MatchingEvents = found
				return nil
			})
		}
	}
	if intent.NeedsAnnouncementSearch {
		if term := ExtractSearchTerms(message, AnnouncementStopWords); term != "" {
			sg.Go(func() error {
				found, err := g.searcher.SearchAnnouncements(ctx, term, g.limits.Search)
				if err != nil {
					g.logger.Warn("Announcement search failed", zap.String("category", "matching announcements"), zap.String("term", term), zap.Error(err))
					return nil
				}
				data.MatchingAnnouncements = found
				return nil
			})
		}
	}
	_ = sg.Wait()

	return data
}

func (g *Gatherer) fetchErr(category string, err error) error {
	if err == nil {
		return nil
	}
	g.logger.Warn("Context fetch failed", zap.String("category", category), zap.Error(err))
	return fmt.Errorf("%s: %w", category, err)
}
