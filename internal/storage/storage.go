// Package storage defines the persistence interfaces for events, announcements, and registrations.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/skfed/internal/models"
)

// ErrNotFound is returned when a record lookup by ID has no match.
var ErrNotFound = errors.New("not found")

// Reader is the read-only query surface the chat assistant depends on.
type Reader interface {
	// RecentEvents returns up to limit events ordered by date, most recent first.
	// No future-only filter is applied.
	RecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	// RecentAnnouncements returns up to limit announcements, newest first.
	RecentAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error)
	// SearchEvents returns events whose title, description or location contains term.
	SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error)
	// SearchAnnouncements returns announcements whose title or content contains term.
	SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error)
	// PopularEvents ranks events by confirmed registrations, descending.
	// Equal counts come back in whatever order the database yields.
	PopularEvents(ctx context.Context, limit int) ([]models.PopularEvent, error)
	// ParticipationStats aggregates confirmed registrations overall and per event category.
	ParticipationStats(ctx context.Context) (*models.ParticipationStats, error)
}

// Storage is the full store used by the server, importer, and indexer.
type Storage interface {
	Reader

	// Event operations
	UpsertEvent(ctx context.Context, ev *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, offset, limit int) ([]models.Event, error)

	// Announcement operations
	UpsertAnnouncement(ctx context.Context, a *models.Announcement) error
	GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error)
	ListAnnouncements(ctx context.Context, offset, limit int) ([]models.Announcement, error)

	// Registration operations
	UpsertRegistration(ctx context.Context, r *models.Registration) error

	// Stats
	CountEvents(ctx context.Context) (int64, error)
	CountAnnouncements(ctx context.Context) (int64, error)
	CountRegistrations(ctx context.Context) (int64, error)

	Close() error
}

// likePattern wraps term for a substring LIKE match, escaping LIKE metacharacters with '\'.
func likePattern(term string) string {
	out := make([]rune, 0, len(term)+2)
	out = append(out, '%')
	for _, r := range term {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	out = append(out, '%')
	return string(out)
}
