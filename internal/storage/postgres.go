package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperjump/skfed/internal/models"
)

// PostgresStorage implements Storage on a hosted Postgres database through a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to dsn, verifies the connection, and ensures the schema exists.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date DATE,
		time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);

	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_announcements_created_at ON announcements(created_at);

	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_registrations_event_status ON registrations(event_id, status);
	`
	_, err := pool.Exec(ctx, schema)
	return err
}

// Dates are DATE in Postgres; render them back to the YYYY-MM-DD string the models carry.
const pgEventColumns = `id, title, description, COALESCE(to_char(date, 'YYYY-MM-DD'), ''), time, location, category, created_at`

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Event, error) {
		var ev models.Event
		err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time, &ev.Location, &ev.Category, &ev.CreatedAt)
		return ev, err
	})
}

func collectAnnouncements(rows pgx.Rows) ([]models.Announcement, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Announcement, error) {
		var a models.Announcement
		err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt)
		return a, err
	})
}

// RecentEvents returns events ordered by date descending.
func (s *PostgresStorage) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events ORDER BY date DESC NULLS LAST LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	return collectEvents(rows)
}

// RecentAnnouncements returns announcements ordered by creation time descending.
func (s *PostgresStorage) RecentAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, content, author, created_at
		 FROM announcements ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

// SearchEvents runs an ILIKE substring match over title, description and location.
func (s *PostgresStorage) SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events
		 WHERE title ILIKE $1 OR description ILIKE $1 OR location ILIKE $1
		 ORDER BY date DESC NULLS LAST LIMIT $2`, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return collectEvents(rows)
}

// SearchAnnouncements runs an ILIKE substring match over title and content.
func (s *PostgresStorage) SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, content, author, created_at FROM announcements
		 WHERE title ILIKE $1 OR content ILIKE $1
		 ORDER BY created_at DESC LIMIT $2`, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

// PopularEvents ranks events by confirmed registration count.
func (s *PostgresStorage) PopularEvents(ctx context.Context, limit int) ([]models.PopularEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.title, COUNT(r.id) AS participants
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE r.status = $1
		 GROUP BY e.id, e.title
		 ORDER BY participants DESC
		 LIMIT $2`, models.RegistrationConfirmed, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PopularEvent, error) {
		var p models.PopularEvent
		err := row.Scan(&p.EventID, &p.Title, &p.ParticipantCount)
		return p, err
	})
}

// ParticipationStats counts confirmed registrations overall and per event category.
func (s *PostgresStorage) ParticipationStats(ctx context.Context) (*models.ParticipationStats, error) {
	stats := &models.ParticipationStats{}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE status = $1`, models.RegistrationConfirmed,
	).Scan(&stats.TotalParticipants); err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(NULLIF(e.category, ''), 'uncategorized') AS category, COUNT(r.id) AS participants
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE r.status = $1
		 GROUP BY 1
		 ORDER BY participants DESC, category ASC`, models.RegistrationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query category participation: %w", err)
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CategoryCount, error) {
		var c models.CategoryCount
		err := row.Scan(&c.Category, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, err
	}
	stats.EventCategories = cats
	return stats, nil
}

// UpsertEvent inserts an event or replaces the one with the same ID.
func (s *PostgresStorage) UpsertEvent(ctx context.Context, ev *models.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, title, description, date, time, location, category, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, '')::date, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, description = EXCLUDED.description, date = EXCLUDED.date,
		   time = EXCLUDED.time, location = EXCLUDED.location, category = EXCLUDED.category`,
		ev.ID, ev.Title, ev.Description, ev.Date, ev.Time, ev.Location, ev.Category, ev.CreatedAt,
	)
	return err
}

// GetEvent returns an event by ID.
func (s *PostgresStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := s.pool.QueryRow(ctx, `SELECT `+pgEventColumns+` FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time, &ev.Location, &ev.Category, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns events with offset and limit, most recent date first.
func (s *PostgresStorage) ListEvents(ctx context.Context, offset, limit int) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM events ORDER BY date DESC NULLS LAST, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// UpsertAnnouncement inserts an announcement or replaces the one with the same ID.
func (s *PostgresStorage) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO announcements (id, title, content, author, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, content = EXCLUDED.content, author = EXCLUDED.author,
		   created_at = EXCLUDED.created_at`,
		a.ID, a.Title, a.Content, a.Author, a.CreatedAt,
	)
	return err
}

// GetAnnouncement returns an announcement by ID.
func (s *PostgresStorage) GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	var a models.Announcement
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, content, author, created_at FROM announcements WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("announcement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnnouncements returns announcements with offset and limit, newest first.
func (s *PostgresStorage) ListAnnouncements(ctx context.Context, offset, limit int) ([]models.Announcement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, content, author, created_at
		 FROM announcements ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAnnouncements(rows)
}

// UpsertRegistration inserts a registration or replaces the one with the same ID.
func (s *PostgresStorage) UpsertRegistration(ctx context.Context, r *models.Registration) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = models.RegistrationConfirmed
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO registrations (id, event_id, name, email, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   event_id = EXCLUDED.event_id, name = EXCLUDED.name, email = EXCLUDED.email,
		   status = EXCLUDED.status`,
		r.ID, r.EventID, r.Name, r.Email, r.Status, r.CreatedAt,
	)
	return err
}

// CountEvents returns the total number of events.
func (s *PostgresStorage) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// CountAnnouncements returns the total number of announcements.
func (s *PostgresStorage) CountAnnouncements(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&count)
	return count, err
}

// CountRegistrations returns the total number of registrations of any status.
func (s *PostgresStorage) CountRegistrations(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count)
	return count, err
}

// Close releases the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
