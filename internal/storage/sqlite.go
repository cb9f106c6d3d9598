package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/skfed/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		time TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);

	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_announcements_created_at ON announcements(created_at);

	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_event_status ON registrations(event_id, status);
	`
	_, err := db.Exec(schema)
	return err
}

const eventColumns = `id, title, description, date, time, location, category, created_at`

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()
	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time, &ev.Location, &ev.Category, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanAnnouncements(rows *sql.Rows) ([]models.Announcement, error) {
	defer rows.Close()
	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentEvents returns events ordered by date descending.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	return scanEvents(rows)
}

// RecentAnnouncements returns announcements ordered by creation time descending.
func (s *SQLiteStorage) RecentAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, author, created_at
		 FROM announcements ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent announcements: %w", err)
	}
	return scanAnnouncements(rows)
}

// SearchEvents runs a case-insensitive substring match over title, description and location.
func (s *SQLiteStorage) SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error) {
	p := likePattern(term)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR location LIKE ? ESCAPE '\'
		 ORDER BY date DESC LIMIT ?`, p, p, p, limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return scanEvents(rows)
}

// SearchAnnouncements runs a case-insensitive substring match over title and content.
func (s *SQLiteStorage) SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error) {
	p := likePattern(term)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, author, created_at FROM announcements
		 WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC LIMIT ?`, p, p, limit)
	if err != nil {
		return nil, fmt.Errorf("search announcements: %w", err)
	}
	return scanAnnouncements(rows)
}

// PopularEvents ranks events by confirmed registration count.
func (s *SQLiteStorage) PopularEvents(ctx context.Context, limit int) ([]models.PopularEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, COUNT(r.id) AS participants
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE r.status = ?
		 GROUP BY e.id, e.title
		 ORDER BY participants DESC
		 LIMIT ?`, models.RegistrationConfirmed, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular events: %w", err)
	}
	defer rows.Close()
	var out []models.PopularEvent
	for rows.Next() {
		var p models.PopularEvent
		if err := rows.Scan(&p.EventID, &p.Title, &p.ParticipantCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ParticipationStats counts confirmed registrations overall and per event category.
func (s *SQLiteStorage) ParticipationStats(ctx context.Context) (*models.ParticipationStats, error) {
	stats := &models.ParticipationStats{}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE status = ?`, models.RegistrationConfirmed,
	).Scan(&stats.TotalParticipants); err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT CASE WHEN e.category = '' THEN 'uncategorized' ELSE e.category END AS category,
		        COUNT(r.id) AS participants
		 FROM registrations r JOIN events e ON e.id = r.event_id
		 WHERE r.status = ?
		 GROUP BY 1
		 ORDER BY participants DESC, 1 ASC`, models.RegistrationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query category participation: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		stats.EventCategories = append(stats.EventCategories, c)
	}
	return stats, rows.Err()
}

// UpsertEvent inserts an event or replaces the one with the same ID.
func (s *SQLiteStorage) UpsertEvent(ctx context.Context, ev *models.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, date, time, location, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, description = excluded.description, date = excluded.date,
		   time = excluded.time, location = excluded.location, category = excluded.category`,
		ev.ID, ev.Title, ev.Description, ev.Date, ev.Time, ev.Location, ev.Category, ev.CreatedAt,
	)
	return err
}

// GetEvent returns an event by ID.
func (s *SQLiteStorage) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Date, &ev.Time, &ev.Location, &ev.Category, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns events with offset and limit, most recent date first.
func (s *SQLiteStorage) ListEvents(ctx context.Context, offset, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// UpsertAnnouncement inserts an announcement or replaces the one with the same ID.
func (s *SQLiteStorage) UpsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements (id, title, content, author, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, content = excluded.content, author = excluded.author,
		   created_at = excluded.created_at`,
		a.ID, a.Title, a.Content, a.Author, a.CreatedAt,
	)
	return err
}

// GetAnnouncement returns an announcement by ID.
func (s *SQLiteStorage) GetAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	var a models.Announcement
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, author, created_at FROM announcements WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("announcement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnnouncements returns announcements with offset and limit, newest first.
func (s *SQLiteStorage) ListAnnouncements(ctx context.Context, offset, limit int) ([]models.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, author, created_at
		 FROM announcements ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAnnouncements(rows)
}

// UpsertRegistration inserts a registration or replaces the one with the same ID.
func (s *SQLiteStorage) UpsertRegistration(ctx context.Context, r *models.Registration) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = models.RegistrationConfirmed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, name, email, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   event_id = excluded.event_id, name = excluded.name, email = excluded.email,
		   status = excluded.status`,
		r.ID, r.EventID, r.Name, r.Email, r.Status, r.CreatedAt,
	)
	return err
}

// CountEvents returns the total number of events.
func (s *SQLiteStorage) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

// CountAnnouncements returns the total number of announcements.
func (s *SQLiteStorage) CountAnnouncements(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&count)
	return count, err
}

// CountRegistrations returns the total number of registrations of any status.
func (s *SQLiteStorage) CountRegistrations(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
