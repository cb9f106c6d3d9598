// Package models defines core data structures for events, announcements, and chat exchanges.
package models

import "time"

// RegistrationConfirmed is the registration status counted for popularity and participation.
const RegistrationConfirmed = "confirmed"

// Event is a scheduled federation event.
// Date is kept as the stored calendar string (YYYY-MM-DD); Time is free text ("2:00 PM").
type Event struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Date        string    `json:"date" db:"date"`
	Time        string    `json:"time" db:"time"`
	Location    string    `json:"location" db:"location"`
	Category    string    `json:"category" db:"category"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Registration records a participant signing up for an event.
type Registration struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PopularEvent is an event ranked by its confirmed registration count.
type PopularEvent struct {
	EventID          string `json:"event_id"`
	Title            string `json:"title"`
	ParticipantCount int    `json:"participant_count"`
}

// CategoryCount is the confirmed registration count for one event category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ParticipationStats aggregates confirmed registrations across all events.
type ParticipationStats struct {
	TotalParticipants int             `json:"total_participants"`
	EventCategories   []CategoryCount `json:"event_categories"`
}
