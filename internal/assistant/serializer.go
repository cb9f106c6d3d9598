package assistant

import (
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/skfed/internal/models"
)

// Section headers, in the order they appear in the context block.
const (
	headerUpcomingEvents        = "Upcoming Events:"
	headerLatestAnnouncements   = "Latest Announcements:"
	headerMatchingEvents        = "Events Matching Your Question:"
	headerMatchingAnnouncements = "Announcements Matching Your Question:"
	headerPopularEvents         = "Popular Events (by registered participants):"
	headerParticipation         = "Participation by Event Category:"
)

// SerializeContext renders data as plain text. Each non-empty category becomes a header,
// one numbered line per item in input order, and a blank line. Empty categories produce
// nothing, so an empty ContextData yields "". Output depends only on data.
func SerializeContext(data models.ContextData) string {
	var b strings.Builder

	if len(data.UpcomingEvents) > 0 {
		lines := make([]string, len(data.UpcomingEvents))
		for i := range data.UpcomingEvents {
			lines[i] = formatEvent(&data.UpcomingEvents[i])
		}
		writeSection(&b, headerUpcomingEvents, lines)
	}
	if len(data.LatestAnnouncements) > 0 {
		lines := make([]string, len(data.LatestAnnouncements))
		for i := range data.LatestAnnouncements {
			lines[i] = formatAnnouncement(&data.LatestAnnouncements[i])
		}
		writeSection(&b, headerLatestAnnouncements, lines)
	}
	if len(data.MatchingEvents) > 0 {
		lines := make([]string, len(data.MatchingEvents))
		for i := range data.MatchingEvents {
			lines[i] = formatEvent(&data.MatchingEvents[i])
		}
		writeSection(&b, headerMatchingEvents, lines)
	}
	if len(data.MatchingAnnouncements) > 0 {
		lines := make([]string, len(data.MatchingAnnouncements))
		for i := range data.MatchingAnnouncements {
			lines[i] = formatAnnouncement(&data.MatchingAnnouncements[i])
		}
		writeSection(&b, headerMatchingAnnouncements, lines)
	}
	if len(data.PopularEvents) > 0 {
		lines := make([]string, len(data.PopularEvents))
		for i, p := range data.PopularEvents {
			lines[i] = p.Title + ": " + exactly(p.ParticipantCount)
		}
		writeSection(&b, headerPopularEvents, lines)
	}
	// A computed total is never dropped, even when no category has registrations.
	if p := data.Participation; p != nil && (len(p.EventCategories) > 0 || p.TotalParticipants != 0) {
		b.WriteString(headerParticipation)
		b.WriteByte('\n')
		b.WriteString("Total registered participants across all events: exactly ")
		b.WriteString(strconv.Itoa(p.TotalParticipants))
		b.WriteByte('\n')
		for i, c := range p.EventCategories {
			writeItem(&b, i, c.Category+": "+exactly(c.Count))
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func writeSection(b *strings.Builder, header string, lines []string) {
	b.WriteString(header)
	b.WriteByte('\n')
	for i, line := range lines {
		writeItem(b, i, line)
	}
	b.WriteByte('\n')
}

func writeItem(b *strings.Builder, i int, line string) {
	b.WriteString(strconv.Itoa(i + 1))
	b.WriteString(". ")
	b.WriteString(line)
	b.WriteByte('\n')
}

func exactly(n int) string {
	return "exactly " + strconv.Itoa(n) + " registered participants"
}

func formatEvent(ev *models.Event) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	if ev.Date != "" {
		b.WriteString(" on ")
		b.WriteString(FormatDate(ev.Date))
	}
	if ev.Time != "" {
		b.WriteString(" at ")
		b.WriteString(ev.Time)
	}
	if ev.Location != "" {
		b.WriteString(" (")
		b.WriteString(ev.Location)
		b.WriteString(")")
	}
	if ev.Description != "" {
		b.WriteString(" - ")
		b.WriteString(ev.Description)
	}
	return b.String()
}

func formatAnnouncement(a *models.Announcement) string {
	var b strings.Builder
	b.WriteString(a.Title)
	if a.Author != "" {
		b.WriteString(" (by ")
		b.WriteString(a.Author)
		b.WriteString(")")
	}
	if a.Content != "" {
		b.WriteString(": ")
		b.WriteString(a.Content)
	}
	return b.String()
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// FormatDate renders a stored date as M/D/YYYY. Unparseable values are returned unchanged.
func FormatDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return s
}
