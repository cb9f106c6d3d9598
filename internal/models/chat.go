package models

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /api/chat.
// Failures use {"error": "..."} instead; the two shapes never mix.
type ChatResponse struct {
	Response string `json:"response"`
}

// ContextData is the per-request snapshot of store data handed to the assistant prompt.
// Participation is nil when the aggregate was not fetched.
type ContextData struct {
	UpcomingEvents        []Event             `json:"upcoming_events,omitempty"`
	LatestAnnouncements   []Announcement      `json:"latest_announcements,omitempty"`
	MatchingEvents        []Event             `json:"matching_events,omitempty"`
	MatchingAnnouncements []Announcement      `json:"matching_announcements,omitempty"`
	PopularEvents         []PopularEvent      `json:"popular_events,omitempty"`
	Participation         *ParticipationStats `json:"participation,omitempty"`
}

// IsEmpty reports whether no category carries data.
func (c *ContextData) IsEmpty() bool {
	if c == nil {
		return true
	}
	return len(c.UpcomingEvents) == 0 &&
		len(c.LatestAnnouncements) == 0 &&
		len(c.MatchingEvents) == 0 &&
		len(c.MatchingAnnouncements) == 0 &&
		len(c.PopularEvents) == 0 &&
		(c.Participation == nil || (c.Participation.TotalParticipants == 0 && len(c.Participation.EventCategories) == 0))
}

// Prompt is the system/user message pair sent to the completion service.
// User is the chat message verbatim.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}
