// Package assistant turns a chat message into a grounded completion: it classifies the
// message, gathers live store data, renders it into the system prompt, and calls the
// completion service.
package assistant

import "strings"

// Intent flags are advisory. Popular events and participation stats are fetched for
// every message; only the keyword searches are gated on NeedsEventSearch and
// NeedsAnnouncementSearch.
type Intent struct {
	NeedsEventSuggestions   bool `json:"needs_event_suggestions"`
	NeedsParticipationData  bool `json:"needs_participation_data"`
	NeedsEventSearch        bool `json:"needs_event_search"`
	NeedsAnnouncementSearch bool `json:"needs_announcement_search"`
}

var (
	eventSuggestionKeywords   = []string{"suggest", "idea", "recommendation", "new event", "summer", "activity"}
	participationKeywords     = []string{"popular", "participation", "registered", "attending", "interest", "count", "how many"}
	eventSearchKeywords       = []string{"event", "activity", "schedule", "when", "where"}
	announcementSearchKeyword = []string{"announcement", "news", "update", "latest"}
)

// ClassifyIntent matches the lower-cased message against fixed keyword lists.
// Matching is by substring, so "events" and "scheduled" both count.
func ClassifyIntent(message string) Intent {
	msg := strings.ToLower(message)
	return Intent{
		NeedsEventSuggestions:   containsAny(msg, eventSuggestionKeywords),
		NeedsParticipationData:  containsAny(msg, participationKeywords),
		NeedsEventSearch:        containsAny(msg, eventSearchKeywords),
		NeedsAnnouncementSearch: containsAny(msg, announcementSearchKeyword),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
