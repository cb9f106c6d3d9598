package assistant

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTermLength is the shortest token kept as a search term; shorter tokens are dropped.
const minTermLength = 4

// EventStopWords are dropped from event search terms. Both lists include the other
// category's trigger words so a mixed question yields the same topic for each search.
var EventStopWords = stopWords(
	"what", "whats", "when", "where", "which", "there", "have", "about", "does", "tell",
	"show", "know", "please", "with", "from", "that", "this", "they", "them", "your",
	"will", "would", "could", "should", "going", "happening", "upcoming", "next",
	"event", "events", "activity", "activities", "schedule", "scheduled", "schedules",
	"soon", "coming", "held", "list", "give", "want", "like", "some",
	"news", "latest", "update", "updates", "announcement", "announcements",
)

// AnnouncementStopWords are dropped from announcement search terms.
var AnnouncementStopWords = stopWords(
	"what", "whats", "have", "about", "does", "tell", "show", "know", "please", "with",
	"from", "that", "this", "they", "them", "your", "there", "will", "would", "could",
	"announcement", "announcements", "news", "update", "updates", "latest", "recent",
	"posted", "post", "give", "list", "want", "like", "some", "read",
	"when", "where", "event", "events", "activity", "activities", "schedule",
)

func stopWords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ExtractSearchTerms lower-cases message, strips punctuation and symbols, and keeps
// tokens of at least minTermLength runes that are not stop words, in original order.
// The result may be empty.
func ExtractSearchTerms(message string, stop map[string]struct{}) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(message))

	kept := make([]string, 0, 8)
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) < minTermLength {
			continue
		}
		if _, ok := stop[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
