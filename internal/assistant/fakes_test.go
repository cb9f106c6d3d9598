package assistant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/skfed/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore implements storage.Reader and counts calls per method.
type fakeStore struct {
	failAll     bool
	failSearch  bool
	failPopular bool

	events        []models.Event
	announcements []models.Announcement
	popular       []models.PopularEvent
	stats         *models.ParticipationStats

	recentEvents, recentAnnouncements, popularCalls, statsCalls atomic.Int32

	mu          sync.Mutex
	searchTerms []string
}

func (f *fakeStore) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	f.recentEvents.Add(1)
	if f.failAll {
		return nil, errStoreDown
	}
	return f.events, nil
}

func (f *fakeStore) RecentAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	f.recentAnnouncements.Add(1)
	if f.failAll {
		return nil, errStoreDown
	}
	return f.announcements, nil
}

func (f *fakeStore) SearchEvents(ctx context.Context, term string, limit int) ([]models.Event, error) {
	f.mu.Lock()
	f.searchTerms = append(f.searchTerms, "event:"+term)
	f.mu.Unlock()
	if f.failAll || f.failSearch {
		return nil, errStoreDown
	}
	return []models.Event{{ID: "m1", Title: "Summer Festival", Date: "2024-06-20"}}, nil
}

func (f *fakeStore) SearchAnnouncements(ctx context.Context, term string, limit int) ([]models.Announcement, error) {
	f.mu.Lock()
	f.searchTerms = append(f.searchTerms, "announcement:"+term)
	f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	return []models.Announcement{{ID: "ma1", Title: "Festival volunteers needed"}}, nil
}

func (f *fakeStore) PopularEvents(ctx context.Context, limit int) ([]models.PopularEvent, error) {
	f.popularCalls.Add(1)
	if f.failAll || f.failPopular {
		return nil, errStoreDown
	}
	return f.popular, nil
}

func (f *fakeStore) ParticipationStats(ctx context.Context) (*models.ParticipationStats, error) {
	f.statsCalls.Add(1)
	if f.failAll {
		return nil, errStoreDown
	}
	return f.stats, nil
}

func (f *fakeStore) terms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchTerms...)
}

// fakeCompleter records the last prompt it saw.
type fakeCompleter struct {
	configErr error
	reply     string
	err       error

	calls  int
	prompt models.Prompt
}

func (f *fakeCompleter) CheckConfig() error { return f.configErr }

func (f *fakeCompleter) Complete(ctx context.Context, prompt models.Prompt) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}
