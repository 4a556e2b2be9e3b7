package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renavest/chat-service/internal/domain"
)

type bumpCall struct {
	channelID int64
	at        time.Time
	preview   string
	recipient domain.Role
}

type fakeStore struct {
	mu            sync.Mutex
	channels      map[int64]*domain.Channel
	providers     map[string]int64
	users         map[string]*domain.User
	providerUsers map[int64]*domain.User
	messages      []*domain.Message
	bumps         []bumpCall

	insertErr error
	bumpErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels:      make(map[int64]*domain.Channel),
		providers:     make(map[string]int64),
		users:         make(map[string]*domain.User),
		providerUsers: make(map[int64]*domain.User),
	}
}

func (s *fakeStore) GetChannel(_ context.Context, channelID int64) (*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return ch, nil
}

func (s *fakeStore) ProviderIDByUser(_ context.Context, userID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.providers[userID]
	return id, ok, nil
}

func (s *fakeStore) UserByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return u, nil
}

func (s *fakeStore) ProviderUser(_ context.Context, providerID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.providerUsers[providerID]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return u, nil
}

func (s *fakeStore) InsertMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) sorted(channelID int64) []*domain.Message {
	var out []*domain.Message
	for _, m := range s.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) RecentMessages(_ context.Context, channelID int64, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sorted(channelID)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *fakeStore) AllMessages(_ context.Context, channelID int64) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(channelID), nil
}

func (s *fakeStore) BumpChannelSummary(_ context.Context, channelID int64, at time.Time, preview string, recipient domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bumpErr != nil {
		return s.bumpErr
	}
	s.bumps = append(s.bumps, bumpCall{channelID: channelID, at: at, preview: preview, recipient: recipient})
	if ch, ok := s.channels[channelID]; ok {
		ch.LastMessageAt = &at
		ch.LastMessagePreview = preview
		if recipient == domain.RoleProvider {
			ch.UnreadProvider++
		} else {
			ch.UnreadCounterpart++
		}
	}
	return nil
}

func (s *fakeStore) ChannelsByProvider(_ context.Context, providerID int64) ([]*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Channel
	for _, ch := range s.channels {
		if ch.ProviderID == providerID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *fakeStore) ChannelsByCounterpart(_ context.Context, userID string) ([]*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Channel
	for _, ch := range s.channels {
		if ch.CounterpartUserID == userID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	appends   [][]byte
	publishes [][]byte

	appendErr  error
	publishErr error
}

func (b *fakeBroker) Append(_ context.Context, _ int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appendErr != nil {
		return b.appendErr
	}
	b.appends = append(b.appends, payload)
	return nil
}

func (b *fakeBroker) Publish(_ context.Context, _ int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.publishes = append(b.publishes, payload)
	return nil
}

// Shared scenario: channel 42 between provider 7 (therapist) and an
// employee counterpart.
const (
	testChannelID     = int64(42)
	providerUserID    = "user-therapist"
	counterpartUserID = "user-employee"
	outsiderUserID    = "user-outsider"
)

func newFixture() (*fakeStore, *fakeBroker) {
	store := newFakeStore()
	store.channels[testChannelID] = &domain.Channel{
		ID:                testChannelID,
		ProviderID:        7,
		CounterpartUserID: counterpartUserID,
		CreatedAt:         time.Now(),
	}
	store.providers[providerUserID] = 7
	store.users[providerUserID] = &domain.User{ID: providerUserID, Name: "Dana Reyes", Email: "dana@example.com"}
	store.users[counterpartUserID] = &domain.User{ID: counterpartUserID, Name: "Sam Okafor", Email: "sam@example.com"}
	store.users[outsiderUserID] = &domain.User{ID: outsiderUserID, Name: "Pat Quinn", Email: "pat@example.com"}
	store.providerUsers[7] = store.users[providerUserID]
	return store, &fakeBroker{}
}
