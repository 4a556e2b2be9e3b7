package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/renavest/chat-service/internal/broker"
	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	events chan []byte
	mu     sync.Mutex
	closed bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan []byte, 16)}
}

func (s *fakeSub) Events() <-chan []byte { return s.events }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeBroker struct {
	replay       [][]byte
	replayErr    error
	sub          *fakeSub
	subscribeErr error
}

func (b *fakeBroker) Replay(context.Context, int64) ([][]byte, error) {
	return b.replay, b.replayErr
}

func (b *fakeBroker) Subscribe(context.Context, int64) (broker.Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	return b.sub, nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames [][]byte
	limit  int // reject frames past this count; 0 means unlimited
}

func (s *fakeSink) TrySend(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.frames) >= s.limit {
		return false
	}
	s.frames = append(s.frames, payload)
	return true
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) frame(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[i]
}

type fakeStore struct {
	messages    []*domain.Message
	recentErr   error
	provider    *domain.User
	counterpart *domain.User
}

var _ repository.Store = (*fakeStore)(nil)

func (s *fakeStore) GetChannel(context.Context, int64) (*domain.Channel, error) {
	return nil, domain.ErrChannelNotFound
}

func (s *fakeStore) ProviderIDByUser(context.Context, string) (int64, bool, error) {
	return 0, false, nil
}

func (s *fakeStore) UserByID(context.Context, string) (*domain.User, error) {
	return s.counterpart, nil
}

func (s *fakeStore) ProviderUser(context.Context, int64) (*domain.User, error) {
	return s.provider, nil
}

func (s *fakeStore) InsertMessage(context.Context, *domain.Message) error { return nil }

func (s *fakeStore) RecentMessages(_ context.Context, _ int64, limit int) ([]*domain.Message, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	msgs := append([]*domain.Message(nil), s.messages...)
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.Before(msgs[j].SentAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *fakeStore) AllMessages(ctx context.Context, channelID int64) ([]*domain.Message, error) {
	return s.RecentMessages(ctx, channelID, len(s.messages))
}

func (s *fakeStore) BumpChannelSummary(context.Context, int64, time.Time, string, domain.Role) error {
	return nil
}

func (s *fakeStore) ChannelsByProvider(context.Context, int64) ([]*domain.Channel, error) {
	return nil, nil
}

func (s *fakeStore) ChannelsByCounterpart(context.Context, string) ([]*domain.Channel, error) {
	return nil, nil
}

func testChannel() *domain.Channel {
	return &domain.Channel{ID: 42, ProviderID: 7, CounterpartUserID: "user-employee"}
}

func testStore(messages ...*domain.Message) *fakeStore {
	return &fakeStore{
		messages:    messages,
		provider:    &domain.User{ID: "user-therapist", Name: "Dana Reyes", Email: "dana@example.com"},
		counterpart: &domain.User{ID: "user-employee", Name: "Sam Okafor", Email: "sam@example.com"},
	}
}

func runRelay(t *testing.T, ctx context.Context, r *Relay, sink Sink) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, testChannel(), sink) }()
	return done
}

func waitFrames(t *testing.T, sink *fakeSink, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return sink.count() >= n },
		time.Second, 5*time.Millisecond)
}

func TestRun_ReplayThenLive(t *testing.T) {
	sub := newFakeSub()
	sub.events <- []byte(`{"id":"live-1"}`) // published while replay was read
	brk := &fakeBroker{
		replay: [][]byte{[]byte(`{"id":"r1"}`), []byte(`{"id":"r2"}`)},
		sub:    sub,
	}
	relay := NewRelay(testStore(), brk, 50, "test")
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runRelay(t, ctx, relay, sink)

	waitFrames(t, sink, 3)
	sub.events <- []byte(`{"id":"live-2"}`)
	waitFrames(t, sink, 4)

	cancel()
	require.NoError(t, <-done)

	// History strictly precedes live, both in original order.
	assert.Equal(t, `{"id":"r1"}`, string(sink.frame(0)))
	assert.Equal(t, `{"id":"r2"}`, string(sink.frame(1)))
	assert.Equal(t, `{"id":"live-1"}`, string(sink.frame(2)))
	assert.Equal(t, `{"id":"live-2"}`, string(sink.frame(3)))

	assert.True(t, sub.isClosed(), "subscription must not outlive the run")
}

func TestRun_EmptyLogFallsBackToStore(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	store := testStore(
		&domain.Message{ID: "m1", ChannelID: 42, SenderID: "user-employee", Content: "one", Type: domain.MessageStandard, SentAt: base},
		&domain.Message{ID: "m2", ChannelID: 42, SenderID: "user-therapist", Content: "two", Type: domain.MessageStandard, SentAt: base.Add(time.Second)},
		&domain.Message{ID: "m3", ChannelID: 42, SenderID: "user-employee", Content: "three", Type: domain.MessageStandard, SentAt: base.Add(2 * time.Second)},
	)
	brk := &fakeBroker{sub: newFakeSub()} // empty log
	relay := NewRelay(store, brk, 2, "test")
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runRelay(t, ctx, relay, sink)

	// Window of 2 takes the newest two, oldest first.
	waitFrames(t, sink, 2)
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 2, sink.count())

	var first, second domain.MessageEvent
	require.NoError(t, json.Unmarshal(sink.frame(0), &first))
	require.NoError(t, json.Unmarshal(sink.frame(1), &second))

	assert.Equal(t, "m2", first.ID)
	assert.Equal(t, "m3", second.ID)

	// The fallback frame is indistinguishable from a broker-sourced one.
	assert.Equal(t, domain.EventMessage, first.Type)
	assert.Equal(t, "two", first.Text)
	assert.Equal(t, "Dana Reyes", first.Author)
	assert.Equal(t, "dana@example.com", first.AuthorEmail)
	assert.Equal(t, int64(42), first.ChannelID)
	assert.Equal(t, base.Add(time.Second).UnixMilli(), first.SentAtEpochMillis)
}

func TestRun_BrokerDownServesHistoryOnly(t *testing.T) {
	store := testStore(
		&domain.Message{ID: "m1", ChannelID: 42, SenderID: "user-employee", Content: "one", Type: domain.MessageStandard, SentAt: time.UnixMilli(1000).UTC()},
	)
	brk := &fakeBroker{
		replayErr:    errors.New("connection refused"),
		subscribeErr: errors.New("connection refused"),
	}
	relay := NewRelay(store, brk, 50, "test")
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := runRelay(t, ctx, relay, sink)

	// History still arrives; the stream then idles until the client leaves.
	waitFrames(t, sink, 1)
	select {
	case err := <-done:
		t.Fatalf("run ended early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRun_StoreFallbackFailureFailsTheStream(t *testing.T) {
	store := testStore()
	store.recentErr = errors.New("connection refused")
	brk := &fakeBroker{sub: newFakeSub()} // empty log forces the fallback
	relay := NewRelay(store, brk, 50, "test")
	sink := &fakeSink{}

	err := relay.Run(context.Background(), testChannel(), sink)
	require.Error(t, err)
	assert.True(t, brk.sub.isClosed(), "subscription released on the error path")
}

func TestRun_SinkRejectionEndsTheRun(t *testing.T) {
	sub := newFakeSub()
	brk := &fakeBroker{
		replay: [][]byte{[]byte(`{"id":"r1"}`), []byte(`{"id":"r2"}`)},
		sub:    sub,
	}
	relay := NewRelay(testStore(), brk, 50, "test")
	sink := &fakeSink{limit: 1}

	err := relay.Run(context.Background(), testChannel(), sink)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.count())
	assert.True(t, sub.isClosed())
}
