package broker

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	logKeyPrefix = "chat:log:"
	topicPrefix  = "chat:events:"

	// DefaultWindow bounds the replay log per channel. Eviction is FIFO:
	// replay correctness depends on the window staying chronologically
	// contiguous, so the oldest entry always goes first.
	DefaultWindow = 50

	// opTimeout caps append/publish/replay round trips so a degraded broker
	// cannot stall an otherwise-complete send.
	opTimeout = 2 * time.Second
)

// Broker is the non-authoritative fan-out side of the relay: a bounded
// per-channel list for replay plus a pub/sub topic for live delivery. It may
// be empty or unreachable without that being an error anywhere above it.
type Broker struct {
	client *redis.Client
	window int64
}

func New(client *redis.Client, window int) *Broker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Broker{client: client, window: int64(window)}
}

func logKey(channelID int64) string {
	return logKeyPrefix + strconv.FormatInt(channelID, 10)
}

func topic(channelID int64) string {
	return topicPrefix + strconv.FormatInt(channelID, 10)
}

// Append pushes one serialized event onto the channel's replay window and
// trims the window to size in the same pipeline.
func (b *Broker) Append(ctx context.Context, channelID int64, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, logKey(channelID), payload)
	pipe.LTrim(ctx, logKey(channelID), -b.window, -1)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *Broker) Publish(ctx context.Context, channelID int64, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return b.client.Publish(ctx, topic(channelID), payload).Err()
}

// Replay returns the current window, oldest first. An empty window is a
// normal answer for a cold channel or a freshly restarted broker.
func (b *Broker) Replay(ctx context.Context, channelID int64) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	vals, err := b.client.LRange(ctx, logKey(channelID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([][]byte, 0, len(vals))
	for _, v := range vals {
		entries = append(entries, []byte(v))
	}
	return entries, nil
}

// Subscription is one channel's live feed for one viewer. Events is closed
// after Close or when the feeding context ends; payloads arrive in publish
// order.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// Subscribe opens a pub/sub stream for the channel. The subscription is
// confirmed before returning so that a replay read issued afterwards cannot
// race ahead of it.
func (b *Broker) Subscribe(ctx context.Context, channelID int64) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topic(channelID))

	confirmCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	s := &redisSubscription{
		pubsub: pubsub,
		events: make(chan []byte, 64),
	}
	go s.pump(ctx)
	return s, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan []byte
}

func (s *redisSubscription) Events() <-chan []byte {
	return s.events
}

func (s *redisSubscription) Close() error {
	// Closing the pubsub ends pump's range over its channel.
	return s.pubsub.Close()
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.events)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.events <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}
