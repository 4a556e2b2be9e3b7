package stream

import (
	"context"
	"fmt"

	"github.com/renavest/chat-service/internal/broker"
	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/observability"
	"github.com/renavest/chat-service/internal/repository"
	"go.uber.org/zap"
)

// Broker is the read side of the relay's fan-out dependency.
type Broker interface {
	Replay(ctx context.Context, channelID int64) ([][]byte, error)
	Subscribe(ctx context.Context, channelID int64) (broker.Subscription, error)
}

// Sink receives frames for one viewer. TrySend reports false once the viewer
// is gone, which ends the relay run.
type Sink interface {
	TrySend(payload []byte) bool
}

// Relay drives one connection through replay and live forwarding.
type Relay struct {
	store       repository.Store
	broker      Broker
	window      int
	serviceName string
}

func NewRelay(store repository.Store, b Broker, window int, serviceName string) *Relay {
	if window <= 0 {
		window = broker.DefaultWindow
	}
	return &Relay{store: store, broker: b, window: window, serviceName: serviceName}
}

// Run forwards the channel's recent history and then its live publications
// to the sink until ctx is canceled or the sink rejects a frame.
//
// The subscription is established before the replay read so nothing
// published in between is lost; anything published during replay queues on
// the subscription and is forwarded after the batch. A message can therefore
// arrive twice (once in each phase) and clients dedup by id. The
// subscription never outlives the call.
func (r *Relay) Run(ctx context.Context, channel *domain.Channel, sink Sink) error {
	log := observability.GetLogger(ctx)

	sub, err := r.broker.Subscribe(ctx, channel.ID)
	if err != nil {
		observability.BrokerDegradedTotal.WithLabelValues(r.serviceName, "subscribe").Inc()
		log.Warn("broker subscribe failed, stream degraded to history only",
			zap.Int64("channel_id", channel.ID),
			zap.Error(err),
		)
		sub = nil
	} else {
		defer sub.Close()
	}

	entries, err := r.replayEntries(ctx, channel)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !sink.TrySend(e) {
			return nil
		}
	}

	if sub == nil {
		// No live feed. Hold the stream open; the viewer catches up on the
		// missed window when they reconnect after the broker recovers.
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !sink.TrySend(payload) {
				return nil
			}
		}
	}
}

// replayEntries reads the broker window, falling back to the durable store
// when the window is empty or the broker is unreachable. Both sources
// produce the same wire shape.
func (r *Relay) replayEntries(ctx context.Context, channel *domain.Channel) ([][]byte, error) {
	log := observability.GetLogger(ctx)

	entries, err := r.broker.Replay(ctx, channel.ID)
	if err != nil {
		observability.BrokerDegradedTotal.WithLabelValues(r.serviceName, "replay").Inc()
		log.Warn("broker replay failed, falling back to store",
			zap.Int64("channel_id", channel.ID),
			zap.Error(err),
		)
	}
	if err == nil && len(entries) > 0 {
		return entries, nil
	}

	observability.ReplayFallbackTotal.WithLabelValues(r.serviceName).Inc()
	return r.replayFromStore(ctx, channel)
}

func (r *Relay) replayFromStore(ctx context.Context, channel *domain.Channel) ([][]byte, error) {
	messages, err := r.store.RecentMessages(ctx, channel.ID, r.window)
	if err != nil {
		return nil, fmt.Errorf("store replay: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	authors, err := r.channelAuthors(ctx, channel)
	if err != nil {
		return nil, err
	}

	entries := make([][]byte, 0, len(messages))
	for _, msg := range messages {
		payload, err := domain.NewMessageEvent(msg, authors[msg.SenderID]).Encode()
		if err != nil {
			return nil, fmt.Errorf("encode replay event: %w", err)
		}
		entries = append(entries, payload)
	}
	return entries, nil
}

func (r *Relay) channelAuthors(ctx context.Context, channel *domain.Channel) (map[string]*domain.User, error) {
	provider, err := r.store.ProviderUser(ctx, channel.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider participant: %w", err)
	}
	counterpart, err := r.store.UserByID(ctx, channel.CounterpartUserID)
	if err != nil {
		return nil, fmt.Errorf("resolve counterpart participant: %w", err)
	}
	return map[string]*domain.User{
		provider.ID:    provider,
		counterpart.ID: counterpart,
	}, nil
}
