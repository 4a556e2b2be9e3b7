package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/observability"
	"github.com/renavest/chat-service/internal/repository"
	"go.uber.org/zap"
)

// Broker is the fan-out side the ingestor feeds. Both methods are
// best-effort from the send path's point of view.
type Broker interface {
	Append(ctx context.Context, channelID int64, payload []byte) error
	Publish(ctx context.Context, channelID int64, payload []byte) error
}

// Ingestor is the write path. The durable insert is the one step that can
// fail a send; everything after it only shapes how fast other viewers see
// the message.
type Ingestor struct {
	store       repository.Store
	broker      Broker
	auth        *Authorizer
	serviceName string
	now         func() time.Time
}

func NewIngestor(store repository.Store, broker Broker, auth *Authorizer, serviceName string) *Ingestor {
	return &Ingestor{
		store:       store,
		broker:      broker,
		auth:        auth,
		serviceName: serviceName,
		now:         time.Now,
	}
}

type SendCommand struct {
	ChannelID int64
	SenderID  string
	Content   string
	Type      domain.MessageType
}

func (i *Ingestor) Send(ctx context.Context, cmd SendCommand) (*domain.Message, error) {
	log := observability.GetLogger(ctx)

	grant, err := i.auth.Authorize(ctx, cmd.SenderID, cmd.ChannelID)
	if err != nil {
		return nil, err
	}

	msg, err := domain.NewMessage(
		uuid.NewString(),
		cmd.ChannelID,
		cmd.SenderID,
		cmd.Content,
		cmd.Type,
		i.now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	if err := i.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	observability.MessagesIngestedTotal.WithLabelValues(i.serviceName).Inc()

	// Durability boundary: from here on the message is sent. Broker and
	// summary failures are logged and tolerated.
	i.propagate(ctx, msg, grant.User)

	if err := i.store.BumpChannelSummary(
		ctx,
		cmd.ChannelID,
		msg.SentAt,
		domain.Preview(msg.Content),
		grant.Role.Other(),
	); err != nil {
		log.Error("channel summary update failed",
			zap.Int64("channel_id", cmd.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	return msg, nil
}

func (i *Ingestor) propagate(ctx context.Context, msg *domain.Message, author *domain.User) {
	log := observability.GetLogger(ctx)

	payload, err := domain.NewMessageEvent(msg, author).Encode()
	if err != nil {
		log.Error("event encode failed", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	if err := i.broker.Append(ctx, msg.ChannelID, payload); err != nil {
		observability.BrokerDegradedTotal.WithLabelValues(i.serviceName, "append").Inc()
		log.Warn("broker log append failed",
			zap.Int64("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	if err := i.broker.Publish(ctx, msg.ChannelID, payload); err != nil {
		observability.BrokerDegradedTotal.WithLabelValues(i.serviceName, "publish").Inc()
		log.Warn("broker publish failed",
			zap.Int64("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}
