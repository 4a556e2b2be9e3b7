package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/repository"
)

// Service bundles the chat operations the HTTP surface exposes.
type Service struct {
	Authorizer *Authorizer
	Ingestor   *Ingestor
	Exporter   *Exporter

	store repository.Store
}

func NewService(store repository.Store, broker Broker, serviceName string) *Service {
	auth := NewAuthorizer(store)
	return &Service{
		Authorizer: auth,
		Ingestor:   NewIngestor(store, broker, auth, serviceName),
		Exporter:   NewExporter(store, auth),
		store:      store,
	}
}

// ChannelSummary is one row of the chat sidebar: the channel's summary state
// with the unread counter narrowed to the caller's own side.
type ChannelSummary struct {
	ChannelID          int64       `json:"channelId"`
	Role               domain.Role `json:"role"`
	LastMessageAt      *time.Time  `json:"lastMessageAt,omitempty"`
	LastMessagePreview string      `json:"lastMessagePreview,omitempty"`
	UnreadCount        int64       `json:"unreadCount"`
}

// ListChannels returns every channel the caller participates in, most
// recently active first (the store orders).
func (s *Service) ListChannels(ctx context.Context, userID string) ([]ChannelSummary, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	providerID, isProvider, err := s.store.ProviderIDByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider role: %w", err)
	}

	var channels []*domain.Channel
	role := domain.RoleCounterpart
	if isProvider {
		role = domain.RoleProvider
		channels, err = s.store.ChannelsByProvider(ctx, providerID)
	} else {
		channels, err = s.store.ChannelsByCounterpart(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	summaries := make([]ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		summaries = append(summaries, ChannelSummary{
			ChannelID:          ch.ID,
			Role:               role,
			LastMessageAt:      ch.LastMessageAt,
			LastMessagePreview: ch.LastMessagePreview,
			UnreadCount:        ch.Unread(role),
		})
	}
	return summaries, nil
}
