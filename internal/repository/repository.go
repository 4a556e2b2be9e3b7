package repository

import (
	"context"
	"time"

	"github.com/renavest/chat-service/internal/domain"
)

// Store is the durable system of record for channels and messages. The
// broker log is a bounded copy of recent history; everything here is
// authoritative.
type Store interface {
	GetChannel(ctx context.Context, channelID int64) (*domain.Channel, error)

	// ProviderIDByUser reports whether the user is registered as a provider
	// and, if so, under which provider id.
	ProviderIDByUser(ctx context.Context, userID string) (int64, bool, error)

	UserByID(ctx context.Context, userID string) (*domain.User, error)
	ProviderUser(ctx context.Context, providerID int64) (*domain.User, error)

	InsertMessage(ctx context.Context, msg *domain.Message) error

	// RecentMessages returns the newest messages of the channel, at most
	// limit of them, in chronological (sentAt, id) order.
	RecentMessages(ctx context.Context, channelID int64, limit int) ([]*domain.Message, error)

	// AllMessages returns the complete history in (sentAt, id) order.
	AllMessages(ctx context.Context, channelID int64) ([]*domain.Message, error)

	// BumpChannelSummary updates lastMessageAt and the preview and
	// increments the unread counter of the given recipient role. The
	// increment must happen in the store, not read-modify-write in process.
	BumpChannelSummary(ctx context.Context, channelID int64, at time.Time, preview string, recipient domain.Role) error

	ChannelsByProvider(ctx context.Context, providerID int64) ([]*domain.Channel, error)
	ChannelsByCounterpart(ctx context.Context, userID string) ([]*domain.Channel, error)
}
