package chat

import (
	"context"
	"fmt"

	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/repository"
)

// Authorizer resolves a caller to their side of a two-party channel.
// Read-only: it never mutates anything, so every operation can run it before
// taking side effects.
type Authorizer struct {
	store repository.Store
}

func NewAuthorizer(store repository.Store) *Authorizer {
	return &Authorizer{store: store}
}

// Grant is a successful authorization: which side the caller is on, the
// channel itself, and the caller's user record (wire events need the display
// identity anyway, so the lookup is not wasted).
type Grant struct {
	Role    domain.Role
	Channel *domain.Channel
	User    *domain.User
}

// Authorize maps (caller, channel) to a role or rejects. A user registered
// as a provider is only ever admitted on the provider side, even if some
// channel happens to list them as counterpart.
func (a *Authorizer) Authorize(
	ctx context.Context,
	userID string,
	channelID int64,
) (*Grant, error) {

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	user, err := a.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}

	channel, err := a.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	providerID, isProvider, err := a.store.ProviderIDByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider role: %w", err)
	}

	if isProvider {
		if channel.ProviderID == providerID {
			return &Grant{Role: domain.RoleProvider, Channel: channel, User: user}, nil
		}
		return nil, domain.ErrForbidden
	}

	if channel.CounterpartUserID == userID {
		return &Grant{Role: domain.RoleCounterpart, Channel: channel, User: user}, nil
	}
	return nil, domain.ErrForbidden
}
