package chat

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/repository"
)

// Exporter reconstructs a channel's complete transcript from the durable
// store. The broker log is never consulted: its window is bounded and
// non-authoritative, and exports are a compliance artifact.
type Exporter struct {
	store repository.Store
	auth  *Authorizer
	now   func() time.Time
}

func NewExporter(store repository.Store, auth *Authorizer) *Exporter {
	return &Exporter{store: store, auth: auth, now: time.Now}
}

type Transcript struct {
	ChannelID    int64
	Provider     *domain.User
	Counterpart  *domain.User
	MessageCount int
	GeneratedAt  time.Time
	Messages     []*domain.Message
}

// Export is provider-only: the counterpart cannot pull the other party's
// side of a privileged exchange.
func (e *Exporter) Export(ctx context.Context, userID string, channelID int64) (*Transcript, error) {
	grant, err := e.auth.Authorize(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if grant.Role != domain.RoleProvider {
		return nil, domain.ErrForbidden
	}

	messages, err := e.store.AllMessages(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	provider, err := e.store.ProviderUser(ctx, grant.Channel.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider participant: %w", err)
	}
	counterpart, err := e.store.UserByID(ctx, grant.Channel.CounterpartUserID)
	if err != nil {
		return nil, fmt.Errorf("resolve counterpart participant: %w", err)
	}

	return &Transcript{
		ChannelID:    channelID,
		Provider:     provider,
		Counterpart:  counterpart,
		MessageCount: len(messages),
		GeneratedAt:  e.now().UTC(),
		Messages:     messages,
	}, nil
}

// Render writes the transcript as a plain-text archival document.
func (t *Transcript) Render(w io.Writer) error {
	participants := map[string]*domain.User{}
	if t.Provider != nil {
		participants[t.Provider.ID] = t.Provider
	}
	if t.Counterpart != nil {
		participants[t.Counterpart.ID] = t.Counterpart
	}

	if _, err := fmt.Fprintf(w,
		"Chat transcript for channel %d\nProvider: %s <%s>\nCounterpart: %s <%s>\nMessages: %d\nGenerated: %s\n\n",
		t.ChannelID,
		t.Provider.Name, t.Provider.Email,
		t.Counterpart.Name, t.Counterpart.Email,
		t.MessageCount,
		t.GeneratedAt.Format(time.RFC3339),
	); err != nil {
		return err
	}

	for _, m := range t.Messages {
		name := m.SenderID
		if u, ok := participants[m.SenderID]; ok {
			name = u.Name
		}
		if _, err := fmt.Fprintf(w,
			"[%s] %s: %s\n",
			m.SentAt.UTC().Format("2006-01-02 15:04:05"),
			name,
			m.Content,
		); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\nEnd of transcript (%d messages).\n", t.MessageCount)
	return err
}
