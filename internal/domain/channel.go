package domain

import "time"

type Role string

const (
	RoleProvider    Role = "provider"
	RoleCounterpart Role = "counterpart"
)

// Other returns the opposite side of the two-party channel.
func (r Role) Other() Role {
	if r == RoleProvider {
		return RoleCounterpart
	}
	return RoleProvider
}

// Channel invariants:
// 1. Exactly two participants, fixed at creation: the provider side keyed by
//    provider id and the counterpart side keyed by user id.
// 2. Every ingested message bumps the unread counter of the role that did
//    not send it, and only that one. Counters only decrease on an explicit
//    mark-read, which lives outside this service.
// 3. Channels are never deleted; transcripts must stay exportable.
type Channel struct {
	ID                 int64
	ProviderID         int64
	CounterpartUserID  string
	LastMessageAt      *time.Time
	LastMessagePreview string
	UnreadProvider     int64
	UnreadCounterpart  int64
	CreatedAt          time.Time
}

// Unread returns the counter belonging to the given side.
func (c *Channel) Unread(role Role) int64 {
	if role == RoleProvider {
		return c.UnreadProvider
	}
	return c.UnreadCounterpart
}

// User is the slice of the host application's user record the chat relay
// needs: display identity for wire events and transcripts.
type User struct {
	ID    string
	Name  string
	Email string
}
