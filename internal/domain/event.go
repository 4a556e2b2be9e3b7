package domain

import "encoding/json"

const (
	EventConnected = "connected"
	EventMessage   = "message"
)

// MessageEvent is the frame every live stream delivers. The shape is
// identical whether the event came off the broker log, a live publish or the
// durable-store fallback, so clients cannot tell the sources apart.
type MessageEvent struct {
	Type              string      `json:"type"`
	ID                string      `json:"id"`
	Text              string      `json:"text"`
	Author            string      `json:"author"`
	AuthorEmail       string      `json:"authorEmail"`
	ChannelID         int64       `json:"channelId"`
	SentAtEpochMillis int64       `json:"sentAtEpochMillis"`
	MessageType       MessageType `json:"messageType"`
}

func NewMessageEvent(m *Message, author *User) MessageEvent {
	e := MessageEvent{
		Type:              EventMessage,
		ID:                m.ID,
		Text:              m.Content,
		ChannelID:         m.ChannelID,
		SentAtEpochMillis: m.SentAt.UnixMilli(),
		MessageType:       m.Type,
	}
	if author != nil {
		e.Author = author.Name
		e.AuthorEmail = author.Email
	}
	return e
}

func (e MessageEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ConnectedEvent is the acknowledgement frame sent once per stream, before
// any replay or live traffic.
type ConnectedEvent struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channelId"`
}

func NewConnectedEvent(channelID int64) ConnectedEvent {
	return ConnectedEvent{Type: EventConnected, ChannelID: channelID}
}

func (e ConnectedEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
