package domain

import (
	"strings"
	"time"
)

const (
	MaxMessageSize = 5000
	PreviewLength  = 120
)

type MessageType string

// MessageStandard is the only type clients may send today. System-generated
// types are reserved for the booking flow (session reminders etc.).
const MessageStandard MessageType = "STANDARD"

type DeliveryStatus string

const StatusSent DeliveryStatus = "sent"

// Message invariants:
// 1. ID is assigned by the ingestor, never by the store, so the same id keys
//    the durable row, the broker log entry and client-side dedup.
// 2. SentAt is assigned once and is the sort key everywhere; ties break by ID.
// 3. Immutable after creation.
type Message struct {
	ID        string
	ChannelID int64
	SenderID  string
	Content   string
	Type      MessageType
	Status    DeliveryStatus
	SentAt    time.Time
}

func NewMessage(
	id string,
	channelID int64,
	senderID string,
	content string,
	msgType MessageType,
	now time.Time,
) (*Message, error) {

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	if id == "" || channelID <= 0 || senderID == "" {
		return nil, ErrInvalidMessage
	}
	if msgType == "" {
		msgType = MessageStandard
	}

	return &Message{
		ID:        id,
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		Status:    StatusSent,
		SentAt:    now,
	}, nil
}

// Preview returns the bounded excerpt stored on the channel summary row.
func Preview(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "…"
}
