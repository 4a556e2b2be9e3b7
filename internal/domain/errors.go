package domain

import "errors"

var (
	ErrUnauthenticated  = errors.New("missing caller identity")
	ErrForbidden        = errors.New("caller is not a channel participant")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrEmptyContent     = errors.New("message content is empty")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrInvalidChannelID = errors.New("invalid channel id")
)
