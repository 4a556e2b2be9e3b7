package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/observability"
	"go.uber.org/zap"
)

// DomainError converts a chat domain error into the HTTP response the host
// application's clients expect. Anything unrecognized is logged and answered
// as a 500 without leaking detail.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")

	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "access denied")

	case errors.Is(err, domain.ErrChannelNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrMessageTooLarge),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidChannelID):
		WriteError(w, http.StatusBadRequest, "invalid_argument", err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "timeout", "request timed out")

	default:
		observability.GetLogger(context.Background()).Error("internal error", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
