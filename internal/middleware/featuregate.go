package middleware

import (
	"net/http"

	"github.com/renavest/chat-service/internal/transport"
)

// FeatureGate switches the whole chat surface on or off. When off, every
// chat operation answers the same disabled response without executing.
func FeatureGate(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				transport.WriteError(
					w,
					http.StatusServiceUnavailable,
					"feature_disabled",
					"chat is currently disabled",
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
