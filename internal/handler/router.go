package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/renavest/chat-service/internal/middleware"
	"github.com/renavest/chat-service/internal/observability"
)

// NewRouter assembles the chat surface. Health and metrics stay outside the
// feature gate and authentication; every chat operation sits behind both.
func NewRouter(
	chatH *ChatHandler,
	streamH http.Handler,
	store observability.Pinger,
	jwtSecret string,
	serviceName string,
	chatEnabled bool,
) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.MetricsMiddleware(serviceName))
	r.Use(middleware.Recovery())

	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(store))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(p chi.Router) {
		p.Use(middleware.FeatureGate(chatEnabled))
		p.Use(middleware.JWT(jwtSecret))

		p.Get("/api/chat/channels", chatH.ListChannels)
		p.Post("/api/chat/channels/{channelID}/messages", chatH.SendMessage)
		p.Get("/api/chat/channels/{channelID}/export", chatH.ExportTranscript)
		p.Handle("/api/chat/channels/{channelID}/stream", streamH)
	})

	return r
}
