// Package server exposes the bot over HTTP
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/savaki/linebot-assistant/pkg/handler"
	"github.com/savaki/linebot-assistant/pkg/logging"
)

// maxWebhookBody caps the size of a webhook delivery
const maxWebhookBody = 1 << 20

// Webhook processes LINE deliveries and builds calendar links
type Webhook interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	CalendarURL(ctx context.Context, rawURL string) (string, error)
}

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        Webhook
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health)
	r.Get("/", calendarRedirect(cfg.Webhook, logger))
	r.Post("/webhooks/line", lineWebhook(cfg.Webhook, logger))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "ok")
}

func lineWebhook(webhook Webhook, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid body"})
			return
		}

		err = webhook.HandleWebhook(r.Context(), body, r.Header.Get("X-Line-Signature"))
		status := handler.StatusCode(err)
		switch status {
		case http.StatusOK:
			writeJSON(w, http.StatusOK, "OK")
		case http.StatusBadRequest:
			logger.Warn("rejected webhook", "request_id", middleware.GetReqID(r.Context()), "error", err)
			writeJSON(w, status, map[string]string{"detail": "Invalid signature"})
		default:
			logger.Error("webhook failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
			writeJSON(w, status, map[string]string{"detail": "Internal Server Error"})
		}
	}
}

// calendarRedirect sends the browser to a calendar link built from the
// picture at ?img_url=
func calendarRedirect(webhook Webhook, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imgURL := r.URL.Query().Get("img_url")
		if imgURL == "" {
			writeError(w, http.StatusBadRequest)
			return
		}

		link, err := webhook.CalendarURL(r.Context(), imgURL)
		if err != nil {
			logger.Warn("failed to build calendar link", "img_url", imgURL, "error", err)
			writeError(w, http.StatusOK)
			return
		}

		http.Redirect(w, r, link, http.StatusTemporaryRedirect)
	}
}

// RequestLogger emits one structured log line per request
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_ip", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the literal error body used by the calendar endpoint
func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, handler.ReplyError)
}
