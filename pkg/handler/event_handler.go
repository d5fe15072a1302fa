package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/savaki/linebot-assistant/pkg/flow"
	"github.com/savaki/linebot-assistant/pkg/line"
	"github.com/savaki/linebot-assistant/pkg/logging"
	"github.com/savaki/linebot-assistant/pkg/models"
)

var (
	// ErrInvalidSignature is returned when the webhook signature does not match the body
	ErrInvalidSignature = errors.New("handler: invalid signature")

	// ErrInvalidPayload is returned when the webhook body cannot be decoded
	ErrInvalidPayload = errors.New("handler: invalid payload")
)

// Deps are the collaborators of an EventHandler
type Deps struct {
	ChannelSecret string
	Gateway       Gateway
	Generator     Generator
	Extractor     EventExtractor
	Shortener     Shortener
	Store         TranscriptStore
	Flow          *flow.Machine
	Metrics       InboundObserver
	Logger        *logging.Logger
}

// EventHandler dispatches LINE message events
type EventHandler struct {
	channelSecret string
	gateway       Gateway
	generator     Generator
	extractor     EventExtractor
	shortener     Shortener
	store         TranscriptStore
	flow          *flow.Machine
	metrics       InboundObserver
	logger        *logging.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(d Deps) *EventHandler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventHandler{
		channelSecret: d.ChannelSecret,
		gateway:       d.Gateway,
		generator:     d.Generator,
		extractor:     d.Extractor,
		shortener:     d.Shortener,
		store:         d.Store,
		flow:          d.Flow,
		metrics:       d.Metrics,
		logger:        logger,
	}
}

// HandleWebhook validates and dispatches one webhook delivery. Every event
// is attempted; the returned error joins the failures.
func (h *EventHandler) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !ValidateLineSignature(body, signature, h.channelSecret) {
		h.logger.Warn("invalid LINE signature")
		return ErrInvalidSignature
	}

	events, err := line.ParseEvents(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var errs []error
	for _, event := range events {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle routes a single message event by type
func (h *EventHandler) Handle(ctx context.Context, event models.InboundEvent) error {
	logger := h.logger.With("user_id", event.UserID, "event_type", string(event.Type))
	logger.Debug("handling event", "message_id", event.MessageID)

	var err error
	switch event.Type {
	case models.EventText:
		err = h.handleText(ctx, event)
	case models.EventImage:
		err = h.handleImage(ctx, event)
	case models.EventAudio:
		err = h.handleAudio(ctx, event)
	default:
		logger.Info("ignoring event")
		return nil
	}

	status := "ok"
	if err != nil {
		status = "error"
		logger.Error("failed to handle event", "error", err)
	}
	if h.metrics != nil {
		h.metrics.ObserveInbound(string(event.Type), status)
	}
	return err
}

func (h *EventHandler) handleText(ctx context.Context, event models.InboundEvent) error {
	if h.flow.State(event.UserID) == flow.AwaitingAttachment {
		h.showLoading(ctx, event.UserID)
	}

	if reply, handled := h.flow.HandleText(ctx, event.UserID, event.Text); handled {
		return h.reply(ctx, event, reply)
	}

	reply, err := h.chat(ctx, event.UserID, event.Text)
	if err != nil {
		return err
	}
	return h.reply(ctx, event, reply)
}

func (h *EventHandler) handleImage(ctx context.Context, event models.InboundEvent) error {
	image, err := h.gateway.Content(ctx, event.MessageID)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}

	h.showLoading(ctx, event.UserID)

	if reply, handled := h.flow.HandleImage(ctx, event.UserID, image); handled {
		return h.reply(ctx, event, reply)
	}

	link, err := h.imageLink(ctx, image)
	if err != nil {
		h.logger.Warn("failed to build calendar link from image", "user_id", event.UserID, "error", err)
		return h.reply(ctx, event, ReplyError)
	}
	return h.reply(ctx, event, link)
}

func (h *EventHandler) handleAudio(ctx context.Context, event models.InboundEvent) error {
	audio, err := h.gateway.Content(ctx, event.MessageID)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	return h.reply(ctx, event, h.flow.HandleAudio(ctx, event.UserID, audio))
}

func (h *EventHandler) reply(ctx context.Context, event models.InboundEvent, text string) error {
	if err := h.gateway.Reply(ctx, event.ReplyToken, text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// showLoading starts the typing animation; failures only get logged
func (h *EventHandler) showLoading(ctx context.Context, userID string) {
	if err := h.gateway.ShowLoading(ctx, userID); err != nil {
		h.logger.Warn("failed to show loading animation", "user_id", userID, "error", err)
	}
}

// StatusCode maps a HandleWebhook result to the HTTP status returned to LINE
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
