package handler

import (
	"context"

	"github.com/savaki/linebot-assistant/pkg/models"
	"github.com/savaki/linebot-assistant/pkg/transcript"
)

// Gateway defines the messaging platform operations the handler needs
type Gateway interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
	Content(ctx context.Context, messageID string) (models.Artifact, error)
	ShowLoading(ctx context.Context, userID string) error
}

// Generator produces chat replies
type Generator interface {
	Generate(ctx context.Context, t models.Transcript) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// EventExtractor reads event details out of pictures and linked resources
type EventExtractor interface {
	ExtractFromImage(ctx context.Context, image models.Artifact) (models.EventDetails, error)
	ExtractFromURL(ctx context.Context, rawURL string) (models.EventDetails, error)
}

// Shortener turns a long link into a short one
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// TranscriptStore is a transcript store with fire-and-forget writes
type TranscriptStore interface {
	transcript.Store
	PutAsync(userID string, t models.Transcript)
}

// InboundObserver counts handled events
type InboundObserver interface {
	ObserveInbound(eventType, status string)
}
