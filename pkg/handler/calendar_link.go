package handler

import (
	"context"
	"fmt"

	"github.com/savaki/linebot-assistant/pkg/calendar"
	"github.com/savaki/linebot-assistant/pkg/models"
)

// CalendarURL extracts event details from the resource at rawURL and
// returns the full Google Calendar link
func (h *EventHandler) CalendarURL(ctx context.Context, rawURL string) (string, error) {
	if !calendar.IsValidURL(rawURL) {
		return "", fmt.Errorf("%w: %q", calendar.ErrInvalidURL, rawURL)
	}

	details, err := h.extractor.ExtractFromURL(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("extract event from %s: %w", rawURL, err)
	}
	return buildLink(details)
}

func (h *EventHandler) urlLink(ctx context.Context, rawURL string) (string, error) {
	long, err := h.CalendarURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return h.shorten(ctx, long), nil
}

func (h *EventHandler) imageLink(ctx context.Context, image models.Artifact) (string, error) {
	details, err := h.extractor.ExtractFromImage(ctx, image)
	if err != nil {
		return "", fmt.Errorf("extract event from image: %w", err)
	}

	long, err := buildLink(details)
	if err != nil {
		return "", err
	}
	return h.shorten(ctx, long), nil
}

// shorten falls back to the long link when the shortener fails
func (h *EventHandler) shorten(ctx context.Context, long string) string {
	short, err := h.shortener.Shorten(ctx, long)
	if err != nil || short == "" {
		h.logger.Warn("failed to shorten calendar link", "error", err)
		return long
	}
	return short
}

func buildLink(details models.EventDetails) (string, error) {
	link := calendar.BuildURL(details)
	if !calendar.IsValidURL(link) {
		return "", fmt.Errorf("%w: %q", calendar.ErrInvalidURL, link)
	}
	return link, nil
}
