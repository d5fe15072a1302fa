package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/linebot-assistant/pkg/calendar"
	"github.com/savaki/linebot-assistant/pkg/models"
)

// chat handles text that is not part of a course summary flow
func (h *EventHandler) chat(ctx context.Context, userID, text string) (string, error) {
	cmd := strings.TrimSpace(text)
	switch {
	case cmd == CommandClear:
		if err := h.store.Delete(ctx, userID); err != nil {
			return "", fmt.Errorf("clear transcript: %w", err)
		}
		h.logger.Info("transcript cleared", "user_id", userID)
		return ReplyCleared, nil

	case calendar.IsValidURL(cmd):
		h.showLoading(ctx, userID)
		link, err := h.urlLink(ctx, cmd)
		if err != nil {
			h.logger.Warn("failed to build calendar link from url", "user_id", userID, "error", err)
			return ReplyError, nil
		}
		return link, nil

	case cmd == CommandSummary:
		t, err := h.store.Get(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load transcript: %w", err)
		}
		if len(t) == 0 {
			return ReplyNoHistory, nil
		}
		h.showLoading(ctx, userID)
		summary, err := h.generator.GenerateText(ctx, fmt.Sprintf(chatSummaryPrompt, formatTranscript(t)))
		if err != nil {
			return "", fmt.Errorf("summarize transcript: %w", err)
		}
		return summary, nil

	default:
		return h.converse(ctx, userID, text)
	}
}

// converse appends the user's text and the model's answer to the
// transcript and persists it without waiting for the write
func (h *EventHandler) converse(ctx context.Context, userID, text string) (string, error) {
	t, err := h.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}

	h.showLoading(ctx, userID)

	t = t.Append(models.RoleUser, text)
	reply, err := h.generator.Generate(ctx, t)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	t = t.Append(models.RoleModel, reply)

	h.store.PutAsync(userID, t)
	return reply, nil
}

func formatTranscript(t models.Transcript) string {
	var sb strings.Builder
	for _, turn := range t {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
