package line

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/savaki/linebot-assistant/pkg/models"
)

// ParseEvents decodes a webhook callback body into the message events the
// bot understands. Other events and message types are skipped.
func ParseEvents(body []byte) ([]models.InboundEvent, error) {
	var callback webhook.CallbackRequest
	if err := json.Unmarshal(body, &callback); err != nil {
		return nil, fmt.Errorf("line: parse callback: %w", err)
	}

	var out []models.InboundEvent
	for _, event := range callback.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}

		in := models.InboundEvent{
			UserID:     sourceID(e.Source),
			ReplyToken: e.ReplyToken,
		}

		switch m := e.Message.(type) {
		case webhook.TextMessageContent:
			in.Type = models.EventText
			in.MessageID = m.Id
			in.Text = m.Text
		case webhook.ImageMessageContent:
			in.Type = models.EventImage
			in.MessageID = m.Id
		case webhook.AudioMessageContent:
			in.Type = models.EventAudio
			in.MessageID = m.Id
		default:
			continue
		}

		out = append(out, in)
	}

	return out, nil
}

// sourceID returns the sending user, falling back to the group or room
func sourceID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		if s.UserId != "" {
			return s.UserId
		}
		return s.GroupId
	case webhook.RoomSource:
		if s.UserId != "" {
			return s.UserId
		}
		return s.RoomId
	default:
		return ""
	}
}
