package line

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/savaki/linebot-assistant/pkg/models"
)

const (
	// maxTextLength is the LINE limit for one text message
	maxTextLength = 5000

	// maxReplyMessages is the LINE limit for messages in one reply
	maxReplyMessages = 5

	// DefaultLoadingSeconds is how long the loading animation is shown
	DefaultLoadingSeconds = 20
)

// Client wraps the LINE Messaging API
type Client struct {
	api            *messaging_api.MessagingApiAPI
	blob           *messaging_api.MessagingApiBlobAPI
	loadingSeconds int32
}

// NewClient creates a new LINE client for the channel access token
func NewClient(channelToken string) (*Client, error) {
	if strings.TrimSpace(channelToken) == "" {
		return nil, fmt.Errorf("line: channel access token is required")
	}

	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("line: create messaging api: %w", err)
	}

	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("line: create blob api: %w", err)
	}

	return &Client{
		api:            api,
		blob:           blob,
		loadingSeconds: DefaultLoadingSeconds,
	}, nil
}

// Reply sends text messages bound to a reply token. Texts longer than the
// platform limit are split across several messages.
func (c *Client) Reply(ctx context.Context, replyToken string, texts ...string) error {
	messages := make([]messaging_api.MessageInterface, 0, len(texts))
	for _, text := range texts {
		for _, chunk := range splitText(text, maxTextLength) {
			messages = append(messages, messaging_api.TextMessage{Text: chunk})
		}
	}
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > maxReplyMessages {
		messages = messages[:maxReplyMessages]
	}

	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("line: reply message: %w", err)
	}
	return nil
}

// Content downloads the binary content of an image, audio or file message
func (c *Client) Content(ctx context.Context, messageID string) (models.Artifact, error) {
	resp, err := c.blob.WithContext(ctx).GetMessageContent(messageID)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("line: get message content %s: %w", messageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Artifact{}, fmt.Errorf("line: get message content %s: status %d", messageID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("line: read message content %s: %w", messageID, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return models.Artifact{Data: data, MIMEType: mimeType}, nil
}

// ShowLoading displays the typing animation in the user's chat
func (c *Client) ShowLoading(ctx context.Context, userID string) error {
	_, err := c.api.WithContext(ctx).ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         userID,
		LoadingSeconds: c.loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("line: show loading animation: %w", err)
	}
	return nil
}

// splitText cuts text into pieces of at most limit runes
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := limit
		if len(runes) < n {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
