// Package gemini talks to Google's Gemini models for chat replies, event
// extraction from pictures and course recording summaries.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/savaki/linebot-assistant/pkg/logging"
	"github.com/savaki/linebot-assistant/pkg/models"
)

// DefaultModelID is used when no model is configured
const DefaultModelID = "gemini-1.5-flash"

// GenerationObserver receives the latency of each model call
type GenerationObserver interface {
	ObserveGeneration(operation string, seconds float64)
}

// Client wraps the Gemini API
type Client struct {
	client     *genai.Client
	modelID    string
	httpClient *http.Client
	logger     *logging.Logger
	observer   GenerationObserver
	maxFetch   int64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the client used to download linked resources
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithObserver reports call latency to o
func WithObserver(o GenerationObserver) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey, modelID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultModelID
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c := &Client{
		client:     client,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Discard(),
		maxFetch:   maxFetchBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases resources held by the client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate continues a chat. Every turn but the last becomes history and
// the last turn is sent as the new message.
func (c *Client) Generate(ctx context.Context, t models.Transcript) (string, error) {
	history, last, err := toHistory(t)
	if err != nil {
		return "", err
	}

	defer c.observe("chat", time.Now())

	cs := c.client.GenerativeModel(c.modelID).StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini: chat: %w", err)
	}
	return responseText(resp)
}

// GenerateText answers a single prompt with no history
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("gemini: prompt is empty")
	}

	defer c.observe("text", time.Now())

	resp, err := c.client.GenerativeModel(c.modelID).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	return responseText(resp)
}

func (c *Client) observe(operation string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGeneration(operation, time.Since(start).Seconds())
	}
}

// toHistory splits a transcript into chat history and the message to send
func toHistory(t models.Transcript) ([]*genai.Content, string, error) {
	if len(t) == 0 {
		return nil, "", errors.New("gemini: transcript is empty")
	}

	last := t[len(t)-1]
	if last.Role != models.RoleUser {
		return nil, "", fmt.Errorf("gemini: last turn has role %q, want %q", last.Role, models.RoleUser)
	}

	history := make([]*genai.Content, 0, len(t)-1)
	for _, turn := range t[:len(t)-1] {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := models.RoleUser
		if turn.Role == models.RoleModel {
			role = models.RoleModel
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	return history, last.Content, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates returned")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("gemini: empty content returned")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("gemini: empty text returned")
	}
	return out, nil
}
