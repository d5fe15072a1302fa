package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/savaki/linebot-assistant/pkg/models"
)

const (
	// Default Bedrock model ID for Claude 3.5 Sonnet
	DefaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 2048
)

// InvokeAPI is the part of the Bedrock runtime client used here
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// GenerationObserver receives the latency of each model call
type GenerationObserver interface {
	ObserveGeneration(operation string, seconds float64)
}

// Client is a client for AWS Bedrock Runtime (Claude models)
type Client struct {
	client       InvokeAPI
	modelID      string
	systemPrompt string
	maxTokens    int
	observer     GenerationObserver
}

// NewClient creates a new Bedrock client
func NewClient(cfg aws.Config) *Client {
	return NewClientWithAPI(bedrockruntime.NewFromConfig(cfg))
}

// NewClientWithAPI creates a client on top of an existing runtime API
func NewClientWithAPI(api InvokeAPI) *Client {
	return &Client{
		client:       api,
		modelID:      DefaultModelID,
		systemPrompt: GetSystemPrompt(),
		maxTokens:    defaultMaxTokens,
	}
}

// SetModel allows overriding the default model ID
func (c *Client) SetModel(modelID string) {
	if modelID != "" {
		c.modelID = modelID
	}
}

// SetObserver reports call latency to o
func (c *Client) SetObserver(o GenerationObserver) {
	c.observer = o
}

// Message is one entry of the Claude Messages API
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BedrockRequest represents a request to Bedrock (Claude Messages API format)
type BedrockRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
	System           string    `json:"system,omitempty"`
}

// BedrockResponse represents a response from Bedrock
type BedrockResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate continues a chat transcript
func (c *Client) Generate(ctx context.Context, t models.Transcript) (string, error) {
	messages := toMessages(t)
	if len(messages) == 0 {
		return "", fmt.Errorf("bedrock: transcript is empty")
	}
	if messages[len(messages)-1].Role != "user" {
		return "", fmt.Errorf("bedrock: last turn must come from the user")
	}

	defer c.observe("chat", time.Now())
	return c.SendMessage(ctx, messages, c.systemPrompt)
}

// GenerateText answers a single prompt with no history
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("bedrock: prompt is empty")
	}

	defer c.observe("text", time.Now())
	return c.SendMessage(ctx, []Message{{Role: "user", Content: prompt}}, "")
}

// SendMessage sends a message to Claude via Bedrock with conversation history
func (c *Client) SendMessage(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	// Build request in Claude Messages API format
	req := BedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		Messages:         messages,
		System:           systemPrompt,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke bedrock model: %w", err)
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from Bedrock")
	}

	return sb.String(), nil
}

func (c *Client) observe(operation string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGeneration(operation, time.Since(start).Seconds())
	}
}

// toMessages maps transcript turns onto Claude roles. Claude needs the
// conversation to open with the user and alternate, so leading model turns
// are dropped and consecutive turns from one role are merged.
func toMessages(t models.Transcript) []Message {
	var out []Message
	for _, turn := range t {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}

		role := "user"
		if turn.Role == models.RoleModel {
			role = "assistant"
		}

		if len(out) == 0 && role != "user" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	return out
}

// GetSystemPrompt returns the default system prompt for the chat assistant
func GetSystemPrompt() string {
	return `You are a friendly assistant chatting with people through LINE.

Guidelines:
- Reply in the language the user writes in; default to Traditional Chinese (繁體中文)
- Keep answers short enough to read comfortably on a phone
- Use plain text; LINE does not render markdown
- If you're unsure, say so instead of guessing`
}
