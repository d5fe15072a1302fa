package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/savaki/linebot-assistant/pkg/app"
	appconfig "github.com/savaki/linebot-assistant/pkg/config"
	"github.com/savaki/linebot-assistant/pkg/handler"
	"github.com/savaki/linebot-assistant/pkg/logging"
)

// Webhook is the part of the event handler the Lambda needs
type Webhook interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	CalendarURL(ctx context.Context, rawURL string) (string, error)
}

// Flusher waits for background writes to land
type Flusher interface {
	Flush(ctx context.Context) error
}

// flushTimeout bounds how long an invocation waits for transcript writes
const flushTimeout = 5 * time.Second

// LambdaHandler serves API Gateway proxy events. It lives for the whole
// warm container, so course summary flows survive between invocations.
// The container is frozen once Handle returns, so pending transcript
// writes are flushed before that.
type LambdaHandler struct {
	webhook Webhook
	writes  Flusher
	logger  *logging.Logger
}

// Handle is the Lambda handler for LINE webhook and calendar requests
func (h *LambdaHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case request.HTTPMethod == http.MethodGet && request.Path == "/health":
		return okResponse("ok"), nil
	case request.HTTPMethod == http.MethodGet && request.Path == "/":
		return h.calendar(ctx, request), nil
	case request.HTTPMethod == http.MethodPost:
		return h.webhookEvent(ctx, request), nil
	default:
		return errorResponse(http.StatusNotFound, "Not Found"), nil
	}
}

func (h *LambdaHandler) webhookEvent(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "Invalid body")
		}
		body = decoded
	}

	err := h.webhook.HandleWebhook(ctx, body, header(request.Headers, "X-Line-Signature"))
	h.flush(ctx)

	switch status := handler.StatusCode(err); status {
	case http.StatusOK:
		return okResponse("OK")
	case http.StatusBadRequest:
		h.logger.Warn("rejected webhook", "error", err)
		return errorResponse(status, "Invalid signature")
	default:
		h.logger.Error("webhook failed", "error", err)
		return errorResponse(status, "Internal Server Error")
	}
}

func (h *LambdaHandler) flush(ctx context.Context) {
	if h.writes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := h.writes.Flush(ctx); err != nil {
		h.logger.Error("failed to flush transcript writes", "error", err)
	}
}

func (h *LambdaHandler) calendar(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	imgURL := request.QueryStringParameters["img_url"]
	if imgURL == "" {
		return textResponse(http.StatusBadRequest, handler.ReplyError)
	}

	link, err := h.webhook.CalendarURL(ctx, imgURL)
	if err != nil {
		h.logger.Warn("failed to build calendar link", "img_url", imgURL, "error", err)
		return textResponse(http.StatusOK, handler.ReplyError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusTemporaryRedirect,
		Headers:    map[string]string{"Location": link},
	}
}

// header looks up a header case-insensitively; API Gateway keeps the
// client's casing
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// errorResponse returns a JSON error response
func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"detail": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
	}
}

// okResponse returns a successful response
func okResponse(body interface{}) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(body)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	application, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to wire application", "error", err)
		os.Exit(1)
	}

	h := &LambdaHandler{webhook: application.Handler, writes: application, logger: logger}
	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		if err := application.Close(drainCtx); err != nil {
			logger.Error("failed to drain on shutdown", "error", err)
		}
	}))
}
