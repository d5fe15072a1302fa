package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client talks to the Firebase Realtime Database REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient creates a client for the database at baseURL
// (e.g. https://my-project.firebaseio.com)
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("firebase: base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("firebase: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tracer:     otel.Tracer("linebot.pkg.firebase"),
	}, nil
}

// Get decodes the value at path into v. It reports false when nothing is stored.
func (c *Client) Get(ctx context.Context, path string, v any) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "firebase.get", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("firebase: decode %s: %w", path, err)
	}
	return true, nil
}

// Put replaces the value at path
func (c *Client) Put(ctx context.Context, path string, v any) error {
	ctx, span := c.tracer.Start(ctx, "firebase.put", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("firebase: encode %s: %w", path, err)
	}
	if _, err := c.do(ctx, http.MethodPut, path, data); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Delete removes the value at path. Deleting a missing path succeeds.
func (c *Client) Delete(ctx context.Context, path string) error {
	ctx, span := c.tracer.Start(ctx, "firebase.delete", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.Trim(path, "/") + ".json"

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("firebase: build %s request: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firebase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("firebase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("firebase: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
