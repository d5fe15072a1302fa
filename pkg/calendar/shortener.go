package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultShortenEndpoint = "https://api.reurl.cc/shorten"

// Shortener shortens links with the reurl.cc API. Without an API key it
// returns links unchanged.
type Shortener struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

type shortenRequest struct {
	URL       string `json:"url"`
	UTMSource string `json:"utm_source,omitempty"`
}

type shortenResponse struct {
	Result   string `json:"res"`
	ShortURL string `json:"short_url"`
	Message  string `json:"msg"`
}

// NewShortener creates a shortener. An empty endpoint uses reurl.cc.
func NewShortener(apiKey, endpoint string, httpClient *http.Client) *Shortener {
	if endpoint == "" {
		endpoint = DefaultShortenEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Shortener{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Shorten returns a short link for longURL
func (s *Shortener) Shorten(ctx context.Context, longURL string) (string, error) {
	if !IsValidURL(longURL) {
		return "", ErrInvalidURL
	}
	if s.apiKey == "" {
		return longURL, nil
	}

	body, err := json.Marshal(shortenRequest{URL: longURL, UTMSource: "linebot"})
	if err != nil {
		return "", fmt.Errorf("marshal shorten request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build shorten request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("reurl-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("shorten url: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read shorten response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shorten url: status %d: %s", resp.StatusCode, string(data))
	}

	var out shortenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("unmarshal shorten response: %w", err)
	}
	if out.Result != "success" || !IsValidURL(out.ShortURL) {
		return "", fmt.Errorf("shorten url: %s", out.Message)
	}

	return out.ShortURL, nil
}
