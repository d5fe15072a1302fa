package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/net/html/charset"

	"github.com/savaki/linebot-assistant/pkg/models"
)

// maxFetchBytes caps the size of a linked resource
const maxFetchBytes = 20 << 20

// maxPageText caps how much of a web page is sent to the model
const maxPageText = 30000

const extractPrompt = `Read the attached content and find the event it announces.
Reply with a single JSON object and nothing else, using these keys:
  "title":    short event name
  "time":     start and end as YYYYMMDDTHHMMSS/YYYYMMDDTHHMMSS, or YYYYMMDD for an all-day event, or "" if unknown
  "location": where the event happens, or ""
  "content":  one or two sentences describing the event
Keep the original language of the content.`

// ExtractFromImage reads event details out of a poster or screenshot
func (c *Client) ExtractFromImage(ctx context.Context, image models.Artifact) (models.EventDetails, error) {
	if len(image.Data) == 0 {
		return models.EventDetails{}, errors.New("gemini: image is empty")
	}
	return c.extract(ctx, genai.Blob{MIMEType: imageMIMEType(image), Data: image.Data})
}

// ExtractFromURL downloads the linked resource and reads event details out
// of it. Pictures and PDFs are sent as-is, anything else as text.
func (c *Client) ExtractFromURL(ctx context.Context, rawURL string) (models.EventDetails, error) {
	res, err := c.fetch(ctx, rawURL)
	if err != nil {
		return models.EventDetails{}, err
	}

	if isBinaryDocument(res.MIMEType) {
		return c.extract(ctx, genai.Blob{MIMEType: res.MIMEType, Data: res.Data})
	}

	text := truncateText(string(res.Data), maxPageText)
	return c.extract(ctx, genai.Text("Source: "+rawURL+"\n\n"+text))
}

func (c *Client) extract(ctx context.Context, part genai.Part) (models.EventDetails, error) {
	defer c.observe("extract", time.Now())

	model := c.client.GenerativeModel(c.modelID)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, part, genai.Text(extractPrompt))
	if err != nil {
		return models.EventDetails{}, fmt.Errorf("gemini: extract event: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return models.EventDetails{}, err
	}
	return parseEventDetails(text)
}

// fetch downloads a linked resource up to c.maxFetch bytes
func (c *Client) fetch(ctx context.Context, rawURL string) (models.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("gemini: build request for %s: %w", rawURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("gemini: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Artifact{}, fmt.Errorf("gemini: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFetch+1))
	if err != nil {
		return models.Artifact{}, fmt.Errorf("gemini: read %s: %w", rawURL, err)
	}
	if int64(len(data)) > c.maxFetch {
		return models.Artifact{}, fmt.Errorf("gemini: %s is larger than %d bytes", rawURL, c.maxFetch)
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := contentType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	} else {
		mimeType = http.DetectContentType(data)
		if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
			mimeType = parsed
		}
	}

	if !isBinaryDocument(mimeType) {
		data = decodeText(data, contentType)
	}

	return models.Artifact{Data: data, MIMEType: mimeType}, nil
}

// decodeText converts a text resource to valid UTF-8, honoring the charset
// declared in the header or the page's meta tag
func decodeText(data []byte, contentType string) []byte {
	enc, _, certain := charset.DetermineEncoding(data, contentType)
	if !certain && utf8.Valid(data) {
		return data
	}
	if out, err := enc.NewDecoder().Bytes(data); err == nil {
		data = out
	}
	return []byte(strings.ToValidUTF8(string(data), "\uFFFD"))
}

// truncateText cuts s to at most limit bytes without splitting a rune
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseEventDetails decodes the model's JSON answer, tolerating a
// surrounding markdown code fence
func parseEventDetails(text string) (models.EventDetails, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var d models.EventDetails
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return models.EventDetails{}, fmt.Errorf("gemini: decode event details: %w", err)
	}
	if strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Content) == "" {
		return models.EventDetails{}, errors.New("gemini: no event found")
	}
	return d, nil
}

func isBinaryDocument(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

func imageMIMEType(a models.Artifact) string {
	if strings.HasPrefix(a.MIMEType, "image/") || a.MIMEType == "application/pdf" {
		return a.MIMEType
	}
	return http.DetectContentType(a.Data)
}
