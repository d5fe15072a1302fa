package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/savaki/linebot-assistant/pkg/models"
)

// maxInlineBytes is the largest artifact sent inline with the request.
// Anything bigger goes through the File API.
const maxInlineBytes = 15 << 20

const (
	filePollInterval = 2 * time.Second
	filePollAttempts = 60
)

const summaryPrompt = `The audio is a recording of a class or club lecture.
1. Transcribe what is said.
2. Translate the transcript into Traditional Chinese (繁體中文) if needed.
3. Write study notes in Traditional Chinese: a one-line topic, then the key points as a bulleted list, then any action items or homework mentioned.
Reply with the notes only.`

const attachmentPrompt = `The attached slides or document belong to the same lecture. Use them to correct names and terms and to structure the notes.`

// Summarize turns a course recording, and optionally its slides, into
// Traditional Chinese study notes
func (c *Client) Summarize(ctx context.Context, audio models.Artifact, attachment *models.Artifact) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("gemini: recording is empty")
	}

	var uploaded []string
	defer func() {
		for _, name := range uploaded {
			// the request context may be done by now
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := c.client.DeleteFile(cleanupCtx, name); err != nil {
				c.logger.Warn("failed to delete uploaded file", "file", name, "error", err)
			}
			cancel()
		}
	}()

	audioPart, name, err := c.part(ctx, audio.Data, audioMIMEType(audio.MIMEType))
	if name != "" {
		uploaded = append(uploaded, name)
	}
	if err != nil {
		return "", err
	}

	parts := []genai.Part{audioPart}
	if attachment != nil && len(attachment.Data) > 0 {
		attachmentPart, name, err := c.part(ctx, attachment.Data, imageMIMEType(*attachment))
		if name != "" {
			uploaded = append(uploaded, name)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, attachmentPart, genai.Text(attachmentPrompt))
	}
	parts = append(parts, genai.Text(summaryPrompt))

	defer c.observe("summary", time.Now())

	resp, err := c.client.GenerativeModel(c.modelID).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: summarize: %w", err)
	}
	return responseText(resp)
}

// part returns an inline blob for small payloads and an uploaded file
// reference otherwise. name is set whenever a file was uploaded, even on
// error, so the caller can delete it.
func (c *Client) part(ctx context.Context, data []byte, mimeType string) (genai.Part, string, error) {
	if !needsUpload(len(data)) {
		return genai.Blob{MIMEType: mimeType, Data: data}, "", nil
	}

	file, err := c.client.UploadFile(ctx, "", bytes.NewReader(data), &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return nil, "", fmt.Errorf("gemini: upload file: %w", err)
	}

	name := file.Name

	for i := 0; file.State == genai.FileStateProcessing && i < filePollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, name, ctx.Err()
		case <-time.After(filePollInterval):
		}
		if file, err = c.client.GetFile(ctx, name); err != nil {
			return nil, name, fmt.Errorf("gemini: get file: %w", err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, name, fmt.Errorf("gemini: uploaded file %s is not active (state %d)", name, file.State)
	}

	c.logger.Debug("uploaded file", "file", name, "bytes", len(data), "mime_type", mimeType)
	return genai.FileData{MIMEType: file.MIMEType, URI: file.URI}, name, nil
}

func needsUpload(size int) bool {
	return size > maxInlineBytes
}

// audioMIMEType maps container types reported for LINE voice messages to
// ones the model accepts
func audioMIMEType(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "audio/m4a", "audio/x-m4a", "audio/mp4", "audio/mp4a-latm", "":
		return "audio/aac"
	case "audio/mpeg":
		return "audio/mp3"
	default:
		return mimeType
	}
}
