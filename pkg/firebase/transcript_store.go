package firebase

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/linebot-assistant/pkg/models"
	"github.com/savaki/linebot-assistant/pkg/transcript"
)

// storedTurn is the record layout under chat/{userID}. It matches the
// Gemini content shape so existing databases stay readable.
type storedTurn struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

// TranscriptStore keeps transcripts in the Realtime Database
type TranscriptStore struct {
	client *Client
}

var _ transcript.Store = (*TranscriptStore)(nil)

// NewTranscriptStore creates a store backed by client
func NewTranscriptStore(client *Client) *TranscriptStore {
	return &TranscriptStore{client: client}
}

// Get returns the user's transcript, empty when none is stored
func (s *TranscriptStore) Get(ctx context.Context, userID string) (models.Transcript, error) {
	var stored []storedTurn
	found, err := s.client.Get(ctx, transcript.Path(userID), &stored)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if !found {
		return models.Transcript{}, nil
	}

	out := make(models.Transcript, 0, len(stored))
	for _, st := range stored {
		out = append(out, models.Turn{Role: st.Role, Content: strings.Join(st.Parts, "")})
	}
	return out, nil
}

// Put replaces the user's transcript
func (s *TranscriptStore) Put(ctx context.Context, userID string, t models.Transcript) error {
	stored := make([]storedTurn, 0, len(t))
	for _, turn := range t {
		stored = append(stored, storedTurn{Role: turn.Role, Parts: []string{turn.Content}})
	}
	if err := s.client.Put(ctx, transcript.Path(userID), stored); err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}

// Delete removes the user's transcript
func (s *TranscriptStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Delete(ctx, transcript.Path(userID)); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}
