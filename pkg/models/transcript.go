package models

import "time"

// Turn roles understood by the generative service
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single exchange entry in a user's transcript
type Turn struct {
	Role    string `json:"role" dynamodbav:"role"`
	Content string `json:"content" dynamodbav:"content"`
}

// Transcript is the ordered chat history for one user
type Transcript []Turn

// Append returns a copy of the transcript with one more turn at the end.
// The receiver is never modified so callers may keep the original.
func (t Transcript) Append(role, content string) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, Turn{Role: role, Content: content})
}

// TranscriptRecord is the stored shape of a transcript for record based backends
type TranscriptRecord struct {
	UserID    string     `dynamodbav:"user_id"`
	Path      string     `dynamodbav:"path"`
	Turns     Transcript `dynamodbav:"turns"`
	UpdatedAt time.Time  `dynamodbav:"updated_at"`
	TTL       int64      `dynamodbav:"ttl"` // Unix timestamp
}

// NewTranscriptRecord creates a record that expires after ttl
func NewTranscriptRecord(userID, path string, turns Transcript, ttl time.Duration) *TranscriptRecord {
	now := time.Now()
	return &TranscriptRecord{
		UserID:    userID,
		Path:      path,
		Turns:     turns,
		UpdatedAt: now,
		TTL:       now.Add(ttl).Unix(),
	}
}
