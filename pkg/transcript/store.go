// Package transcript defines the per-user chat history store and the
// fire-and-forget writer that sits in front of it.
package transcript

import (
	"context"

	"github.com/savaki/linebot-assistant/pkg/models"
)

// Store persists one transcript per user. Get returns an empty transcript
// and no error when nothing is stored for the user.
type Store interface {
	Get(ctx context.Context, userID string) (models.Transcript, error)
	Put(ctx context.Context, userID string, t models.Transcript) error
	Delete(ctx context.Context, userID string) error
}

// Path returns the storage path of a user's transcript
func Path(userID string) string {
	return "chat/" + userID
}
