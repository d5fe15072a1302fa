package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/savaki/linebot-assistant/pkg/models"
	"github.com/savaki/linebot-assistant/pkg/transcript"
)

// TranscriptStore keeps each transcript as a JSON value at chat/{userID}
type TranscriptStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

var _ transcript.Store = (*TranscriptStore)(nil)

// NewTranscriptStore creates a store whose keys expire after ttl; zero keeps them forever
func NewTranscriptStore(client *redis.Client, ttl time.Duration) *TranscriptStore {
	if client == nil {
		panic("redisstore: redis client cannot be nil")
	}
	return &TranscriptStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("linebot.pkg.redisstore"),
	}
}

// Get returns the user's transcript, empty when the key is missing
func (s *TranscriptStore) Get(ctx context.Context, userID string) (models.Transcript, error) {
	ctx, span := s.tracer.Start(ctx, "redis.get_transcript")
	defer span.End()

	data, err := s.redis.Get(ctx, transcript.Path(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Transcript{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("redisstore: failed to load transcript: %w", err)
	}

	var t models.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("redisstore: failed to decode transcript: %w", err)
	}
	return t, nil
}

// Put replaces the user's transcript and refreshes its TTL
func (s *TranscriptStore) Put(ctx context.Context, userID string, t models.Transcript) error {
	ctx, span := s.tracer.Start(ctx, "redis.put_transcript")
	defer span.End()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redisstore: failed to marshal transcript: %w", err)
	}
	if err := s.redis.Set(ctx, transcript.Path(userID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redisstore: failed to persist transcript: %w", err)
	}
	return nil
}

// Delete removes the user's transcript
func (s *TranscriptStore) Delete(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "redis.delete_transcript")
	defer span.End()

	if err := s.redis.Del(ctx, transcript.Path(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redisstore: failed to delete transcript: %w", err)
	}
	return nil
}
