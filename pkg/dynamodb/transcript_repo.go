package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/savaki/linebot-assistant/pkg/models"
	"github.com/savaki/linebot-assistant/pkg/transcript"
)

// TranscriptRepository handles DynamoDB operations for user transcripts.
// The table is keyed by user_id with a ttl attribute for expiry.
type TranscriptRepository struct {
	client    API
	tableName string
	ttl       time.Duration
	tracer    trace.Tracer
}

var _ transcript.Store = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(client API, tableName string, ttl time.Duration) *TranscriptRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TranscriptRepository{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		tracer:    otel.Tracer("linebot.pkg.dynamodb"),
	}
}

// Put stores the full transcript for a user, replacing any previous one
func (r *TranscriptRepository) Put(ctx context.Context, userID string, t models.Transcript) error {
	ctx, span := r.tracer.Start(ctx, "dynamodb.put_transcript")
	defer span.End()

	record := models.NewTranscriptRecord(userID, transcript.Path(userID), t, r.ttl)
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("put item: %w", err)
	}

	return nil
}

// Get retrieves a user's transcript. A missing item is an empty transcript.
func (r *TranscriptRepository) Get(ctx context.Context, userID string) (models.Transcript, error) {
	ctx, span := r.tracer.Start(ctx, "dynamodb.get_transcript")
	defer span.End()

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(userID),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get item: %w", err)
	}

	if result.Item == nil {
		return models.Transcript{}, nil
	}

	var record models.TranscriptRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}

	// expired items linger until DynamoDB's TTL sweeper removes them
	if record.TTL > 0 && record.TTL < time.Now().Unix() {
		return models.Transcript{}, nil
	}

	if record.Turns == nil {
		return models.Transcript{}, nil
	}
	return record.Turns, nil
}

// Delete removes a user's transcript
func (r *TranscriptRepository) Delete(ctx context.Context, userID string) error {
	ctx, span := r.tracer.Start(ctx, "dynamodb.delete_transcript")
	defer span.End()

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(userID),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete item: %w", err)
	}

	return nil
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}
