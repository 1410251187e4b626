package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoSessionStore keeps sessions as DynamoDB items keyed by sessionId.
type DynamoSessionStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	tracer    trace.Tracer
}

var _ SessionStore = (*DynamoSessionStore)(nil)

type dynamoSessionItem struct {
	Session
	ExpiresAt int64 `dynamodbav:"expiresAt,omitempty"`
}

func NewDynamoSessionStore(client dynamoAPI, tableName string, ttl time.Duration, tracer trace.Tracer) *DynamoSessionStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if tracer == nil {
		tracer = otel.Tracer("leasing.internal.conversation.sessions")
	}
	return &DynamoSessionStore{client: client, tableName: tableName, ttl: ttl, tracer: tracer}
}

func (s *DynamoSessionStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"sessionId": &types.AttributeValueMemberS{Value: id}}
}

func (s *DynamoSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_session", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	sess, err := s.get(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		span.RecordError(err)
	}
	return sess, err
}

func (s *DynamoSessionStore) get(ctx context.Context, id string) (*Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrSessionNotFound
	}
	var item dynamoSessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &item.Session, nil
}

// Save reads the stored item, folds it in and writes back conditioned on the item not
// having changed in between, retrying a few times on conflict.
func (s *DynamoSessionStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()
	if sess == nil || sess.SessionID == "" {
		return errors.New("conversation: session id required")
	}
	span.SetAttributes(attribute.String("session_id", sess.SessionID))

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		stored, err := s.get(ctx, sess.SessionID)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			span.RecordError(err)
			return err
		}
		next := sess.clone()
		next.absorb(stored)

		item := dynamoSessionItem{Session: *next}
		if s.ttl > 0 {
			item.ExpiresAt = time.Now().Add(s.ttl).Unix()
		}
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal session: %w", err)
		}

		input := &dynamodb.PutItemInput{
			TableName:           aws.String(s.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(sessionId)"),
		}
		if stored != nil {
			prev, err := attributevalue.Marshal(stored.UpdatedAt)
			if err != nil {
				return fmt.Errorf("conversation: failed to marshal session version: %w", err)
			}
			input.ConditionExpression = aws.String("updatedAt = :prev")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{":prev": prev}
		}

		_, err = s.client.PutItem(ctx, input)
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to persist session: %w", err)
		}
		return nil
	}
	return errors.New("conversation: session save conflicted too many times")
}

func (s *DynamoSessionStore) LeadSynced(ctx context.Context, id string) (bool, error) {
	return leadSynced(ctx, s.Get, id)
}

func (s *DynamoSessionStore) MarkLeadSynced(ctx context.Context, id, externalID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.mark_lead_synced", trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal timestamp: %w", err)
	}
	update := "SET leadSyncedToExternal = :true, updatedAt = :now"
	values := map[string]types.AttributeValue{
		":true": &types.AttributeValueMemberBOOL{Value: true},
		":now":  now,
	}
	if externalID != "" {
		update += ", externalLeadId = if_not_exists(externalLeadId, :ext)"
		values[":ext"] = &types.AttributeValueMemberS{Value: externalID}
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(id),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(sessionId)"),
		ExpressionAttributeValues: values,
	})
	var missing *types.ConditionalCheckFailedException
	if errors.As(err, &missing) {
		return ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to mark lead synced: %w", err)
	}
	return nil
}
