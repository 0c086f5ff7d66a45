package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/logstream/aggregator/internal/config"
	"github.com/logstream/aggregator/pkg/models"
)

// statsKey is the metadata-table key under which the counter snapshot
// is persisted across restarts.
const statsKey = "system_metrics"

// DynamoDBClient defines the interface for DynamoDB operations
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBStore implements Store using a DynamoDB table keyed by
// (topic, event_id). The conditional PutItem in TryMark is the atomic
// insert-if-absent primitive; the uniqueness guarantee is enforced by
// the storage layer, not by application-level coordination.
type DynamoDBStore struct {
	client        DynamoDBClient
	eventsTable   string
	metadataTable string
}

// NewDynamoDBStore creates a store backed by the configured tables.
func NewDynamoDBStore(awsCfg aws.Config, cfg *config.Config) *DynamoDBStore {
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
	})

	return &DynamoDBStore{
		client:        client,
		eventsTable:   cfg.EventsTableName,
		metadataTable: cfg.MetadataTableName,
	}
}

// NewDynamoDBStoreWithClient creates a store with an explicit client.
func NewDynamoDBStoreWithClient(client DynamoDBClient, cfg *config.Config) *DynamoDBStore {
	return &DynamoDBStore{
		client:        client,
		eventsTable:   cfg.EventsTableName,
		metadataTable: cfg.MetadataTableName,
	}
}

// TryMark performs the atomic check-and-mark. The full event row is
// written in the same conditional put, so a true result implies the
// event is durably recorded before the worker counts it.
func (s *DynamoDBStore) TryMark(ctx context.Context, event *models.Event) (bool, error) {
	item := map[string]types.AttributeValue{
		"topic":        &types.AttributeValueMemberS{Value: event.Topic},
		"event_id":     &types.AttributeValueMemberS{Value: event.EventID},
		"source":       &types.AttributeValueMemberS{Value: event.Source},
		"timestamp":    &types.AttributeValueMemberS{Value: event.Timestamp.UTC().Format(time.RFC3339)},
		"payload":      &types.AttributeValueMemberM{Value: marshalPayload(event.Payload)},
		"processed_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.eventsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "topic",
		},
	}

	_, err := s.client.PutItem(ctx, input)
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Key already present: a duplicate delivery, not an error.
			return false, nil
		}
		return false, fmt.Errorf("failed to mark event %s: %w", event.DedupKey(), err)
	}

	return true, nil
}

// ListEvents scans the events table, optionally filtering by topic.
func (s *DynamoDBStore) ListEvents(ctx context.Context, topic string) ([]models.StoredEvent, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.eventsTable),
	}
	if topic != "" {
		input.FilterExpression = aws.String("#t = :topic")
		input.ExpressionAttributeNames = map[string]string{"#t": "topic"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":topic": &types.AttributeValueMemberS{Value: topic},
		}
	}

	var events []models.StoredEvent
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for _, item := range result.Items {
			events = append(events, unmarshalStoredEvent(item))
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return events, nil
}

// CountEvents returns the number of dedup rows.
func (s *DynamoDBStore) CountEvents(ctx context.Context) (int64, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.eventsTable),
		Select:    types.SelectCount,
	}

	var count int64
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("failed to count events: %w", err)
		}

		count += int64(result.Count)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return count, nil
}

// LoadStats reads the persisted counter snapshot from the metadata table.
func (s *DynamoDBStore) LoadStats(ctx context.Context) (*models.StatsSnapshot, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.metadataTable),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: statsKey},
		},
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	valueAttr, ok := result.Item["value"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("stats metadata has unexpected shape")
	}

	var snapshot models.StatsSnapshot
	if err := json.Unmarshal([]byte(valueAttr.Value), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	return &snapshot, nil
}

// SaveStats persists the counter snapshot as JSON in the metadata table.
func (s *DynamoDBStore) SaveStats(ctx context.Context, snapshot *models.StatsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.metadataTable),
		Item: map[string]types.AttributeValue{
			"key":   &types.AttributeValueMemberS{Value: statsKey},
			"value": &types.AttributeValueMemberS{Value: string(data)},
		},
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}

	return nil
}

// Reset deletes every dedup row and the persisted stats snapshot.
func (s *DynamoDBStore) Reset(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.eventsTable),
		ProjectionExpression:     aws.String("#t, event_id"),
		ExpressionAttributeNames: map[string]string{"#t": "topic"},
	}

	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan events for reset: %w", err)
		}

		for _, item := range result.Items {
			deleteInput := &dynamodb.DeleteItemInput{
				TableName: aws.String(s.eventsTable),
				Key: map[string]types.AttributeValue{
					"topic":    item["topic"],
					"event_id": item["event_id"],
				},
			}
			if _, err := s.client.DeleteItem(ctx, deleteInput); err != nil {
				return fmt.Errorf("failed to delete event row: %w", err)
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	deleteStats := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.metadataTable),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: statsKey},
		},
	}
	if _, err := s.client.DeleteItem(ctx, deleteStats); err != nil {
		return fmt.Errorf("failed to delete stats row: %w", err)
	}

	return nil
}

// HealthCheck performs a health check on the DynamoDB connection.
func (s *DynamoDBStore) HealthCheck(ctx context.Context) error {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(s.eventsTable),
	}

	_, err := s.client.DescribeTable(ctx, input)
	return err
}

// marshalPayload converts a map[string]interface{} to DynamoDB attribute values
func marshalPayload(payload map[string]interface{}) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)

	for key, value := range payload {
		switch v := value.(type) {
		case string:
			result[key] = &types.AttributeValueMemberS{Value: v}
		case int:
			result[key] = &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
		case int64:
			result[key] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
		case float64:
			result[key] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
		case bool:
			result[key] = &types.AttributeValueMemberBOOL{Value: v}
		case map[string]interface{}:
			result[key] = &types.AttributeValueMemberM{Value: marshalPayload(v)}
		default:
			result[key] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%v", v)}
		}
	}

	return result
}

// unmarshalPayload converts DynamoDB attribute values back to a map
func unmarshalPayload(attrs map[string]types.AttributeValue) map[string]interface{} {
	result := make(map[string]interface{})

	for key, attr := range attrs {
		switch v := attr.(type) {
		case *types.AttributeValueMemberS:
			result[key] = v.Value
		case *types.AttributeValueMemberN:
			if number, err := strconv.ParseFloat(v.Value, 64); err == nil {
				result[key] = number
			}
		case *types.AttributeValueMemberBOOL:
			result[key] = v.Value
		case *types.AttributeValueMemberM:
			result[key] = unmarshalPayload(v.Value)
		}
	}

	return result
}

// unmarshalStoredEvent extracts a StoredEvent from a table item.
func unmarshalStoredEvent(item map[string]types.AttributeValue) models.StoredEvent {
	event := models.StoredEvent{}

	if attr, ok := item["topic"].(*types.AttributeValueMemberS); ok {
		event.Topic = attr.Value
	}
	if attr, ok := item["event_id"].(*types.AttributeValueMemberS); ok {
		event.EventID = attr.Value
	}
	if attr, ok := item["source"].(*types.AttributeValueMemberS); ok {
		event.Source = attr.Value
	}
	if attr, ok := item["timestamp"].(*types.AttributeValueMemberS); ok {
		if ts, err := time.Parse(time.RFC3339, attr.Value); err == nil {
			event.Timestamp = ts
		}
	}
	if attr, ok := item["processed_at"].(*types.AttributeValueMemberS); ok {
		if ts, err := time.Parse(time.RFC3339, attr.Value); err == nil {
			event.ProcessedAt = ts
		}
	}
	if attr, ok := item["payload"].(*types.AttributeValueMemberM); ok {
		event.Payload = unmarshalPayload(attr.Value)
	}

	return event
}
