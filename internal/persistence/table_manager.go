package persistence

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/logstream/aggregator/internal/config"
)

// TableManagerClient defines the DynamoDB operations the table
// manager needs.
type TableManagerClient interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableManager ensures the dedup and metadata tables exist before the
// service starts processing. The tables live on the external DynamoDB
// volume, so existing rows survive restarts untouched.
type TableManager struct {
	client        TableManagerClient
	eventsTable   string
	metadataTable string
	logger        *logrus.Logger
}

// NewTableManager creates a new table manager
func NewTableManager(awsCfg aws.Config, cfg *config.Config, logger *logrus.Logger) *TableManager {
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
	})

	return &TableManager{
		client:        client,
		eventsTable:   cfg.EventsTableName,
		metadataTable: cfg.MetadataTableName,
		logger:        logger,
	}
}

// NewTableManagerWithClient creates a table manager with an explicit client.
func NewTableManagerWithClient(client TableManagerClient, cfg *config.Config, logger *logrus.Logger) *TableManager {
	return &TableManager{
		client:        client,
		eventsTable:   cfg.EventsTableName,
		metadataTable: cfg.MetadataTableName,
		logger:        logger,
	}
}

// EnsureTables creates the tables that do not already exist.
func (t *TableManager) EnsureTables(ctx context.Context) error {
	result, err := t.client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	existing := make(map[string]bool, len(result.TableNames))
	for _, name := range result.TableNames {
		existing[name] = true
	}

	if existing[t.eventsTable] {
		t.logger.WithField("table", t.eventsTable).Info("Events table already exists")
	} else if err := t.createEventsTable(ctx); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	if existing[t.metadataTable] {
		t.logger.WithField("table", t.metadataTable).Info("Metadata table already exists")
	} else if err := t.createMetadataTable(ctx); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	return nil
}

// createEventsTable creates the dedup table keyed by (topic, event_id).
func (t *TableManager) createEventsTable(ctx context.Context) error {
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(t.eventsTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("topic"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("event_id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("topic"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("event_id"),
				KeyType:       types.KeyTypeRange,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	if _, err := t.client.CreateTable(ctx, input); err != nil {
		return err
	}

	t.logger.WithField("table", t.eventsTable).Info("Created events table")
	return nil
}

// createMetadataTable creates the key-value metadata table.
func (t *TableManager) createMetadataTable(ctx context.Context) error {
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(t.metadataTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	if _, err := t.client.CreateTable(ctx, input); err != nil {
		return err
	}

	t.logger.WithField("table", t.metadataTable).Info("Created metadata table")
	return nil
}
