package config

import (
	"os"
	"strconv"
)

type Config struct {
	// AWS Configuration
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpointURL     string

	// DynamoDB Configuration
	EventsTableName   string
	MetadataTableName string

	// Queue Configuration
	QueueCapacity int

	// Service Configuration
	ServicePort string
	LogLevel    string
	SchemaPath  string

	// Producer Configuration
	AggregatorURL   string
	TotalEvents     int
	DuplicationRate float64
	BatchSize       int
}

func Load() *Config {
	return &Config{
		// AWS Configuration
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", "test"),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", "test"),
		AWSEndpointURL:     getEnv("AWS_ENDPOINT_URL", "http://localhost:4566"),

		// DynamoDB Configuration
		EventsTableName:   getEnv("EVENTS_TABLE_NAME", "processed-events"),
		MetadataTableName: getEnv("METADATA_TABLE_NAME", "aggregator-metadata"),

		// Queue Configuration
		QueueCapacity: getEnvAsInt("QUEUE_CAPACITY", 10000),

		// Service Configuration
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SchemaPath:  getEnv("SCHEMA_PATH", "schemas/event-schema.json"),

		// Producer Configuration
		AggregatorURL:   getEnv("AGGREGATOR_URL", "http://localhost:8080"),
		TotalEvents:     getEnvAsInt("TOTAL_EVENTS", 5000),
		DuplicationRate: getEnvAsFloat("DUPLICATION_RATE", 0.20),
		BatchSize:       getEnvAsInt("BATCH_SIZE", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
