package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLoadDefaults verifies the defaults used when no environment is set.
func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "processed-events", cfg.EventsTableName)
	assert.Equal(t, "aggregator-metadata", cfg.MetadataTableName)
	assert.Equal(t, 10000, cfg.QueueCapacity)
	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "schemas/event-schema.json", cfg.SchemaPath)
	assert.Equal(t, 5000, cfg.TotalEvents)
	assert.InDelta(t, 0.20, cfg.DuplicationRate, 1e-9)
	assert.Equal(t, 100, cfg.BatchSize)
}

// TestLoadOverrides verifies environment variables win over defaults.
func TestLoadOverrides(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("EVENTS_TABLE_NAME", "dedup-test")
	t.Setenv("QUEUE_CAPACITY", "250")
	t.Setenv("SERVICE_PORT", "9090")
	t.Setenv("DUPLICATION_RATE", "0.5")

	cfg := Load()

	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "dedup-test", cfg.EventsTableName)
	assert.Equal(t, 250, cfg.QueueCapacity)
	assert.Equal(t, "9090", cfg.ServicePort)
	assert.InDelta(t, 0.5, cfg.DuplicationRate, 1e-9)
}

// TestLoadMalformedNumbers verifies unparseable values fall back to
// the defaults instead of failing.
func TestLoadMalformedNumbers(t *testing.T) {
	t.Setenv("QUEUE_CAPACITY", "not-a-number")
	t.Setenv("DUPLICATION_RATE", "many")

	cfg := Load()

	assert.Equal(t, 10000, cfg.QueueCapacity)
	assert.InDelta(t, 0.20, cfg.DuplicationRate, 1e-9)
}
