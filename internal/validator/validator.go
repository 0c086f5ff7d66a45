package validator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/logstream/aggregator/pkg/models"
)

// Validator checks submitted events against the event schema. The
// schema only constrains the deduplication identity fields (topic,
// event_id); payloads are treated as opaque.
type Validator struct {
	schema *gojsonschema.Schema
}

// New creates a validator from the schema file at the given path.
func New(schemaPath string) (*Validator, error) {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateEvent checks a single event's identity fields.
func (v *Validator) ValidateEvent(event *models.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	documentLoader := gojsonschema.NewBytesLoader(eventBytes)
	result, err := v.schema.Validate(documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, resultErr := range result.Errors() {
			errs = append(errs, resultErr.String())
		}
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}
