package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalid is returned when a configuration does not match the schema.
var ErrInvalid = errors.New("invalid configuration")

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["server", "fixer", "log"],
  "properties": {
    "server": {
      "type": "object",
      "required": ["host", "port", "max_upload_mb"],
      "properties": {
        "host": {"type": "string", "minLength": 1},
        "port": {"type": "string", "pattern": "^[0-9]{1,5}$"},
        "max_upload_mb": {"type": "integer", "minimum": 1, "maximum": 1024}
      }
    },
    "fixer": {
      "type": "object",
      "required": ["tool_name"],
      "properties": {
        "tool_name": {"type": "string", "minLength": 1}
      }
    },
    "log": {
      "type": "object",
      "required": ["level", "format"],
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "format": {"enum": ["text", "json"]}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to load config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile config schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks cfg against the config schema.
func Validate(cfg *Config) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
