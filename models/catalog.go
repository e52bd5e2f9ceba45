package models

import (
	"encoding/json"
	"fmt"
	"os"

	util "github.com/5amCurfew/dvtkt/util"
	"github.com/xeipuuv/gojsonschema"
)

type StreamCatalog struct {
	KeyProperties []string               `json:"key_properties"`
	Schema        map[string]interface{} `json:"schema"`
	Stream        string                 `json:"stream"`
}

// Create <STREAM>_catalog.json
func (c *StreamCatalog) Create(stream string) error {

	c.Stream = stream
	if c.Stream == "" {
		return fmt.Errorf("error creating catalog file: stream name is required")
	}
	c.KeyProperties = []string{"_sdc_unique_key", "_sdc_surrogate_key"}
	c.Schema = map[string]interface{}{}

	fileName := fmt.Sprintf("%s_catalog.json", c.Stream)
	err := util.WriteJSON(fileName, c)
	if err != nil {
		return fmt.Errorf("error writing catalog.json: %v", err)
	}

	return nil
}

// Read the Catalog JSON file
func (c *StreamCatalog) Read(stream string) error {
	catalogFile, err := os.ReadFile(fmt.Sprintf("%s_catalog.json", stream))
	if err != nil {
		return fmt.Errorf("error reading catalog file: %w", err)
	}

	if err := json.Unmarshal(catalogFile, c); err != nil {
		return fmt.Errorf("error unmarshaling catalog json: %w", err)
	}

	return nil
}

// Update the Catalog JSON file
func (c *StreamCatalog) Update() error {
	fileName := fmt.Sprintf("%s_catalog.json", c.Stream)
	err := util.WriteJSON(fileName, c)
	if err != nil {
		return fmt.Errorf("error updating catalog.json: %v", err)
	}
	return nil
}

// RecordVersusCatalog validates record against Catalog
func (c *StreamCatalog) RecordVersusCatalog(record map[string]interface{}) (bool, error) {
	schemaLoader := gojsonschema.NewGoLoader(c.Schema)
	recordLoader := gojsonschema.NewGoLoader(record)

	result, err := gojsonschema.Validate(schemaLoader, recordLoader)
	if err != nil {
		// inferred types such as timestamp are not JSON Schema primitives;
		// a schema gojsonschema cannot load does not fail the record
		return true, nil
	}

	if result.Valid() {
		return true, nil
	}

	return false, fmt.Errorf("%s", result.Errors())
}

// IsTimestampKey reports whether the attribute is declared timestamp-typed
// in the catalog schema. An attribute absent from the schema is not
// timestamp-typed.
func (c *StreamCatalog) IsTimestampKey(key string) bool {
	properties, ok := c.Schema["properties"].(map[string]interface{})
	if !ok {
		return false
	}

	property, ok := properties[key].(map[string]interface{})
	if !ok {
		return false
	}

	switch property["type"] {
	case "timestamp", "date":
		return true
	}
	return property["format"] == "date-time"
}

// Message generates a schema message from the catalog
func (c *StreamCatalog) Message() error {
	message := Message{
		Type:          "SCHEMA",
		Stream:        c.Stream,
		Schema:        c.Schema,
		KeyProperties: c.KeyProperties,
	}

	messageJson, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("error CREATING SCHEMA MESSAGE: %w", err)
	}

	os.Stdout.Write(messageJson)
	os.Stdout.Write([]byte("\n"))

	return nil
}
