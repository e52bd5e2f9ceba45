package lib

import (
	"time"
)

// GenerateSchema infers a JSON schema from a single record
func GenerateSchema(record map[string]interface{}) (map[string]interface{}, error) {

	schema := make(map[string]interface{})
	properties := make(map[string]interface{})

	for key, value := range record {
		property := make(map[string]interface{})
		switch v := value.(type) {
		case bool:
			property["type"] = "boolean"
		case int:
			property["type"] = "integer"
		case float64:
			property["type"] = "number"
		case map[string]interface{}:
			subSchema, _ := GenerateSchema(v)
			property["type"] = "object"
			property["properties"] = subSchema["properties"]
		case []interface{}:
			property["type"] = "array"
		case nil:
			property["type"] = "null"
		case string:
			if _, err := time.Parse(time.RFC3339, v); err == nil {
				property["type"] = "timestamp"
			} else if _, err := time.Parse("2006-01-02", v); err == nil {
				property["type"] = "date"
			} else {
				property["type"] = "string"
			}
		}
		properties[key] = property
	}

	schema["properties"] = properties
	schema["type"] = "object"
	return schema, nil
}

// UpdateSchema merges a record's inferred schema into the existing catalog
// schema. New properties are added; a property whose type disagrees across
// records widens to string.
func UpdateSchema(existing map[string]interface{}, derived map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{})

	existingProperties, _ := existing["properties"].(map[string]interface{})
	derivedProperties, _ := derived["properties"].(map[string]interface{})

	for key, value := range existingProperties {
		merged[key] = value
	}

	for key, value := range derivedProperties {
		current, exists := merged[key].(map[string]interface{})
		if !exists {
			merged[key] = value
			continue
		}

		incoming, _ := value.(map[string]interface{})
		if incoming == nil {
			continue
		}

		if current["type"] == "null" {
			merged[key] = value
			continue
		}
		if incoming["type"] == "null" {
			continue
		}
		if current["type"] != incoming["type"] {
			merged[key] = map[string]interface{}{"type": "string"}
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": merged,
	}, nil
}
