package lib

import (
	"testing"

	"github.com/5amCurfew/dvtkt/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAttributeNamesIdempotent(t *testing.T) {
	record := map[string]interface{}{
		"@odata.etag":                  `W/"12345"`,
		"contactid":                    "1",
		"cr7b1_custom field":           "x",
		"1starts_with_digit":           2,
		"modifiedon@OData.Community.V": "y",
	}

	once := sanitizeAttributeNames(record)
	twice := sanitizeAttributeNames(once)

	assert.Equal(t, once, twice)
	assert.Contains(t, once, "_odata_etag")
	assert.Contains(t, once, "cr7b1_custom_field")
	assert.Contains(t, once, "_starts_with_digit")
	assert.NotContains(t, once, "@odata.etag")
}

func TestTransformRecordGeneratesKeyFields(t *testing.T) {
	models.Config.SQLAttributeNames = false
	stream := &models.StreamConfig{
		Name:          "contacts",
		UniqueKeyPath: []string{"contactid"},
	}

	record := map[string]interface{}{"contactid": "abc-123", "fullname": "Jane"}
	processed, err := transformRecord(stream, record)
	require.NoError(t, err)
	require.NotNil(t, processed)

	assert.Equal(t, "abc-123", processed["_sdc_natural_key"])
	assert.Len(t, processed["_sdc_surrogate_key"], 64)
	assert.Len(t, processed["_sdc_unique_key"], 64)
	assert.NotEmpty(t, processed["_sdc_timestamp"])
}

func TestTransformRecordMissingUniqueKey(t *testing.T) {
	models.Config.SQLAttributeNames = false
	stream := &models.StreamConfig{
		Name:          "contacts",
		UniqueKeyPath: []string{"contactid"},
	}

	processed, err := transformRecord(stream, map[string]interface{}{"fullname": "Jane"})
	assert.Error(t, err)
	assert.Nil(t, processed)
}

func TestTransformRecordDropsAndHashesFields(t *testing.T) {
	models.Config.SQLAttributeNames = false
	stream := &models.StreamConfig{
		Name:                "contacts",
		UniqueKeyPath:       []string{"contactid"},
		DropFieldPaths:      [][]string{{"internalnotes"}},
		SensitiveFieldPaths: [][]string{{"emailaddress1"}},
	}

	record := map[string]interface{}{
		"contactid":     "abc-123",
		"internalnotes": "private",
		"emailaddress1": "jane@example.com",
	}
	processed, err := transformRecord(stream, record)
	require.NoError(t, err)

	assert.NotContains(t, processed, "internalnotes")
	assert.NotEqual(t, "jane@example.com", processed["emailaddress1"])
	assert.Len(t, processed["emailaddress1"], 64)
}

func TestTransformRecordSanitizesWhenConfigured(t *testing.T) {
	models.Config.SQLAttributeNames = true
	defer func() { models.Config.SQLAttributeNames = false }()

	stream := &models.StreamConfig{Name: "contacts"}
	record := map[string]interface{}{"@odata.etag": "tag", "contactid": "1"}

	processed, err := transformRecord(stream, record)
	require.NoError(t, err)

	assert.Contains(t, processed, "_odata_etag")
	assert.Contains(t, processed, "contactid")
	assert.NotContains(t, processed, "@odata.etag")
}
