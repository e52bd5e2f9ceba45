package lib

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/5amCurfew/dvtkt/models"
	util "github.com/5amCurfew/dvtkt/util"
	log "github.com/sirupsen/logrus"
)

// transformRecord applies transformations to a raw record before emission:
// dropping fields, hashing sensitive fields, rewriting attribute names to
// SQL-safe identifiers and generating the _sdc key fields. Returning nil
// excludes the record from the stream.
func transformRecord(stream *models.StreamConfig, record map[string]interface{}) (map[string]interface{}, error) {
	var naturalKey interface{}
	if stream.UniqueKeyPath != nil {
		naturalKey = util.GetValueAtPath(stream.UniqueKeyPath, record)
		if naturalKey == nil {
			return nil, fmt.Errorf("unique_key field path not found in record")
		}
		if util.IsEmpty(naturalKey) {
			return nil, fmt.Errorf("unique_key null or empty in record")
		}
	}

	if stream.DropFieldPaths != nil {
		dropFields(stream, record)
	}

	if stream.SensitiveFieldPaths != nil {
		generateHashedFields(stream, record)
	}

	if models.Config.SQLAttributeNames {
		record = sanitizeAttributeNames(record)
	}

	generateSurrogateKeyFields(record, naturalKey)

	return record, nil
}

// dropFields drops specified fields from record
func dropFields(stream *models.StreamConfig, record map[string]interface{}) {
	for _, path := range stream.DropFieldPaths {
		util.DropFieldAtPath(path, record)
	}
}

// generateHashedFields hashes specified sensitive fields of a record
func generateHashedFields(stream *models.StreamConfig, record map[string]interface{}) {
	for _, path := range stream.SensitiveFieldPaths {
		if fieldValue := util.GetValueAtPath(path, record); fieldValue != nil {
			hash := sha256.Sum256([]byte(fmt.Sprintf("%v", fieldValue)))
			util.SetValueAtPath(path, record, hex.EncodeToString(hash[:]))
		} else {
			log.WithFields(log.Fields{
				"sensitive_field_path": path,
				"stream":               stream.Name,
			}).Warn("field path not found in record for hashing (sensitive fields)")
			continue
		}
	}
}

// sanitizeAttributeNames rewrites every field name to a SQL-identifier-safe
// form; values pass through unchanged. The mapping is idempotent, so a
// record sanitized twice equals a record sanitized once.
func sanitizeAttributeNames(record map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(record))
	for key, value := range record {
		sanitized[util.SQLAttributeName(key)] = value
	}
	return sanitized
}

// generateSurrogateKeyFields generates dvtkt key fields for a record
func generateSurrogateKeyFields(record map[string]interface{}, naturalKey interface{}) {
	h := sha256.New()
	h.Write([]byte(util.ToString(record)))

	if naturalKey != nil {
		record["_sdc_natural_key"] = naturalKey
	}
	record["_sdc_surrogate_key"] = hex.EncodeToString(h.Sum(nil))
	record["_sdc_timestamp"] = time.Now().UTC().Format(time.RFC3339)

	h.Write([]byte(util.ToString(record)))
	record["_sdc_unique_key"] = hex.EncodeToString(h.Sum(nil))
}

// RecordMessage generates a message of the record
func RecordMessage(stream string, record map[string]interface{}) error {

	message := models.Message{
		Type:   "RECORD",
		Record: record,
		Stream: stream,
	}

	messageJson, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("error CREATING RECORD MESSAGE: %w", err)
	}

	os.Stdout.Write(messageJson)
	os.Stdout.Write([]byte("\n"))

	return nil
}
