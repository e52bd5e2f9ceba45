package lib

import (
	"encoding/json"

	"github.com/5amCurfew/dvtkt/models"
	log "github.com/sirupsen/logrus"
)

// ProcessRecords reads raw records from in, transforms them in arrival order
// and forwards survivors to out. Order is preserved end-to-end: pages arrive
// ascending by replication key, so the bookmark downstream can only move
// forward.
func ProcessRecords(stream *models.StreamConfig, in <-chan map[string]interface{}, out chan<- map[string]interface{}) {
	defer close(out)

	for record := range in {
		processed, err := transformRecord(stream, record)
		if err != nil {
			recordWithError, _ := json.Marshal(record)
			log.WithFields(log.Fields{
				"record": json.RawMessage(recordWithError), // logs as nested JSON, no escaping
				"error":  err,
			}).Warn("error processing record - skipping...")
			continue
		}
		if processed == nil {
			continue
		}
		out <- processed
	}
}
