package cmd

import (
	"fmt"
	"os"
	"time"

	lib "github.com/5amCurfew/dvtkt/lib"
	"github.com/5amCurfew/dvtkt/models"
	sources "github.com/5amCurfew/dvtkt/sources"
	log "github.com/sirupsen/logrus"
)

type ExecutionMetric struct {
	Stream            string        `json:"stream,omitempty"`
	ExecutionStart    time.Time     `json:"execution_start,omitempty"`
	ExecutionEnd      time.Time     `json:"execution_end,omitempty"`
	ExecutionDuration time.Duration `json:"execution_duration,omitempty"`
	NewRecords        uint64        `json:"new_records"`
}

// Extract runs one full read cycle for every configured stream, requires the
// discover and refresh flags
func Extract(discover bool, refresh bool) error {
	models.FULL_REFRESH = refresh

	store, err := models.NewStateStore(models.Config.State)
	if err != nil {
		return fmt.Errorf("error opening state store: %w", err)
	}
	defer store.Close()

	for i := range models.Config.Streams {
		stream := &models.Config.Streams[i]
		if err := extractStream(stream, store, discover); err != nil {
			return fmt.Errorf("stream %s: %w", stream.Name, err)
		}
	}

	return nil
}

// extractStream runs the read cycle of a single stream: resolve state and
// catalog, walk the entity set, emit records and advance the bookmark after
// every record so an interrupted run resumes where it stopped
func extractStream(stream *models.StreamConfig, store models.StateStore, discover bool) error {
	var execution ExecutionMetric
	execution.Stream = stream.Name
	execution.ExecutionStart = time.Now().UTC()

	// Create <STREAM>_catalog.json if absent
	catalog := &models.StreamCatalog{}
	if _, err := os.Stat(fmt.Sprintf("%s_catalog.json", stream.Name)); err != nil {
		if err := catalog.Create(stream.Name); err != nil {
			return fmt.Errorf("error creating catalog.json: %w", err)
		}
	}

	if err := catalog.Read(stream.Name); err != nil {
		return fmt.Errorf("error reading catalog.json: %w", err)
	}

	// Read current state (a fresh state when none is stored)
	state, err := store.Read(stream.Name)
	if err != nil {
		return fmt.Errorf("error reading state: %w", err)
	}

	extractedChan := make(chan map[string]interface{})
	resultChan := make(chan map[string]interface{})
	streamErrChan := make(chan error, 1)

	// Initiate goroutine to begin extracting records page by page
	go func() {
		defer close(extractedChan)
		log.Info(fmt.Sprintf(`generating records from %s`, stream.URL()))
		streamErrChan <- sources.StreamDataverseRecords(stream, state, catalog, extractedChan)
	}()

	// Transform records sequentially, preserving arrival order
	go lib.ProcessRecords(stream, extractedChan, resultChan)

	// Run in discovery mode to create the catalog by listening for extracted records on resultChan
	if discover {
		discoverCatalog(catalog, resultChan)

		if err := <-streamErrChan; err != nil {
			return fmt.Errorf("error streaming records: %w", err)
		}

		if len(catalog.Schema) == 0 {
			return fmt.Errorf("error gathering schema from source")
		}

		if produceSchemaMessageError := catalog.Message(); produceSchemaMessageError != nil {
			return fmt.Errorf("error generating schema message: %w", produceSchemaMessageError)
		}

		return nil
	}

	// If the catalog exists, begin listening for extracted records on resultChan
	if len(catalog.Schema) == 0 {
		return fmt.Errorf("error gathering schema from catalog - ensure the catalog exists by running dvtkt <CONFIG> --discover")
	}

	if produceSchemaMessageError := catalog.Message(); produceSchemaMessageError != nil {
		return fmt.Errorf("error generating schema message: %w", produceSchemaMessageError)
	}

	for record := range resultChan {
		if valid, validateRecordSchemaError := catalog.RecordVersusCatalog(record); !valid {
			log.WithFields(log.Fields{
				"_sdc_natural_key": record["_sdc_natural_key"],
				"error":            validateRecordSchemaError,
			}).Warn("record violates schema constraints in catalog")
		}

		if produceRecordMessageError := lib.RecordMessage(stream.Name, record); produceRecordMessageError != nil {
			return fmt.Errorf("error generating record message: %w", produceRecordMessageError)
		}

		state.Update(stream, record)
		if err := store.Write(state); err != nil {
			return fmt.Errorf("error persisting state: %w", err)
		}
		execution.NewRecords += 1
	}

	if err := <-streamErrChan; err != nil {
		return fmt.Errorf("error streaming records: %w", err)
	}

	if err := state.Message(); err != nil {
		return fmt.Errorf("error generating state message: %w", err)
	}

	execution.ExecutionEnd = time.Now().UTC()
	execution.ExecutionDuration = execution.ExecutionEnd.Sub(execution.ExecutionStart)
	log.WithFields(log.Fields{"metrics": execution}).Info("execution metrics")
	return nil
}
