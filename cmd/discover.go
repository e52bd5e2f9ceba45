package cmd

import (
	lib "github.com/5amCurfew/dvtkt/lib"
	"github.com/5amCurfew/dvtkt/models"
)

// discoverCatalog infers the catalog by listening for all processed records on resultChan
func discoverCatalog(catalog *models.StreamCatalog, resultChan <-chan map[string]interface{}) {
	for record := range resultChan {
		recordSchema, _ := lib.GenerateSchema(record)
		existingSchema := catalog.Schema

		schema, _ := lib.UpdateSchema(existingSchema, recordSchema)
		catalog.Schema = schema
	}

	catalog.Update()
}
