package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/5amCurfew/dvtkt/cmd"
	"github.com/5amCurfew/dvtkt/models"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.3.0"
var discover bool = false
var refresh bool = false

func main() {
	Execute()
}

func Execute() {
	rootCmd.Flags().BoolVarP(&discover, "discover", "d", false, "run the tap in discovery mode, creating the catalog for each stream")
	rootCmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "extract all records (full refresh) rather than only new or modified records (incremental, default)")

	if err := rootCmd.Execute(); err != nil {
		log.WithFields(log.Fields{"Error": err}).Fatalln("error using dvtkt")
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dvtkt [PATH_TO_CONFIG_JSON]",
	Version: version,
	Short:   "dvtkt - Microsoft Dataverse data extraction CLI",
	Long:    `dvtkt is a command line interface to extract entity sets from the Microsoft Dataverse Web API incrementally and pipe records to any target that meets the Singer.io specification.`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		log.SetFormatter(&log.JSONFormatter{})

		// Default to config.json if no path is provided
		cfgPath := "config.json"
		if len(args) > 0 {
			cfgPath = args[0]
		} else {
			log.Info("no config JSON path provided, defaulting to config.json")
		}

		if err := readConfig(cfgPath); err != nil {
			log.WithFields(log.Fields{"Error": err}).Fatalln("Failed to parse config JSON")
			return fmt.Errorf("error parsing config JSON: %w", err)
		}

		models.Config.ApplyDefaults()

		if err := models.Config.Validate(); err != nil {
			log.WithFields(log.Fields{"Error": err}).Fatalln("Invalid config JSON")
			return fmt.Errorf("invalid config JSON: %w", err)
		}

		if err := cmd.Extract(discover, refresh); err != nil {
			log.WithFields(log.Fields{"Error": err}).Fatalln("Failed to extract records")
			return fmt.Errorf("failed to extract records: %w", err)
		}

		return nil
	},
}

func readConfig(filePath string) error {

	config, readConfigError := os.ReadFile(filePath)
	if readConfigError != nil {
		return fmt.Errorf("error readConfig reading %s: %w", filePath, readConfigError)
	}

	if jsonError := json.Unmarshal(config, &models.Config); jsonError != nil {
		return fmt.Errorf("error readConfig unmarshalling %s: %w", filePath, jsonError)
	}

	return nil
}
