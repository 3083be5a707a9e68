package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "veracode-ingest",
	Short: "Veracode report ingestion for the findings database",
	Long: `veracode-ingest converts Veracode Detailed XML reports into
normalized finding records and feeds them into the findings database,
either one-shot from the command line or as a long-running service with
an upload API and an inbox directory.`,
}

func main() {
	// .env is optional; deployments configure via the environment.
	_ = godotenv.Load()

	setupLogging()

	log.WithFields(log.Fields{
		"version":   version,
		"commit":    commit,
		"buildDate": buildDate,
	}).Info("Starting veracode-ingest")

	cobra.CheckErr(rootCmd.Execute())
}

func setupLogging() {
	if getEnv("LOG_FORMAT", "json") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
