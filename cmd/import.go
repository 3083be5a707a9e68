package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vulnfeed/veracode-ingest/internal/config"
	"github.com/vulnfeed/veracode-ingest/internal/database"
	"github.com/vulnfeed/veracode-ingest/internal/domain"
	"github.com/vulnfeed/veracode-ingest/internal/importer"
	"github.com/vulnfeed/veracode-ingest/internal/veracode"
)

var importAsJSON bool

var importCmd = &cobra.Command{
	Use:   "import <report.xml>",
	Short: "Import a Veracode Detailed XML report",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importAsJSON, "json", false,
		"Convert only and print the findings as JSON instead of persisting them")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	parser := veracode.New(cfg.Import.UseFirstSeen)

	if importAsJSON {
		return printFindings(parser, path)
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinConnections)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := importer.NewService(parser,
		database.NewImportRepository(db),
		database.NewFindingRepository(db),
	)

	run, err := svc.ImportFile(cmd.Context(), path)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"import_id": run.ID.String(),
		"app_id":    run.ApplicationID,
		"findings":  run.FindingsCount,
	}).Info("Import completed")

	return nil
}

// printFindings converts the report without touching the database and
// writes the normalized findings to stdout.
func printFindings(parser *veracode.Parser, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	run := &domain.ImportRun{
		ID:          uuid.New(),
		Status:      domain.ImportStatusRunning,
		Source:      filepath.Base(path),
		TargetStart: time.Now(),
	}

	result, err := parser.Parse(f, run)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Findings)
}
