package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vulnfeed/veracode-ingest/internal/config"
	"github.com/vulnfeed/veracode-ingest/internal/database"
	"github.com/vulnfeed/veracode-ingest/internal/importer"
	"github.com/vulnfeed/veracode-ingest/internal/server"
	"github.com/vulnfeed/veracode-ingest/internal/veracode"
	"github.com/vulnfeed/veracode-ingest/internal/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion HTTP API and background workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinConnections)
	if err != nil {
		return err
	}
	defer db.Close()

	imports := database.NewImportRepository(db)
	findings := database.NewFindingRepository(db)
	svc := importer.NewService(veracode.New(cfg.Import.UseFirstSeen), imports, findings)
	srv := server.New(cfg, svc, imports, findings)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Workers.InboxEnabled {
		inbox := workers.NewInbox(svc, cfg.Workers.InboxDir, cfg.Workers.SweepInterval)
		go inbox.Start(ctx)
	}

	if cfg.Workers.CleanerEnabled {
		cleaner := workers.NewCleaner(imports, cfg.Workers.Retention, cfg.Workers.CleanInterval)
		go cleaner.Start(ctx)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP server shutdown failed")
		}
	}()

	return srv.Start()
}
