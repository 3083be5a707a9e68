package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/config"
	"github.com/vulnfeed/veracode-ingest/internal/importer"
	"github.com/vulnfeed/veracode-ingest/internal/interfaces"
)

// Server exposes the ingestion HTTP API: report upload plus read access
// to import runs and their findings.
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	importer *importer.Service
	imports  interfaces.ImportRepository
	findings interfaces.FindingRepository
	logger   *log.Entry
}

// New creates the HTTP server and registers all routes
func New(cfg *config.Config, imp *importer.Service, imports interfaces.ImportRepository, findings interfaces.FindingRepository) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(humanBodyLimit(cfg.Import.MaxUploadBytes)))

	s := &Server{
		echo:     e,
		cfg:      cfg,
		importer: imp,
		imports:  imports,
		findings: findings,
		logger:   log.WithField("component", "http-server"),
	}

	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/imports", s.handleCreateImport)
	api.GET("/imports", s.handleListImports)
	api.GET("/imports/:id", s.handleGetImport)
	api.GET("/imports/:id/findings", s.handleGetFindings)
	api.GET("/imports/:id/stats", s.handleGetStats)
	api.DELETE("/imports/:id/findings", s.handleDeleteFindings)

	return s
}

// Start begins serving on the configured port
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.HTTPPort
	s.logger.Infof("HTTP server listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "veracode-ingest",
		"timestamp": time.Now().UTC(),
	})
}

// handleCreateImport accepts a Veracode Detailed XML report, either as a
// multipart "report" file or as the raw request body, and runs a full
// import.
func (s *Server) handleCreateImport(c echo.Context) error {
	ctx := c.Request().Context()

	body := c.Request().Body
	source := "upload"

	if file, err := c.FormFile("report"); err == nil {
		f, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable report file")
		}
		defer f.Close()
		body = f
		source = file.Filename
	}

	run, err := s.importer.ImportReport(ctx, body, source)
	if err != nil {
		if run != nil {
			// The failed run was recorded; return it with the error.
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"import": run,
				"error":  err.Error(),
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, run)
}

func (s *Server) handleListImports(c echo.Context) error {
	ctx := c.Request().Context()

	filter := interfaces.ImportFilter{Limit: 50}
	if app := c.QueryParam("application_id"); app != "" {
		filter.ApplicationID = &app
	}

	runs, err := s.imports.List(ctx, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetImport(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid import id")
	}

	run, err := s.imports.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetFindings(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid import id")
	}

	findings, err := s.findings.GetByImportID(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, findings)
}

func (s *Server) handleGetStats(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid import id")
	}

	stats, err := s.findings.GetStats(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, stats)
}

// handleDeleteFindings removes an import run's findings, e.g. before
// re-importing a corrected report for the same scan.
func (s *Server) handleDeleteFindings(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid import id")
	}

	if err := s.findings.DeleteByImportID(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// humanBodyLimit renders a byte count in the "64M" form echo's BodyLimit
// middleware expects.
func humanBodyLimit(bytes int64) string {
	mb := bytes >> 20
	if mb < 1 {
		mb = 1
	}
	return fmt.Sprintf("%dM", mb)
}
