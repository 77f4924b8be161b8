package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dara-tech/preartweb/internal/config"
	"github.com/dara-tech/preartweb/internal/domain/detail"
	"github.com/dara-tech/preartweb/internal/domain/duplicate"
	"github.com/dara-tech/preartweb/internal/domain/indicator"
	"github.com/dara-tech/preartweb/internal/domain/report"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/platform/db"
	"github.com/dara-tech/preartweb/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "preart-server",
		Short: "PreART indicator reporting server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(sitesCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise")
	}
	defer a.Close()

	e := newServer(a)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Int("templates", a.catalog.Len()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware and every route onto a fresh echo instance.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, site.SiteCodeHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool, a.pool, a.conns))
	} else {
		e.GET("/health/db", db.HealthHandler(nil, nil, a.conns))
	}

	api := e.Group("/api/v1")

	exec := a.executor()
	agg := a.aggregator(exec)
	site.NewHandler(a.sites).RegisterRoutes(api)
	indicator.NewHandler(agg, exec, a.catalog, a.sites).RegisterRoutes(api)
	report.NewHandler(report.NewAssembler(a.catalog, a.sites, a.limits, a.publisher, a.logger)).RegisterRoutes(api)
	detail.NewHandler(detail.NewService(a.catalog, a.sites, a.logger), a.sites).RegisterRoutes(api)
	duplicate.NewHandler(duplicate.NewService(a.sites, a.limits, a.logger)).RegisterRoutes(api)

	return e
}
