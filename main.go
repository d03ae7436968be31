package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pdfpages/config"
	database "github.com/drummonds/pdfpages/database"
	engine "github.com/drummonds/pdfpages/engine"
	"github.com/drummonds/pdfpages/engine/extraction"
	"github.com/drummonds/pdfpages/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	extraction.Logger = Logger
	pdfrenderer.Logger = Logger
}

// @title pdfpages API
// @version 1.0
// @description Renders every page of a PDF to an image. Supports uploads, a watched ingress folder and job tracking.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @tag.name Extract
// @tag.description PDF page extraction

// @tag.name Jobs
// @tag.description Job tracking

// @tag.name Admin
// @tag.description Ingress, cleanup and server information
func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("🚀  EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Database will be destroyed on exit")
		fmt.Println("• Jobs and page records are not kept")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	// Setup database (handles ephemeral, postgres, cockroachdb, sqlite)
	Logger.Info("Setting up database", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Database setup complete")

	extractor, err := extraction.New(serverConfig.Extraction(), serverConfig.Renderer)
	if err != nil {
		Logger.Error("Failed to create page extractor", "renderer", serverConfig.Renderer, "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	var bucket *extraction.BucketSink
	if bucketConfig, ok := serverConfig.Bucket(); ok {
		bucket, err = extraction.NewBucketSink(context.Background(), bucketConfig, extractor.Config().ImageFormat)
		if err != nil {
			Logger.Error("Failed to connect to object storage", "endpoint", bucketConfig.Endpoint, "error", err)
			os.Exit(1)
		}
	}

	e := echo.New()
	serverHandler := &engine.ServerHandler{DB: db, Echo: e, ServerConfig: serverConfig, Extractor: extractor, Bucket: bucket}
	setupRoutes(serverHandler)

	Logger.Info("About to run startup checks")
	if err := serverHandler.StartupChecks(); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}
	Logger.Info("Startup checks complete, about to initialize schedules")
	scheduler, err := serverHandler.InitializeSchedules() //initialize all the cron jobs
	if err != nil {
		Logger.Error("Failed to initialize schedules", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	go func() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		Logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			Logger.Error("Server shutdown failed", "error", err)
		}
	}()

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}
	startServer(e, &serverConfig)
}

// setupRoutes wires middleware, the API routes and the JSON 404 handler
func setupRoutes(serverHandler *engine.ServerHandler) {
	e := serverHandler.Echo
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}

		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	serverHandler.RegisterRoutes()
}

// startServer starts echo, moving to the next port when the configured one is taken
func startServer(e *echo.Echo, serverConfig *config.ServerConfig) {
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr := e.Start(addr)
		switch {
		case startErr == nil, errors.Is(startErr, http.ErrServerClosed):
			if serverConfig.ListenAddrPort != startPort {
				Logger.Warn("Server ran on alternative port due to conflicts",
					"requested_port", startPort,
					"actual_port", serverConfig.ListenAddrPort)
			}
			return
		case isAddressInUse(startErr):
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)
		default:
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		}
	}

	Logger.Error("Failed to find available port after maximum retries",
		"start_port", startPort,
		"end_port", serverConfig.ListenAddrPort,
		"max_retries", maxRetries)
	os.Exit(1)
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
