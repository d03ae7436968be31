package engine

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfpages/config"
	"github.com/drummonds/pdfpages/database"
	"github.com/drummonds/pdfpages/engine/extraction"
	"github.com/drummonds/pdfpages/internal/build"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Extractor    *extraction.Extractor
	Bucket       *extraction.BucketSink // nil when no bucket is configured
}

// RegisterRoutes adds the API routes to the echo server
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo
	// Extraction routes
	e.POST("/api/extract", serverHandler.ExtractDocument)
	e.GET("/api/extract/:id/pages", serverHandler.GetPages)
	e.GET("/api/extract/:id/pages/:page", serverHandler.GetPageImage)
	// Job tracking routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
	// Admin routes
	e.POST("/api/ingest", serverHandler.RunIngestNow)
	e.POST("/api/clean", serverHandler.CleanJobs)
	e.GET("/api/about", serverHandler.GetAboutInfo)
}

// ExtractDocument renders every page of an uploaded PDF
// @Summary Extract pages from a PDF
// @Description Upload a PDF, render every page to an image and store the images under a new job
// @Tags Extract
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF document"
// @Success 200 {object} ExtractionResult "Rendered pages"
// @Failure 400 {object} map[string]interface{} "Missing upload"
// @Failure 422 {object} map[string]interface{} "Not a readable PDF"
// @Failure 500 {object} map[string]interface{} "Extraction failed"
// @Router /extract [post]
func (serverHandler *ServerHandler) ExtractDocument(c echo.Context) error {
	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Missing form file 'pdf'",
		})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeExtraction, "Upload: "+fileHeader.Filename)
	if err != nil {
		Logger.Error("Failed to create extraction job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}

	result, err := serverHandler.extractDocumentWithSteps(c.Request().Context(), job.ID, fileHeader.Filename, func() (*extraction.Document, error) {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload: %w", err)
		}
		defer file.Close()
		return extraction.Load(file)
	})
	if err != nil {
		Logger.Error("Extraction failed", "file", fileHeader.Filename, "error", err, "jobID", job.ID)
		status, body := extractionErrorDetails(err)
		body["jobId"] = job.ID.String()
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, result)
}

// GetPages lists the pages rendered by an extraction job
// @Summary List rendered pages
// @Description List the pages rendered by an extraction job in page order
// @Tags Extract
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {array} PageInfo "Rendered pages"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /extract/{id}/pages [get]
func (serverHandler *ServerHandler) GetPages(c echo.Context) error {
	jobID, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	if _, err := serverHandler.DB.GetJob(jobID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "Job not found",
			})
		}
		Logger.Error("Failed to get job", "jobID", jobID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve job",
		})
	}

	records, err := serverHandler.DB.GetPages(jobID)
	if err != nil {
		Logger.Error("Failed to get pages", "jobID", jobID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve pages",
		})
	}

	pages := make([]PageInfo, len(records))
	for i, record := range records {
		pages[i] = PageInfo{
			Page:      record.PageIndex,
			URL:       pageURL(jobID, record.PageIndex),
			ObjectKey: record.ObjectKey,
			Width:     record.Width,
			Height:    record.Height,
			SizeBytes: int(record.SizeBytes),
		}
	}
	return c.JSON(http.StatusOK, pages)
}

// GetPageImage serves one rendered page
// @Summary Get a rendered page
// @Description Return the image file for one page of an extraction job
// @Tags Extract
// @Produce image/png
// @Param id path string true "Job ID (ULID)"
// @Param page path int true "Zero based page index"
// @Success 200 {file} file "Page image"
// @Failure 400 {object} map[string]interface{} "Invalid job ID or page"
// @Failure 404 {object} map[string]interface{} "Page not found"
// @Router /extract/{id}/pages/{page} [get]
func (serverHandler *ServerHandler) GetPageImage(c echo.Context) error {
	jobID, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid page index",
		})
	}

	record, err := serverHandler.DB.GetPage(jobID, page)
	if errors.Is(err, database.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Page not found",
		})
	}
	if err != nil {
		Logger.Error("Failed to get page", "jobID", jobID, "page", page, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve page",
		})
	}

	if _, err := os.Stat(record.Path); err != nil {
		Logger.Warn("Page image missing on disk", "path", record.Path, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Page image not found",
		})
	}
	return c.File(record.Path)
}

// GetAboutInfo returns information about the server
// @Summary Get server information
// @Description Returns version and configuration details of the extraction server
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Server information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	serverConfig := serverHandler.ServerConfig
	extractConfig := serverHandler.Extractor.Config()

	aboutInfo := map[string]interface{}{
		"version":        build.Version,
		"renderer":       serverConfig.Renderer,
		"imageFormat":    extractConfig.ImageFormat,
		"workers":        extractConfig.Workers,
		"dpi":            extractConfig.DPI,
		"databaseType":   serverConfig.DatabaseType,
		"databaseHost":   serverConfig.DatabaseHost,
		"databasePort":   serverConfig.DatabasePort,
		"databaseName":   serverConfig.DatabaseDbname,
		"ingressPath":    serverConfig.IngressPath,
		"outputPath":     serverConfig.OutputPath,
		"bucketEnabled":  serverHandler.Bucket != nil,
		"jobRetentionHr": serverConfig.JobRetentionHours,
	}

	return c.JSON(http.StatusOK, aboutInfo)
}

// RunIngestNow triggers the ingress job manually
// @Summary Trigger ingress
// @Description Manually extract every PDF waiting in the ingress folder
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job created with job ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /ingest [post]
func (serverHandler *ServerHandler) RunIngestNow(c echo.Context) error {
	Logger.Info("Manual ingress triggered via API")

	job, err := serverHandler.DB.CreateJob(database.JobTypeIngestion, "Starting ingress")
	if err != nil {
		Logger.Error("Failed to create ingestion job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}

	// Run ingress in a goroutine so we can return immediately
	go serverHandler.ingressJobFuncWithTracking(job.ID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Ingestion started",
		"jobId":   job.ID.String(),
	})
}

// CleanJobs removes expired jobs and stale scratch directories
// @Summary Clean up
// @Description Delete jobs older than the retention period and remove abandoned scratch directories
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Job created with jobId"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /clean [post]
func (serverHandler *ServerHandler) CleanJobs(c echo.Context) error {
	Logger.Info("Cleanup triggered via API")

	job, err := serverHandler.DB.CreateJob(database.JobTypeCleanup, "Starting cleanup")
	if err != nil {
		Logger.Error("Failed to create cleanup job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create cleanup job",
		})
	}

	go serverHandler.cleanupJobFuncWithTracking(job.ID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Cleanup started",
		"jobId":   job.ID.String(),
	})
}
