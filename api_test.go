package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/color"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	config "github.com/drummonds/pdfpages/config"
	database "github.com/drummonds/pdfpages/database"
	engine "github.com/drummonds/pdfpages/engine"
	"github.com/drummonds/pdfpages/engine/extraction"
	"github.com/drummonds/pdfpages/engine/pdfrenderer"
	"github.com/drummonds/pdfpages/internal/testpdf"
)

// blankRasterizer renders every page as a white image the size of the fixture page
type blankRasterizer struct{}

func (blankRasterizer) Render(a extraction.Artifact) (extraction.RenderedImage, error) {
	width := testpdf.PageWidth(a.Index)
	data, err := pdfrenderer.Encode(imaging.New(width, testpdf.BaseHeight, color.White), imaging.PNG)
	if err != nil {
		return extraction.RenderedImage{}, err
	}
	return extraction.RenderedImage{Page: a.Index, Data: data, Width: width, Height: testpdf.BaseHeight, Format: "png"}, nil
}

// setupTestServer creates a test server with all routes configured
func setupTestServer(t *testing.T, extractor *extraction.Extractor) (*echo.Echo, *engine.ServerHandler) {
	t.Helper()
	injectGlobals(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dir := t.TempDir()
	serverConfig := config.ServerConfig{
		DatabaseType:      "sqlite",
		DatabaseDbname:    filepath.Join(dir, "jobs.sqlite"),
		IngressPath:       filepath.Join(dir, "ingress"),
		IngressDelete:     true,
		OutputPath:        filepath.Join(dir, "output"),
		JobRetentionHours: 24,
	}
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		t.Fatalf("Failed to setup database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if extractor == nil {
		extractor = extraction.NewExtractor(extraction.Config{Workers: 2, TempRoot: dir}, blankRasterizer{})
	}
	t.Cleanup(func() { extractor.Close() })

	e := echo.New()
	serverHandler := &engine.ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Extractor:    extractor,
	}
	setupRoutes(serverHandler)
	if err := serverHandler.StartupChecks(); err != nil {
		t.Fatalf("Startup checks failed: %v", err)
	}
	return e, serverHandler
}

func postPDF(t *testing.T, e *echo.Echo, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("pdf", "document.pdf")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// waitForJob polls until the job leaves the pending and running states
func waitForJob(t *testing.T, db database.Repository, jobID ulid.ULID) *database.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := db.GetJob(jobID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}
		if job.Status != database.JobStatusPending && job.Status != database.JobStatusRunning {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", jobID)
	return nil
}

func TestAboutEndpoint(t *testing.T) {
	e, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/about", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var about map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatalf("Failed to parse response: %v\nBody: %s", err, rec.Body.String())
	}
	for _, key := range []string{"version", "imageFormat", "workers", "outputPath", "databaseType"} {
		if _, ok := about[key]; !ok {
			t.Errorf("About response missing %q", key)
		}
	}
	if about["imageFormat"] != "png" {
		t.Errorf("imageFormat = %v, want png", about["imageFormat"])
	}
}

func TestUnknownAPIRouteReturnsJSON(t *testing.T) {
	e, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body is not JSON: %v\nBody: %s", err, rec.Body.String())
	}
	if body["path"] != "/api/does-not-exist" {
		t.Errorf("Unexpected path in 404 body: %q", body["path"])
	}
}

func TestCORSHeaders(t *testing.T) {
	e, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestIngestEndpoint(t *testing.T) {
	e, serverHandler := setupTestServer(t, nil)

	pdfPath := filepath.Join(serverHandler.ServerConfig.IngressPath, "scan.pdf")
	if err := os.WriteFile(pdfPath, testpdf.Generate(4), 0644); err != nil {
		t.Fatalf("Failed to write ingress PDF: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	jobID, err := ulid.Parse(response["jobId"].(string))
	if err != nil {
		t.Fatalf("Invalid job ID: %v", err)
	}

	job := waitForJob(t, serverHandler.DB, jobID)
	if job.Status != database.JobStatusCompleted {
		t.Fatalf("Ingest job status = %s (%s)", job.Status, job.Error)
	}
	if _, err := os.Stat(pdfPath); !os.IsNotExist(err) {
		t.Errorf("Expected ingested PDF to be removed, stat err = %v", err)
	}

	var result struct {
		Jobs []string `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(job.Result), &result); err != nil || len(result.Jobs) != 1 {
		t.Fatalf("Unexpected ingest result %q: %v", job.Result, err)
	}
	pages, err := serverHandler.DB.GetPages(ulid.MustParse(result.Jobs[0]))
	if err != nil {
		t.Fatalf("Failed to get pages: %v", err)
	}
	if len(pages) != 4 {
		t.Errorf("Expected 4 recorded pages, got %d", len(pages))
	}
}

func TestCleanEndpoint(t *testing.T) {
	e, serverHandler := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/clean", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	job := waitForJob(t, serverHandler.DB, ulid.MustParse(response["jobId"].(string)))
	if job.Status != database.JobStatusCompleted {
		t.Errorf("Cleanup job status = %s (%s)", job.Status, job.Error)
	}
}

// TestExtractWithPDFium runs an upload through the real WebAssembly renderer
func TestExtractWithPDFium(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDFium integration test in short mode")
	}

	extractor, err := extraction.New(extraction.Config{Workers: 2, TempRoot: t.TempDir()}, pdfrenderer.BackendPDFium)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}
	e, _ := setupTestServer(t, extractor)

	rec := postPDF(t, e, testpdf.Generate(3))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result engine.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(result.Pages) != 3 {
		t.Fatalf("Expected 3 pages, got %d", len(result.Pages))
	}
	for i, page := range result.Pages {
		if page.Width != testpdf.PageWidth(i) {
			t.Errorf("Page %d width = %d, want %d", i, page.Width, testpdf.PageWidth(i))
		}
	}

	// broken upload
	rec = postPDF(t, e, []byte("garbage"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for broken PDF, got %d", rec.Code)
	}
}

func TestIsAddressInUse(t *testing.T) {
	if isAddressInUse(nil) {
		t.Error("nil error reported as address in use")
	}
	if !isAddressInUse(errors.New("listen tcp :8000: bind: address already in use")) {
		t.Error("bind error not detected")
	}
	if isAddressInUse(errors.New("permission denied")) {
		t.Error("unrelated error reported as address in use")
	}
}
