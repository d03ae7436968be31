package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfpages/database"
	"github.com/drummonds/pdfpages/engine/extraction"
)

// PageInfo describes one rendered page in an extraction result
type PageInfo struct {
	Page      int    `json:"page"`
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"sizeBytes"`
}

// ExtractionResult is stored as the job result and returned to API callers
type ExtractionResult struct {
	JobID     string     `json:"jobId"`
	Source    string     `json:"source"`
	PageCount int        `json:"pageCount"`
	Format    string     `json:"format"`
	OutputDir string     `json:"outputDir"`
	Pages     []PageInfo `json:"pages"`
}

// pageURL is the API path serving one rendered page
func pageURL(jobID ulid.ULID, page int) string {
	return fmt.Sprintf("/api/extract/%s/pages/%d", jobID, page)
}

// loadFunc produces the document an extraction job works on
type loadFunc func() (*extraction.Document, error)

// extractDocumentWithSteps runs one extraction job through explicit steps with progress tracking
// Step 1: Parse the PDF
// Step 2: Split and render every page
// Step 3: Write the images to the output folder (and bucket if configured)
// Step 4: Record the pages
func (serverHandler *ServerHandler) extractDocumentWithSteps(ctx context.Context, jobID ulid.ULID, source string, load loadFunc) (result *ExtractionResult, err error) {
	db := serverHandler.DB
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in extraction job", "panic", r, "jobID", jobID)
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			if dbErr := db.UpdateJobError(jobID, err.Error()); dbErr != nil {
				Logger.Error("Failed to record job error", "jobID", jobID, "error", dbErr)
			}
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Extracting "+source); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	// Step 1: Parse
	db.UpdateJobProgress(jobID, 5, "Step 1: Parsing PDF")
	doc, err := load()
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	Logger.Info("Step 1 complete: PDF parsed", "source", source, "pages", doc.PageCount(), "jobID", jobID)

	// Step 2: Render, 10-80%
	db.UpdateJobProgress(jobID, 10, fmt.Sprintf("Step 2: Rendering %d pages", doc.PageCount()))
	images, err := serverHandler.Extractor.ExtractAllProgress(ctx, doc, func(done, total int) {
		progress := 10 + done*70/total
		if err := db.UpdateJobProgress(jobID, progress, fmt.Sprintf("Step 2: Rendered %d/%d pages", done, total)); err != nil {
			Logger.Warn("Failed to update job progress", "jobID", jobID, "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	// Step 3: Persist
	format := serverHandler.Extractor.Config().ImageFormat
	outputDir := filepath.Join(serverHandler.ServerConfig.OutputPath, jobID.String())
	db.UpdateJobProgress(jobID, 85, "Step 3: Writing images")
	sink := extraction.NewDirSink(outputDir, format)
	if err := sink.Persist(ctx, images); err != nil {
		return nil, err
	}

	var bucket *extraction.BucketSink
	if serverHandler.Bucket != nil {
		bucket = serverHandler.Bucket.WithPrefix(jobID.String())
		db.UpdateJobProgress(jobID, 90, "Step 3: Uploading images")
		if err := bucket.Persist(ctx, images); err != nil {
			return nil, err
		}
	}

	// Step 4: Record
	result = &ExtractionResult{
		JobID:     jobID.String(),
		Source:    source,
		PageCount: len(images),
		Format:    format,
		OutputDir: outputDir,
		Pages:     make([]PageInfo, len(images)),
	}
	records := make([]database.PageRecord, len(images))
	for i, img := range images {
		info := PageInfo{
			Page:      i,
			URL:       pageURL(jobID, i),
			Width:     img.Width,
			Height:    img.Height,
			SizeBytes: len(img.Data),
		}
		if bucket != nil {
			info.ObjectKey = bucket.ObjectKey(i)
		}
		result.Pages[i] = info
		records[i] = database.PageRecord{
			PageIndex: i,
			Path:      sink.PathFor(i),
			ObjectKey: info.ObjectKey,
			Width:     img.Width,
			Height:    img.Height,
			SizeBytes: int64(len(img.Data)),
		}
	}
	if err := db.SavePages(jobID, records); err != nil {
		return nil, fmt.Errorf("failed to record pages: %w", err)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if err := db.CompleteJob(jobID, string(resultJSON)); err != nil {
		Logger.Error("Failed to mark job as complete", "jobID", jobID, "error", err)
	}

	Logger.Info("Extraction complete", "source", source, "pages", len(images), "outputDir", outputDir, "jobID", jobID)
	return result, nil
}

// extractionErrorDetails maps an extraction error to a status code and response body
func extractionErrorDetails(err error) (int, map[string]interface{}) {
	body := map[string]interface{}{"error": err.Error()}

	var parseErr *extraction.DocumentParseError
	var pageErr *extraction.PageExtractionError
	var conflictErr *extraction.OutputPathConflictError
	var persistErr *extraction.PersistError
	switch {
	case errors.As(err, &parseErr), errors.Is(err, extraction.ErrInvalidSource):
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &pageErr):
		body["failedPages"] = pageErr.Pages()
	case errors.As(err, &conflictErr):
		body["outputPath"] = conflictErr.Path
	case errors.As(err, &persistErr):
		failed := make([]int, len(persistErr.Failed))
		for i, f := range persistErr.Failed {
			failed[i] = f.Index
		}
		body["failedWrites"] = failed
	}
	return http.StatusInternalServerError, body
}
