package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/pdfpages/database"
	"github.com/drummonds/pdfpages/engine/extraction"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ingressJobFunc runs the ingress job from the scheduler
func (serverHandler *ServerHandler) ingressJobFunc() {
	job, err := serverHandler.DB.CreateJob(database.JobTypeIngestion, "Scheduled ingress")
	if err != nil {
		Logger.Error("Failed to create ingress job", "error", err)
		return
	}
	serverHandler.ingressJobFuncWithTracking(job.ID)
}

// ingressJobFuncWithTracking extracts every PDF in the ingress folder, each as its own extraction job
func (serverHandler *ServerHandler) ingressJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in ingress job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Ingress job crashed: %v", r))
		}
	}()

	serverConfig := serverHandler.ServerConfig
	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Scanning ingress folder")
	Logger.Info("Starting ingress job", "path", serverConfig.IngressPath, "jobID", jobID)

	pdfs, err := findPDFs(serverConfig.IngressPath)
	if err != nil {
		Logger.Error("Failed to scan ingress folder", "path", serverConfig.IngressPath, "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Failed to scan ingress folder: %v", err))
		return
	}

	total := len(pdfs)
	if total == 0 {
		db.CompleteJob(jobID, `{"documents":0,"extracted":0,"failed":0}`)
		Logger.Info("Ingress job complete, nothing to do", "jobID", jobID)
		return
	}

	var extracted, failed int
	var jobIDs []string
	for i, path := range pdfs {
		name := filepath.Base(path)
		progress := i * 100 / total
		db.UpdateJobProgress(jobID, progress, fmt.Sprintf("[%d/%d] %s", i+1, total, name))

		child, err := db.CreateJob(database.JobTypeExtraction, "Ingress: "+name)
		if err != nil {
			Logger.Error("Failed to create extraction job", "file", path, "error", err)
			failed++
			continue
		}
		jobIDs = append(jobIDs, child.ID.String())

		_, err = serverHandler.extractDocumentWithSteps(context.Background(), child.ID, name, func() (*extraction.Document, error) {
			return extraction.LoadFile(path)
		})
		if err != nil {
			Logger.Error("Ingress extraction failed", "file", path, "error", err, "jobID", child.ID)
			failed++
			continue
		}
		extracted++

		if serverConfig.IngressDelete {
			if err := DeleteFile(path); err != nil {
				Logger.Error("Failed to delete ingested file", "path", path, "error", err)
			}
		}
	}

	if serverConfig.IngressDelete {
		deleteEmptyIngressFolders(serverConfig.IngressPath)
	}

	result := map[string]interface{}{
		"documents": total,
		"extracted": extracted,
		"failed":    failed,
		"jobs":      jobIDs,
	}
	resultJSON, _ := json.Marshal(result)
	db.CompleteJob(jobID, string(resultJSON))
	Logger.Info("Ingress job complete", "documents", total, "extracted", extracted, "failed", failed, "jobID", jobID)
}

// findPDFs returns the PDF files under root in lexical order
func findPDFs(root string) ([]string, error) {
	var pdfs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(pdfs)
	return pdfs, nil
}

// cleanupJobFunc runs the cleanup job from the scheduler
func (serverHandler *ServerHandler) cleanupJobFunc() {
	job, err := serverHandler.DB.CreateJob(database.JobTypeCleanup, "Scheduled cleanup")
	if err != nil {
		Logger.Error("Failed to create cleanup job", "error", err)
		return
	}
	serverHandler.cleanupJobFuncWithTracking(job.ID)
}

// cleanupJobFuncWithTracking deletes expired jobs and stale scratch directories
func (serverHandler *ServerHandler) cleanupJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cleanup job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Cleanup job crashed: %v", r))
		}
	}()

	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Starting cleanup")

	retention := time.Duration(serverHandler.ServerConfig.JobRetentionHours) * time.Hour
	db.UpdateJobProgress(jobID, 10, "Step 1: Deleting expired jobs")
	deletedJobs, err := db.DeleteOldJobs(retention)
	if err != nil {
		Logger.Error("Failed to delete old jobs", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Failed to delete old jobs: %v", err))
		return
	}

	db.UpdateJobProgress(jobID, 60, "Step 2: Removing stale scratch directories")
	sweptDirs, err := extraction.SweepScratch(serverHandler.Extractor.Config().TempRoot, time.Hour)
	if err != nil {
		Logger.Warn("Scratch sweep incomplete", "error", err)
	}

	result := map[string]interface{}{
		"deletedJobs":    deletedJobs,
		"removedScratch": sweptDirs,
		"retentionHours": serverHandler.ServerConfig.JobRetentionHours,
	}
	resultJSON, _ := json.Marshal(result)
	db.CompleteJob(jobID, string(resultJSON))
	Logger.Info("Cleanup complete", "deletedJobs", deletedJobs, "removedScratch", sweptDirs, "jobID", jobID)
}

// deleteEmptyIngressFolders removes empty folders left behind in the ingress path, keeping the root
func deleteEmptyIngressFolders(path string) {
	var dirs []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		Logger.Error("Error walking ingress folders", "path", path, "error", err)
		return
	}
	// deepest first so parents empty out before they are visited
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil {
			Logger.Error("Unable to delete empty folder", "path", dirs[i], "error", err)
			continue
		}
		Logger.Info("Removed empty ingress folder", "path", dirs[i])
	}
}

// DeleteFile deletes the supplied file
func DeleteFile(filePath string) error {
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("unable to delete file %s: %w", filePath, err)
	}
	return nil
}
