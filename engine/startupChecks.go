package engine

import (
	"fmt"
	"os"

	"github.com/drummonds/pdfpages/engine/extraction"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig := serverHandler.ServerConfig
	if err := ingressDirectoryChecks(serverConfig.IngressPath); err != nil {
		return err
	}
	if err := outputDirectoryChecks(serverConfig.OutputPath); err != nil {
		return err
	}
	return tempRootChecks(serverHandler.Extractor.Config().TempRoot)
}

// ingressDirectoryChecks ensures the ingress directory exists
func ingressDirectoryChecks(ingressPath string) error {
	if ingressPath == "" {
		Logger.Warn("Ingress path not configured")
		return nil
	}

	ingressInfo, err := os.Stat(ingressPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating ingress directory", "path", ingressPath)
			if err := os.MkdirAll(ingressPath, 0755); err != nil {
				Logger.Error("Failed to create ingress directory", "path", ingressPath, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking ingress directory", "path", ingressPath, "error", err)
		return err
	}

	if !ingressInfo.IsDir() {
		Logger.Error("Ingress path exists but is not a directory", "path", ingressPath)
		return fmt.Errorf("ingress path is not a directory: %s", ingressPath)
	}

	Logger.Info("Ingress directory exists", "path", ingressPath)
	return nil
}

// outputDirectoryChecks ensures rendered pages can be written
func outputDirectoryChecks(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path not configured")
	}
	if err := extraction.EnsureOutputDir(outputPath); err != nil {
		Logger.Error("Output directory unusable", "path", outputPath, "error", err)
		return err
	}
	Logger.Info("Output directory ready", "path", outputPath)
	return nil
}

// tempRootChecks makes sure the scratch root is a writable directory
func tempRootChecks(tempRoot string) error {
	info, err := os.Stat(tempRoot)
	if err != nil {
		Logger.Error("Temp root unusable", "path", tempRoot, "error", err)
		return fmt.Errorf("temp root %s: %w", tempRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("temp root is not a directory: %s", tempRoot)
	}
	probe, err := os.CreateTemp(tempRoot, extraction.ScratchPrefix+"probe-*")
	if err != nil {
		Logger.Error("Temp root is not writable", "path", tempRoot, "error", err)
		return fmt.Errorf("temp root %s is not writable: %w", tempRoot, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
