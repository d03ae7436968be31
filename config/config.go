package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/drummonds/pdfpages/engine/extraction"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP      string
	ListenAddrPort    string
	DatabaseType      string
	DatabaseHost      string
	DatabasePort      string
	DatabaseUser      string
	DatabasePassword  string `json:"-"`
	DatabaseDbname    string
	DatabaseSslmode   string
	IngressPath       string
	IngressDelete     bool
	IngressInterval   int
	OutputPath        string
	JobRetentionHours int
	S3Config
	ExtractConfig
}

// ExtractConfig holds the page extraction settings shared by the server and
// the CLI
type ExtractConfig struct {
	ImageFormat    string
	WorkerPoolSize int
	TempRoot       string
	Renderer       string
	RenderDPI      float64
}

// S3Config locates the optional bucket rendered pages are copied to. An
// empty endpoint disables it.
type S3Config struct {
	S3Endpoint  string
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
}

// Extraction converts the settings into the pipeline configuration
func (c ExtractConfig) Extraction() extraction.Config {
	return extraction.Config{
		ImageFormat: c.ImageFormat,
		Workers:     c.WorkerPoolSize,
		TempRoot:    c.TempRoot,
		DPI:         c.RenderDPI,
	}
}

// Bucket returns the bucket settings and whether a bucket is configured
func (c S3Config) Bucket() (extraction.BucketConfig, bool) {
	if c.S3Endpoint == "" || c.S3Bucket == "" {
		return extraction.BucketConfig{}, false
	}
	return extraction.BucketConfig{
		Endpoint:  c.S3Endpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		UseSSL:    c.S3UseSSL,
	}, true
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// absPath resolves a configured path, falling back to the cleaned input
func absPath(logger *slog.Logger, name, path string) string {
	abs, err := filepath.Abs(filepath.ToSlash(path))
	if err != nil {
		logger.Error("Failed creating absolute path", "setting", name, "path", path, "error", err)
		return filepath.Clean(path)
	}
	return abs
}

// loadExtractConfig reads the extraction settings from the environment
func loadExtractConfig(logger *slog.Logger) ExtractConfig {
	cfg := ExtractConfig{
		ImageFormat:    getEnv("IMAGE_FORMAT", extraction.DefaultImageFormat),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", runtime.NumCPU()),
		Renderer:       getEnv("RENDERER", "pdfium"),
		RenderDPI:      getEnvFloat("RENDER_DPI", 72),
	}
	if cfg.WorkerPoolSize < 1 {
		logger.Warn("Invalid worker pool size, using CPU count", "value", cfg.WorkerPoolSize)
		cfg.WorkerPoolSize = runtime.NumCPU()
	}

	cfg.TempRoot = absPath(logger, "TEMP_ROOT", getEnv("TEMP_ROOT", os.TempDir()))
	if err := checkWritableDir(cfg.TempRoot, logger); err != nil {
		logger.Warn("Temp root is not usable, falling back to system temp dir", "path", cfg.TempRoot, "error", err)
		cfg.TempRoot = os.TempDir()
	}

	logger.Info("Extraction configuration loaded",
		"format", cfg.ImageFormat,
		"workers", cfg.WorkerPoolSize,
		"renderer", cfg.Renderer,
		"dpi", cfg.RenderDPI,
		"tempRoot", cfg.TempRoot)
	return cfg
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging("file")
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "pdfpages")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "pdfpages")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")
	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	// Ingress configuration
	serverConfigLive.IngressPath = absPath(logger, "INGRESS_PATH", getEnv("INGRESS_PATH", "ingress"))
	serverConfigLive.IngressInterval = getEnvInt("INGRESS_INTERVAL", 10)
	serverConfigLive.IngressDelete = getEnvBool("INGRESS_DELETE", true)

	// Output configuration
	serverConfigLive.OutputPath = absPath(logger, "OUTPUT_PATH", getEnv("OUTPUT_PATH", extraction.DefaultOutputDirName))
	serverConfigLive.JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 168)

	// Object storage, disabled unless an endpoint is set
	serverConfigLive.S3Config = S3Config{
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "pdfpages"),
		S3Region:    getEnv("S3_REGION", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", true),
	}
	if serverConfigLive.S3Endpoint != "" {
		logger.Info("Object storage enabled", "endpoint", serverConfigLive.S3Endpoint, "bucket", serverConfigLive.S3Bucket)
	}

	serverConfigLive.ExtractConfig = loadExtractConfig(logger)

	fmt.Println("\n========================================")
	fmt.Println("   pdfpages - PDF Page Extraction Server")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Ingress: %s every %d minutes\n", serverConfigLive.IngressPath, serverConfigLive.IngressInterval)
	fmt.Printf("Output: %s\n", serverConfigLive.OutputPath)
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdfpages.log"))
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// SetupCLI loads the extraction settings for command line use. Logs go to
// stderr unless LOG_OUTPUT says otherwise.
func SetupCLI() (ExtractConfig, *slog.Logger) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging("stderr")
	Logger = logger

	return loadExtractConfig(logger), logger
}

// setupLogging configures the application logger
func setupLogging(defaultOutput string) *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", defaultOutput)
	var logWriter io.Writer

	switch logOutput {
	case "stdout":
		logWriter = os.Stdout
	case "stderr":
		logWriter = os.Stderr
	default:
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfpages.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// checkWritableDir verifies that path is a directory we can create files in
func checkWritableDir(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		logger.Error("Cannot find directory", "path", path)
		return err
	}
	if !info.IsDir() {
		logger.Error("Path is not a directory", "path", path)
		return fmt.Errorf("%s is not a directory", path)
	}
	probe, err := os.CreateTemp(path, ".pdfpages-probe-*")
	if err != nil {
		logger.Error("Directory is not writable", "path", path, "error", err)
		return err
	}
	probe.Close()
	os.Remove(probe.Name())
	logger.Debug("Directory is writable", "path", path)
	return nil
}
