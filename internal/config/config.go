package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	ImageDirectory    string
	Collection        string // Relative folder inside ImageDirectory, e.g. Pictures/FilteredCamera
	DatabasePath      string
	LogDirectory      string
	LogLevel          string
	LogFormat         string // "text" or "json"
	StaticDirectory   string
	MaxCollectionSize int64  // Maksymalny rozmiar kolekcji w GB (raportowany w galerii)

	CameraDriver     string // "gocv" or "synthetic"
	BackCameraIndex  int
	FrontCameraIndex int
	PreviewWidth     int
	PreviewHeight    int
	PreviewFPS       int
	CameraPermission string // "granted" or "denied"

	StillJPEGQuality        int
	OutputJPEGQuality       int
	IntermediateJPEGQuality int
	PreviewJPEGQuality      int
	ChromaOrder             string // "VU" (NV21) or "UV" (NV12)

	FilteredPrefix string
	OriginalPrefix string
	KeepOriginal   bool
	DragThreshold  float64
	CaptureTimeout time.Duration

	RecoveryDirectory     string
	RecoveryBufferLimit   int
	RecoveryFlushInterval int // seconds
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	// A missing .env file is not an error, the environment alone is enough.
	_ = godotenv.Load()

	imageDir := getEnv("IMAGE_DIR", filepath.Join(".", "media"))

	return &Config{
		Port:              getEnvAsInt("PORT", 8080),
		ImageDirectory:    imageDir,
		Collection:        getEnv("COLLECTION", "Pictures/FilteredCamera"),
		DatabasePath:      getEnv("DB_PATH", filepath.Join(".", "data", "artifacts.db")),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		StaticDirectory:   getEnv("STATIC_DIR", filepath.Join(".", "static")),
		MaxCollectionSize: getEnvAsInt64("MAX_COLLECTION_SIZE", 4),

		CameraDriver:     strings.ToLower(getEnv("CAMERA_DRIVER", "gocv")),
		BackCameraIndex:  getEnvAsInt("BACK_CAMERA_INDEX", 0),
		FrontCameraIndex: getEnvAsInt("FRONT_CAMERA_INDEX", 1),
		PreviewWidth:     getEnvAsInt("PREVIEW_WIDTH", 640), // analiza w niższej rozdzielczości
		PreviewHeight:    getEnvAsInt("PREVIEW_HEIGHT", 480),
		PreviewFPS:       getEnvAsInt("PREVIEW_FPS", 30),
		CameraPermission: strings.ToLower(getEnv("CAMERA_PERMISSION", "granted")),

		StillJPEGQuality:        getEnvAsInt("STILL_JPEG_QUALITY", 95),
		OutputJPEGQuality:       getEnvAsInt("OUTPUT_JPEG_QUALITY", 90),
		IntermediateJPEGQuality: getEnvAsInt("INTERMEDIATE_JPEG_QUALITY", 100),
		PreviewJPEGQuality:      getEnvAsInt("PREVIEW_JPEG_QUALITY", 70),
		ChromaOrder:             strings.ToUpper(getEnv("CHROMA_ORDER", "VU")),

		FilteredPrefix: getEnv("FILTERED_PREFIX", "FILTERED_"),
		OriginalPrefix: getEnv("ORIGINAL_PREFIX", "IMG_"),
		KeepOriginal:   getEnvAsBool("KEEP_ORIGINAL", false),
		DragThreshold:  getEnvAsFloat("DRAG_THRESHOLD", 20),
		CaptureTimeout: getEnvAsDuration("CAPTURE_TIMEOUT", 10*time.Second),

		RecoveryDirectory:     getEnv("RECOVERY_DIR", filepath.Join(imageDir, ".recovery")),
		RecoveryBufferLimit:   getEnvAsInt("RECOVERY_BUFFER_LIMIT", 10),
		RecoveryFlushInterval: getEnvAsInt("RECOVERY_FLUSH_INTERVAL", 30),
	}
}

// CollectionPath is the directory persisted artifacts are written to.
func (c *Config) CollectionPath() string {
	return filepath.Join(c.ImageDirectory, filepath.FromSlash(c.Collection))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
