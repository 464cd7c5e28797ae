// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultModelName is the basename shared by the shipped model, metadata and scaler files.
const DefaultModelName = "modelo_cnn_numeros_lisav2_estaticos_cxy_v1"

// Config holds all runtime settings.
type Config struct {
	Addr    string
	BaseDir string
	Env     string

	ModelName    string
	ONNXRuntime  string
	TLSCertFile  string
	TLSKeyFile   string
	DBPath       string
	MaxBodyBytes int64
	WriteTimeout time.Duration

	DetectorWorkers     int
	MinDetectionConf    float64
	MediaPipeScript     string
	PythonInterpreter   string
	DetectorIdleTimeout time.Duration

	RedisAddr string
	CacheTTL  time.Duration

	LogRetention time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	baseDir := getEnv("LISA_BASE_DIR", "")
	if baseDir == "" {
		baseDir = executableDir()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = baseDir
	}

	cfg := &Config{
		Addr:                getEnv("LISA_ADDR", ":5000"),
		BaseDir:             baseDir,
		Env:                 getEnv("LISA_ENV", "production"),
		ModelName:           getEnv("LISA_MODEL_NAME", DefaultModelName),
		ONNXRuntime:         getEnv("ONNXRUNTIME_LIB", ""),
		TLSCertFile:         getEnv("LISA_TLS_CERT", ""),
		TLSKeyFile:          getEnv("LISA_TLS_KEY", ""),
		DBPath:              getEnv("LISA_DB_PATH", filepath.Join(homeDir, ".lisa", "lisa.db")),
		MediaPipeScript:     getEnv("LISA_MEDIAPIPE_SCRIPT", ""),
		PythonInterpreter:   getEnv("LISA_PYTHON", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		MaxBodyBytes:        16 << 20,
		WriteTimeout:        30 * time.Second,
		DetectorWorkers:     1,
		MinDetectionConf:    0.5,
		DetectorIdleTimeout: 30 * time.Second,
		CacheTTL:            5 * time.Minute,
		LogRetention:        30 * 24 * time.Hour,
	}

	if cfg.MaxBodyBytes, err = getInt64("LISA_MAX_BODY_BYTES", cfg.MaxBodyBytes); err != nil {
		return nil, err
	}
	if cfg.DetectorWorkers, err = getInt("LISA_DETECTOR_WORKERS", cfg.DetectorWorkers); err != nil {
		return nil, err
	}
	if cfg.MinDetectionConf, err = getFloat("LISA_MIN_DETECTION_CONFIDENCE", cfg.MinDetectionConf); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("LISA_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return nil, err
	}
	if cfg.DetectorIdleTimeout, err = getDuration("LISA_DETECTOR_IDLE_TIMEOUT", cfg.DetectorIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("LISA_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.LogRetention, err = getDuration("LISA_LOG_RETENTION", cfg.LogRetention); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise fail late.
func (c *Config) Validate() error {
	if c.DetectorWorkers < 1 {
		return fmt.Errorf("LISA_DETECTOR_WORKERS must be at least 1, got %d", c.DetectorWorkers)
	}
	if c.MinDetectionConf < 0 || c.MinDetectionConf > 1 {
		return fmt.Errorf("LISA_MIN_DETECTION_CONFIDENCE must be within [0,1], got %v", c.MinDetectionConf)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("LISA_MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if c.LogRetention < 0 {
		return fmt.Errorf("LISA_LOG_RETENTION must not be negative, got %v", c.LogRetention)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("LISA_TLS_CERT and LISA_TLS_KEY must be set together")
	}
	return nil
}

// ModelDir is the directory holding the model, metadata and scaler files.
func (c *Config) ModelDir() string {
	return filepath.Join(c.BaseDir, "modelos")
}

// ModelPath is the ONNX graph path.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelDir(), c.ModelName+".onnx")
}

// MetadataPath is the checkpoint metadata path.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.ModelDir(), c.ModelName+".json")
}

// ScalerPath is the fitted scaler path.
func (c *Config) ScalerPath() string {
	return filepath.Join(c.ModelDir(), "scaler_"+c.ModelName+".json")
}

func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(execPath)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
