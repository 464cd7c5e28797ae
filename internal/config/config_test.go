package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LISA_BASE_DIR", "/opt/lisa")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":5000" {
		t.Errorf("Addr = %q, want :5000", cfg.Addr)
	}
	if cfg.DetectorWorkers != 1 {
		t.Errorf("DetectorWorkers = %d, want 1", cfg.DetectorWorkers)
	}
	if cfg.MinDetectionConf != 0.5 {
		t.Errorf("MinDetectionConf = %v, want 0.5", cfg.MinDetectionConf)
	}
	if cfg.MaxBodyBytes != 16<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 16<<20)
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", cfg.WriteTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.LogRetention != 720*time.Hour {
		t.Errorf("LogRetention = %v, want 720h", cfg.LogRetention)
	}

	wantModel := filepath.Join("/opt/lisa", "modelos", DefaultModelName+".onnx")
	if cfg.ModelPath() != wantModel {
		t.Errorf("ModelPath() = %q, want %q", cfg.ModelPath(), wantModel)
	}
	wantScaler := filepath.Join("/opt/lisa", "modelos", "scaler_"+DefaultModelName+".json")
	if cfg.ScalerPath() != wantScaler {
		t.Errorf("ScalerPath() = %q, want %q", cfg.ScalerPath(), wantScaler)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LISA_ADDR", "127.0.0.1:8443")
	t.Setenv("LISA_DETECTOR_WORKERS", "4")
	t.Setenv("LISA_MIN_DETECTION_CONFIDENCE", "0.7")
	t.Setenv("LISA_WRITE_TIMEOUT", "10s")
	t.Setenv("LISA_MODEL_NAME", "custom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != "127.0.0.1:8443" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DetectorWorkers != 4 {
		t.Errorf("DetectorWorkers = %d, want 4", cfg.DetectorWorkers)
	}
	if cfg.MinDetectionConf != 0.7 {
		t.Errorf("MinDetectionConf = %v, want 0.7", cfg.MinDetectionConf)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if filepath.Base(cfg.MetadataPath()) != "custom.json" {
		t.Errorf("MetadataPath() = %q", cfg.MetadataPath())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric workers", "LISA_DETECTOR_WORKERS", "many"},
		{"zero workers", "LISA_DETECTOR_WORKERS", "0"},
		{"confidence above one", "LISA_MIN_DETECTION_CONFIDENCE", "1.5"},
		{"bad duration", "LISA_WRITE_TIMEOUT", "soon"},
		{"cert without key", "LISA_TLS_CERT", "/tmp/cert.pem"},
		{"negative retention", "LISA_LOG_RETENTION", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
