package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "takeoff.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.TileSize != 640 || cfg.Detector.Kind != DetectorShapes || cfg.History.Prefix != "takeoff" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  tile_size: 512
  overlap_fraction: 0.2
  early_stop_count: 40
  skip_blank: false
detector:
  kind: remote
  url: ws://localhost:8765/ws
  pool_size: 2
  timeout: 5s
log:
  level: debug
history:
  addr: localhost:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"tile size", cfg.Engine.TileSize, 512},
		{"overlap", cfg.Engine.OverlapFraction, 0.2},
		{"early stop", cfg.Engine.EarlyStopCount, 40},
		{"skip blank", cfg.Engine.SkipBlank, false},
		{"untouched default", cfg.Engine.IoUSuppressionThreshold, 0.5},
		{"detector kind", cfg.Detector.Kind, "remote"},
		{"detector url", cfg.Detector.URL, "ws://localhost:8765/ws"},
		{"pool size", cfg.Detector.PoolSize, 2},
		{"timeout", cfg.Detector.Timeout, 5 * time.Second},
		{"log level", cfg.Log.Level, "debug"},
		{"redis addr", cfg.History.Addr, "localhost:6379"},
		{"prefix default", cfg.History.Prefix, "takeoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "engine:\n  tile_size: 512\n")
	t.Setenv("TAKEOFF_TILE_SIZE", "800")
	t.Setenv("TAKEOFF_CONFIDENCE", "0.4")
	t.Setenv("TAKEOFF_SKIP_EDGES", "true")
	t.Setenv("TAKEOFF_DETECTOR_TIMEOUT", "2s")
	t.Setenv("TAKEOFF_REDIS_ADDR", "redis:6379")
	t.Setenv("TAKEOFF_HISTORY_TTL", "720h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.TileSize != 800 {
		t.Errorf("TileSize = %d, want 800", cfg.Engine.TileSize)
	}
	if cfg.Engine.ConfidenceThreshold != 0.4 || !cfg.Engine.SkipEdges {
		t.Errorf("Env overrides not applied: %+v", cfg.Engine)
	}
	if cfg.Detector.Timeout != 2*time.Second || cfg.History.Addr != "redis:6379" {
		t.Errorf("Env overrides not applied: %+v %+v", cfg.Detector, cfg.History)
	}
	if cfg.History.TTL != 720*time.Hour {
		t.Errorf("History TTL = %v, want 720h", cfg.History.TTL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantMsg string
	}{
		{"bad env int", "", map[string]string{"TAKEOFF_TILE_SIZE": "big"}, "TAKEOFF_TILE_SIZE"},
		{"bad env bool", "", map[string]string{"TAKEOFF_SKIP_BLANK": "maybe"}, "TAKEOFF_SKIP_BLANK"},
		{"tile size zero", "engine:\n  tile_size: 0\n", nil, "TileSize"},
		{"unknown detector", "detector:\n  kind: magic\n", nil, "Kind"},
		{"remote without url", "detector:\n  kind: remote\n", nil, "URL"},
		{"bad log level", "log:\n  level: loud\n", nil, "Level"},
		{"malformed yaml", "engine: [", nil, "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestApplyEnv_IgnoresBlank(t *testing.T) {
	cfg := Default()
	env := map[string]string{"TAKEOFF_TILE_SIZE": "  ", "TAKEOFF_LOG_LEVEL": "warn"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	if err := applyEnv(cfg, lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.Engine.TileSize != 640 || cfg.Log.Level != "warn" {
		t.Errorf("Unexpected result: tile=%d level=%s", cfg.Engine.TileSize, cfg.Log.Level)
	}
}
