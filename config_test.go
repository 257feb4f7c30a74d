package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.Listen != want.Listen || cfg.Scan.DurationMS != want.Scan.DurationMS {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labscan.yaml")
	doc := `listen: 0.0.0.0:9090
scan:
  duration_ms: 5000
  motion_threshold: 20
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if got := cfg.Scan.duration(); got != 5*time.Second {
		t.Errorf("scan duration = %v, want 5s", got)
	}
	if cfg.Scan.MotionThreshold != 20 {
		t.Errorf("motion threshold = %v, want 20", cfg.Scan.MotionThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Camera.Device != "0" {
		t.Errorf("camera device = %q, want default", cfg.Camera.Device)
	}
}

func TestLoadConfigFloorsNonPositiveCadences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labscan.yaml")
	doc := `scan:
  duration_ms: 0
  inference_interval_ms: -100
  render_interval_ms: 0
  motion_interval_ms: -5
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig().Scan
	if cfg.Scan.DurationMS != def.DurationMS {
		t.Errorf("duration_ms = %d, want default %d", cfg.Scan.DurationMS, def.DurationMS)
	}
	if cfg.Scan.InferenceIntervalMS != def.InferenceIntervalMS {
		t.Errorf("inference_interval_ms = %d, want default %d", cfg.Scan.InferenceIntervalMS, def.InferenceIntervalMS)
	}
	if cfg.Scan.RenderIntervalMS != def.RenderIntervalMS {
		t.Errorf("render_interval_ms = %d, want default %d", cfg.Scan.RenderIntervalMS, def.RenderIntervalMS)
	}
	if cfg.Scan.MotionIntervalMS != def.MotionIntervalMS {
		t.Errorf("motion_interval_ms = %d, want default %d", cfg.Scan.MotionIntervalMS, def.MotionIntervalMS)
	}
}

func TestLoadClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.yaml")
	doc := "classes:\n  - beaker\n  - pipette\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	classes, err := LoadClasses(path)
	if err != nil {
		t.Fatalf("LoadClasses: %v", err)
	}
	if len(classes) != 2 || classes[0] != "beaker" || classes[1] != "pipette" {
		t.Errorf("classes = %v", classes)
	}
}

func TestLoadClassesRejectsEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.yaml")
	if err := os.WriteFile(path, []byte("classes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClasses(path); err == nil {
		t.Error("expected error for empty class list")
	}
}
