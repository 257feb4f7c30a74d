package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openbench/labscan/detections"
	"github.com/openbench/labscan/scan"
)

// Config is the full server configuration, loaded from YAML with
// defaults for every field.
type Config struct {
	Listen  string       `yaml:"listen"`
	Catalog string       `yaml:"catalog"`
	Camera  CameraConfig `yaml:"camera"`
	Model   ModelConfig  `yaml:"model"`
	Scan    ScanConfig   `yaml:"scan"`
}

type CameraConfig struct {
	// Device is a numeric capture device id or a stream URL/path.
	Device string `yaml:"device"`
}

type ModelConfig struct {
	// Source is a local path or an http(s) URL to the ONNX model.
	Source string `yaml:"source"`
	// Library is the ONNX runtime shared library path; empty means
	// resolve from the environment or the bundled lib directory.
	Library string `yaml:"library"`
	// Classes is a YAML file with the ordered class name list.
	Classes string `yaml:"classes"`
	// Confidence is the detection confidence threshold.
	Confidence float32 `yaml:"confidence"`
}

type ScanConfig struct {
	DurationMS          int     `yaml:"duration_ms"`
	InferenceIntervalMS int     `yaml:"inference_interval_ms"`
	RenderIntervalMS    int     `yaml:"render_interval_ms"`
	MotionIntervalMS    int     `yaml:"motion_interval_ms"`
	MotionThreshold     float64 `yaml:"motion_threshold"`
	ROIFraction         float64 `yaml:"roi_fraction"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Listen:  "127.0.0.1:8080",
		Catalog: "config/catalog.yaml",
		Camera:  CameraConfig{Device: "0"},
		Model: ModelConfig{
			Source:     "models/labscan.onnx",
			Classes:    "config/classes.yaml",
			Confidence: detections.DefaultConfThreshold,
		},
		Scan: ScanConfig{
			DurationMS:          10000,
			InferenceIntervalMS: 1000,
			RenderIntervalMS:    33,
			MotionIntervalMS:    500,
			MotionThreshold:     15,
			ROIFraction:         0.5,
		},
	}
}

// LoadConfig reads the YAML config at path over the defaults. A missing
// file is not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Scan.sanitize()
	return cfg, nil
}

// sanitize floors non-positive cadences back to the defaults; the loop
// tickers reject zero or negative durations.
func (c *ScanConfig) sanitize() {
	def := DefaultConfig().Scan
	if c.DurationMS <= 0 {
		c.DurationMS = def.DurationMS
	}
	if c.InferenceIntervalMS <= 0 {
		c.InferenceIntervalMS = def.InferenceIntervalMS
	}
	if c.RenderIntervalMS <= 0 {
		c.RenderIntervalMS = def.RenderIntervalMS
	}
	if c.MotionIntervalMS <= 0 {
		c.MotionIntervalMS = def.MotionIntervalMS
	}
}

// LoadClasses reads the ordered class name list; class id is the
// position in the list.
func LoadClasses(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class list: %w", err)
	}

	var doc struct {
		Classes []string `yaml:"classes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse class list: %w", err)
	}
	if len(doc.Classes) == 0 {
		return nil, fmt.Errorf("class list %s is empty", path)
	}
	return doc.Classes, nil
}

func (c ScanConfig) schedulerConfig() scan.Config {
	return scan.Config{
		InferenceInterval: time.Duration(c.InferenceIntervalMS) * time.Millisecond,
		RenderInterval:    time.Duration(c.RenderIntervalMS) * time.Millisecond,
		MotionInterval:    time.Duration(c.MotionIntervalMS) * time.Millisecond,
		ROIFraction:       c.ROIFraction,
	}
}

func (c ScanConfig) duration() time.Duration {
	return time.Duration(c.DurationMS) * time.Millisecond
}
