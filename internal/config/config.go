// Package config loads, validates, and writes the acebeads
// configuration. Sources are layered lowest to highest precedence:
// built-in defaults, the user-home config file, the project-local
// config file, then environment variables. There is no flag tier: the
// only CLI flag that affects configuration is --config, which selects
// the project-local file. Relative paths are resolved against the
// working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level acebeads configuration.
type Config struct {
	AgentsPath          string               `yaml:"agents_path"`
	LogsDir             string               `yaml:"logs_dir"`
	InsightsPath        string               `yaml:"insights_path"`
	TracesPath          string               `yaml:"traces_path"`
	DeltaQueuePath      string               `yaml:"delta_queue_path"`
	MaxDeltasPerSession int                  `yaml:"max_deltas_per_session"`
	DefaultConfidence   float64              `yaml:"default_confidence"`
	Learning            LearningConfig       `yaml:"learning"`
	TraceRetention      TraceRetentionConfig `yaml:"trace_retention"`
	ReviewRouting       map[string]string    `yaml:"review_routing"`
	TrackerBin          string               `yaml:"tracker_bin"`
	TrackerLogPath      string               `yaml:"tracker_log_path"`
}

// LearningConfig tunes the Curator/Merger confidence gate and offline
// batch-learning schedule.
type LearningConfig struct {
	ConfidenceMin float64       `yaml:"confidence_min"`
	Offline       OfflineConfig `yaml:"offline"`
}

// OfflineConfig configures a batch offline-learning run.
type OfflineConfig struct {
	Epochs          int     `yaml:"epochs"`
	ReviewThreshold float64 `yaml:"review_threshold"`
}

// TraceRetentionConfig bounds the Trace Store's retention policy.
type TraceRetentionConfig struct {
	MaxTracesPerBead int    `yaml:"max_traces_per_bead"`
	MaxAgeInDays     int    `yaml:"max_age_in_days"`
	ArchivePath      string `yaml:"archive_path"`
}

// envPrefix namespaces environment variable overrides.
const envPrefix = "ACEBEADS_"

// Load resolves config from built-in defaults, the user-home config
// file, the project-local config file (or explicitPath if given),
// environment variables, then returns the result with all paths
// resolved relative to cwd (spec.md Section 6 precedence chain).
func Load(explicitPath, cwd string) (*Config, error) {
	cfg := applyDefaults()

	if home, err := os.UserHomeDir(); err == nil {
		if err := mergeFile(cfg, filepath.Join(home, ".acebeads", "config.yaml")); err != nil {
			return nil, err
		}
	}

	projectPath := explicitPath
	if projectPath == "" {
		projectPath = filepath.Join(cwd, ".acebeads.yaml")
	}
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	resolvePaths(cfg, cwd)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// mergeFile unmarshals path's YAML onto cfg in place. A missing file is
// not an error (spec.md Section 7: "missing optional files" are
// recoverable); malformed YAML is fatal, per the whole-file config
// parse-error rule.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variable overrides, the highest
// precedence tier Load applies.
func applyEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "AGENTS_PATH"); v != "" {
		cfg.AgentsPath = v
	}
	if v := os.Getenv(envPrefix + "LOGS_DIR"); v != "" {
		cfg.LogsDir = v
	}
	if v := os.Getenv(envPrefix + "INSIGHTS_PATH"); v != "" {
		cfg.InsightsPath = v
	}
	if v := os.Getenv(envPrefix + "TRACES_PATH"); v != "" {
		cfg.TracesPath = v
	}
	if v := os.Getenv(envPrefix + "DELTA_QUEUE_PATH"); v != "" {
		cfg.DeltaQueuePath = v
	}
	if v := os.Getenv(envPrefix + "MAX_DELTAS_PER_SESSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDeltasPerSession = n
		}
	}
	if v := os.Getenv(envPrefix + "DEFAULT_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultConfidence = f
		}
	}
	if v := os.Getenv(envPrefix + "LEARNING_CONFIDENCE_MIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Learning.ConfidenceMin = f
		}
	}
	if v := os.Getenv(envPrefix + "TRACKER_BIN"); v != "" {
		cfg.TrackerBin = v
	}
	if v := os.Getenv(envPrefix + "TRACKER_LOG_PATH"); v != "" {
		cfg.TrackerLogPath = v
	}
}

// resolvePaths rewrites every relative path in cfg to be absolute
// against cwd (spec.md Section 6: "Relative paths are resolved against
// the working directory").
func resolvePaths(cfg *Config, cwd string) {
	cfg.AgentsPath = resolve(cwd, cfg.AgentsPath)
	cfg.LogsDir = resolve(cwd, cfg.LogsDir)
	cfg.InsightsPath = resolve(cwd, cfg.InsightsPath)
	cfg.TracesPath = resolve(cwd, cfg.TracesPath)
	cfg.DeltaQueuePath = resolve(cwd, cfg.DeltaQueuePath)
	cfg.TraceRetention.ArchivePath = resolve(cwd, cfg.TraceRetention.ArchivePath)
	cfg.TrackerLogPath = resolve(cwd, cfg.TrackerLogPath)
}

func resolve(cwd, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cwd, path)
}

// WriteDefault writes a default config.yaml with all fields populated
// and a comment header, used by first-run setup.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# acebeads configuration
#
# agents_path: playbook markdown file
# logs_dir: directory for insights/notification/review logs
# insights_path: Reflector output (JSONL, append-only)
# traces_path: execution trace log (JSONL, append-only)
# delta_queue_path: pending delta queue (JSON array)
# max_deltas_per_session: Curator emission cap per cycle (>= 1)
# default_confidence: default confidence in [0,1] (validated; not read by any stage)
# learning.confidence_min: Merger/Curator acceptance floor
# learning.offline.epochs / review_threshold: batch learning schedule
# trace_retention.*: Trace Store retention policy
# review_routing.<event-type>: one of file|comment-on-item|new-item|none
# tracker_bin: external issue-tracker binary invoked as <tracker_bin> <verb> [args] --json
# tracker_log_path: tracker's append-only event log, watched for closures

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// applyDefaults returns a Config with all fields set to their default
// values (spec.md Section 6).
func applyDefaults() *Config {
	return &Config{
		AgentsPath:          "playbook.md",
		LogsDir:             "logs",
		InsightsPath:        "logs/insights.jsonl",
		TracesPath:          "logs/traces.jsonl",
		DeltaQueuePath:      "logs/delta_queue.json",
		MaxDeltasPerSession: 3,
		DefaultConfidence:   0.8,
		Learning: LearningConfig{
			ConfidenceMin: 0.6,
			Offline: OfflineConfig{
				Epochs:          1,
				ReviewThreshold: 0.5,
			},
		},
		TraceRetention: TraceRetentionConfig{
			MaxTracesPerBead: 50,
			MaxAgeInDays:     90,
			ArchivePath:      "logs/traces.archive.jsonl",
		},
		ReviewRouting: map[string]string{
			"closed":  "file",
			"created": "none",
			"updated": "none",
		},
		TrackerBin:     "bd",
		TrackerLogPath: "logs/tracker_events.jsonl",
	}
}

// validate checks the config for logical errors after parsing.
func validate(cfg *Config) error {
	if cfg.AgentsPath == "" {
		return fmt.Errorf("agents_path must not be empty")
	}
	if cfg.MaxDeltasPerSession < 1 {
		return fmt.Errorf("max_deltas_per_session must be >= 1, got %d", cfg.MaxDeltasPerSession)
	}
	if cfg.DefaultConfidence < 0 || cfg.DefaultConfidence > 1 {
		return fmt.Errorf("default_confidence must be in [0,1], got %v", cfg.DefaultConfidence)
	}
	if cfg.Learning.ConfidenceMin < 0 || cfg.Learning.ConfidenceMin > 1 {
		return fmt.Errorf("learning.confidence_min must be in [0,1], got %v", cfg.Learning.ConfidenceMin)
	}
	for kind, dest := range cfg.ReviewRouting {
		switch dest {
		case "file", "comment-on-item", "new-item", "none":
		default:
			return fmt.Errorf("review_routing[%q]: unrecognized destination %q", kind, dest)
		}
	}
	return nil
}
