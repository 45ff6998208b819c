// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the typed configuration record
// described in SPEC_FULL.md §5.10, using koanf v2 with a three-layer
// precedence: struct defaults, then an optional YAML file, then
// environment variables (env wins).
package config

import "time"

// Config is the top-level configuration record.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Planner   PlannerConfig   `koanf:"planner"`
	Integrity IntegrityConfig `koanf:"integrity"`
	Audio     AudioConfig     `koanf:"audio"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
	Status    StatusConfig    `koanf:"status"`
}

// StoreConfig controls the durable state store.
type StoreConfig struct {
	// Path is the database file path, or ":memory:" for a transient store.
	Path string `koanf:"path"`
	// MaxEntries is validated (>= 100) but not passed to the GC: the planner's
	// maintenance pass uses its own fixed cap of 50000 rows.
	MaxEntries int `koanf:"max_entries"`
	// KeepDays is not passed to the GC either: the planner's maintenance pass
	// uses its own fixed age limit of 30 days.
	KeepDays int `koanf:"keep_days"`
}

// PlannerConfig controls the scheduling loop.
type PlannerConfig struct {
	BatchSize             int           `koanf:"batch_size"`
	LoopInterval          time.Duration `koanf:"loop_interval"`
	IdleSleepCap          time.Duration `koanf:"idle_sleep_cap"`
	MaintenanceInterval   time.Duration `koanf:"maintenance_interval"`
	WorkerCount           int           `koanf:"worker_count"`
	StableWait            time.Duration `koanf:"stable_wait"`
	BackoffStep           time.Duration `koanf:"backoff_step"`
	BackoffMax            time.Duration `koanf:"backoff_max"`
	QuarantineThreshold   int           `koanf:"quarantine_threshold"`
}

// IntegrityConfig controls the external integrity checker invocation.
type IntegrityConfig struct {
	Mode        string        `koanf:"mode"` // quick|full|auto
	Timeout     time.Duration `koanf:"timeout"`
	ToolPath    string        `koanf:"tool_path"`
	BreakerOpen time.Duration `koanf:"breaker_open"`
}

// AudioConfig controls the external audio prober invocation.
type AudioConfig struct {
	ToolPath    string        `koanf:"tool_path"`
	Timeout     time.Duration `koanf:"timeout"`
	BreakerOpen time.Duration `koanf:"breaker_open"`
}

// DiscoveryConfig controls directory scanning and identification of
// candidate files.
type DiscoveryConfig struct {
	MinFileSize   int64    `koanf:"min_file_size"`
	Extensions    []string `koanf:"extensions"`
	MaxDepth      int      `koanf:"max_depth"`
	FanOut        int      `koanf:"fan_out"`
	RatePerSecond float64  `koanf:"rate_per_second"`
	WatchEnabled  bool     `koanf:"watch_enabled"`
}

// MetricsConfig controls the in-memory event recorder.
type MetricsConfig struct {
	RetentionHours int `koanf:"retention_hours"`
	MaxEvents      int `koanf:"max_events"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// StatusConfig controls the optional chi status/metrics HTTP surface.
type StatusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// defaultConfig returns sensible production defaults, applied first and
// overridden by config file then environment variables.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       "/data/stereoingest.duckdb",
			MaxEntries: 50000,
			KeepDays:   30,
		},
		Planner: PlannerConfig{
			BatchSize:           50,
			LoopInterval:        1 * time.Second,
			IdleSleepCap:        5 * time.Second,
			MaintenanceInterval: 10 * time.Minute,
			WorkerCount:         2,
			StableWait:          30 * time.Second,
			BackoffStep:         30 * time.Second,
			BackoffMax:          600 * time.Second,
			QuarantineThreshold: 5,
		},
		Integrity: IntegrityConfig{
			Mode:        "quick",
			Timeout:     60 * time.Second,
			ToolPath:    "ffprobe",
			BreakerOpen: 60 * time.Second,
		},
		Audio: AudioConfig{
			ToolPath:    "ffprobe",
			Timeout:     30 * time.Second,
			BreakerOpen: 60 * time.Second,
		},
		Discovery: DiscoveryConfig{
			MinFileSize:   1 << 20, // 1 MiB
			Extensions:    []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".part", ".!qb", ".crdownload"},
			MaxDepth:      8,
			FanOut:        8,
			RatePerSecond: 20,
			WatchEnabled:  false,
		},
		Metrics: MetricsConfig{
			RetentionHours: 24,
			MaxEvents:      10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Status: StatusConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9470",
		},
	}
}
