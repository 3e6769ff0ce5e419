// Copyright (C) 2025 Mend Systems (oss@mendhq.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

// MendConfig is the full configuration loaded from ~/.mend/mend.yaml.
type MendConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Runner  RunnerConfig  `yaml:"runner"`
	Healing HealingConfig `yaml:"healing"`
	Storage StorageConfig `yaml:"storage"`
	Watcher WatcherConfig `yaml:"watcher"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	// Port the API listens on.
	Port int `yaml:"port"`
}

// RunnerConfig points at the external test execution service.
type RunnerConfig struct {
	// URL of the execution service, e.g. http://localhost:12340.
	URL string `yaml:"url"`
	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// HealingConfig tunes the heal pipeline.
type HealingConfig struct {
	// MaxConcurrentHeals bounds simultaneous heal pipelines.
	MaxConcurrentHeals int `yaml:"max_concurrent_heals"`
	// ExecutionTimeoutSeconds bounds a single verification run.
	ExecutionTimeoutSeconds int `yaml:"execution_timeout_seconds"`
	// HistoryWindowSize is the number of retained execution records.
	HistoryWindowSize int `yaml:"history_window_size"`
}

// StorageConfig controls on-disk persistence.
type StorageConfig struct {
	// DataDir holds the badger database. Supports ~ expansion.
	DataDir string `yaml:"data_dir"`
}

// WatcherConfig controls the filesystem source watcher.
type WatcherConfig struct {
	// Root directory of Java sources to watch. Empty disables watching.
	Root string `yaml:"root"`
	// AutoHeal triggers a batch heal after each impact analysis.
	AutoHeal bool `yaml:"auto_heal"`
	// DebounceMillis collapses rapid successive writes to one analysis.
	DebounceMillis int `yaml:"debounce_millis"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Dir enables file logging when non-empty. Supports ~ expansion.
	Dir string `yaml:"dir"`
	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() MendConfig {
	return MendConfig{
		Server: ServerConfig{Port: 12300},
		Runner: RunnerConfig{
			URL:            "http://localhost:12340",
			TimeoutSeconds: 60,
		},
		Healing: HealingConfig{
			MaxConcurrentHeals:      4,
			ExecutionTimeoutSeconds: 120,
			HistoryWindowSize:       50,
		},
		Storage: StorageConfig{DataDir: "~/.mend/data"},
		Watcher: WatcherConfig{
			AutoHeal:       false,
			DebounceMillis: 250,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
