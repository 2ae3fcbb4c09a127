//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package config loads the server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr   = ":8080"
	DefaultModel        = "gpt-4o-mini"
	DefaultPollInterval = Duration(time.Second)
)

// Duration is a time.Duration that parses Go duration strings ("30s",
// "250ms") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the process configuration.
type Config struct {
	// ListenAddr is the HTTP listen address of the run API.
	ListenAddr string `yaml:"listen_addr"`
	// DefaultModel is used by llm nodes whose config names no model.
	DefaultModel string `yaml:"default_model"`
	// BaseURL points the generation client at an OpenAI-compatible
	// endpoint. Empty means the default OpenAI endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates the generation client. Usually left empty here
	// and supplied through OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// PollInterval is the status poll period.
	PollInterval Duration `yaml:"poll_interval"`
	// MaxParallel is the number of nodes allowed to execute concurrently
	// per run. Values below 2 mean strict serial execution.
	MaxParallel int `yaml:"max_parallel"`
	// NodeTimeout bounds each node's handler call. Zero disables the bound.
	NodeTimeout Duration `yaml:"node_timeout"`
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:   DefaultListenAddr,
		DefaultModel: DefaultModel,
		PollInterval: DefaultPollInterval,
		LogLevel:     "info",
	}
}

// Load reads the YAML file at path, falling back to defaults for absent
// fields, and applies environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return cfg, nil
}

// Environment variable names.
const (
	envListenAddr   = "FLOWFORGE_LISTEN_ADDR"
	envDefaultModel = "FLOWFORGE_DEFAULT_MODEL"
	envBaseURL      = "FLOWFORGE_BASE_URL"
	envAPIKey       = "FLOWFORGE_API_KEY"
	envMaxParallel  = "FLOWFORGE_MAX_PARALLEL"
	envLogLevel     = "FLOWFORGE_LOG_LEVEL"
)

func (c *Config) applyEnv() {
	if v := os.Getenv(envListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(envDefaultModel); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv(envBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(envMaxParallel); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxParallel = n
		}
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
}
