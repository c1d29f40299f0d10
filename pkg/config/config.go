// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads synai settings from defaults, an optional YAML file,
// an optional profile overlay, SYNAI_ environment variables and explicit
// key=value overrides, in that order.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// EnvPrefix prefixes environment overrides: SYNAI_LLM_BASE_URL sets
// llm.base_url.
const EnvPrefix = "SYNAI_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Executor   ExecutorConfig   `koanf:"executor"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Audit      AuditConfig      `koanf:"audit"`
	Events     EventsConfig     `koanf:"events"`
	Memory     MemoryConfig     `koanf:"memory"`
	Transforms TransformsConfig `koanf:"transforms"`
	Tools      ToolsConfig      `koanf:"tools"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider    string        `koanf:"provider"` // ollama, mock
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	MaxAttempts int           `koanf:"max_attempts"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
}

type ExecutorConfig struct {
	AsyncDelay      time.Duration `koanf:"async_delay"`
	TimeoutFraction float64       `koanf:"timeout_fraction"`
	Mock            bool          `koanf:"mock"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type AuditConfig struct {
	SQLitePath string `koanf:"sqlite_path"`
}

// EventsConfig selects where run events are published. Embedded starts an
// in-process NATS server when no URL is given.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	Embedded      bool   `koanf:"embedded"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type MemoryConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Backend         string `koanf:"backend"` // qdrant, inmemory
	QdrantAddr      string `koanf:"qdrant_addr"`
	Collection      string `koanf:"collection"`
	EmbedderBaseURL string `koanf:"embedder_base_url"`
	EmbedderModel   string `koanf:"embedder_model"`
}

type TransformsConfig struct {
	LuaDir string `koanf:"lua_dir"`
}

type ToolsConfig struct {
	MCP []MCPServerConfig `koanf:"mcp"`
}

// MCPServerConfig is an MCP server started over stdio. Its tools are
// registered under their own names.
type MCPServerConfig struct {
	Name    string        `koanf:"name"`
	Command string        `koanf:"command"`
	Args    []string      `koanf:"args"`
	Env     []string      `koanf:"env"`
	Timeout time.Duration `koanf:"timeout"`
	// Retries and RetryBackoff apply to tool discovery and calls.
	Retries      int           `koanf:"retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// Options select the sources Load reads.
type Options struct {
	// Path is the YAML file. Empty skips the file.
	Path string
	// Profile loads <base>.<profile><ext> next to Path when it exists.
	Profile string
	// Overrides are key=value pairs applied last. Values that parse as
	// JSON are used decoded.
	Overrides []string
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                 "info",
		"log.format":                "text",
		"llm.provider":              "ollama",
		"llm.model":                 "llama3.1",
		"llm.base_url":              "http://localhost:11434",
		"llm.max_attempts":          3,
		"llm.retry_delay":           "500ms",
		"executor.async_delay":      "100ms",
		"executor.timeout_fraction": 0.1,
		"executor.mock":             false,
		"telemetry.exporter":        "none",
		"telemetry.otlp_endpoint":   "",
		"telemetry.otlp_insecure":   true,
		"audit.sqlite_path":         "",
		"events.nats_url":           "",
		"events.embedded":           false,
		"events.subject_prefix":     "synai",
		"memory.enabled":            false,
		"memory.backend":            "qdrant",
		"memory.qdrant_addr":        "localhost:6334",
		"memory.collection":         "synai_outputs",
		"memory.embedder_base_url":  "http://localhost:11434",
		"memory.embedder_model":     "nomic-embed-text",
		"transforms.lua_dir":        "",
	}
}

// Load reads defaults, the YAML file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	return LoadWith(Options{Path: path})
}

// LoadWithProfile is Load plus a profile overlay.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadWith(Options{Path: path, Profile: profile})
}

// LoadWith loads a Config from opts. Each call uses its own koanf instance.
func LoadWith(opts Options) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, synerrors.New(synerrors.CodeInternal, "set config default", err).WithContext("key", key)
		}
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, synerrors.New(synerrors.CodeInvalidInput, "load config file", err).WithContext("path", opts.Path)
		}
		if opts.Profile != "" {
			overlay := ProfileConfigPath(opts.Path, opts.Profile)
			if _, err := os.Stat(overlay); err == nil {
				if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
					return nil, synerrors.New(synerrors.CodeInvalidInput, "load profile config", err).WithContext("path", overlay)
				}
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "load environment", err)
	}

	for _, o := range opts.Overrides {
		key, value, err := ParseOverride(o)
		if err != nil {
			return nil, err
		}
		if err := k.Set(key, value); err != nil {
			return nil, synerrors.New(synerrors.CodeInvalidInput, "apply override", err).WithContext("key", key)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "decode config", err)
	}
	return &cfg, nil
}

// envKey maps SYNAI_MEMORY_QDRANT_ADDR to memory.qdrant_addr: the first
// segment names the section, the rest is the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// ProfileConfigPath returns the overlay path for profile: config.yaml and
// "dev" give config.dev.yaml.
func ProfileConfigPath(path, profile string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + profile + ext
}

// ParseOverride splits "key=value". The value is JSON-decoded when it is
// valid JSON, otherwise kept as a string.
func ParseOverride(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, synerrors.Newf(synerrors.CodeInvalidInput, "override %q must be key=value", s)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return key, v, nil
	}
	return key, raw, nil
}
