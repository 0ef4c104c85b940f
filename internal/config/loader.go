package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/telemetry"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces storyloom environment variables.
	envPrefix = "STORYLOOM_"
)

// Default returns the hardcoded defaults. The scoring defaults mirror the
// documented pipeline behavior; tests rely on them.
func Default() *Config {
	return &Config{
		Logging: logging.Config{
			Level:  zapcore.InfoLevel,
			Format: "json",
		},
		Telemetry: *telemetry.NewDefaultConfig(),
		Archivist: ArchivistConfig{
			NarrativeWeight:    0.4,
			TemporalWeight:     0.2,
			DiversityWeight:    0.4,
			RelevanceThreshold: 0.3,
			MaxResults:         100,
			MinTextLength:      10,
		},
		Editor: EditorConfig{
			MinContentLength: 10,
			MaxContentLength: 5000,
			MaxGroupSize:     20,
			PreferMedia:      true,
		},
		Director: DirectorConfig{
			Pacing:             "moderate",
			MediaStrategy:      "balanced",
			MinChapterDuration: 10,
			MaxChapterDuration: 120,
		},
		Critic: CriticConfig{
			MinQuality:      0.7,
			RequireApproval: false,
			MinChapters:     1,
			MaxChapters:     20,
		},
	}
}

// Load loads configuration from a YAML file, then overrides with environment
// variables, then applies defaults for anything still unset.
//
// Precedence (highest to lowest):
//  1. Environment variables (STORYLOOM_ARCHIVIST_MAX_RESULTS, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// An empty configPath skips the file entirely. Files must be at most 1MB and,
// outside Windows, readable only by their owner (0600 or 0400).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			// Open once and validate through the descriptor to avoid a
			// TOCTOU race between stat and read.
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if err := validateConfigFileProperties(info); err != nil {
				return nil, fmt.Errorf("config file validation failed: %w", err)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	// Environment variables map section-first:
	// STORYLOOM_ARCHIVIST_MAX_RESULTS -> archivist.max_results
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps STORYLOOM_SECTION_FIELD_NAME to section.field_name.
// Split on the first underscore after the prefix; field names keep theirs.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
