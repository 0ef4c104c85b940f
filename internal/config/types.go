// Package config provides configuration loading for storyloom.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables, with hardcoded defaults for everything unset.
package config

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/storyloom/internal/logging"
	"github.com/fyrsmithlabs/storyloom/internal/telemetry"
)

// Config holds the complete storyloom configuration.
type Config struct {
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
	Archivist ArchivistConfig  `koanf:"archivist"`
	Editor    EditorConfig     `koanf:"editor"`
	Director  DirectorConfig   `koanf:"director"`
	Critic    CriticConfig     `koanf:"critic"`
}

// ArchivistConfig tunes memory selection scoring.
type ArchivistConfig struct {
	// NarrativeWeight scales the narrative score component.
	NarrativeWeight float64 `koanf:"narrative_weight"`

	// TemporalWeight scales the recency tier component.
	TemporalWeight float64 `koanf:"temporal_weight"`

	// DiversityWeight scales the diversity bonus component.
	DiversityWeight float64 `koanf:"diversity_weight"`

	// RelevanceThreshold is the minimum total score a memory must reach.
	RelevanceThreshold float64 `koanf:"relevance_threshold"`

	// MaxResults caps the selection when the request does not.
	MaxResults int `koanf:"max_results"`

	// MinTextLength rejects records with shorter free text.
	MinTextLength int `koanf:"min_text_length"`
}

// EditorConfig tunes content filtering and reordering.
type EditorConfig struct {
	MinContentLength int  `koanf:"min_content_length"`
	MaxContentLength int  `koanf:"max_content_length"`
	MaxGroupSize     int  `koanf:"max_group_size"`
	PreferMedia      bool `koanf:"prefer_media"`
}

// DirectorConfig tunes sequencing and pacing.
type DirectorConfig struct {
	// Pacing selects the profile multiplier: slow, moderate, or fast.
	Pacing string `koanf:"pacing"`

	// MediaStrategy selects how media is distributed across chapters:
	// balanced, front_loaded, climactic, or scattered.
	MediaStrategy string `koanf:"media_strategy"`

	// MinChapterDuration and MaxChapterDuration clamp chapter durations
	// in seconds after pacing adjustment.
	MinChapterDuration float64 `koanf:"min_chapter_duration"`
	MaxChapterDuration float64 `koanf:"max_chapter_duration"`
}

// CriticConfig tunes the review gate.
type CriticConfig struct {
	// MinQuality is the approval threshold for the overall quality score.
	MinQuality float64 `koanf:"min_quality"`

	// RequireApproval makes a persistently disapproved story fail the
	// workflow instead of being delivered best-effort.
	RequireApproval bool `koanf:"require_approval"`

	// MinChapters and MaxChapters bound story structure.
	MinChapters int `koanf:"min_chapters"`
	MaxChapters int `koanf:"max_chapters"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if c.Archivist.RelevanceThreshold < 0 || c.Archivist.RelevanceThreshold > 1 {
		return fmt.Errorf("archivist: relevance threshold %v out of [0,1]", c.Archivist.RelevanceThreshold)
	}
	if c.Archivist.MaxResults < 1 {
		return errors.New("archivist: max_results must be positive")
	}
	if c.Editor.MinContentLength < 0 || c.Editor.MaxContentLength < c.Editor.MinContentLength {
		return errors.New("editor: content length bounds inverted")
	}
	if c.Editor.MaxGroupSize < 1 {
		return errors.New("editor: max_group_size must be positive")
	}
	switch c.Director.Pacing {
	case "slow", "moderate", "fast":
	default:
		return fmt.Errorf("director: unknown pacing profile %q", c.Director.Pacing)
	}
	switch c.Director.MediaStrategy {
	case "balanced", "front_loaded", "climactic", "scattered":
	default:
		return fmt.Errorf("director: unknown media strategy %q", c.Director.MediaStrategy)
	}
	if c.Director.MinChapterDuration <= 0 || c.Director.MaxChapterDuration < c.Director.MinChapterDuration {
		return errors.New("director: chapter duration bounds inverted")
	}
	if c.Critic.MinQuality < 0 || c.Critic.MinQuality > 1 {
		return fmt.Errorf("critic: min_quality %v out of [0,1]", c.Critic.MinQuality)
	}
	if c.Critic.MinChapters < 1 || c.Critic.MaxChapters < c.Critic.MinChapters {
		return errors.New("critic: chapter count bounds inverted")
	}
	return nil
}
