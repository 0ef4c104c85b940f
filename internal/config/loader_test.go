package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.3, cfg.Archivist.RelevanceThreshold)
	assert.Equal(t, 100, cfg.Archivist.MaxResults)
	assert.Equal(t, "moderate", cfg.Director.Pacing)
	assert.Equal(t, "balanced", cfg.Director.MediaStrategy)
	assert.Equal(t, 0.7, cfg.Critic.MinQuality)
	assert.False(t, cfg.Critic.RequireApproval)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Archivist, cfg.Archivist)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Editor, cfg.Editor)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
archivist:
  max_results: 7
  relevance_threshold: 0.5
director:
  pacing: fast
critic:
  require_approval: true
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Archivist.MaxResults)
	assert.Equal(t, 0.5, cfg.Archivist.RelevanceThreshold)
	assert.Equal(t, "fast", cfg.Director.Pacing)
	assert.True(t, cfg.Critic.RequireApproval)
	// Unset sections keep their defaults.
	assert.Equal(t, Default().Editor, cfg.Editor)
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archivist:\n  max_results: 7\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archivist:\n  max_results: 7\n"), 0600))
	t.Setenv("STORYLOOM_ARCHIVIST_MAX_RESULTS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Archivist.MaxResults)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("director:\n  pacing: frantic\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pacing profile")
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "archivist.max_results", envTransform("STORYLOOM_ARCHIVIST_MAX_RESULTS"))
	assert.Equal(t, "critic.min_quality", envTransform("STORYLOOM_CRITIC_MIN_QUALITY"))
	assert.Equal(t, "verbose", envTransform("STORYLOOM_VERBOSE"))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold out of range", func(c *Config) { c.Archivist.RelevanceThreshold = 1.5 }, "relevance threshold"},
		{"max results", func(c *Config) { c.Archivist.MaxResults = 0 }, "max_results must be positive"},
		{"content bounds", func(c *Config) { c.Editor.MaxContentLength = 5 }, "content length bounds inverted"},
		{"group size", func(c *Config) { c.Editor.MaxGroupSize = 0 }, "max_group_size must be positive"},
		{"pacing", func(c *Config) { c.Director.Pacing = "frantic" }, "unknown pacing profile"},
		{"media strategy", func(c *Config) { c.Director.MediaStrategy = "random" }, "unknown media strategy"},
		{"duration bounds", func(c *Config) { c.Director.MaxChapterDuration = 1 }, "chapter duration bounds inverted"},
		{"min quality", func(c *Config) { c.Critic.MinQuality = 2 }, "min_quality"},
		{"chapter bounds", func(c *Config) { c.Critic.MinChapters = 0 }, "chapter count bounds inverted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
