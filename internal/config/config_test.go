package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/youtube_digest/internal/video"
)

func TestLoadRoot(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadRoot(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial file keeps defaults for empty fields", func(t *testing.T) {
		path := filepath.Join(dir, "pipeline.yaml")
		data := []byte("pipeline:\n  top_n: 3\n  quota_limit: 10\noracles:\n  order: [minimax]\n")
		require.NoError(t, os.WriteFile(path, data, 0644))

		cfg, err := LoadRoot(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Pipeline.TopN)
		assert.Equal(t, 10, cfg.Pipeline.QuotaLimit)
		assert.Equal(t, 24, cfg.Pipeline.LookbackHours)
		assert.Equal(t, 180, cfg.Pipeline.MinDuration())
		assert.Equal(t, []string{"en"}, cfg.Pipeline.TranscriptLanguages)
		assert.Equal(t, []string{"minimax"}, cfg.Oracles.Order)
		assert.Equal(t, "gemini-3-flash-preview", cfg.Oracles.GeminiModel)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline: [unclosed"), 0644))

		_, err := LoadRoot(path)
		assert.Error(t, err)
	})
}

func TestChannelsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	channels := []video.Channel{
		{ID: "UC1", Name: "Lex Fridman"},
		{ID: "UC2", Name: "Dwarkesh Patel"},
	}

	require.NoError(t, SaveChannels(path, channels))
	loaded, err := LoadChannels(path)
	require.NoError(t, err)
	assert.Equal(t, channels, loaded)
}

func TestLoadChannels_SkipsEmptyIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	data := []byte("channels:\n  - channel_id: UC1\n    name: one\n  - name: no id\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	loaded, err := LoadChannels(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, "UC1", loaded[0].ID)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()

	profile, found, err := LoadProfile(filepath.Join(dir, "profile.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, video.DefaultProfile(), profile)

	path := filepath.Join(dir, "custom.yaml")
	data := []byte("description: ML researcher\npreferred_channels: [Lex Fridman]\nexclude_title_patterns: [shorts]\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	profile, found, err = LoadProfile(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ML researcher", profile.Description)
	assert.Equal(t, []string{"Lex Fridman"}, profile.PreferredChannels)
	assert.Equal(t, []string{"shorts"}, profile.ExcludeTitlePatterns)
}

func TestLoadEnvConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MINIMAX_API_BASE=https://example.test/anthropic\nYOUTUBE_API_KEY=from-file\n"), 0644))

	t.Setenv("YOUTUBE_API_KEY", " yt-key ")
	// registered for cleanup, then removed so the .env value can apply
	t.Setenv("MINIMAX_API_BASE", "")
	require.NoError(t, os.Unsetenv("MINIMAX_API_BASE"))

	cfg, err := LoadEnvConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "yt-key", cfg.YouTubeAPIKey)
	assert.Equal(t, "https://example.test/anthropic", cfg.MinimaxAPIBase)

	cfg, err = LoadEnvConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "yt-key", cfg.YouTubeAPIKey)
}
