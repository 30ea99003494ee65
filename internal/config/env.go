package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvConfig holds credentials and endpoints read from the environment.
// Every value is optional: a missing credential disables its collaborator.
type EnvConfig struct {
	YouTubeAPIKey    string
	GeminiAPIKey     string
	MinimaxAPIKey    string
	MinimaxAPIBase   string
	FeishuAppID      string
	FeishuAppSecret  string
	FeishuUserID     string
	FeishuWebhookURL string
}

// LoadEnvConfig loads an optional .env file and reads the environment.
// Variables already present in the process environment win over .env.
func LoadEnvConfig(dotenvPath string) (*EnvConfig, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	return &EnvConfig{
		YouTubeAPIKey:    env("YOUTUBE_API_KEY"),
		GeminiAPIKey:     env("GEMINI_API_KEY"),
		MinimaxAPIKey:    env("MINIMAX_API_KEY"),
		MinimaxAPIBase:   env("MINIMAX_API_BASE"),
		FeishuAppID:      env("FEISHU_APP_ID"),
		FeishuAppSecret:  env("FEISHU_APP_SECRET"),
		FeishuUserID:     env("FEISHU_USER_ID"),
		FeishuWebhookURL: env("FEISHU_WEBHOOK_URL"),
	}, nil
}

// HasFeishuApp reports whether the direct-message credentials are complete.
func (e *EnvConfig) HasFeishuApp() bool {
	return e.FeishuAppID != "" && e.FeishuAppSecret != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
