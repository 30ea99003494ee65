package gemini

import (
	"context"
	"fmt"
	"strings"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gemini-3-flash-preview"

// Model binds a client to one model name.
// It implements ranking.Oracle and summary.Generator.
type Model struct {
	client GeminiClient
	model  string
}

// NewModel creates a model adapter. An empty model means DefaultModel.
func NewModel(client GeminiClient, model string) *Model {
	if model == "" {
		model = DefaultModel
	}
	return &Model{client: client, model: model}
}

// Name implements ranking.Oracle.
func (m *Model) Name() string {
	return "gemini"
}

// Rank implements ranking.Oracle.
func (m *Model) Rank(ctx context.Context, prompt string) (string, error) {
	return m.Generate(ctx, prompt)
}

// Generate implements summary.Generator.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := m.client.GenerateText(ctx, m.model, prompt)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", m.model, err)
	}
	return strings.TrimSpace(text), nil
}
