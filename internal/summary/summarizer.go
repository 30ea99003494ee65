package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

const (
	// GenerationFailed is used when the generator returned an error or nothing.
	GenerationFailed = "Summary generation failed."
	// Skipped is used when no generator is configured.
	Skipped = "Summary skipped: no text model configured."

	minDescriptionRunes = 50
	maxContentRunes     = 80000
	defaultPause        = time.Second
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TranscriptSource returns the spoken text of a video.
type TranscriptSource interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// Summarizer writes a short plain-text summary for each digest item, from its
// transcript when one is available and from its description otherwise. Items
// are handled one by one with a pause between calls.
type Summarizer struct {
	gen         Generator
	transcripts TranscriptSource
	pause       time.Duration
	logger      *slog.Logger
}

// NewSummarizer creates a summarizer. gen may be nil. pause < 0 means no pause,
// 0 means one second.
func NewSummarizer(gen Generator, pause time.Duration, logger *slog.Logger) *Summarizer {
	if pause == 0 {
		pause = defaultPause
	}
	if pause < 0 {
		pause = 0
	}
	return &Summarizer{
		gen:    gen,
		pause:  pause,
		logger: logging.OrDefault(logger),
	}
}

// WithTranscripts makes the summarizer prefer transcripts from src.
func (s *Summarizer) WithTranscripts(src TranscriptSource) *Summarizer {
	s.transcripts = src
	return s
}

// Summarize returns a summary for one item. It never fails: problems turn
// into a placeholder text.
func (s *Summarizer) Summarize(ctx context.Context, item video.RankedItem) string {
	hasDescription := utf8.RuneCountInString(item.Description) > minDescriptionRunes
	if s.gen == nil {
		if !hasDescription {
			return video.InsufficientContent
		}
		return Skipped
	}

	kind, content := "transcript", s.transcript(ctx, item.ID)
	if content == "" {
		if !hasDescription {
			return video.InsufficientContent
		}
		kind, content = "description", item.Description
	}

	text, err := s.gen.Generate(ctx, buildPrompt(item, kind, content))
	if err != nil {
		s.logger.Warn("summary generation failed", "video_id", item.ID, "error", err)
		return GenerationFailed
	}
	if text == "" {
		s.logger.Warn("summary generation returned nothing", "video_id", item.ID)
		return GenerationFailed
	}
	return text
}

func (s *Summarizer) transcript(ctx context.Context, id string) string {
	if s.transcripts == nil {
		return ""
	}
	text, err := s.transcripts.FetchTranscript(ctx, id)
	if err != nil {
		s.logger.Info("no transcript, summarizing description", "video_id", id, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// SummarizeAll returns one summary per item, in item order.
func (s *Summarizer) SummarizeAll(ctx context.Context, items []video.RankedItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.pause):
			}
		}
		out[i] = s.Summarize(ctx, item)
		s.logger.Debug("item summarized", "position", i+1, "video_id", item.ID)
	}
	return out
}

func buildPrompt(item video.RankedItem, kind, content string) string {
	if utf8.RuneCountInString(content) > maxContentRunes {
		content = string([]rune(content)[:maxContentRunes]) + "\n...[truncated]"
	}

	return fmt.Sprintf(`Write a concise summary of the video below based on its %[1]s.

Title: %[2]s
Channel: %[3]s

%[4]s:
%[5]s

Format (plain text, no markdown):
- Open with one paragraph on the core content, naming the guests and the topic
- Then list 3 to 6 numbered points as (1) (2) (3); before the colon put the concrete keyword or concept, after it one sentence with the key insight
- Points must be substantive views and concrete insights, not vague descriptions
- Close with one sentence on who should watch it and what they will get from it
- Do not use labels such as "Summary" or "Key points"`,
		kind, item.Title, item.Source, strings.ToUpper(kind[:1])+kind[1:], content)
}
