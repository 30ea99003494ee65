package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

// FallbackSource is the Outcome.Source value when no oracle produced a ranking.
const FallbackSource = "fallback"

const (
	defaultTimeout     = 60 * time.Second
	descriptionSnippet = 300
)

// ErrNoPicks is reported when an oracle answered but no line could be used.
var ErrNoPicks = errors.New("oracle response has no usable picks")

// Oracle is a text model that answers a ranking prompt.
type Oracle interface {
	Name() string
	Rank(ctx context.Context, prompt string) (string, error)
}

// Attempt records one oracle call.
type Attempt struct {
	Oracle string
	Err    error
}

// Outcome is the ranking result and where it came from.
type Outcome struct {
	Picks    []video.RankPick
	Source   string
	Attempts []Attempt
}

// Ranker picks the top-N candidates using the oracles in order and falls back
// to a popularity sort when every oracle fails.
type Ranker struct {
	oracles []Oracle
	timeout time.Duration
	logger  *slog.Logger
}

// NewRanker creates a ranker. Nil oracles are skipped; timeout <= 0 means 60s.
func NewRanker(oracles []Oracle, timeout time.Duration, logger *slog.Logger) *Ranker {
	active := make([]Oracle, 0, len(oracles))
	for _, o := range oracles {
		if o != nil {
			active = append(active, o)
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Ranker{
		oracles: active,
		timeout: timeout,
		logger:  logging.OrDefault(logger),
	}
}

// Rank returns at most n picks over items. Indices refer to items.
func (r *Ranker) Rank(ctx context.Context, items []video.EnrichedItem, profile video.Profile, n int) Outcome {
	if len(items) == 0 || n <= 0 {
		return Outcome{Source: FallbackSource}
	}

	prompt := BuildPrompt(items, profile, n)

	var attempts []Attempt
	for _, oracle := range r.oracles {
		picks, err := r.ask(ctx, oracle, prompt, len(items), n)
		attempts = append(attempts, Attempt{Oracle: oracle.Name(), Err: err})
		if err != nil {
			r.logger.Warn("ranking oracle failed", "oracle", oracle.Name(), "error", err)
			continue
		}
		r.logger.Info("ranking done", "oracle", oracle.Name(), "picks", len(picks))
		return Outcome{Picks: picks, Source: oracle.Name(), Attempts: attempts}
	}

	r.logger.Warn("all ranking oracles failed, falling back to view count", "oracles", len(r.oracles))
	return Outcome{Picks: Fallback(items, n), Source: FallbackSource, Attempts: attempts}
}

func (r *Ranker) ask(ctx context.Context, oracle Oracle, prompt string, count, n int) ([]video.RankPick, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := oracle.Rank(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", oracle.Name(), err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%s: empty response", oracle.Name())
	}

	picks := Parse(raw, count, n)
	if len(picks) == 0 {
		return nil, fmt.Errorf("%s: %w", oracle.Name(), ErrNoPicks)
	}
	return picks, nil
}

// Parse reads "index|reason" or "index reason" lines. Indices in the text are
// 1-based. Lines without a leading number, out of range or repeated are
// skipped. At most n picks are returned.
func Parse(raw string, count, n int) []video.RankPick {
	var picks []video.RankPick
	used := make(map[int]struct{})

	for _, line := range strings.Split(raw, "\n") {
		if len(picks) >= n {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		head, reason := splitLine(line)
		num, ok := firstNumber(head)
		if !ok {
			continue
		}

		idx := num - 1
		if idx < 0 || idx >= count {
			continue
		}
		if _, dup := used[idx]; dup {
			continue
		}
		used[idx] = struct{}{}
		picks = append(picks, video.RankPick{Index: idx, Reason: reason})
	}

	return picks
}

func splitLine(line string) (head, reason string) {
	if before, after, found := strings.Cut(line, "|"); found {
		return before, strings.TrimSpace(after)
	}
	cut := strings.IndexFunc(line, unicode.IsSpace)
	if cut < 0 {
		return line, ""
	}
	reason = strings.TrimLeftFunc(line[cut:], func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("-:.)", r)
	})
	return line[:cut], strings.TrimSpace(reason)
}

// firstNumber returns the first run of ASCII digits in s.
func firstNumber(s string) (int, bool) {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Fallback ranks by view count descending; ties keep candidate order.
func Fallback(items []video.EnrichedItem, n int) []video.RankPick {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Views > items[order[b]].Views
	})

	if n > len(order) {
		n = len(order)
	}
	if n < 0 {
		n = 0
	}

	picks := make([]video.RankPick, 0, n)
	for _, idx := range order[:n] {
		picks = append(picks, video.RankPick{Index: idx})
	}
	return picks
}

// BuildPrompt renders the ranking request for the oracles.
func BuildPrompt(items []video.EnrichedItem, profile video.Profile, n int) string {
	var list strings.Builder
	for i, it := range items {
		fmt.Fprintf(&list, "%d. [%s] %s (%s, %s views)",
			i+1, it.Source, it.Title, video.FormatDuration(it.DurationSeconds), video.FormatViews(it.Views))
		if snippet := snippet(it.Description, descriptionSnippet); snippet != "" {
			fmt.Fprintf(&list, "\n   Description: %s", snippet)
		}
		list.WriteString("\n")
	}

	description := profile.Description
	if description == "" {
		description = video.DefaultProfile().Description
	}
	favorite := profile.FavoriteContent
	if favorite == "" {
		favorite = video.DefaultProfile().FavoriteContent
	}

	return fmt.Sprintf(`You are a video curation assistant. Follow the criteria below strictly.

Reader profile:
- %s
- Channels the reader follows: %s
- Favorite kind of content: %s

Here are today's %d candidate videos:

%s
Pick the %d videos most worth watching in full.

Prefer:
1. In-depth one-on-one interviews or panel discussions (first-hand views of founders, researchers, investors)
2. Keynotes and technical talks from industry conferences
3. Substantive analysis of AI technology, product strategy or business models
4. High quality content from the channels the reader follows

Exclude, even with high view counts:
- News round-ups and clickbait ("AI News", "X is HERE", "X is INSANE")
- Beginner tutorials and full courses ("Full Course", "Tutorial For Beginners")
- Content unrelated to AI or the technology industry
- Videos with very few views (<200) from channels the reader does not follow

Among comparable in-depth videos prefer the one with clearly more views, but never pick news round-ups because of views.

Answer from most to least recommended, one per line, in the form:
number|one-sentence reason

For example:
3|First-hand view from a lab's research lead on memory and planning in AI
7|Deep interview on how the company grew from zero to a billion in revenue

Output exactly %d lines and nothing else.`,
		description,
		strings.Join(profile.PreferredChannels, ", "),
		favorite,
		len(items),
		list.String(),
		n,
		n,
	)
}

func snippet(s string, limit int) string {
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return strings.TrimSpace(string(runes))
}
