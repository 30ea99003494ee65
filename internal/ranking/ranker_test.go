package ranking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/youtube_digest/internal/video"
)

type mockOracle struct {
	name    string
	calls   int
	prompts []string
	rankFn  func(ctx context.Context, prompt string) (string, error)
}

func (m *mockOracle) Name() string { return m.name }

func (m *mockOracle) Rank(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	return m.rankFn(ctx, prompt)
}

func answer(s string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return s, nil }
}

func failWith(err error) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return "", err }
}

func candidates(views ...int64) []video.EnrichedItem {
	items := make([]video.EnrichedItem, len(views))
	for i, v := range views {
		items[i] = video.EnrichedItem{
			CandidateItem: video.CandidateItem{
				ID:     string(rune('a' + i)),
				Title:  "Video " + string(rune('A'+i)),
				Source: "Channel",
			},
			DurationSeconds: 600,
			Views:           v,
		}
	}
	return items
}

func TestRanker_PrimaryOracle(t *testing.T) {
	primary := &mockOracle{name: "gemini", rankFn: answer("2|great interview\n5|strong analysis")}
	secondary := &mockOracle{name: "minimax", rankFn: answer("1|unused")}

	r := NewRanker([]Oracle{primary, secondary}, time.Second, nil)
	out := r.Rank(context.Background(), candidates(10, 20, 30, 40, 50), video.DefaultProfile(), 2)

	assert.Equal(t, "gemini", out.Source)
	assert.Equal(t, []video.RankPick{
		{Index: 1, Reason: "great interview"},
		{Index: 4, Reason: "strong analysis"},
	}, out.Picks)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestRanker_SecondaryOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		primary func(context.Context, string) (string, error)
	}{
		{name: "error", primary: failWith(errors.New("boom"))},
		{name: "empty response", primary: answer("   \n")},
		{name: "nothing parseable", primary: answer("I cannot help with that.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &mockOracle{name: "gemini", rankFn: tt.primary}
			secondary := &mockOracle{name: "minimax", rankFn: answer("3|solid talk")}

			out := NewRanker([]Oracle{primary, secondary}, time.Second, nil).
				Rank(context.Background(), candidates(1, 2, 3), video.Profile{}, 1)

			assert.Equal(t, "minimax", out.Source)
			assert.Equal(t, []video.RankPick{{Index: 2, Reason: "solid talk"}}, out.Picks)
			require.Len(t, out.Attempts, 2)
			assert.Error(t, out.Attempts[0].Err)
			assert.NoError(t, out.Attempts[1].Err)
			assert.Equal(t, primary.prompts, secondary.prompts)
		})
	}
}

func TestRanker_FallbackWhenAllFail(t *testing.T) {
	primary := &mockOracle{name: "gemini", rankFn: failWith(errors.New("unavailable"))}
	secondary := &mockOracle{name: "minimax", rankFn: answer("")}

	out := NewRanker([]Oracle{primary, secondary}, time.Second, nil).
		Rank(context.Background(), candidates(100, 900, 500, 900), video.Profile{}, 2)

	assert.Equal(t, FallbackSource, out.Source)
	assert.Equal(t, []video.RankPick{{Index: 1}, {Index: 3}}, out.Picks)
	assert.Len(t, out.Attempts, 2)
}

func TestRanker_NoOracles(t *testing.T) {
	out := NewRanker([]Oracle{nil}, 0, nil).Rank(context.Background(), candidates(5, 50), video.Profile{}, 5)

	assert.Equal(t, FallbackSource, out.Source)
	assert.Equal(t, []video.RankPick{{Index: 1}, {Index: 0}}, out.Picks)
	assert.Empty(t, out.Attempts)
}

func TestRanker_EmptyInput(t *testing.T) {
	oracle := &mockOracle{name: "gemini", rankFn: answer("1|x")}
	out := NewRanker([]Oracle{oracle}, time.Second, nil).Rank(context.Background(), nil, video.Profile{}, 3)

	assert.Empty(t, out.Picks)
	assert.Equal(t, 0, oracle.calls)
}

func TestRanker_PerCallTimeout(t *testing.T) {
	slow := &mockOracle{name: "gemini", rankFn: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	out := NewRanker([]Oracle{slow}, 20*time.Millisecond, nil).
		Rank(context.Background(), candidates(1, 2), video.Profile{}, 1)

	assert.Equal(t, FallbackSource, out.Source)
	require.Len(t, out.Attempts, 1)
	assert.ErrorIs(t, out.Attempts[0].Err, context.DeadlineExceeded)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
		n     int
		want  []video.RankPick
	}{
		{
			name:  "pipe format",
			raw:   "2|great interview\n5|strong analysis",
			count: 5, n: 2,
			want: []video.RankPick{{Index: 1, Reason: "great interview"}, {Index: 4, Reason: "strong analysis"}},
		},
		{
			name:  "whitespace format",
			raw:   "3 keynote worth watching\n1. deep dive",
			count: 3, n: 2,
			want: []video.RankPick{{Index: 2, Reason: "keynote worth watching"}, {Index: 0, Reason: "deep dive"}},
		},
		{
			name:  "tab and repeated spaces",
			raw:   "2\tgreat interview\n5  strong analysis\n3 \t- solid panel",
			count: 5, n: 3,
			want: []video.RankPick{
				{Index: 1, Reason: "great interview"},
				{Index: 4, Reason: "strong analysis"},
				{Index: 2, Reason: "solid panel"},
			},
		},
		{
			name:  "decorated index",
			raw:   "  #4 | long form talk  ",
			count: 4, n: 1,
			want: []video.RankPick{{Index: 3, Reason: "long form talk"}},
		},
		{
			name:  "out of range and duplicates skipped",
			raw:   "0|zero\n9|too big\n2|first\n2|again\n1|second",
			count: 3, n: 5,
			want: []video.RankPick{{Index: 1, Reason: "first"}, {Index: 0, Reason: "second"}},
		},
		{
			name:  "prose lines skipped",
			raw:   "Here are my picks:\n\n1|only one\nThanks!",
			count: 2, n: 2,
			want: []video.RankPick{{Index: 0, Reason: "only one"}},
		},
		{
			name:  "stops at n",
			raw:   "1|a\n2|b\n3|c",
			count: 3, n: 2,
			want: []video.RankPick{{Index: 0, Reason: "a"}, {Index: 1, Reason: "b"}},
		},
		{
			name:  "reason may contain pipes",
			raw:   "1|a | b",
			count: 1, n: 1,
			want: []video.RankPick{{Index: 0, Reason: "a | b"}},
		},
		{
			name:  "garbage",
			raw:   "no numbers here\n|still nothing",
			count: 3, n: 3,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw, tt.count, tt.n))
		})
	}
}

func TestFallback(t *testing.T) {
	items := candidates(10, 30, 20, 30)

	assert.Equal(t, []video.RankPick{{Index: 1}, {Index: 3}, {Index: 2}}, Fallback(items, 3))
	assert.Len(t, Fallback(items, 10), 4)
	assert.Empty(t, Fallback(items, 0))
	assert.Empty(t, Fallback(nil, 3))
}

func TestBuildPrompt(t *testing.T) {
	items := candidates(1500, 42)
	items[0].Description = strings.Repeat("x", 400)
	items[1].DurationSeconds = video.UnknownDuration

	profile := video.Profile{
		Description:       "Engineer following AI research",
		PreferredChannels: []string{"Lex Fridman", "Dwarkesh Patel"},
	}
	prompt := BuildPrompt(items, profile, 1)

	assert.Contains(t, prompt, "1. [Channel] Video A (10m00s, 1.5K views)")
	assert.Contains(t, prompt, "2. [Channel] Video B (?, 42 views)")
	assert.Contains(t, prompt, "Description: "+strings.Repeat("x", 300)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 301))
	assert.Contains(t, prompt, "Engineer following AI research")
	assert.Contains(t, prompt, "Lex Fridman, Dwarkesh Patel")
	assert.Contains(t, prompt, video.DefaultProfile().FavoriteContent)
	assert.Contains(t, prompt, "Output exactly 1 lines")
}
