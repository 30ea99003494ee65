package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/youtube_digest/internal/video"
)

// mockMetadataSource records every call and answers from a map.
type mockMetadataSource struct {
	mu      sync.Mutex
	calls   []string
	details map[string]video.Details
	errs    map[string]error
}

func (m *mockMetadataSource) FetchDetails(ctx context.Context, id string) (video.Details, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	m.mu.Unlock()
	if err := m.errs[id]; err != nil {
		return video.Details{}, err
	}
	return m.details[id], nil
}

// recordingSeen collects proposals.
type recordingSeen struct {
	ids []string
	ts  []time.Time
}

func (r *recordingSeen) Propose(id string, ts time.Time) {
	r.ids = append(r.ids, id)
	r.ts = append(r.ts, ts)
}

func candidates(ids ...string) []video.CandidateItem {
	out := make([]video.CandidateItem, len(ids))
	for i, id := range ids {
		out[i] = video.CandidateItem{ID: id, Title: "title " + id}
	}
	return out
}

func TestGate_Enrich(t *testing.T) {
	now := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	source := &mockMetadataSource{
		details: map[string]video.Details{
			"long":   {DurationSeconds: 1800, Description: "deep dive", Views: 5000},
			"short":  {DurationSeconds: 45, Views: 90000},
			"long-2": {DurationSeconds: 600, Views: 10},
		},
		errs: map[string]error{"broken": errors.New("timeout")},
	}
	seen := &recordingSeen{}

	gate := NewGate(source, 180, 3, func() time.Time { return now }, nil)
	res := gate.Enrich(context.Background(), candidates("long", "short", "broken", "long-2"), NewQuotaBudget(10), seen)

	require.Len(t, res.Qualified, 2)
	assert.Equal(t, "long", res.Qualified[0].ID)
	assert.Equal(t, 1800, res.Qualified[0].DurationSeconds)
	assert.Equal(t, "deep dive", res.Qualified[0].Description)
	assert.Equal(t, int64(5000), res.Qualified[0].Views)
	assert.Equal(t, "long-2", res.Qualified[1].ID)

	assert.Equal(t, []string{"short", "broken"}, res.Short)
	assert.Equal(t, []string{"short", "broken"}, seen.ids)
	assert.True(t, seen.ts[0].Equal(now))
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Calls)
	assert.Equal(t, 0, res.Dropped)
	assert.False(t, res.QuotaExhausted)
}

func TestGate_Enrich_QuotaExhausted(t *testing.T) {
	source := &mockMetadataSource{details: map[string]video.Details{
		"a": {DurationSeconds: 600},
		"b": {DurationSeconds: 600},
		"c": {DurationSeconds: 600},
		"d": {DurationSeconds: 600},
	}}
	seen := &recordingSeen{}
	budget := NewQuotaBudget(2)

	res := NewGate(source, 180, 4, nil, nil).Enrich(context.Background(), candidates("a", "b", "c", "d"), budget, seen)

	assert.True(t, res.QuotaExhausted)
	assert.Equal(t, 2, res.Calls)
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Qualified, 2)
	assert.Equal(t, "a", res.Qualified[0].ID)
	assert.Equal(t, "b", res.Qualified[1].ID)
	assert.ElementsMatch(t, []string{"a", "b"}, source.calls)
	assert.Empty(t, seen.ids, "dropped items must not be recorded as seen")
	assert.Equal(t, 0, budget.Remaining())

	// A spent budget prevents any further call in the same run.
	res = NewGate(source, 180, 4, nil, nil).Enrich(context.Background(), candidates("e"), budget, seen)
	assert.Equal(t, 0, res.Calls)
	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, source.calls, 2)
}

func TestGate_Enrich_UnqualifiedSentinel(t *testing.T) {
	source := &mockMetadataSource{details: map[string]video.Details{"x": video.UnqualifiedDetails}}
	seen := &recordingSeen{}

	res := NewGate(source, 180, 1, nil, nil).Enrich(context.Background(), candidates("x"), NewQuotaBudget(1), seen)

	require.Len(t, res.Qualified, 1)
	assert.Equal(t, video.UnknownDuration, res.Qualified[0].DurationSeconds)
	assert.Equal(t, int64(0), res.Qualified[0].Views)
}

// cancellingSource cancels the run on its first call and then fails like an
// interrupted request.
type cancellingSource struct {
	cancel context.CancelFunc
}

func (c *cancellingSource) FetchDetails(ctx context.Context, id string) (video.Details, error) {
	c.cancel()
	return video.Details{}, ctx.Err()
}

func TestGate_Enrich_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seen := &recordingSeen{}

	res := NewGate(&cancellingSource{cancel: cancel}, 180, 1, nil, nil).
		Enrich(ctx, candidates("a", "b", "c"), NewQuotaBudget(10), seen)

	assert.Empty(t, res.Qualified)
	assert.Empty(t, res.Short)
	assert.Empty(t, seen.ids, "interrupted items must not be recorded as seen")
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 3, res.Dropped)
}
