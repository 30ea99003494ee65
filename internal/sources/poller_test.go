package sources

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/youtube_digest/internal/video"
)

// mockFeedSource is a FeedSource driven by a function.
type mockFeedSource struct {
	fetchFunc func(ctx context.Context, channel video.Channel) ([]video.CandidateItem, error)
}

func (m *mockFeedSource) FetchEntries(ctx context.Context, channel video.Channel) ([]video.CandidateItem, error) {
	return m.fetchFunc(ctx, channel)
}

func TestPoller_Poll(t *testing.T) {
	now := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	source := &mockFeedSource{
		fetchFunc: func(ctx context.Context, ch video.Channel) ([]video.CandidateItem, error) {
			switch ch.ID {
			case "broken":
				return nil, errors.New("connection reset")
			case "mixed":
				return []video.CandidateItem{
					{ID: "new-1", PublishedAt: now.Add(-time.Hour)},
					{ID: "old", PublishedAt: now.Add(-48 * time.Hour)},
					{ID: "new-2", PublishedAt: now.Add(-2 * time.Hour)},
				}, nil
			default:
				return []video.CandidateItem{{ID: ch.ID + "-only", PublishedAt: now}}, nil
			}
		},
	}

	poller := NewPoller(source, 2, 24*time.Hour, clock, nil)
	channels := []video.Channel{{ID: "mixed"}, {ID: "broken"}, {ID: "other"}}
	batches := poller.Poll(context.Background(), channels)

	require.Len(t, batches, 3)
	assert.Equal(t, "mixed", batches[0].Channel.ID)
	require.Len(t, batches[0].Items, 2)
	assert.Equal(t, "new-1", batches[0].Items[0].ID)
	assert.Equal(t, "new-2", batches[0].Items[1].ID)

	assert.Error(t, batches[1].Err)
	assert.Empty(t, batches[1].Items)

	require.Len(t, batches[2].Items, 1)
	assert.Equal(t, "other-only", batches[2].Items[0].ID)

	assert.Equal(t, 1, Failures(batches))
	assert.Equal(t, 3, Total(batches))
}

func TestPoller_Poll_BoundedWorkers(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		mu       sync.Mutex
		seen     []string
	)

	source := &mockFeedSource{
		fetchFunc: func(ctx context.Context, ch video.Channel) ([]video.CandidateItem, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			seen = append(seen, ch.ID)
			mu.Unlock()
			return nil, nil
		},
	}

	channels := make([]video.Channel, 12)
	for i := range channels {
		channels[i] = video.Channel{ID: string(rune('a' + i))}
	}

	NewPoller(source, 3, time.Hour, nil, nil).Poll(context.Background(), channels)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Len(t, seen, 12)
}
