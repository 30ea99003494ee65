package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/youtube_digest/internal/video"
)

func enriched(ids ...string) []video.EnrichedItem {
	out := make([]video.EnrichedItem, len(ids))
	for i, id := range ids {
		out[i] = video.EnrichedItem{CandidateItem: video.CandidateItem{ID: id}}
	}
	return out
}

func TestAssemble(t *testing.T) {
	date := time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC)
	items := Rank(enriched("a", "b", "c"), []video.RankPick{{Index: 2, Reason: "best"}, {Index: 0}})

	d, err := Assemble(date, items, []string{"summary c", "summary a"})
	require.NoError(t, err)

	assert.Equal(t, date, d.Date)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, 1, d.Entries[0].Position)
	assert.Equal(t, "c", d.Entries[0].Item.ID)
	assert.Equal(t, "best", d.Entries[0].Item.Reason)
	assert.Equal(t, "summary c", d.Entries[0].Summary)
	assert.Equal(t, 2, d.Entries[1].Position)
	assert.Equal(t, "a", d.Entries[1].Item.ID)
	assert.Empty(t, d.Entries[1].Item.Reason)
}

func TestAssemble_Empty(t *testing.T) {
	d, err := Assemble(time.Now(), nil, nil)
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestAssemble_LengthMismatch(t *testing.T) {
	_, err := Assemble(time.Now(), Rank(enriched("a"), []video.RankPick{{Index: 0}}), nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestRank_SkipsInvalidIndices(t *testing.T) {
	got := Rank(enriched("a", "b"), []video.RankPick{{Index: 1, Reason: "r"}, {Index: 5}, {Index: -1}})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "r", got[0].Reason)
}
