package digest

import (
	"errors"
	"fmt"
	"time"

	"github.com/maine/youtube_digest/internal/video"
)

// ErrLengthMismatch is returned when items and summaries differ in length.
var ErrLengthMismatch = errors.New("items and summaries differ in length")

// Assemble merges ranked items with their summaries. Entries keep the ranked
// order and are numbered from 1.
func Assemble(date time.Time, items []video.RankedItem, summaries []string) (video.Digest, error) {
	if len(items) != len(summaries) {
		return video.Digest{}, fmt.Errorf("%w: %d items, %d summaries", ErrLengthMismatch, len(items), len(summaries))
	}

	entries := make([]video.DigestEntry, len(items))
	for i, it := range items {
		entries[i] = video.DigestEntry{
			Position: i + 1,
			Item:     it,
			Summary:  summaries[i],
		}
	}

	return video.Digest{Date: date, Entries: entries}, nil
}

// Rank resolves ranking picks into ranked items. Picks must be valid indices
// into items.
func Rank(items []video.EnrichedItem, picks []video.RankPick) []video.RankedItem {
	out := make([]video.RankedItem, 0, len(picks))
	for _, p := range picks {
		if p.Index < 0 || p.Index >= len(items) {
			continue
		}
		out = append(out, video.RankedItem{EnrichedItem: items[p.Index], Reason: p.Reason})
	}
	return out
}
