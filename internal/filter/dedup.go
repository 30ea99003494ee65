package filter

import (
	"github.com/maine/youtube_digest/internal/sources"
	"github.com/maine/youtube_digest/internal/video"
)

// SeenChecker answers whether a video was already handled.
type SeenChecker interface {
	Contains(id string) bool
}

// Fresh flattens poll batches into the candidates not present in history.
// A video listed by several channels is kept once, at its first position.
func Fresh(batches []sources.ChannelBatch, seen SeenChecker) []video.CandidateItem {
	picked := make(map[string]struct{})
	var out []video.CandidateItem

	for _, b := range batches {
		for _, item := range b.Items {
			if seen.Contains(item.ID) {
				continue
			}
			if _, dup := picked[item.ID]; dup {
				continue
			}
			picked[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
