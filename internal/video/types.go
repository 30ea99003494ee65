package video

import (
	"math"
	"time"
)

// UnknownDuration marks a candidate whose duration has not been fetched yet.
// It is large enough to pass any minimum-duration rule.
const UnknownDuration = math.MaxInt32

// InsufficientContent is the summary used when a video has neither a
// transcript nor a description worth summarizing.
const InsufficientContent = "No transcript and too little description to summarize, watch the video directly."

// Channel is one subscribed channel from channels.yaml.
type Channel struct {
	ID   string `yaml:"channel_id" json:"channel_id"`
	Name string `yaml:"name" json:"name"`
}

// Label returns a human readable name for logs.
func (c Channel) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// CandidateItem describes a video right after it was read from a channel feed.
type CandidateItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	ChannelID   string    `json:"channel_id"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
}

// Details is the metadata returned by the metadata source for one video.
type Details struct {
	DurationSeconds int    `json:"duration_seconds"`
	Description     string `json:"description"`
	Views           int64  `json:"views"`
}

// UnqualifiedDetails is returned by a metadata source that has no credentials.
// The duration stays unknown so the item is not dropped as short-form.
var UnqualifiedDetails = Details{DurationSeconds: UnknownDuration}

// FailedDetails is used when fetching details failed. A zero duration keeps the
// item out of the digest through the minimum-duration rule.
var FailedDetails = Details{}

// EnrichedItem is a candidate with its metadata filled in.
type EnrichedItem struct {
	CandidateItem
	DurationSeconds int    `json:"duration_seconds"`
	Description     string `json:"description"`
	Views           int64  `json:"views"`
}

// Enrich builds an EnrichedItem from a candidate and its details.
func Enrich(item CandidateItem, d Details) EnrichedItem {
	return EnrichedItem{
		CandidateItem:   item,
		DurationSeconds: d.DurationSeconds,
		Description:     d.Description,
		Views:           d.Views,
	}
}

// RankPick is one entry of a ranking result: an index into the filtered
// candidate list and the oracle's reason (empty for the fallback).
type RankPick struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RankedItem is an enriched item selected by the ranker.
type RankedItem struct {
	EnrichedItem
	Reason string `json:"reason,omitempty"`
}

// DigestEntry is the final representation of a video before delivery.
type DigestEntry struct {
	Position int        `json:"position"`
	Item     RankedItem `json:"item"`
	Summary  string     `json:"summary"`
}

// Digest is the payload handed to delivery transports.
type Digest struct {
	Date    time.Time     `json:"date"`
	Entries []DigestEntry `json:"entries"`
}

// Empty reports whether the digest has nothing to deliver.
func (d Digest) Empty() bool {
	return len(d.Entries) == 0
}

// Profile describes the reader the digest is built for.
type Profile struct {
	Description          string   `yaml:"description" json:"description"`
	FavoriteContent      string   `yaml:"favorite_content" json:"favorite_content"`
	PreferredChannels    []string `yaml:"preferred_channels" json:"preferred_channels"`
	ExcludeTitlePatterns []string `yaml:"exclude_title_patterns" json:"exclude_title_patterns"`
}

// DefaultProfile is used when no profile file is present.
func DefaultProfile() Profile {
	return Profile{
		Description:          "Technology industry practitioner",
		FavoriteContent:      "In-depth interviews, technical talks",
		ExcludeTitlePatterns: []string{"full course", "tutorial for beginners"},
	}
}
