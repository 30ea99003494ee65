package filter

import (
	"regexp"
	"strings"

	"github.com/maine/youtube_digest/internal/video"
)

// DefaultPopularityFloor is the view count below which unfamiliar channels are dropped.
const DefaultPopularityFloor = 200

// Reason names the rule that rejected an item.
type Reason string

const (
	ReasonExcludedTitle Reason = "excluded_title"
	ReasonLowPopularity Reason = "low_popularity"
)

// Rejection records one item removed by the pre-filter.
type Rejection struct {
	Item   video.EnrichedItem
	Reason Reason
}

// Filter applies the hard rules before ranking. It holds no mutable state.
type Filter struct {
	exclude   *regexp.Regexp
	preferred []string
	floor     int64
}

// New builds a filter from the reader profile.
func New(profile video.Profile, popularityFloor int64) *Filter {
	if popularityFloor <= 0 {
		popularityFloor = DefaultPopularityFloor
	}

	var quoted []string
	for _, p := range profile.ExcludeTitlePatterns {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	var exclude *regexp.Regexp
	if len(quoted) > 0 {
		exclude = regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")")
	}

	preferred := make([]string, 0, len(profile.PreferredChannels))
	for _, name := range profile.PreferredChannels {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			preferred = append(preferred, name)
		}
	}

	return &Filter{exclude: exclude, preferred: preferred, floor: popularityFloor}
}

// Apply returns the items passing every rule, in their original order, and
// the rejected ones with the first rule that matched.
func (f *Filter) Apply(items []video.EnrichedItem) ([]video.EnrichedItem, []Rejection) {
	kept := make([]video.EnrichedItem, 0, len(items))
	var rejected []Rejection

	for _, item := range items {
		if f.exclude != nil && f.exclude.MatchString(item.Title) {
			rejected = append(rejected, Rejection{Item: item, Reason: ReasonExcludedTitle})
			continue
		}
		if item.Views < f.floor && !f.isPreferred(item.Source) {
			rejected = append(rejected, Rejection{Item: item, Reason: ReasonLowPopularity})
			continue
		}
		kept = append(kept, item)
	}

	return kept, rejected
}

// isPreferred matches when any preferred name is contained in the source name.
func (f *Filter) isPreferred(source string) bool {
	source = strings.ToLower(source)
	for _, name := range f.preferred {
		if strings.Contains(source, name) {
			return true
		}
	}
	return false
}
