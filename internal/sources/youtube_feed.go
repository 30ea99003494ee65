package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/maine/youtube_digest/internal/video"
)

const (
	// DefaultFeedBaseURL is the public channel feed endpoint. Feeds never contain Shorts pages.
	DefaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"
	watchURLPrefix     = "https://www.youtube.com/watch?v="
	// maxEntriesPerFeed caps how many entries of one feed are considered.
	maxEntriesPerFeed = 50
)

// YouTubeFeed reads a channel's Atom feed. It implements FeedSource.
type YouTubeFeed struct {
	baseURL string
	client  *http.Client
}

var _ FeedSource = (*YouTubeFeed)(nil)

// NewYouTubeFeed creates a feed reader. Empty baseURL means DefaultFeedBaseURL.
func NewYouTubeFeed(baseURL string, client *http.Client) *YouTubeFeed {
	if baseURL == "" {
		baseURL = DefaultFeedBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &YouTubeFeed{baseURL: baseURL, client: client}
}

// FetchEntries implements FeedSource.
func (f *YouTubeFeed) FetchEntries(ctx context.Context, channel video.Channel) ([]video.CandidateItem, error) {
	u := f.baseURL + "?channel_id=" + url.QueryEscape(channel.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return entriesFromFeed(feed, channel), nil
}

func entriesFromFeed(feed *gofeed.Feed, channel video.Channel) []video.CandidateItem {
	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = channel.Label()
	}

	items := feed.Items
	if len(items) > maxEntriesPerFeed {
		items = items[:maxEntriesPerFeed]
	}

	entries := make([]video.CandidateItem, 0, len(items))
	for _, item := range items {
		id := videoID(item)
		if id == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		// Without a publish time the recency window cannot be applied.
		if published == nil {
			continue
		}

		entries = append(entries, video.CandidateItem{
			ID:          id,
			Title:       strings.TrimSpace(item.Title),
			Source:      source,
			ChannelID:   channel.ID,
			PublishedAt: published.UTC(),
			URL:         watchURLPrefix + id,
		})
	}
	return entries
}

// videoID prefers the yt:videoId extension and falls back to the entry id
// ("yt:video:<id>").
func videoID(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if ids := yt["videoId"]; len(ids) > 0 {
			if id := strings.TrimSpace(ids[0].Value); id != "" {
				return id
			}
		}
	}
	guid := strings.TrimSpace(item.GUID)
	if rest, ok := strings.CutPrefix(guid, "yt:video:"); ok {
		return rest
	}
	return ""
}
