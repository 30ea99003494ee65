package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maine/youtube_digest/internal/video"
)

var channelIDExpr = regexp.MustCompile(`UC[0-9A-Za-z_-]{22}`)

// resolver turns channel page URLs (@handle, /c/name, /channel/UC...) into channel ids.
type resolver struct {
	client *http.Client
}

func newResolver(client *http.Client) *resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &resolver{client: client}
}

// normalizePageURL accepts "@handle", "youtube.com/@handle" or a full URL.
func normalizePageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "@"):
		return "https://www.youtube.com/" + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	default:
		return "https://" + strings.TrimPrefix(raw, "//")
	}
}

func (r *resolver) resolve(ctx context.Context, pageURL string) (video.Channel, error) {
	pageURL = normalizePageURL(pageURL)

	// /channel/UC... already carries the id; the page is still read for the name.
	doc, err := r.fetchDocument(ctx, pageURL)
	if err != nil {
		if id := idFromURL(pageURL); id != "" {
			return video.Channel{ID: id}, nil
		}
		return video.Channel{}, err
	}

	ch := parseChannelPage(doc)
	if ch.ID == "" {
		ch.ID = idFromURL(pageURL)
	}
	if ch.ID == "" {
		return video.Channel{}, fmt.Errorf("channel id not found on %s", pageURL)
	}
	return ch, nil
}

func (r *resolver) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Skips the EU consent interstitial.
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// parseChannelPage reads the channel id and name from the page metadata.
func parseChannelPage(doc *goquery.Document) video.Channel {
	var ch video.Channel

	if id, ok := doc.Find(`meta[itemprop="channelId"], meta[itemprop="identifier"]`).First().Attr("content"); ok && channelIDExpr.MatchString(id) {
		ch.ID = id
	}
	if ch.ID == "" {
		doc.Find(`link[rel="canonical"], link[rel="alternate"][type="application/rss+xml"], meta[property="og:url"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			ref, ok := s.Attr("href")
			if !ok {
				ref, _ = s.Attr("content")
			}
			if id := channelIDExpr.FindString(ref); id != "" {
				ch.ID = id
				return false
			}
			return true
		})
	}

	if name, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		ch.Name = strings.TrimSpace(name)
	}
	if ch.Name == "" {
		ch.Name = strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
	}
	return ch
}

func idFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("channel_id"); channelIDExpr.MatchString(id) {
		return id
	}
	if strings.HasPrefix(u.Path, "/channel/") {
		return channelIDExpr.FindString(u.Path)
	}
	return ""
}

// mergeChannels appends resolved channels that are not known yet, keeping the
// existing order and names.
func mergeChannels(existing, resolved []video.Channel) ([]video.Channel, int) {
	known := make(map[string]struct{}, len(existing))
	for _, ch := range existing {
		known[ch.ID] = struct{}{}
	}

	out := append([]video.Channel(nil), existing...)
	added := 0
	for _, ch := range resolved {
		if _, ok := known[ch.ID]; ok {
			continue
		}
		known[ch.ID] = struct{}{}
		out = append(out, ch)
		added++
	}
	return out, added
}
