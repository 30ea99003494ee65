package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/maine/youtube_digest/internal/logging"
)

const (
	// DefaultWatchURL is the watch page carrying ytInitialPlayerResponse.
	DefaultWatchURL = "https://www.youtube.com/watch"
	// DefaultPlayerURL is the Innertube player endpoint used as a fallback.
	DefaultPlayerURL = "https://www.youtube.com/youtubei/v1/player"

	androidVersion       = "20.10.38"
	androidUserAgent     = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
	playerResponseMarker = "ytInitialPlayerResponse = "

	maxWatchPageBytes  = 6 << 20
	maxTimedTextBytes  = 2 << 20
	minTranscriptRunes = 100
)

// ErrNoTranscript is returned when a video has no usable caption track.
var ErrNoTranscript = errors.New("no usable transcript")

var tagRe = regexp.MustCompile(`<[^>]*>`)

// TranscriptOptions tunes the transcript client. Zero values mean defaults.
type TranscriptOptions struct {
	WatchURL  string
	PlayerURL string
	HTTP      *http.Client
	// Languages lists caption languages in order of preference; empty means English.
	Languages []string
	Logger    *slog.Logger
}

// TranscriptClient fetches caption text of public videos. No API key is needed.
type TranscriptClient struct {
	watchURL  string
	playerURL string
	client    *http.Client
	langs     []string
	logger    *slog.Logger
}

// NewTranscriptClient creates a transcript client.
func NewTranscriptClient(opts TranscriptOptions) *TranscriptClient {
	c := &TranscriptClient{
		watchURL:  opts.WatchURL,
		playerURL: opts.PlayerURL,
		client:    opts.HTTP,
		langs:     opts.Languages,
		logger:    logging.OrDefault(opts.Logger),
	}
	if c.watchURL == "" {
		c.watchURL = DefaultWatchURL
	}
	if c.playerURL == "" {
		c.playerURL = DefaultPlayerURL
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 15 * time.Second}
	}
	if len(c.langs) == 0 {
		c.langs = []string{"en"}
	}
	return c
}

// FetchTranscript returns the caption text of one video. Caption tracks are
// read from the watch page first and from the Innertube player second.
// Manual captions win over auto-generated ones.
func (c *TranscriptClient) FetchTranscript(ctx context.Context, id string) (string, error) {
	tracks, err := c.tracksFromWatchPage(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		c.logger.Debug("watch page gave no caption tracks, trying player", "video_id", id, "error", err)
		if tracks, err = c.tracksFromPlayer(ctx, id); err != nil {
			return "", err
		}
	}

	track, ok := pickTrack(tracks, c.langs)
	if !ok {
		return "", fmt.Errorf("%s: no caption track in %v: %w", id, c.langs, ErrNoTranscript)
	}

	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(text) < minTranscriptRunes {
		return "", fmt.Errorf("%s: transcript too short: %w", id, ErrNoTranscript)
	}
	return text, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" marks auto-generated captions
}

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			Tracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (r playerResponse) tracks() ([]captionTrack, error) {
	if r.Captions == nil {
		if r.PlayabilityStatus != nil && r.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("captions unavailable (%s): %w", r.PlayabilityStatus.Reason, ErrNoTranscript)
		}
		return nil, fmt.Errorf("no captions in player response: %w", ErrNoTranscript)
	}
	if len(r.Captions.Renderer.Tracks) == 0 {
		return nil, fmt.Errorf("empty caption track list: %w", ErrNoTranscript)
	}
	return r.Captions.Renderer.Tracks, nil
}

func (c *TranscriptClient) tracksFromWatchPage(ctx context.Context, id string) ([]captionTrack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchURL+"?v="+url.QueryEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build watch request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("watch page status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxWatchPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSON([]byte(text[idx+len(playerResponseMarker):]))
		return raw == nil
	})
	if raw == nil {
		return nil, fmt.Errorf("ytInitialPlayerResponse not found: %w", ErrNoTranscript)
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr.tracks()
}

type playerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client struct {
			ClientName        string `json:"clientName"`
			ClientVersion     string `json:"clientVersion"`
			AndroidSdkVersion int    `json:"androidSdkVersion"`
			Hl                string `json:"hl"`
			Gl                string `json:"gl"`
		} `json:"client"`
	} `json:"context"`
	RacyCheckOk    bool `json:"racyCheckOk"`
	ContentCheckOk bool `json:"contentCheckOk"`
}

func (c *TranscriptClient) tracksFromPlayer(ctx context.Context, id string) ([]captionTrack, error) {
	var body playerRequest
	body.VideoID = id
	body.Context.Client.ClientName = "ANDROID"
	body.Context.Client.ClientVersion = androidVersion
	body.Context.Client.AndroidSdkVersion = 30
	body.Context.Client.Hl = "en"
	body.Context.Client.Gl = "US"
	body.RacyCheckOk = true
	body.ContentCheckOk = true

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal player request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.playerURL+"?prettyPrint=false", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUserAgent)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", androidVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("player status %d", resp.StatusCode)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return pr.tracks()
}

// timedText covers both caption layouts: the legacy <text> cues and the
// srv3 <body><p> paragraphs.
type timedText struct {
	Lines      []cue `xml:"text"`
	Paragraphs []cue `xml:"body>p"`
}

type cue struct {
	Inner string `xml:",innerxml"`
}

func (c *TranscriptClient) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("build timedtext request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("timedtext status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTimedTextBytes))
	if err != nil {
		return "", fmt.Errorf("read timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext: %w", err)
	}

	parts := make([]string, 0, len(tt.Lines)+len(tt.Paragraphs))
	for _, line := range append(tt.Lines, tt.Paragraphs...) {
		if text := cleanCue(line.Inner); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// cleanCue strips inline tags and the double entity escaping of caption text.
func cleanCue(raw string) string {
	text := tagRe.ReplaceAllString(raw, "")
	text = html.UnescapeString(html.UnescapeString(text))
	return strings.Join(strings.Fields(text), " ")
}

// pickTrack prefers manual captions in the first matching language, then
// auto-generated ones, then regional variants such as en-GB. Tracks that only
// play in a browser (exp=xpe) are skipped.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !strings.Contains(t.BaseURL, "&exp=xpe") {
			usable = append(usable, t)
		}
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if strings.HasPrefix(t.LanguageCode, lang+"-") {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

// extractJSON returns the leading JSON object of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, ch := range b {
		switch {
		case inStr && escaped:
			escaped = false
		case inStr && ch == '\\':
			escaped = true
		case inStr && ch == '"':
			inStr = false
		case inStr:
		case ch == '"':
			inStr = true
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
