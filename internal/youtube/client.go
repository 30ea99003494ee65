package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

// DefaultBaseURL is the YouTube Data API v3 root.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrNotFound is returned when the API knows nothing about a video id.
var ErrNotFound = errors.New("video not found")

// Client fetches per-video metadata from the YouTube Data API.
// Each call costs quota on the API side; the caller decides how many to make.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Options tunes the client. Zero values mean defaults.
type Options struct {
	BaseURL string
	HTTP    *http.Client
	// RequestsPerSecond paces calls; <= 0 means 5.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// NewClient creates a metadata client. An empty apiKey is allowed: every call
// then returns video.UnqualifiedDetails without touching the network.
func NewClient(apiKey string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logging.OrDefault(opts.Logger),
	}
}

// FetchDetails returns duration, description and view count of one video.
func (c *Client) FetchDetails(ctx context.Context, id string) (video.Details, error) {
	if c.apiKey == "" {
		c.logger.Debug("no YouTube API key, details not fetched", "video_id", id)
		return video.UnqualifiedDetails, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return video.Details{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("part", "contentDetails,snippet,statistics")
	params.Set("id", id)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+params.Encode(), nil)
	if err != nil {
		return video.Details{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return video.Details{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return video.Details{}, fmt.Errorf("youtube api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload videosResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return video.Details{}, fmt.Errorf("decode response: %w", err)
	}

	return payload.details(id)
}

type videosResponse struct {
	Items []videoResource `json:"items"`
}

type videoResource struct {
	ID             string `json:"id"`
	ContentDetails *struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Snippet *struct {
		Description string `json:"description"`
	} `json:"snippet"`
	Statistics *struct {
		ViewCount string `json:"viewCount"`
	} `json:"statistics"`
}

func (r videosResponse) details(id string) (video.Details, error) {
	if len(r.Items) == 0 {
		return video.Details{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	item := r.Items[0]
	if item.ContentDetails == nil || item.ContentDetails.Duration == "" {
		return video.Details{}, fmt.Errorf("%s: missing contentDetails.duration", id)
	}

	seconds, err := ParseDuration(item.ContentDetails.Duration)
	if err != nil {
		return video.Details{}, fmt.Errorf("%s: %w", id, err)
	}

	var d video.Details
	d.DurationSeconds = seconds
	if item.Snippet != nil {
		d.Description = item.Snippet.Description
	}
	// Statistics may be hidden by the uploader; views default to 0.
	if item.Statistics != nil && item.Statistics.ViewCount != "" {
		views, err := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		if err == nil {
			d.Views = views
		}
	}
	return d, nil
}
