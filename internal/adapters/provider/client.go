// Package provider talks to the upstream music catalog API. Every request
// goes through the call serializer so the provider's rate limits are
// respected no matter how many goroutines need metadata at once.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/duet/internal/adapters/mq/serializer"
	"github.com/okian/duet/internal/domain/model"
	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL     = "https://api.musiccatalog.example"
	defaultHTTPTimeout = 15 * time.Second
)

// Track is one catalog hit from the provider.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	ISRC   string `json:"isrc"`
}

type searchResponse struct {
	Tracks []Track `json:"tracks"`
}

// Client is the provider API client. All calls are serialized.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	calls      *serializer.Serializer
	logger     logger.Logger
}

// NewClient creates a provider client with configuration options. The
// serializer must be started by the caller.
func NewClient(calls *serializer.Serializer, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		calls:      calls,
		logger:     logger.Named("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchTracks queries the catalog for an artist's tracks matching a title.
// An empty result is not an error.
func (c *Client) SearchTracks(ctx context.Context, artist, title string) ([]Track, error) {
	q := url.Values{}
	q.Set("artist", artist)
	q.Set("title", title)
	endpoint := fmt.Sprintf("%s/v1/search?%s", c.baseURL, q.Encode())

	resp, err := c.calls.Do(ctx, c.get(endpoint))
	if err != nil {
		metrics.RecordProviderCall("error")
		return nil, fmt.Errorf("search tracks: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderCall("error")
		return nil, fmt.Errorf("%w: search returned status %d", ErrBadResponse, resp.StatusCode)
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		metrics.RecordProviderCall("error")
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	metrics.RecordProviderCall("ok")
	return body.Tracks, nil
}

// TrackByISRC resolves a track by its recording code. A fresh code may not
// have propagated on the provider side yet, so 404s are retried.
func (c *Client) TrackByISRC(ctx context.Context, isrc string) (Track, error) {
	endpoint := fmt.Sprintf("%s/v1/tracks/isrc/%s", c.baseURL, url.PathEscape(isrc))

	resp, err := c.calls.Do(ctx, c.get(endpoint), serializer.WithRetryNotFound())
	if err != nil {
		if resp.StatusCode == http.StatusNotFound {
			metrics.RecordProviderCall("not_found")
			return Track{}, fmt.Errorf("%w: isrc %s", ErrTrackNotFound, isrc)
		}
		metrics.RecordProviderCall("error")
		return Track{}, fmt.Errorf("track by isrc: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		metrics.RecordProviderCall("not_found")
		return Track{}, fmt.Errorf("%w: isrc %s", ErrTrackNotFound, isrc)
	default:
		metrics.RecordProviderCall("error")
		return Track{}, fmt.Errorf("%w: lookup returned status %d", ErrBadResponse, resp.StatusCode)
	}

	var t Track
	if err := json.Unmarshal(resp.Body, &t); err != nil {
		metrics.RecordProviderCall("error")
		return Track{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	metrics.RecordProviderCall("ok")
	return t, nil
}

// EnrichSongs fills missing identity fields on songs from the catalog. Songs
// the provider cannot resolve are passed through unchanged; enrichment is
// best-effort and never fails the whole batch.
func (c *Client) EnrichSongs(ctx context.Context, songs []model.Song) []model.Song {
	out := make([]model.Song, len(songs))
	for i, s := range songs {
		out[i] = s
		if s.ISRC != "" {
			continue
		}
		hits, err := c.SearchTracks(ctx, s.Artist, s.Title)
		if err != nil || len(hits) == 0 {
			if err != nil {
				c.logger.Warn(ctx, "catalog enrichment skipped",
					logger.String("song", s.ID),
					logger.Error(err),
				)
			}
			continue
		}
		out[i].ISRC = hits[0].ISRC
		if out[i].Album == "" {
			out[i].Album = hits[0].Album
		}
	}
	return out
}

// get builds a serialized GET call against the provider.
func (c *Client) get(endpoint string) serializer.Call {
	return func(ctx context.Context) (serializer.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return serializer.Response{}, fmt.Errorf("build request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return serializer.Response{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return serializer.Response{}, fmt.Errorf("read body: %w", err)
		}
		return serializer.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}, nil
	}
}
