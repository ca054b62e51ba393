package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/ratelimit"
	"github.com/desertthunder/respect/internal/shared"
)

const (
	spotifyBaseURL        = "https://api.spotify.com/v1"
	defaultRequestTimeout = 15 * time.Second

	// MaxPlaylistPage is the largest page size accepted by the playlist listing.
	MaxPlaylistPage = 50
	// MaxTrackPage is the largest page size accepted by playlist track listings.
	MaxTrackPage = 100
	// MaxAlbumPage is the largest page size accepted by artist album listings.
	MaxAlbumPage = 50
)

// SpotifyClient performs rate-limited, authenticated calls against the Spotify Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    RateLimiter
	tokens     TokenSource
	logger     *log.Logger
}

// ClientOption configures a [SpotifyClient].
type ClientOption func(*SpotifyClient)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) ClientOption {
	return func(c *SpotifyClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *SpotifyClient) { c.httpClient = h }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *SpotifyClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *SpotifyClient) { c.logger = l }
}

// NewSpotifyClient creates a client that spaces calls through limiter and authenticates them with tokens.
func NewSpotifyClient(limiter RateLimiter, tokens TokenSource, opts ...ClientOption) *SpotifyClient {
	c := &SpotifyClient{
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		limiter:    limiter,
		tokens:     tokens,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	return c
}

// Request performs one call on behalf of subject and decodes a successful body into out (which may be nil).
//
// path is relative to the API root and may carry a query string.
func (c *SpotifyClient) Request(ctx context.Context, method, path, subject string, out any) error {
	if err := c.limiter.Acquire(ctx, path, subject); err != nil {
		return err
	}

	token, err := c.tokens.AccessToken(ctx, subject)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrUpstreamRequest, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrUpstreamRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		exhausted := ratelimit.Exhausted(resp)
		if exhausted {
			waited, berr := c.limiter.Backoff(ctx, path, subject, resp)
			if berr != nil {
				return berr
			}
			c.logger.Warn("upstream rate limit hit", "path", path, "subject", subject, "waited", waited)
		}
		return newAPIError(method, path, resp.StatusCode, body, exhausted)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrUpstreamRequest, err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// UserPlaylists returns one page of the subject's playlists.
func (c *SpotifyClient) UserPlaylists(ctx context.Context, subject string, limit, offset int) (*Paging[SimplePlaylist], error) {
	path := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", clamp(limit, 1, MaxPlaylistPage), offset)

	var page Paging[SimplePlaylist]
	if err := c.Request(ctx, http.MethodGet, path, subject, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Playlist returns a playlist's metadata.
func (c *SpotifyClient) Playlist(ctx context.Context, subject, playlistID string) (*SimplePlaylist, error) {
	path := fmt.Sprintf("/playlists/%s?fields=%s", url.PathEscape(playlistID),
		url.QueryEscape("id,name,description,owner,public,collaborative,images,tracks.total"))

	var p SimplePlaylist
	if err := c.Request(ctx, http.MethodGet, path, subject, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlaylistTracks returns one page of a playlist's items.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, subject, playlistID string, limit, offset int) (*Paging[PlaylistItem], error) {
	path := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), clamp(limit, 1, MaxTrackPage), offset)

	var page Paging[PlaylistItem]
	if err := c.Request(ctx, http.MethodGet, path, subject, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Artist returns an artist's full profile.
func (c *SpotifyClient) Artist(ctx context.Context, subject, artistID string) (*Artist, error) {
	var a Artist
	if err := c.Request(ctx, http.MethodGet, "/artists/"+url.PathEscape(artistID), subject, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ArtistTopTracks returns an artist's top tracks in market.
func (c *SpotifyClient) ArtistTopTracks(ctx context.Context, subject, artistID, market string) ([]Track, error) {
	if market == "" {
		market = "US"
	}
	path := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), url.QueryEscape(market))

	var resp topTracks
	if err := c.Request(ctx, http.MethodGet, path, subject, &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// ArtistAlbums returns one page of an artist's albums and singles.
func (c *SpotifyClient) ArtistAlbums(ctx context.Context, subject, artistID string, limit, offset int) (*Paging[Album], error) {
	path := fmt.Sprintf("/artists/%s/albums?include_groups=album,single&limit=%d&offset=%d",
		url.PathEscape(artistID), clamp(limit, 1, MaxAlbumPage), offset)

	var page Paging[Album]
	if err := c.Request(ctx, http.MethodGet, path, subject, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
