package tasks

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
)

// Upstream is the subset of [services.SpotifyClient] the engine uses.
type Upstream interface {
	UserPlaylists(ctx context.Context, subject string, limit, offset int) (*services.Paging[services.SimplePlaylist], error)
	Playlist(ctx context.Context, subject, playlistID string) (*services.SimplePlaylist, error)
	PlaylistTracks(ctx context.Context, subject, playlistID string, limit, offset int) (*services.Paging[services.PlaylistItem], error)
	Artist(ctx context.Context, subject, artistID string) (*services.Artist, error)
	ArtistTopTracks(ctx context.Context, subject, artistID, market string) ([]services.Track, error)
	ArtistAlbums(ctx context.Context, subject, artistID string, limit, offset int) (*services.Paging[services.Album], error)
}

// Extraction is the in-memory result of reading a set of playlists.
//
// Artists and Songs are keyed by upstream id and hold the first occurrence seen. Tracks holds every
// non-null item per playlist upstream id, in source order.
type Extraction struct {
	Artists         map[string]ArtistCandidate
	Songs           map[string]SongCandidate
	Tracks          map[string][]TrackCandidate
	FailedPlaylists []string
}

func newExtraction() *Extraction {
	return &Extraction{
		Artists: make(map[string]ArtistCandidate),
		Songs:   make(map[string]SongCandidate),
		Tracks:  make(map[string][]TrackCandidate),
	}
}

// Add records a playlist's tracks and folds their artists and songs into the unique sets.
func (x *Extraction) Add(playlistID string, tracks []TrackCandidate) {
	x.Tracks[playlistID] = tracks

	for _, t := range tracks {
		if primary, ok := t.PrimaryArtist(); ok && t.ExternalID != "" && primary.ExternalID != "" {
			if _, seen := x.Artists[primary.ExternalID]; !seen {
				x.Artists[primary.ExternalID] = primary
			}
		}

		if song, ok := songCandidate(t); ok {
			if _, seen := x.Songs[song.ExternalID]; !seen {
				x.Songs[song.ExternalID] = song
			}
		}
	}
}

// ArtistIDs returns the unique artist ids in ascending order.
func (x *Extraction) ArtistIDs() []string {
	ids := make([]string, 0, len(x.Artists))
	for id := range x.Artists {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SongIDs returns the unique song ids in ascending order.
func (x *Extraction) SongIDs() []string {
	ids := make([]string, 0, len(x.Songs))
	for id := range x.Songs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BuildCandidates converts one playlist's items into track candidates.
//
// Items whose track is null are dropped; the remaining items are numbered from zero in source order.
func BuildCandidates(items []services.PlaylistItem) []TrackCandidate {
	candidates := make([]TrackCandidate, 0, len(items))
	for _, item := range items {
		if item.Track == nil {
			continue
		}

		c := trackCandidate(*item.Track, len(candidates))
		if item.IsLocal || item.Track.IsLocal {
			c.ExternalID = ""
		}
		if at, err := time.Parse(time.RFC3339, item.AddedAt); err == nil {
			c.AddedAt = &at
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// Extractor reads playlist track listings. It never writes to storage.
type Extractor struct {
	upstream    Upstream
	maxAttempts int
	logger      *log.Logger
}

// NewExtractor creates an Extractor that retries rate-limited pages up to maxAttempts times.
func NewExtractor(upstream Upstream, maxAttempts int, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Extractor{upstream: upstream, maxAttempts: maxAttempts, logger: logger}
}

// ExtractFromPlaylists reads every playlist's tracks and returns the unique artists and songs.
//
// A playlist whose listing fails is recorded in FailedPlaylists and skipped. Only fatal errors
// (authentication, cancellation) are returned.
func (e *Extractor) ExtractFromPlaylists(ctx context.Context, playlists []services.SimplePlaylist, subject string, progress chan<- ProgressUpdate) (*Extraction, error) {
	x := newExtraction()

	for i, p := range playlists {
		sendProgress(progress, extractingUpdate(i+1, len(playlists), p.Name))

		items, err := e.FetchPlaylistItems(ctx, subject, p.ID, nil)
		if err != nil {
			if isFatal(ctx, err) {
				return x, err
			}
			e.logger.Warn("playlist track listing failed", "playlist", p.ID, "error", err)
			x.FailedPlaylists = append(x.FailedPlaylists, p.ID)
			continue
		}

		x.Add(p.ID, BuildCandidates(items))
	}

	return x, nil
}

// FetchPlaylistItems pages a playlist's items until no next page remains.
func (e *Extractor) FetchPlaylistItems(ctx context.Context, subject, playlistID string, progress chan<- ProgressUpdate) ([]services.PlaylistItem, error) {
	var items []services.PlaylistItem
	offset := 0

	for page := 1; ; page++ {
		var resp *services.Paging[services.PlaylistItem]
		err := withRetry(ctx, e.maxAttempts, func() error {
			var err error
			resp, err = e.upstream.PlaylistTracks(ctx, subject, playlistID, services.MaxTrackPage, offset)
			return err
		})
		if err != nil {
			return nil, err
		}

		items = append(items, resp.Items...)
		sendProgress(progress, fetchingPageUpdate("tracks", page, len(items)))

		if !resp.HasNext() || len(resp.Items) == 0 {
			return items, nil
		}
		offset += len(resp.Items)
	}
}

// withRetry runs fn, retrying while it fails with a rate-limit error. The wait before each retry
// has already been served by the client's limiter.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	attempts = max(attempts, 1)

	var err error
	for range attempts {
		if err = fn(); err == nil || !services.IsRateLimited(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// isFatal reports whether err must end the run instead of being charged to one item.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, shared.ErrAuthentication) ||
		errors.Is(err, shared.ErrTimeout)
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
