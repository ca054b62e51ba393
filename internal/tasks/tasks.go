package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/services"
	"github.com/desertthunder/respect/internal/shared"
)

const (
	DefaultRunTimeout  = 5 * time.Minute
	DefaultMaxAttempts = 3
	DefaultMarket      = "US"
)

// Request is one sync invocation.
type Request struct {
	SubjectID  string          `json:"subjectId"`
	SyncType   models.SyncType `json:"syncType"`
	PlaylistID string          `json:"playlistId,omitempty"`
	ArtistID   string          `json:"artistId,omitempty"`

	// CallerID is the authenticated identity making the request. When set it must match SubjectID.
	CallerID string `json:"-"`
}

// Validate checks the request before any network or storage access.
func (r Request) Validate() error {
	if strings.TrimSpace(r.SubjectID) == "" {
		return fmt.Errorf("%w: subject id", shared.ErrMissingArgument)
	}
	if _, err := models.ParseSyncType(string(r.SyncType)); err != nil {
		return err
	}
	if r.SyncType.NeedsPlaylist() && strings.TrimSpace(r.PlaylistID) == "" {
		return fmt.Errorf("%w: %s sync requires a playlist id", shared.ErrMissingArgument, r.SyncType)
	}
	if r.SyncType.NeedsArtist() && strings.TrimSpace(r.ArtistID) == "" {
		return fmt.Errorf("%w: %s sync requires an artist id", shared.ErrMissingArgument, r.SyncType)
	}
	if r.CallerID != "" && r.CallerID != r.SubjectID {
		return fmt.Errorf("%w: caller %s cannot sync subject %s", shared.ErrAuthorizationMismatch, r.CallerID, r.SubjectID)
	}
	return nil
}

// SyncResult summarizes one run. Success is false only when the run could not proceed; per-item
// failures are reported through Failed.
type SyncResult struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// counters tallies examined items. Every examined item lands in exactly one of the two.
type counters struct {
	processed int
	failed    int
}

func (c *counters) ok()   { c.processed++ }
func (c *counters) fail() { c.failed++ }

func (c *counters) result(err error) SyncResult {
	res := SyncResult{Success: err == nil, Processed: c.processed, Failed: c.failed, Err: err}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// TokenChecker yields a valid access token for a subject, refreshing it when needed.
type TokenChecker interface {
	AccessToken(ctx context.Context, subjectID string) (string, error)
}

// Options tune a run.
type Options struct {
	RunTimeout         time.Duration // Deadline for the whole run
	MaxAttempts        int           // Attempts per rate-limited call
	FetchArtistDetails bool          // Enrich new artists with their full profile
	Market             string        // Market for top-track lookups
}

// OptionsFromConfig converts the [sync] configuration section.
func OptionsFromConfig(c shared.SyncConfig) Options {
	return Options{
		RunTimeout:         c.RunTimeout(),
		MaxAttempts:        c.MaxAttempts,
		FetchArtistDetails: c.FetchArtistDetails,
		Market:             c.Market,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Market == "" {
		o.Market = DefaultMarket
	}
	return o
}

// Orchestrator runs sync pipelines against the upstream API and local storage.
type Orchestrator struct {
	upstream  Upstream
	tokens    TokenChecker
	store     *Store
	extractor *Extractor
	upserter  *Upserter
	syncLog   *SyncLogger
	opts      Options
	logger    *log.Logger
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(upstream Upstream, tokens TokenChecker, store *Store, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	opts = opts.withDefaults()

	return &Orchestrator{
		upstream:  upstream,
		tokens:    tokens,
		store:     store,
		extractor: NewExtractor(upstream, opts.MaxAttempts, logger),
		upserter:  NewUpserter(store, upstream, opts.FetchArtistDetails, logger),
		syncLog:   NewSyncLogger(store.SyncLogs, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Upserter exposes the orchestrator's upsert engine.
func (o *Orchestrator) Upserter() *Upserter { return o.upserter }

// Run executes req and returns its summary. It never returns an error: fatal problems are reported
// through [SyncResult.Success] and [SyncResult.Error], and every attributable run is audited.
func (o *Orchestrator) Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) SyncResult {
	if st, err := models.ParseSyncType(string(req.SyncType)); err == nil {
		req.SyncType = st
	}

	logger := shared.WithLogger(o.logger, "subject", req.SubjectID, "sync_type", req.SyncType)
	sendProgress(progress, startedUpdate(req.SyncType))

	runCtx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	c := &counters{}
	err := o.execute(runCtx, req, c, progress, logger)
	if err != nil && runCtx.Err() != nil && !errors.Is(err, shared.ErrTimeout) {
		err = fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}
	res := c.result(err)

	if strings.TrimSpace(req.SubjectID) != "" {
		if o.syncLog.Record(context.WithoutCancel(ctx), req.SubjectID, req.SyncType, res) {
			sendProgress(progress, loggedUpdate(res))
		}
	}
	sendProgress(progress, finishedUpdate(res))

	if res.Success {
		logger.Info("sync finished", "processed", res.Processed, "failed", res.Failed)
	} else {
		logger.Error("sync failed", "processed", res.Processed, "failed", res.Failed, "error", err)
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, req Request, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if req.SyncType == models.SyncPlaylistTracks {
		if err := o.checkOwnership(req.SubjectID, req.PlaylistID); err != nil {
			return err
		}
	}

	if _, err := o.tokens.AccessToken(ctx, req.SubjectID); err != nil {
		return err
	}
	sendProgress(progress, tokenReadyUpdate())

	switch req.SyncType {
	case models.SyncPlaylists:
		_, err := o.syncPlaylists(ctx, req.SubjectID, c, progress, logger)
		return err
	case models.SyncPlaylistTracks:
		return o.syncPlaylistTracks(ctx, req, c, progress, logger)
	case models.SyncFull:
		return o.syncFull(ctx, req.SubjectID, c, progress, logger)
	case models.SyncArtistProfile:
		_, err := o.ensureArtist(ctx, req, c, progress, logger)
		return err
	case models.SyncArtistSongs:
		return o.syncArtistSongs(ctx, req, c, progress, logger)
	case models.SyncArtistAlbums:
		return o.syncArtistAlbums(ctx, req, c, progress, logger)
	default:
		return fmt.Errorf("%w: unknown sync type %q", shared.ErrInvalidArgument, req.SyncType)
	}
}

// checkOwnership rejects a playlist that is already stored under another subject.
func (o *Orchestrator) checkOwnership(subjectID, playlistID string) error {
	stored, err := o.store.Playlists.GetByExternalID(playlistID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.OwnerID != subjectID {
		return fmt.Errorf("%w: playlist %s belongs to another subject", shared.ErrAuthorizationMismatch, playlistID)
	}
	return nil
}

type syncedPlaylist struct {
	remote services.SimplePlaylist
	id     string
}

func (o *Orchestrator) syncPlaylists(ctx context.Context, subject string, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) ([]syncedPlaylist, error) {
	playlists, err := o.listPlaylists(ctx, subject, progress)
	if err != nil {
		return nil, topLevel(ctx, err, "listing playlists")
	}

	synced := make([]syncedPlaylist, 0, len(playlists))
	for i, p := range playlists {
		sendProgress(progress, persistingUpdate(c, i+1, len(playlists), "playlist "+p.Name))

		out, err := o.upserter.UpsertPlaylist(ctx, playlistCandidate(p, subject))
		if err != nil {
			if isFatal(ctx, err) {
				return synced, err
			}
			logger.Warn("playlist not saved", "playlist", p.ID, "error", err)
			c.fail()
			continue
		}

		c.ok()
		synced = append(synced, syncedPlaylist{remote: p, id: out.ID})
	}
	return synced, nil
}

func (o *Orchestrator) listPlaylists(ctx context.Context, subject string, progress chan<- ProgressUpdate) ([]services.SimplePlaylist, error) {
	var playlists []services.SimplePlaylist
	offset := 0

	for page := 1; ; page++ {
		resp, err := retried(ctx, o.opts.MaxAttempts, func() (*services.Paging[services.SimplePlaylist], error) {
			return o.upstream.UserPlaylists(ctx, subject, services.MaxPlaylistPage, offset)
		})
		if err != nil {
			return nil, err
		}

		playlists = append(playlists, resp.Items...)
		sendProgress(progress, fetchingPageUpdate("playlists", page, len(playlists)))

		if !resp.HasNext() || len(resp.Items) == 0 {
			return playlists, nil
		}
		offset += len(resp.Items)
	}
}

func (o *Orchestrator) syncPlaylistTracks(ctx context.Context, req Request, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) error {
	var playlistID string

	stored, err := o.store.Playlists.GetByExternalID(req.PlaylistID)
	switch {
	case err == nil:
		playlistID = stored.ID
	case errors.Is(err, shared.ErrNotFound):
		remote, err := retried(ctx, o.opts.MaxAttempts, func() (*services.SimplePlaylist, error) {
			return o.upstream.Playlist(ctx, req.SubjectID, req.PlaylistID)
		})
		if err != nil {
			return topLevel(ctx, err, "fetching playlist "+req.PlaylistID)
		}
		out, err := o.upserter.UpsertPlaylist(ctx, playlistCandidate(*remote, req.SubjectID))
		if err != nil {
			return err
		}
		playlistID = out.ID
	default:
		return err
	}

	sendProgress(progress, extractingUpdate(1, 1, req.PlaylistID))
	items, err := o.extractor.FetchPlaylistItems(ctx, req.SubjectID, req.PlaylistID, progress)
	if err != nil {
		return topLevel(ctx, err, "listing tracks of "+req.PlaylistID)
	}

	candidates := BuildCandidates(items)
	sendProgress(progress, persistingUpdate(c, 1, 1, fmt.Sprintf("%d tracks", len(candidates))))

	if err := o.upserter.ReplacePlaylistTracks(ctx, playlistID, candidates); err != nil {
		if isFatal(ctx, err) {
			return err
		}
		logger.Warn("playlist tracks not replaced", "playlist", req.PlaylistID, "error", err)
		c.failed += len(candidates)
		return nil
	}
	c.processed += len(candidates)
	return nil
}

// syncFull runs the playlists pipeline, replaces the tracks of every saved playlist, then upserts
// the unique artists and songs credited on those tracks.
//
// Items examined are each listed playlist, each saved playlist's track set, each unique artist and
// each unique song.
func (o *Orchestrator) syncFull(ctx context.Context, subject string, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) error {
	synced, err := o.syncPlaylists(ctx, subject, c, progress, logger)
	if err != nil {
		return err
	}

	remotes := make([]services.SimplePlaylist, 0, len(synced))
	for _, sp := range synced {
		remotes = append(remotes, sp.remote)
	}

	x, err := o.extractor.ExtractFromPlaylists(ctx, remotes, subject, progress)
	if err != nil {
		return err
	}

	for i, sp := range synced {
		tracks, ok := x.Tracks[sp.remote.ID]
		if !ok {
			c.fail()
			continue
		}

		sendProgress(progress, persistingUpdate(c, i+1, len(synced), "tracks of "+sp.remote.Name))
		if err := o.upserter.ReplacePlaylistTracks(ctx, sp.id, tracks); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("playlist tracks not replaced", "playlist", sp.remote.ID, "error", err)
			c.fail()
			continue
		}
		c.ok()
	}

	artistIDs := x.ArtistIDs()
	for i, id := range artistIDs {
		cand := x.Artists[id]
		sendProgress(progress, persistingUpdate(c, i+1, len(artistIDs), "artist "+cand.Name))

		if _, err := o.upserter.UpsertArtist(ctx, subject, cand); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("artist not saved", "artist", id, "error", err)
			c.fail()
			continue
		}
		c.ok()
	}

	songIDs := x.SongIDs()
	for i, id := range songIDs {
		song := x.Songs[id]
		sendProgress(progress, persistingUpdate(c, i+1, len(songIDs), "song "+song.Name))

		if err := o.saveSong(ctx, song, ""); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("song not saved", "song", id, "error", err)
			c.fail()
			continue
		}
		c.ok()
	}
	return nil
}

// saveSong upserts song under artistID, resolving its primary artist when artistID is empty.
func (o *Orchestrator) saveSong(ctx context.Context, song SongCandidate, artistID string) error {
	if artistID == "" {
		resolved, err := o.upserter.ResolveArtistID(ctx, song.ArtistExternalID)
		if err != nil {
			return err
		}
		artistID = resolved
	}
	_, err := o.upserter.UpsertSong(ctx, song, artistID)
	return err
}

// ensureArtist fetches and upserts the requested artist, counting it as one examined item. It
// returns the artist's internal id, or "" when the artist could not be saved.
func (o *Orchestrator) ensureArtist(ctx context.Context, req Request, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) (string, error) {
	detail, err := retried(ctx, o.opts.MaxAttempts, func() (*services.Artist, error) {
		return o.upstream.Artist(ctx, req.SubjectID, req.ArtistID)
	})
	if err != nil {
		return "", topLevel(ctx, err, "fetching artist "+req.ArtistID)
	}

	sendProgress(progress, persistingUpdate(c, 1, 1, "artist "+detail.Name))
	cand := ArtistCandidate{ExternalID: req.ArtistID, Name: shared.NormalizeName(detail.Name), Detail: detail}

	out, err := o.upserter.UpsertArtist(ctx, req.SubjectID, cand)
	if err != nil {
		if isFatal(ctx, err) {
			return "", err
		}
		logger.Warn("artist not saved", "artist", req.ArtistID, "error", err)
		c.fail()
		return "", nil
	}
	c.ok()
	return out.ID, nil
}

func (o *Orchestrator) syncArtistSongs(ctx context.Context, req Request, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) error {
	artistID, err := o.ensureArtist(ctx, req, c, progress, logger)
	if err != nil || artistID == "" {
		return err
	}

	tracks, err := retried(ctx, o.opts.MaxAttempts, func() ([]services.Track, error) {
		return o.upstream.ArtistTopTracks(ctx, req.SubjectID, req.ArtistID, o.opts.Market)
	})
	if err != nil {
		return topLevel(ctx, err, "listing top tracks of "+req.ArtistID)
	}
	sendProgress(progress, fetchingPageUpdate("top tracks", 1, len(tracks)))

	for i, tr := range tracks {
		sendProgress(progress, persistingUpdate(c, i+1, len(tracks), "song "+tr.Name))

		song, ok := songCandidate(trackCandidate(tr, i))
		if !ok {
			logger.Warn("top track has no upstream id", "name", tr.Name)
			c.fail()
			continue
		}

		target := ""
		if credits(tr, req.ArtistID) {
			target = artistID
		}
		if err := o.saveSong(ctx, song, target); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("song not saved", "song", song.ExternalID, "error", err)
			c.fail()
			continue
		}
		c.ok()
	}
	return nil
}

func credits(tr services.Track, artistID string) bool {
	return slices.ContainsFunc(tr.Artists, func(a services.SimpleArtist) bool { return a.ID == artistID })
}

func (o *Orchestrator) syncArtistAlbums(ctx context.Context, req Request, c *counters, progress chan<- ProgressUpdate, logger *log.Logger) error {
	artistID, err := o.ensureArtist(ctx, req, c, progress, logger)
	if err != nil || artistID == "" {
		return err
	}

	var albums []services.Album
	offset := 0
	for page := 1; ; page++ {
		resp, err := retried(ctx, o.opts.MaxAttempts, func() (*services.Paging[services.Album], error) {
			return o.upstream.ArtistAlbums(ctx, req.SubjectID, req.ArtistID, services.MaxAlbumPage, offset)
		})
		if err != nil {
			return topLevel(ctx, err, "listing albums of "+req.ArtistID)
		}

		albums = append(albums, resp.Items...)
		sendProgress(progress, fetchingPageUpdate("albums", page, len(albums)))

		if !resp.HasNext() || len(resp.Items) == 0 {
			break
		}
		offset += len(resp.Items)
	}

	for i, a := range albums {
		sendProgress(progress, persistingUpdate(c, i+1, len(albums), "album "+a.Name))

		if _, err := o.upserter.UpsertAlbum(ctx, albumCandidate(a), artistID); err != nil {
			if isFatal(ctx, err) {
				return err
			}
			logger.Warn("album not saved", "album", a.ID, "error", err)
			c.fail()
			continue
		}
		c.ok()
	}
	return nil
}

// retried calls fn through [withRetry] and returns its value.
func retried[T any](ctx context.Context, attempts int, fn func() (T, error)) (T, error) {
	var out T
	err := withRetry(ctx, attempts, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// topLevel marks a failed listing that the whole run depends on.
func topLevel(ctx context.Context, err error, what string) error {
	if isFatal(ctx, err) || errors.Is(err, shared.ErrUpstreamRequest) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrUpstreamRequest, what, err)
}
