package tasks

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MaxBatchSize is the most URIs a single append call may carry.
const MaxBatchSize = 100

// CatalogSearch resolves a song to a track. It returns [shared.ErrTrackNotFound]
// when nothing matches; any other error is fatal to a reconciliation.
type CatalogSearch interface {
	SearchTrack(ctx context.Context, title, artist string) (models.TrackRef, error)
}

// PlaylistPager fetches one page of a playlist. An empty pageToken requests the first page.
type PlaylistPager interface {
	PlaylistTracksPage(ctx context.Context, playlistID, pageToken string) (*models.TrackPage, error)
}

// PlaylistAppender appends at most [MaxBatchSize] URIs and returns the snapshot id.
type PlaylistAppender interface {
	AddTracks(ctx context.Context, playlistID string, uris []models.TrackRef) (string, error)
}

// ReconcileRequest describes one reconciliation run.
//
// Pager is nil when the playlist was just created; with a Pager set the run is
// an update and UserID must be allowed to modify Playlist.
type ReconcileRequest struct {
	Songs    []models.Song
	Playlist models.PlaylistState
	UserID   string
	Search   CatalogSearch
	Pager    PlaylistPager
	Appender PlaylistAppender
}

// ReconcileResult reports what was appended.
type ReconcileResult struct {
	ToAppend      []models.TrackRef
	TotalDesired  int
	TotalAppended int
	ExistingCount int
	Snapshots     []string
}

// AppendBatchError identifies the append batch that failed.
type AppendBatchError struct {
	Batch int // zero-based
	Size  int
	Err   error
}

func (e *AppendBatchError) Error() string {
	return fmt.Sprintf("append batch %d (%d tracks) failed: %v", e.Batch, e.Size, e.Err)
}

func (e *AppendBatchError) Unwrap() error { return e.Err }

// Reconciler merges resolved songs into a playlist without duplicating tracks.
type Reconciler struct {
	workers int
	limiter *rate.Limiter
	logger  *log.Logger
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Workers           int     // concurrent searches, 1 when unset
	RequestsPerSecond float64 // search pacing, unlimited when zero
	Logger            *log.Logger
}

// NewReconciler creates a [Reconciler].
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	r := &Reconciler{workers: opts.Workers, logger: opts.Logger}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if opts.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return r
}

// CheckAccess rejects users who neither own nor collaborate on the playlist.
func CheckAccess(state models.PlaylistState, userID string) error {
	if state.CanModify(userID) {
		return nil
	}
	return fmt.Errorf("%w: playlist %s is owned by %s and is not collaborative", shared.ErrAccessDenied, state.ID, state.OwnerID)
}

// Reconcile resolves req.Songs, subtracts the playlist's current tracks when
// updating, and appends the remainder in batches of [MaxBatchSize].
//
// Batches that succeeded before a failure stay applied.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest, progress chan<- ProgressUpdate) (*ReconcileResult, error) {
	if req.Search == nil || req.Appender == nil {
		return nil, fmt.Errorf("%w: search and appender are required", shared.ErrInvalidInput)
	}

	if req.Pager != nil {
		if err := CheckAccess(req.Playlist, req.UserID); err != nil {
			return nil, err
		}
	}

	resolved, err := r.Resolve(ctx, req.Songs, req.Search, progress)
	if err != nil {
		return nil, err
	}

	existing := req.Playlist.Existing
	if req.Pager != nil {
		sendProgress(progress, fetchExistingUpdate(0, req.Playlist.ID))
		existing, err = ExistingTracks(ctx, req.Pager, req.Playlist.ID)
		if err != nil {
			return nil, err
		}
		sendProgress(progress, fetchExistingUpdate(len(existing), req.Playlist.ID))
	}

	result := &ReconcileResult{
		ToAppend:      Difference(resolved, existing),
		TotalDesired:  len(req.Songs),
		ExistingCount: len(existing),
	}
	result.TotalAppended = len(result.ToAppend)

	batches := (len(result.ToAppend) + MaxBatchSize - 1) / MaxBatchSize
	batch := 0
	for uris := range slices.Chunk(result.ToAppend, MaxBatchSize) {
		sendProgress(progress, appendTracksUpdate(batch+1, batches, len(uris)))

		snapshot, err := req.Appender.AddTracks(ctx, req.Playlist.ID, uris)
		if err == nil && snapshot == "" {
			err = shared.ErrNoSnapshot
		}
		if err != nil {
			return result, &AppendBatchError{Batch: batch, Size: len(uris), Err: err}
		}

		result.Snapshots = append(result.Snapshots, snapshot)
		batch++
	}

	r.logger.Debug("reconciled playlist", "playlist", req.Playlist.ID, "desired", result.TotalDesired,
		"resolved", len(resolved), "existing", result.ExistingCount, "appended", result.TotalAppended)
	return result, nil
}

// Resolve searches every song and returns the matches in song order. Songs
// without a match are dropped; any other search error aborts.
func (r *Reconciler) Resolve(ctx context.Context, songs []models.Song, search CatalogSearch, progress chan<- ProgressUpdate) ([]models.TrackRef, error) {
	refs := make([]models.TrackRef, len(songs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, song := range songs {
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			ref, err := search.SearchTrack(gctx, song.Title, song.Artist)
			step := int(done.Add(1))
			switch {
			case errors.Is(err, shared.ErrTrackNotFound):
				r.logger.Debug("no catalog match", "title", song.Title, "artist", song.Artist)
				sendProgress(progress, searchTracksUpdate(step, len(songs), song, false))
				return nil
			case err != nil:
				return fmt.Errorf("failed to resolve %q: %w", song.String(), err)
			}

			refs[i] = ref
			sendProgress(progress, searchTracksUpdate(step, len(songs), song, ref != ""))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make([]models.TrackRef, 0, len(refs))
	for _, ref := range refs {
		if ref != "" {
			resolved = append(resolved, ref)
		}
	}
	return resolved, nil
}

// Pages lazily follows a playlist's page tokens until one comes back empty.
// A fetch error is yielded once and ends the sequence.
func Pages(ctx context.Context, pager PlaylistPager, playlistID string) iter.Seq2[*models.TrackPage, error] {
	return func(yield func(*models.TrackPage, error) bool) {
		token := ""
		for {
			page, err := pager.PlaylistTracksPage(ctx, playlistID, token)
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch tracks of playlist %s: %w", playlistID, err))
				return
			}
			if !yield(page, nil) || page.Next == "" {
				return
			}
			token = page.Next
		}
	}
}

// ExistingTracks collects every URI currently in the playlist.
func ExistingTracks(ctx context.Context, pager PlaylistPager, playlistID string) (map[models.TrackRef]struct{}, error) {
	existing := make(map[models.TrackRef]struct{})
	for page, err := range Pages(ctx, pager, playlistID) {
		if err != nil {
			return nil, err
		}
		for _, uri := range page.Items {
			existing[uri] = struct{}{}
		}
	}
	return existing, nil
}

// Difference returns the URIs of resolved that are not in existing, keeping
// order and the first occurrence of repeated URIs.
func Difference(resolved []models.TrackRef, existing map[models.TrackRef]struct{}) []models.TrackRef {
	seen := make(map[models.TrackRef]struct{}, len(resolved))
	out := make([]models.TrackRef, 0, len(resolved))
	for _, uri := range resolved {
		if _, ok := existing[uri]; ok {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
