package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	tu "github.com/desertthunder/djwaifu/internal/testing"
)

func songsNamed(titles ...string) []models.Song {
	songs := make([]models.Song, len(titles))
	for i, t := range titles {
		songs[i] = models.Song{Title: t}
	}
	return songs
}

func updateRequest(svc *tu.MockPlaylistService, songs []models.Song) ReconcileRequest {
	return ReconcileRequest{
		Songs:    songs,
		Playlist: models.PlaylistState{ID: "pl", OwnerID: svc.UserID},
		UserID:   svc.UserID,
		Search:   svc,
		Pager:    svc,
		Appender: svc,
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end with existing track", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		svc.Results["A"] = "u1"
		svc.Results["C"] = "u3"
		svc.Pages[""] = models.TrackPage{Items: []models.TrackRef{"u1"}}

		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, songsNamed("A", "B", "C")), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(res.ToAppend) != 1 || res.ToAppend[0] != "u3" {
			t.Errorf("expected [u3], got %v", res.ToAppend)
		}
		if res.TotalDesired != 3 {
			t.Errorf("expected TotalDesired 3, got %d", res.TotalDesired)
		}
		if res.TotalAppended != 1 {
			t.Errorf("expected TotalAppended 1, got %d", res.TotalAppended)
		}
		if len(svc.AddCalls) != 1 {
			t.Errorf("expected one append call, got %d", len(svc.AddCalls))
		}
	})

	t.Run("batches of at most 100", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		titles := make([]string, 250)
		for i := range titles {
			titles[i] = fmt.Sprintf("song-%d", i)
			svc.Results[titles[i]] = models.TrackRef(fmt.Sprintf("spotify:track:%d", i))
		}

		req := updateRequest(svc, songsNamed(titles...))
		req.Pager = nil
		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, req, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []int{100, 100, 50}
		if len(svc.AddCalls) != len(want) {
			t.Fatalf("expected %d append calls, got %d", len(want), len(svc.AddCalls))
		}
		for i, size := range want {
			if len(svc.AddCalls[i]) != size {
				t.Errorf("batch %d: expected %d uris, got %d", i, size, len(svc.AddCalls[i]))
			}
		}
		if svc.AddCalls[2][49] != "spotify:track:249" {
			t.Errorf("expected order preserved, last uri %s", svc.AddCalls[2][49])
		}
		if len(res.Snapshots) != 3 {
			t.Errorf("expected 3 snapshots, got %d", len(res.Snapshots))
		}
	})

	t.Run("follows every page", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		svc.Pages[""] = models.TrackPage{Items: []models.TrackRef{"u1"}, Next: "p2"}
		svc.Pages["p2"] = models.TrackPage{Items: []models.TrackRef{"u2"}, Next: "p3"}
		svc.Pages["p3"] = models.TrackPage{Items: []models.TrackRef{"u3"}}
		svc.Results["A"] = "u1"
		svc.Results["B"] = "u3"
		svc.Results["C"] = "u4"

		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, songsNamed("A", "B", "C")), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(svc.PageCalls) != 3 {
			t.Errorf("expected 3 page fetches, got %d (%v)", len(svc.PageCalls), svc.PageCalls)
		}
		if res.ExistingCount != 3 {
			t.Errorf("expected 3 existing tracks, got %d", res.ExistingCount)
		}
		if len(res.ToAppend) != 1 || res.ToAppend[0] != "u4" {
			t.Errorf("expected [u4], got %v", res.ToAppend)
		}
	})

	t.Run("rejects foreign non-collaborative playlist", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("bob")
		svc.Results["A"] = "u1"
		req := updateRequest(svc, songsNamed("A"))
		req.Playlist.OwnerID = "alice"

		_, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, req, nil)
		if !errors.Is(err, shared.ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
		if len(svc.AddCalls) != 0 || len(svc.SearchCalls) != 0 || len(svc.PageCalls) != 0 {
			t.Errorf("expected no remote calls, got add=%d search=%d page=%d",
				len(svc.AddCalls), len(svc.SearchCalls), len(svc.PageCalls))
		}
	})

	t.Run("allows collaborative playlist", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("bob")
		svc.Results["A"] = "u1"
		req := updateRequest(svc, songsNamed("A"))
		req.Playlist.OwnerID = "alice"
		req.Playlist.Collaborative = true

		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, req, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TotalAppended != 1 {
			t.Errorf("expected 1 appended, got %d", res.TotalAppended)
		}
	})

	t.Run("search failure is fatal", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		svc.Results["A"] = "u1"
		svc.SearchErr["B"] = fmt.Errorf("%w: status 500", shared.ErrAPIRequest)

		_, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, songsNamed("A", "B", "C")), nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if len(svc.AddCalls) != 0 {
			t.Errorf("expected no append calls, got %d", len(svc.AddCalls))
		}
	})

	t.Run("page failure is fatal", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		svc.Results["A"] = "u1"
		svc.PageErr = shared.ErrTokenExpired

		_, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, songsNamed("A")), nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if len(svc.AddCalls) != 0 {
			t.Errorf("expected no append calls, got %d", len(svc.AddCalls))
		}
	})

	t.Run("failed batch names the batch", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		titles := make([]string, 150)
		for i := range titles {
			titles[i] = fmt.Sprintf("s%d", i)
			svc.Results[titles[i]] = models.TrackRef(titles[i])
		}
		svc.AddErr = shared.ErrAPIRequest
		svc.FailBatch = 2

		req := updateRequest(svc, songsNamed(titles...))
		req.Pager = nil
		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, req, nil)

		var batchErr *AppendBatchError
		if !errors.As(err, &batchErr) {
			t.Fatalf("expected AppendBatchError, got %v", err)
		}
		if batchErr.Batch != 1 || batchErr.Size != 50 {
			t.Errorf("expected batch 1 of size 50, got %d/%d", batchErr.Batch, batchErr.Size)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected wrapped ErrAPIRequest")
		}
		if res == nil || len(res.Snapshots) != 1 {
			t.Errorf("expected the first batch to stay applied")
		}
	})

	t.Run("missing snapshot fails", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		svc.Results["A"] = "u1"
		svc.NoSnap = true

		_, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, songsNamed("A")), nil)
		if !errors.Is(err, shared.ErrNoSnapshot) {
			t.Fatalf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("nothing to append", func(t *testing.T) {
		svc := tu.NewMockPlaylistService("alice")
		res, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, updateRequest(svc, nil), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TotalDesired != 0 || res.TotalAppended != 0 || len(svc.AddCalls) != 0 {
			t.Errorf("expected empty run, got %+v with %d calls", res, len(svc.AddCalls))
		}
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := NewReconciler(ReconcilerOpts{}).Reconcile(ctx, ReconcileRequest{}, nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestReconcileNeverDuplicates(t *testing.T) {
	tc := []struct {
		name     string
		existing []models.TrackRef
		results  map[string]models.TrackRef
		songs    []string
	}{
		{
			name:     "all present",
			existing: []models.TrackRef{"a", "b"},
			results:  map[string]models.TrackRef{"A": "a", "B": "b"},
			songs:    []string{"A", "B"},
		},
		{
			name:     "same track for two songs",
			existing: []models.TrackRef{"x"},
			results:  map[string]models.TrackRef{"A": "a", "B": "a", "C": "x"},
			songs:    []string{"A", "B", "C"},
		},
		{
			name:     "empty playlist",
			existing: nil,
			results:  map[string]models.TrackRef{"A": "a", "B": "b"},
			songs:    []string{"A", "B", "A"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			svc := tu.NewMockPlaylistService("alice")
			svc.Results = tt.results
			svc.Pages[""] = models.TrackPage{Items: tt.existing}

			res, err := NewReconciler(ReconcilerOpts{Workers: 3}).Reconcile(context.Background(), updateRequest(svc, songsNamed(tt.songs...)), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			existing := map[models.TrackRef]bool{}
			for _, uri := range tt.existing {
				existing[uri] = true
			}
			seen := map[models.TrackRef]bool{}
			for _, uri := range res.ToAppend {
				if existing[uri] {
					t.Errorf("uri %s already in playlist", uri)
				}
				if seen[uri] {
					t.Errorf("uri %s appended twice", uri)
				}
				seen[uri] = true
			}
		})
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	svc := tu.NewMockPlaylistService("alice")
	titles := make([]string, 40)
	for i := range titles {
		titles[i] = fmt.Sprintf("t%02d", i)
		if i%3 != 0 {
			svc.Results[titles[i]] = models.TrackRef("uri-" + titles[i])
		}
	}

	progress := make(chan ProgressUpdate, 100)
	refs, err := NewReconciler(ReconcilerOpts{Workers: 8}).Resolve(context.Background(), songsNamed(titles...), svc, progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var want []models.TrackRef
	for i, title := range titles {
		if i%3 != 0 {
			want = append(want, models.TrackRef("uri-"+title))
		}
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %d", len(want), len(refs))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], refs[i])
		}
	}

	if len(progress) != len(titles) {
		t.Errorf("expected one progress update per song, got %d", len(progress))
	}
}

func TestPages(t *testing.T) {
	svc := tu.NewMockPlaylistService("alice")
	svc.Pages[""] = models.TrackPage{Items: []models.TrackRef{"a"}, Next: "2"}
	svc.Pages["2"] = models.TrackPage{Items: []models.TrackRef{"b"}, Next: "3"}
	svc.Pages["3"] = models.TrackPage{Items: []models.TrackRef{"c"}}

	t.Run("stops early when the caller breaks", func(t *testing.T) {
		svc.PageCalls = nil
		for page, err := range Pages(context.Background(), svc, "pl") {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.Items[0] == "a" {
				break
			}
		}
		if len(svc.PageCalls) != 1 {
			t.Errorf("expected 1 fetch, got %d", len(svc.PageCalls))
		}
	})

	t.Run("single page", func(t *testing.T) {
		single := tu.NewMockPlaylistService("alice")
		single.Pages[""] = models.TrackPage{Items: []models.TrackRef{"a"}}

		existing, err := ExistingTracks(context.Background(), single, "pl")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(existing) != 1 || len(single.PageCalls) != 1 {
			t.Errorf("expected one page with one track, got %d tracks over %d calls", len(existing), len(single.PageCalls))
		}
	})
}

func TestDifference(t *testing.T) {
	got := Difference(
		[]models.TrackRef{"a", "b", "c", "b", "d"},
		map[models.TrackRef]struct{}{"c": {}},
	)
	want := []models.TrackRef{"a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
