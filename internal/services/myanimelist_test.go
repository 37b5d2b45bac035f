package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	tu "github.com/desertthunder/djwaifu/internal/testing"
)

func newTestMAL(t *testing.T, handler http.HandlerFunc) (*MyAnimeListService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewMyAnimeListService("mal_client", server.URL, server.Client(), 0)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv, server
}

func TestNewMyAnimeListService(t *testing.T) {
	t.Run("Missing Client ID", func(t *testing.T) {
		_, err := NewMyAnimeListService("", "", nil, 0)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		srv, err := NewMyAnimeListService("id", "", nil, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if srv.baseURL != malBaseURL {
			t.Errorf("expected default base URL, got %s", srv.baseURL)
		}
		if srv.limiter == nil {
			t.Error("expected limiter for a positive rate")
		}
		if srv.Name() != "MyAnimeList" {
			t.Errorf("unexpected name %s", srv.Name())
		}
	})

	t.Run("Service Interface", func(t *testing.T) {
		srv, _ := NewMyAnimeListService("id", "", nil, 0)
		var _ ThemeSource = srv
	})
}

func TestMyAnimeListAnimeList(t *testing.T) {
	ctx := context.Background()

	t.Run("follows paging and filters statuses", func(t *testing.T) {
		var server *httptest.Server
		calls := 0
		srv, server := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if got := r.Header.Get("X-MAL-CLIENT-ID"); got != "mal_client" {
				t.Errorf("expected client id header, got %q", got)
			}
			if r.URL.Path != "/users/someone/animelist" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("offset") == "2" {
				fmt.Fprint(w, `{"data":[{"node":{"id":3,"title":"C"},"list_status":{"status":"completed"}}],"paging":{}}`)
				return
			}
			if q := r.URL.Query(); q.Get("fields") != "list_status" || q.Get("limit") != "1000" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			fmt.Fprintf(w, `{"data":[
				{"node":{"id":1,"title":"A"},"list_status":{"status":"completed"}},
				{"node":{"id":2,"title":"B"},"list_status":{"status":"dropped"}}
			],"paging":{"next":"%s/users/someone/animelist?offset=2"}}`, server.URL)
		})

		list, err := srv.AnimeList(ctx, "someone", []models.WatchStatus{models.StatusCompleted})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 page requests, got %d", calls)
		}
		if len(list) != 2 || list[0].ID != 1 || list[1].ID != 3 {
			t.Errorf("unexpected list %+v", list)
		}
	})

	t.Run("empty statuses keeps every entry", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[
				{"node":{"id":1,"title":"A"},"list_status":{"status":"completed"}},
				{"node":{"id":2,"title":"B"},"list_status":{"status":"plan_to_watch"}}
			]}`)
		})

		list, err := srv.AnimeList(ctx, "someone", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 2 || list[1].Status != models.StatusPlanToWatch {
			t.Errorf("unexpected list %+v", list)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := srv.AnimeList(ctx, "nobody", nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejected client id", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := srv.AnimeList(ctx, "someone", nil)
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("validates input before requesting", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		if _, err := srv.AnimeList(ctx, "  ", nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := srv.AnimeList(ctx, "someone", []models.WatchStatus{"binged"}); !errors.Is(err, shared.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestMyAnimeListAnimeThemes(t *testing.T) {
	ctx := context.Background()

	t.Run("collects opening and ending text", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/anime/16498" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("fields"); got != "opening_themes,ending_themes" {
				t.Errorf("unexpected fields %q", got)
			}
			fmt.Fprint(w, `{"id":16498,"title":"Shingeki no Kyojin",
				"opening_themes":[{"id":1,"anime_id":16498,"text":"#1: \"Guren no Yumiya\" by Linked Horizon (eps 1-13)"}],
				"ending_themes":[{"id":2,"anime_id":16498,"text":"#1: \"Utsukushiki Zankoku na Sekai\" by Yoko Hikasa"}]}`)
		})

		set, err := srv.AnimeThemes(ctx, 16498)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if set.Title != "Shingeki no Kyojin" || len(set.Openings) != 1 || len(set.Endings) != 1 {
			t.Fatalf("unexpected theme set %+v", set)
		}
		if !strings.Contains(set.Openings[0], "Guren no Yumiya") {
			t.Errorf("unexpected opening %q", set.Openings[0])
		}
	})

	t.Run("missing theme lists stay nil", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":5,"title":"Quiet Show"}`)
		})

		set, err := srv.AnimeThemes(ctx, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if set.Openings != nil || set.Endings != nil {
			t.Errorf("expected nil theme lists, got %+v", set)
		}
	})

	t.Run("negative id", func(t *testing.T) {
		srv, _ := newTestMAL(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		if _, err := srv.AnimeThemes(ctx, -1); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		srv, err := NewMyAnimeListService("id", "http://mal.invalid", client, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := srv.AnimeThemes(ctx, 1); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("unreadable body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(&tu.FCloser{}), Header: http.Header{}}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		srv, _ := NewMyAnimeListService("id", "http://mal.invalid", client, 0)

		_, err := srv.AnimeThemes(ctx, 1)
		if err == nil || !strings.Contains(err.Error(), "decode") {
			t.Errorf("expected decode error, got %v", err)
		}
	})
}
