// MyAnimeList v2 API implementation of [ThemeSource]
//
// Requests are authenticated with the application's client id only; no user login is involved.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"golang.org/x/time/rate"
)

const malBaseURL = "https://api.myanimelist.net/v2"

// malListLimit is the largest page the animelist endpoint serves.
const malListLimit = 1000

type malNode struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type malListStatus struct {
	Status string `json:"status"`
}

type malListEntry struct {
	Node       malNode       `json:"node"`
	ListStatus malListStatus `json:"list_status"`
}

type malPaging struct {
	Next string `json:"next"`
}

// MALAnimeList represents one page of a user's anime list.
type MALAnimeList struct {
	Data   []malListEntry `json:"data"`
	Paging malPaging      `json:"paging"`
}

// MALTheme is one opening or ending annotation.
type MALTheme struct {
	ID      int    `json:"id"`
	AnimeID int    `json:"anime_id"`
	Text    string `json:"text"`
}

// MALAnime represents the anime details endpoint restricted to theme fields.
// Theme slices are nil when MyAnimeList omits them.
type MALAnime struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	OpeningThemes []MALTheme `json:"opening_themes"`
	EndingThemes  []MALTheme `json:"ending_themes"`
}

// MyAnimeListService implements [ThemeSource] against the MyAnimeList v2 API.
type MyAnimeListService struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMyAnimeListService creates a MyAnimeList client.
//
// A positive requestsPerSecond paces every request.
func NewMyAnimeListService(clientID, baseURL string, client *http.Client, requestsPerSecond float64) (*MyAnimeListService, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing MyAnimeList client_id", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = malBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	s := &MyAnimeListService{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		clientID:   clientID,
		httpClient: client,
	}
	if requestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return s, nil
}

func (s *MyAnimeListService) Name() string {
	return "MyAnimeList"
}

// get performs a GET request and decodes the JSON response into result.
//
// endpoint is either a path below the API root or an absolute paging URL.
func (s *MyAnimeListService) get(ctx context.Context, endpoint string, result any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	fullURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		fullURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MAL-CLIENT-ID", s.clientID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: myanimelist returned 404 for %s", shared.ErrInvalidInput, endpoint)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: myanimelist returned %d", shared.ErrInvalidCredentials, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: myanimelist status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// AnimeList returns the user's list entries whose status is in statuses; empty means all.
//
// Every page is followed so lists beyond one page are complete.
func (s *MyAnimeListService) AnimeList(ctx context.Context, username string, statuses []models.WatchStatus) ([]models.Anime, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}

	allowed := make(map[models.WatchStatus]bool, len(statuses))
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: %q", shared.ErrInvalidStatus, st)
		}
		allowed[st] = true
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprint(malListLimit))
	params.Set("fields", "list_status")
	endpoint := fmt.Sprintf("/users/%s/animelist?%s", url.PathEscape(username), params.Encode())

	var list []models.Anime
	for endpoint != "" {
		var page MALAnimeList
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, entry := range page.Data {
			status := models.WatchStatus(entry.ListStatus.Status)
			if len(allowed) > 0 && !allowed[status] {
				continue
			}
			list = append(list, models.Anime{ID: entry.Node.ID, Title: entry.Node.Title, Status: status})
		}

		endpoint = page.Paging.Next
	}

	return list, nil
}

// Anime retrieves the theme fields of one anime.
func (s *MyAnimeListService) Anime(ctx context.Context, animeID int) (*MALAnime, error) {
	if animeID < 0 {
		return nil, fmt.Errorf("%w: anime id must not be negative", shared.ErrInvalidInput)
	}

	var anime MALAnime
	endpoint := fmt.Sprintf("/anime/%d?fields=opening_themes,ending_themes", animeID)
	if err := s.get(ctx, endpoint, &anime); err != nil {
		return nil, err
	}
	return &anime, nil
}

// AnimeThemes returns the raw opening and ending annotations of one anime.
func (s *MyAnimeListService) AnimeThemes(ctx context.Context, animeID int) (*models.ThemeSet, error) {
	anime, err := s.Anime(ctx, animeID)
	if err != nil {
		return nil, err
	}

	return &models.ThemeSet{
		AnimeID:  anime.ID,
		Title:    anime.Title,
		Openings: themeTexts(anime.OpeningThemes),
		Endings:  themeTexts(anime.EndingThemes),
	}, nil
}

func themeTexts(themes []MALTheme) []string {
	if themes == nil {
		return nil
	}
	texts := make([]string, 0, len(themes))
	for _, t := range themes {
		texts = append(texts, t.Text)
	}
	return texts
}
