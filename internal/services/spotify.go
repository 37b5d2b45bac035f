// Spotify API implementation of [PlaylistService]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// searchLimit is how many candidates are ranked per search.
	searchLimit = 5
	// pageLimit is the largest page the playlist items endpoint serves.
	pageLimit = 100
)

// SpotifyScopes are the permissions requested at login.
var SpotifyScopes = []string{
	"user-read-private",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"ugc-image-upload",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Owner         Owner             `json:"owner"`
	Public        bool              `json:"public"`
	Collaborative bool              `json:"collaborative"`
	SnapshotID    string            `json:"snapshot_id"`
	Tracks        playlistTracksRef `json:"tracks"`
	Images        []SpotifyImage    `json:"images"`
	ExternalURLs  externalURLs      `json:"external_urls"`
	URI           string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
// Track is nil for items Spotify can no longer resolve.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks represents a paginated response of playlist items.
type SpotifyPlaylistTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// SpotifyService implements [PlaylistService] for Spotify API interactions.
// Uses [oauth2] for authentication and refreshes expired tokens transparently.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	credentials map[string]string

	mu             sync.RWMutex
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the client at another API root, used against test servers.
func WithBaseURL(base string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(base, "/") }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(tokenURL string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = tokenURL }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/spotify/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects either an "access_token" (optionally with "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.setToken(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.OAuthenticate(ctx, authCode)
		if err != nil {
			return err
		}
		s.setToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// WithToken returns a copy of the service bound to token, sharing configuration
// and the refresh callback. The web app creates one per request from the session token.
func (s *SpotifyService) WithToken(ctx context.Context, token *oauth2.Token) *SpotifyService {
	s.mu.RLock()
	cp := &SpotifyService{
		config:         s.config,
		baseURL:        s.baseURL,
		credentials:    s.credentials,
		onTokenRefresh: s.onTokenRefresh,
		httpClient:     http.DefaultClient,
	}
	s.mu.RUnlock()
	cp.setToken(ctx, token)
	return cp
}

// SetTokenRefreshCallback registers fn to receive every newly refreshed token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) setToken(ctx context.Context, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.tokenSource = &refreshableTokenSource{
		base:    s.config.TokenSource(ctx, token),
		current: token,
		notify:  s.refreshed,
	}
	s.httpClient = oauth2.NewClient(ctx, s.tokenSource)
}

func (s *SpotifyService) refreshed(t *oauth2.Token) {
	s.mu.Lock()
	s.token = t
	fn := s.onTokenRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(t)
	}
}

// Token returns the current token, which may have been refreshed since authentication.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports tokens that
// differ from the last one seen.
type refreshableTokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	current *oauth2.Token
	notify  func(*oauth2.Token)
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	tok, err := r.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	r.mu.Lock()
	changed := r.current == nil || tok.AccessToken != r.current.AccessToken
	r.current = tok
	r.mu.Unlock()

	if changed && r.notify != nil {
		r.notify(tok)
	}
	return tok, nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 configuration for callback handlers.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// OAuthenticate exchanges an authorization code for a token.
func (s *SpotifyService) OAuthenticate(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// endpoint is either a path below the API root or an absolute URL returned by Spotify (paging links).
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	s.mu.RLock()
	client, authenticated := s.httpClient, s.token != nil
	s.mu.RUnlock()
	if !authenticated {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case rawBody:
		reader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: spotify returned 403", shared.ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type rawBody struct {
	data        []byte
	contentType string
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUserID returns the id of the authenticated user.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Search runs a track search and returns the raw candidates.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) ([]SpotifyTrack, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks.Items, nil
}

// SearchTrack searches for a track by title and artist and returns the URI of the best candidate.
//
// An empty artist searches by title alone.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (models.TrackRef, error) {
	song := models.Song{Title: title, Artist: artist}
	candidates, err := s.Search(ctx, song.Query(), searchLimit)
	if err != nil {
		return "", err
	}

	best := BestMatch(song, candidates)
	if best == nil {
		return "", fmt.Errorf("%w: %s", shared.ErrTrackNotFound, song.String())
	}
	return models.TrackRef(best.URI), nil
}

// BestMatch ranks candidates by title and artist similarity. Ties keep Spotify's order.
func BestMatch(song models.Song, candidates []SpotifyTrack) *SpotifyTrack {
	var best *SpotifyTrack
	bestScore := -1
	for i := range candidates {
		c := &candidates[i]
		if c.URI == "" {
			continue
		}

		score := shared.Similarity(song.Title, c.Name) * 2
		if song.Artist != "" && len(c.Artists) > 0 {
			artistScore := 0
			for _, a := range c.Artists {
				artistScore = max(artistScore, shared.Similarity(song.Artist, a.Name))
			}
			score += artistScore
		}

		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return sp.toModel(), nil
}

func (sp *SpotifyPlaylist) toModel() *models.Playlist {
	pl := &models.Playlist{
		ID:            sp.ID,
		Name:          sp.Name,
		Description:   sp.Description,
		OwnerID:       sp.Owner.ID,
		URL:           sp.ExternalURLs.Spotify,
		Public:        sp.Public,
		Collaborative: sp.Collaborative,
		TrackCount:    sp.Tracks.Total,
	}
	if len(sp.Images) > 0 {
		pl.ImageURL = sp.Images[0].URL
	}
	return pl
}

// CreatePlaylist creates an empty playlist owned by userID. Collaborative playlists are created private.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID string, opts models.NewPlaylist) (*models.Playlist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if opts.Collaborative {
		opts.Public = false
	}

	body := map[string]any{
		"name":          opts.Name,
		"description":   opts.Description,
		"public":        opts.Public,
		"collaborative": opts.Collaborative,
	}

	var created SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}
	return created.toModel(), nil
}

// PlaylistTracksPage returns one page of a playlist's track URIs.
//
// The page token is the absolute "next" URL from the previous page.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, playlistID, pageToken string) (*models.TrackPage, error) {
	endpoint := pageToken
	if endpoint == "" {
		endpoint = fmt.Sprintf("/playlists/%s/tracks?limit=%d&fields=items(track(uri)),next", url.PathEscape(playlistID), pageLimit)
	}

	var response SpotifyPlaylistTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	page := &models.TrackPage{Items: make([]models.TrackRef, 0, len(response.Items))}
	for _, item := range response.Items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}
		page.Items = append(page.Items, models.TrackRef(item.Track.URI))
	}
	if response.Next != nil {
		page.Next = *response.Next
	}
	return page, nil
}

// AddTracks appends up to 100 URIs and returns the new snapshot id.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []models.TrackRef) (string, error) {
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no uris provided", shared.ErrInvalidInput)
	}
	if len(uris) > pageLimit {
		return "", fmt.Errorf("%w: maximum %d uris per request", shared.ErrInvalidInput, pageLimit)
	}

	body := map[string]any{"uris": uris}
	var response snapshotResponse
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

// UploadCover replaces the playlist image with a base64 encoded JPEG.
func (s *SpotifyService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	if len(jpeg) == 0 {
		return fmt.Errorf("%w: empty image", shared.ErrInvalidImage)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(jpeg)))
	base64.StdEncoding.Encode(encoded, jpeg)

	endpoint := fmt.Sprintf("/playlists/%s/images", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPut, endpoint, rawBody{data: encoded, contentType: "image/jpeg"}, nil)
}

var (
	playlistURLPattern = regexp.MustCompile(`playlist[/:]([A-Za-z0-9]+)`)
	playlistIDPattern  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ParsePlaylistID extracts a playlist id from an open.spotify.com link, a spotify:playlist: URI or a bare id.
func ParsePlaylistID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty playlist link", shared.ErrInvalidLink)
	}
	if m := playlistURLPattern.FindStringSubmatch(link); m != nil {
		return m[1], nil
	}
	if playlistIDPattern.MatchString(link) {
		return link, nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrInvalidLink, link)
}
