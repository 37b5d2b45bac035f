// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
)

// MockPlaylistService is a test double for [services.PlaylistService].
//
// Search results are keyed by song title; pages are keyed by page token ("" is the first page).
// It is safe for concurrent use.
type MockPlaylistService struct {
	mu sync.Mutex

	Results   map[string]models.TrackRef
	SearchErr map[string]error
	Pages     map[string]models.TrackPage
	PageErr   error
	AddErr    error
	FailBatch int // 1-based batch that fails with AddErr; 0 fails every batch
	NoSnap    bool
	UserID    string
	UserErr   error
	Playlists map[string]*models.Playlist
	CreateErr error
	CoverErr  error

	SearchCalls []string
	PageCalls   []string
	AddCalls    [][]models.TrackRef
	Created     []models.NewPlaylist
	Covers      map[string][]byte
}

// NewMockPlaylistService creates a mock acting as userID.
func NewMockPlaylistService(userID string) *MockPlaylistService {
	return &MockPlaylistService{
		Results:   map[string]models.TrackRef{},
		SearchErr: map[string]error{},
		Pages:     map[string]models.TrackPage{},
		UserID:    userID,
		Playlists: map[string]*models.Playlist{},
		Covers:    map[string][]byte{},
	}
}

func (m *MockPlaylistService) Name() string { return "mock" }

func (m *MockPlaylistService) SearchTrack(ctx context.Context, title, artist string) (models.TrackRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls = append(m.SearchCalls, title)

	if err, ok := m.SearchErr[title]; ok {
		return "", err
	}
	if ref, ok := m.Results[title]; ok && ref != "" {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrTrackNotFound, title)
}

func (m *MockPlaylistService) PlaylistTracksPage(ctx context.Context, playlistID, pageToken string) (*models.TrackPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PageCalls = append(m.PageCalls, pageToken)

	if m.PageErr != nil {
		return nil, m.PageErr
	}
	page, ok := m.Pages[pageToken]
	if !ok {
		return &models.TrackPage{}, nil
	}
	return &page, nil
}

func (m *MockPlaylistService) AddTracks(ctx context.Context, playlistID string, uris []models.TrackRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls = append(m.AddCalls, append([]models.TrackRef(nil), uris...))

	if m.AddErr != nil && (m.FailBatch == 0 || m.FailBatch == len(m.AddCalls)) {
		return "", m.AddErr
	}
	if m.NoSnap {
		return "", nil
	}
	if pl, ok := m.Playlists[playlistID]; ok {
		pl.TrackCount += len(uris)
	}
	return fmt.Sprintf("snapshot-%d", len(m.AddCalls)), nil
}

func (m *MockPlaylistService) CurrentUserID(ctx context.Context) (string, error) {
	if m.UserErr != nil {
		return "", m.UserErr
	}
	return m.UserID, nil
}

func (m *MockPlaylistService) CreatePlaylist(ctx context.Context, userID string, opts models.NewPlaylist) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, opts)

	pl := &models.Playlist{
		ID:            fmt.Sprintf("created-%d", len(m.Created)),
		Name:          opts.Name,
		Description:   opts.Description,
		OwnerID:       userID,
		Public:        opts.Public,
		Collaborative: opts.Collaborative,
	}
	m.Playlists[pl.ID] = pl
	cp := *pl
	return &cp, nil
}

func (m *MockPlaylistService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	cp := *pl
	return &cp, nil
}

func (m *MockPlaylistService) UploadCover(ctx context.Context, playlistID string, jpeg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CoverErr != nil {
		return m.CoverErr
	}
	m.Covers[playlistID] = jpeg
	return nil
}

// MockThemeSource is a test double for [services.ThemeSource].
type MockThemeSource struct {
	Anime     []models.Anime
	Themes    map[int]*models.ThemeSet
	ListErr   error
	ThemesErr error

	Requested [][]models.WatchStatus
}

func (m *MockThemeSource) AnimeList(ctx context.Context, username string, statuses []models.WatchStatus) ([]models.Anime, error) {
	m.Requested = append(m.Requested, statuses)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Anime, nil
}

func (m *MockThemeSource) AnimeThemes(ctx context.Context, animeID int) (*models.ThemeSet, error) {
	if m.ThemesErr != nil {
		return nil, m.ThemesErr
	}
	return m.Themes[animeID], nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
