package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"golang.org/x/oauth2"
)

// sessionRecord is the serialized form of a [models.Session], shared by both stores.
type sessionRecord struct {
	ID            string                 `json:"id"`
	Sequence      int                    `json:"sequence"`
	SpotifyUserID string                 `json:"spotify_user_id"`
	AccessToken   string                 `json:"access_token"`
	RefreshToken  string                 `json:"refresh_token"`
	TokenExpiry   *time.Time             `json:"token_expiry,omitempty"`
	OAuthState    string                 `json:"oauth_state"`
	LastResult    *models.PlaylistResult `json:"last_result,omitempty"`
	ExpiresAt     time.Time              `json:"expires_at"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func newSessionRecord(s *models.Session) sessionRecord {
	rec := sessionRecord{
		ID:            s.ID(),
		Sequence:      s.Sequence(),
		SpotifyUserID: s.SpotifyUserID(),
		OAuthState:    s.OAuthState(),
		LastResult:    s.LastResult(),
		ExpiresAt:     s.ExpiresAt(),
		CreatedAt:     s.CreatedAt(),
		UpdatedAt:     s.UpdatedAt(),
	}
	if tok := s.Token(); tok != nil {
		rec.AccessToken = tok.AccessToken
		rec.RefreshToken = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			expiry := tok.Expiry
			rec.TokenExpiry = &expiry
		}
	}
	return rec
}

func (rec sessionRecord) session() *models.Session {
	s := models.NewSession(rec.Sequence, 0)
	s.SetID(rec.ID)
	s.SetSpotifyUserID(rec.SpotifyUserID)
	s.SetOAuthState(rec.OAuthState)
	s.SetLastResult(rec.LastResult)
	s.SetExpiresAt(rec.ExpiresAt)
	s.SetCreatedAt(rec.CreatedAt)
	s.SetUpdatedAt(rec.UpdatedAt)

	if rec.AccessToken != "" || rec.RefreshToken != "" {
		tok := &oauth2.Token{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken, TokenType: "Bearer"}
		if rec.TokenExpiry != nil {
			tok.Expiry = *rec.TokenExpiry
		}
		s.SetToken(tok)
	}
	return s
}

// SessionRepository implements [SessionStore] on the SQLite sessions table.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session with generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	session.SetID(shared.GenerateID())
	session.SetSequence(sequence)

	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	rec := newSessionRecord(session)
	lastResult, err := encodeResult(rec.LastResult)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (
			id, sequence, spotify_user_id, access_token, refresh_token, token_expiry,
			oauth_state, last_result, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID, rec.Sequence, rec.SpotifyUserID, rec.AccessToken, rec.RefreshToken, rec.TokenExpiry,
		rec.OAuthState, lastResult, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a live session by ID. Deleted and expired sessions are reported as [shared.ErrSessionNotFound].
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, sequence, spotify_user_id, access_token, refresh_token, token_expiry,
			oauth_state, last_result, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = ? AND deleted_at IS NULL
	`

	session, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if session.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s expired", shared.ErrSessionNotFound, id)
	}
	return session, nil
}

// Update writes the mutable session fields back to the database
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	rec := newSessionRecord(session)
	lastResult, err := encodeResult(rec.LastResult)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET spotify_user_id = ?, access_token = ?, refresh_token = ?, token_expiry = ?,
			oauth_state = ?, last_result = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.SpotifyUserID, rec.AccessToken, rec.RefreshToken, rec.TokenExpiry,
		rec.OAuthState, lastResult, rec.ExpiresAt.UTC(), now.UTC(), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	return nil
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	return nil
}

// List retrieves live sessions, optionally filtered by "spotify_user_id"
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `
		SELECT id, sequence, spotify_user_id, access_token, refresh_token, token_expiry,
			oauth_state, last_result, expires_at, created_at, updated_at
		FROM sessions
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if userID, ok := criteria["spotify_user_id"].(string); ok && userID != "" {
		query += " AND spotify_user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// DeleteExpired soft-deletes every live session whose expiry is before now.
func (r *SessionRepository) DeleteExpired(now time.Time) (int, error) {
	sessions, err := r.List(nil)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range sessions {
		if !s.Expired(now) {
			continue
		}
		if err := r.Delete(s.ID()); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		rec         sessionRecord
		tokenExpiry sql.NullTime
		lastResult  string
	)

	err := row.Scan(
		&rec.ID, &rec.Sequence, &rec.SpotifyUserID, &rec.AccessToken, &rec.RefreshToken, &tokenExpiry,
		&rec.OAuthState, &lastResult, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tokenExpiry.Valid {
		rec.TokenExpiry = &tokenExpiry.Time
	}
	if lastResult != "" {
		var result models.PlaylistResult
		if err := json.Unmarshal([]byte(lastResult), &result); err != nil {
			return nil, fmt.Errorf("failed to decode last result: %w", err)
		}
		rec.LastResult = &result
	}

	return rec.session(), nil
}

func encodeResult(result *models.PlaylistResult) (string, error) {
	if result == nil {
		return "", nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode last result: %w", err)
	}
	return string(data), nil
}
