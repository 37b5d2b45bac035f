package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/repositories"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the signed session reference.
const SessionCookie = "djwaifu_session"

const sessionIssuer = "djwaifu"

type sessionKey struct{}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session attached by [SessionManager.Middleware].
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*models.Session)
	return s, ok && s != nil
}

// SessionManager loads and persists web sessions.
//
// The cookie holds an HS256 JWT whose ID claim is the session id; session data stays in the store.
type SessionManager struct {
	store  repositories.SessionStore
	secret []byte
	ttl    time.Duration
	secure bool
	logger *log.Logger
}

// NewSessionManager creates a [SessionManager]. An empty secret is rejected.
func NewSessionManager(store repositories.SessionStore, secret string, ttl time.Duration, secure bool, logger *log.Logger) (*SessionManager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: session store is required", shared.ErrInvalidConfig)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret is empty", shared.ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SessionManager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		logger: logger,
	}, nil
}

// Middleware attaches the visitor's session to the request context, creating one when
// the cookie is missing, forged, expired or points at a deleted session.
func (m *SessionManager) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := m.Load(r)
			if err != nil {
				session, err = m.Start(w)
				if err != nil {
					m.logger.Error("failed to start session", "error", err)
					http.Error(w, "Session unavailable", http.StatusInternalServerError)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// Load resolves the session referenced by the request cookie.
func (m *SessionManager) Load(r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, fmt.Errorf("%w: no cookie", shared.ErrSessionNotFound)
	}

	id, err := m.parse(cookie.Value)
	if err != nil {
		return nil, err
	}
	return m.store.Get(id)
}

// Start creates a fresh session and sets its cookie.
func (m *SessionManager) Start(w http.ResponseWriter) (*models.Session, error) {
	session := models.NewSession(0, m.ttl)
	if err := m.store.Create(session); err != nil {
		return nil, err
	}

	signed, err := m.sign(session)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  session.ExpiresAt(),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// Save persists session changes.
func (m *SessionManager) Save(session *models.Session) error {
	return m.store.Update(session)
}

// Destroy deletes the session and expires its cookie.
func (m *SessionManager) Destroy(w http.ResponseWriter, session *models.Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	err := m.store.Delete(session.ID())
	if errors.Is(err, shared.ErrSessionNotFound) {
		return nil
	}
	return err
}

// Sweep removes expired sessions every interval until ctx is done.
func (m *SessionManager) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := m.store.DeleteExpired(now)
			if err != nil {
				m.logger.Warn("failed to sweep sessions", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

func (m *SessionManager) sign(session *models.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID(),
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt()),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt()),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

func (m *SessionManager) parse(value string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidSession, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", shared.ErrInvalidSession)
	}
	return claims.ID, nil
}
