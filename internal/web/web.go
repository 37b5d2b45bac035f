// Package web implements the server-rendered playlist generator.
//
// # Routes
//
//	GET  /                           → Home: connect to Spotify or pick create/update
//	GET  /create                     → Generate form
//	GET  /update                     → Update form
//	GET  /spotify/login              → OAuth initiation (state stored in the session)
//	GET  /spotify/callback           → OAuth completion, stores token and user id
//	POST /spotify/generate-playlist  → Multipart form with optional playlistImage JPEG
//	POST /spotify/update-playlist    → Appends missing theme songs to a playlist link
//	GET  /spotify/result             → Last playlist result
//	GET  /spotify/logout             → Destroys the session
//	GET  /spotify/clear              → Forgets the last result
//	GET  /api/users/{username}/themes → JSON theme entries of a watch list
//	GET  /api/anime/{id}/themes      → JSON raw and parsed themes of one anime
//
// Anything else answers a JSON 404.
//
// # State
//
// Every request carries a server-side session (see server.SessionManager) holding the
// Spotify token, the Spotify user id, the pending OAuth state and the last result.
// Tokens refreshed during a run are written back to the session.
//
// Generation runs synchronously inside the POST; the browser shows a loading notice
// until the redirect to the result page.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/server"
	"github.com/desertthunder/djwaifu/internal/services"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

var pages = []string{"home", "create", "update", "result", "error"}

// Options configures an [App].
type Options struct {
	Spotify    Spotify
	MAL        services.ThemeSource
	Sessions   *server.SessionManager
	Engine     tasks.EngineOpts
	MaxImageKB int
	Logger     *log.Logger
}

// App is the web application. It implements [http.Handler].
type App struct {
	spotify   Spotify
	mal       services.ThemeSource
	sessions  *server.SessionManager
	engine    tasks.EngineOpts
	maxImage  int64
	logger    *log.Logger
	templates map[string]*template.Template
	router    *server.BasicRouter
}

// New parses the templates and registers every route.
func New(opts Options) (*App, error) {
	if opts.Spotify == nil || opts.MAL == nil || opts.Sessions == nil {
		return nil, fmt.Errorf("%w: web app needs Spotify, MyAnimeList and sessions", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.MaxImageKB <= 0 {
		opts.MaxImageKB = 256
	}
	opts.Engine.Logger = opts.Logger

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	a := &App{
		spotify:   opts.Spotify,
		mal:       opts.MAL,
		sessions:  opts.Sessions,
		engine:    opts.Engine,
		maxImage:  int64(opts.MaxImageKB) * 1024,
		logger:    opts.Logger,
		templates: templates,
		router:    server.NewBasicRouter(),
	}
	a.routes()
	return a, nil
}

func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("base").Funcs(template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).ParseFS(templateFiles, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(templateFiles, "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		templates[page] = t
	}
	return templates, nil
}

func (a *App) routes() {
	a.router.Use(server.Recover(a.logger), server.Logging(a.logger), a.sessions.Middleware())

	a.router.Handle(http.MethodGet, "/", http.HandlerFunc(a.home))
	a.router.Handle(http.MethodGet, "/create", http.HandlerFunc(a.createForm))
	a.router.Handle(http.MethodGet, "/update", http.HandlerFunc(a.updateForm))

	a.router.Handle(http.MethodGet, "/spotify/login", http.HandlerFunc(a.login))
	a.router.Handle(http.MethodGet, "/spotify/callback", http.HandlerFunc(a.callback))
	a.router.Handle(http.MethodPost, "/spotify/generate-playlist", http.HandlerFunc(a.generatePlaylist))
	a.router.Handle(http.MethodPost, "/spotify/update-playlist", http.HandlerFunc(a.updatePlaylist))
	a.router.Handle(http.MethodGet, "/spotify/result", http.HandlerFunc(a.result))
	a.router.Handle(http.MethodGet, "/spotify/logout", http.HandlerFunc(a.logout))
	a.router.Handle(http.MethodGet, "/spotify/clear", http.HandlerFunc(a.clear))

	a.router.Handle(http.MethodGet, "/api/users/{username}/themes", http.HandlerFunc(a.userThemes))
	a.router.Handle(http.MethodGet, "/api/anime/{id}/themes", http.HandlerFunc(a.animeThemes))

	static, _ := fs.Sub(staticFiles, "static")
	a.router.Handle(http.MethodGet, "/public/", http.StripPrefix("/public/", http.FileServerFS(static)))

	a.router.NotFound(http.HandlerFunc(notFound))
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// pageData is the view model shared by every page.
type pageData struct {
	Connected bool
	UserID    string
	Error     string
	Code      int
	Result    *models.PlaylistResult
	Form      formValues
	Statuses  []models.WatchStatus
}

// formValues echoes submitted fields back into a re-rendered form.
type formValues struct {
	Username     string
	PlaylistLink string
	Name         string
	Description  string
}

func (a *App) page(r *http.Request) pageData {
	data := pageData{Statuses: models.AllStatuses}
	if s, ok := server.SessionFromContext(r.Context()); ok {
		data.Connected = s.Authenticated()
		data.UserID = s.SpotifyUserID()
		data.Result = s.LastResult()
	}
	return data
}

func (a *App) render(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := a.templates[name]
	if !ok {
		http.Error(w, "Unknown page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		a.logger.Error("failed to render template", "page", name, "error", err)
	}
}

// renderError shows the generic failure page for err.
func (a *App) renderError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	a.logger.Error(message, "path", r.URL.Path, "status", status, "error", err)

	data := a.page(r)
	data.Code = status
	data.Error = message
	a.render(w, status, "error", data)
}

// statusFor maps sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidStatus),
		errors.Is(err, shared.ErrInvalidLink),
		errors.Is(err, shared.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "home", a.page(r))
}

func (a *App) createForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "create", a.page(r))
}

func (a *App) updateForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "update", a.page(r))
}
