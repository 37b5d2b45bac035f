package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/server"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

// checked reports whether an HTML checkbox was ticked.
func checked(r *http.Request, name string) bool {
	v := r.FormValue(name)
	return v == "on" || v == "true" || v == "1"
}

// themeRequest reads the fields shared by the generate and update forms.
func themeRequest(r *http.Request) (tasks.ThemeRequest, error) {
	statuses, err := models.ParseStatuses(r.Form["statuses"])
	if err != nil {
		return tasks.ThemeRequest{}, err
	}

	req := tasks.ThemeRequest{
		Username: strings.TrimSpace(r.FormValue("username")),
		Statuses: statuses,
		Selection: models.ThemeSelection{
			Openings: checked(r, "includeOps"),
			Endings:  checked(r, "includeEds"),
		},
	}
	if err := req.Validate(); err != nil {
		return tasks.ThemeRequest{}, err
	}
	return req, nil
}

// formError turns a validation error into the message shown above the form.
func formError(err error) string {
	switch {
	case errors.Is(err, shared.ErrInvalidStatus):
		return "Please select valid lists to include."
	case errors.Is(err, shared.ErrInvalidLink):
		return "Invalid playlist link."
	case errors.Is(err, shared.ErrInvalidImage):
		return "The cover must be a JPEG no larger than the size limit."
	case errors.Is(err, shared.ErrInvalidInput) && strings.Contains(err.Error(), "username"):
		return "Invalid username"
	default:
		return "Please select at least one theme type."
	}
}

// readCover returns the optional playlistImage upload, rejecting anything but a small JPEG.
func (a *App) readCover(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("playlistImage")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidImage, err)
	}
	defer file.Close()

	return a.validateCover(file, header)
}

func (a *App) validateCover(file multipart.File, header *multipart.FileHeader) ([]byte, error) {
	if header.Size == 0 {
		return nil, nil
	}
	if header.Size > a.maxImage {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", shared.ErrInvalidImage, header.Size, a.maxImage)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jpg" && ext != ".jpeg" {
		return nil, fmt.Errorf("%w: %q is not a JPEG file", shared.ErrInvalidImage, header.Filename)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, a.maxImage+1)); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidImage, err)
	}
	if int64(buf.Len()) > a.maxImage {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", shared.ErrInvalidImage, a.maxImage)
	}
	if ct := http.DetectContentType(buf.Bytes()); ct != "image/jpeg" {
		return nil, fmt.Errorf("%w: content type %s", shared.ErrInvalidImage, ct)
	}
	return buf.Bytes(), nil
}

// requireLogin renders a 401 page when the session has no Spotify token.
func (a *App) requireLogin(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	session, ok := server.SessionFromContext(r.Context())
	if !ok || !session.Authenticated() {
		a.renderError(w, r, fmt.Errorf("%w: connect Spotify first", shared.ErrNotAuthenticated), "Please connect your Spotify account first.")
		return nil, false
	}
	return session, true
}

func (a *App) generatePlaylist(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireLogin(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxImage+1<<20)
	if err := r.ParseMultipartForm(a.maxImage + 1<<20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		a.formFailure(w, r, "create", fmt.Errorf("%w: %v", shared.ErrInvalidImage, err))
		return
	}
	if err := r.ParseForm(); err != nil {
		a.formFailure(w, r, "create", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	themeReq, err := themeRequest(r)
	if err != nil {
		a.formFailure(w, r, "create", err)
		return
	}

	cover, err := a.readCover(r)
	if err != nil {
		a.formFailure(w, r, "create", err)
		return
	}

	req := tasks.GenerateRequest{
		ThemeRequest: themeReq,
		Playlist: models.NewPlaylist{
			Name:          strings.TrimSpace(r.FormValue("playlistName")),
			Description:   strings.TrimSpace(r.FormValue("playlistDescription")),
			Public:        checked(r, "isPublic"),
			Collaborative: checked(r, "isCollaborative"),
			Image:         cover,
		},
	}

	result, err := a.engineFor(r.Context(), session).Generate(r.Context(), req, nil)
	if err != nil {
		a.renderError(w, r, err, "Failed to create playlist")
		return
	}

	a.logger.Info("playlist generated", "playlist", result.Playlist.ID, "appended", result.TotalAppended, "desired", result.TotalDesired)
	a.storeResult(w, r, session, result)
}

func (a *App) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requireLogin(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		a.formFailure(w, r, "update", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	themeReq, err := themeRequest(r)
	if err != nil {
		a.formFailure(w, r, "update", err)
		return
	}

	req := tasks.UpdateRequest{
		ThemeRequest: themeReq,
		PlaylistLink: strings.TrimSpace(r.FormValue("playlistLink")),
	}

	result, err := a.engineFor(r.Context(), session).Update(r.Context(), req, nil)
	if errors.Is(err, shared.ErrInvalidLink) {
		a.formFailure(w, r, "update", err)
		return
	}
	if err != nil {
		a.renderError(w, r, err, "Failed to update playlist")
		return
	}

	a.logger.Info("playlist updated", "playlist", result.Playlist.ID, "appended", result.TotalAppended, "desired", result.TotalDesired)
	a.storeResult(w, r, session, result)
}

// formFailure re-renders a form with a 400 and the submitted values.
func (a *App) formFailure(w http.ResponseWriter, r *http.Request, page string, err error) {
	a.logger.Debug("rejected form", "page", page, "error", err)

	data := a.page(r)
	data.Error = formError(err)
	data.Form = formValues{
		Username:     r.FormValue("username"),
		PlaylistLink: r.FormValue("playlistLink"),
		Name:         r.FormValue("playlistName"),
		Description:  r.FormValue("playlistDescription"),
	}
	a.render(w, http.StatusBadRequest, page, data)
}

func (a *App) storeResult(w http.ResponseWriter, r *http.Request, session *models.Session, result *models.PlaylistResult) {
	session.SetLastResult(result)
	if err := a.sessions.Save(session); err != nil {
		a.renderError(w, r, err, "Could not save the playlist result")
		return
	}
	http.Redirect(w, r, "/spotify/result", http.StatusSeeOther)
}

func (a *App) result(w http.ResponseWriter, r *http.Request) {
	data := a.page(r)
	if data.Result == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.render(w, http.StatusOK, "result", data)
}
