package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBasicRouter(t *testing.T) {
	ok := func(body string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
	}

	router := NewBasicRouter()
	router.Handle(http.MethodGet, "/", ok("home"))
	router.Handle(http.MethodGet, "/create", ok("create form"))
	router.Handle(http.MethodPost, "/create", ok("created"))
	router.Handle(http.MethodGet, "/api/anime/{id}/themes", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("anime " + r.PathValue("id")))
	}))
	router.NotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	tc := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "root", method: http.MethodGet, path: "/", status: http.StatusOK, body: "home"},
		{name: "get route", method: http.MethodGet, path: "/create", status: http.StatusOK, body: "create form"},
		{name: "post route", method: http.MethodPost, path: "/create", status: http.StatusOK, body: "created"},
		{name: "wildcard", method: http.MethodGet, path: "/api/anime/42/themes", status: http.StatusOK, body: "anime 42"},
		{name: "wrong method", method: http.MethodDelete, path: "/create", status: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", status: http.StatusNotFound, body: "missing"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}

	t.Run("Allow header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/create", nil))
		if allow := rec.Header().Get("Allow"); !strings.Contains(allow, "GET") || !strings.Contains(allow, "POST") {
			t.Errorf("expected GET and POST in Allow, got %q", allow)
		}
	})
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(mark("first"), mark("second"))
	router.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := strings.Join(order, ","); got != "first,second,handler" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestRecover(t *testing.T) {
	var buf strings.Builder
	handler := Recover(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "handler panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestLogging(t *testing.T) {
	var buf strings.Builder
	handler := Logging(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))

	out := buf.String()
	if !strings.Contains(out, "/tea") || !strings.Contains(out, "418") {
		t.Errorf("expected path and status in log, got %q", out)
	}
}
