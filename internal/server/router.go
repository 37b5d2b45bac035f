package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing. Paths may carry ServeMux
// wildcards such as "/api/anime/{id}/themes".
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	methods     map[string][]string
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		methods:     map[string][]string{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware only wraps handlers registered after the call.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// The same path may be registered once per method. "/" matches only the root.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	pattern := path
	if pattern == "/" {
		pattern = "/{$}"
	}

	method = strings.ToUpper(method)
	first := len(r.methods[pattern]) == 0
	r.methods[pattern] = append(r.methods[pattern], method)

	r.mux.Handle(method+" "+pattern, r.Apply(handler))
	if !first {
		return
	}

	// Non-matching methods fall through to this pattern and get a 405.
	r.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", strings.Join(r.methods[pattern], ", "))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}))
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// NotFound registers handler for every path no other route matches.
func (r *BasicRouter) NotFound(handler http.Handler) {
	r.mux.Handle("/", r.Apply(handler))
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
