// Package server provides HTTP routing, middleware, sessions and OAuth callback handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering,
// answering 405 for known paths and delegating unknown paths to the [BasicRouter.NotFound] handler.
//
// # Sessions
//
// [SessionManager] keeps web sessions in a repositories.SessionStore and hands the browser an
// HS256-signed JWT whose ID claim names the session. Handlers read the session with [SessionFromContext].
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for the CLI login.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
