// Package server runs the short-lived HTTP listener that can receive the authorization redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] wraps
// [http.ServeMux], filters methods and applies [Middleware] in reverse order (last added executes first).
// [RequestLogger] records each request without its query string.
//
// # Callback Listener
//
// [CallbackListener] binds the host and port of the configured redirect URI and serves its path with
// a [CallbackHandler]. The first request carrying both code and state is handed to the caller, which
// checks the state during the token exchange. Requests missing either are answered with 400 and the
// listener keeps waiting. A redirect with an `error` parameter ends the flow with an authentication error.
//
// The listener shuts down as soon as it has a result or its context ends.
package server
