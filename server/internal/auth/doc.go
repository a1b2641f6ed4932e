// Package auth provides API key authentication for formcheck-server.
//
// APIKeyInterceptor(mode, header, key) guards the gRPC receiver and
// HTTPMiddleware(mode, header, key, next) guards the REST API and WebSocket
// hub. Both pass everything through when mode != "apikey" or key == "",
// which is useful for local development with auth disabled.
package auth
