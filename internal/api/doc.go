// Package api exposes the application batch runner over HTTP. Handlers
// validate requests and map runner errors to stable error codes. The worker
// route is guarded by a shared secret instead of a user token.
package api
