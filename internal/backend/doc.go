// Package backend is the HTTP client for the tasks/notes service.
//
// Public endpoints (signup, login, token refresh) need no credentials. Every
// other call reads a bearer token from the client's TokenSource and fails with
// ErrNoToken, without touching the network, when none is present.
package backend
