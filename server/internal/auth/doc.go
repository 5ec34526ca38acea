// Package auth provides API-key authentication middleware for the goldensig
// HTTP API and WebSocket stream.
//
// APIKey(mode, header, key) returns net/http middleware that validates the
// key from the named request header. Browser WebSocket clients cannot set
// headers, so the api_key query parameter is accepted as well.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). A missing or incorrect key is
// answered with 401 immediately.
package auth
