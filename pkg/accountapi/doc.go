// Package accountapi is the HTTP client for the external account service:
// app manifests, proof-for-token exchange, user state and the account list.
// A 401 from the service is reported as [ErrUnauthorized] so cache layers
// can drop the session token and retry later.
package accountapi
