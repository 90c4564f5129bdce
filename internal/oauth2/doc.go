// Package oauth2 obtains and caches the short-lived access token used for
// platform API calls.
//
// The platform's identity endpoint implements the OAuth2 JWT-bearer grant
// (RFC 7523): the service account's key id and secret sign an HS256 JWT
// assertion, which is exchanged for a bearer access token. The Provider
// performs that exchange; the Cache owns the single process-wide token,
// refreshing it before expiry and serializing concurrent refreshes so at
// most one token request is in flight at a time.
package oauth2
