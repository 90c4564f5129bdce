package oauth2

import "time"

// expiryMargin is subtracted from a token's lifetime so a token nearing
// expiry is never handed to an outbound call that might outlive it.
const expiryMargin = 60 * time.Second

// TokenResponse represents an OAuth2 token response from the identity
// endpoint, per RFC 6749.
type TokenResponse struct {
	// AccessToken is the access token issued by the authorization server
	AccessToken string `json:"access_token"`
	// TokenType is the type of token issued (typically "Bearer")
	TokenType string `json:"token_type"`
	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`
}

// Token is the cached access token with its computed expiry instant.
type Token struct {
	// AccessToken is the token string used for API authentication
	AccessToken string
	// TokenType specifies how the token should be used (e.g., "Bearer")
	TokenType string
	// Expiry is the time when the access token expires
	Expiry time.Time
}

// IsExpired returns true if the token is expired or inside the safety
// margin before its expiry. Tokens with zero expiry never expire.
func (t *Token) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry.Add(-expiryMargin))
}
