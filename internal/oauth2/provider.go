package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"twin-bridge/internal/circuitbreaker"
	"twin-bridge/internal/common/errors"
	commonhttp "twin-bridge/internal/common/http"
	"twin-bridge/internal/common/logging"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionLifetime bounds the validity of the signed assertion, matching
// the lifetime the identity endpoint grants the resulting access token.
const assertionLifetime = time.Hour

// Credentials identifies the service account used for the token exchange.
type Credentials struct {
	Email  string
	KeyID  string
	Secret string
}

// Provider performs the JWT-bearer grant against the identity endpoint.
type Provider struct {
	creds        Credentials
	authEndpoint string
	httpClient   *http.Client
	breaker      *circuitbreaker.GoBreakerAdapter
	logger       logging.Logger
}

// NewProvider creates a token provider for the given service account.
func NewProvider(creds Credentials, authEndpoint string, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Provider{
		creds:        creds,
		authEndpoint: authEndpoint,
		httpClient:   commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		breaker:      circuitbreaker.NewGoBreaker("oauth2-provider", circuitbreaker.OAuthConfig, logger),
		logger:       logger,
	}
}

// Fetch exchanges a signed assertion for a new access token. Network
// failures, non-2xx responses, and malformed bodies all surface as
// authentication errors; there is no fallback to a stale token.
func (p *Provider) Fetch(ctx context.Context) (*Token, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return nil, errors.AuthError("failed to sign token assertion", err)
	}

	data := url.Values{}
	data.Set("assertion", assertion)
	data.Set("grant_type", jwtBearerGrantType)

	req, err := http.NewRequestWithContext(ctx, "POST", p.authEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.AuthError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp *http.Response
	err = p.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = p.httpClient.Do(req)
		return httpErr
	})
	if err != nil {
		return nil, errors.AuthError("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return nil, errors.AuthError(
				fmt.Sprintf("token request rejected: %s - %s", errResp.Error, errResp.Description), nil).
				WithContext("status", resp.StatusCode)
		}
		return nil, errors.AuthError(
			fmt.Sprintf("token request failed with status %d", resp.StatusCode), nil)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.AuthError("failed to decode token response", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.AuthError("token response missing access_token", nil)
	}

	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int(assertionLifetime.Seconds())
	}

	token := &Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	p.logger.Debug("Access token obtained",
		logging.Field{Key: "expiry", Value: token.Expiry},
	)

	return token, nil
}

// signAssertion builds the HS256 assertion the identity endpoint expects:
// kid names the service account key, iss is the account email, aud is the
// endpoint itself.
func (p *Provider) signAssertion() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"aud": p.authEndpoint,
		"iss": p.creds.Email,
	})
	token.Header["kid"] = p.creds.KeyID

	return token.SignedString([]byte(p.creds.Secret))
}
