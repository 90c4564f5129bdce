package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-bridge/internal/common/errors"
)

var testCreds = Credentials{
	Email:  "bridge@example.serviceaccount.d21s.com",
	KeyID:  "key-123",
	Secret: "account-secret",
}

func TestProviderFetch(t *testing.T) {
	var gotGrantType, gotAssertion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrantType = r.PostFormValue("grant_type")
		gotAssertion = r.PostFormValue("assertion")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	provider := NewProvider(testCreds, srv.URL, nil)
	token, err := provider.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.False(t, token.IsExpired())

	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", gotGrantType)

	// The assertion must be an HS256 JWT signed with the account secret,
	// carrying the key id and the endpoint audience
	parsed, err := jwt.Parse(gotAssertion, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testCreds.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, testCreds.KeyID, parsed.Header["kid"])

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, testCreds.Email, claims["iss"])
	assert.Equal(t, srv.URL, claims["aud"])
	assert.NotNil(t, claims["iat"])
	assert.NotNil(t, claims["exp"])
}

func TestProviderFetchRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"assertion expired"}`))
	}))
	defer srv.Close()

	provider := NewProvider(testCreds, srv.URL, nil)
	_, err := provider.Fetch(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeAuth, errors.GetType(err))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestProviderFetchUnreachableEndpoint(t *testing.T) {
	provider := NewProvider(testCreds, "http://127.0.0.1:1", nil)
	_, err := provider.Fetch(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeAuth, errors.GetType(err))
}

func TestProviderFetchMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	provider := NewProvider(testCreds, srv.URL, nil)
	_, err := provider.Fetch(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeAuth, errors.GetType(err))
}

func TestProviderFetchDefaultsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	provider := NewProvider(testCreds, srv.URL, nil)
	token, err := provider.Fetch(context.Background())
	require.NoError(t, err)

	// Without expires_in the token gets the assertion's own lifetime
	assert.False(t, token.Expiry.IsZero())
	assert.False(t, token.IsExpired())
}
