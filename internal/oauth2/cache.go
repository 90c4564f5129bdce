package oauth2

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/common/logging"
)

// Fetcher obtains a fresh access token from the identity endpoint.
type Fetcher interface {
	Fetch(ctx context.Context) (*Token, error)
}

// Cache owns the single process-wide access token. It is the only writer;
// all request handlers read through Token(), which refreshes transparently.
// Concurrent refreshes are collapsed into one fetch via singleflight, so N
// callers hitting an empty or expired cache trigger exactly one token
// request and all observe the same result.
type Cache struct {
	fetcher Fetcher
	logger  logging.Logger

	mu    sync.RWMutex
	token *Token

	group singleflight.Group
}

// NewCache creates a token cache backed by the given fetcher.
func NewCache(fetcher Fetcher, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Token returns a valid access token, refreshing it if the cache is empty
// or the cached token is inside its expiry margin.
func (c *Cache) Token(ctx context.Context) (*Token, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token != nil && !token.IsExpired() {
		return token, nil
	}

	result, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Another caller may have completed the refresh while this one
		// waited on the flight group
		c.mu.RLock()
		current := c.token
		c.mu.RUnlock()
		if current != nil && !current.IsExpired() {
			return current, nil
		}

		fresh, fetchErr := c.fetcher.Fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()

		c.logger.Debug("Token cache refreshed",
			logging.Field{Key: "expiry", Value: fresh.Expiry},
		)

		return fresh, nil
	})
	if err != nil {
		if errors.GetType(err) == errors.ErrTypeAuth {
			return nil, err
		}
		return nil, errors.AuthError("token refresh failed", err)
	}

	return result.(*Token), nil
}

// AuthorizationHeader returns a valid "Bearer <token>" header value,
// refreshing the cached token when needed.
func (c *Cache) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return fmt.Sprintf("%s %s", tokenType, token.AccessToken), nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Used when the platform API rejects the cached token despite its expiry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
