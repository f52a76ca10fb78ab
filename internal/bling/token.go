package bling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"bling-mirror/internal/cache"
	"bling-mirror/internal/clock"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/metrics"
	"bling-mirror/internal/model"
)

// DefaultTokenTTL is how long a fetched token is considered valid.
const DefaultTokenTTL = 5 * time.Hour

// AuthConfig describes the token endpoint.
type AuthConfig struct {
	// BaseURL is joined with the tenant: {BaseURL}/{tenant}.
	BaseURL string
	// Secret is the static bootstrap bearer sent to the token endpoint.
	Secret string
	TTL    time.Duration
}

// TokenSource yields a bearer token for a tenant.
type TokenSource interface {
	Token(ctx context.Context, tenant string) (string, error)
}

// TokenCache fetches tokens from the auth endpoint and keeps one entry per
// tenant until its expiry. Concurrent misses may both fetch; the later
// successful write wins. Failures never touch the stored entry.
type TokenCache struct {
	cfg    AuthConfig
	client Doer
	store  cache.Cache
	clock  clock.Clock
	log    zerolog.Logger
}

// NewTokenCache builds a TokenCache over the given cache backend.
func NewTokenCache(cfg AuthConfig, client Doer, store cache.Cache, clk clock.Clock) *TokenCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if client == nil {
		client = &http.Client{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &TokenCache{
		cfg:    cfg,
		client: client,
		store:  store,
		clock:  clk,
		log:    logging.Component("TokenCache"),
	}
}

// Token returns a valid token for tenant, fetching a new one when the cached
// entry is missing or expired. On failure it returns "" and a KindAuth error.
func (c *TokenCache) Token(ctx context.Context, tenant string) (string, error) {
	now := c.clock.Now()

	if tok, ok := c.cached(ctx, tenant); ok && tok.Usable(now) {
		metrics.TokenCacheHits.Inc()
		return tok.Value, nil
	}

	value, err := c.fetch(ctx, tenant)
	metrics.RecordTokenFetch(err == nil)
	if err != nil {
		c.log.Error().Err(err).Str("tenant", tenant).Msg("token fetch failed")
		return "", err
	}

	tok := model.CachedToken{
		Tenant:    tenant,
		Value:     value,
		ExpiresAt: c.clock.Now().Add(c.cfg.TTL),
	}
	if err := c.put(ctx, &tok); err != nil {
		// the token is still good for this caller
		c.log.Warn().Err(err).Str("tenant", tenant).Msg("failed to store token")
	}

	c.log.Info().Str("tenant", tenant).Time("expires_at", tok.ExpiresAt).Msg("token refreshed")
	return value, nil
}

// Peek returns the stored entry for tenant without fetching, or nil.
func (c *TokenCache) Peek(ctx context.Context, tenant string) *model.CachedToken {
	tok, ok := c.cached(ctx, tenant)
	if !ok {
		return nil
	}
	return tok
}

// Invalidate drops the entry for tenant.
func (c *TokenCache) Invalidate(ctx context.Context, tenant string) error {
	if err := c.store.Delete(ctx, tenant); err != nil {
		return NewError(KindPersistence, "invalidate token", 0, err)
	}
	c.log.Info().Str("tenant", tenant).Msg("token invalidated")
	return nil
}

func (c *TokenCache) cached(ctx context.Context, tenant string) (*model.CachedToken, bool) {
	data, err := c.store.Get(ctx, tenant)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn().Err(err).Str("tenant", tenant).Msg("token cache read failed")
		}
		return nil, false
	}

	var tok model.CachedToken
	if err := json.Unmarshal(data, &tok); err != nil {
		c.log.Warn().Err(err).Str("tenant", tenant).Msg("discarding unreadable cached token")
		return nil, false
	}
	return &tok, true
}

func (c *TokenCache) put(ctx context.Context, tok *model.CachedToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, tok.Tenant, data, c.cfg.TTL)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (c *TokenCache) fetch(ctx context.Context, tenant string) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + url.PathEscape(tenant)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", NewError(KindAuth, "token", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", NewError(KindAuth, "token", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(KindAuth, "token", resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewError(KindAuth, "token", resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(body, 200)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", NewError(KindAuth, "token", resp.StatusCode, fmt.Errorf("decode: %w", err))
	}
	if tr.AccessToken == "" {
		return "", NewError(KindAuth, "token", resp.StatusCode, errors.New("response has no access_token"))
	}
	return tr.AccessToken, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
