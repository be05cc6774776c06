// Package rediscache decorates an auth.IdentityProvider with a short-lived
// Redis cache of successful profile lookups. The verification contract never
// requires a cache; this is the optional external optimization for
// deployments where the same opaque token arrives in rapid bursts and every
// request would otherwise round-trip to the provider.
//
// Only successful FetchProfile results are cached. Signed-token verification
// is a local cryptographic check once keys are warm and is never cached, and
// failures are never cached so a rejected or revoked token is re-asked of
// the provider every time.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/tokengate/tokengate/auth"
)

// Config for the cache. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all cache keys. ENV: AUTH_CACHE_KEY_PREFIX
	KeyPrefix string `env:"AUTH_CACHE_KEY_PREFIX,default=tokengate:profile:"`
	// TTL bounds how long a verified profile is served without re-asking
	// the provider. Keep this short: it is also the revocation lag.
	// ENV: AUTH_CACHE_TTL
	TTL time.Duration `env:"AUTH_CACHE_TTL,default=60s"`
}

// Provider wraps an inner IdentityProvider with the cache.
type Provider struct {
	inner  auth.IdentityProvider
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

var _ auth.IdentityProvider = (*Provider)(nil)

// New builds the decorator and verifies Redis connectivity.
func New(inner auth.IdentityProvider, cfg Config, log *slog.Logger) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("rediscache: redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tokengate:profile:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Provider{inner: inner, client: cl, prefix: prefix, ttl: ttl, log: log}, nil
}

// NewFromEnv builds the decorator using envdecode to populate Config.
func NewFromEnv(inner auth.IdentityProvider, log *slog.Logger) (*Provider, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(inner, cfg, log)
}

// Close closes the Redis client.
func (p *Provider) Close() error { return p.client.Close() }

func (p *Provider) Name() string { return p.inner.Name() }

// VerifySignedToken always delegates; nothing to cache on this path.
func (p *Provider) VerifySignedToken(ctx context.Context, rawToken, clientID string) (*auth.VerifiedIdentity, error) {
	return p.inner.VerifySignedToken(ctx, rawToken, clientID)
}

// FetchProfile serves a cached profile when present, delegating otherwise.
// Cache failures degrade to the inner provider rather than failing the
// verification.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*auth.VerifiedIdentity, error) {
	key := p.key(accessToken)

	if b, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var id auth.VerifiedIdentity
		if jerr := json.Unmarshal(b, &id); jerr == nil {
			return &id, nil
		}
		// Unreadable entry; drop it and fall through to the provider.
		_ = p.client.Del(ctx, key).Err()
	} else if err != redis.Nil {
		p.log.DebugContext(ctx, "rediscache.get_failed", slog.String("err", err.Error()))
	}

	id, err := p.inner.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(id); jerr == nil {
		if serr := p.client.Set(ctx, key, b, p.ttl).Err(); serr != nil {
			p.log.DebugContext(ctx, "rediscache.set_failed", slog.String("err", serr.Error()))
		}
	}
	return id, nil
}

// key derives the cache key from a digest of the token so raw credentials
// never land in Redis.
func (p *Provider) key(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return p.prefix + hex.EncodeToString(sum[:])
}
