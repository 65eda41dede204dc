package authority

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	platformredis "qualinova/internal/platform/redis"
	"qualinova/pkg/domain"
)

// Cache decorates a Registry with a Redis read-through cache. Authority
// records change rarely, so a short TTL keeps verification fast without
// letting a revoked authority stay trusted for long. Cache failures fall
// through to the inner registry; caching is never load-bearing.
type Cache struct {
	inner  Registry
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(inner Registry, client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{inner: inner, client: client, ttl: ttl, logger: logger}
}

type cachedInfo struct {
	PublicKey    string   `json:"public_key"`
	AllowedTypes []string `json:"allowed_types"`
	Status       string   `json:"status"`
}

func (c *Cache) GetAuthorityInfo(ctx context.Context, issuer domain.Identity) (Info, error) {
	key := "authority:info:" + issuer.String()

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedInfo
		if err := json.Unmarshal(raw, &cached); err == nil {
			if pk, err := hex.DecodeString(cached.PublicKey); err == nil && len(pk) == ed25519.PublicKeySize {
				return Info{
					Identity:     issuer,
					PublicKey:    ed25519.PublicKey(pk),
					AllowedTypes: cached.AllowedTypes,
					Status:       Status(cached.Status),
				}, nil
			}
		}
	}

	info, err := c.inner.GetAuthorityInfo(ctx, issuer)
	if err != nil {
		return Info{}, err
	}

	raw, err := json.Marshal(cachedInfo{
		PublicKey:    hex.EncodeToString(info.PublicKey),
		AllowedTypes: info.AllowedTypes,
		Status:       string(info.Status),
	})
	if err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "authority cache write failed", "issuer", issuer.String(), "error", err)
		}
	}
	return info, nil
}

// IsActive and IsAllowedType are fallback-chain calls that already mean the
// primary path failed, so they bypass the cache and hit the registry.
func (c *Cache) IsActive(ctx context.Context, issuer domain.Identity) (bool, error) {
	return c.inner.IsActive(ctx, issuer)
}

func (c *Cache) IsAllowedType(ctx context.Context, issuer domain.Identity, achievementType string) (bool, error) {
	return c.inner.IsAllowedType(ctx, issuer, achievementType)
}

func (c *Cache) PublicKey(ctx context.Context, issuer domain.Identity) (ed25519.PublicKey, error) {
	if info, err := c.GetAuthorityInfo(ctx, issuer); err == nil {
		return info.PublicKey, nil
	}
	return c.inner.PublicKey(ctx, issuer)
}
