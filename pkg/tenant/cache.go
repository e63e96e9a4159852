package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/observability"
)

// CachedService wraps a Service with a two-level read cache for profiles and
// organizations: an in-process LRU in front of Redis. Usage ledgers are never
// cached, quota decisions read them fresh.
type CachedService struct {
	inner   Service
	redis   *redis.Client
	metrics *observability.Metrics

	profiles *lru.LRU[string, *UserProfile]
	orgs     *lru.LRU[string, *Organization]

	redisTTL time.Duration
}

// CacheConfig controls cache sizing and expiry.
type CacheConfig struct {
	MaxEntries int
	MemoryTTL  time.Duration
	RedisTTL   time.Duration
}

// DefaultCacheConfig returns the cache settings used in production.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 1024,
		MemoryTTL:  30 * time.Second,
		RedisTTL:   5 * time.Minute,
	}
}

// NewCachedService creates a caching wrapper around inner. The Redis client
// may be nil, in which case only the in-process layer is used.
func NewCachedService(inner Service, redisClient *redis.Client, metrics *observability.Metrics, cfg CacheConfig) *CachedService {
	if cfg.MaxEntries <= 0 {
		cfg = DefaultCacheConfig()
	}
	return &CachedService{
		inner:    inner,
		redis:    redisClient,
		metrics:  metrics,
		profiles: lru.NewLRU[string, *UserProfile](cfg.MaxEntries, nil, cfg.MemoryTTL),
		orgs:     lru.NewLRU[string, *Organization](cfg.MaxEntries, nil, cfg.MemoryTTL),
		redisTTL: cfg.RedisTTL,
	}
}

func profileKey(id string) string { return fmt.Sprintf("profile:%s", id) }
func orgKey(id string) string     { return fmt.Sprintf("org:%s", id) }

// GetProfile returns the user profile, consulting memory then Redis before
// hitting the database.
func (c *CachedService) GetProfile(ctx context.Context, principalID string) (*UserProfile, error) {
	if p, ok := c.profiles.Get(principalID); ok {
		c.recordHit("profile", "memory")
		return p, nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, profileKey(principalID)).Result()
		if err == nil {
			var p UserProfile
			if err := json.Unmarshal([]byte(data), &p); err == nil {
				c.recordHit("profile", "redis")
				c.profiles.Add(principalID, &p)
				return &p, nil
			}
			// Corrupt entry, drop it and fall through to the database.
			c.redis.Del(ctx, profileKey(principalID))
		}
	}

	c.recordMiss("profile")
	p, err := c.inner.GetProfile(ctx, principalID)
	if err != nil {
		return nil, err
	}
	c.storeProfile(ctx, p)
	return p, nil
}

// GetOrganization returns the organization, consulting memory then Redis
// before hitting the database.
func (c *CachedService) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	if o, ok := c.orgs.Get(orgID); ok {
		c.recordHit("organization", "memory")
		return o, nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, orgKey(orgID)).Result()
		if err == nil {
			var o Organization
			if err := json.Unmarshal([]byte(data), &o); err == nil {
				c.recordHit("organization", "redis")
				c.orgs.Add(orgID, &o)
				return &o, nil
			}
			c.redis.Del(ctx, orgKey(orgID))
		}
	}

	c.recordMiss("organization")
	o, err := c.inner.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.storeOrganization(ctx, o)
	return o, nil
}

// GetUsage always reads the ledger from the database.
func (c *CachedService) GetUsage(ctx context.Context, orgID string) (*UsageLedger, error) {
	return c.inner.GetUsage(ctx, orgID)
}

// Onboard delegates to the inner service and seeds both cache layers with the
// freshly created records. Stale pre-onboarding profile entries are replaced.
func (c *CachedService) Onboard(ctx context.Context, principal *auth.Principal, orgName string, orgType OrganizationType) (*Organization, *UserProfile, error) {
	org, profile, err := c.inner.Onboard(ctx, principal, orgName, orgType)
	if err != nil {
		return nil, nil, err
	}
	c.storeProfile(ctx, profile)
	c.storeOrganization(ctx, org)
	return org, profile, nil
}

// ResetMonthlyCounters delegates to the inner service.
func (c *CachedService) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	return c.inner.ResetMonthlyCounters(ctx)
}

func (c *CachedService) storeProfile(ctx context.Context, p *UserProfile) {
	c.profiles.Add(p.ID, p)
	if c.redis == nil {
		return
	}
	if data, err := json.Marshal(p); err == nil {
		c.redis.Set(ctx, profileKey(p.ID), data, c.redisTTL)
	}
}

func (c *CachedService) storeOrganization(ctx context.Context, o *Organization) {
	c.orgs.Add(o.ID, o)
	if c.redis == nil {
		return
	}
	if data, err := json.Marshal(o); err == nil {
		c.redis.Set(ctx, orgKey(o.ID), data, c.redisTTL)
	}
}

func (c *CachedService) recordHit(entity, layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(entity, layer).Inc()
	}
}

func (c *CachedService) recordMiss(entity string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(entity).Inc()
	}
}
