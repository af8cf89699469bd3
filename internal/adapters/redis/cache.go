package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CachedDirectory is a read-through cache in front of the profile directory.
// Missing profiles are not cached.
type CachedDirectory struct {
	cache  *Cache
	inner  domain.ProfileDirectory
	ttl    time.Duration
	logger observability.Logger
}

func NewCachedDirectory(cache *Cache, inner domain.ProfileDirectory, ttl time.Duration, logger observability.Logger) *CachedDirectory {
	return &CachedDirectory{cache: cache, inner: inner, ttl: ttl, logger: logger}
}

func profileKey(role domain.Role, id uuid.UUID) string {
	return "profile:" + string(role) + ":" + id.String()
}

func (d *CachedDirectory) Get(ctx context.Context, role domain.Role, id uuid.UUID) (*domain.Profile, error) {
	raw, err := d.cache.client.Get(ctx, profileKey(role, id)).Bytes()
	if err == nil {
		var p domain.Profile
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return &p, nil
		}
	} else if err != redis.Nil {
		d.logger.WithError(err).Warn("profile cache read failed")
	}

	p, err := d.inner.Get(ctx, role, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, []domain.Profile{*p})
	return p, nil
}

func (d *CachedDirectory) Lookup(ctx context.Context, role domain.Role, ids []uuid.UUID) (map[uuid.UUID]domain.Profile, error) {
	out := make(map[uuid.UUID]domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(role, id)
	}

	var misses []uuid.UUID
	vals, err := d.cache.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.logger.WithError(err).Warn("profile cache read failed")
		misses = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				misses = append(misses, ids[i])
				continue
			}
			var p domain.Profile
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				misses = append(misses, ids[i])
				continue
			}
			out[p.ID] = p
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := d.inner.Lookup(ctx, role, misses)
	if err != nil {
		return nil, err
	}
	fresh := make([]domain.Profile, 0, len(fetched))
	for id, p := range fetched {
		out[id] = p
		fresh = append(fresh, p)
	}
	d.store(ctx, fresh)
	return out, nil
}

func (d *CachedDirectory) store(ctx context.Context, profiles []domain.Profile) {
	if len(profiles) == 0 {
		return
	}
	pipe := d.cache.client.Pipeline()
	for _, p := range profiles {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, profileKey(p.Role, p.ID), raw, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.WithError(err).Warn("profile cache write failed")
	}
}
