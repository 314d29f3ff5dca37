package identifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/logger"
	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// CacheClient is the slice of the redis API the cache uses.
// *redis.Client satisfies it; tests drive the cache with a fake.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ CacheClient = (*redis.Client)(nil)

// CachedStore is a redis read-through wrapper around a Store. The
// wrapped store stays the source of truth; cache faults fall back to it
// and writes invalidate the affected keys.
type CachedStore struct {
	store  Store
	client CacheClient
	ttl    time.Duration
}

func NewCachedStore(store Store, client CacheClient, ttl time.Duration) *CachedStore {
	return &CachedStore{store: store, client: client, ttl: ttl}
}

// WithStore returns a cache sharing this one's client and ttl but
// delegating to store. Transaction boundaries use it to decorate their
// transaction-scoped repositories, so writes committed inside a
// transaction still invalidate the keys this cache populated.
func (c *CachedStore) WithStore(store Store) Store {
	return &CachedStore{store: store, client: c.client, ttl: c.ttl}
}

func (c *CachedStore) LookupByCenterIdentity(ctx context.Context, identity models.CenterIdentity) (*IdentifierRecord, error) {
	key := identityCacheKey(identity)
	if record := c.get(ctx, key); record != nil {
		return record, nil
	}
	record, err := c.store.LookupByCenterIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, record)
	return record, nil
}

func (c *CachedStore) LookupByGUID(ctx context.Context, guid string) (*IdentifierRecord, error) {
	if guid == "" {
		return nil, ErrNotFound
	}
	key := guidCacheKey(guid)
	if record := c.get(ctx, key); record != nil {
		return record, nil
	}
	record, err := c.store.LookupByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, record)
	return record, nil
}

func (c *CachedStore) LookupByNACCID(ctx context.Context, naccid string) (*IdentifierRecord, error) {
	key := naccidCacheKey(naccid)
	if record := c.get(ctx, key); record != nil {
		return record, nil
	}
	record, err := c.store.LookupByNACCID(ctx, naccid)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, record)
	return record, nil
}

func (c *CachedStore) ListByCenter(ctx context.Context, adcid int) ([]IdentifierRecord, error) {
	return c.store.ListByCenter(ctx, adcid)
}

func (c *CachedStore) Create(ctx context.Context, identity models.CenterIdentity, guid string) (*IdentifierRecord, error) {
	record, err := c.store.Create(ctx, identity, guid)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, record)
	return record, nil
}

func (c *CachedStore) AddCenterIdentity(ctx context.Context, naccid string, identity models.CenterIdentity) (*IdentifierRecord, error) {
	record, err := c.store.AddCenterIdentity(ctx, naccid, identity)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, record)
	return record, nil
}

func (c *CachedStore) get(ctx context.Context, key string) *IdentifierRecord {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).WithField("key", key).Debug("identifier cache read failed")
		}
		return nil
	}
	var record IdentifierRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil
	}
	return &record
}

func (c *CachedStore) set(ctx context.Context, key string, record *IdentifierRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Debug("identifier cache write failed")
	}
}

func (c *CachedStore) invalidate(ctx context.Context, record *IdentifierRecord) {
	keys := []string{
		naccidCacheKey(record.NACCID),
		identityCacheKey(record.ActiveIdentity),
	}
	if record.GUID != "" {
		keys = append(keys, guidCacheKey(record.GUID))
	}
	for _, identity := range record.History {
		keys = append(keys, identityCacheKey(identity))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.WithError(err).Debug("identifier cache invalidation failed")
	}
}

func naccidCacheKey(naccid string) string {
	return "identifiers:naccid:" + naccid
}

func guidCacheKey(guid string) string {
	return "identifiers:guid:" + guid
}

func identityCacheKey(identity models.CenterIdentity) string {
	return fmt.Sprintf("identifiers:identity:%d:%s", identity.ADCID, identity.PTID)
}
