// Package kb fronts the domain-status lookups behind GET /v1/status/:domain
// and the QA-tier check in the ingestor with a short-TTL Redis cache, so
// repeated polling doesn't hit Postgres on every request.
package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/malwarescan/oracle/internal/storage"
)

const statusTTL = 30 * time.Second

// Cache wraps a storage.KBCache with the domain-status read-through
// pattern: check Redis, fall back to Postgres on miss, repopulate Redis.
type Cache struct {
	redis storage.KBCache
	store storage.PostgresStore
}

func New(redisCache storage.KBCache, store storage.PostgresStore) *Cache {
	return &Cache{redis: redisCache, store: store}
}

// Status is the cached view of a domain's verification and ingestion
// state, serialized as the cache value and as part of the /v1/status
// response body.
type Status struct {
	Domain          string     `json:"domain"`
	Verified        bool       `json:"verified"`
	ProtocolVersion string     `json:"protocol_version"`
	QATier          string     `json:"qa_tier"`
	QAPass          bool       `json:"qa_pass"`
	LastIngestedAt  *time.Time `json:"last_ingested_at,omitempty"`
	FactCounts      map[string]int `json:"fact_counts"`
}

func statusKey(domainName string) string {
	return fmt.Sprintf("kb:status:%s", domainName)
}

// GetStatus returns a domain's status, preferring the Redis cache and
// falling back to Postgres on a miss or cache error.
func (c *Cache) GetStatus(ctx context.Context, domainName string) (*Status, error) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, statusKey(domainName))
		if err == nil {
			var s Status
			if jsonErr := json.Unmarshal([]byte(raw), &s); jsonErr == nil {
				return &s, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// cache unavailable; fall through to Postgres rather than fail the request
		}
	}

	s, err := c.loadFromStore(ctx, domainName)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if encoded, err := json.Marshal(s); err == nil {
			_ = c.redis.Set(ctx, statusKey(domainName), encoded, statusTTL)
		}
	}
	return s, nil
}

func (c *Cache) loadFromStore(ctx context.Context, domainName string) (*Status, error) {
	d, err := c.store.GetVerifiedDomain(ctx, domainName)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("kb: get verified domain: %w", err)
	}
	if storage.IsNotFound(err) {
		d = nil
	}
	counts, err := c.store.CountFacts(ctx, domainName)
	if err != nil {
		return nil, fmt.Errorf("kb: count facts: %w", err)
	}

	s := &Status{
		Domain:     domainName,
		FactCounts: counts,
	}
	if d != nil {
		s.Verified = d.Verified()
		s.ProtocolVersion = d.ProtocolVersion
		s.QATier = d.QATier
		s.QAPass = d.QAPass
		s.LastIngestedAt = d.LastIngestedAt
	}
	return s, nil
}

// Invalidate drops a domain's cached status; call after a successful
// ingestion run or verification so the next read is fresh.
func (c *Cache) Invalidate(ctx context.Context, domainName string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Delete(ctx, statusKey(domainName)); err != nil {
		return fmt.Errorf("kb: invalidate: %w", err)
	}
	return nil
}
