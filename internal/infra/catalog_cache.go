package infra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogKeyPrefix = "catalog:product:"

// CatalogCache stores product lookups in Redis. Every call goes through a
// circuit breaker; errors are logged and treated as misses.
type CatalogCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	breaker *CircuitBreaker
}

func NewCatalogCache(rdb *redis.Client, ttl time.Duration, breaker *CircuitBreaker) *CatalogCache {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultBreakerConfig())
	}
	return &CatalogCache{rdb: rdb, ttl: ttl, breaker: breaker}
}

var errStaleGeneration = errors.New("catalog entry invalidated during lookup")

func catalogKey(id uuid.UUID) string    { return catalogKeyPrefix + id.String() }
func generationKey(id uuid.UUID) string { return catalogKeyPrefix + id.String() + ":gen" }

func (c *CatalogCache) Get(ctx context.Context, id uuid.UUID) (*dto.ProductLookupResponse, bool) {
	var raw []byte
	err := c.breaker.Execute(func() error {
		b, err := c.rdb.Get(ctx, catalogKey(id)).Bytes()
		if err == redis.Nil {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		log.Debug().Err(err).Str("product_id", id.String()).Msg("catalog cache get failed")
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var resp dto.ProductLookupResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Generation returns the invalidation counter of id; a product never
// invalidated is at generation 0.
func (c *CatalogCache) Generation(ctx context.Context, id uuid.UUID) (int64, bool) {
	var gen int64
	err := c.breaker.Execute(func() error {
		n, err := c.rdb.Get(ctx, generationKey(id)).Int64()
		if err == redis.Nil {
			return nil
		}
		gen = n
		return err
	})
	if err != nil {
		log.Debug().Err(err).Str("product_id", id.String()).Msg("catalog cache generation read failed")
		return 0, false
	}
	return gen, true
}

// Set stores p only while id is still at generation. The WATCH makes the
// check and the write one step: an Invalidate landing in between aborts it.
func (c *CatalogCache) Set(ctx context.Context, p *dto.ProductLookupResponse, generation int64) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	genKey := generationKey(id)
	// Best effort, ignore errors
	_ = c.breaker.Execute(func() error {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, genKey).Int64()
			if err != nil && err != redis.Nil {
				return err
			}
			if cur != generation {
				return errStaleGeneration
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, catalogKey(id), b, c.ttl)
				return nil
			})
			return err
		}, genKey)
		// Losing the race is not a Redis failure.
		if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
			return nil
		}
		return err
	})
}

// Invalidate bumps the generation and drops the cached entry.
func (c *CatalogCache) Invalidate(ctx context.Context, id uuid.UUID) {
	err := c.breaker.Execute(func() error {
		_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, catalogKey(id))
			return nil
		})
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("product_id", id.String()).Msg("catalog cache invalidation failed")
	}
}

// BreakerState exposes the guard state for the health endpoint.
func (c *CatalogCache) BreakerState() BreakerState { return c.breaker.State() }
