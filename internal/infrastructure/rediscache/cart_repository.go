package rediscache

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"
	"golang.org/x/sync/singleflight"
)

// CartRepository is a cache-aside decorator over the durable cart store.
// Reads fill the cache and fall back to the store when Redis fails. Save drops the
// cached copy before writing through, so a write that cannot invalidate is refused.
type CartRepository struct {
	inner cart.Repository
	cache *CartCache
	log   observability.Logger
	sfg   singleflight.Group
}

// ErrInvalidation is returned by Save when the cached cart could not be dropped.
var ErrInvalidation = errors.New("cart cache invalidation failed")

var _ cart.Repository = (*CartRepository)(nil)

func NewCartRepository(inner cart.Repository, cache *CartCache, logger observability.Logger) *CartRepository {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CartRepository{inner: inner, cache: cache, log: logger.With(observability.F("component", "cart_cache"))}
}

func (r *CartRepository) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	v, err, _ := r.sfg.Do(buyerID, func() (any, error) {
		c, err := r.cache.Get(ctx, buyerID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger(ctx).Warn("cart_cache_get_failed",
				observability.F("buyer_id", buyerID),
				observability.Err(err),
			)
		}

		c, err = r.inner.Get(ctx, buyerID)
		if err != nil {
			return nil, err
		}
		if serr := r.cache.Set(ctx, c); serr != nil {
			r.logger(ctx).Warn("cart_cache_set_failed",
				observability.F("buyer_id", buyerID),
				observability.Err(serr),
			)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	// callers sharing a flight each get their own copy
	return v.(*cart.Cart).Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	if err := r.cache.Delete(ctx, c.BuyerID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidation, err)
	}
	if err := r.inner.Save(ctx, c); err != nil {
		return err
	}
	if err := r.cache.Set(ctx, c); err != nil {
		r.logger(ctx).Warn("cart_cache_set_failed",
			observability.F("buyer_id", c.BuyerID),
			observability.Err(err),
		)
		// a concurrent miss may have refilled the key with the previous cart
		if derr := r.cache.Delete(ctx, c.BuyerID); derr != nil {
			r.logger(ctx).Error("cart_cache_invalidate_failed",
				observability.F("buyer_id", c.BuyerID),
				observability.Err(derr),
			)
		}
	}
	return nil
}

func (r *CartRepository) logger(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, r.log)
}
