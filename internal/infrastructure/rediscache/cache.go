package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const maxJitter = 5 * time.Minute

// CartCache keeps serialized carts under cart:<buyer> with a jittered TTL.
type CartCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewCartCache(client redis.UniversalClient, baseTTL time.Duration) *CartCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &CartCache{client: client, baseTTL: baseTTL}
}

func (c *CartCache) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(buyerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var out cart.Cart
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &out, nil
}

func (c *CartCache) Set(ctx context.Context, v *cart.Cart) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	ttl := c.baseTTL + rand.N(maxJitter)
	if err := c.client.Set(ctx, cacheKey(v.BuyerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *CartCache) Delete(ctx context.Context, buyerID string) error {
	if err := c.client.Del(ctx, cacheKey(buyerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(buyerID string) string {
	return fmt.Sprintf("cart:%s", buyerID)
}
