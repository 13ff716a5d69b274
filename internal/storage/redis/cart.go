// Package redis keeps saved carts and rate limit windows in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-promo/internal/domain/order"
)

const keyPrefix = "kart:cart:"

var _ order.CartStore = (*CartStore)(nil)

// CartStore implements order.CartStore. Every save refreshes the TTL.
type CartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartStore returns a CartStore expiring carts after ttl. A non-positive
// ttl keeps carts until they are deleted.
func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	if ttl < 0 {
		ttl = 0
	}
	return &CartStore{client: client, ttl: ttl}
}

func key(token string) string {
	return keyPrefix + token
}

// Save replaces the items stored under token.
func (s *CartStore) Save(ctx context.Context, token string, items []order.OrderItem) error {
	if err := s.client.Set(ctx, key(token), order.MarshalItems(items), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set cart %q", token)
	}
	return nil
}

// Load returns order.ErrCartNotFound for unknown or expired tokens.
func (s *CartStore) Load(ctx context.Context, token string) ([]order.OrderItem, error) {
	data, err := s.client.Get(ctx, key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, order.ErrCartNotFound
		}
		return nil, errors.Wrapf(err, "get cart %q", token)
	}

	items, err := order.UnmarshalItems(data)
	if err != nil {
		return nil, errors.Wrapf(err, "cart %q", token)
	}
	return items, nil
}

// Delete removes the cart. Deleting an unknown token is not an error.
func (s *CartStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %q", token)
	}
	return nil
}
