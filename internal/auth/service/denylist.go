package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// denylistKeyPrefix namespaces denied token ids in a shared Redis.
const denylistKeyPrefix = "lightldap:denylist:"

// redisDenylist implements AccessTokenDenylist with expiring Redis keys.
type redisDenylist struct {
	client redis.Cmdable
}

// NewRedisDenylist creates an AccessTokenDenylist backed by Redis.
func NewRedisDenylist(client redis.Cmdable) AccessTokenDenylist {
	return &redisDenylist{client: client}
}

// Add stores the token id until the token would have expired anyway.
func (d *redisDenylist) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return apperrors.Storage(err, "failed to deny access token")
	}
	return nil
}

// Contains reports whether the token id is denied.
func (d *redisDenylist) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, apperrors.Storage(err, "failed to check access token denylist")
	}
	return n > 0, nil
}

// noopDenylist is used when no Redis is configured. Access tokens then stay valid until
// they expire.
type noopDenylist struct{}

// NewNoopDenylist creates an AccessTokenDenylist that never denies anything.
func NewNoopDenylist() AccessTokenDenylist {
	return noopDenylist{}
}

func (noopDenylist) Add(context.Context, string, time.Time) error { return nil }

func (noopDenylist) Contains(context.Context, string) (bool, error) { return false, nil }
