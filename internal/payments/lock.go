package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicetrade-backend/pkg/redis"
)

const (
	confirmLockScope      = "confirm"
	defaultConfirmLockTTL = 30 * time.Second
)

// Unlock releases a held confirmation lock.
type Unlock func(ctx context.Context) error

// Locker serializes confirmations per order number.
type Locker interface {
	TryLock(ctx context.Context, orderNumber string) (Unlock, bool, error)
}

// RedisLocker takes a SETNX lock with an owner token. Unlock only deletes the
// key while the token still matches; an expired lock taken over by a peer is left alone.
type RedisLocker struct {
	store redis.LockStore
	ttl   time.Duration
}

func NewRedisLocker(store redis.LockStore, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis lock store required")
	}
	if ttl <= 0 {
		ttl = defaultConfirmLockTTL
	}
	return &RedisLocker{store: store, ttl: ttl}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, orderNumber string) (Unlock, bool, error) {
	key := l.store.LockKey(confirmLockScope, orderNumber)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.ReleaseLock(ctx, key, owner); err != nil {
			return fmt.Errorf("release confirm lock: %w", err)
		}
		return nil
	}, true, nil
}
