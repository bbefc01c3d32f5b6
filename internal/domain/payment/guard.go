package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
)

// Locker serializes concurrent callbacks for the same invoice
type Locker interface {
	// Acquire returns a lease token; ok is false when another worker already holds the lock
	Acquire(ctx context.Context, invID int64) (token string, ok bool, err error)
	// Release drops the lock only while it is still held under token
	Release(ctx context.Context, invID int64, token string)
}

// releaseScript deletes the key only if it still carries our token. A lease that expired
// mid-callback may already belong to another worker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CallbackGuard is a Redis SETNX lock keyed by invoice number.
// A nil client turns it into a no-op so development runs without Redis.
type CallbackGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCallbackGuard(client *redis.Client, ttl time.Duration) *CallbackGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CallbackGuard{client: client, ttl: ttl}
}

func (g *CallbackGuard) Acquire(ctx context.Context, invID int64) (string, bool, error) {
	if g.client == nil {
		return "", true, nil
	}
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, guardKey(invID), token, g.ttl).Result()
	if err != nil || !ok {
		return "", ok, err
	}
	return token, true, nil
}

func (g *CallbackGuard) Release(ctx context.Context, invID int64, token string) {
	if g.client == nil || token == "" {
		return
	}
	if err := releaseScript.Run(ctx, g.client, []string{guardKey(invID)}, token).Err(); err != nil {
		logger.LogWarn(ctx, "callback lock release failed", "inv_id", invID, "error", err.Error())
	}
}

func guardKey(invID int64) string {
	return "robokassa:callback:" + strconv.FormatInt(invID, 10)
}
