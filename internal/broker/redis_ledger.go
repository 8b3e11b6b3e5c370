package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"syncBoard/internal/enums"
)

// RedisLedger keeps one set of connection ids per room so the relay can tell
// when the last member across all instances has left.
type RedisLedger struct {
	redis *redis.Client
}

func NewRedisLedger(redis *redis.Client) *RedisLedger {
	return &RedisLedger{redis: redis}
}

func roomKey(roomID string) string {
	return fmt.Sprintf(enums.REDIS_KEY_ROOM_MEMBERS, roomID)
}

func (rl *RedisLedger) Join(ctx context.Context, roomID, connectionID string) (int64, error) {
	var card *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, roomKey(roomID), connectionID)
		card = pipe.SCard(ctx, roomKey(roomID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (rl *RedisLedger) Leave(ctx context.Context, roomID, connectionID string) (int64, error) {
	var card *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, roomKey(roomID), connectionID)
		card = pipe.SCard(ctx, roomKey(roomID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}
