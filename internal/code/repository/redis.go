package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps code sequences in Redis so allocation does not need a
// table scan per code.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// raiseScript moves the counter up to ARGV[1] and never down.
var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call("SET", KEYS[1], ARGV[1])
	return floor
end
return cur
`)

func (c *RedisCounter) Raise(ctx context.Context, key string, floor int64) error {
	return raiseScript.Run(ctx, c.client, []string{key}, floor).Err()
}

func (c *RedisCounter) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}
