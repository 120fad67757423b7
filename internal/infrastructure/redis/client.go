package redis

import "github.com/go-redis/redis/v8"

// NewClient builds the shared Redis client used by both the broadcast
// backbone and the presence bookkeeping.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
