package redis

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"mesa-pos/internal/logger"
)

// Redis serializes settlement commits per table: while one staff member is
// committing a selection, a second commit on the same table is refused
// instead of double-charging.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{Client: client, Logger: log}
}

// lockTTL bounds how long a crashed commit can keep a table locked.
func (r *Redis) lockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("TABLE_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid TABLE_LOCK_TTL_SECONDS value '"+ttlStr+"', using default 30s")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// LockTable acquires the commit lock for a table. Returns false when another
// commit holds it.
func (r *Redis) LockTable(tableID, owner string) (bool, error) {
	key := "table_lock:" + tableID
	return r.Client.SetNX(context.Background(), key, owner, r.lockTTL()).Result()
}

// UnlockTable releases the lock, but only for the owner that acquired it.
func (r *Redis) UnlockTable(tableID, owner string) error {
	ctx := context.Background()
	key := "table_lock:" + tableID
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
