package partition

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisNamespace = "offline-gateway"

// RedisStore is a partition store backed by Redis.
// Partition membership is tracked in a set per partition so that
// partitions can be enumerated and dropped as units.
type RedisStore struct {
	redis *redis.Client
	ctx   context.Context
}

func NewRedisStore(client *redis.Client) RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return RedisStore{
		redis: client,
		ctx:   context.Background(),
	}
}

func (r RedisStore) Open(partition string) error {
	if err := r.redis.SAdd(r.ctx, r.partitionsKey(), partition).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (r RedisStore) Get(partition, key string) ([]byte, bool, error) {
	bts, err := r.redis.Get(r.ctx, r.entryKey(partition, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return bts, true, nil
}

func (r RedisStore) Put(partition, key string, bytes []byte) error {
	if err := r.Open(partition); err != nil {
		return err
	}
	if err := r.redis.SAdd(r.ctx, r.keysKey(partition), key).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	if err := r.redis.Set(r.ctx, r.entryKey(partition, key), bytes, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r RedisStore) Partitions() ([]string, error) {
	names, err := r.redis.SMembers(r.ctx, r.partitionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return names, nil
}

func (r RedisStore) Drop(partition string) error {
	keys, err := r.redis.SMembers(r.ctx, r.keysKey(partition)).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}
	for _, key := range keys {
		if err := r.redis.Del(r.ctx, r.entryKey(partition, key)).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := r.redis.Del(r.ctx, r.keysKey(partition)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if err := r.redis.SRem(r.ctx, r.partitionsKey(), partition).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	return nil
}

func (r RedisStore) partitionsKey() string {
	return redisNamespace + ":partitions"
}

func (r RedisStore) keysKey(partition string) string {
	return redisNamespace + ":" + partition + ":keys"
}

func (r RedisStore) entryKey(partition, key string) string {
	return redisNamespace + ":" + partition + ":" + key
}
