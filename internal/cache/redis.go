// Package cache реализует кэш планов и снимков рейтинга и распределённую блокировку на Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/quizleague/internal/config"
)

// Cache обёртка над клиентом Redis. Значения хранятся в JSON.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение по ключу в result. false, если ключа нет.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	err = json.Unmarshal([]byte(val), result)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение на время expiration.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(context.Background(), key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}

// Generation возвращает счётчик поколения key; 0, если ключа нет.
func (c *Cache) Generation(key string) (int64, error) {
	const op = "cache.Generation"
	n, err := c.Db.Get(context.Background(), key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Bump атомарно увеличивает счётчик поколения key.
func (c *Cache) Bump(key string) (int64, error) {
	const op = "cache.Bump"
	n, err := c.Db.Incr(context.Background(), key).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ErrLockNotHeld: блокировка истекла и, возможно, уже взята другим процессом.
var ErrLockNotHeld = errors.New("lock is not held")

// releaseScript удаляет ключ, только если в нём лежит токен владельца.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock пытается взять блокировку key на ttl и возвращает токен владельца.
// ok == false, если её держит другой процесс.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	const op = "cache.AcquireLock"
	token = uuid.NewString()
	ok, err = c.Db.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock снимает блокировку, если она всё ещё принадлежит token.
// Чужую блокировку не трогает и возвращает ErrLockNotHeld.
func (c *Cache) ReleaseLock(ctx context.Context, key, token string) error {
	const op = "cache.ReleaseLock"
	n, err := releaseScript.Run(ctx, c.Db, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrLockNotHeld)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.Db.Close()
}
