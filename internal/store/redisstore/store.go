package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leasePrefix    = "timebrew:lease:"
	cooldownPrefix = "timebrew:cooldown:"
)

// ErrLeaseLost is returned by Release when the key expired or was taken over.
var ErrLeaseLost = errors.New("redisstore: lease not held")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewFromClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

// AcquireLease takes name for ttl if nobody else holds it. The returned
// token must be passed to Release.
func (s *Store) AcquireLease(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, leasePrefix+name, token, ttl).Result()
}

func (s *Store) Release(ctx context.Context, name, token string) error {
	n, err := releaseScript.Run(ctx, s.rdb, []string{leasePrefix + name}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// CooldownLeft returns how long key stays blocked; zero means it is clear.
func (s *Store) CooldownLeft(ctx context.Context, key string) (time.Duration, error) {
	left, err := s.rdb.PTTL(ctx, cooldownPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// StartCooldown blocks key for d.
func (s *Store) StartCooldown(ctx context.Context, key string, d time.Duration) error {
	return s.rdb.Set(ctx, cooldownPrefix+key, time.Now().UTC().Format(time.RFC3339), d).Err()
}
