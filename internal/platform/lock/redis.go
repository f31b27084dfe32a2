package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a Locker shared by every server instance pointing at the same
// Redis. Keys expire after ttl so a crashed holder cannot block a day forever.
type Redis struct {
	rdb      *redis.Client
	ttl      time.Duration
	retry    time.Duration
	prefix   string
	newToken func() string
	log      zerolog.Logger
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedis returns a Locker storing keys under prefix. Failed releases are
// logged to log; the key then lingers until ttl expires.
func NewRedis(rdb *redis.Client, ttl time.Duration, prefix string, log zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "lock"
	}
	return &Redis{
		rdb:      rdb,
		ttl:      ttl,
		retry:    25 * time.Millisecond,
		prefix:   prefix,
		newToken: uuid.NewString,
		log:      log,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.prefix + ":" + key
	token := r.newToken()

	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			return nil, err
		}
		if ok {
			break
		}
		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release with a fresh context; the caller's may already be done.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.rdb, []string{full}, token).Err(); err != nil {
				r.log.Warn().Err(err).
					Str("key", full).
					Dur("ttl", r.ttl).
					Msg("lock release failed, key held until expiry")
			}
		})
	}, nil
}
