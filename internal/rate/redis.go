package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
)

// slidingWindowScript opera sobre un sorted set cuyo score es el timestamp en
// ms de cada hit admitido. Devuelve {allowed, hits, retry_ms}.
var slidingWindowScript = rdb.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  return {1, count + 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
if retry < 1 then retry = 1 end
return {0, count, retry}
`)

// RedisOptions configura la conexión al store compartido.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore guarda las ventanas en Redis; el script Lua hace el
// check-and-add atómico entre réplicas del servicio.
type RedisStore struct {
	client rdb.UniversalClient
	prefix string
}

func NewRedisStore(client rdb.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis crea el cliente y verifica la conexión. Un ping fallido no es
// fatal para el llamador: el controller igual cae a memoria.
func DialRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := rdb.NewClient(&rdb.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	store := NewRedisStore(client, opts.Prefix)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		return store, fmt.Errorf("rate: redis ping failed: %w", err)
	}
	return store, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Hit(ctx context.Context, key string, p Policy, now time.Time) (Result, error) {
	redisKey := s.prefix + p.Name + ":" + strings.ReplaceAll(key, " ", "_")
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{redisKey},
		now.UnixMilli(),
		p.Window.Milliseconds(),
		p.Limit,
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate: redis script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate: unexpected script reply %v", vals)
	}

	res := Result{
		Allowed: vals[0] == 1,
		Limit:   int64(p.Limit),
		Hits:    vals[1],
	}
	res.Remaining = res.Limit - res.Hits
	if res.Remaining < 0 || !res.Allowed {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(vals[2]) * time.Millisecond
	}
	return res, nil
}
