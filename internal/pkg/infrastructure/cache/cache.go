package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-redis/redis/v8"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

//ErrMiss is returned by Get when a key is not cached
var ErrMiss = errors.New("cache miss")

const keyPrefix string = "energy:response:"

//KV is a minimal key value store with expiring entries
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
}

//RedisKV stores cached responses in redis
type RedisKV struct {
	c *redis.Client
}

//NewRedisClient connects to the configured redis server and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

//NewRedisKV wraps a redis client
func NewRedisKV(c *redis.Client) *RedisKV {
	return &RedisKV{c: c}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.c.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, keyPrefix+key, value, ttl).Err()
}

//Flush removes every cached response
func (r *RedisKV) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.c.Scan(ctx, cursor, keyPrefix+"*", 200).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := r.c.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

type entry struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

//Responses returns a middleware that serves successful GET responses from kv for ttl.
//Requests with any other method pass through untouched. Cache failures are logged and
//the request is served by the next handler.
func Responses(kv KV, ttl time.Duration, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()

			cached, err := kv.Get(r.Context(), key)
			if err == nil {
				e := entry{}
				if err = json.Unmarshal(cached, &e); err == nil {
					w.Header().Set("Content-Type", e.ContentType)
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(http.StatusOK)
					w.Write(e.Body)
					return
				}
			}
			if err != nil && !errors.Is(err, ErrMiss) {
				log.Warnf("failed to read cached response for %s: %s", key, err.Error())
			}

			body := &bytes.Buffer{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(body)
			ww.Header().Set("X-Cache", "MISS")

			next.ServeHTTP(ww, r)

			if ww.Status() != http.StatusOK {
				return
			}

			stored, _ := json.Marshal(entry{ContentType: ww.Header().Get("Content-Type"), Body: body.Bytes()})
			if err := kv.Set(r.Context(), key, stored, ttl); err != nil {
				log.Warnf("failed to cache response for %s: %s", key, err.Error())
			}
		})
	}
}

//Invalidate returns a middleware that flushes the cache after every successful write request
func Invalidate(kv KV, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() < http.StatusBadRequest {
				if err := kv.Flush(r.Context()); err != nil {
					log.Warnf("failed to flush response cache: %s", err.Error())
				}
			}
		})
	}
}
