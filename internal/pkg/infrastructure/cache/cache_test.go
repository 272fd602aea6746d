package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

func TestThatMissingKeysReportErrMiss(t *testing.T) {
	kv, _ := newKVForTest(t)

	_, err := kv.Get(context.Background(), "/nothing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestThatEntriesExpire(t *testing.T) {
	kv, srv := newKVForTest(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "/classes", []byte("cached"), 5*time.Second))

	value, err := kv.Get(ctx, "/classes")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(value))

	srv.FastForward(6 * time.Second)

	_, err = kv.Get(ctx, "/classes")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestThatSuccessfulGetResponsesAreServedFromCache(t *testing.T) {
	kv, _ := newKVForTest(t)

	calls := 0
	handler := Responses(kv, time.Minute, logging.NewLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/consumption/total/class/1?startDate=2024-03-01", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/consumption/total/class/1?startDate=2024-03-01", nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, `{"success":true}`, second.Body.String())

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, httptest.NewRequest(http.MethodGet, "/consumption/total/class/1?startDate=2024-03-02", nil))
	assert.Equal(t, 2, calls)
}

func TestThatFailedResponsesAreNotCached(t *testing.T) {
	kv, _ := newKVForTest(t)

	calls := 0
	handler := Responses(kv, time.Minute, logging.NewLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/classes/17", nil))
	}

	assert.Equal(t, 2, calls)
}

func TestThatWritesFlushTheCache(t *testing.T) {
	kv, _ := newKVForTest(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "/classes", []byte("cached"), time.Minute))

	handler := Invalidate(kv, logging.NewLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/classes", nil))
	_, err := kv.Get(ctx, "/classes")
	require.NoError(t, err)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/classes", nil))
	_, err = kv.Get(ctx, "/classes")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestThatNewRedisClientFailsWithoutServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedisClient(context.Background(), config.Redis{Addr: addr})
	assert.Error(t, err)
}

func newKVForTest(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)

	c := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { c.Close() })

	return NewRedisKV(c), srv
}
