package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-registry/internal/storage/storagetest"
	"github.com/aanand-mishra/students-registry/internal/types"
)

// fakeClient answers GET, SET, DEL and Close from a map. Any other command
// panics on the nil embedded client.
type fakeClient struct {
	redis.UniversalClient

	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	err    error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	b, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	f.data[key] = string(b)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	r := NewRedis(client)

	_, err := r.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	ana := storagetest.Ana()
	require.NoError(t, r.Set(ctx, ana, 90*time.Second))

	assert.JSONEq(t,
		`{"id":1,"name":"Ana","lastName":"Gomez","bornPlace":"Medellin","degree":"CS","place":"ROBLEDO","scoreAdmision":450}`,
		client.data["student:1"])
	assert.Equal(t, 90*time.Second, client.ttls["student:1"])

	got, err := r.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	require.NoError(t, r.Delete(ctx, 1))
	assert.Empty(t, client.data)
	_, err = r.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, r.Delete(ctx, 1), "deleting an absent key is not an error")
}

func TestRedisErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	r := NewRedis(client)

	client.data["student:7"] = `{"id":7,"place":"POBLADO"}`
	_, err := r.Get(ctx, 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, err, types.ErrUnknownCampus, "an unknown campus in the cache is a decode error")

	errDown := errors.New("connection reset")
	client.err = errDown
	_, err = r.Get(ctx, 1)
	assert.ErrorIs(t, err, errDown)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, r.Set(ctx, storagetest.Ana(), time.Minute), errDown)
	assert.ErrorIs(t, r.Delete(ctx, 1), errDown)
}

func TestRedisBackedStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := New(newBackend(t), NewRedis(client), time.Minute, quiet)

	_, err := s.Save(ctx, storagetest.Ana())
	require.NoError(t, err)
	_, err = s.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, client.data, "student:1")
	assert.Equal(t, time.Minute, client.ttls["student:1"])

	require.NoError(t, s.Delete(ctx, 1))
	assert.NotContains(t, client.data, "student:1")

	require.NoError(t, s.Close())
	assert.True(t, client.closed, "closing the store closes the redis client")
}
